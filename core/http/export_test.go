package http //nolint:revive // intentional naming for domain clarity

var ParseContentRange = parseContentRange
