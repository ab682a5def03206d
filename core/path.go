package unitypack

import "strings"

// archiveScheme prefixes paths that name an asset inside a bundle.
const archiveScheme = "archive:"

// NormalizePath converts an asset reference path to the form used for
// lookups.
//
// It performs the following transformations:
//   - Lowercases: "CAB-ABC" → "cab-abc"
//   - Converts backslashes: `Library\cab` → "library/cab"
//   - Strips leading and trailing slashes: "/cab-abc/" → "cab-abc"
//   - Collapses consecutive slashes: "a//b" → "a/b"
//
// An "archive:" prefix is kept, followed by a single slash.
func NormalizePath(p string) string {
	p = strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
	scheme := ""
	if rest, ok := strings.CutPrefix(p, archiveScheme); ok {
		scheme, p = archiveScheme+"/", rest
	}

	parts := strings.Split(p, "/")
	result := parts[:0] // reuse backing array
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	return scheme + strings.Join(result, "/")
}

// SplitArchivePath splits "archive:/<bundle>/<asset>" into its lowercase
// bundle and asset names. Other paths return their lowercase base name as
// the asset and ok=false.
func SplitArchivePath(p string) (bundle, asset string, ok bool) {
	p = NormalizePath(p)
	if rest, found := strings.CutPrefix(p, archiveScheme+"/"); found {
		if b, a, found := strings.Cut(rest, "/"); found {
			return b, baseName(a), true
		}
		return "", rest, false
	}
	return "", baseName(p), false
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
