package unitytype

import "fmt"

// Compression identifies the compression method of a metadata block or an
// archive block. It occupies the low 6 bits of the flags field.
type Compression uint32

const (
	CompressionNone  Compression = 0
	CompressionLZMA  Compression = 1
	CompressionLZ4   Compression = 2
	CompressionLZ4HC Compression = 3
	CompressionLZHAM Compression = 4
	CompressionLZFSE Compression = 10
	CompressionZlib  Compression = 11
)

// CompressionMask selects the compression method bits of a flags field.
const CompressionMask = 0x3F

// CompressionFromFlags extracts the compression method from a flags field.
func CompressionFromFlags(flags uint32) Compression {
	return Compression(flags & CompressionMask)
}

// Known reports whether c is one of the enumerated methods.
func (c Compression) Known() bool {
	switch c {
	case CompressionNone, CompressionLZMA, CompressionLZ4, CompressionLZ4HC,
		CompressionLZHAM, CompressionLZFSE, CompressionZlib:
		return true
	default:
		return false
	}
}

// String returns the human-readable name of the compression method.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZMA:
		return "lzma"
	case CompressionLZ4:
		return "lz4"
	case CompressionLZ4HC:
		return "lz4hc"
	case CompressionLZHAM:
		return "lzham"
	case CompressionLZFSE:
		return "lzfse"
	case CompressionZlib:
		return "zlib"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(c))
	}
}
