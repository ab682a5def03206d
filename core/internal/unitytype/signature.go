package unitytype

// Signature is the archive variant named by the leading bundle string.
type Signature string

const (
	SignatureFS  Signature = "UnityFS"
	SignatureWeb Signature = "UnityWeb"
	SignatureRaw Signature = "UnityRaw"
)

// Valid reports whether s names a known archive variant.
func (s Signature) Valid() bool {
	switch s {
	case SignatureFS, SignatureWeb, SignatureRaw:
		return true
	default:
		return false
	}
}

// BlockArchive reports whether the signature uses the block-archive layout.
func (s Signature) BlockArchive() bool {
	return s == SignatureFS
}

// Compressed reports whether the raw payload is compressed as a whole.
func (s Signature) Compressed() bool {
	return s == SignatureWeb
}
