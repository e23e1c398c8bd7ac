package archive

import "bytes"

// Format is the container format detected from a blob's leading bytes.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatGzip
)

// String returns the lowercase name of the format.
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatGzip:
		return "gzip"
	default:
		return "unknown"
	}
}

type signature struct {
	format Format
	magic  []byte
}

var signatures = []signature{
	{format: FormatZip, magic: []byte{0x50, 0x4B}},
	{format: FormatGzip, magic: []byte{0x1F, 0x8B}},
}

const (
	tarMagicOffset = 257
	tarMagic       = "ustar"
)

// Classify inspects the first two bytes of blob. Input shorter than two
// bytes, or with any other prefix, is FormatUnknown.
func Classify(blob []byte) Format {
	for _, sig := range signatures {
		if bytes.HasPrefix(blob, sig.magic) {
			return sig.format
		}
	}
	return FormatUnknown
}

// IsGzip reports whether blob starts with the gzip magic bytes.
func IsGzip(blob []byte) bool {
	return Classify(blob) == FormatGzip
}

// IsTar reports whether blob carries the ustar magic at offset 257.
func IsTar(blob []byte) bool {
	end := tarMagicOffset + len(tarMagic)
	if len(blob) < end {
		return false
	}
	return string(blob[tarMagicOffset:end]) == tarMagic
}
