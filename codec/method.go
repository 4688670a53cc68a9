package codec

import (
	"fmt"
	"strings"

	"github.com/andreagemma/ga/errors"
)

// Method names a compression method.
type Method string

// Compression methods. None disables compression.
const (
	None    Method = "none"
	Blosclz Method = "blosclz"
	LZ4     Method = "lz4"
	LZ4HC   Method = "lz4hc"
	Zlib    Method = "zlib"
	Zstd    Method = "zstd"
	Gzip    Method = "gzip"
	BZ2     Method = "bz2"
	Zip     Method = "zip"
	LZMA    Method = "lzma"
	Snappy  Method = "snappy"
)

// Methods lists every known method, None first.
var Methods = []Method{None, Blosclz, LZ4, LZ4HC, Zlib, Zstd, Gzip, BZ2, Zip, LZMA, Snappy}

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

func (m Method) String() string {
	return string(m)
}

// ParseMethod parses a method name case-insensitively. An empty name means None.
func ParseMethod(s string) (Method, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return None, nil
	}
	m := Method(name)
	if !m.Valid() {
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnsupportedCompression, s),
			"codec", "ParseMethod", "validate method")
	}
	return m, nil
}
