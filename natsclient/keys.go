package natsclient

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/andreagemma/ga/errors"
)

const upperHex = "0123456789ABCDEF"

func keepByte(b byte) bool {
	return b >= 'a' && b <= 'z' ||
		b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' ||
		b == '_' || b == '-' || b == '/'
}

// EscapeKey maps an arbitrary key onto the NATS KV key alphabet. Bytes
// outside [A-Za-z0-9_/-] become =XX with upper-case hex, so "jobs:1.5"
// becomes "jobs=3A1=2E5". Empty keys are rejected.
func EscapeKey(key string) (string, error) {
	if key == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidKey, "natsclient", "EscapeKey", "empty key")
	}

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if keepByte(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('=')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String(), nil
}

// UnescapeKey reverses EscapeKey.
func UnescapeKey(escaped string) (string, error) {
	if !strings.Contains(escaped, "=") {
		return escaped, nil
	}

	var b strings.Builder
	b.Grow(len(escaped))
	for i := 0; i < len(escaped); i++ {
		c := escaped[i]
		if c != '=' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(escaped) {
			return "", fmt.Errorf("%w: truncated escape in %q", errors.ErrInvalidKey, escaped)
		}
		v, err := strconv.ParseUint(escaped[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("%w: bad escape in %q", errors.ErrInvalidKey, escaped)
		}
		b.WriteByte(byte(v))
		i += 2
	}
	return b.String(), nil
}
