package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andreagemma/ga/errors"
)

// keyspace maps caller keys to backend keys under "{bucket}:".
type keyspace struct {
	bucket string
}

// ValidateBucket rejects bucket names containing ':'. The separator inside a
// name would let bucket "a" see and clear the keys of bucket "a:x".
func ValidateBucket(bucket string) error {
	if strings.Contains(bucket, ":") {
		return errors.WrapInvalid(fmt.Errorf("%w: %q contains ':'", errors.ErrInvalidBucket, bucket),
			"Store", "ValidateBucket", "check bucket")
	}
	return nil
}

func (k keyspace) prefix() string {
	if k.bucket == "" {
		return ""
	}
	return k.bucket + ":"
}

func (k keyspace) full(key string) (string, error) {
	if key == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidKey, "Store", "key", "empty key")
	}
	return k.prefix() + key, nil
}

func (k keyspace) strip(full string) (string, bool) {
	p := k.prefix()
	if !strings.HasPrefix(full, p) {
		return "", false
	}
	return full[len(p):], true
}

// compileGlob translates an fnmatch-style pattern into an anchored regexp.
// '*' matches any run (including '/' and ':'), '?' one character, and
// "[...]" a class, with "[!...]" negated. A backslash escapes the next
// character.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?s)^`)

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch c := runes[i]; c {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '\\':
			if i+1 < len(runes) {
				i++
				b.WriteString(regexp.QuoteMeta(string(runes[i])))
			} else {
				b.WriteString(`\\`)
			}
		case '[':
			end := i + 1
			if end < len(runes) && runes[end] == '!' {
				end++
			}
			if end < len(runes) && runes[end] == ']' {
				end++
			}
			for end < len(runes) && runes[end] != ']' {
				end++
			}
			if end >= len(runes) {
				// Unterminated class is a literal '['.
				b.WriteString(`\[`)
				continue
			}
			class := runes[i+1 : end]
			b.WriteByte('[')
			if len(class) > 0 && class[0] == '!' {
				b.WriteByte('^')
				class = class[1:]
			}
			for _, r := range class {
				if r == '\\' || r == '[' || r == ']' || r == '^' {
					b.WriteByte('\\')
				}
				b.WriteRune(r)
			}
			b.WriteByte(']')
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString(`$`)
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("pattern %q: %w", pattern, err), "Store", "ScanIter", "compile pattern")
	}
	return re, nil
}
