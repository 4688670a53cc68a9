package codec

import (
	"os"

	"github.com/andreagemma/ga/errors"
)

// Dump encodes v and writes it to path.
func Dump(path string, v any, method Method, level int) error {
	data, err := Encode(v, method, level)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "codec", "Dump", "write file")
	}
	return nil
}

// Load reads path and decodes its contents into v.
func Load(path string, method Method, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "codec", "Load", "read file")
	}
	return Decode(data, method, v)
}
