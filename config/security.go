package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andreagemma/ga/errors"
)

// Limits on what a config layer may contain.
const (
	maxConfigSize = 1 << 20
	maxJSONDepth  = 32
	maxEnvVarLen  = 4096
)

// readConfigFile reads a JSON or YAML layer, refusing anything that is not
// a small regular file with a known extension.
func readConfigFile(path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %s is not a .json, .yaml or .yml file", errors.ErrInvalidConfig, path),
			"Loader", "readConfigFile", "check extension")
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, "Loader", "readConfigFile", "open config")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "Loader", "readConfigFile", "stat config")
	}
	if !info.Mode().IsRegular() {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %s is not a regular file", errors.ErrInvalidConfig, path),
			"Loader", "readConfigFile", "check file")
	}

	// One byte past the limit tells an oversized file from one that fits.
	data, err := io.ReadAll(io.LimitReader(f, maxConfigSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "Loader", "readConfigFile", "read config")
	}
	if len(data) > maxConfigSize {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %s exceeds %d bytes", errors.ErrInvalidConfig, path, maxConfigSize),
			"Loader", "readConfigFile", "check size")
	}
	return data, nil
}

// checkJSONDepth walks the token stream and fails once objects or arrays
// nest deeper than maxJSONDepth. Syntax errors are left to Unmarshal.
func checkJSONDepth(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("%w: nesting deeper than %d", errors.ErrInvalidConfig, maxJSONDepth)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}

func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("%w: %s longer than %d bytes", errors.ErrInvalidConfig, key, maxEnvVarLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%w: null byte in %s", errors.ErrInvalidConfig, key)
	}
	return nil
}
