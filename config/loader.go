package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GA"

// durationKeys are the dotted paths holding durations. Files may give them
// as strings such as "1s" or "2d".
var durationKeys = [][]string{
	{"probe_timeout"},
	{"nats", "reconnect_wait"},
	{"nats", "timeout"},
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  EnvPrefix,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// Load merges Default, every layer and the environment, then validates.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		if cfg, err = mergeFromMap(cfg, raw); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", path, err)
		}
	}

	if err := l.applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Load reads one JSON or YAML file over the defaults, applies the
// environment and validates.
func Load(path string) (*Config, error) {
	l := NewLoader()
	l.AddLayer(path)
	return l.Load()
}

// loadRaw reads a layer into a generic map keyed like the JSON tags.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		if err := checkJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// parseDurations replaces duration strings with nanosecond counts so the map
// decodes into time.Duration fields.
func parseDurations(raw map[string]any) error {
	for _, path := range durationKeys {
		m := raw
		for _, key := range path[:len(path)-1] {
			next, ok := m[key].(map[string]any)
			if !ok {
				m = nil
				break
			}
			m = next
		}
		if m == nil {
			continue
		}

		last := path[len(path)-1]
		s, ok := m[last].(string)
		if !ok {
			continue
		}
		d, err := parseDurationWithDays(s)
		if err != nil {
			return fmt.Errorf("%s: %w", strings.Join(path, "."), err)
		}
		m[last] = int64(d)
	}
	return nil
}

// parseDurationWithDays is time.ParseDuration plus a "d" suffix for days.
func parseDurationWithDays(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// mergeFromMap overrides only the fields present in override.
func mergeFromMap(base Config, override map[string]any) (Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return base, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base, err
	}
	return merged, nil
}

func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if overrideMap, ok := v.(map[string]any); ok {
			if baseMap, ok := result[k].(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// ApplyEnv applies GA_* environment overrides to c.
func (c *Config) ApplyEnv() error {
	return (&Loader{envPrefix: EnvPrefix}).applyEnvOverrides(c)
}

func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"_BACKEND":     &cfg.Backend,
		"_BUCKET":      &cfg.Bucket,
		"_HOST":        &cfg.Host,
		"_COMPRESSION": &cfg.Compression,
		"_LOCAL_HOST":  &cfg.Local.Host,
	}
	for suffix, field := range strs {
		if val, ok, err := l.env(suffix); err != nil {
			return err
		} else if ok {
			*field = val
		}
	}

	ints := map[string]*int{
		"_PORT":              &cfg.Port,
		"_DB":                &cfg.DB,
		"_COMPRESSION_LEVEL": &cfg.CompressionLevel,
		"_LOCAL_PORT":        &cfg.Local.Port,
	}
	for suffix, field := range ints {
		val, ok, err := l.env(suffix)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return invalid("%s%s=%q is not an integer", l.envPrefix, suffix, val)
		}
		*field = n
	}

	if val, ok, err := l.env("_PROBE_TIMEOUT"); err != nil {
		return err
	} else if ok {
		d, err := parseDurationWithDays(val)
		if err != nil {
			return invalid("%s_PROBE_TIMEOUT: %v", l.envPrefix, err)
		}
		cfg.ProbeTimeout = d
	}
	return nil
}

func (l *Loader) env(suffix string) (string, bool, error) {
	key := l.envPrefix + suffix
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return "", false, nil
	}
	if err := validateEnvVar(key, val); err != nil {
		return "", false, err
	}
	return val, true, nil
}
