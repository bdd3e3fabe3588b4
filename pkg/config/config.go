// Package config loads brepmesh settings from YAML or JSON files.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chazu/brepmesh/pkg/meshadapt"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultDebounce is how long watch mode waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Config is the file form of the CLI settings. Keys missing from a file
// keep their defaults.
type Config struct {
	Mesh meshadapt.Params `yaml:"mesh" json:"mesh"`
	// Verify checks every part against the SDF oracle.
	Verify bool `yaml:"verify" json:"verify"`
	// DebounceMillis is the watch mode debounce.
	DebounceMillis int `yaml:"debounce_ms" json:"debounceMs"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Mesh:           meshadapt.DefaultParams(),
		DebounceMillis: int(DefaultDebounce / time.Millisecond),
	}
}

// Debounce returns DebounceMillis as a duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if err := c.Mesh.Validate(); err != nil {
		return err
	}
	if c.DebounceMillis < 0 {
		return errors.Errorf("config: debounce_ms must not be negative, got %d", c.DebounceMillis)
	}
	return nil
}

// Load reads path over the defaults. Files ending in .json are JSON; all
// others are YAML. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: read")
	}
	cfg, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: %s", path)
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte, isJSON bool) (Config, error) {
	cfg := Default()
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, errors.Wrap(err, "decode json")
		}
	} else if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, errors.Wrap(err, "decode yaml")
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML, for `brepmesh config`.
func Marshal(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, errors.Wrap(err, "config: encode")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "config: encode")
	}
	return buf.Bytes(), nil
}
