package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kestrelops/rewardsbot/internal/errtax"
)

var validate = validator.New()

// Load reads a comment-tolerant JSON config file, strips comments and
// trailing commas, decodes in strict mode (unknown top-level or nested keys
// are a *errtax.Error with CodeConfig), and validates the recognised option
// set. Unset fields keep Default()'s values.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errtax.ConfigError("read config file", err)
	}
	return Parse(raw)
}

// Parse decodes an in-memory comment-tolerant JSON document. Exported
// separately from Load so callers (and tests) can supply config bytes
// without touching the filesystem.
func Parse(raw []byte) (Config, error) {
	normalized := Normalize(raw)

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errtax.ConfigError(fmt.Sprintf("parse config: %v", err), err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, errtax.ConfigError("validate config", err)
	}
	return cfg, nil
}

// Save serialises cfg back to pretty-printed JSON. Used by tests asserting
// the round-trip property (spec.md §8 property 5); operator-facing writes
// go through the external config merger, not this function.
func Save(cfg Config) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}
