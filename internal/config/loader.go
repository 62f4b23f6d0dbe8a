package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Override adjusts a loaded config before defaults and validation run.
// The CLI uses overrides to layer command-line flags over the file.
type Override func(*StreamConfig)

// Load reads a YAML config file and expands environment variables.
// An empty path yields an empty config, for runs configured by flags alone.
func Load(path string) (*StreamConfig, error) {
	if path == "" {
		return &StreamConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes after expanding ${VAR} references.
// Unknown keys are rejected so a misspelt option is not silently ignored.
func Parse(data []byte) (*StreamConfig, error) {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)

	var cfg StreamConfig
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config, applies overrides in order, then fills defaults.
func LoadWithDefaults(path string, overrides ...Override) (*StreamConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies overrides and defaults, and validates.
func LoadAndValidate(path string, overrides ...Override) (*StreamConfig, error) {
	cfg, err := LoadWithDefaults(path, overrides...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
