// Package config loads the certificate manager configuration file.
//
// The configuration is read once at the call boundary (the CLI or the
// hosting layer) and threaded into options records explicitly; library
// code never reads ambient state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration.
type Config struct {
	// DevMode switches logging to the human-readable development format.
	DevMode bool `yaml:"dev_mode"`

	Export ExportConfig `yaml:"export"`
}

// ExportConfig controls certificate export behavior.
type ExportConfig struct {
	// AppendKeyToCert additionally appends the private key block into the
	// certificate PEM file, on top of the sibling .key file. Off by
	// default: keeping both a combined and a split representation caused
	// nondeterministic key-association failures on some platforms.
	AppendKeyToCert bool `yaml:"append_key_to_cert"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{}
}

// Load reads the YAML configuration at path. A missing file yields the
// default configuration; a malformed file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
