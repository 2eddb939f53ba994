// Package config loads the optional rc file that supplies defaults for the
// flag surface. Flags given on the command line always win.
package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
	"src.kati.dev/pkg/env"
)

// Config is the rc-file schema.
type Config struct {
	// Default for -j.
	Jobs int `yaml:"jobs"`
	// Default shell executable for recipes and $(shell).
	Shell string `yaml:"shell"`
	// Default for -s.
	Silent bool `yaml:"silent"`
	// Fail instead of warning when a target's commands are redefined.
	WerrorOverridingCommands bool `yaml:"werror_overriding_commands"`
}

// DefaultPath returns the rc file to try: $KATIRC if set, else .katirc in
// the working directory.
func DefaultPath() string {
	if p := os.Getenv(env.KATIRC); p != "" {
		return p
	}
	return ".katirc"
}

// Load reads the rc file at path. A missing file is not an error and yields
// the zero Config.
func Load(path string) (Config, error) {
	var cfg Config
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
