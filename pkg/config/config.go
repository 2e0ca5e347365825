// Package config loads conversion defaults and server limits from YAML
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hsm2midi/hsm2midi/pkg/converter"
)

// Config is the root of the configuration file
type Config struct {
	Convert Convert `yaml:"convert"`
	Server  Server  `yaml:"server"`
}

// Convert holds conversion defaults
type Convert struct {
	NoteOffset int    `yaml:"noteOffset"`
	LoopCount  int    `yaml:"loopCount"`
	Order      string `yaml:"order"`
}

// Server holds the HTTP front end limits
type Server struct {
	Port           int           `yaml:"port"`
	MaxConcurrent  int64         `yaml:"maxConcurrent"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxUploadBytes int64         `yaml:"maxUploadBytes"`
	MaxLoopCount   int           `yaml:"maxLoopCount"` // upper bound for loopCount in requests
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Convert: Convert{
			NoteOffset: converter.DefaultNoteOffset,
			LoopCount:  converter.DefaultLoopCount,
			Order:      string(converter.OrderSong),
		},
		Server: Server{
			Port:           8080,
			MaxConcurrent:  5,
			Timeout:        5 * time.Second,
			MaxUploadBytes: 500 * 1024,
			MaxLoopCount:   64,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	var errs []error
	if c.Convert.LoopCount < 1 {
		errs = append(errs, fmt.Errorf("convert.loopCount must be at least 1, got %d", c.Convert.LoopCount))
	}
	if _, err := converter.ParseOrderPolicy(c.Convert.Order); err != nil {
		errs = append(errs, fmt.Errorf("convert.order: %w", err))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("server.maxConcurrent must be at least 1, got %d", c.Server.MaxConcurrent))
	}
	if c.Server.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout))
	}
	if c.Server.MaxUploadBytes < 1 {
		errs = append(errs, fmt.Errorf("server.maxUploadBytes must be positive, got %d", c.Server.MaxUploadBytes))
	}
	if c.Server.MaxLoopCount < 1 {
		errs = append(errs, fmt.Errorf("server.maxLoopCount must be at least 1, got %d", c.Server.MaxLoopCount))
	}
	return errors.Join(errs...)
}

// Options returns the converter options described by c
func (c Convert) Options() (converter.Options, error) {
	order, err := converter.ParseOrderPolicy(c.Order)
	if err != nil {
		return converter.Options{}, err
	}
	return converter.Options{
		NoteOffset: c.NoteOffset,
		LoopCount:  c.LoopCount,
		Order:      order,
	}, nil
}
