// Package config defines dirpy's runtime configuration and its defaults
// (spec §6 "Configuration").
package config

import (
	"errors"
	"runtime"
	"time"
)

// Config is the top-level configuration struct. All fields have safe
// defaults so callers can start with Default() and override only what
// they need.
type Config struct {
	// HTTP front end (C7).
	BindAddr   string
	BindPort   int
	NumWorkers int // pre-forked worker processes; default 2×NumCPU
	ReqTimeout time.Duration

	// Source resolution (C4).
	HTTPRoot  string
	MaxPixels int64
	AllowPost bool

	// Save policy (C3 save, §4.3.6).
	DefQuality          int
	MinRecompressPixels int64
	AllowToDisk         bool
	AllowMkdir          bool
	AllowOverwrite      bool
	ToDiskRoot          string

	// Telemetry (C6).
	StatsdServer string
	StatsdPort   int
	StatsdPrefix string

	// Cache (C5).
	RedisHosts  []string
	RedisCluster bool
	RedisPrefix string

	// Logging.
	LogMaxLine int
	Debug      bool
}

// Default returns a Config populated with the defaults listed in spec §6.
func Default() Config {
	return Config{
		BindAddr:            "0.0.0.0",
		BindPort:            3000,
		NumWorkers:          2 * runtime.NumCPU(),
		ReqTimeout:          0, // none
		HTTPRoot:            "/var/www/html",
		MaxPixels:           90_000_000,
		AllowPost:           false,
		DefQuality:          95,
		MinRecompressPixels: 0,
		AllowToDisk:         false,
		AllowMkdir:          false,
		AllowOverwrite:      false,
		StatsdPort:          8125,
		StatsdPrefix:        "dirpy",
		RedisCluster:        false,
		RedisPrefix:         "dirpy",
		LogMaxLine:          300,
		Debug:               false,
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.DefQuality < 1 || c.DefQuality > 100 {
		return errors.New("config: def_quality must be between 1 and 100")
	}
	if c.NumWorkers <= 0 {
		return errors.New("config: num_workers must be positive")
	}
	if c.MaxPixels <= 0 {
		return errors.New("config: max_pixels must be positive")
	}
	if c.AllowToDisk && c.ToDiskRoot == "" {
		return errors.New("config: todisk_root required when allow_todisk is true")
	}
	return nil
}
