package config

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultCacheDirName = ".xsys"
	DefaultCargo        = "cargo"
	DefaultRustc        = "rustc"
	DefaultLogLevel     = "info"
	DefaultVerbose      = false

	// FlagsEnvVar overrides the project's extra compiler flags for one invocation
	FlagsEnvVar = "RUSTFLAGS"

	// EnvPrefix prefixes environment variables that set xsys options (XSYS_CACHE_DIR, ...)
	EnvPrefix = "XSYS"
)

// Holds the tool configuration for xsys
type Config struct {
	// Root of the sysroot cache
	CacheDir string

	// Package manager and compiler commands
	Cargo string
	Rustc string

	// Rust standard library sources; queried from rustc when empty
	RustSrc string

	// Minimum level for diagnostic logging
	LogLevel string

	// Print the toolchain invocation and its output
	Verbose bool
}

// Load reads the configuration out of v, applies defaults and validates it
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		CacheDir: v.GetString("cache_dir"),
		Cargo:    v.GetString("cargo"),
		Rustc:    v.GetString("rustc"),
		RustSrc:  v.GetString("rust_src"),
		LogLevel: v.GetString("log_level"),
		Verbose:  v.GetBool("verbose"),
	}

	// Apply defaults if not set
	if cfg.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, eris.Wrap(err, "failed to locate home directory for the cache")
		}

		cfg.CacheDir = filepath.Join(home, DefaultCacheDirName)
	}

	if cfg.Cargo == "" {
		cfg.Cargo = DefaultCargo
	}

	if cfg.Rustc == "" {
		cfg.Rustc = DefaultRustc
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	abs, err := filepath.Abs(c.CacheDir)
	if err != nil {
		return eris.Wrapf(err, "invalid cache directory %s", c.CacheDir)
	}

	c.CacheDir = abs

	if c.RustSrc != "" {
		abs, err := filepath.Abs(c.RustSrc)
		if err != nil {
			return eris.Wrapf(err, "invalid rust source directory %s", c.RustSrc)
		}

		c.RustSrc = abs
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return eris.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// Level returns the parsed log level, lowered to debug in verbose mode
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if c.Verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	return level
}
