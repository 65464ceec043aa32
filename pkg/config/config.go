// Package config loads the core's runtime configuration: where data is
// stored, how the storage engine durability knobs are set, and how
// aggressively the spin locks yield under contention.
//
// Configuration can be loaded from a YAML file and then overridden by
// NOGDB_* environment variables: file first, environment wins.
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the settings a Context needs to open its storage engine
// and tune its internal concurrency primitives.
type Config struct {
	// DataDir is where the storage engine keeps its files. Ignored when
	// InMemory is true.
	DataDir string `yaml:"data_dir"`

	// InMemory runs the storage engine without touching disk, letting a
	// Context run entirely in memory for tests.
	InMemory bool `yaml:"in_memory"`

	// SyncWrites forces an fsync after each committed write. Slower,
	// more durable.
	SyncWrites bool `yaml:"sync_writes"`

	// LowMemory applies reduced buffer sizes to the storage engine, for
	// memory-constrained deployments.
	LowMemory bool `yaml:"low_memory"`

	// SpinYieldThreshold is how many busy-wait iterations a spin lock
	// performs before calling runtime.Gosched(), mirroring the
	// original's SPINLOCK_MAXCOUNT_DELAY tuning constant.
	SpinYieldThreshold int `yaml:"spin_yield_threshold"`
}

// DefaultConfig returns the configuration a Context uses when nothing
// else is specified: in-memory, no sync, default spin tuning.
func DefaultConfig() *Config {
	return &Config{
		DataDir:            "./data",
		InMemory:           true,
		SyncWrites:         false,
		LowMemory:          false,
		SpinYieldThreshold: 1000,
	}
}

// LoadConfig reads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigOrDefault loads config from a YAML file, or returns
// DefaultConfig if the file does not exist or cannot be parsed.
func LoadConfigOrDefault(path string) *Config {
	cfg, err := LoadConfig(path)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// Load reads path (if non-empty) or the defaults, then applies NOGDB_*
// environment overrides on top. Environment variables always win.
func Load(path string) (*Config, error) {
	var cfg *Config
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = DefaultConfig()
	}

	if v := os.Getenv("NOGDB_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("NOGDB_IN_MEMORY"); v != "" {
		cfg.InMemory = parseBool(v, cfg.InMemory)
	}
	if v := os.Getenv("NOGDB_SYNC_WRITES"); v != "" {
		cfg.SyncWrites = parseBool(v, cfg.SyncWrites)
	}
	if v := os.Getenv("NOGDB_LOW_MEMORY"); v != "" {
		cfg.LowMemory = parseBool(v, cfg.LowMemory)
	}
	if v := os.Getenv("NOGDB_SPIN_YIELD_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SpinYieldThreshold = n
		}
	}

	return cfg, nil
}

func parseBool(s string, defaultVal bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultVal
	}
}
