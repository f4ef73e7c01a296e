// Package config layers flags > config file > environment into a single
// Config, extending a flat RootOptions precedence scheme to full YAML
// config-file support.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved set of run-wide settings, after flags,
// config file, and environment have been layered.
type Config struct {
	Seed            *uint64 `yaml:"seed"`
	Budget          int     `yaml:"budget"`
	CI              bool    `yaml:"ci"`
	InvariantsPath  string  `yaml:"invariants"`
	FaultSpecs      []string `yaml:"fault"`
	AdapterTimeoutMs int    `yaml:"adapter_timeout_ms"`
	Verbose         bool    `yaml:"verbose"`
	Format          string  `yaml:"format"`
}

// File is the subset of Config a YAML config file may set. It mirrors
// Config's shape directly so unmarshaling is a straight merge.
type File = Config

// defaults mirrors root.go's default-flag values, extended with
// nomercy's own.
func defaults() Config {
	return Config{
		Budget:           0,
		AdapterTimeoutMs: 5000,
		Format:           "text",
	}
}

// LoadFile parses a YAML config file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// Env holds the six recognized NOMERCY_* environment overrides. No
// third-party env-parsing library is warranted for six well-known keys;
// os.LookupEnv is read directly.
type Env struct {
	Seed            *uint64
	Budget          *int
	ConfigPath      string
	CI              *bool
	InvariantsPath  string
	AdapterTimeoutMs *int
}

// ReadEnv reads the NOMERCY_* environment variables present in the
// process environment.
func ReadEnv() (Env, error) {
	var e Env
	if v, ok := os.LookupEnv("NOMERCY_SEED"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return e, fmt.Errorf("config: NOMERCY_SEED: %w", err)
		}
		e.Seed = &n
	}
	if v, ok := os.LookupEnv("NOMERCY_BUDGET"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return e, fmt.Errorf("config: NOMERCY_BUDGET: %w", err)
		}
		e.Budget = &n
	}
	if v, ok := os.LookupEnv("NOMERCY_CONFIG"); ok {
		e.ConfigPath = v
	}
	if v, ok := os.LookupEnv("NOMERCY_CI"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return e, fmt.Errorf("config: NOMERCY_CI: %w", err)
		}
		e.CI = &b
	}
	if v, ok := os.LookupEnv("NOMERCY_INVARIANTS"); ok {
		e.InvariantsPath = v
	}
	if v, ok := os.LookupEnv("NOMERCY_ADAPTER_TIMEOUT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return e, fmt.Errorf("config: NOMERCY_ADAPTER_TIMEOUT: %w", err)
		}
		e.AdapterTimeoutMs = &n
	}
	return e, nil
}

// Resolve layers env over defaults, the config file over that, then flags
// (via flagOverrides, which callers populate only for flags actually set
// on the command line) over the result — the precedence order:
// flags > config file > environment > built-in defaults.
func Resolve(file *File, env Env, flagOverrides Config, flagsSet map[string]bool) Config {
	cfg := defaults()

	if env.Seed != nil {
		cfg.Seed = env.Seed
	}
	if env.Budget != nil {
		cfg.Budget = *env.Budget
	}
	if env.CI != nil {
		cfg.CI = *env.CI
	}
	if env.InvariantsPath != "" {
		cfg.InvariantsPath = env.InvariantsPath
	}
	if env.AdapterTimeoutMs != nil {
		cfg.AdapterTimeoutMs = *env.AdapterTimeoutMs
	}

	if file != nil {
		merge(&cfg, *file)
	}

	if flagsSet["seed"] {
		cfg.Seed = flagOverrides.Seed
	}
	if flagsSet["budget"] {
		cfg.Budget = flagOverrides.Budget
	}
	if flagsSet["ci"] {
		cfg.CI = flagOverrides.CI
	}
	if flagsSet["invariants"] {
		cfg.InvariantsPath = flagOverrides.InvariantsPath
	}
	if flagsSet["fault"] {
		cfg.FaultSpecs = flagOverrides.FaultSpecs
	}
	if flagsSet["verbose"] {
		cfg.Verbose = flagOverrides.Verbose
	}
	if flagsSet["format"] {
		cfg.Format = flagOverrides.Format
	}

	return cfg
}

func merge(dst *Config, src Config) {
	if src.Seed != nil {
		dst.Seed = src.Seed
	}
	if src.Budget != 0 {
		dst.Budget = src.Budget
	}
	dst.CI = dst.CI || src.CI
	if src.InvariantsPath != "" {
		dst.InvariantsPath = src.InvariantsPath
	}
	if len(src.FaultSpecs) > 0 {
		dst.FaultSpecs = src.FaultSpecs
	}
	if src.AdapterTimeoutMs != 0 {
		dst.AdapterTimeoutMs = src.AdapterTimeoutMs
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
}
