package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nomercy.yaml")
	if err := os.WriteFile(path, []byte("budget: 1000\nci: true\ninvariants: invariants.json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Budget != 1000 || !f.CI || f.InvariantsPath != "invariants.json" {
		t.Fatalf("unexpected file: %+v", f)
	}
}

func TestResolvePrecedenceFlagsOverFileOverEnvOverDefaults(t *testing.T) {
	file := &File{Budget: 100, CI: false, InvariantsPath: "from-file.json"}
	envBudget := 200
	env := Env{Budget: &envBudget, InvariantsPath: "from-env.json"}
	flagBudget := 300
	flagOverrides := Config{Budget: flagBudget}
	flagsSet := map[string]bool{"budget": true}

	cfg := Resolve(file, env, flagOverrides, flagsSet)

	if cfg.Budget != 300 {
		t.Fatalf("expected flag to win budget, got %d", cfg.Budget)
	}
	if cfg.InvariantsPath != "from-file.json" {
		t.Fatalf("expected file to win invariants path over env (flag unset), got %q", cfg.InvariantsPath)
	}
}

func TestResolveFallsBackToFileThenDefaults(t *testing.T) {
	file := &File{InvariantsPath: "from-file.json"}
	cfg := Resolve(file, Env{}, Config{}, map[string]bool{})

	if cfg.InvariantsPath != "from-file.json" {
		t.Fatalf("expected file value, got %q", cfg.InvariantsPath)
	}
	if cfg.AdapterTimeoutMs != 5000 {
		t.Fatalf("expected built-in default adapter timeout, got %d", cfg.AdapterTimeoutMs)
	}
	if cfg.Format != "text" {
		t.Fatalf("expected built-in default format, got %q", cfg.Format)
	}
}

func TestResolveWithNoFileUsesDefaults(t *testing.T) {
	cfg := Resolve(nil, Env{}, Config{}, map[string]bool{})
	if cfg.Format != "text" || cfg.AdapterTimeoutMs != 5000 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestReadEnvParsesKnownVariables(t *testing.T) {
	t.Setenv("NOMERCY_SEED", "42")
	t.Setenv("NOMERCY_BUDGET", "500")
	t.Setenv("NOMERCY_CI", "true")

	env, err := ReadEnv()
	if err != nil {
		t.Fatal(err)
	}
	if env.Seed == nil || *env.Seed != 42 {
		t.Fatalf("expected seed 42, got %+v", env.Seed)
	}
	if env.Budget == nil || *env.Budget != 500 {
		t.Fatalf("expected budget 500, got %+v", env.Budget)
	}
	if env.CI == nil || !*env.CI {
		t.Fatalf("expected ci true, got %+v", env.CI)
	}
}

func TestReadEnvRejectsMalformedSeed(t *testing.T) {
	t.Setenv("NOMERCY_SEED", "not-a-number")
	if _, err := ReadEnv(); err == nil {
		t.Fatal("expected error for malformed NOMERCY_SEED")
	}
}
