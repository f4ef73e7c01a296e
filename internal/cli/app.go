package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nomercy-sim/nomercy/internal/artifact"
	"github.com/nomercy-sim/nomercy/internal/config"
	"github.com/nomercy-sim/nomercy/internal/engine"
	"github.com/nomercy-sim/nomercy/internal/fault"
	"github.com/nomercy-sim/nomercy/internal/history"
	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/manifest"
	"github.com/nomercy-sim/nomercy/internal/predicate"
	"github.com/nomercy-sim/nomercy/internal/protocol"
	"github.com/nomercy-sim/nomercy/internal/runlog"
	"github.com/nomercy-sim/nomercy/internal/seed"
	"github.com/nomercy-sim/nomercy/internal/session"
)

// budget is the resolved form of the `--budget
// steps=<n>|time=<dur>|infinite` flag.
type budget struct {
	Steps    int64 // 0 means unbounded
	Deadline time.Duration // 0 means unbounded
	Infinite bool
}

// parseBudget parses the --budget flag value. An empty spec means
// unbounded in both dimensions (callers apply their own default).
func parseBudget(spec string) (budget, error) {
	if spec == "" || spec == "infinite" {
		return budget{Infinite: spec == "infinite"}, nil
	}
	key, val, ok := strings.Cut(spec, "=")
	if !ok {
		return budget{}, fmt.Errorf("cli: malformed --budget %q, want steps=<n>, time=<dur>, or infinite", spec)
	}
	switch key {
	case "steps":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil || n <= 0 {
			return budget{}, fmt.Errorf("cli: invalid --budget steps value %q", val)
		}
		return budget{Steps: n}, nil
	case "time":
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			return budget{}, fmt.Errorf("cli: invalid --budget time value %q", val)
		}
		return budget{Deadline: d}, nil
	default:
		return budget{}, fmt.Errorf("cli: unknown --budget dimension %q", key)
	}
}

// system is one adapter under test, resolved from the `<system>`
// positional argument (a directory containing adapter.manifest.json, a
// sibling adapter.checksum, and an executable named "adapter").
type system struct {
	Dir          string
	Name         string
	ManifestRaw  jsonval.Value
	Manifest     *manifest.Manifest
	ManifestHash string
	Argv         []string
}

func resolveSystem(dir string) (*system, error) {
	name := filepath.Base(filepath.Clean(dir))

	rawBytes, err := os.ReadFile(filepath.Join(dir, "adapter.manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("cli: read adapter.manifest.json: %w", err)
	}
	rawVal, err := jsonval.Parse(rawBytes, jsonval.Limits{})
	if err != nil {
		return nil, fmt.Errorf("cli: parse adapter.manifest.json: %w", err)
	}

	checksumBytes, err := os.ReadFile(filepath.Join(dir, "adapter.checksum"))
	if err != nil {
		return nil, fmt.Errorf("cli: read adapter.checksum: %w", err)
	}
	sibling := strings.TrimSpace(string(checksumBytes))

	m, err := manifest.Parse(rawVal)
	if err != nil {
		return nil, fmt.Errorf("cli: %w", err)
	}
	if err := manifest.Verify(rawVal, m, sibling); err != nil {
		return nil, fmt.Errorf("cli: %w", err)
	}

	hash, err := manifest.HashValue(manifest.DomainManifest, rawVal)
	if err != nil {
		return nil, fmt.Errorf("cli: hash manifest: %w", err)
	}

	argv := []string{filepath.Join(dir, "adapter")}

	return &system{
		Dir:          dir,
		Name:         name,
		ManifestRaw:  rawVal,
		Manifest:     m,
		ManifestHash: hash,
		Argv:         argv,
	}, nil
}

// resourceMap derives the per-command resource touch set from the
// manifest's closed resource set. The manifest format does not carry a
// richer per-command breakdown, only a flat `resources` field, so every
// declared resource is conservatively treated as
// touched by `apply`, the only command the fault model ever blocks in
// practice.
func resourceMap(m *manifest.Manifest) fault.ResourceMap {
	if len(m.Resources) == 0 {
		return fault.ResourceMap{}
	}
	return fault.ResourceMap{protocol.CmdApply: m.Resources}
}

// artifactDir returns the fixed artifact directory for a system:
// "./target/nomercy/<system>/" inside a repository, falling back to
// "~/.cache/nomercy/<system>/" otherwise.
func artifactDir(systemName string) string {
	if _, err := os.Stat(".git"); err == nil {
		return filepath.Join("target", "nomercy", systemName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cache", "nomercy", systemName)
}

// loadInvariants parses and loads an invariant file from path.
func loadInvariants(path string) ([]*predicate.Invariant, jsonval.Value, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cli: read invariants file: %w", err)
	}
	v, err := jsonval.Parse(raw, jsonval.Limits{})
	if err != nil {
		return nil, nil, fmt.Errorf("cli: parse invariants file: %w", err)
	}
	set, err := predicate.LoadSet(v)
	if err != nil {
		return nil, nil, fmt.Errorf("cli: load invariants: %w", err)
	}
	return set, v, nil
}

// resolvedRun is the fully-assembled set of inputs a simulation command
// (beg/pray/explore) needs once flags, config file, and environment have
// been layered.
type resolvedRun struct {
	Cfg         config.Config
	Sys         *system
	Invariants  []*predicate.Invariant
	InvariantsRaw jsonval.Value
	InvariantsBytes []byte
	Faults      *fault.Schedule
	Seed        uint64
	SeedGiven   bool
	ArtifactDir artifact.Dir
	Log         *slog.Logger
}

// resolveRun layers flags > config file > environment > defaults, loads
// the system's manifest and invariant file, normalizes the fault
// schedule, and derives the seed when absent.
func resolveRun(opts *RootOptions, flagsSetMap map[string]bool, systemDir string) (*resolvedRun, error) {
	var file *config.File
	if opts.ConfigPath != "" {
		f, err := config.LoadFile(opts.ConfigPath)
		if err != nil {
			return nil, WrapExitError(ExitAdapterBuildError, "load config file", err)
		}
		file = f
	}

	env, err := config.ReadEnv()
	if err != nil {
		return nil, WrapExitError(ExitAdapterBuildError, "read environment", err)
	}

	var flagCfg config.Config
	if opts.Seed != "" {
		n, perr := strconv.ParseUint(opts.Seed, 10, 64)
		if perr != nil {
			return nil, NewExitError(ExitAdapterBuildError, fmt.Sprintf("invalid --seed %q", opts.Seed))
		}
		flagCfg.Seed = &n
	}
	flagCfg.CI = opts.CI
	flagCfg.InvariantsPath = opts.Invariants
	flagCfg.FaultSpecs = opts.Faults
	flagCfg.Verbose = opts.Verbose
	flagCfg.Format = opts.Format

	cfg := config.Resolve(file, env, flagCfg, flagsSetMap)

	sys, err := resolveSystem(systemDir)
	if err != nil {
		return nil, WrapExitError(ExitAdapterBuildError, "resolve system", err)
	}

	if cfg.InvariantsPath == "" {
		return nil, NewExitError(ExitAdapterBuildError, "no --invariants path given (flag, config file, or NOMERCY_INVARIANTS)")
	}
	invariants, invRaw, err := loadInvariants(cfg.InvariantsPath)
	if err != nil {
		return nil, WrapExitError(ExitAdapterBuildError, "load invariants", err)
	}
	invBytes, err := jsonval.MarshalCanonical(invRaw)
	if err != nil {
		return nil, WrapExitError(ExitInternalBug, "canonicalize invariants", err)
	}

	faults, err := fault.ParseAll(cfg.FaultSpecs)
	if err != nil {
		return nil, WrapExitError(ExitAdapterBuildError, "parse fault specs", err)
	}

	var runSeed uint64
	seedGiven := cfg.Seed != nil
	if seedGiven {
		runSeed = *cfg.Seed
	} else {
		runSeed = seed.Derive(engine.ProtocolVersion, sys.ManifestHash)
	}

	dir := artifactDir(sys.Name)
	if err := artifact.EnsureDir(dir); err != nil {
		return nil, WrapExitError(ExitInternalBug, "create artifact directory", err)
	}

	log := runlog.New(cfg.Verbose, cfg.Format == "json")

	return &resolvedRun{
		Cfg:             cfg,
		Sys:             sys,
		Invariants:      invariants,
		InvariantsRaw:   invRaw,
		InvariantsBytes: invBytes,
		Faults:          faults,
		Seed:            runSeed,
		SeedGiven:       seedGiven,
		ArtifactDir:     artifact.Dir{Path: dir},
		Log:             log,
	}, nil
}

// resolveInvariantsOnly layers flags > config file > environment for the
// invariant set alone, used by `replay`/`shrink`: neither resolves a
// <system> directory (they replay entirely from a repro.json/trace.json),
// but both still need the invariant file to re-evaluate failures against.
func resolveInvariantsOnly(opts *RootOptions, flagsSetMap map[string]bool) (config.Config, []*predicate.Invariant, jsonval.Value, []byte, error) {
	var file *config.File
	if opts.ConfigPath != "" {
		f, err := config.LoadFile(opts.ConfigPath)
		if err != nil {
			return config.Config{}, nil, nil, nil, WrapExitError(ExitAdapterBuildError, "load config file", err)
		}
		file = f
	}

	env, err := config.ReadEnv()
	if err != nil {
		return config.Config{}, nil, nil, nil, WrapExitError(ExitAdapterBuildError, "read environment", err)
	}

	var flagCfg config.Config
	flagCfg.CI = opts.CI
	flagCfg.InvariantsPath = opts.Invariants
	flagCfg.Verbose = opts.Verbose
	flagCfg.Format = opts.Format

	cfg := config.Resolve(file, env, flagCfg, flagsSetMap)
	if cfg.InvariantsPath == "" {
		return config.Config{}, nil, nil, nil, NewExitError(ExitAdapterBuildError, "no --invariants path given (flag, config file, or NOMERCY_INVARIANTS)")
	}

	invariants, invRaw, err := loadInvariants(cfg.InvariantsPath)
	if err != nil {
		return config.Config{}, nil, nil, nil, WrapExitError(ExitAdapterBuildError, "load invariants", err)
	}
	invBytes, err := jsonval.MarshalCanonical(invRaw)
	if err != nil {
		return config.Config{}, nil, nil, nil, WrapExitError(ExitInternalBug, "canonicalize invariants", err)
	}
	return cfg, invariants, invRaw, invBytes, nil
}

// adapterTimeout returns the configured per-command protocol deadline.
func (r *resolvedRun) adapterTimeout() time.Duration {
	if r.Cfg.AdapterTimeoutMs <= 0 {
		return session.DefaultTimeout
	}
	return time.Duration(r.Cfg.AdapterTimeoutMs) * time.Millisecond
}

// startSession spawns the system's adapter process, owned exclusively by
// the returned Session for the lifetime of one run.
func (r *resolvedRun) startSession(ctx context.Context, stderrSink io.Writer) (*session.Session, error) {
	return session.Start(ctx, r.Sys.Argv, r.adapterTimeout(), stderrSink, r.Log)
}

// qualifyCached runs (or reuses a cached) static determinism
// qualification result for the system, so `pray`/`explore` can qualify
// implicitly when it has not already been done.
func (r *resolvedRun) qualifyCached(ctx context.Context, histPath string) (*history.Result, error) {
	store, err := history.Open(histPath)
	if err != nil {
		return nil, fmt.Errorf("cli: open history store: %w", err)
	}
	defer store.Close()

	if cached, err := store.Lookup(ctx, r.Sys.ManifestHash); err == nil && cached != nil {
		return cached, nil
	}

	manifestRaw, err := os.ReadFile(filepath.Join(r.Sys.Dir, "adapter.manifest.json"))
	if err != nil {
		return nil, err
	}
	res, err := qualifySystem(manifestRaw, r.Sys.ManifestRaw, r.InvariantsBytes, r.InvariantsRaw)
	if err != nil {
		return nil, err
	}

	reason := ""
	if len(res.Findings) > 0 {
		msgs := make([]string, len(res.Findings))
		for i, f := range res.Findings {
			msgs[i] = f.Code + ": " + f.Message
		}
		reason = strings.Join(msgs, "; ")
	}
	rec := history.Result{
		AdapterManifestHash: r.Sys.ManifestHash,
		Deterministic:       res.Deterministic,
		Reason:              reason,
	}
	if err := store.Record(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// lookPathHint improves a "no such file" adapter spawn error with a
// one-line hint, since exec.Cmd's own error is terse.
func lookPathHint(argv []string, err error) error {
	if _, lerr := exec.LookPath(argv[0]); lerr != nil {
		return fmt.Errorf("%w (adapter executable not found at %s)", err, argv[0])
	}
	return err
}
