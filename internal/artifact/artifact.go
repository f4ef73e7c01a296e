// Package artifact implements durable, atomic persistence of run outputs
// (repro.json, trace.json, repro.shrunk.json, trace.shrunk.json,
// trace.replayed.json): every write lands via write-to-temp-then-rename so
// a crash mid-write never leaves a partial file at the final path.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

// WriteCanonical serializes v to canonical JSON and writes it atomically
// to path: a temp file in the same directory is written, fsynced, then
// renamed over path, so readers never observe a partially-written file.
func WriteCanonical(path string, v jsonval.Value) error {
	data, err := jsonval.MarshalCanonical(v)
	if err != nil {
		return fmt.Errorf("artifact: marshal %s: %w", path, err)
	}
	return WriteAtomic(path, data)
}

// WriteAtomic writes data to path via a temp-file-then-rename sequence.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".nomercy-tmp-*")
	if err != nil {
		return fmt.Errorf("artifact: create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("artifact: write temp %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("artifact: sync temp %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifact: close temp %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("artifact: rename %s -> %s: %w", tmpName, path, err)
	}
	return nil
}

// Names are the fixed filenames a run may emit under its output directory.
const (
	Repro           = "repro.json"
	Trace           = "trace.json"
	ReproShrunk     = "repro.shrunk.json"
	TraceShrunk     = "trace.shrunk.json"
	TraceReplayed   = "trace.replayed.json"
)

// Dir bundles a run's output directory with the fixed artifact names.
type Dir struct {
	Path string
}

func (d Dir) join(name string) string { return filepath.Join(d.Path, name) }

// ReproPath returns the path WriteRepro writes to, for callers that need
// to surface it (e.g. a failure report) after the write completes.
func (d Dir) ReproPath() string { return d.join(Repro) }

// WriteRepro writes the repro artifact.
func (d Dir) WriteRepro(v jsonval.Value) error { return WriteCanonical(d.join(Repro), v) }

// WriteTrace writes the trace artifact.
func (d Dir) WriteTrace(v jsonval.Value) error { return WriteCanonical(d.join(Trace), v) }

// WriteReproShrunk writes the shrunk repro artifact.
func (d Dir) WriteReproShrunk(v jsonval.Value) error { return WriteCanonical(d.join(ReproShrunk), v) }

// WriteTraceShrunk writes the shrunk trace artifact.
func (d Dir) WriteTraceShrunk(v jsonval.Value) error { return WriteCanonical(d.join(TraceShrunk), v) }

// WriteTraceReplayed writes the replayed-verification trace artifact.
func (d Dir) WriteTraceReplayed(v jsonval.Value) error {
	return WriteCanonical(d.join(TraceReplayed), v)
}

// TraceReplayedPath returns the path WriteTraceReplayed writes to.
func (d Dir) TraceReplayedPath() string { return d.join(TraceReplayed) }

// EnsureDir creates the output directory (and parents) if absent.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
