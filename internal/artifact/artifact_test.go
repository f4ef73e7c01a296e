package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

func TestWriteCanonicalProducesCanonicalBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	v := jsonval.Object{"b": jsonval.Number(1), "a": jsonval.Number(2)}
	if err := WriteCanonical(path, v); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want, err := jsonval.MarshalCanonical(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestWriteAtomicLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	if err := WriteAtomic(path, []byte("payload")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.bin" {
		t.Fatalf("expected exactly out.bin, got %+v", entries)
	}
}

func TestWriteAtomicOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	if err := WriteAtomic(path, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := WriteAtomic(path, []byte("second")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("got %q", got)
	}
}

func TestDirWritesAllNamedArtifacts(t *testing.T) {
	dir := Dir{Path: t.TempDir()}
	v := jsonval.Object{"ok": jsonval.Bool(true)}

	if err := dir.WriteRepro(v); err != nil {
		t.Fatal(err)
	}
	if err := dir.WriteTrace(v); err != nil {
		t.Fatal(err)
	}
	if err := dir.WriteReproShrunk(v); err != nil {
		t.Fatal(err)
	}
	if err := dir.WriteTraceShrunk(v); err != nil {
		t.Fatal(err)
	}
	if err := dir.WriteTraceReplayed(v); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{Repro, Trace, ReproShrunk, TraceShrunk, TraceReplayed} {
		if _, err := os.Stat(filepath.Join(dir.Path, name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}
}

func TestEnsureDirCreatesNestedPath(t *testing.T) {
	base := t.TempDir()
	nested := filepath.Join(base, "a", "b", "c")
	if err := EnsureDir(nested); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(nested); err != nil || !info.IsDir() {
		t.Fatalf("expected %s to be a directory", nested)
	}
}
