package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

// TestReproCanonicalGolden pins the exact byte layout WriteCanonical
// produces for a repro-shaped document, through the real write-temp-then-
// rename path rather than just the encoder. Regenerate with
// `go test ./internal/artifact -run TestReproCanonicalGolden -update` if a
// deliberate change to the repro shape or the canonical encoder changes
// this output.
func TestReproCanonicalGolden(t *testing.T) {
	repro := jsonval.Object{
		"engine_version":        jsonval.String("1"),
		"adapter_manifest_hash": jsonval.String("deadbeef"),
		"seed":                  jsonval.Number(42),
		"ops": jsonval.Array{
			jsonval.Object{"step": jsonval.Number(1), "cmd": jsonval.String("apply")},
			jsonval.Object{"step": jsonval.Number(2), "cmd": jsonval.String("observe")},
		},
		"fault_schedule": jsonval.Array{
			jsonval.Object{"step": jsonval.Number(2), "kind": jsonval.String("crash")},
		},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, Repro)
	if err := WriteCanonical(path, repro); err != nil {
		t.Fatalf("write repro: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read repro: %v", err)
	}

	g := goldie.New(t)
	g.Assert(t, "repro_canonical", got)
}
