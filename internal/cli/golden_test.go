package cli

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TestOutputTextGolden pins the exact plain-text rendering Emit produces
// for a failure report. Regenerate with
// `go test ./internal/cli -run TestOutputTextGolden -update` if a
// deliberate change to the text grammar changes this output.
func TestOutputTextGolden(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	report := &Report{Status: "invariant_failed"}
	sec := report.AddSection("failure")
	sec.Add("kind", "invariant_failed")
	sec.Add("step", "42")

	if err := f.Emit(report); err != nil {
		t.Fatalf("emit: %v", err)
	}

	g := goldie.New(t)
	g.Assert(t, "output_text", buf.Bytes())
}
