package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatterTextEmit(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	r := &Report{Status: "ok"}
	sec := r.AddSection("seed")
	sec.Add("value", "42")

	require.NoError(t, f.Emit(r))
	assert.Equal(t, "seed:\n  value=42\nstatus=ok\n", buf.String())
}

func TestOutputFormatterTextEmptySectionsOmitted(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	r := &Report{Status: "ok"}
	r.AddSection("empty")

	require.NoError(t, f.Emit(r))
	assert.Equal(t, "status=ok\n", buf.String())
}

func TestOutputFormatterJSONEmit(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	r := &Report{Status: "invariant_failed"}
	sec := r.AddSection("failure")
	sec.Add("name", "balances.non_negative")

	require.NoError(t, f.Emit(r))

	var decoded jsonReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "invariant_failed", decoded.Status)
	assert.Equal(t, "balances.non_negative", decoded.Sections["failure"]["name"])
}

func TestOutputFormatterVerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			f.VerboseLog("processing %s", "system-a")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "processing system-a")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	inner := assert.AnError
	e := WrapExitError(ExitProtocolError, "session failed", inner)
	assert.ErrorIs(t, e, inner)
	assert.Equal(t, ExitProtocolError, GetExitCode(e))
}

func TestGetExitCodeDefaultsToInternalBug(t *testing.T) {
	assert.Equal(t, ExitInternalBug, GetExitCode(assert.AnError))
}
