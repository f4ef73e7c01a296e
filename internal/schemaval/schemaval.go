// Package schemaval structurally validates adapter.manifest.json and
// invariant files against CUE constraint schemas before the engine ever
// loads them: schema gating against the CUE compiler rather than
// concept-spec compilation.
package schemaval

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// manifestSchema constrains adapter.manifest.json's required shape. Loose
// on purpose: op_catalog/config_schema are themselves adapter-declared
// schemas, validated by the engine's own wire checks, not by this layer.
const manifestSchema = `
protocol_version: string
generator_version: string
op_catalog: {...}
config_schema: _
input_hashes: {...}
resources: [...string] | *[]
env_allowlist: [...string] | *[]
checksum: string & =~"^[0-9a-f]{64}$"
`

// invariantSchema constrains the top-level shape of an invariant file: an
// array (possibly empty) of named predicate/message pairs. The predicate AST
// itself is validated by internal/predicate, which applies the tighter,
// tagged-variant-aware rules; this layer only catches gross structural
// errors before that parser ever runs.
const invariantSchema = `
[...{
	name: string & =~"^[a-z0-9_]+(\\.[a-z0-9_]+)*$"
	predicate: {...}
	message: string
}]
`

// Error reports a schema validation failure, with the underlying CUE
// diagnostic preserved for --verbose output.
type Error struct {
	Schema string
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("schemaval: %s: %v", e.Schema, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// ValidateManifest validates raw adapter.manifest.json bytes against
// manifestSchema.
func ValidateManifest(raw []byte) error {
	return validateAgainst("adapter.manifest.json", manifestSchema, raw)
}

// ValidateInvariants validates raw invariant-file bytes against
// invariantSchema.
func ValidateInvariants(raw []byte) error {
	return validateAgainst("invariants", invariantSchema, raw)
}

func validateAgainst(label, schema string, raw []byte) error {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileString(schema)
	if err := schemaVal.Err(); err != nil {
		return &Error{Schema: label, Err: fmt.Errorf("internal schema invalid: %w", err)}
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return &Error{Schema: label, Err: fmt.Errorf("not valid JSON: %w", err)}
	}

	dataVal := ctx.Encode(generic)
	if err := dataVal.Err(); err != nil {
		return &Error{Schema: label, Err: err}
	}

	unified := schemaVal.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &Error{Schema: label, Err: err}
	}
	return nil
}
