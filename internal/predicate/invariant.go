package predicate

import (
	"fmt"
	"regexp"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

// Invariant pairs a compiled predicate with its source metadata.
type Invariant struct {
	Name      string
	Predicate Node
	Message   string
	raw       jsonval.Value // retained for failure-record serialization
}

// Raw returns the original JSON-encoded predicate AST, for embedding
// verbatim in a failure record's canonical-JSON predicate field.
func (inv *Invariant) Raw() jsonval.Value { return inv.raw }

var nameRe = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)*$`)

// LoadSet parses an invariant file's top-level array, enforcing name
// uniqueness and the snake_case-with-dot-segments naming convention.
func LoadSet(v jsonval.Value) ([]*Invariant, error) {
	arr, ok := v.(jsonval.Array)
	if !ok {
		return nil, &ParseError{Msg: "invariant file root must be an array"}
	}
	seen := map[string]bool{}
	out := make([]*Invariant, 0, len(arr))
	for i, item := range arr {
		obj, ok := item.(jsonval.Object)
		if !ok {
			return nil, &ParseError{Msg: fmt.Sprintf("invariant[%d] must be an object", i)}
		}
		name, err := requireStringField(obj, "name")
		if err != nil {
			return nil, fmt.Errorf("invariant[%d]: %w", i, err)
		}
		if !nameRe.MatchString(name) {
			return nil, &ParseError{Msg: fmt.Sprintf("invariant[%d]: name %q is not snake_case-with-dot-segments", i, name)}
		}
		if seen[name] {
			return nil, &ParseError{Msg: fmt.Sprintf("duplicate invariant name %q", name)}
		}
		seen[name] = true

		predVal, ok := obj["predicate"]
		if !ok {
			return nil, &ParseError{Msg: fmt.Sprintf("invariant %q missing 'predicate'", name)}
		}
		pred, err := Parse(predVal)
		if err != nil {
			return nil, fmt.Errorf("invariant %q: %w", name, err)
		}
		message, err := requireStringField(obj, "message")
		if err != nil {
			return nil, fmt.Errorf("invariant %q: %w", name, err)
		}
		out = append(out, &Invariant{Name: name, Predicate: pred, Message: message, raw: predVal})
	}
	return out, nil
}

// FailureRecord is the deterministic record produced when an invariant
// fails.
type FailureRecord struct {
	Name             string
	Predicate        jsonval.Value
	Message          string
	Observation      jsonval.Value
	Step             int64
	FaultScheduleHash string
}

// ToValue renders the failure record as the canonical JSON object stored
// in repro.json's failing_invariant field.
func (r *FailureRecord) ToValue() jsonval.Value {
	obs := r.Observation
	if obs == nil {
		obs = jsonval.Object{}
	}
	return jsonval.Object{
		"name":                jsonval.String(r.Name),
		"predicate":           r.Predicate,
		"message":             jsonval.String(r.Message),
		"observation":         obs,
		"step":                jsonval.Number(float64(r.Step)),
		"fault_schedule_hash": jsonval.String(r.FaultScheduleHash),
	}
}
