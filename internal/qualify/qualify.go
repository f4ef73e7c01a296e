// Package qualify implements static determinism qualification (the `beg`
// command): structural checks against an adapter manifest and
// invariant file that issue no commands and run before any simulation.
package qualify

import (
	"fmt"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/manifest"
	"github.com/nomercy-sim/nomercy/internal/predicate"
	"github.com/nomercy-sim/nomercy/internal/schemaval"
)

// Finding is one structural reason the system was disqualified.
type Finding struct {
	Code    string
	Message string
}

// Result is the outcome of a qualification pass.
type Result struct {
	Deterministic bool
	Findings      []Finding
	ManifestHash  string
}

// Qualify runs every static check required before a system may be
// simulated: manifest schema + checksum, invariant schema + load,
// and the conservative floating-point portability rule ("aggregate sum
// over doubles that cannot be proven platform-stable is flagged
// non-portable" — since no static type information distinguishes
// integer-valued from general doubles at a path, every `aggregate sum`
// node is conservatively rejected).
func Qualify(manifestRaw []byte, manifestJSON jsonval.Value, invariantsRaw []byte, invariantsJSON jsonval.Value) (*Result, error) {
	res := &Result{Deterministic: true}

	if err := schemaval.ValidateManifest(manifestRaw); err != nil {
		res.Deterministic = false
		res.Findings = append(res.Findings, Finding{Code: "manifest_schema", Message: err.Error()})
	}

	m, err := manifest.Parse(manifestJSON)
	if err != nil {
		res.Deterministic = false
		res.Findings = append(res.Findings, Finding{Code: "manifest_parse", Message: err.Error()})
	} else {
		hash, err := manifest.Hash(manifestJSON)
		if err != nil {
			res.Deterministic = false
			res.Findings = append(res.Findings, Finding{Code: "manifest_hash", Message: err.Error()})
		} else {
			res.ManifestHash = hash
			if hash != m.Checksum {
				res.Deterministic = false
				res.Findings = append(res.Findings, Finding{Code: "checksum_mismatch", Message: fmt.Sprintf("manifest checksum %s disagrees with computed %s", m.Checksum, hash)})
			}
		}
	}

	if err := schemaval.ValidateInvariants(invariantsRaw); err != nil {
		res.Deterministic = false
		res.Findings = append(res.Findings, Finding{Code: "invariant_schema", Message: err.Error()})
	}

	invariants, err := predicate.LoadSet(invariantsJSON)
	if err != nil {
		res.Deterministic = false
		res.Findings = append(res.Findings, Finding{Code: "invariant_load", Message: err.Error()})
	} else {
		for _, inv := range invariants {
			if issues := findNonPortableSums(inv.Predicate); len(issues) > 0 {
				res.Deterministic = false
				for _, path := range issues {
					res.Findings = append(res.Findings, Finding{
						Code:    "non_portable_aggregate",
						Message: fmt.Sprintf("invariant %q: aggregate sum over %q cannot be proven platform-stable", inv.Name, path),
					})
				}
			}
		}
	}

	return res, nil
}

func mustBytes(v jsonval.Value) []byte {
	b, err := jsonval.MarshalCanonical(v)
	if err != nil {
		return nil
	}
	return b
}

// findNonPortableSums walks pred looking for aggregate-sum nodes, which
// conservative floating-point rule always flags.
func findNonPortableSums(n predicate.Node) []string {
	var out []string
	switch node := n.(type) {
	case predicate.And:
		for _, p := range node.Predicates {
			out = append(out, findNonPortableSums(p)...)
		}
	case predicate.Or:
		for _, p := range node.Predicates {
			out = append(out, findNonPortableSums(p)...)
		}
	case predicate.Not:
		out = append(out, findNonPortableSums(node.Predicate)...)
	case predicate.Forall:
		out = append(out, findNonPortableSums(node.Predicate)...)
	case predicate.Aggregate:
		if node.Agg == predicate.AggSum {
			out = append(out, node.Path)
		}
	}
	return out
}
