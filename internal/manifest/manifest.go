// Package manifest implements adapter manifest parsing and checksum
// verification: adapter.manifest.json describes an adapter's
// protocol surface, and a sibling adapter.checksum file pins it against
// regeneration drift.
package manifest

import (
	"fmt"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

// DomainManifest is the hash domain separator used when computing an
// adapter manifest's content-addressed checksum.
const DomainManifest = "nomercy/adapter_manifest/v1"

// Manifest is the parsed adapter.manifest.json document.
type Manifest struct {
	ProtocolVersion string
	GeneratorVersion string
	OpCatalog       jsonval.Object // name -> argument JSON schema
	ConfigSchema    jsonval.Value
	InputHashes     jsonval.Object
	Resources       []string // closed set of resource identifiers; nil means open
	EnvAllowlist    []string
	Checksum        string
	raw             jsonval.Object
}

// ParseError reports a malformed manifest document.
type ParseError struct{ Msg string }

func (e *ParseError) Error() string { return "manifest: " + e.Msg }

// Parse decodes a manifest document, validating the required top-level
// field names.
func Parse(v jsonval.Value) (*Manifest, error) {
	obj, ok := v.(jsonval.Object)
	if !ok {
		return nil, &ParseError{Msg: "manifest root must be an object"}
	}
	m := &Manifest{raw: obj}

	pv, err := requireString(obj, "protocol_version")
	if err != nil {
		return nil, err
	}
	m.ProtocolVersion = pv

	gv, err := requireString(obj, "generator_version")
	if err != nil {
		return nil, err
	}
	m.GeneratorVersion = gv

	catalog, ok := obj["op_catalog"].(jsonval.Object)
	if !ok {
		return nil, &ParseError{Msg: "missing or invalid 'op_catalog'"}
	}
	m.OpCatalog = catalog

	m.ConfigSchema = obj["config_schema"]

	if ih, ok := obj["input_hashes"].(jsonval.Object); ok {
		m.InputHashes = ih
	}

	if rv, ok := obj["resources"].(jsonval.Array); ok {
		for _, r := range rv {
			s, ok := r.(jsonval.String)
			if !ok {
				return nil, &ParseError{Msg: "'resources' elements must be strings"}
			}
			m.Resources = append(m.Resources, string(s))
		}
	}

	if ev, ok := obj["env_allowlist"].(jsonval.Array); ok {
		for _, e := range ev {
			s, ok := e.(jsonval.String)
			if !ok {
				return nil, &ParseError{Msg: "'env_allowlist' elements must be strings"}
			}
			m.EnvAllowlist = append(m.EnvAllowlist, string(s))
		}
	}

	cs, err := requireString(obj, "checksum")
	if err != nil {
		return nil, err
	}
	m.Checksum = cs

	return m, nil
}

func requireString(obj jsonval.Object, key string) (string, error) {
	v, ok := obj[key]
	if !ok {
		return "", &ParseError{Msg: fmt.Sprintf("missing %q", key)}
	}
	s, ok := v.(jsonval.String)
	if !ok {
		return "", &ParseError{Msg: fmt.Sprintf("%q must be a string", key)}
	}
	return string(s), nil
}

// ResourceSet reports the manifest's closed resource set, and whether one
// was declared at all (nil/absent means unrestricted — an unknown
// resource is only an error when a closed set is actually declared).
func (m *Manifest) ResourceSet() (map[string]bool, bool) {
	if m.Resources == nil {
		return nil, false
	}
	set := make(map[string]bool, len(m.Resources))
	for _, r := range m.Resources {
		set[r] = true
	}
	return set, true
}

// Hash recomputes the manifest's content-addressed digest over the
// canonical JSON of every field except checksum itself, so a manifest can
// be hashed before its own checksum is known.
func Hash(v jsonval.Value) (string, error) {
	obj, ok := v.(jsonval.Object)
	if !ok {
		return "", &ParseError{Msg: "manifest root must be an object"}
	}
	stripped := make(jsonval.Object, len(obj))
	for k, val := range obj {
		if k == "checksum" {
			continue
		}
		stripped[k] = val
	}
	canonical, err := jsonval.MarshalCanonical(stripped)
	if err != nil {
		return "", fmt.Errorf("manifest: hash: %w", err)
	}
	return hashWithDomain(DomainManifest, canonical), nil
}

// Verify reports whether m's recorded checksum matches its own content,
// and whether a separately-read adapter.checksum file byte agrees with it.
// The engine refuses to run on any disagreement.
func Verify(v jsonval.Value, m *Manifest, siblingChecksum string) error {
	computed, err := Hash(v)
	if err != nil {
		return err
	}
	if computed != m.Checksum {
		return &ChecksumMismatchError{Want: m.Checksum, Got: computed, Source: "manifest.checksum field"}
	}
	if siblingChecksum != "" && siblingChecksum != m.Checksum {
		return &ChecksumMismatchError{Want: m.Checksum, Got: siblingChecksum, Source: "adapter.checksum file"}
	}
	return nil
}

// ChecksumMismatchError reports a stale or disagreeing checksum, which is
// always fatal (adapter_build_error, exit code 3).
type ChecksumMismatchError struct {
	Want   string
	Got    string
	Source string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("manifest: checksum mismatch against %s: want %s, got %s", e.Source, e.Want, e.Got)
}
