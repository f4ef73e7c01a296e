package schemaval

import "testing"

func TestValidateManifestAccepts(t *testing.T) {
	raw := []byte(`{
		"protocol_version": "1.0",
		"generator_version": "1.0",
		"op_catalog": {"deposit": {}},
		"config_schema": {},
		"input_hashes": {},
		"resources": ["storage"],
		"env_allowlist": [],
		"checksum": "` + fortyTwoZeroHex() + `"
	}`)
	if err := ValidateManifest(raw); err != nil {
		t.Fatalf("expected valid manifest, got %v", err)
	}
}

func TestValidateManifestRejectsMissingField(t *testing.T) {
	raw := []byte(`{
		"protocol_version": "1.0",
		"op_catalog": {},
		"config_schema": {},
		"input_hashes": {},
		"checksum": "` + fortyTwoZeroHex() + `"
	}`)
	if err := ValidateManifest(raw); err == nil {
		t.Fatalf("expected validation error for missing generator_version")
	}
}

func TestValidateInvariantsAccepts(t *testing.T) {
	raw := []byte(`[
		{"name": "balance_non_negative", "predicate": {"kind": "cmp", "op": "gte", "left": {}, "right": 0}, "message": "negative balance"}
	]`)
	if err := ValidateInvariants(raw); err != nil {
		t.Fatalf("expected valid invariants, got %v", err)
	}
}

func TestValidateInvariantsRejectsBadName(t *testing.T) {
	raw := []byte(`[
		{"name": "Bad-Name", "predicate": {}, "message": "x"}
	]`)
	if err := ValidateInvariants(raw); err == nil {
		t.Fatalf("expected validation error for bad name")
	}
}

func fortyTwoZeroHex() string {
	s := ""
	for i := 0; i < 64; i++ {
		s += "0"
	}
	return s
}
