package manifest

import (
	"testing"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

func validManifestValue(t *testing.T, checksum string) jsonval.Object {
	t.Helper()
	return jsonval.Object{
		"protocol_version":  jsonval.String("1.0"),
		"generator_version": jsonval.String("1.0"),
		"op_catalog": jsonval.Object{
			"increment": jsonval.Object{},
		},
		"checksum": jsonval.String(checksum),
	}
}

func TestParseRequiresChecksum(t *testing.T) {
	v := validManifestValue(t, "deadbeef")
	delete(v, "checksum")
	if _, err := Parse(v); err == nil {
		t.Fatal("expected error for missing checksum")
	}
}

func TestHashIsStableAndExcludesChecksum(t *testing.T) {
	v1 := validManifestValue(t, "aaaa")
	v2 := validManifestValue(t, "bbbb")
	h1, err := Hash(v1)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := Hash(v2)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("hash must be independent of checksum field: %s vs %s", h1, h2)
	}
}

func TestVerifyDetectsMismatch(t *testing.T) {
	v := validManifestValue(t, "wrong")
	m, err := Parse(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(v, m, ""); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestVerifyAcceptsCorrectChecksumAndSibling(t *testing.T) {
	stripped := validManifestValue(t, "placeholder")
	delete(stripped, "checksum")
	hash, err := Hash(stripped)
	if err != nil {
		t.Fatal(err)
	}
	v := validManifestValue(t, hash)
	m, err := Parse(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(v, m, hash); err != nil {
		t.Fatalf("expected verify to succeed, got %v", err)
	}
}

func TestVerifyDetectsSiblingDisagreement(t *testing.T) {
	stripped := validManifestValue(t, "placeholder")
	delete(stripped, "checksum")
	hash, err := Hash(stripped)
	if err != nil {
		t.Fatal(err)
	}
	v := validManifestValue(t, hash)
	m, err := Parse(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(v, m, "not-the-same"); err == nil {
		t.Fatal("expected sibling checksum mismatch error")
	}
}

func TestResourceSetOpenWhenAbsent(t *testing.T) {
	m := &Manifest{}
	_, declared := m.ResourceSet()
	if declared {
		t.Fatal("expected no declared resource set")
	}
}

func TestResourceSetClosed(t *testing.T) {
	m := &Manifest{Resources: []string{"net", "disk"}}
	set, declared := m.ResourceSet()
	if !declared {
		t.Fatal("expected declared resource set")
	}
	if !set["net"] || !set["disk"] || set["db"] {
		t.Fatalf("unexpected resource set: %+v", set)
	}
}
