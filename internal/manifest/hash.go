package manifest

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

// Domain prefixes for other content-addressed identities the repro
// artifact needs, kept alongside DomainManifest so every run-level hash
// shares one derivation helper.
const (
	DomainInvariantFile  = "nomercy/invariant_file/v1"
	DomainFaultSchedule  = "nomercy/fault_schedule/v1"
)

// HashValue canonicalizes v and hashes it under domain. Used for
// invariant_file_hash and fault_schedule_hash alongside the manifest's own
// checksum derivation.
func HashValue(domain string, v jsonval.Value) (string, error) {
	canonical, err := jsonval.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return hashWithDomain(domain, canonical), nil
}

// hashWithDomain computes a domain-separated SHA-256 digest: the domain
// prefix and a null byte precede the payload so no domain/data boundary
// can be forged by prefix concatenation.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
