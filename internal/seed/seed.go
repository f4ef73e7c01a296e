// Package seed derives the run seed when --seed is absent:
// seed = siphash-2-4(engine_version ∥ adapter_manifest_hash). No pure-Go
// SipHash implementation appears anywhere in the example pack, so this is
// implemented directly against the published SipHash-2-4 algorithm — see
// DESIGN.md.
package seed

import "encoding/binary"

// fixed SipHash key. A constant, published key is sufficient here: the
// derivation only needs to be a stable deterministic function of its
// inputs, not a keyed MAC resistant to adversarial key recovery.
var key = [16]byte{
	0x6e, 0x6f, 0x6d, 0x65, 0x72, 0x63, 0x79, 0x2d,
	0x73, 0x69, 0x70, 0x68, 0x61, 0x73, 0x68, 0x2d,
}

// Derive computes the deterministic default seed from engineVersion and
// adapterManifestHash.
func Derive(engineVersion, adapterManifestHash string) uint64 {
	data := make([]byte, 0, len(engineVersion)+len(adapterManifestHash))
	data = append(data, []byte(engineVersion)...)
	data = append(data, []byte(adapterManifestHash)...)
	return SipHash24(key, data)
}

// SipHash24 implements SipHash-2-4 (2 compression rounds, 4 finalization
// rounds) over data with the given 128-bit key.
func SipHash24(key [16]byte, data []byte) uint64 {
	k0 := binary.LittleEndian.Uint64(key[0:8])
	k1 := binary.LittleEndian.Uint64(key[8:16])

	v0 := k0 ^ 0x736f6d6570736575
	v1 := k1 ^ 0x646f72616e646f6d
	v2 := k0 ^ 0x6c7967656e657261
	v3 := k1 ^ 0x7465646279746573

	length := len(data)
	end := length - (length % 8)

	for i := 0; i < end; i += 8 {
		m := binary.LittleEndian.Uint64(data[i : i+8])
		v3 ^= m
		v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
		v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
		v0 ^= m
	}

	var last [8]byte
	copy(last[:], data[end:])
	last[7] = byte(length)
	m := binary.LittleEndian.Uint64(last[:])
	v3 ^= m
	v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
	v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
	v0 ^= m

	v2 ^= 0xff
	v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
	v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
	v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
	v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)

	return v0 ^ v1 ^ v2 ^ v3
}

func sipRound(v0, v1, v2, v3 uint64) (uint64, uint64, uint64, uint64) {
	v0 += v1
	v1 = rotl(v1, 13)
	v1 ^= v0
	v0 = rotl(v0, 32)
	v2 += v3
	v3 = rotl(v3, 16)
	v3 ^= v2
	v0 += v3
	v3 = rotl(v3, 21)
	v3 ^= v0
	v2 += v1
	v1 = rotl(v1, 17)
	v1 ^= v2
	v2 = rotl(v2, 32)
	return v0, v1, v2, v3
}

func rotl(x uint64, b uint) uint64 {
	return (x << b) | (x >> (64 - b))
}
