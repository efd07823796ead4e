// Package hashutil implements the hash primitives mandates bit-exact
// reproduction of: a MurmurHash2-64A variant used by bloom filters (seed 0)
// and by hash-join bucket keys (seed chaining starting at 0x1234). No
// third-party package reproduces this exact 64-bit variant (they implement
// MurmurHash3 or a different 64A byte order), so it is hand-written here;
// see DESIGN.md.
package hashutil

import "encoding/binary"

const (
	murmurMul uint64 = 0xc6a4a7935bd1e995
	murmurR          = 47
)

// Hash64A computes the MurmurHash2-64A digest of data with the given seed.
func Hash64A(data []byte, seed uint64) uint64 {
	n := len(data)
	h := seed ^ (uint64(n) * murmurMul)

	body := n - n%8
	for i := 0; i < body; i += 8 {
		k := binary.LittleEndian.Uint64(data[i : i+8])
		k *= murmurMul
		k ^= k >> murmurR
		k *= murmurMul

		h ^= k
		h *= murmurMul
	}

	tail := data[body:]
	switch len(tail) {
	case 7:
		h ^= uint64(tail[6]) << 48
		fallthrough
	case 6:
		h ^= uint64(tail[5]) << 40
		fallthrough
	case 5:
		h ^= uint64(tail[4]) << 32
		fallthrough
	case 4:
		h ^= uint64(tail[3]) << 24
		fallthrough
	case 3:
		h ^= uint64(tail[2]) << 16
		fallthrough
	case 2:
		h ^= uint64(tail[1]) << 8
		fallthrough
	case 1:
		h ^= uint64(tail[0])
		h *= murmurMul
	}

	h ^= h >> murmurR
	h *= murmurMul
	h ^= h >> murmurR
	return h
}

// Hash64A8 computes the fixed-width (8-byte scalar) variant used to hash a
// single uint64 — e.g. a numeric join key or bit-cast float key.
func Hash64A8(value uint64, seed uint64) uint64 {
	h := seed ^ murmurMul

	k := value
	k *= murmurMul
	k ^= k >> murmurR
	k *= murmurMul

	h ^= k
	h *= murmurMul

	h ^= h >> murmurR
	h *= murmurMul
	h ^= h >> murmurR
	return h
}

// BloomSeed is the fixed seed used when hashing user keys into a bloom
// filter.
const BloomSeed uint64 = 0

// JoinSeed is the fixed starting seed for hash-join bucket-key chaining.
const JoinSeed uint64 = 0x1234
