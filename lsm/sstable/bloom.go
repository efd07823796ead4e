package sstable

import (
	"encoding/binary"
	"math"

	"vecql/dberrors"
	"vecql/hashutil"
)

var errShortBloom = dberrors.New(dberrors.KindCorruption, "bloom: truncated filter blob")

// Bloom is a per-SST probabilistic membership filter over user keys (spec
// §3, §4.2). It must have no false negatives: every key added must later
// test positive. Grounded on structures/bloom_filter package
// for the m/k sizing formulas, adapted to double hashing off a single
// MurmurHash2-64A digest instead of per-function seeded hashes.
type Bloom struct {
	m    uint32 // bit array size
	k    uint32 // number of probe hashes
	bits []byte
}

// NewBloom sizes a filter for expectedElements keys at bitsPerKey bits/key.
func NewBloom(expectedElements, bitsPerKey int) *Bloom {
	if expectedElements < 1 {
		expectedElements = 1
	}
	if bitsPerKey < 1 {
		bitsPerKey = 1
	}
	m := uint32(expectedElements * bitsPerKey)
	if m < 8 {
		m = 8
	}
	k := uint32(math.Round(float64(bitsPerKey) * math.Ln2))
	if k < 1 {
		k = 1
	}
	if k > 30 {
		k = 30
	}
	return &Bloom{m: m, k: k, bits: make([]byte, (m+7)/8)}
}

// probes returns the k bit positions for a user key's digest, via Kirsch-
// Mitzenmacher double hashing: h_i = h1 + i*h2 (mod m), h2 forced odd so it
// is coprime with any power-of-two-ish m and visits distinct bits.
func (bf *Bloom) probes(digest uint64) []uint32 {
	h1 := uint32(digest)
	h2 := uint32(digest>>32) | 1
	out := make([]uint32, bf.k)
	for i := uint32(0); i < bf.k; i++ {
		out[i] = (h1 + i*h2) % bf.m
	}
	return out
}

// AddKey sets the bits for a raw user key.
func (bf *Bloom) AddKey(userKey []byte) {
	bf.AddDigest(hashutil.Hash64A(userKey, hashutil.BloomSeed))
}

// AddDigest sets the bits for a precomputed MurmurHash2-64A digest, letting
// the builder reuse a digest it already computed for other purposes.
func (bf *Bloom) AddDigest(digest uint64) {
	for _, pos := range bf.probes(digest) {
		bf.bits[pos/8] |= 1 << (pos % 8)
	}
}

// TestKey reports whether userKey may be present (true) or is definitely
// absent (false).
func (bf *Bloom) TestKey(userKey []byte) bool {
	return bf.TestDigest(hashutil.Hash64A(userKey, hashutil.BloomSeed))
}

// TestDigest is TestKey for a precomputed digest.
func (bf *Bloom) TestDigest(digest uint64) bool {
	for _, pos := range bf.probes(digest) {
		if bf.bits[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

// Encode serializes the filter as [u32 m][u32 k][bit array].
func (bf *Bloom) Encode() []byte {
	out := make([]byte, 8+len(bf.bits))
	binary.LittleEndian.PutUint32(out[0:4], bf.m)
	binary.LittleEndian.PutUint32(out[4:8], bf.k)
	copy(out[8:], bf.bits)
	return out
}

// DecodeBloom parses the Encode format back into a Bloom.
func DecodeBloom(data []byte) (*Bloom, error) {
	if len(data) < 8 {
		return nil, errShortBloom
	}
	m := binary.LittleEndian.Uint32(data[0:4])
	k := binary.LittleEndian.Uint32(data[4:8])
	bits := append([]byte(nil), data[8:]...)
	return &Bloom{m: m, k: k, bits: bits}, nil
}
