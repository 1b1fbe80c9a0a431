// Package xxhash exposes the 64-bit xxHash used for Bloom filter keys and
// schema fingerprints.
//
// Hash values are written into Bloom filter blocks and must match other
// Parquet-compatible readers bit for bit. Unseeded hashing takes the
// library's assembly fast path; seeded hashing goes through a digest.
package xxhash

import (
	cxxhash "github.com/cespare/xxhash/v2"
)

// Sum64 returns the XXH64 hash of b with the given seed.
func Sum64(b []byte, seed uint64) uint64 {
	if seed == 0 {
		return cxxhash.Sum64(b)
	}
	d := cxxhash.NewWithSeed(seed)
	_, _ = d.Write(b) // never fails
	return d.Sum64()
}

// Sum64String is Sum64 over the bytes of s.
func Sum64String(s string, seed uint64) uint64 {
	if seed == 0 {
		return cxxhash.Sum64String(s)
	}
	d := cxxhash.NewWithSeed(seed)
	_, _ = d.WriteString(s)
	return d.Sum64()
}
