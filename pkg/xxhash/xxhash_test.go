package xxhash

import (
	"math/rand"
	"testing"

	cxxhash "github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownVectors(t *testing.T) {
	tests := []struct {
		input string
		want  uint64
	}{
		{"", 0xEF46DB3751D8E999},
		{"a", 0xD24EC4F1A98C6E5B},
		{"abc", 0x44BC2CF5AD770999},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Sum64String(tt.input, 0), "input %q", tt.input)
		assert.Equal(t, tt.want, Sum64([]byte(tt.input), 0), "input %q", tt.input)
	}
}

// The unseeded fast path and the seeded digest path must agree at seed 0.
func TestFastPathMatchesDigest(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for _, n := range []int{0, 1, 3, 4, 7, 8, 15, 16, 31, 32, 33, 63, 64, 65, 100, 1000, 4096} {
		data := make([]byte, n)
		rng.Read(data)
		d := cxxhash.NewWithSeed(0)
		_, err := d.Write(data)
		require.NoError(t, err)
		require.Equal(t, d.Sum64(), Sum64(data, 0), "length %d", n)
	}
}

func TestSeeded(t *testing.T) {
	data := "tessera bloom filter key with a seed"
	seen := map[uint64]uint64{}
	for _, seed := range []uint64{0, 1, 42, 0xDEADBEEF, ^uint64(0)} {
		h := Sum64([]byte(data), seed)
		assert.Equal(t, h, Sum64String(data, seed), "seed %d", seed)
		if prev, ok := seen[h]; ok {
			t.Fatalf("seeds %d and %d collide", prev, seed)
		}
		seen[h] = seed
	}
}

func TestStable(t *testing.T) {
	data := []byte("repeatable")
	first := Sum64(data, 7)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Sum64(data, 7))
	}
	assert.NotEqual(t, first, Sum64(data, 8))
}

func BenchmarkSum64(b *testing.B) {
	data := make([]byte, 4096)
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		Sum64(data, 0)
	}
}
