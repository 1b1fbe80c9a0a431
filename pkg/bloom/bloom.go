// Package bloom implements the Parquet split-block Bloom filter.
//
// A filter is a sequence of 32-byte blocks, each holding eight 32-bit words.
// A 64-bit key hash selects one block with its upper half and sets one bit in
// every word of that block from its lower half, so lookups touch a single
// cache line. Keys are xxHash64 digests of the plain-encoded column value.
package bloom

import (
	"encoding/binary"
	"math/bits"

	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/xxhash"
)

const (
	// BlockSize is the size in bytes of one filter block.
	BlockSize = 32
	// MinBytes is the smallest filter size.
	MinBytes = BlockSize
	// MaxBytes is the largest filter size.
	MaxBytes = 128 * 1024 * 1024
	// DefaultBitsPerValue gives roughly a 1% false positive rate.
	DefaultBitsPerValue = 10

	wordsPerBlock = 8
)

var salt = [wordsPerBlock]uint32{
	0x47b6137b, 0x44974d91, 0x8824ad5b, 0xa2b7289d,
	0x705495c7, 0x2df1424b, 0x9efc4947, 0x5c6bfb31,
}

type block [wordsPerBlock]uint32

// Filter is a split-block Bloom filter. The zero value is not usable.
type Filter struct {
	blocks []block
}

// New returns an empty filter of numBytes bytes, rounded up to a whole
// block and clamped to [MinBytes, MaxBytes].
func New(numBytes int) *Filter {
	if numBytes < MinBytes {
		numBytes = MinBytes
	}
	if numBytes > MaxBytes {
		numBytes = MaxBytes
	}
	n := (numBytes + BlockSize - 1) / BlockSize
	return &Filter{blocks: make([]block, n)}
}

// NewForValues sizes a filter for n distinct values at bitsPerValue bits per
// value. The size is a power of two.
func NewForValues(n int, bitsPerValue int) *Filter {
	return New(OptimalBytes(n, bitsPerValue))
}

// OptimalBytes returns the power-of-two filter size for n values.
func OptimalBytes(n int, bitsPerValue int) int {
	if bitsPerValue <= 0 {
		bitsPerValue = DefaultBitsPerValue
	}
	if n < 0 {
		n = 0
	}
	want := uint64(n) * uint64(bitsPerValue) / 8
	if want <= MinBytes {
		return MinBytes
	}
	if want >= MaxBytes {
		return MaxBytes
	}
	return 1 << bits.Len64(want-1)
}

// FromBytes decodes a filter serialized by Bytes.
func FromBytes(b []byte) (*Filter, error) {
	if len(b) == 0 || len(b)%BlockSize != 0 {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
			"bloom filter size %d is not a positive multiple of %d", len(b), BlockSize)
	}
	if len(b) > MaxBytes {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat, "bloom filter size %d exceeds %d", len(b), MaxBytes)
	}
	f := &Filter{blocks: make([]block, len(b)/BlockSize)}
	for i := range f.blocks {
		for w := 0; w < wordsPerBlock; w++ {
			f.blocks[i][w] = binary.LittleEndian.Uint32(b[i*BlockSize+w*4:])
		}
	}
	return f, nil
}

// Size returns the serialized size in bytes.
func (f *Filter) Size() int { return len(f.blocks) * BlockSize }

// Bytes serializes the filter, words little-endian.
func (f *Filter) Bytes() []byte {
	out := make([]byte, f.Size())
	for i := range f.blocks {
		for w := 0; w < wordsPerBlock; w++ {
			binary.LittleEndian.PutUint32(out[i*BlockSize+w*4:], f.blocks[i][w])
		}
	}
	return out
}

func (f *Filter) blockFor(h uint64) *block {
	idx := ((h >> 32) * uint64(len(f.blocks))) >> 32
	return &f.blocks[idx]
}

func mask(x uint32) block {
	var m block
	for i := range m {
		m[i] = 1 << ((x * salt[i]) >> 27)
	}
	return m
}

// Insert adds a key hash.
func (f *Filter) Insert(h uint64) {
	b := f.blockFor(h)
	m := mask(uint32(h))
	for i := range b {
		b[i] |= m[i]
	}
}

// Check reports whether h may have been inserted. False positives are
// possible; false negatives are not.
func (f *Filter) Check(h uint64) bool {
	b := f.blockFor(h)
	m := mask(uint32(h))
	for i := range b {
		if b[i]&m[i] == 0 {
			return false
		}
	}
	return true
}

// InsertValue hashes a plain-encoded value and inserts it.
func (f *Filter) InsertValue(plain []byte) { f.Insert(Hash(plain)) }

// CheckValue hashes a plain-encoded value and checks it.
func (f *Filter) CheckValue(plain []byte) bool { return f.Check(Hash(plain)) }

// Hash returns the filter key for a plain-encoded value.
func Hash(plain []byte) uint64 { return xxhash.Sum64(plain, 0) }
