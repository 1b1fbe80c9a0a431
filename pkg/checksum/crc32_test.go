package checksum

import (
	"hash/crc32"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tessera/pkg/cpufeat"
)

func TestKnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  uint32
	}{
		{"empty", "", 0x00000000},
		{"check string", "123456789", 0xCBF43926},
		{"single byte", "a", 0xE8B7BE43},
		{"fox", "The quick brown fox jumps over the lazy dog", 0x414FA339},
	}

	for _, s := range []Strategy{Software(), Hardware()} {
		for _, tt := range tests {
			t.Run(s.Name()+"/"+tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, s.Checksum([]byte(tt.input)))
			})
		}
	}
}

func TestSoftwareHardwareEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	lengths := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 31, 32, 33, 63, 64, 255, 1024, 4096, 65537}

	sw, hw := Software(), Hardware()
	for _, n := range lengths {
		data := make([]byte, n)
		rng.Read(data)
		require.Equal(t, sw.Checksum(data), hw.Checksum(data), "length %d", n)
		require.Equal(t, crc32.ChecksumIEEE(data), sw.Checksum(data), "length %d", n)
	}
}

func TestUnalignedInput(t *testing.T) {
	buf := make([]byte, 4096+8)
	for i := range buf {
		buf[i] = byte(i * 31)
	}
	for off := 0; off < 8; off++ {
		data := buf[off : off+4096]
		assert.Equal(t, Hardware().Checksum(data), Software().Checksum(data), "offset %d", off)
	}
}

func TestUpdateMatchesSingleShot(t *testing.T) {
	data := make([]byte, 3000)
	rand.New(rand.NewSource(7)).Read(data)

	for _, s := range []Strategy{Software(), Hardware()} {
		want := s.Checksum(data)
		for _, split := range []int{0, 1, 7, 8, 9, 1500, 2999, 3000} {
			crc := s.Update(0, data[:split])
			crc = s.Update(crc, data[split:])
			assert.Equal(t, want, crc, "%s split at %d", s.Name(), split)
		}
	}
}

func TestUpdateAcrossStrategies(t *testing.T) {
	data := []byte("definition levels then values")
	crc := Software().Update(0, data[:10])
	crc = Hardware().Update(crc, data[10:])
	assert.Equal(t, crc32.ChecksumIEEE(data), crc)
}

func TestSelect(t *testing.T) {
	assert.Equal(t, "hardware", Select(cpufeat.Snapshot{HasHardwareCRC32: true}).Name())
	assert.Equal(t, "slicing-by-8", Select(cpufeat.Snapshot{}).Name())
	assert.Equal(t, Select(cpufeat.Detect()).Name(), Default().Name())
}

func TestConcurrentTableInit(t *testing.T) {
	data := []byte("123456789")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, uint32(0xCBF43926), Software().Checksum(data))
			assert.Equal(t, uint32(0xCBF43926), Checksum(data))
		}()
	}
	wg.Wait()
}

func BenchmarkChecksum(b *testing.B) {
	data := make([]byte, 64*1024)
	rand.New(rand.NewSource(1)).Read(data)

	for _, s := range []Strategy{Software(), Hardware()} {
		b.Run(s.Name(), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				s.Checksum(data)
			}
		})
	}
}
