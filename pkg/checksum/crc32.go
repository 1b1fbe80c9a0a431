// Package checksum computes the IEEE CRC32 used to protect every page.
//
// Two interchangeable strategies implement the same contract: a portable
// slicing-by-8 table implementation and a hardware-accelerated one. The
// package-level functions dispatch to the strategy selected once from the
// cpufeat capability snapshot; both always produce identical checksums.
package checksum

import (
	"encoding/binary"
	"hash/crc32"
	"sync"

	"github.com/ajitpratap0/tessera/pkg/cpufeat"
)

// IEEE is the reversed IEEE 802.3 polynomial.
const IEEE = 0xEDB88320

// Strategy computes CRC32 checksums.
type Strategy interface {
	// Checksum returns the CRC32 of data.
	Checksum(data []byte) uint32
	// Update returns the CRC32 of the concatenation of the bytes that
	// produced crc and data.
	Update(crc uint32, data []byte) uint32
	// Name identifies the strategy in logs.
	Name() string
}

type slicing8Table [8][256]uint32

var slicing8Tables = sync.OnceValue(func() *slicing8Table {
	t := new(slicing8Table)
	for i := 0; i < 256; i++ {
		crc := uint32(i)
		for j := 0; j < 8; j++ {
			if crc&1 == 1 {
				crc = (crc >> 1) ^ IEEE
			} else {
				crc >>= 1
			}
		}
		t[0][i] = crc
	}
	for i := 0; i < 256; i++ {
		crc := t[0][i]
		for k := 1; k < 8; k++ {
			crc = t[0][crc&0xFF] ^ (crc >> 8)
			t[k][i] = crc
		}
	}
	return t
})

type software struct{}

// Software returns the slicing-by-8 strategy.
func Software() Strategy { return software{} }

func (software) Name() string { return "slicing-by-8" }

func (software) Checksum(data []byte) uint32 { return updateSlicing8(0, data) }

func (software) Update(crc uint32, data []byte) uint32 { return updateSlicing8(crc, data) }

func updateSlicing8(crc uint32, p []byte) uint32 {
	t := slicing8Tables()
	crc = ^crc
	for len(p) >= 8 {
		lo := crc ^ binary.LittleEndian.Uint32(p)
		hi := binary.LittleEndian.Uint32(p[4:])
		crc = t[7][lo&0xFF] ^ t[6][(lo>>8)&0xFF] ^ t[5][(lo>>16)&0xFF] ^ t[4][lo>>24] ^
			t[3][hi&0xFF] ^ t[2][(hi>>8)&0xFF] ^ t[1][(hi>>16)&0xFF] ^ t[0][hi>>24]
		p = p[8:]
	}
	for _, v := range p {
		crc = t[0][byte(crc)^v] ^ (crc >> 8)
	}
	return ^crc
}

type hardware struct{}

// Hardware returns the strategy backed by the runtime's accelerated IEEE
// implementation. On CPUs without the required extensions it still returns
// correct results, just without acceleration.
func Hardware() Strategy { return hardware{} }

func (hardware) Name() string { return "hardware" }

func (hardware) Checksum(data []byte) uint32 { return crc32.ChecksumIEEE(data) }

func (hardware) Update(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, crc32.IEEETable, data)
}

// Select picks the strategy for a capability snapshot.
func Select(s cpufeat.Snapshot) Strategy {
	if s.HasHardwareCRC32 {
		return Hardware()
	}
	return Software()
}

var selected = sync.OnceValue(func() Strategy {
	return Select(cpufeat.Detect())
})

// Default returns the strategy chosen for this process.
func Default() Strategy { return selected() }

// Checksum returns the CRC32 of data using the process strategy.
func Checksum(data []byte) uint32 { return selected().Checksum(data) }

// Update extends crc with data using the process strategy.
func Update(crc uint32, data []byte) uint32 { return selected().Update(crc, data) }
