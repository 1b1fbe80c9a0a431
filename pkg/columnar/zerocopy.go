package columnar

import (
	"encoding/binary"
	"unsafe"
)

var hostLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// canAlias reports whether little-endian values of the given width can be
// read in place from data.
func canAlias(data []byte, width int) bool {
	if !hostLittleEndian || len(data) == 0 {
		return false
	}
	return uintptr(unsafe.Pointer(&data[0]))%uintptr(width) == 0
}

// aliasFixed reinterprets data as count values of T. The result shares
// memory with data.
func aliasFixed[T int32 | int64 | float32 | float64](data []byte, count int) []T {
	if count == 0 {
		return []T{}
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), count)
}

// Aliases reports whether the first element of a decoded value slice lies
// inside buf.
func Aliases(values interface{}, buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	var p unsafe.Pointer
	switch vs := values.(type) {
	case []int32:
		if len(vs) > 0 {
			p = unsafe.Pointer(&vs[0])
		}
	case []int64:
		if len(vs) > 0 {
			p = unsafe.Pointer(&vs[0])
		}
	case []float32:
		if len(vs) > 0 {
			p = unsafe.Pointer(&vs[0])
		}
	case []float64:
		if len(vs) > 0 {
			p = unsafe.Pointer(&vs[0])
		}
	case [][]byte:
		for _, v := range vs {
			if len(v) > 0 {
				p = unsafe.Pointer(&v[0])
				break
			}
		}
	}
	if p == nil {
		return false
	}
	start := uintptr(unsafe.Pointer(&buf[0]))
	return uintptr(p) >= start && uintptr(p) < start+uintptr(len(buf))
}
