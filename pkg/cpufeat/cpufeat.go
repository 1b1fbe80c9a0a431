// Package cpufeat detects the hardware instruction extensions the integrity
// and codec layers can dispatch to.
//
// Detection runs at most once per process. The snapshot is published through
// an atomic pointer: concurrent first callers may each compute it, but the
// result is deterministic and only one value is ever published.
package cpufeat

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Snapshot records which instruction extensions are available.
// A Snapshot is immutable once returned by Detect.
type Snapshot struct {
	Arch string

	// HasHardwareCRC32 reports whether the IEEE CRC32 can be computed with
	// dedicated instructions (PCLMULQDQ+SSE4.2 on amd64, CRC32 on arm64).
	HasHardwareCRC32 bool

	HasSSE42     bool
	HasPCLMULQDQ bool
	HasAVX2      bool
	HasAVX512    bool
	HasASIMD     bool
}

var snapshot atomic.Pointer[Snapshot]

// Detect returns the process-wide capability snapshot.
func Detect() Snapshot {
	if s := snapshot.Load(); s != nil {
		return *s
	}
	s := probe()
	if !snapshot.CompareAndSwap(nil, &s) {
		return *snapshot.Load()
	}
	return s
}

func probe() Snapshot {
	s := Snapshot{Arch: runtime.GOARCH}
	switch runtime.GOARCH {
	case "amd64", "386":
		s.HasSSE42 = cpu.X86.HasSSE42
		s.HasPCLMULQDQ = cpu.X86.HasPCLMULQDQ
		s.HasAVX2 = cpu.X86.HasAVX2
		s.HasAVX512 = cpu.X86.HasAVX512F
		s.HasHardwareCRC32 = s.HasSSE42 && s.HasPCLMULQDQ
	case "arm64":
		s.HasASIMD = cpu.ARM64.HasASIMD
		s.HasHardwareCRC32 = cpu.ARM64.HasCRC32
	}
	return s
}

// Features lists the names of the extensions present in s.
func (s Snapshot) Features() []string {
	var out []string
	add := func(ok bool, name string) {
		if ok {
			out = append(out, name)
		}
	}
	add(s.HasHardwareCRC32, "crc32")
	add(s.HasSSE42, "sse4.2")
	add(s.HasPCLMULQDQ, "pclmulqdq")
	add(s.HasAVX2, "avx2")
	add(s.HasAVX512, "avx512f")
	add(s.HasASIMD, "asimd")
	return out
}
