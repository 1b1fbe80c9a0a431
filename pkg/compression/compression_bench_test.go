package compression

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"testing"
)

// benchPages are synthetic page payloads shaped like the encodings the
// table writer produces.
var benchPages = []struct {
	name string
	gen  func(r *rand.Rand, n int) []byte
}{
	{"int64-delta", func(r *rand.Rand, n int) []byte {
		out := make([]byte, 0, n)
		var v uint64
		for len(out)+8 <= n {
			v += uint64(r.Intn(16))
			out = binary.LittleEndian.AppendUint64(out, v)
		}
		return out
	}},
	{"byte-array", func(r *rand.Rand, n int) []byte {
		words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"}
		out := make([]byte, 0, n+16)
		for len(out) < n {
			w := words[r.Intn(len(words))]
			out = binary.LittleEndian.AppendUint32(out, uint32(len(w)))
			out = append(out, w...)
		}
		return out[:n]
	}},
	{"random", func(r *rand.Rand, n int) []byte {
		out := make([]byte, n)
		r.Read(out)
		return out
	}},
}

func BenchmarkCompress(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	for _, codec := range Codecs {
		for _, page := range benchPages {
			for _, n := range []int{8 << 10, 64 << 10, 1 << 20} {
				src := page.gen(r, n)
				dst := make([]byte, 0, CompressBound(codec, len(src)))
				b.Run(fmt.Sprintf("%s/%s/%dK", codec, page.name, n>>10), func(b *testing.B) {
					b.SetBytes(int64(len(src)))
					for i := 0; i < b.N; i++ {
						if _, err := Compress(codec, dst, src, Default); err != nil {
							b.Fatal(err)
						}
					}
				})
			}
		}
	}
}

func BenchmarkDecompress(b *testing.B) {
	src := benchPages[0].gen(rand.New(rand.NewSource(2)), 1<<20)
	for _, codec := range Codecs {
		packed, err := Compress(codec, nil, src, Default)
		if err != nil {
			b.Fatal(err)
		}
		dst := make([]byte, 0, len(src))
		b.Run(codec.String(), func(b *testing.B) {
			b.SetBytes(int64(len(src)))
			for i := 0; i < b.N; i++ {
				if _, err := Decompress(codec, dst, packed); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkLevels reports the compression ratio per codec and level.
func BenchmarkLevels(b *testing.B) {
	src := benchPages[1].gen(rand.New(rand.NewSource(3)), 1<<20)
	for _, codec := range Codecs {
		for _, level := range []Level{Fastest, Default, Better, Best} {
			b.Run(fmt.Sprintf("%s/%s", codec, level), func(b *testing.B) {
				var packed []byte
				for i := 0; i < b.N; i++ {
					var err error
					if packed, err = Compress(codec, nil, src, level); err != nil {
						b.Fatal(err)
					}
				}
				b.ReportMetric(float64(len(src))/float64(len(packed)), "ratio")
			})
		}
	}
}
