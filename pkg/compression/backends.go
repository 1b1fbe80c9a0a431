package compression

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/tessera/pkg/errors"
)

// MaxDecodedSize is the largest zstd content size UncompressedLength
// reports and the decoder memory limit.
const MaxDecodedSize = 1 << 30

// Snappy compressor
type snappyCompressor struct{}

func (snappyCompressor) Codec() Codec { return Snappy }

func (snappyCompressor) Bound(srcLen int) int {
	if n := snappy.MaxEncodedLen(srcLen); n >= 0 {
		return n
	}
	return srcLen
}

func (s snappyCompressor) Compress(dst, src []byte, _ Level) ([]byte, error) {
	bound := snappy.MaxEncodedLen(len(src))
	if bound < 0 {
		return nil, errors.Newf(errors.ErrorTypeCompressionFailed, "snappy input of %d bytes is too large", len(src))
	}
	if cap(dst) >= bound {
		return snappy.Encode(dst[:cap(dst)], src), nil
	}
	out := snappy.Encode(nil, src)
	if len(out) > cap(dst) {
		return nil, shortBuffer(Snappy, len(out), cap(dst))
	}
	return append(dst, out...), nil
}

func (snappyCompressor) Decompress(dst, src []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, corrupt(Snappy, err)
	}
	if n > cap(dst) {
		return nil, outputTooLarge(Snappy, uint64(n), cap(dst))
	}
	out, err := snappy.Decode(dst[:n], src)
	if err != nil {
		return nil, corrupt(Snappy, err)
	}
	return out, nil
}

func (snappyCompressor) UncompressedLength(src []byte) (int, bool, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return 0, true, corrupt(Snappy, err)
	}
	return n, true, nil
}

// Gzip compressor
type gzipCompressor struct{}

var (
	gzipWriterPools sync.Map // Level -> *sync.Pool
	gzipReaderPool  = sync.Pool{
		New: func() interface{} {
			return new(gzip.Reader)
		},
	}
)

func gzipWriterPool(level Level) *sync.Pool {
	if p, ok := gzipWriterPools.Load(level); ok {
		return p.(*sync.Pool)
	}
	gl := mapGzipLevel(level)
	p, _ := gzipWriterPools.LoadOrStore(level, &sync.Pool{
		New: func() interface{} {
			w, _ := gzip.NewWriterLevel(nil, gl)
			return w
		},
	})
	return p.(*sync.Pool)
}

func (gzipCompressor) Codec() Codec { return Gzip }

// Bound covers stored deflate blocks plus the gzip header and trailer.
func (gzipCompressor) Bound(srcLen int) int {
	return srcLen + srcLen/16 + 64
}

func (gzipCompressor) Compress(dst, src []byte, level Level) ([]byte, error) {
	pool := gzipWriterPool(level)
	w := pool.Get().(*gzip.Writer)
	defer pool.Put(w)

	bw := &boundedWriter{buf: dst}
	w.Reset(bw)
	if _, err := w.Write(src); err != nil {
		if bw.overflow {
			return nil, shortBuffer(Gzip, len(bw.buf)+1, cap(dst))
		}
		return nil, err
	}
	if err := w.Close(); err != nil {
		if bw.overflow {
			return nil, shortBuffer(Gzip, len(bw.buf)+1, cap(dst))
		}
		return nil, err
	}
	return bw.buf, nil
}

func (gzipCompressor) Decompress(dst, src []byte) ([]byte, error) {
	r := gzipReaderPool.Get().(*gzip.Reader)
	defer gzipReaderPool.Put(r)

	if err := r.Reset(bytes.NewReader(src)); err != nil {
		return nil, corrupt(Gzip, err)
	}
	r.Multistream(false)

	out := dst[:cap(dst)]
	n := 0
	for {
		if n == len(out) {
			var probe [1]byte
			m, err := r.Read(probe[:])
			if m > 0 {
				return nil, outputTooLarge(Gzip, uint64(n+m), cap(dst))
			}
			if err == io.EOF {
				return out[:n], nil
			}
			if err != nil {
				return nil, corrupt(Gzip, err)
			}
			continue
		}
		m, err := r.Read(out[n:])
		n += m
		if err == io.EOF {
			return out[:n], nil
		}
		if err != nil {
			return nil, corrupt(Gzip, err)
		}
	}
}

func (gzipCompressor) UncompressedLength([]byte) (int, bool, error) { return 0, false, nil }

// Zstd compressor
type zstdCompressor struct{}

// MaxZstdWindow bounds the history window a zstd frame may request.
const MaxZstdWindow = 64 << 20

var (
	zstdEncoderPools sync.Map // zstd.EncoderLevel -> *sync.Pool
	zstdDecoderPool  = sync.Pool{
		New: func() interface{} {
			dec, err := zstd.NewReader(nil,
				zstd.WithDecoderConcurrency(1),
				zstd.WithDecoderLowmem(true),
				zstd.WithDecoderMaxWindow(MaxZstdWindow),
				zstd.WithDecoderMaxMemory(MaxDecodedSize))
			if err != nil {
				return nil
			}
			return dec
		},
	}
)

func zstdEncoderPool(level Level) *sync.Pool {
	zl := mapZstdLevel(level)
	if p, ok := zstdEncoderPools.Load(zl); ok {
		return p.(*sync.Pool)
	}
	p, _ := zstdEncoderPools.LoadOrStore(zl, &sync.Pool{
		New: func() interface{} {
			enc, _ := zstd.NewWriter(nil,
				zstd.WithEncoderLevel(zl),
				zstd.WithEncoderConcurrency(1),
				zstd.WithZeroFrames(true))
			return enc
		},
	})
	return p.(*sync.Pool)
}

func (zstdCompressor) Codec() Codec { return Zstd }

// Bound follows ZSTD_compressBound.
func (zstdCompressor) Bound(srcLen int) int {
	margin := 0
	if srcLen < 128<<10 {
		margin = ((128 << 10) - srcLen) >> 11
	}
	return srcLen + srcLen>>8 + margin + 32
}

func (zstdCompressor) Compress(dst, src []byte, level Level) ([]byte, error) {
	pool := zstdEncoderPool(level)
	enc, ok := pool.Get().(*zstd.Encoder)
	if !ok || enc == nil {
		return nil, errors.New(errors.ErrorTypeCompressionFailed, "zstd encoder unavailable")
	}
	defer pool.Put(enc)

	capacity := cap(dst)
	out := enc.EncodeAll(src, dst)
	if len(out) > capacity {
		return nil, shortBuffer(Zstd, len(out), capacity)
	}
	return out, nil
}

// Decompress streams src into dst and never writes past cap(dst), whether
// or not the frames declare their content size.
func (zstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return dst[:0], nil
	}
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return nil, corrupt(Zstd, err)
	}
	if h.HasFCS && h.FrameContentSize > uint64(cap(dst)) {
		return nil, outputTooLarge(Zstd, h.FrameContentSize, cap(dst))
	}
	dec, ok := zstdDecoderPool.Get().(*zstd.Decoder)
	if !ok || dec == nil {
		return nil, errors.New(errors.ErrorTypeInternal, "zstd decoder unavailable")
	}
	defer zstdDecoderPool.Put(dec)
	if err := dec.Reset(bytes.NewReader(src)); err != nil {
		return nil, corrupt(Zstd, err)
	}

	out := dst[:cap(dst)]
	n := 0
	for {
		if n == len(out) {
			var probe [1]byte
			m, err := dec.Read(probe[:])
			if m > 0 {
				return nil, outputTooLarge(Zstd, uint64(n+m), cap(dst))
			}
			if err == io.EOF {
				return out[:n], nil
			}
			if err != nil {
				return nil, corrupt(Zstd, err)
			}
			continue
		}
		m, err := dec.Read(out[n:])
		n += m
		if err == io.EOF {
			return out[:n], nil
		}
		if err != nil {
			return nil, corrupt(Zstd, err)
		}
	}
}

func (zstdCompressor) UncompressedLength(src []byte) (int, bool, error) {
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return 0, false, corrupt(Zstd, err)
	}
	if !h.HasFCS || h.FrameContentSize > MaxDecodedSize {
		return 0, false, nil
	}
	return int(h.FrameContentSize), true, nil
}

// LZ4 raw block compressor
type lz4Compressor struct{}

var (
	lz4FastPool = sync.Pool{
		New: func() interface{} {
			return new(lz4.Compressor)
		},
	}
	lz4HCPool = sync.Pool{
		New: func() interface{} {
			return new(lz4.CompressorHC)
		},
	}
)

func (lz4Compressor) Codec() Codec { return LZ4Raw }

func (lz4Compressor) Bound(srcLen int) int { return lz4.CompressBlockBound(srcLen) }

func (lz4Compressor) Compress(dst, src []byte, level Level) ([]byte, error) {
	if len(src) == 0 {
		return dst, nil
	}
	var (
		n   int
		err error
	)
	out := dst[:cap(dst)]
	if lvl := mapLZ4Level(level); lvl == lz4.Fast {
		c := lz4FastPool.Get().(*lz4.Compressor)
		n, err = c.CompressBlock(src, out)
		lz4FastPool.Put(c)
	} else {
		c := lz4HCPool.Get().(*lz4.CompressorHC)
		c.Level = lvl
		n, err = c.CompressBlock(src, out)
		lz4HCPool.Put(c)
	}
	if err != nil || n == 0 {
		return nil, shortBuffer(LZ4Raw, lz4.CompressBlockBound(len(src)), cap(dst))
	}
	return out[:n], nil
}

// Decompress cannot tell a short destination from corrupt input; the LZ4
// block format carries no length, so both are reported as corruption.
func (lz4Compressor) Decompress(dst, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return dst[:0], nil
	}
	out := dst[:cap(dst)]
	n, err := lz4.UncompressBlock(src, out)
	if err != nil {
		return nil, corrupt(LZ4Raw, err).WithDetail("capacity", cap(dst))
	}
	return out[:n], nil
}

func (lz4Compressor) UncompressedLength([]byte) (int, bool, error) { return 0, false, nil }

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Better:
		return 7
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Better:
		return lz4.Level5
	case Best:
		return lz4.Level9
	default:
		return lz4.Fast
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
