// Package compression dispatches page payloads to the supported codec
// backends behind one capacity-aware contract.
//
// # Overview
//
// Every page records the Codec that produced it. Codec is a closed variant
// whose numeric values match the Parquet CompressionCodec enum, so a codec
// id read from a file maps to exactly one backend:
//   - Uncompressed: bytes are copied as-is
//   - Snappy: github.com/klauspost/compress/snappy
//   - Gzip: github.com/klauspost/compress/gzip
//   - Zstd: github.com/klauspost/compress/zstd
//   - LZ4Raw: github.com/pierrec/lz4/v4 block format, no frame
//
// # Capacity
//
// Compress and Decompress write into the caller's dst and treat cap(dst) as
// a hard limit. Compress fails with a compression_failed error when the
// output does not fit; Decompress fails with output_too_large when the
// codec declares, or actually produces, more bytes than cap(dst), and with
// corrupt_compressed_data when the input cannot be parsed.
//
//	dst := make([]byte, 0, compression.CompressBound(compression.Zstd, len(page)))
//	out, err := compression.Compress(compression.Zstd, dst, page, compression.Default)
//
//	plain, err := compression.Decompress(compression.Zstd, make([]byte, 0, n), out)
//
// Snappy and Zstd are self-describing: UncompressedLength can read the
// decoded size from the compressed bytes before a buffer is allocated.
// Gzip and LZ4Raw need the length stored alongside the data.
package compression

import (
	"strings"

	"github.com/ajitpratap0/tessera/pkg/errors"
)

// Codec identifies a compression backend. Values match the Parquet
// CompressionCodec enum.
type Codec uint8

const (
	// Uncompressed stores page bytes verbatim
	Uncompressed Codec = 0
	// Snappy represents snappy block compression
	Snappy Codec = 1
	// Gzip represents gzip (RFC 1952) compression
	Gzip Codec = 2
	// Zstd represents zstandard compression
	Zstd Codec = 6
	// LZ4Raw represents the LZ4 block format without framing
	LZ4Raw Codec = 7
)

// Codecs lists every supported codec.
var Codecs = []Codec{Uncompressed, Snappy, Gzip, Zstd, LZ4Raw}

// String returns the codec name.
func (c Codec) String() string {
	switch c {
	case Uncompressed:
		return "uncompressed"
	case Snappy:
		return "snappy"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4Raw:
		return "lz4_raw"
	default:
		return "unknown"
	}
}

// Valid reports whether c names a supported codec.
func (c Codec) Valid() bool {
	switch c {
	case Uncompressed, Snappy, Gzip, Zstd, LZ4Raw:
		return true
	}
	return false
}

// SelfDescribing reports whether the compressed form of c carries the
// uncompressed length.
func (c Codec) SelfDescribing() bool {
	return c == Snappy || c == Zstd
}

// MarshalText implements encoding.TextMarshaler.
func (c Codec) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "unknown codec %d", c)
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Codec) UnmarshalText(text []byte) error {
	parsed, err := ParseCodec(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCodec parses a codec name. Matching is case-insensitive and accepts
// the common aliases "none" and "lz4".
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "uncompressed":
		return Uncompressed, nil
	case "snappy":
		return Snappy, nil
	case "gzip", "deflate":
		return Gzip, nil
	case "zstd", "zstandard":
		return Zstd, nil
	case "lz4", "lz4_raw", "lz4raw":
		return LZ4Raw, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeInvalidArgument, "unsupported compression codec: %q", name)
	}
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel parses a level name.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fastest":
		return Fastest, nil
	case "", "default":
		return Default, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeInvalidArgument, "unknown compression level: %q", name)
	}
}

// Compressor is one codec backend. Implementations are stateless and safe
// for concurrent use; expensive encoder state lives in package pools.
type Compressor interface {
	// Codec returns the codec implemented.
	Codec() Codec

	// Bound returns the largest output Compress can produce for srcLen bytes.
	Bound(srcLen int) int

	// Compress appends the compressed form of src to dst[:0], never growing
	// beyond cap(dst).
	Compress(dst, src []byte, level Level) ([]byte, error)

	// Decompress appends the decompressed form of src to dst[:0], never
	// growing beyond cap(dst).
	Decompress(dst, src []byte) ([]byte, error)

	// UncompressedLength returns the decoded size recorded in src, if the
	// codec records one.
	UncompressedLength(src []byte) (int, bool, error)
}

// ForCodec returns the backend for codec.
func ForCodec(codec Codec) (Compressor, error) {
	switch codec {
	case Uncompressed:
		return noneCompressor{}, nil
	case Snappy:
		return snappyCompressor{}, nil
	case Gzip:
		return gzipCompressor{}, nil
	case Zstd:
		return zstdCompressor{}, nil
	case LZ4Raw:
		return lz4Compressor{}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "unsupported compression codec: %d", codec)
	}
}

// CompressBound returns the largest compressed size for srcLen input bytes.
// Unknown codecs report srcLen.
func CompressBound(codec Codec, srcLen int) int {
	if srcLen < 0 {
		return 0
	}
	c, err := ForCodec(codec)
	if err != nil {
		return srcLen
	}
	return c.Bound(srcLen)
}

// Compress compresses src into dst using codec at level. cap(dst) is the
// destination capacity; a nil dst allocates CompressBound bytes.
func Compress(codec Codec, dst, src []byte, level Level) ([]byte, error) {
	c, err := ForCodec(codec)
	if err != nil {
		return nil, err
	}
	if dst == nil {
		dst = make([]byte, 0, c.Bound(len(src)))
	}
	out, err := c.Compress(dst[:0], src, level)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeCompressionFailed) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeCompressionFailed, codec.String()+" compression failed")
	}
	return out, nil
}

// Decompress decompresses src into dst. cap(dst) bounds the output size.
func Decompress(codec Codec, dst, src []byte) ([]byte, error) {
	c, err := ForCodec(codec)
	if err != nil {
		return nil, err
	}
	return c.Decompress(dst[:0], src)
}

// UncompressedLength reports the decoded size recorded in src when codec is
// self-describing. The boolean is false for codecs that carry no length.
func UncompressedLength(codec Codec, src []byte) (int, bool, error) {
	c, err := ForCodec(codec)
	if err != nil {
		return 0, false, err
	}
	return c.UncompressedLength(src)
}

func shortBuffer(codec Codec, need, capacity int) error {
	return errors.Newf(errors.ErrorTypeCompressionFailed,
		"%s output needs %d bytes, destination capacity is %d", codec, need, capacity).
		WithDetail("codec", codec.String())
}

func outputTooLarge(codec Codec, need uint64, capacity int) error {
	return errors.Newf(errors.ErrorTypeOutputTooLarge,
		"%s output of %d bytes exceeds capacity %d", codec, need, capacity).
		WithDetail("codec", codec.String())
}

func corrupt(codec Codec, err error) *errors.Error {
	return errors.Wrap(err, errors.ErrorTypeCorruptData, codec.String()+" data is corrupt").
		WithDetail("codec", codec.String())
}

// boundedWriter is an io.Writer over a fixed-capacity slice.
type boundedWriter struct {
	buf      []byte
	overflow bool
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	if len(w.buf)+len(p) > cap(w.buf) {
		w.overflow = true
		return 0, errShortWrite
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

var errShortWrite = errors.New(errors.ErrorTypeCompressionFailed, "destination capacity exhausted")

// None compressor (no compression)
type noneCompressor struct{}

func (noneCompressor) Codec() Codec { return Uncompressed }

func (noneCompressor) Bound(srcLen int) int { return srcLen }

func (noneCompressor) Compress(dst, src []byte, _ Level) ([]byte, error) {
	if len(src) > cap(dst) {
		return nil, shortBuffer(Uncompressed, len(src), cap(dst))
	}
	return append(dst, src...), nil
}

func (noneCompressor) Decompress(dst, src []byte) ([]byte, error) {
	if len(src) > cap(dst) {
		return nil, outputTooLarge(Uncompressed, uint64(len(src)), cap(dst))
	}
	return append(dst, src...), nil
}

func (noneCompressor) UncompressedLength(src []byte) (int, bool, error) {
	return len(src), true, nil
}
