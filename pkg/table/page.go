package table

import (
	"encoding/binary"

	"github.com/ajitpratap0/tessera/pkg/checksum"
	"github.com/ajitpratap0/tessera/pkg/columnar"
	"github.com/ajitpratap0/tessera/pkg/compression"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/pool"
	"github.com/ajitpratap0/tessera/pkg/schema"
)

// PageHeaderSize is the fixed size of the header preceding every page body.
const PageHeaderSize = 28

// EncodingPlain is the only value encoding written. It matches the Parquet
// PLAIN encoding id.
const EncodingPlain uint8 = 0

const flagDefLevels uint8 = 1 << 0

// PageHeader frames one page. All fields are little-endian on disk:
//
//	codec u8 | encoding u8 | flags u8 | reserved u8 |
//	rows u32 | values u32 | def-level length u32 |
//	uncompressed length u32 | compressed length u32 | crc32 u32
type PageHeader struct {
	Codec    compression.Codec
	Encoding uint8
	Flags    uint8
	// Rows is the number of row slots, nulls included.
	Rows uint32
	// Values is the number of present values stored.
	Values uint32
	// DefLevelsLen is the length of the definition-level prefix of the
	// uncompressed body.
	DefLevelsLen    uint32
	UncompressedLen uint32
	CompressedLen   uint32
	// CRC is the CRC32 of the compressed body as stored.
	CRC uint32
}

// HasDefLevels reports whether the body starts with definition levels.
func (h *PageHeader) HasDefLevels() bool { return h.Flags&flagDefLevels != 0 }

func (h *PageHeader) appendTo(dst []byte) []byte {
	dst = append(dst, byte(h.Codec), h.Encoding, h.Flags, 0)
	dst = binary.LittleEndian.AppendUint32(dst, h.Rows)
	dst = binary.LittleEndian.AppendUint32(dst, h.Values)
	dst = binary.LittleEndian.AppendUint32(dst, h.DefLevelsLen)
	dst = binary.LittleEndian.AppendUint32(dst, h.UncompressedLen)
	dst = binary.LittleEndian.AppendUint32(dst, h.CompressedLen)
	dst = binary.LittleEndian.AppendUint32(dst, h.CRC)
	return dst
}

// ParsePageHeader decodes and structurally validates a page header.
func ParsePageHeader(b []byte) (PageHeader, error) {
	if len(b) < PageHeaderSize {
		return PageHeader{}, errors.Newf(errors.ErrorTypeInvalidFormat,
			"page header needs %d bytes, have %d", PageHeaderSize, len(b))
	}
	h := PageHeader{
		Codec:           compression.Codec(b[0]),
		Encoding:        b[1],
		Flags:           b[2],
		Rows:            binary.LittleEndian.Uint32(b[4:]),
		Values:          binary.LittleEndian.Uint32(b[8:]),
		DefLevelsLen:    binary.LittleEndian.Uint32(b[12:]),
		UncompressedLen: binary.LittleEndian.Uint32(b[16:]),
		CompressedLen:   binary.LittleEndian.Uint32(b[20:]),
		CRC:             binary.LittleEndian.Uint32(b[24:]),
	}
	switch {
	case !h.Codec.Valid():
		return PageHeader{}, errors.Newf(errors.ErrorTypeInvalidFormat, "unknown page codec %d", b[0])
	case h.Encoding != EncodingPlain:
		return PageHeader{}, errors.Newf(errors.ErrorTypeInvalidFormat, "unknown page encoding %d", h.Encoding)
	case h.Flags&^flagDefLevels != 0 || b[3] != 0:
		return PageHeader{}, errors.Newf(errors.ErrorTypeInvalidFormat, "unknown page flags %#x", h.Flags)
	case h.Values > h.Rows:
		return PageHeader{}, errors.Newf(errors.ErrorTypeInvalidFormat,
			"page holds %d values in %d rows", h.Values, h.Rows)
	case h.DefLevelsLen > h.UncompressedLen:
		return PageHeader{}, errors.Newf(errors.ErrorTypeInvalidFormat,
			"definition levels of %d bytes exceed page size %d", h.DefLevelsLen, h.UncompressedLen)
	}
	return h, nil
}

// encodedPage is a framed page ready to be written. body lives in a pooled
// buffer until release is called.
type encodedPage struct {
	header PageHeader
	body   []byte
	buf    []byte
}

func (p *encodedPage) release() {
	if p.buf != nil {
		pool.PutBuffer(p.buf)
	}
	p.buf, p.body = nil, nil
}

// encodePage serializes one page of col. dense holds the present values;
// defLevels holds one entry per row for OPTIONAL columns and must be nil
// for REQUIRED ones.
func encodePage(col schema.Column, dense interface{}, defLevels []uint8, rows int, codec compression.Codec, level compression.Level) (*encodedPage, error) {
	nvals := columnar.Len(dense)
	if nvals < 0 {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "column %q: unsupported value type %T", col.Name, dense)
	}

	var flags uint8
	if col.Nullable() {
		if len(defLevels) != rows {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"column %q: %d definition levels for %d rows", col.Name, len(defLevels), rows)
		}
		present := 0
		for _, d := range defLevels {
			present += int(d)
		}
		if present != nvals {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"column %q: %d values for %d present rows", col.Name, nvals, present)
		}
		flags |= flagDefLevels
	} else {
		if defLevels != nil {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"column %q: definition levels on a REQUIRED column", col.Name)
		}
		if nvals != rows {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"column %q: %d values for %d rows", col.Name, nvals, rows)
		}
	}

	rawSize := len(defLevels) + columnar.PlainSize(col.Type, col.TypeLength, dense)
	if uint64(rawSize) > maxPageBytes {
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument,
			"column %q: page of %d bytes exceeds the format limit", col.Name, rawSize)
	}

	raw := pool.GetBuffer(rawSize)[:0]
	defer pool.PutBuffer(raw)
	raw = append(raw, defLevels...)
	raw, err := columnar.AppendPlain(raw, col.Type, col.TypeLength, dense)
	if err != nil {
		return nil, err
	}

	bound := compression.CompressBound(codec, len(raw))
	buf := pool.GetBuffer(bound)
	body, err := compression.Compress(codec, buf[:0], raw, level)
	if err != nil {
		pool.PutBuffer(buf)
		return nil, err
	}
	if uint64(len(body)) > maxPageBytes {
		pool.PutBuffer(buf)
		return nil, errors.Newf(errors.ErrorTypeCompressionFailed,
			"column %q: compressed page of %d bytes exceeds the format limit", col.Name, len(body))
	}

	return &encodedPage{
		header: PageHeader{
			Codec:           codec,
			Encoding:        EncodingPlain,
			Flags:           flags,
			Rows:            uint32(rows),
			Values:          uint32(nvals),
			DefLevelsLen:    uint32(len(defLevels)),
			UncompressedLen: uint32(len(raw)),
			CompressedLen:   uint32(len(body)),
			CRC:             checksum.Checksum(body),
		},
		body: body,
		buf:  buf,
	}, nil
}

const maxPageBytes = 1<<32 - 1

// pageDecodeOptions controls decodePage.
type pageDecodeOptions struct {
	verify      bool
	maxPageSize int
	// alias lets uncompressed pages return values that reference body.
	alias bool
}

// decodedPage holds one page's dense values and definition levels.
type decodedPage struct {
	values    interface{}
	defLevels []uint8
	rows      int
}

// decodePage verifies, decompresses and decodes a page body. body must be
// exactly h.CompressedLen bytes.
func decodePage(col schema.Column, h PageHeader, body []byte, opts pageDecodeOptions) (*decodedPage, error) {
	if uint64(len(body)) != uint64(h.CompressedLen) {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
			"page body is %d bytes, header says %d", len(body), h.CompressedLen)
	}
	if uint64(h.UncompressedLen) > uint64(opts.maxPageSize) {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
			"page of %d bytes exceeds maximum page size %d", h.UncompressedLen, opts.maxPageSize)
	}
	if h.HasDefLevels() != col.Nullable() {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
			"column %q: definition-level flag does not match repetition %s", col.Name, col.Repetition)
	}
	if opts.verify {
		if got := checksum.Checksum(body); got != h.CRC {
			return nil, errors.Newf(errors.ErrorTypeChecksumMismatch,
				"column %q: page crc32 %08x, header %08x", col.Name, got, h.CRC).
				WithDetail("column", col.Name)
		}
	}

	var raw []byte
	alias := false
	if h.Codec == compression.Uncompressed {
		if h.CompressedLen != h.UncompressedLen {
			return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
				"uncompressed page stores %d bytes, header says %d", h.CompressedLen, h.UncompressedLen)
		}
		raw = body
		alias = opts.alias
	} else {
		buf := pool.GetBuffer(int(h.UncompressedLen))
		defer pool.PutBuffer(buf)
		out, err := compression.Decompress(h.Codec, buf[:0:h.UncompressedLen], body)
		if err != nil {
			return nil, err
		}
		if len(out) != int(h.UncompressedLen) {
			return nil, errors.Newf(errors.ErrorTypeCorruptData,
				"%s page decompressed to %d bytes, header says %d", h.Codec, len(out), h.UncompressedLen)
		}
		raw = out
	}

	if int(h.DefLevelsLen) > len(raw) {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
			"definition levels of %d bytes exceed page body of %d", h.DefLevelsLen, len(raw))
	}

	rows := int(h.Rows)
	var defLevels []uint8
	if col.Nullable() {
		if int(h.DefLevelsLen) != rows {
			return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
				"%d definition levels for %d rows", h.DefLevelsLen, rows)
		}
		present := 0
		for _, d := range raw[:rows] {
			if d > 1 {
				return nil, errors.Newf(errors.ErrorTypeInvalidFormat, "invalid definition level %d", d)
			}
			present += int(d)
		}
		if present != int(h.Values) {
			return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
				"definition levels mark %d values present, header says %d", present, h.Values)
		}
		defLevels = make([]uint8, rows)
		copy(defLevels, raw[:rows])
	} else if h.DefLevelsLen != 0 || h.Values != h.Rows {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
			"REQUIRED page with %d values in %d rows", h.Values, h.Rows)
	}

	values, err := columnar.DecodePlain(col.Type, col.TypeLength, raw[h.DefLevelsLen:], int(h.Values), alias)
	if err != nil {
		return nil, err
	}
	return &decodedPage{values: values, defLevels: defLevels, rows: rows}, nil
}
