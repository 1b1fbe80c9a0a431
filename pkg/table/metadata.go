package table

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	"github.com/ajitpratap0/tessera/pkg/bloom"
	"github.com/ajitpratap0/tessera/pkg/columnar"
	"github.com/ajitpratap0/tessera/pkg/compression"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/schema"
)

// Magic marks both ends of a file.
const Magic = "TSR1"

// FormatVersion is the metadata layout written by this package.
const FormatVersion uint32 = 1

// footerSize is [metadata length u32][metadata crc32 u32][magic].
const footerSize = 12

// MinFileSize is the leading magic plus the footer.
const MinFileSize = len(Magic) + footerSize

// FileMetadata is the trailing metadata block.
type FileMetadata struct {
	Version   uint32             `json:"version"`
	CreatedBy string             `json:"created_by"`
	FileID    uuid.UUID          `json:"file_id"`
	KeyValues []KeyValue         `json:"key_values,omitempty"`
	NumRows   int64              `json:"num_rows"`
	Schema    *schema.Schema     `json:"-"`
	RowGroups []RowGroupMetadata `json:"row_groups"`
}

// KeyValue is an application-defined metadata entry.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RowGroupMetadata locates one row group.
type RowGroupMetadata struct {
	NumRows       int64                 `json:"num_rows"`
	FileOffset    int64                 `json:"file_offset"`
	TotalByteSize int64                 `json:"total_byte_size"`
	Columns       []ColumnChunkMetadata `json:"columns"`
}

// ColumnChunkMetadata describes the pages of one column in one row group.
type ColumnChunkMetadata struct {
	Codec            compression.Codec `json:"codec"`
	FileOffset       int64             `json:"file_offset"`
	CompressedSize   int64             `json:"compressed_size"`
	UncompressedSize int64             `json:"uncompressed_size"`
	NumValues        int64             `json:"num_values"`
	NullCount        int64             `json:"null_count"`
	HasMinMax        bool              `json:"has_min_max"`
	Min              []byte            `json:"min,omitempty"`
	Max              []byte            `json:"max,omitempty"`
	// BloomOffset and BloomLength locate the split-block Bloom filter; a
	// zero length means the chunk has none.
	BloomOffset int64          `json:"bloom_offset,omitempty"`
	BloomLength int64          `json:"bloom_length,omitempty"`
	Pages       []PageLocation `json:"pages"`
}

// PageLocation is the index entry of one page, header included.
type PageLocation struct {
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
	Rows   int64  `json:"rows"`
	CRC    uint32 `json:"crc32"`
}

// HasBloomFilter reports whether the chunk references a Bloom filter.
func (c *ColumnChunkMetadata) HasBloomFilter() bool { return c.BloomLength > 0 }

const (
	chunkFlagMinMax uint8 = 1 << 0
	chunkFlagBloom  uint8 = 1 << 1
)

// Minimum encoded sizes used to bound counts before allocating.
const (
	minKeyValueSize = 2
	minColumnSize   = 5
	minRowGroupSize = 4
	minChunkSize    = 8
	minPageSize     = 7
)

type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8)       { e.buf = append(e.buf, v) }
func (e *encoder) u32(v uint32)     { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) uvarint(v uint64) { e.buf = binary.AppendUvarint(e.buf, v) }
func (e *encoder) i64(v int64)      { e.uvarint(uint64(v)) }

func (e *encoder) bytes(b []byte) {
	e.uvarint(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) str(s string) {
	e.uvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// encodeMetadata serializes md. All integers are non-negative.
func encodeMetadata(md *FileMetadata) []byte {
	e := &encoder{}
	e.u32(md.Version)
	e.str(md.CreatedBy)
	e.buf = append(e.buf, md.FileID[:]...)

	e.uvarint(uint64(len(md.KeyValues)))
	for _, kv := range md.KeyValues {
		e.str(kv.Key)
		e.str(kv.Value)
	}

	e.i64(md.NumRows)

	cols := md.Schema.Columns()
	e.uvarint(uint64(len(cols)))
	for _, c := range cols {
		e.str(c.Name)
		e.u8(uint8(c.Type))
		e.u8(uint8(c.Repetition))
		e.uvarint(uint64(c.TypeLength))
	}

	e.uvarint(uint64(len(md.RowGroups)))
	for _, rg := range md.RowGroups {
		e.i64(rg.NumRows)
		e.i64(rg.FileOffset)
		e.i64(rg.TotalByteSize)
		e.uvarint(uint64(len(rg.Columns)))
		for i := range rg.Columns {
			encodeChunk(e, &rg.Columns[i])
		}
	}
	return e.buf
}

func encodeChunk(e *encoder, c *ColumnChunkMetadata) {
	e.u8(uint8(c.Codec))
	e.i64(c.FileOffset)
	e.i64(c.CompressedSize)
	e.i64(c.UncompressedSize)
	e.i64(c.NumValues)
	e.i64(c.NullCount)

	var flags uint8
	if c.HasMinMax {
		flags |= chunkFlagMinMax
	}
	if c.HasBloomFilter() {
		flags |= chunkFlagBloom
	}
	e.u8(flags)
	if c.HasMinMax {
		e.bytes(c.Min)
		e.bytes(c.Max)
	}
	if c.HasBloomFilter() {
		e.i64(c.BloomOffset)
		e.i64(c.BloomLength)
	}

	e.uvarint(uint64(len(c.Pages)))
	for _, p := range c.Pages {
		e.i64(p.Offset)
		e.i64(p.Size)
		e.i64(p.Rows)
		e.u32(p.CRC)
	}
}

// decoder reads the metadata block. The first failure sticks; later reads
// return zero values.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) fail(format string, args ...interface{}) {
	if d.err == nil {
		d.err = errors.Newf(errors.ErrorTypeInvalidFormat, format, args...).WithDetail("offset", d.off)
	}
}

func (d *decoder) remaining() int { return len(d.buf) - d.off }

func (d *decoder) u8() uint8 {
	if d.err != nil {
		return 0
	}
	if d.remaining() < 1 {
		d.fail("metadata truncated")
		return 0
	}
	v := d.buf[d.off]
	d.off++
	return v
}

func (d *decoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	if d.remaining() < 4 {
		d.fail("metadata truncated")
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		d.fail("malformed varint")
		return 0
	}
	d.off += n
	return v
}

// i64 reads a non-negative int64.
func (d *decoder) i64() int64 {
	v := d.uvarint()
	if v > math.MaxInt64 {
		d.fail("integer %d out of range", v)
		return 0
	}
	return int64(v)
}

// count reads an element count and checks that count elements of at least
// minSize bytes fit in the remaining input.
func (d *decoder) count(minSize int) int {
	v := d.uvarint()
	if d.err != nil {
		return 0
	}
	if v > uint64(d.remaining()/minSize) {
		d.fail("count %d cannot fit in %d remaining bytes", v, d.remaining())
		return 0
	}
	return int(v)
}

func (d *decoder) bytes() []byte {
	n := d.uvarint()
	if d.err != nil {
		return nil
	}
	if n > uint64(d.remaining()) {
		d.fail("length %d exceeds %d remaining bytes", n, d.remaining())
		return nil
	}
	b := make([]byte, n)
	copy(b, d.buf[d.off:])
	d.off += int(n)
	return b
}

func (d *decoder) str() string {
	return string(d.bytes())
}

// decodeMetadata parses a metadata block. The result is structurally
// decoded only; validateMetadata checks it against the file.
func decodeMetadata(b []byte) (*FileMetadata, error) {
	d := &decoder{buf: b}
	md := &FileMetadata{}

	md.Version = d.u32()
	if d.err == nil && md.Version != FormatVersion {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat, "unsupported format version %d", md.Version)
	}
	md.CreatedBy = d.str()
	if d.err == nil {
		if d.remaining() < len(md.FileID) {
			d.fail("metadata truncated")
		} else {
			copy(md.FileID[:], d.buf[d.off:])
			d.off += len(md.FileID)
		}
	}

	if n := d.count(minKeyValueSize); n > 0 {
		md.KeyValues = make([]KeyValue, n)
		for i := range md.KeyValues {
			md.KeyValues[i] = KeyValue{Key: d.str(), Value: d.str()}
		}
	}

	md.NumRows = d.i64()

	ncols := d.count(minColumnSize)
	cols := make([]schema.Column, ncols)
	for i := range cols {
		cols[i].Name = d.str()
		cols[i].Type = schema.PhysicalType(d.u8())
		cols[i].Repetition = schema.Repetition(d.u8())
		tl := d.uvarint()
		if tl > math.MaxInt32 {
			d.fail("type length %d out of range", tl)
		}
		cols[i].TypeLength = int32(tl)
	}
	if d.err != nil {
		return nil, d.err
	}
	s, err := schema.New(cols...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidFormat, "invalid schema")
	}
	if err := s.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidFormat, "invalid schema")
	}
	s.Freeze()
	md.Schema = s

	if n := d.count(minRowGroupSize); n > 0 {
		md.RowGroups = make([]RowGroupMetadata, n)
		for i := range md.RowGroups {
			rg := &md.RowGroups[i]
			rg.NumRows = d.i64()
			rg.FileOffset = d.i64()
			rg.TotalByteSize = d.i64()
			if nc := d.count(minChunkSize); nc > 0 {
				rg.Columns = make([]ColumnChunkMetadata, nc)
				for j := range rg.Columns {
					decodeChunk(d, &rg.Columns[j])
				}
			}
			if d.err != nil {
				return nil, d.err
			}
		}
	}

	if d.err != nil {
		return nil, d.err
	}
	if d.remaining() != 0 {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat, "%d trailing metadata bytes", d.remaining())
	}
	return md, nil
}

func decodeChunk(d *decoder, c *ColumnChunkMetadata) {
	c.Codec = compression.Codec(d.u8())
	c.FileOffset = d.i64()
	c.CompressedSize = d.i64()
	c.UncompressedSize = d.i64()
	c.NumValues = d.i64()
	c.NullCount = d.i64()

	flags := d.u8()
	if flags&^(chunkFlagMinMax|chunkFlagBloom) != 0 {
		d.fail("unknown column chunk flags %#x", flags)
		return
	}
	if flags&chunkFlagMinMax != 0 {
		c.HasMinMax = true
		c.Min = d.bytes()
		c.Max = d.bytes()
	}
	if flags&chunkFlagBloom != 0 {
		c.BloomOffset = d.i64()
		c.BloomLength = d.i64()
		if d.err == nil && c.BloomLength == 0 {
			d.fail("empty bloom filter reference")
		}
	}

	if n := d.count(minPageSize); n > 0 {
		c.Pages = make([]PageLocation, n)
		for i := range c.Pages {
			c.Pages[i] = PageLocation{
				Offset: d.i64(),
				Size:   d.i64(),
				Rows:   d.i64(),
				CRC:    d.u32(),
			}
		}
	}
}

// validateMetadata checks md against the layout of a file whose metadata
// block starts at dataEnd.
func validateMetadata(md *FileMetadata, dataEnd int64) error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Newf(errors.ErrorTypeInvalidFormat, format, args...)
	}
	dataStart := int64(len(Magic))
	cols := md.Schema.Columns()
	ncols := len(cols)

	var total int64
	for i := range md.RowGroups {
		rg := &md.RowGroups[i]
		if !within(rg.FileOffset, rg.TotalByteSize, dataStart, dataEnd) {
			return invalid("row group %d: range [%d,+%d) outside data region", i, rg.FileOffset, rg.TotalByteSize)
		}
		if len(rg.Columns) != ncols {
			return invalid("row group %d: %d column chunks, schema has %d columns", i, len(rg.Columns), ncols)
		}
		if rg.NumRows > math.MaxInt64-total {
			return invalid("row count overflow")
		}
		total += rg.NumRows

		rgEnd := rg.FileOffset + rg.TotalByteSize
		for j := range rg.Columns {
			if err := validateChunk(cols[j], &rg.Columns[j], rg, rgEnd, dataStart, dataEnd); err != nil {
				return errors.Wrap(err, errors.ErrorTypeInvalidFormat, "invalid column chunk").
					WithDetail("row_group", i).
					WithDetail("column", j)
			}
		}
	}
	if total != md.NumRows {
		return invalid("row groups hold %d rows, metadata says %d", total, md.NumRows)
	}
	return nil
}

func validateChunk(col schema.Column, c *ColumnChunkMetadata, rg *RowGroupMetadata, rgEnd, dataStart, dataEnd int64) error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Newf(errors.ErrorTypeInvalidFormat, format, args...)
	}
	if !c.Codec.Valid() {
		return invalid("unknown codec %d", c.Codec)
	}
	if !within(c.FileOffset, c.CompressedSize, rg.FileOffset, rgEnd) {
		return invalid("chunk range [%d,+%d) outside its row group", c.FileOffset, c.CompressedSize)
	}
	if c.NumValues != rg.NumRows {
		return invalid("chunk holds %d rows, row group has %d", c.NumValues, rg.NumRows)
	}
	if c.NullCount > c.NumValues || (!col.Nullable() && c.NullCount != 0) {
		return invalid("null count %d invalid for %d %s rows", c.NullCount, c.NumValues, col.Repetition)
	}
	if c.HasMinMax {
		if _, err := columnar.DecodeKey(col.Type, c.Min); err != nil {
			return err
		}
		if _, err := columnar.DecodeKey(col.Type, c.Max); err != nil {
			return err
		}
	}
	if c.HasBloomFilter() {
		if !within(c.BloomOffset, c.BloomLength, dataStart, dataEnd) {
			return invalid("bloom filter range [%d,+%d) outside data region", c.BloomOffset, c.BloomLength)
		}
		if c.BloomLength%bloom.BlockSize != 0 || c.BloomLength > bloom.MaxBytes {
			return invalid("bloom filter length %d invalid", c.BloomLength)
		}
	}

	next := c.FileOffset
	var rows int64
	for k, p := range c.Pages {
		if p.Offset != next {
			return invalid("page %d at %d, expected %d", k, p.Offset, next)
		}
		if p.Size < PageHeaderSize || !within(p.Offset, p.Size, c.FileOffset, c.FileOffset+c.CompressedSize) {
			return invalid("page %d range [%d,+%d) outside its chunk", k, p.Offset, p.Size)
		}
		if p.Rows > math.MaxUint32 || p.Rows > c.NumValues-rows {
			return invalid("page %d row count %d exceeds chunk", k, p.Rows)
		}
		rows += p.Rows
		next = p.Offset + p.Size
	}
	if next != c.FileOffset+c.CompressedSize {
		return invalid("pages cover %d of %d chunk bytes", next-c.FileOffset, c.CompressedSize)
	}
	if rows != c.NumValues {
		return invalid("pages hold %d rows, chunk has %d", rows, c.NumValues)
	}
	return nil
}

// within reports whether [off, off+size) lies inside [lo, hi).
func within(off, size, lo, hi int64) bool {
	return off >= lo && size >= 0 && off <= hi && size <= hi-off
}
