package table

import (
	"io"

	"github.com/ajitpratap0/tessera/pkg/columnar"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/metrics"
	"github.com/ajitpratap0/tessera/pkg/schema"
)

// ColumnBatch is a run of rows from one column chunk.
type ColumnBatch struct {
	// Values holds the present values only.
	Values columnar.Column
	// DefLevels has one entry per row, 1 when present. It is nil for
	// REQUIRED columns.
	DefLevels []uint8
	// RepLevels is always nil; nested columns are not supported.
	RepLevels []uint8
	Rows      int
}

// ColumnReader reads the pages of one column chunk in order.
type ColumnReader struct {
	r        *Reader
	desc     schema.Column
	rowGroup int
	column   int
	chunk    *ColumnChunkMetadata

	next   int
	cur    *decodedPage
	rowPos int
	valPos int
	err    error
}

// Descriptor returns the column being read.
func (cr *ColumnReader) Descriptor() schema.Column { return cr.desc }

// Chunk returns the column chunk metadata.
func (cr *ColumnReader) Chunk() *ColumnChunkMetadata { return cr.chunk }

// ReadBatch returns up to capacity rows, crossing page boundaries as
// needed. It returns io.EOF once the chunk is exhausted. Errors are sticky.
func (cr *ColumnReader) ReadBatch(capacity int) (*ColumnBatch, error) {
	if capacity <= 0 {
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "batch capacity %d must be positive", capacity)
	}
	if cr.err != nil {
		return nil, cr.err
	}
	if cr.r.closed {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "reader is closed")
	}

	var (
		parts     []interface{}
		defLevels []uint8
		rows      int
	)
	for rows < capacity {
		if cr.cur == nil || cr.rowPos == cr.cur.rows {
			if cr.next == len(cr.chunk.Pages) {
				break
			}
			if err := cr.loadPage(); err != nil {
				cr.err = err
				return nil, err
			}
			continue
		}

		n := min(capacity-rows, cr.cur.rows-cr.rowPos)
		nvals := n
		if cr.cur.defLevels != nil {
			defs := cr.cur.defLevels[cr.rowPos : cr.rowPos+n]
			defLevels = append(defLevels, defs...)
			nvals = 0
			for _, d := range defs {
				nvals += int(d)
			}
		}
		parts = append(parts, sliceValues(cr.cur.values, cr.valPos, cr.valPos+nvals))
		cr.rowPos += n
		cr.valPos += nvals
		rows += n
	}
	if rows == 0 {
		cr.cur = nil
		return nil, io.EOF
	}

	var values interface{}
	if len(parts) == 1 {
		values = parts[0]
	} else {
		values = emptyValues(cr.desc.Type)
		for _, p := range parts {
			values = concatValues(values, p)
		}
	}
	col, err := columnar.FromValues(cr.desc.Type, values, nil)
	if err != nil {
		cr.err = err
		return nil, err
	}
	if !cr.desc.Nullable() {
		defLevels = nil
	}
	return &ColumnBatch{Values: col, DefLevels: defLevels, Rows: rows}, nil
}

// loadPage reads, verifies and decodes the next page.
func (cr *ColumnReader) loadPage() error {
	idx := cr.next
	loc := cr.chunk.Pages[idx]
	fail := func(err error) error {
		e := errors.Wrap(err, errors.TypeOf(err), "failed to read page").
			WithDetail("row_group", cr.rowGroup).
			WithDetail("column", cr.desc.Name).
			WithDetail("page", idx)
		if errors.IsType(err, errors.ErrorTypeChecksumMismatch) {
			cr.r.checksumFailed(err, cr.rowGroup, cr.column, idx)
		}
		return e
	}

	buf, err := cr.r.readRange(loc.Offset, loc.Size)
	if err != nil {
		return fail(err)
	}
	h, err := ParsePageHeader(buf)
	if err != nil {
		return fail(err)
	}
	switch {
	case int64(h.CompressedLen) != loc.Size-PageHeaderSize:
		return fail(errors.Newf(errors.ErrorTypeInvalidFormat,
			"page body is %d bytes, page index says %d", h.CompressedLen, loc.Size-PageHeaderSize))
	case int64(h.Rows) != loc.Rows:
		return fail(errors.Newf(errors.ErrorTypeInvalidFormat,
			"page holds %d rows, page index says %d", h.Rows, loc.Rows))
	case h.Codec != cr.chunk.Codec:
		return fail(errors.Newf(errors.ErrorTypeInvalidFormat,
			"page codec %s, column chunk codec %s", h.Codec, cr.chunk.Codec))
	case cr.r.cfg.VerifyChecksums && h.CRC != loc.CRC:
		return fail(errors.Newf(errors.ErrorTypeChecksumMismatch,
			"page header crc32 %08x, page index says %08x", h.CRC, loc.CRC))
	}

	timer := metrics.NewTimer()
	p, err := decodePage(cr.desc, h, buf[PageHeaderSize:], pageDecodeOptions{
		verify:      cr.r.cfg.VerifyChecksums,
		maxPageSize: cr.r.cfg.MaxPageSize,
		alias:       cr.r.aliasPages(),
	})
	if err != nil {
		return fail(err)
	}
	cr.r.metrics.PageRead(h.Codec.String(), int(h.UncompressedLen), timer.Stop())

	cr.cur = p
	cr.next++
	cr.rowPos, cr.valPos = 0, 0
	return nil
}
