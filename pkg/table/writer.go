package table

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tessera/pkg/bloom"
	"github.com/ajitpratap0/tessera/pkg/checksum"
	"github.com/ajitpratap0/tessera/pkg/columnar"
	"github.com/ajitpratap0/tessera/pkg/config"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/logger"
	"github.com/ajitpratap0/tessera/pkg/metrics"
	"github.com/ajitpratap0/tessera/pkg/schema"
)

// Writer writes one file. Each write pass supplies every column once, in
// schema order, with the same row count. A Writer is not safe for
// concurrent use.
type Writer struct {
	out     io.Writer
	flusher *bufio.Writer
	closer  io.Closer

	schema    *schema.Schema
	cfg       config.WriterConfig
	logger    *zap.Logger
	metrics   *metrics.Collector
	createdBy string
	keyValues []KeyValue
	fileID    uuid.UUID

	columns    []*columnBuffer
	nextColumn int
	passRows   int
	buffered   int
	flushed    int64
	rowGroups  []RowGroupMetadata
	blooms     []pendingBloom
	offset     int64
	closed     bool
	err        error
}

// columnBuffer holds the rows of one column that are not yet in a row group.
type columnBuffer struct {
	desc      schema.Column
	values    interface{}
	defLevels []uint8
}

type pendingBloom struct {
	rowGroup int
	column   int
	filter   *bloom.Filter
}

// NewWriter starts a file on out. It freezes s. A nil cfg uses
// config.DefaultWriterConfig.
func NewWriter(out io.Writer, s *schema.Schema, cfg *config.WriterConfig, opts ...Option) (*Writer, error) {
	if out == nil {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "writer output is nil")
	}
	if s == nil {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "schema is nil")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultWriterConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidArgument, "invalid writer config")
	}
	for name := range cfg.ColumnCodecs {
		if _, ok := s.Lookup(name); !ok {
			return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "codec override for unknown column %q", name)
		}
	}
	s.Freeze()

	o := buildOptions(opts)
	w := &Writer{
		out:       out,
		schema:    s,
		cfg:       *cfg,
		logger:    o.logger,
		metrics:   o.metrics,
		createdBy: o.createdBy,
		keyValues: o.keyValues,
		fileID:    uuid.New(),
		passRows:  -1,
	}

	cols := s.Columns()
	w.columns = make([]*columnBuffer, len(cols))
	for i, c := range cols {
		w.columns[i] = &columnBuffer{desc: c, values: emptyValues(c.Type)}
	}

	if err := w.write([]byte(Magic)); err != nil {
		return nil, err
	}
	return w, nil
}

// CreateFile creates path and starts a file in it.
func CreateFile(path string, s *schema.Schema, cfg *config.WriterConfig, opts ...Option) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create file").
			WithDetail("path", path)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	opts = append(opts[:len(opts):len(opts)], withFields(logger.File(path)))
	w, err := NewWriter(bw, s, cfg, opts...)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	w.flusher = bw
	w.closer = f
	return w, nil
}

// Schema returns the frozen schema.
func (w *Writer) Schema() *schema.Schema { return w.schema }

// NumRows returns the rows accepted in completed write passes.
func (w *Writer) NumRows() int64 { return w.flushed + int64(w.buffered) }

// NumRowGroups returns the row groups written so far.
func (w *Writer) NumRowGroups() int { return len(w.rowGroups) }

// BytesWritten returns the bytes handed to the output so far.
func (w *Writer) BytesWritten() int64 { return w.offset }

// WriteBatch writes the next column of the current write pass.
//
// values is a typed slice ([]int32, []int64, []float32, []float64, []bool,
// [][]byte, or []string for byte arrays) holding the present values only.
// validity, when not nil, has one entry per row and marks present rows.
// runLengths, when not nil, repeats values[i] runLengths[i] times before
// validity is applied.
func (w *Writer) WriteBatch(column int, values interface{}, validity []bool, runLengths []int32) error {
	if err := w.usable(); err != nil {
		return err
	}
	if column < 0 || column >= len(w.columns) {
		return errors.Newf(errors.ErrorTypeInvalidArgument, "column index %d out of range [0,%d)", column, len(w.columns))
	}
	if column != w.nextColumn {
		return errors.Newf(errors.ErrorTypeInvalidArgument,
			"column %d written out of order, expected column %d", column, w.nextColumn)
	}
	cb := w.columns[column]
	desc := cb.desc

	values, err := normalizeValues(desc, values)
	if err != nil {
		return err
	}
	if runLengths != nil {
		if values, err = expandRuns(values, runLengths); err != nil {
			return err
		}
	}

	nvals := columnar.Len(values)
	rows := nvals
	if validity != nil {
		rows = len(validity)
		present := 0
		for _, ok := range validity {
			if ok {
				present++
			}
		}
		if present != nvals {
			return errors.Newf(errors.ErrorTypeSchemaMismatch,
				"column %q: %d values, validity marks %d present", desc.Name, nvals, present)
		}
		if !desc.Nullable() && present != rows {
			return errors.Newf(errors.ErrorTypeSchemaMismatch,
				"column %q is REQUIRED but has %d nulls", desc.Name, rows-present)
		}
	}
	if column > 0 && rows != w.passRows {
		return errors.Newf(errors.ErrorTypeSchemaMismatch,
			"column %q has %d rows, this write pass has %d", desc.Name, rows, w.passRows)
	}
	if int64(w.buffered)+int64(rows) > math.MaxInt32 {
		return errors.Newf(errors.ErrorTypeInvalidArgument, "write pass of %d rows is too large", rows)
	}

	cb.values = appendValues(cb.values, values)
	if desc.Nullable() {
		for i := 0; i < rows; i++ {
			if validity == nil || validity[i] {
				cb.defLevels = append(cb.defLevels, 1)
			} else {
				cb.defLevels = append(cb.defLevels, 0)
			}
		}
	}

	if column == 0 {
		w.passRows = rows
	}
	w.nextColumn++
	if w.nextColumn < len(w.columns) {
		return nil
	}

	w.nextColumn = 0
	w.buffered += w.passRows
	w.passRows = -1
	for w.buffered >= w.cfg.RowGroupRows {
		if err := w.flushRows(w.cfg.RowGroupRows); err != nil {
			return err
		}
	}
	return nil
}

// WriteColumn writes c as the next column of the current write pass.
func (w *Writer) WriteColumn(column int, c columnar.Column) error {
	if c == nil {
		return errors.New(errors.ErrorTypeInvalidArgument, "column is nil")
	}
	return w.WriteBatch(column, c.DenseValues(), c.Validity(), nil)
}

// FlushRowGroup closes the buffered rows into a row group now. The current
// write pass must be complete.
func (w *Writer) FlushRowGroup() error {
	if err := w.usable(); err != nil {
		return err
	}
	if w.nextColumn != 0 {
		return errors.Newf(errors.ErrorTypeIncompleteRowGroup,
			"write pass stopped at column %d of %d", w.nextColumn, len(w.columns))
	}
	if w.buffered == 0 {
		return nil
	}
	return w.flushRows(w.buffered)
}

// Close flushes buffered rows and writes the metadata block and footer.
// Closing with a partial write pass fails with IncompleteRowGroup and
// leaves an unreadable file. Close is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	err := w.finish()
	w.closed = true

	if w.flusher != nil {
		if ferr := w.flusher.Flush(); ferr != nil && err == nil {
			err = errors.Wrap(ferr, errors.ErrorTypeFile, "failed to flush file")
		}
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close file")
		}
	}
	return err
}

func (w *Writer) usable() error {
	if w.closed {
		return errors.New(errors.ErrorTypeInvalidArgument, "writer is closed")
	}
	return w.err
}

func (w *Writer) finish() error {
	if w.err != nil {
		return w.err
	}
	if w.nextColumn != 0 {
		return errors.Newf(errors.ErrorTypeIncompleteRowGroup,
			"close with write pass stopped at column %d of %d", w.nextColumn, len(w.columns))
	}
	if w.buffered > 0 || len(w.rowGroups) == 0 {
		if err := w.flushRows(w.buffered); err != nil {
			return err
		}
	}

	for _, pb := range w.blooms {
		chunk := &w.rowGroups[pb.rowGroup].Columns[pb.column]
		chunk.BloomOffset = w.offset
		b := pb.filter.Bytes()
		if err := w.write(b); err != nil {
			return err
		}
		chunk.BloomLength = int64(len(b))
	}
	w.blooms = nil

	md := &FileMetadata{
		Version:   FormatVersion,
		CreatedBy: w.createdBy,
		FileID:    w.fileID,
		KeyValues: w.keyValues,
		NumRows:   w.flushed,
		Schema:    w.schema,
		RowGroups: w.rowGroups,
	}
	b := encodeMetadata(md)
	if uint64(len(b)) > math.MaxUint32 {
		return errors.Newf(errors.ErrorTypeInvalidArgument, "metadata of %d bytes is too large", len(b))
	}
	if err := w.write(b); err != nil {
		return err
	}

	footer := make([]byte, 0, footerSize)
	footer = binary.LittleEndian.AppendUint32(footer, uint32(len(b)))
	footer = binary.LittleEndian.AppendUint32(footer, checksum.Checksum(b))
	footer = append(footer, Magic...)
	if err := w.write(footer); err != nil {
		return err
	}

	w.logger.Debug("file written",
		zap.Int64("rows", w.flushed),
		zap.Int("row_groups", len(w.rowGroups)),
		zap.Int64("bytes", w.offset),
		zap.String("file_id", w.fileID.String()))
	return nil
}

func (w *Writer) write(p []byte) error {
	n, err := w.out.Write(p)
	w.offset += int64(n)
	if err != nil {
		w.err = errors.Wrap(err, errors.ErrorTypeFile, "write failed")
		return w.err
	}
	return nil
}

// flushRows writes the first n buffered rows as one row group.
func (w *Writer) flushRows(n int) error {
	index := len(w.rowGroups)
	rg := RowGroupMetadata{
		NumRows:    int64(n),
		FileOffset: w.offset,
		Columns:    make([]ColumnChunkMetadata, len(w.columns)),
	}
	for i, cb := range w.columns {
		values, defLevels := cb.take(n)
		if err := w.writeChunk(index, i, cb.desc, values, defLevels, n, &rg.Columns[i]); err != nil {
			w.err = err
			return err
		}
	}
	rg.TotalByteSize = w.offset - rg.FileOffset
	w.rowGroups = append(w.rowGroups, rg)
	w.buffered -= n
	w.flushed += int64(n)

	w.metrics.RowGroupWritten(int64(n))
	w.logger.Debug("flushed row group",
		logger.RowGroup(index),
		zap.Int("rows", n),
		zap.Int64("bytes", rg.TotalByteSize))
	return nil
}

// take removes the first n rows from the buffer.
func (b *columnBuffer) take(n int) (interface{}, []uint8) {
	nvals := n
	var defLevels []uint8
	if b.desc.Nullable() {
		defLevels = b.defLevels[:n:n]
		nvals = 0
		for _, d := range defLevels {
			nvals += int(d)
		}
		b.defLevels = b.defLevels[n:]
		if len(b.defLevels) == 0 {
			b.defLevels = nil
		}
	}
	total := columnar.Len(b.values)
	values := sliceValues(b.values, 0, nvals)
	if nvals == total {
		b.values = emptyValues(b.desc.Type)
	} else {
		b.values = sliceValues(b.values, nvals, total)
	}
	return values, defLevels
}

type pageSpan struct {
	rowLo, rowHi int
	valLo, valHi int
}

// splitPages cuts a chunk into pages of at most PageRows rows and roughly
// PageSizeBytes uncompressed bytes. Every page holds at least one row.
func (w *Writer) splitPages(desc schema.Column, values interface{}, defLevels []uint8, rows int) []pageSpan {
	var spans []pageSpan
	rowLo, valLo, val, size := 0, 0, 0, 0
	for r := 0; r < rows; r++ {
		present := defLevels == nil || defLevels[r] == 1
		rs := 0
		if defLevels != nil {
			rs = 1
		}
		if present {
			rs += valueSize(desc, values, val)
		}
		if r > rowLo && (r-rowLo >= w.cfg.PageRows || size+rs > w.cfg.PageSizeBytes) {
			spans = append(spans, pageSpan{rowLo, r, valLo, val})
			rowLo, valLo, size = r, val, 0
		}
		size += rs
		if present {
			val++
		}
	}
	if rows > rowLo {
		spans = append(spans, pageSpan{rowLo, rows, valLo, val})
	}
	return spans
}

func (w *Writer) writeChunk(rowGroup, column int, desc schema.Column, values interface{}, defLevels []uint8, rows int, chunk *ColumnChunkMetadata) error {
	codec := w.cfg.CodecFor(desc.Name)
	nvals := columnar.Len(values)
	*chunk = ColumnChunkMetadata{
		Codec:      codec,
		FileOffset: w.offset,
		NumValues:  int64(rows),
		NullCount:  int64(rows - nvals),
	}

	for _, sp := range w.splitPages(desc, values, defLevels, rows) {
		var pageDefs []uint8
		if defLevels != nil {
			pageDefs = defLevels[sp.rowLo:sp.rowHi]
		}
		page, err := encodePage(desc, sliceValues(values, sp.valLo, sp.valHi), pageDefs, sp.rowHi-sp.rowLo, codec, w.cfg.Level)
		if err != nil {
			return errors.Wrap(err, errors.TypeOf(err), "failed to encode page").
				WithDetail("column", desc.Name).
				WithDetail("row_group", rowGroup)
		}

		loc := PageLocation{
			Offset: w.offset,
			Size:   int64(PageHeaderSize + len(page.body)),
			Rows:   int64(page.header.Rows),
			CRC:    page.header.CRC,
		}
		var hdr [PageHeaderSize]byte
		err = w.write(page.header.appendTo(hdr[:0]))
		if err == nil {
			err = w.write(page.body)
		}
		raw, compressed := int(page.header.UncompressedLen), int(page.header.CompressedLen)
		page.release()
		if err != nil {
			return err
		}

		chunk.Pages = append(chunk.Pages, loc)
		chunk.CompressedSize += loc.Size
		chunk.UncompressedSize += int64(PageHeaderSize + raw)
		w.metrics.PageWritten(codec.String(), raw, compressed)
	}

	if w.cfg.EnableStatistics {
		st := columnar.ComputeStats(desc.Type, values, rows-nvals)
		chunk.HasMinMax, chunk.Min, chunk.Max = st.HasMinMax, st.Min, st.Max
	}
	if w.cfg.EnableBloomFilter && desc.Type != schema.Boolean && nvals > 0 {
		f := bloom.NewForValues(nvals, w.cfg.BloomBitsPerValue)
		insertValues(f, values)
		w.blooms = append(w.blooms, pendingBloom{rowGroup: rowGroup, column: column, filter: f})
	}
	return nil
}

// insertValues adds the key of every value to f, matching
// columnar.AppendBloomKey.
func insertValues(f *bloom.Filter, values interface{}) {
	var key [8]byte
	switch vs := values.(type) {
	case []int32:
		for _, v := range vs {
			binary.LittleEndian.PutUint32(key[:], uint32(v))
			f.InsertValue(key[:4])
		}
	case []int64:
		for _, v := range vs {
			binary.LittleEndian.PutUint64(key[:], uint64(v))
			f.InsertValue(key[:])
		}
	case []float32:
		for _, v := range vs {
			if v == 0 {
				v = 0 // -0
			}
			binary.LittleEndian.PutUint32(key[:], math.Float32bits(v))
			f.InsertValue(key[:4])
		}
	case []float64:
		for _, v := range vs {
			if v == 0 {
				v = 0 // -0
			}
			binary.LittleEndian.PutUint64(key[:], math.Float64bits(v))
			f.InsertValue(key[:])
		}
	case [][]byte:
		for _, v := range vs {
			f.InsertValue(v)
		}
	}
}
