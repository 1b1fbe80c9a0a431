package table

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tessera/pkg/bloom"
	"github.com/ajitpratap0/tessera/pkg/checksum"
	"github.com/ajitpratap0/tessera/pkg/columnar"
	"github.com/ajitpratap0/tessera/pkg/config"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/logger"
	"github.com/ajitpratap0/tessera/pkg/metrics"
	"github.com/ajitpratap0/tessera/pkg/mmap"
	"github.com/ajitpratap0/tessera/pkg/schema"
)

// Source is random-access file content. Sources that also implement
// Bytes() []byte are read by slicing instead of copying.
type Source interface {
	io.ReaderAt
	Size() int64
}

type byteSource interface {
	Bytes() []byte
}

// memSource serves an in-memory file.
type memSource []byte

func (m memSource) Size() int64   { return int64(len(m)) }
func (m memSource) Bytes() []byte { return m }

func (m memSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.Newf(errors.ErrorTypeInvalidArgument, "negative offset %d", off)
	}
	if off >= int64(len(m)) {
		return 0, io.EOF
	}
	n := copy(p, m[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// fileSource reads a regular file with pread.
type fileSource struct {
	*os.File
	size int64
}

func (f fileSource) Size() int64 { return f.size }

// Reader reads one file. Metadata accessors are safe for concurrent use;
// column and batch readers are not.
type Reader struct {
	src     Source
	data    []byte
	closer  io.Closer
	cfg     config.ReaderConfig
	md      *FileMetadata
	logger  *zap.Logger
	metrics *metrics.Collector
	closed  bool
}

// Open reads and validates the footer and metadata of src. A nil cfg uses
// config.DefaultReaderConfig.
func Open(src Source, cfg *config.ReaderConfig, opts ...Option) (*Reader, error) {
	if src == nil {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "source is nil")
	}
	if cfg == nil {
		cfg = config.DefaultReaderConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidArgument, "invalid reader config")
	}
	o := buildOptions(opts)
	r := &Reader{
		src:     src,
		cfg:     *cfg,
		logger:  o.logger,
		metrics: o.metrics,
	}
	if bs, ok := src.(byteSource); ok {
		r.data = bs.Bytes()
		if int64(len(r.data)) != src.Size() {
			return nil, errors.Newf(errors.ErrorTypeInternal,
				"source exposes %d bytes, reports size %d", len(r.data), src.Size())
		}
	}
	if err := r.readFooter(); err != nil {
		return nil, err
	}
	r.logger.Debug("opened file",
		zap.Int64("rows", r.md.NumRows),
		zap.Int("row_groups", len(r.md.RowGroups)),
		zap.Int("columns", r.md.Schema.NumColumns()),
		zap.Bool("zero_copy", r.aliasPages()))
	return r, nil
}

// OpenFile opens path, memory-mapping it when cfg.MemoryMap is set.
func OpenFile(path string, cfg *config.ReaderConfig, opts ...Option) (*Reader, error) {
	if cfg == nil {
		cfg = config.DefaultReaderConfig()
	}
	opts = append(opts[:len(opts):len(opts)], withFields(logger.File(path)))

	var (
		src    Source
		closer io.Closer
	)
	if cfg.MemoryMap {
		m, err := mmap.Open(path)
		if err != nil {
			return nil, err
		}
		_ = m.Advise(mmap.AdviceWillNeed)
		src, closer = m, m
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").
				WithDetail("path", path)
		}
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").
				WithDetail("path", path)
		}
		src, closer = fileSource{File: f, size: st.Size()}, f
	}

	r, err := Open(src, cfg, opts...)
	if err != nil {
		closer.Close()
		var e *errors.Error
		if errors.As(err, &e) {
			e.WithDetail("path", path)
		}
		return nil, err
	}
	r.closer = closer
	return r, nil
}

// OpenBytes reads a file held in memory. b must not be modified while the
// reader or any batch aliasing it is in use.
func OpenBytes(b []byte, cfg *config.ReaderConfig, opts ...Option) (*Reader, error) {
	return Open(memSource(b), cfg, opts...)
}

// readRange returns size bytes at off. Sliced sources return a view.
func (r *Reader) readRange(off, size int64) ([]byte, error) {
	if !within(off, size, 0, r.src.Size()) {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
			"range [%d,+%d) outside file of %d bytes", off, size, r.src.Size())
	}
	if r.data != nil {
		return r.data[off : off+size : off+size], nil
	}
	if int64(int(size)) != size {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat, "range of %d bytes too large", size)
	}
	buf := make([]byte, size)
	n, err := r.src.ReadAt(buf, off)
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, errors.Wrap(err, errors.ErrorTypeFile, "read failed").
		WithDetail("offset", off).
		WithDetail("size", size)
}

func (r *Reader) readFooter() error {
	size := r.src.Size()
	if size < int64(MinFileSize) {
		return errors.Newf(errors.ErrorTypeInvalidFormat,
			"file of %d bytes is smaller than the minimum %d", size, MinFileSize)
	}
	head, err := r.readRange(0, int64(len(Magic)))
	if err != nil {
		return err
	}
	if string(head) != Magic {
		return errors.Newf(errors.ErrorTypeInvalidFormat, "bad leading magic %q", head)
	}
	footer, err := r.readRange(size-footerSize, footerSize)
	if err != nil {
		return err
	}
	if string(footer[8:]) != Magic {
		return errors.Newf(errors.ErrorTypeInvalidFormat, "bad trailing magic %q", footer[8:])
	}

	metaLen := int64(binary.LittleEndian.Uint32(footer))
	metaCRC := binary.LittleEndian.Uint32(footer[4:])
	metaStart := size - footerSize - metaLen
	if metaStart < int64(len(Magic)) {
		return errors.Newf(errors.ErrorTypeInvalidFormat,
			"metadata length %d inconsistent with file size %d", metaLen, size)
	}
	meta, err := r.readRange(metaStart, metaLen)
	if err != nil {
		return err
	}
	if got := checksum.Checksum(meta); got != metaCRC {
		r.metrics.ChecksumFailure()
		return errors.Newf(errors.ErrorTypeInvalidFormat,
			"metadata crc32 %08x, footer says %08x", got, metaCRC)
	}

	md, err := decodeMetadata(meta)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInvalidFormat, "invalid metadata")
	}
	if err := validateMetadata(md, metaStart); err != nil {
		return err
	}
	r.md = md
	return nil
}

// aliasPages reports whether decoded values may reference file bytes.
func (r *Reader) aliasPages() bool {
	return r.cfg.ZeroCopy && r.data != nil
}

// Schema returns the frozen file schema.
func (r *Reader) Schema() *schema.Schema { return r.md.Schema }

// NumRows returns the total row count.
func (r *Reader) NumRows() int64 { return r.md.NumRows }

// NumColumns returns the schema column count.
func (r *Reader) NumColumns() int { return r.md.Schema.NumColumns() }

// NumRowGroups returns the row group count.
func (r *Reader) NumRowGroups() int { return len(r.md.RowGroups) }

// Metadata returns the decoded metadata. It must not be modified.
func (r *Reader) Metadata() *FileMetadata { return r.md }

// Config returns the reader settings.
func (r *Reader) Config() config.ReaderConfig { return r.cfg }

// RowGroupMetadata returns the metadata of row group i.
func (r *Reader) RowGroupMetadata(i int) (*RowGroupMetadata, error) {
	if i < 0 || i >= len(r.md.RowGroups) {
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument,
			"row group %d out of range [0,%d)", i, len(r.md.RowGroups))
	}
	return &r.md.RowGroups[i], nil
}

func (r *Reader) chunk(rg, col int) (*ColumnChunkMetadata, schema.Column, error) {
	g, err := r.RowGroupMetadata(rg)
	if err != nil {
		return nil, schema.Column{}, err
	}
	desc, err := r.md.Schema.Column(col)
	if err != nil {
		return nil, schema.Column{}, err
	}
	return &g.Columns[col], desc, nil
}

// ColumnReader returns a reader over one column chunk.
func (r *Reader) ColumnReader(rg, col int) (*ColumnReader, error) {
	if r.closed {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "reader is closed")
	}
	chunk, desc, err := r.chunk(rg, col)
	if err != nil {
		return nil, err
	}
	return &ColumnReader{
		r:        r,
		desc:     desc,
		rowGroup: rg,
		column:   col,
		chunk:    chunk,
	}, nil
}

// BloomFilter loads the Bloom filter of a column chunk. It returns nil and
// no error when the chunk has none.
func (r *Reader) BloomFilter(rg, col int) (*bloom.Filter, error) {
	if r.closed {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "reader is closed")
	}
	chunk, _, err := r.chunk(rg, col)
	if err != nil {
		return nil, err
	}
	if !chunk.HasBloomFilter() {
		return nil, nil
	}
	b, err := r.readRange(chunk.BloomOffset, chunk.BloomLength)
	if err != nil {
		return nil, err
	}
	f, err := bloom.FromBytes(b)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidFormat, "invalid bloom filter").
			WithDetail("row_group", rg).
			WithDetail("column", col)
	}
	return f, nil
}

// RowGroupMightContain reports whether the column chunk may hold value,
// using min/max statistics and the Bloom filter. A false result is exact.
func (r *Reader) RowGroupMightContain(rg, col int, value interface{}) (bool, error) {
	chunk, desc, err := r.chunk(rg, col)
	if err != nil {
		return false, err
	}
	key, err := columnar.AppendKey(nil, desc.Type, value)
	if err != nil {
		return false, err
	}
	if chunk.NumValues == chunk.NullCount {
		return false, nil
	}

	if chunk.HasMinMax && !isNaN(value) {
		lo, err := columnar.CompareKeys(desc.Type, key, chunk.Min)
		if err != nil {
			return false, err
		}
		hi, err := columnar.CompareKeys(desc.Type, key, chunk.Max)
		if err != nil {
			return false, err
		}
		if lo < 0 || hi > 0 {
			return false, nil
		}
	}

	f, err := r.BloomFilter(rg, col)
	if err != nil {
		return false, err
	}
	if f == nil {
		return true, nil
	}
	if key, err = columnar.AppendBloomKey(key[:0], desc.Type, value); err != nil {
		return false, err
	}
	return f.CheckValue(key), nil
}

func isNaN(v interface{}) bool {
	switch x := v.(type) {
	case float32:
		return math.IsNaN(float64(x))
	case float64:
		return math.IsNaN(x)
	}
	return false
}

// Close releases the source. Batches aliasing a mapped file become
// invalid. Close is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.data = nil
	if r.closer != nil {
		if err := r.closer.Close(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to close file")
		}
	}
	return nil
}

func (r *Reader) checksumFailed(err error, rg, col, page int) {
	r.metrics.ChecksumFailure()
	name := ""
	if c, cerr := r.md.Schema.Column(col); cerr == nil {
		name = c.Name
	}
	r.logger.Warn("page checksum mismatch",
		logger.RowGroup(rg),
		logger.Column(name),
		logger.Page(page),
		zap.Error(err))
}
