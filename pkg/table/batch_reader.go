package table

import (
	"io"

	"github.com/ajitpratap0/tessera/pkg/columnar"
	"github.com/ajitpratap0/tessera/pkg/errors"
)

// BatchConfig selects what a BatchReader returns.
type BatchConfig struct {
	// BatchSize is the maximum rows per batch. Zero uses the reader's
	// configured batch size.
	BatchSize int
	// Columns names the columns to read, in output order. Empty reads all.
	Columns []string
}

// Batch is a window of rows from one row group. Columns are slot-aligned:
// row i of every column belongs to the same record.
type Batch struct {
	Columns []columnar.Column
	Names   []string
	// Indices are the schema positions of Columns.
	Indices  []int
	NumRows  int
	RowGroup int
}

// Column returns the named column of the batch.
func (b *Batch) Column(name string) (columnar.Column, bool) {
	for i, n := range b.Names {
		if n == name {
			return b.Columns[i], true
		}
	}
	return nil, false
}

// Release drops the batch's value buffers.
func (b *Batch) Release() {
	for i, c := range b.Columns {
		if rc, ok := c.(interface{ Release() }); ok {
			rc.Release()
		}
		b.Columns[i] = nil
	}
	b.Columns = nil
	b.NumRows = 0
}

// BatchReader materializes fixed-size row windows across selected columns.
// It moves forward only; batches never span two row groups.
type BatchReader struct {
	r        *Reader
	size     int
	indices  []int
	names    []string
	rowGroup int
	readers  []*ColumnReader
	err      error
}

// BatchReader starts a forward scan over the file.
func (r *Reader) BatchReader(cfg BatchConfig) (*BatchReader, error) {
	if r.closed {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "reader is closed")
	}
	size := cfg.BatchSize
	if size == 0 {
		size = r.cfg.BatchSize
	}
	if size < 0 {
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "batch size %d must be positive", size)
	}

	s := r.md.Schema
	var indices []int
	var names []string
	if len(cfg.Columns) == 0 {
		for i, c := range s.Columns() {
			indices = append(indices, i)
			names = append(names, c.Name)
		}
	} else {
		seen := make(map[string]bool, len(cfg.Columns))
		for _, name := range cfg.Columns {
			idx, ok := s.Lookup(name)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "unknown column %q", name)
			}
			if seen[name] {
				return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "column %q selected twice", name)
			}
			seen[name] = true
			indices = append(indices, idx)
			names = append(names, name)
		}
	}
	return &BatchReader{r: r, size: size, indices: indices, names: names}, nil
}

// Next returns the next batch, or io.EOF after the last one.
func (br *BatchReader) Next() (*Batch, error) {
	if br.err != nil {
		return nil, br.err
	}
	for {
		if br.readers == nil {
			if br.rowGroup >= br.r.NumRowGroups() {
				br.err = io.EOF
				return nil, io.EOF
			}
			if br.r.md.RowGroups[br.rowGroup].NumRows == 0 {
				br.rowGroup++
				continue
			}
			if err := br.openRowGroup(); err != nil {
				br.err = err
				return nil, err
			}
		}

		b, err := br.readBatch()
		if err == io.EOF {
			br.readers = nil
			br.rowGroup++
			continue
		}
		if err != nil {
			br.err = err
			return nil, err
		}
		return b, nil
	}
}

func (br *BatchReader) openRowGroup() error {
	readers := make([]*ColumnReader, len(br.indices))
	for i, idx := range br.indices {
		cr, err := br.r.ColumnReader(br.rowGroup, idx)
		if err != nil {
			return err
		}
		readers[i] = cr
	}
	br.readers = readers
	return nil
}

func (br *BatchReader) readBatch() (*Batch, error) {
	b := &Batch{
		Columns:  make([]columnar.Column, len(br.readers)),
		Names:    br.names,
		Indices:  br.indices,
		RowGroup: br.rowGroup,
	}
	for i, cr := range br.readers {
		cb, err := cr.ReadBatch(br.size)
		if err == io.EOF && i == 0 {
			return nil, io.EOF
		}
		if err == io.EOF {
			return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
				"column %q ended before column %q in row group %d", br.names[i], br.names[0], br.rowGroup)
		}
		if err != nil {
			return nil, err
		}
		if i == 0 {
			b.NumRows = cb.Rows
		} else if cb.Rows != b.NumRows {
			return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
				"column %q returned %d rows, expected %d", br.names[i], cb.Rows, b.NumRows)
		}

		var validity []bool
		if cb.DefLevels != nil {
			validity = make([]bool, len(cb.DefLevels))
			for j, d := range cb.DefLevels {
				validity[j] = d == 1
			}
		}
		col, err := columnar.FromValues(cr.desc.Type, cb.Values.DenseValues(), validity)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to materialize column").
				WithDetail("column", br.names[i])
		}
		b.Columns[i] = col
	}
	return b, nil
}
