// Package arrowbatch exports materialized batches as Apache Arrow records
// and Arrow IPC files.
package arrowbatch

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/tessera/pkg/columnar"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/schema"
	"github.com/ajitpratap0/tessera/pkg/table"
)

// DataType returns the Arrow type for a column.
func DataType(c schema.Column) (arrow.DataType, error) {
	switch c.Type {
	case schema.Boolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case schema.Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case schema.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case schema.Float:
		return arrow.PrimitiveTypes.Float32, nil
	case schema.Double:
		return arrow.PrimitiveTypes.Float64, nil
	case schema.ByteArray:
		return arrow.BinaryTypes.Binary, nil
	case schema.FixedLenByteArray:
		return &arrow.FixedSizeBinaryType{ByteWidth: int(c.TypeLength)}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "unsupported physical type %s", c.Type)
	}
}

// Schema converts the columns at indices of s to an Arrow schema. Nil
// indices select every column.
func Schema(s *schema.Schema, indices []int) (*arrow.Schema, error) {
	if indices == nil {
		indices = make([]int, s.NumColumns())
		for i := range indices {
			indices[i] = i
		}
	}
	fields := make([]arrow.Field, len(indices))
	for i, idx := range indices {
		c, err := s.Column(idx)
		if err != nil {
			return nil, err
		}
		dt, err := DataType(c)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt, Nullable: c.Nullable()}
	}
	md := arrow.NewMetadata([]string{"tessera.schema_fingerprint"}, []string{s.Fingerprint()})
	return arrow.NewSchema(fields, &md), nil
}

// Converter builds Arrow records from batches read with one schema.
type Converter struct {
	mem     memory.Allocator
	schema  *arrow.Schema
	builder *array.RecordBuilder
}

// NewConverter prepares a converter for batches over the given columns of
// s. A nil allocator uses the Go allocator.
func NewConverter(mem memory.Allocator, s *schema.Schema, indices []int) (*Converter, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	as, err := Schema(s, indices)
	if err != nil {
		return nil, err
	}
	return &Converter{mem: mem, schema: as, builder: array.NewRecordBuilder(mem, as)}, nil
}

// ArrowSchema returns the Arrow schema of produced records.
func (c *Converter) ArrowSchema() *arrow.Schema { return c.schema }

// Record converts b. The caller must Release the record.
func (c *Converter) Record(b *table.Batch) (arrow.Record, error) {
	fields := c.schema.Fields()
	if len(b.Columns) != len(fields) {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
			"batch has %d columns, arrow schema has %d", len(b.Columns), len(fields))
	}
	// Builders are only touched once every column checks out.
	for i, col := range b.Columns {
		if err := checkColumn(fields[i].Type, col, b.NumRows); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSchemaMismatch, "failed to convert column").
				WithDetail("column", fields[i].Name)
		}
	}
	c.builder.Reserve(b.NumRows)
	for i, col := range b.Columns {
		appendColumn(c.builder.Field(i), col)
	}
	return c.builder.NewRecord(), nil
}

// Release frees the converter's builders.
func (c *Converter) Release() {
	c.builder.Release()
}

func checkColumn(dt arrow.DataType, col columnar.Column, rows int) error {
	if col == nil {
		return fmt.Errorf("column is missing")
	}
	if col.Len() != rows {
		return fmt.Errorf("column has %d rows, batch has %d", col.Len(), rows)
	}
	var ok bool
	switch dt.ID() {
	case arrow.BOOL:
		_, ok = col.(*columnar.BoolColumn)
	case arrow.INT32:
		_, ok = col.(*columnar.Int32Column)
	case arrow.INT64:
		_, ok = col.(*columnar.Int64Column)
	case arrow.FLOAT32:
		_, ok = col.(*columnar.Float32Column)
	case arrow.FLOAT64:
		_, ok = col.(*columnar.Float64Column)
	case arrow.BINARY:
		_, ok = col.(*columnar.BytesColumn)
	case arrow.FIXED_SIZE_BINARY:
		var tc *columnar.BytesColumn
		if tc, ok = col.(*columnar.BytesColumn); ok {
			width := dt.(*arrow.FixedSizeBinaryType).ByteWidth
			valid := tc.Validity()
			for i, v := range tc.Values() {
				if (valid == nil || valid[i]) && len(v) != width {
					return fmt.Errorf("value %d has %d bytes, want %d", i, len(v), width)
				}
			}
		}
	default:
		return fmt.Errorf("unsupported arrow type %s", dt)
	}
	if !ok {
		return fmt.Errorf("column of type %T cannot hold %s", col, dt)
	}
	return nil
}

func appendColumn(b array.Builder, col columnar.Column) {
	valid := col.Validity()
	switch bld := b.(type) {
	case *array.BooleanBuilder:
		bld.AppendValues(col.(*columnar.BoolColumn).Values(), valid)
	case *array.Int32Builder:
		bld.AppendValues(col.(*columnar.Int32Column).Values(), valid)
	case *array.Int64Builder:
		bld.AppendValues(col.(*columnar.Int64Column).Values(), valid)
	case *array.Float32Builder:
		bld.AppendValues(col.(*columnar.Float32Column).Values(), valid)
	case *array.Float64Builder:
		bld.AppendValues(col.(*columnar.Float64Column).Values(), valid)
	case *array.BinaryBuilder:
		bld.AppendValues(col.(*columnar.BytesColumn).Values(), valid)
	case *array.FixedSizeBinaryBuilder:
		bld.AppendValues(col.(*columnar.BytesColumn).Values(), valid)
	}
}

// WriteIPC streams every batch of r into an Arrow IPC file on w and returns
// the rows written.
func WriteIPC(w io.Writer, r *table.Reader, cfg table.BatchConfig, mem memory.Allocator) (int64, error) {
	br, err := r.BatchReader(cfg)
	if err != nil {
		return 0, err
	}

	var indices []int
	if len(cfg.Columns) > 0 {
		for _, name := range cfg.Columns {
			idx, _ := r.Schema().Lookup(name)
			indices = append(indices, idx)
		}
	}
	conv, err := NewConverter(mem, r.Schema(), indices)
	if err != nil {
		return 0, err
	}
	defer conv.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(conv.ArrowSchema()), ipc.WithAllocator(conv.mem))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create arrow writer")
	}

	var rows int64
	for {
		b, err := br.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fw.Close()
			return rows, err
		}
		rec, err := conv.Record(b)
		b.Release()
		if err != nil {
			fw.Close()
			return rows, err
		}
		err = fw.Write(rec)
		rows += rec.NumRows()
		rec.Release()
		if err != nil {
			fw.Close()
			return rows, errors.Wrap(err, errors.ErrorTypeFile, "failed to write record batch")
		}
	}
	if err := fw.Close(); err != nil {
		return rows, errors.Wrap(err, errors.ErrorTypeFile, "failed to close arrow writer")
	}
	return rows, nil
}
