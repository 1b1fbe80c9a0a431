package arrowbatch

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tessera/pkg/columnar"
	"github.com/ajitpratap0/tessera/pkg/config"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/schema"
	"github.com/ajitpratap0/tessera/pkg/table"
	"github.com/ajitpratap0/tessera/pkg/testutil"
)

func testSchema(t *testing.T) *schema.Schema {
	s, err := schema.New(
		schema.RequiredColumn("id", schema.Int64),
		schema.OptionalColumn("name", schema.ByteArray),
		schema.FixedLenColumn("code", 3, schema.Optional),
		schema.RequiredColumn("score", schema.Double),
		schema.OptionalColumn("ok", schema.Boolean),
		schema.RequiredColumn("small", schema.Int32),
		schema.OptionalColumn("ratio", schema.Float),
	)
	require.NoError(t, err)
	return s
}

func testFile(t *testing.T) *table.Reader {
	s := testSchema(t)
	cfg := config.DefaultWriterConfig()
	cfg.RowGroupRows = 3
	cfg.PageRows = 2

	var buf bytes.Buffer
	w, err := table.NewWriter(&buf, s, cfg, table.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(0, []int64{1, 2, 3, 4, 5}, nil, nil))
	require.NoError(t, w.WriteBatch(1, []string{"a", "ccc"}, []bool{true, false, false, true, false}, nil))
	require.NoError(t, w.WriteBatch(2, []string{"abc", "xyz", "qrs"}, []bool{true, true, false, false, true}, nil))
	require.NoError(t, w.WriteBatch(3, []float64{0.5, 1.5, 2.5, 3.5, 4.5}, nil, nil))
	require.NoError(t, w.WriteBatch(4, []bool{true}, []bool{false, false, true, false, false}, nil))
	require.NoError(t, w.WriteBatch(5, []int32{-1, -2, -3, -4, -5}, nil, nil))
	require.NoError(t, w.WriteBatch(6, []float32{}, []bool{false, false, false, false, false}, nil))
	require.NoError(t, w.Close())

	r, err := table.OpenBytes(buf.Bytes(), nil, table.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSchema(t *testing.T) {
	s := testSchema(t)
	as, err := Schema(s, nil)
	require.NoError(t, err)
	require.Len(t, as.Fields(), 7)

	assert.Equal(t, arrow.PrimitiveTypes.Int64, as.Field(0).Type)
	assert.False(t, as.Field(0).Nullable)
	assert.Equal(t, arrow.BinaryTypes.Binary, as.Field(1).Type)
	assert.True(t, as.Field(1).Nullable)
	assert.Equal(t, &arrow.FixedSizeBinaryType{ByteWidth: 3}, as.Field(2).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Float64, as.Field(3).Type)
	assert.Equal(t, arrow.FixedWidthTypes.Boolean, as.Field(4).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Int32, as.Field(5).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Float32, as.Field(6).Type)

	md := as.Metadata()
	idx := md.FindKey("tessera.schema_fingerprint")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, s.Fingerprint(), md.Values()[idx])

	sub, err := Schema(s, []int{3, 0})
	require.NoError(t, err)
	assert.Equal(t, "score", sub.Field(0).Name)
	assert.Equal(t, "id", sub.Field(1).Name)

	_, err = Schema(s, []int{9})
	assert.Error(t, err)
}

func TestWriteIPC(t *testing.T) {
	r := testFile(t)
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())

	var out bytes.Buffer
	rows, err := WriteIPC(&out, r, table.BatchConfig{BatchSize: 2}, mem)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rows)
	mem.AssertSize(t, 0)

	fr, err := ipc.NewFileReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	defer fr.Close()

	// Row groups of 3 and 2 rows, batches of at most 2.
	require.Equal(t, 3, fr.NumRecords())

	var (
		ids    []int64
		names  []string
		codes  []string
		scores []float64
		oks    []string
		smalls []int32
	)
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		require.NoError(t, err)

		id := rec.Column(0).(*array.Int64)
		name := rec.Column(1).(*array.Binary)
		code := rec.Column(2).(*array.FixedSizeBinary)
		score := rec.Column(3).(*array.Float64)
		ok := rec.Column(4).(*array.Boolean)
		small := rec.Column(5).(*array.Int32)
		ratio := rec.Column(6).(*array.Float32)
		for j := 0; j < int(rec.NumRows()); j++ {
			ids = append(ids, id.Value(j))
			if name.IsNull(j) {
				names = append(names, "<null>")
			} else {
				names = append(names, string(name.Value(j)))
			}
			if code.IsNull(j) {
				codes = append(codes, "<null>")
			} else {
				codes = append(codes, string(code.Value(j)))
			}
			scores = append(scores, score.Value(j))
			switch {
			case ok.IsNull(j):
				oks = append(oks, "<null>")
			case ok.Value(j):
				oks = append(oks, "true")
			default:
				oks = append(oks, "false")
			}
			smalls = append(smalls, small.Value(j))
		}
		assert.Equal(t, int(rec.NumRows()), ratio.NullN())
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)
	assert.Equal(t, []string{"a", "<null>", "<null>", "ccc", "<null>"}, names)
	assert.Equal(t, []string{"abc", "xyz", "<null>", "<null>", "qrs"}, codes)
	assert.Equal(t, []float64{0.5, 1.5, 2.5, 3.5, 4.5}, scores)
	assert.Equal(t, []string{"<null>", "<null>", "true", "<null>", "<null>"}, oks)
	assert.Equal(t, []int32{-1, -2, -3, -4, -5}, smalls)
}

func TestWriteIPCColumnSelection(t *testing.T) {
	r := testFile(t)

	var out bytes.Buffer
	rows, err := WriteIPC(&out, r, table.BatchConfig{Columns: []string{"score", "id"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rows)

	fr, err := ipc.NewFileReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	defer fr.Close()
	require.Len(t, fr.Schema().Fields(), 2)
	assert.Equal(t, "score", fr.Schema().Field(0).Name)
	assert.Equal(t, "id", fr.Schema().Field(1).Name)

	_, err = WriteIPC(&out, r, table.BatchConfig{Columns: []string{"missing"}}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}

func TestRecordRejectsMismatchedBatch(t *testing.T) {
	s := testSchema(t)
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	conv, err := NewConverter(mem, s, []int{0, 2})
	require.NoError(t, err)

	ids, err := columnar.FromValues(schema.Int64, []int64{1, 2}, nil)
	require.NoError(t, err)
	codes, err := columnar.FromValues(schema.FixedLenByteArray, [][]byte{[]byte("toolong")}, []bool{true, false})
	require.NoError(t, err)
	wrongType, err := columnar.FromValues(schema.Int32, []int32{1, 2}, nil)
	require.NoError(t, err)
	goodCodes, err := columnar.FromValues(schema.FixedLenByteArray, [][]byte{[]byte("abc")}, []bool{false, true})
	require.NoError(t, err)

	tests := []struct {
		name  string
		batch *table.Batch
	}{
		{"column count", &table.Batch{Columns: []columnar.Column{ids}, NumRows: 2}},
		{"fixed width", &table.Batch{Columns: []columnar.Column{ids, codes}, NumRows: 2}},
		{"wrong type", &table.Batch{Columns: []columnar.Column{wrongType, goodCodes}, NumRows: 2}},
		{"row count", &table.Batch{Columns: []columnar.Column{ids, goodCodes}, NumRows: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := conv.Record(tt.batch)
			assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch), "got %v", err)
		})
	}

	rec, err := conv.Record(&table.Batch{Columns: []columnar.Column{ids, goodCodes}, NumRows: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.NumRows())
	assert.True(t, rec.Column(1).IsNull(0))
	assert.Equal(t, []byte("abc"), rec.Column(1).(*array.FixedSizeBinary).Value(1))
	rec.Release()

	conv.Release()
	mem.AssertSize(t, 0)
}
