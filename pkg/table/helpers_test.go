package table

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/tessera/pkg/config"
	"github.com/ajitpratap0/tessera/pkg/schema"
	"github.com/ajitpratap0/tessera/pkg/testutil"
)

// smallWriterConfig returns a config that produces several pages and row
// groups from a few hundred rows.
func smallWriterConfig() *config.WriterConfig {
	cfg := config.DefaultWriterConfig()
	cfg.RowGroupRows = 300
	cfg.PageRows = 64
	cfg.PageSizeBytes = 1024
	return cfg
}

// generated holds the input written for every column of a schema.
type generated []testutil.ColumnData

func generate(s *schema.Schema, rows int, seed int64) generated {
	rng := rand.New(rand.NewSource(seed))
	out := make(generated, s.NumColumns())
	for i, c := range s.Columns() {
		out[i] = testutil.Generate(c, rows, rng, 4)
	}
	return out
}

// slicePass returns rows [lo, hi) of cd.
func slicePass(cd testutil.ColumnData, lo, hi int) testutil.ColumnData {
	if cd.Validity == nil {
		return testutil.ColumnData{Values: sliceValues(cd.Values, lo, hi)}
	}
	vlo := 0
	for _, ok := range cd.Validity[:lo] {
		if ok {
			vlo++
		}
	}
	vhi := vlo
	for _, ok := range cd.Validity[lo:hi] {
		if ok {
			vhi++
		}
	}
	return testutil.ColumnData{Values: sliceValues(cd.Values, vlo, vhi), Validity: cd.Validity[lo:hi]}
}

// writeAll writes data in passes of the given row counts and returns the file.
func writeAll(t *testing.T, s *schema.Schema, cfg *config.WriterConfig, data generated, passes []int, opts ...Option) []byte {
	t.Helper()
	var buf bytes.Buffer
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	w, err := NewWriter(&buf, s, cfg, opts...)
	require.NoError(t, err)

	lo := 0
	for _, n := range passes {
		for col, cd := range data {
			p := slicePass(cd, lo, lo+n)
			require.NoError(t, w.WriteBatch(col, p.Values, p.Validity, nil), "column %d", col)
		}
		lo += n
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// readAll reads every batch and returns per-column dense values and
// validity (all true for REQUIRED columns), plus the batch row counts.
func readAll(t *testing.T, r *Reader, cfg BatchConfig) (generated, []*Batch) {
	t.Helper()
	br, err := r.BatchReader(cfg)
	require.NoError(t, err)

	var out generated
	var batches []*Batch
	for {
		b, err := br.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if out == nil {
			out = make(generated, len(b.Columns))
			for i, idx := range b.Indices {
				c, _ := r.Schema().Column(idx)
				out[i].Values = emptyValues(c.Type)
				out[i].Validity = []bool{}
			}
		}
		for i, c := range b.Columns {
			require.Equal(t, b.NumRows, c.Len())
			out[i].Values = concatValues(out[i].Values, c.DenseValues())
			validity := c.Validity()
			for j := 0; j < c.Len(); j++ {
				out[i].Validity = append(out[i].Validity, validity == nil || validity[j])
			}
		}
		batches = append(batches, b)
	}
	return out, batches
}

// requireSameData compares written input with data read back.
func requireSameData(t *testing.T, s *schema.Schema, want, got generated) {
	t.Helper()
	require.Len(t, got, len(want))
	for i, c := range s.Columns() {
		require.Equal(t, want[i].Values, got[i].Values, "column %s values", c.Name)
		wantValidity := want[i].Validity
		if wantValidity == nil {
			wantValidity = make([]bool, len(got[i].Validity))
			for j := range wantValidity {
				wantValidity[j] = true
			}
		}
		require.Equal(t, wantValidity, got[i].Validity, "column %s validity", c.Name)
	}
}

func int32Schema(t *testing.T, names ...string) *schema.Schema {
	t.Helper()
	cols := make([]schema.Column, len(names))
	for i, n := range names {
		cols[i] = schema.RequiredColumn(n, schema.Int32)
	}
	s, err := schema.New(cols...)
	require.NoError(t, err)
	return s
}
