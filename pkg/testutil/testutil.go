// Package testutil provides testing utilities for Tessera
package testutil

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/tessera/pkg/schema"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TempPath returns a path named name inside a directory removed when the
// test completes. The file is not created.
func TempPath(t testing.TB, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// WriteTempFile writes content to a new temporary file and returns its path.
func WriteTempFile(t testing.TB, name string, content []byte) string {
	t.Helper()
	path := TempPath(t, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// FixedLen is the width of the fixed-length byte array columns in
// AllTypesSchema.
const FixedLen = 6

// AllTypesSchema returns a schema with one REQUIRED and one OPTIONAL column
// of every physical type, named "<type>_req" and "<type>_opt".
func AllTypesSchema(t testing.TB) *schema.Schema {
	t.Helper()
	var cols []schema.Column
	for _, typ := range schema.PhysicalTypes {
		for _, rep := range []schema.Repetition{schema.Required, schema.Optional} {
			name := typ.String() + "_req"
			if rep == schema.Optional {
				name = typ.String() + "_opt"
			}
			c := schema.Column{Name: name, Type: typ, Repetition: rep}
			if typ == schema.FixedLenByteArray {
				c.TypeLength = FixedLen
			}
			cols = append(cols, c)
		}
	}
	s, err := schema.New(cols...)
	require.NoError(t, err)
	return s
}

// ColumnData is generated input for one column: the present values as a
// typed slice, and slot-aligned validity (nil for REQUIRED columns).
type ColumnData struct {
	Values   interface{}
	Validity []bool
}

// Generate returns rows rows of pseudo-random data for c. OPTIONAL columns
// get roughly one null in nullEvery rows; nullEvery <= 0 means no nulls.
func Generate(c schema.Column, rows int, rng *rand.Rand, nullEvery int) ColumnData {
	var validity []bool
	present := rows
	if c.Nullable() {
		validity = make([]bool, rows)
		present = 0
		for i := range validity {
			validity[i] = nullEvery <= 0 || rng.Intn(nullEvery) != 0
			if validity[i] {
				present++
			}
		}
	}

	var values interface{}
	switch c.Type {
	case schema.Boolean:
		vs := make([]bool, present)
		for i := range vs {
			vs[i] = rng.Intn(2) == 1
		}
		values = vs
	case schema.Int32:
		vs := make([]int32, present)
		for i := range vs {
			vs[i] = rng.Int31() - 1<<30
		}
		values = vs
	case schema.Int64:
		vs := make([]int64, present)
		for i := range vs {
			vs[i] = rng.Int63() - 1<<62
		}
		values = vs
	case schema.Float:
		vs := make([]float32, present)
		for i := range vs {
			vs[i] = rng.Float32()*2000 - 1000
		}
		values = vs
	case schema.Double:
		vs := make([]float64, present)
		for i := range vs {
			vs[i] = rng.NormFloat64() * 1e6
		}
		values = vs
	case schema.ByteArray:
		vs := make([][]byte, present)
		for i := range vs {
			v := make([]byte, rng.Intn(24))
			rng.Read(v)
			vs[i] = v
		}
		values = vs
	case schema.FixedLenByteArray:
		vs := make([][]byte, present)
		for i := range vs {
			v := make([]byte, c.TypeLength)
			rng.Read(v)
			vs[i] = v
		}
		values = vs
	}
	return ColumnData{Values: values, Validity: validity}
}
