package table

import (
	"github.com/ajitpratap0/tessera/pkg/columnar"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/schema"
)

// Helpers over the typed dense value slices accepted by columnar: []int32,
// []int64, []float32, []float64, []bool and [][]byte.

// normalizeValues checks that values can hold col and converts []string to
// [][]byte for byte-array columns.
func normalizeValues(col schema.Column, values interface{}) (interface{}, error) {
	ok := false
	switch vs := values.(type) {
	case []int32:
		ok = col.Type == schema.Int32
	case []int64:
		ok = col.Type == schema.Int64
	case []float32:
		ok = col.Type == schema.Float
	case []float64:
		ok = col.Type == schema.Double
	case []bool:
		ok = col.Type == schema.Boolean
	case [][]byte:
		ok = col.Type == schema.ByteArray || col.Type == schema.FixedLenByteArray
	case []string:
		if col.Type == schema.ByteArray || col.Type == schema.FixedLenByteArray {
			bs := make([][]byte, len(vs))
			for i, s := range vs {
				bs[i] = []byte(s)
			}
			values, ok = bs, true
		}
	}
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
			"column %q: %T cannot hold %s values", col.Name, values, col.Type)
	}
	if col.Type == schema.FixedLenByteArray {
		for i, v := range values.([][]byte) {
			if len(v) != int(col.TypeLength) {
				return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
					"column %q: value %d has %d bytes, fixed length is %d", col.Name, i, len(v), col.TypeLength)
			}
		}
	}
	return values, nil
}

// expandRuns repeats values[i] runs[i] times.
func expandRuns(values interface{}, runs []int32) (interface{}, error) {
	n := columnar.Len(values)
	if len(runs) != n {
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument,
			"%d run lengths for %d values", len(runs), n)
	}
	var total int64
	for i, r := range runs {
		if r < 0 {
			return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "run length %d at %d is negative", r, i)
		}
		total += int64(r)
	}
	if total > int64(maxPageBytes) {
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "run lengths expand to %d rows", total)
	}
	switch vs := values.(type) {
	case []int32:
		return expand(vs, runs, total), nil
	case []int64:
		return expand(vs, runs, total), nil
	case []float32:
		return expand(vs, runs, total), nil
	case []float64:
		return expand(vs, runs, total), nil
	case []bool:
		return expand(vs, runs, total), nil
	case [][]byte:
		return expand(vs, runs, total), nil
	}
	return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "unsupported value type %T", values)
}

func expand[T columnar.Value](vs []T, runs []int32, total int64) []T {
	out := make([]T, 0, total)
	for i, v := range vs {
		for r := int32(0); r < runs[i]; r++ {
			out = append(out, v)
		}
	}
	return out
}

// appendValues appends src to dst, copying byte-array contents so the
// caller may reuse its buffers. A nil dst starts a new slice.
func appendValues(dst, src interface{}) interface{} {
	switch s := src.(type) {
	case []int32:
		d, _ := dst.([]int32)
		return append(d, s...)
	case []int64:
		d, _ := dst.([]int64)
		return append(d, s...)
	case []float32:
		d, _ := dst.([]float32)
		return append(d, s...)
	case []float64:
		d, _ := dst.([]float64)
		return append(d, s...)
	case []bool:
		d, _ := dst.([]bool)
		return append(d, s...)
	case [][]byte:
		d, _ := dst.([][]byte)
		size := 0
		for _, v := range s {
			size += len(v)
		}
		arena := make([]byte, 0, size)
		for _, v := range s {
			start := len(arena)
			arena = append(arena, v...)
			d = append(d, arena[start:len(arena):len(arena)])
		}
		return d
	}
	return dst
}

// concatValues appends src to dst without copying byte-array contents.
func concatValues(dst, src interface{}) interface{} {
	switch s := src.(type) {
	case []int32:
		d, _ := dst.([]int32)
		return append(d, s...)
	case []int64:
		d, _ := dst.([]int64)
		return append(d, s...)
	case []float32:
		d, _ := dst.([]float32)
		return append(d, s...)
	case []float64:
		d, _ := dst.([]float64)
		return append(d, s...)
	case []bool:
		d, _ := dst.([]bool)
		return append(d, s...)
	case [][]byte:
		d, _ := dst.([][]byte)
		return append(d, s...)
	}
	return dst
}

// sliceValues returns values[lo:hi].
func sliceValues(values interface{}, lo, hi int) interface{} {
	switch vs := values.(type) {
	case []int32:
		return vs[lo:hi:hi]
	case []int64:
		return vs[lo:hi:hi]
	case []float32:
		return vs[lo:hi:hi]
	case []float64:
		return vs[lo:hi:hi]
	case []bool:
		return vs[lo:hi:hi]
	case [][]byte:
		return vs[lo:hi:hi]
	}
	return values
}

// emptyValues returns a zero-length slice of the Go type used for t.
func emptyValues(t schema.PhysicalType) interface{} {
	switch t {
	case schema.Int32:
		return []int32{}
	case schema.Int64:
		return []int64{}
	case schema.Float:
		return []float32{}
	case schema.Double:
		return []float64{}
	case schema.Boolean:
		return []bool{}
	default:
		return [][]byte{}
	}
}

// valueSize estimates the plain-encoded size of value i.
func valueSize(col schema.Column, values interface{}, i int) int {
	switch col.Type {
	case schema.ByteArray:
		return 4 + len(values.([][]byte)[i])
	case schema.Boolean:
		return 1
	default:
		return col.Type.FixedWidth(col.TypeLength)
	}
}
