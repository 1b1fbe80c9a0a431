package columnar

import (
	"bytes"
	"cmp"
	"math"

	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/schema"
)

// Stats summarizes one column chunk. Min and Max use the AppendKey encoding.
type Stats struct {
	Min       []byte
	Max       []byte
	HasMinMax bool
	NullCount int64
}

// ComputeStats returns min/max over the present values in dense using the
// ordering of physical type t: signed for integers, IEEE for floats with NaN
// skipped, false before true, lexicographic for byte arrays.
func ComputeStats(t schema.PhysicalType, dense interface{}, nulls int) Stats {
	s := Stats{NullCount: int64(nulls)}
	var lo, hi interface{}
	switch vs := dense.(type) {
	case []int32:
		lo, hi = minMax(vs, false)
	case []int64:
		lo, hi = minMax(vs, false)
	case []float32:
		lo, hi = minMax(vs, true)
	case []float64:
		lo, hi = minMax(vs, true)
	case []bool:
		var seenF, seenT bool
		for _, v := range vs {
			if v {
				seenT = true
			} else {
				seenF = true
			}
		}
		if seenF || seenT {
			lo, hi = !seenF, seenT
		}
	case [][]byte:
		for _, v := range vs {
			if lo == nil || bytes.Compare(v, lo.([]byte)) < 0 {
				lo = v
			}
			if hi == nil || bytes.Compare(v, hi.([]byte)) > 0 {
				hi = v
			}
		}
	}
	if lo == nil {
		return s
	}
	var err error
	if s.Min, err = AppendKey(nil, t, lo); err != nil {
		return Stats{NullCount: int64(nulls)}
	}
	if s.Max, err = AppendKey(nil, t, hi); err != nil {
		return Stats{NullCount: int64(nulls)}
	}
	s.HasMinMax = true
	return s
}

func minMax[T int32 | int64 | float32 | float64](vs []T, skipNaN bool) (interface{}, interface{}) {
	var lo, hi T
	found := false
	for _, v := range vs {
		if skipNaN && math.IsNaN(float64(v)) {
			continue
		}
		if !found {
			lo, hi, found = v, v, true
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if !found {
		return nil, nil
	}
	return lo, hi
}

// CompareKeys orders two AppendKey encodings of type t.
func CompareKeys(t schema.PhysicalType, a, b []byte) (int, error) {
	switch t {
	case schema.ByteArray, schema.FixedLenByteArray:
		return bytes.Compare(a, b), nil
	}
	x, err := DecodeKey(t, a)
	if err != nil {
		return 0, err
	}
	y, err := DecodeKey(t, b)
	if err != nil {
		return 0, err
	}
	switch xv := x.(type) {
	case int32:
		return cmp.Compare(xv, y.(int32)), nil
	case int64:
		return cmp.Compare(xv, y.(int64)), nil
	case float32:
		return cmp.Compare(xv, y.(float32)), nil
	case float64:
		return cmp.Compare(xv, y.(float64)), nil
	case bool:
		yv := y.(bool)
		switch {
		case xv == yv:
			return 0, nil
		case !xv:
			return -1, nil
		default:
			return 1, nil
		}
	}
	return 0, errors.Newf(errors.ErrorTypeInvalidArgument, "cannot compare %s values", t)
}
