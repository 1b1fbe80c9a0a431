package columnar

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/schema"
)

// PlainSize returns the encoded size of a typed dense value slice.
func PlainSize(t schema.PhysicalType, typeLen int32, values interface{}) int {
	n := Len(values)
	if n < 0 {
		return 0
	}
	switch t {
	case schema.Boolean:
		return (n + 7) / 8
	case schema.ByteArray:
		size := 4 * n
		switch vs := values.(type) {
		case [][]byte:
			for _, v := range vs {
				size += len(v)
			}
		case []string:
			for _, v := range vs {
				size += len(v)
			}
		}
		return size
	default:
		return n * t.FixedWidth(typeLen)
	}
}

// AppendPlain appends the plain encoding of values, a typed slice of
// present values, to dst.
func AppendPlain(dst []byte, t schema.PhysicalType, typeLen int32, values interface{}) ([]byte, error) {
	mismatch := func() error {
		return errors.Newf(errors.ErrorTypeSchemaMismatch, "%T cannot be encoded as %s", values, t)
	}
	switch t {
	case schema.Int32:
		vs, ok := values.([]int32)
		if !ok {
			return nil, mismatch()
		}
		for _, v := range vs {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(v))
		}
	case schema.Int64:
		vs, ok := values.([]int64)
		if !ok {
			return nil, mismatch()
		}
		for _, v := range vs {
			dst = binary.LittleEndian.AppendUint64(dst, uint64(v))
		}
	case schema.Float:
		vs, ok := values.([]float32)
		if !ok {
			return nil, mismatch()
		}
		for _, v := range vs {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
		}
	case schema.Double:
		vs, ok := values.([]float64)
		if !ok {
			return nil, mismatch()
		}
		for _, v := range vs {
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
		}
	case schema.Boolean:
		vs, ok := values.([]bool)
		if !ok {
			return nil, mismatch()
		}
		start := len(dst)
		dst = append(dst, make([]byte, (len(vs)+7)/8)...)
		for i, v := range vs {
			if v {
				dst[start+i/8] |= 1 << (i % 8)
			}
		}
	case schema.ByteArray:
		vs, ok := values.([][]byte)
		if !ok {
			return nil, mismatch()
		}
		for _, v := range vs {
			if uint64(len(v)) > math.MaxUint32 {
				return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "byte array of %d bytes is too long", len(v))
			}
			dst = binary.LittleEndian.AppendUint32(dst, uint32(len(v)))
			dst = append(dst, v...)
		}
	case schema.FixedLenByteArray:
		vs, ok := values.([][]byte)
		if !ok {
			return nil, mismatch()
		}
		for i, v := range vs {
			if len(v) != int(typeLen) {
				return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
					"value %d has %d bytes, fixed length is %d", i, len(v), typeLen)
			}
			dst = append(dst, v...)
		}
	default:
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "unsupported physical type %s", t)
	}
	return dst, nil
}

// DecodePlain decodes count plain-encoded values of type t from data, which
// must be consumed exactly. With alias set, byte arrays and suitably
// aligned fixed-width values reference data instead of copying it.
func DecodePlain(t schema.PhysicalType, typeLen int32, data []byte, count int, alias bool) (interface{}, error) {
	if count < 0 {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat, "negative value count %d", count)
	}
	switch t {
	case schema.Int32:
		if err := checkFixed(t, data, count, 4); err != nil {
			return nil, err
		}
		if alias && canAlias(data, 4) {
			return aliasFixed[int32](data, count), nil
		}
		out := make([]int32, count)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return out, nil
	case schema.Int64:
		if err := checkFixed(t, data, count, 8); err != nil {
			return nil, err
		}
		if alias && canAlias(data, 8) {
			return aliasFixed[int64](data, count), nil
		}
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return out, nil
	case schema.Float:
		if err := checkFixed(t, data, count, 4); err != nil {
			return nil, err
		}
		if alias && canAlias(data, 4) {
			return aliasFixed[float32](data, count), nil
		}
		out := make([]float32, count)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return out, nil
	case schema.Double:
		if err := checkFixed(t, data, count, 8); err != nil {
			return nil, err
		}
		if alias && canAlias(data, 8) {
			return aliasFixed[float64](data, count), nil
		}
		out := make([]float64, count)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return out, nil
	case schema.Boolean:
		if len(data) != (count+7)/8 {
			return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
				"%d boolean values need %d bytes, have %d", count, (count+7)/8, len(data))
		}
		out := make([]bool, count)
		for i := range out {
			out[i] = data[i/8]&(1<<(i%8)) != 0
		}
		return out, nil
	case schema.ByteArray:
		return decodeByteArrays(data, count, alias)
	case schema.FixedLenByteArray:
		if typeLen <= 0 {
			return nil, errors.Newf(errors.ErrorTypeInvalidFormat, "invalid fixed length %d", typeLen)
		}
		if err := checkFixed(t, data, count, int(typeLen)); err != nil {
			return nil, err
		}
		out := make([][]byte, count)
		w := int(typeLen)
		for i := range out {
			v := data[i*w : (i+1)*w : (i+1)*w]
			if !alias {
				v = bytes.Clone(v)
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat, "unsupported physical type %d", t)
	}
}

func checkFixed(t schema.PhysicalType, data []byte, count, width int) error {
	if count > len(data)/width || count*width != len(data) {
		return errors.Newf(errors.ErrorTypeInvalidFormat,
			"%d %s values need %d bytes each, have %d bytes", count, t, width, len(data))
	}
	return nil
}

func decodeByteArrays(data []byte, count int, alias bool) ([][]byte, error) {
	if count > len(data)/4 {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
			"%d byte arrays cannot fit in %d bytes", count, len(data))
	}
	out := make([][]byte, count)
	off := 0
	for i := range out {
		if len(data)-off < 4 {
			return nil, errors.Newf(errors.ErrorTypeInvalidFormat, "byte array %d: truncated length prefix", i)
		}
		n := binary.LittleEndian.Uint32(data[off:])
		off += 4
		if uint64(n) > uint64(len(data)-off) {
			return nil, errors.Newf(errors.ErrorTypeInvalidFormat,
				"byte array %d: length %d exceeds remaining %d bytes", i, n, len(data)-off)
		}
		v := data[off : off+int(n) : off+int(n)]
		if !alias {
			v = bytes.Clone(v)
		}
		out[i] = v
		off += int(n)
	}
	if off != len(data) {
		return nil, errors.Newf(errors.ErrorTypeInvalidFormat, "%d trailing bytes after byte arrays", len(data)-off)
	}
	return out, nil
}

// AppendKey appends the bytes a single value contributes to statistics and
// Bloom filter keys: the plain encoding for numeric types, the raw bytes
// for byte arrays.
func AppendKey(dst []byte, t schema.PhysicalType, v interface{}) ([]byte, error) {
	switch t {
	case schema.Int32:
		if x, ok := v.(int32); ok {
			return binary.LittleEndian.AppendUint32(dst, uint32(x)), nil
		}
	case schema.Int64:
		if x, ok := v.(int64); ok {
			return binary.LittleEndian.AppendUint64(dst, uint64(x)), nil
		}
	case schema.Float:
		if x, ok := v.(float32); ok {
			return binary.LittleEndian.AppendUint32(dst, math.Float32bits(x)), nil
		}
	case schema.Double:
		if x, ok := v.(float64); ok {
			return binary.LittleEndian.AppendUint64(dst, math.Float64bits(x)), nil
		}
	case schema.Boolean:
		if x, ok := v.(bool); ok {
			if x {
				return append(dst, 1), nil
			}
			return append(dst, 0), nil
		}
	case schema.ByteArray, schema.FixedLenByteArray:
		switch x := v.(type) {
		case []byte:
			return append(dst, x...), nil
		case string:
			return append(dst, x...), nil
		}
	}
	return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "%T is not a %s value", v, t)
}

// AppendBloomKey is AppendKey with negative zero folded into positive
// zero, so float values that compare equal share a Bloom filter key.
func AppendBloomKey(dst []byte, t schema.PhysicalType, v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case float32:
		if x == 0 {
			v = float32(0)
		}
	case float64:
		if x == 0 {
			v = float64(0)
		}
	}
	return AppendKey(dst, t, v)
}

// DecodeKey is the inverse of AppendKey.
func DecodeKey(t schema.PhysicalType, b []byte) (interface{}, error) {
	bad := func() error {
		return errors.Newf(errors.ErrorTypeInvalidFormat, "%d bytes cannot hold a %s value", len(b), t)
	}
	switch t {
	case schema.Int32:
		if len(b) != 4 {
			return nil, bad()
		}
		return int32(binary.LittleEndian.Uint32(b)), nil
	case schema.Int64:
		if len(b) != 8 {
			return nil, bad()
		}
		return int64(binary.LittleEndian.Uint64(b)), nil
	case schema.Float:
		if len(b) != 4 {
			return nil, bad()
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
	case schema.Double:
		if len(b) != 8 {
			return nil, bad()
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case schema.Boolean:
		if len(b) != 1 {
			return nil, bad()
		}
		return b[0] != 0, nil
	case schema.ByteArray, schema.FixedLenByteArray:
		return bytes.Clone(b), nil
	}
	return nil, bad()
}
