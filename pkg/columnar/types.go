package columnar

import (
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/schema"
)

// Value is the set of Go element types a column can hold.
type Value interface {
	int32 | int64 | float32 | float64 | bool | []byte
}

// Column is the base interface for all column types
type Column interface {
	Type() schema.PhysicalType
	Len() int
	IsNull(i int) bool
	NullCount() int
	// Validity returns one entry per row, true when present. It is nil when
	// no row is null.
	Validity() []bool
	// Value returns the value at row i, or nil when the row is null.
	Value(i int) interface{}
	// DenseValues returns the present values only, as a typed slice.
	DenseValues() interface{}
	Clear()
	MemoryUsage() int64
}

// TypedColumn stores slot-aligned values of one Go type.
type TypedColumn[T Value] struct {
	typ      schema.PhysicalType
	values   []T
	validity []bool
	nulls    int
}

// Concrete column types per physical type.
type (
	Int32Column   = TypedColumn[int32]
	Int64Column   = TypedColumn[int64]
	Float32Column = TypedColumn[float32]
	Float64Column = TypedColumn[float64]
	BoolColumn    = TypedColumn[bool]
	BytesColumn   = TypedColumn[[]byte]
)

// NewTypedColumn creates an empty column of physical type t.
func NewTypedColumn[T Value](t schema.PhysicalType, capacity int) *TypedColumn[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &TypedColumn[T]{typ: t, values: make([]T, 0, capacity)}
}

// NewColumn creates an empty column for physical type t.
func NewColumn(t schema.PhysicalType, capacity int) (Column, error) {
	switch t {
	case schema.Int32:
		return NewTypedColumn[int32](t, capacity), nil
	case schema.Int64:
		return NewTypedColumn[int64](t, capacity), nil
	case schema.Float:
		return NewTypedColumn[float32](t, capacity), nil
	case schema.Double:
		return NewTypedColumn[float64](t, capacity), nil
	case schema.Boolean:
		return NewTypedColumn[bool](t, capacity), nil
	case schema.ByteArray, schema.FixedLenByteArray:
		return NewTypedColumn[[]byte](t, capacity), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "unsupported physical type %s", t)
	}
}

func (c *TypedColumn[T]) Type() schema.PhysicalType { return c.typ }
func (c *TypedColumn[T]) Len() int                  { return len(c.values) }
func (c *TypedColumn[T]) NullCount() int            { return c.nulls }
func (c *TypedColumn[T]) Validity() []bool          { return c.validity }

// Values returns the slot-aligned value buffer.
func (c *TypedColumn[T]) Values() []T { return c.values }

func (c *TypedColumn[T]) IsNull(i int) bool {
	return c.validity != nil && !c.validity[i]
}

// Get returns the value at row i and whether it is present.
func (c *TypedColumn[T]) Get(i int) (T, bool) {
	return c.values[i], !c.IsNull(i)
}

func (c *TypedColumn[T]) Value(i int) interface{} {
	if c.IsNull(i) {
		return nil
	}
	return c.values[i]
}

// Append adds a present value.
func (c *TypedColumn[T]) Append(v T) {
	c.values = append(c.values, v)
	if c.validity != nil {
		c.validity = append(c.validity, true)
	}
}

// AppendNull adds a null row.
func (c *TypedColumn[T]) AppendNull() {
	if c.validity == nil {
		c.validity = make([]bool, len(c.values), cap(c.values))
		for i := range c.validity {
			c.validity[i] = true
		}
	}
	var zero T
	c.values = append(c.values, zero)
	c.validity = append(c.validity, false)
	c.nulls++
}

// Dense returns the present values in row order. When no row is null the
// value buffer itself is returned.
func (c *TypedColumn[T]) Dense() []T {
	if c.nulls == 0 {
		return c.values
	}
	out := make([]T, 0, len(c.values)-c.nulls)
	for i, ok := range c.validity {
		if ok {
			out = append(out, c.values[i])
		}
	}
	return out
}

func (c *TypedColumn[T]) DenseValues() interface{} { return c.Dense() }

func (c *TypedColumn[T]) Clear() {
	c.values = c.values[:0]
	c.validity = nil
	c.nulls = 0
}

// Release drops the value buffers so aliased memory can be reclaimed.
func (c *TypedColumn[T]) Release() {
	c.values = nil
	c.validity = nil
	c.nulls = 0
}

func (c *TypedColumn[T]) MemoryUsage() int64 {
	total := int64(len(c.validity))
	switch vs := any(c.values).(type) {
	case [][]byte:
		for _, v := range vs {
			total += int64(len(v)) + 24 // slice header
		}
	case []bool:
		total += int64(len(vs))
	case []int32, []float32:
		total += int64(len(c.values) * 4)
	default:
		total += int64(len(c.values) * 8)
	}
	return total
}

// FromDense builds a column from present values and slot-aligned validity.
// A nil validity means every row is present.
func FromDense[T Value](t schema.PhysicalType, dense []T, validity []bool) (*TypedColumn[T], error) {
	if validity == nil {
		return &TypedColumn[T]{typ: t, values: dense}, nil
	}
	c := &TypedColumn[T]{
		typ:      t,
		values:   make([]T, len(validity)),
		validity: make([]bool, len(validity)),
	}
	copy(c.validity, validity)
	j := 0
	for i, ok := range validity {
		if !ok {
			c.nulls++
			continue
		}
		if j >= len(dense) {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"validity marks more than %d values present", len(dense))
		}
		c.values[i] = dense[j]
		j++
	}
	if j != len(dense) {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
			"%d values supplied, validity marks %d present", len(dense), j)
	}
	if c.nulls == 0 {
		c.validity = nil
	}
	return c, nil
}

// FromValues wraps a typed slice of present values (see FromDense) in the
// column type matching t.
func FromValues(t schema.PhysicalType, values interface{}, validity []bool) (Column, error) {
	switch t {
	case schema.Int32:
		if vs, ok := values.([]int32); ok {
			c, err := FromDense(t, vs, validity)
			return asColumn(c, err)
		}
	case schema.Int64:
		if vs, ok := values.([]int64); ok {
			c, err := FromDense(t, vs, validity)
			return asColumn(c, err)
		}
	case schema.Float:
		if vs, ok := values.([]float32); ok {
			c, err := FromDense(t, vs, validity)
			return asColumn(c, err)
		}
	case schema.Double:
		if vs, ok := values.([]float64); ok {
			c, err := FromDense(t, vs, validity)
			return asColumn(c, err)
		}
	case schema.Boolean:
		if vs, ok := values.([]bool); ok {
			c, err := FromDense(t, vs, validity)
			return asColumn(c, err)
		}
	case schema.ByteArray, schema.FixedLenByteArray:
		switch vs := values.(type) {
		case [][]byte:
			c, err := FromDense(t, vs, validity)
			return asColumn(c, err)
		case []string:
			bs := make([][]byte, len(vs))
			for i, s := range vs {
				bs[i] = []byte(s)
			}
			c, err := FromDense(t, bs, validity)
			return asColumn(c, err)
		}
	default:
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "unsupported physical type %s", t)
	}
	return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "%T cannot hold %s values", values, t)
}

func asColumn[T Value](c *TypedColumn[T], err error) (Column, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Len returns the length of a typed value slice, or -1 when values is not
// one of the supported slice types.
func Len(values interface{}) int {
	switch vs := values.(type) {
	case []int32:
		return len(vs)
	case []int64:
		return len(vs)
	case []float32:
		return len(vs)
	case []float64:
		return len(vs)
	case []bool:
		return len(vs)
	case [][]byte:
		return len(vs)
	case []string:
		return len(vs)
	default:
		return -1
	}
}
