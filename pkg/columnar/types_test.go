package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/schema"
)

func TestTypedColumnAppend(t *testing.T) {
	c := NewTypedColumn[int64](schema.Int64, 4)
	c.Append(1)
	c.Append(2)
	assert.Nil(t, c.Validity())

	c.AppendNull()
	c.Append(4)

	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 1, c.NullCount())
	assert.Equal(t, []bool{true, true, false, true}, c.Validity())
	assert.Equal(t, []int64{1, 2, 0, 4}, c.Values())
	assert.Equal(t, []int64{1, 2, 4}, c.Dense())
	assert.Nil(t, c.Value(2))
	assert.Equal(t, int64(4), c.Value(3))

	v, ok := c.Get(2)
	assert.False(t, ok)
	assert.Zero(t, v)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.NullCount())
}

func TestFromDense(t *testing.T) {
	c, err := FromDense(schema.ByteArray, [][]byte{[]byte("a"), []byte("c")}, []bool{true, false, true})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
	assert.True(t, c.IsNull(1))
	assert.Equal(t, []byte("c"), c.Value(2))

	_, err = FromDense(schema.Int32, []int32{1}, []bool{true, true})
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch))

	_, err = FromDense(schema.Int32, []int32{1, 2}, []bool{true, false})
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch))

	all, err := FromDense(schema.Int32, []int32{1, 2}, []bool{true, true})
	require.NoError(t, err)
	assert.Nil(t, all.Validity())
}

func TestFromValuesTypeChecks(t *testing.T) {
	c, err := FromValues(schema.Double, []float64{1.5}, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.Double, c.Type())

	s, err := FromValues(schema.ByteArray, []string{"x", "y"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), s.Value(1))

	_, err = FromValues(schema.Int32, []int64{1}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch))
}

func TestNewColumnAllTypes(t *testing.T) {
	for _, pt := range schema.PhysicalTypes {
		c, err := NewColumn(pt, 8)
		require.NoError(t, err, pt.String())
		assert.Equal(t, pt, c.Type())
		assert.Equal(t, 0, Len(c.DenseValues()))
	}
	_, err := NewColumn(schema.PhysicalType(3), 0)
	assert.Error(t, err)
}
