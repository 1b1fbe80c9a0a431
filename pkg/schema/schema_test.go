package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tessera/pkg/errors"
)

func TestAddColumnAssignsInsertionOrder(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	for i, name := range []string{"id", "name", "score"} {
		idx, err := s.AddColumn(RequiredColumn(name, Int64))
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}

	idx, ok := s.Lookup("score")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
	_, ok = s.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 3, s.NumColumns())
}

func TestDuplicateNamesRejected(t *testing.T) {
	_, err := New(RequiredColumn("a", Int32), OptionalColumn("a", Double))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}

func TestFreeze(t *testing.T) {
	s, err := New(RequiredColumn("a", Int32))
	require.NoError(t, err)
	s.Freeze()
	assert.True(t, s.Frozen())

	_, err = s.AddColumn(RequiredColumn("b", Int32))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
	assert.Equal(t, 1, s.NumColumns())
}

func TestColumnValidate(t *testing.T) {
	tests := []struct {
		name string
		col  Column
		ok   bool
	}{
		{"required int", RequiredColumn("x", Int32), true},
		{"optional bytes", OptionalColumn("x", ByteArray), true},
		{"flba", FixedLenColumn("x", 16, Required), true},
		{"empty name", RequiredColumn("", Int32), false},
		{"flba zero length", FixedLenColumn("x", 0, Optional), false},
		{"type length on int", Column{Name: "x", Type: Int32, TypeLength: 4}, false},
		{"bad type", Column{Name: "x", Type: 3}, false},
		{"repeated", Column{Name: "x", Type: Int32, Repetition: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.col.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestColumnOutOfRange(t *testing.T) {
	s, err := New(RequiredColumn("a", Int32))
	require.NoError(t, err)
	_, err = s.Column(1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
	_, err = s.Column(-1)
	assert.Error(t, err)
}

func TestEqualAndFingerprint(t *testing.T) {
	a, err := New(RequiredColumn("id", Int64), OptionalColumn("tag", ByteArray))
	require.NoError(t, err)
	b, err := New(RequiredColumn("id", Int64), OptionalColumn("tag", ByteArray))
	require.NoError(t, err)
	c, err := New(RequiredColumn("id", Int64), RequiredColumn("tag", ByteArray))
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestParseType(t *testing.T) {
	for _, pt := range PhysicalTypes {
		got, err := ParseType(pt.String())
		require.NoError(t, err)
		assert.Equal(t, pt, got)
	}
	got, err := ParseType("string")
	require.NoError(t, err)
	assert.Equal(t, ByteArray, got)

	_, err = ParseType("INT96")
	assert.Error(t, err)
}

func TestValidateEmptySchema(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	assert.Error(t, s.Validate())
}
