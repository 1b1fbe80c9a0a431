// Package schema defines the table schema: an ordered list of column
// descriptors whose position is the column index used throughout the file
// format.
//
// A Schema is mutable until it is frozen. Attaching it to a writer, or
// parsing it out of a file, freezes it; after that AddColumn fails and the
// column order is fixed.
package schema

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/xxhash"
)

// PhysicalType is the storage type of a column. Values match the Parquet
// Type enum.
type PhysicalType uint8

const (
	Boolean           PhysicalType = 0
	Int32             PhysicalType = 1
	Int64             PhysicalType = 2
	Float             PhysicalType = 4
	Double            PhysicalType = 5
	ByteArray         PhysicalType = 6
	FixedLenByteArray PhysicalType = 7
)

// PhysicalTypes lists every supported type.
var PhysicalTypes = []PhysicalType{Boolean, Int32, Int64, Float, Double, ByteArray, FixedLenByteArray}

func (t PhysicalType) String() string {
	switch t {
	case Boolean:
		return "BOOLEAN"
	case Int32:
		return "INT32"
	case Int64:
		return "INT64"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	case ByteArray:
		return "BYTE_ARRAY"
	case FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return fmt.Sprintf("PhysicalType(%d)", uint8(t))
	}
}

// Valid reports whether t is a supported type.
func (t PhysicalType) Valid() bool {
	switch t {
	case Boolean, Int32, Int64, Float, Double, ByteArray, FixedLenByteArray:
		return true
	}
	return false
}

// FixedWidth returns the encoded size of one value, or 0 for variable-width
// and bit-packed types.
func (t PhysicalType) FixedWidth(typeLength int32) int {
	switch t {
	case Int32, Float:
		return 4
	case Int64, Double:
		return 8
	case FixedLenByteArray:
		return int(typeLength)
	default:
		return 0
	}
}

// ParseType parses a type name such as "INT64" or "byte_array".
func ParseType(name string) (PhysicalType, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for _, t := range PhysicalTypes {
		if t.String() == n {
			return t, nil
		}
	}
	switch n {
	case "BOOL":
		return Boolean, nil
	case "FLOAT32":
		return Float, nil
	case "FLOAT64":
		return Double, nil
	case "BYTES", "STRING":
		return ByteArray, nil
	}
	return 0, errors.Newf(errors.ErrorTypeInvalidArgument, "unknown physical type %q", name)
}

// Repetition says whether a column may hold nulls. Values match the Parquet
// FieldRepetitionType enum; REPEATED is not supported.
type Repetition uint8

const (
	Required Repetition = 0
	Optional Repetition = 1
)

func (r Repetition) String() string {
	switch r {
	case Required:
		return "REQUIRED"
	case Optional:
		return "OPTIONAL"
	default:
		return fmt.Sprintf("Repetition(%d)", uint8(r))
	}
}

// Column describes one column.
type Column struct {
	Name       string       `json:"name"`
	Type       PhysicalType `json:"type"`
	Repetition Repetition   `json:"repetition"`
	// TypeLength is the byte width of FIXED_LEN_BYTE_ARRAY values.
	TypeLength int32 `json:"type_length,omitempty"`
}

// RequiredColumn returns a non-nullable column descriptor.
func RequiredColumn(name string, t PhysicalType) Column {
	return Column{Name: name, Type: t, Repetition: Required}
}

// OptionalColumn returns a nullable column descriptor.
func OptionalColumn(name string, t PhysicalType) Column {
	return Column{Name: name, Type: t, Repetition: Optional}
}

// FixedLenColumn returns a FIXED_LEN_BYTE_ARRAY column descriptor.
func FixedLenColumn(name string, length int32, rep Repetition) Column {
	return Column{Name: name, Type: FixedLenByteArray, Repetition: rep, TypeLength: length}
}

// Nullable reports whether the column carries definition levels.
func (c Column) Nullable() bool { return c.Repetition == Optional }

// Validate checks a single descriptor.
func (c Column) Validate() error {
	switch {
	case c.Name == "":
		return errors.New(errors.ErrorTypeInvalidArgument, "column name is empty")
	case !c.Type.Valid():
		return errors.Newf(errors.ErrorTypeInvalidArgument, "column %q: invalid physical type %d", c.Name, c.Type)
	case c.Repetition != Required && c.Repetition != Optional:
		return errors.Newf(errors.ErrorTypeInvalidArgument, "column %q: unsupported repetition %d", c.Name, c.Repetition)
	case c.Type == FixedLenByteArray && c.TypeLength <= 0:
		return errors.Newf(errors.ErrorTypeInvalidArgument, "column %q: fixed length must be positive, got %d", c.Name, c.TypeLength)
	case c.Type != FixedLenByteArray && c.TypeLength != 0:
		return errors.Newf(errors.ErrorTypeInvalidArgument, "column %q: type length set on %s", c.Name, c.Type)
	}
	return nil
}

func (c Column) String() string {
	if c.Type == FixedLenByteArray {
		return fmt.Sprintf("%s %s(%d) %s", c.Name, c.Type, c.TypeLength, c.Repetition)
	}
	return fmt.Sprintf("%s %s %s", c.Name, c.Type, c.Repetition)
}

// Schema is an ordered set of uniquely named columns.
type Schema struct {
	columns []Column
	index   map[string]int
	frozen  bool
}

// New builds a schema from cols in order.
func New(cols ...Column) (*Schema, error) {
	s := &Schema{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		if _, err := s.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddColumn appends c and returns its index.
func (s *Schema) AddColumn(c Column) (int, error) {
	if s.frozen {
		return -1, errors.Newf(errors.ErrorTypeInvalidArgument, "schema is frozen, cannot add column %q", c.Name)
	}
	if err := c.Validate(); err != nil {
		return -1, err
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, dup := s.index[c.Name]; dup {
		return -1, errors.Newf(errors.ErrorTypeInvalidArgument, "duplicate column name %q", c.Name)
	}
	s.columns = append(s.columns, c)
	s.index[c.Name] = len(s.columns) - 1
	return len(s.columns) - 1, nil
}

// Freeze makes the schema immutable.
func (s *Schema) Freeze() { s.frozen = true }

// Frozen reports whether Freeze has been called.
func (s *Schema) Frozen() bool { return s.frozen }

// NumColumns returns the column count.
func (s *Schema) NumColumns() int { return len(s.columns) }

// Column returns the descriptor at index i.
func (s *Schema) Column(i int) (Column, error) {
	if i < 0 || i >= len(s.columns) {
		return Column{}, errors.Newf(errors.ErrorTypeInvalidArgument, "column index %d out of range [0,%d)", i, len(s.columns))
	}
	return s.columns[i], nil
}

// Columns returns a copy of the descriptors in order.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Lookup returns the index of the named column.
func (s *Schema) Lookup(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Validate checks the schema as a whole.
func (s *Schema) Validate() error {
	if len(s.columns) == 0 {
		return errors.New(errors.ErrorTypeInvalidArgument, "schema has no columns")
	}
	seen := make(map[string]struct{}, len(s.columns))
	for _, c := range s.columns {
		if err := c.Validate(); err != nil {
			return err
		}
		if _, dup := seen[c.Name]; dup {
			return errors.Newf(errors.ErrorTypeInvalidArgument, "duplicate column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// Equal reports whether both schemas have the same columns in order.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.columns) != len(o.columns) {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != o.columns[i] {
			return false
		}
	}
	return true
}

// Fingerprint returns a stable hash of the column descriptors.
func (s *Schema) Fingerprint() string {
	var buf []byte
	for _, c := range s.columns {
		buf = binary.AppendUvarint(buf, uint64(len(c.Name)))
		buf = append(buf, c.Name...)
		buf = append(buf, byte(c.Type), byte(c.Repetition))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(c.TypeLength))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(buf, 0))
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteString("schema {\n")
	for i, c := range s.columns {
		fmt.Fprintf(&b, "  %d: %s\n", i, c)
	}
	b.WriteString("}")
	return b.String()
}
