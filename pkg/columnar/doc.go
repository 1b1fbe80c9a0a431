// Package columnar holds typed, nullable column vectors and the plain value
// encoding used inside pages.
//
// # Column vectors
//
// A TypedColumn is slot-aligned: Values has one entry per row, and rows that
// are null hold the zero value of the element type. Validity is nil until
// the first null is appended, so REQUIRED data never pays for it.
//
//	ids := columnar.NewTypedColumn[int64](schema.Int64, 1024)
//	ids.Append(42)
//	ids.AppendNull()
//	ids.NullCount() // 1
//
// The concrete aliases (Int32Column, Int64Column, Float32Column,
// Float64Column, BoolColumn, BytesColumn) name the instantiations that
// correspond to each physical type; BytesColumn serves both BYTE_ARRAY and
// FIXED_LEN_BYTE_ARRAY.
//
// # Plain encoding
//
// Only present values are encoded:
//   - INT32, INT64, FLOAT, DOUBLE: little-endian, fixed width
//   - BOOLEAN: bit-packed, least significant bit first
//   - BYTE_ARRAY: 4-byte little-endian length followed by the bytes
//   - FIXED_LEN_BYTE_ARRAY: exactly type-length bytes per value
//
// DecodePlain treats its input as untrusted. Every length is checked
// against the bytes that remain before anything is allocated or sliced.
package columnar
