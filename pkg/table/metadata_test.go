package table

import (
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tessera/pkg/compression"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/schema"
)

func sampleMetadata(t *testing.T) *FileMetadata {
	t.Helper()
	s, err := schema.New(
		schema.RequiredColumn("id", schema.Int64),
		schema.OptionalColumn("name", schema.ByteArray),
	)
	require.NoError(t, err)
	return &FileMetadata{
		Version:   FormatVersion,
		CreatedBy: "tests",
		FileID:    uuid.New(),
		KeyValues: []KeyValue{{Key: "k", Value: "v"}},
		NumRows:   3,
		Schema:    s,
		RowGroups: []RowGroupMetadata{{
			NumRows:       3,
			FileOffset:    4,
			TotalByteSize: 100,
			Columns: []ColumnChunkMetadata{
				{
					Codec:            compression.Snappy,
					FileOffset:       4,
					CompressedSize:   60,
					UncompressedSize: 80,
					NumValues:        3,
					HasMinMax:        true,
					Min:              binary.LittleEndian.AppendUint64(nil, 1),
					Max:              binary.LittleEndian.AppendUint64(nil, 3),
					Pages: []PageLocation{
						{Offset: 4, Size: 30, Rows: 2, CRC: 0xdeadbeef},
						{Offset: 34, Size: 30, Rows: 1, CRC: 0x01020304},
					},
				},
				{
					Codec:            compression.Zstd,
					FileOffset:       64,
					CompressedSize:   40,
					UncompressedSize: 50,
					NumValues:        3,
					NullCount:        1,
					BloomOffset:      104,
					BloomLength:      32,
					Pages:            []PageLocation{{Offset: 64, Size: 40, Rows: 3, CRC: 7}},
				},
			},
		}},
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	md := sampleMetadata(t)
	b := encodeMetadata(md)

	got, err := decodeMetadata(b)
	require.NoError(t, err)
	require.NoError(t, validateMetadata(got, 136))
	assert.True(t, md.Schema.Equal(got.Schema))
	assert.True(t, got.Schema.Frozen())

	got.Schema, md.Schema = nil, nil
	assert.Equal(t, md, got)
	assert.True(t, got.RowGroups[0].Columns[1].HasBloomFilter())
	assert.False(t, got.RowGroups[0].Columns[0].HasBloomFilter())
}

func TestDecodeMetadataRejectsTruncation(t *testing.T) {
	b := encodeMetadata(sampleMetadata(t))
	for n := 0; n < len(b); n++ {
		_, err := decodeMetadata(b[:n])
		require.Error(t, err, "length %d", n)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidFormat), "length %d: %v", n, err)
	}

	_, err := decodeMetadata(append(b, 0))
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidFormat))
}

func TestDecodeMetadataRejectsHugeCounts(t *testing.T) {
	var e encoder
	e.u32(FormatVersion)
	e.str("x")
	e.buf = append(e.buf, make([]byte, 16)...)
	e.uvarint(1 << 40) // key/value count
	_, err := decodeMetadata(e.buf)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidFormat))

	e = encoder{}
	e.u32(FormatVersion + 1)
	_, err = decodeMetadata(e.buf)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidFormat))
}

func TestValidateMetadata(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(md *FileMetadata)
	}{
		{"row group past data end", func(md *FileMetadata) { md.RowGroups[0].TotalByteSize = 1000 }},
		{"missing column chunk", func(md *FileMetadata) {
			md.RowGroups[0].Columns = md.RowGroups[0].Columns[:1]
		}},
		{"row count mismatch", func(md *FileMetadata) { md.NumRows = 4 }},
		{"chunk value count", func(md *FileMetadata) { md.RowGroups[0].Columns[0].NumValues = 2 }},
		{"nulls in required column", func(md *FileMetadata) { md.RowGroups[0].Columns[0].NullCount = 1 }},
		{"bad min key", func(md *FileMetadata) { md.RowGroups[0].Columns[0].Min = []byte{1} }},
		{"page gap", func(md *FileMetadata) { md.RowGroups[0].Columns[0].Pages[1].Offset = 35 }},
		{"page rows", func(md *FileMetadata) { md.RowGroups[0].Columns[0].Pages[1].Rows = 2 }},
		{"tiny page", func(md *FileMetadata) {
			md.RowGroups[0].Columns[1].Pages[0].Size = 10
			md.RowGroups[0].Columns[1].CompressedSize = 10
		}},
		{"bloom length", func(md *FileMetadata) { md.RowGroups[0].Columns[1].BloomLength = 31 }},
		{"bloom outside data", func(md *FileMetadata) { md.RowGroups[0].Columns[1].BloomOffset = 120 }},
		{"unknown codec", func(md *FileMetadata) { md.RowGroups[0].Columns[1].Codec = 4 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := sampleMetadata(t)
			tt.mutate(md)
			err := validateMetadata(md, 136)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidFormat), "got %v", err)
		})
	}
}
