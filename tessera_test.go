package tessera

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tessera/pkg/compression"
	"github.com/ajitpratap0/tessera/pkg/config"
	"github.com/ajitpratap0/tessera/pkg/schema"
	"github.com/ajitpratap0/tessera/pkg/table"
	"github.com/ajitpratap0/tessera/pkg/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "error"
	require.NoError(t, Init(cfg))
	first := Capabilities()

	// Later calls keep the first result, even with a config that would fail.
	bad := config.DefaultConfig()
	bad.Writer.RowGroupRows = 0
	require.NoError(t, Init(bad))
	require.NoError(t, Init(nil))
	assert.Equal(t, first, Capabilities())
}

func TestCreateOpen(t *testing.T) {
	s, err := schema.New(
		schema.RequiredColumn("id", schema.Int64),
		schema.OptionalColumn("name", schema.ByteArray),
	)
	require.NoError(t, err)

	wcfg := config.DefaultWriterConfig()
	wcfg.Codec = compression.Zstd
	wcfg.RowGroupRows = 2

	path := testutil.TempPath(t, "users.tsr")
	w, err := Create(path, s, wcfg, table.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(0, []int64{1, 2, 3}, nil, nil))
	require.NoError(t, w.WriteBatch(1, []string{"ada", "lin"}, []bool{true, false, true}, nil))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	fromFile, err := Open(path, nil)
	require.NoError(t, err)
	defer fromFile.Close()
	fromBuffer, err := OpenBuffer(data, nil)
	require.NoError(t, err)
	defer fromBuffer.Close()

	for _, r := range []*table.Reader{fromFile, fromBuffer} {
		assert.Equal(t, int64(3), r.NumRows())
		assert.Equal(t, 2, r.NumColumns())
		assert.Equal(t, 2, r.NumRowGroups())
		assert.True(t, s.Equal(r.Schema()))

		br, err := r.BatchReader(table.BatchConfig{Columns: []string{"name"}})
		require.NoError(t, err)
		var names []interface{}
		for {
			b, err := br.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			for i := 0; i < b.NumRows; i++ {
				names = append(names, b.Columns[0].Value(i))
			}
			b.Release()
		}
		assert.Equal(t, []interface{}{[]byte("ada"), nil, []byte("lin")}, names)
	}
}
