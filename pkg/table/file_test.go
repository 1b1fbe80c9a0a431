package table

import (
	"bytes"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/tessera/pkg/columnar"
	"github.com/ajitpratap0/tessera/pkg/compression"
	"github.com/ajitpratap0/tessera/pkg/config"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/metrics"
	"github.com/ajitpratap0/tessera/pkg/testutil"
)

type FileTestSuite struct {
	testutil.FileSuite
}

func TestFileTestSuite(t *testing.T) {
	suite.Run(t, new(FileTestSuite))
}

func (s *FileTestSuite) writeFile(name string, cfg *config.WriterConfig, data generated, opts ...Option) string {
	sch := testutil.AllTypesSchema(s.T())
	path := s.Path(name)
	opts = append([]Option{WithLogger(s.Logger())}, opts...)
	w, err := CreateFile(path, sch, cfg, opts...)
	s.Require().NoError(err)
	for col, cd := range data {
		s.Require().NoError(w.WriteBatch(col, cd.Values, cd.Validity, nil))
	}
	s.Require().NoError(w.Close())
	return path
}

func (s *FileTestSuite) TestCreateAndOpenFile() {
	sch := testutil.AllTypesSchema(s.T())
	data := generate(sch, 500, 11)
	path := s.writeFile("plain.tsr", smallWriterConfig(), data)

	for _, mmap := range []bool{false, true} {
		cfg := config.DefaultReaderConfig()
		cfg.MemoryMap = mmap
		r, err := OpenFile(path, cfg, WithLogger(s.Logger()))
		s.Require().NoError(err)

		got, _ := readAll(s.T(), r, BatchConfig{BatchSize: 100})
		requireSameData(s.T(), sch, data, got)
		s.NoError(r.Close())
		s.NoError(r.Close())

		_, err = r.BatchReader(BatchConfig{})
		s.True(errors.IsType(err, errors.ErrorTypeInvalidArgument))
	}
}

func (s *FileTestSuite) TestZeroCopyMatchesCopy() {
	sch := testutil.AllTypesSchema(s.T())
	data := generate(sch, 400, 12)
	wcfg := smallWriterConfig()
	wcfg.Codec = compression.Uncompressed
	path := s.writeFile("zerocopy.tsr", wcfg, data)

	copied, err := OpenFile(path, nil)
	s.Require().NoError(err)
	defer copied.Close()

	cfg := config.DefaultReaderConfig()
	cfg.MemoryMap = true
	cfg.ZeroCopy = true
	mapped, err := OpenFile(path, cfg)
	s.Require().NoError(err)
	defer mapped.Close()

	want, _ := readAll(s.T(), copied, BatchConfig{BatchSize: 64})
	got, _ := readAll(s.T(), mapped, BatchConfig{BatchSize: 64})
	requireSameData(s.T(), sch, want, got)
	requireSameData(s.T(), sch, data, got)

	// Byte arrays from an uncompressed page reference the mapped file.
	idx, ok := sch.Lookup("BYTE_ARRAY_req")
	s.Require().True(ok)
	cr, err := mapped.ColumnReader(0, idx)
	s.Require().NoError(err)
	cb, err := cr.ReadBatch(16)
	s.Require().NoError(err)
	s.True(columnar.Aliases(cb.Values.DenseValues(), mapped.data))

	cr, err = copied.ColumnReader(0, idx)
	s.Require().NoError(err)
	cb, err = cr.ReadBatch(16)
	s.Require().NoError(err)
	s.False(columnar.Aliases(cb.Values.DenseValues(), copied.data))
}

func (s *FileTestSuite) TestOpenMissingFile() {
	_, err := OpenFile(s.Path("missing.tsr"), nil)
	s.True(errors.IsType(err, errors.ErrorTypeFile))

	cfg := config.DefaultReaderConfig()
	cfg.MemoryMap = true
	_, err = OpenFile(s.Path("missing.tsr"), cfg)
	s.True(errors.IsType(err, errors.ErrorTypeFile))
}

func (s *FileTestSuite) TestOpenGarbageFile() {
	path := s.WriteFile("garbage.tsr", bytes.Repeat([]byte("not a table "), 10))
	_, err := OpenFile(path, nil)
	s.True(errors.IsType(err, errors.ErrorTypeInvalidFormat))
}

func (s *FileTestSuite) TestCreateFileFailure() {
	_, err := CreateFile(s.Path("no/such/dir/out.tsr"), testutil.AllTypesSchema(s.T()), nil)
	s.True(errors.IsType(err, errors.ErrorTypeFile))

	_, err = CreateFile(s.Path("bad.tsr"), nil, nil)
	s.True(errors.IsType(err, errors.ErrorTypeInvalidArgument))
	_, statErr := os.Stat(s.Path("bad.tsr"))
	s.True(os.IsNotExist(statErr))
}

func (s *FileTestSuite) TestMetricsRecorded() {
	sch := testutil.AllTypesSchema(s.T())
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	path := s.writeFile("metrics.tsr", smallWriterConfig(), generate(sch, 300, 13), WithMetrics(collector))

	s.Equal(1.0, counterValue(s.T(), reg, "tessera_row_groups_written_total"))
	s.Equal(300.0, counterValue(s.T(), reg, "tessera_rows_written_total"))
	written := counterValue(s.T(), reg, "tessera_pages_written_total")
	s.Greater(written, float64(sch.NumColumns()))

	r, err := OpenFile(path, nil, WithMetrics(collector))
	s.Require().NoError(err)
	defer r.Close()
	readAll(s.T(), r, BatchConfig{})
	s.Equal(written, counterValue(s.T(), reg, "tessera_pages_read_total"))
	s.Equal(0.0, counterValue(s.T(), reg, "tessera_checksum_failures_total"))
}
