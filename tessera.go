// Package tessera reads and writes row-group organized columnar table files.
//
// A file is a sequence of row groups, each holding one column chunk per
// schema column, followed by a metadata block and a fixed footer. Pages
// inside a chunk are individually compressed and protected by CRC32.
//
// # Quick Start
//
//	s, _ := schema.New(
//	    schema.RequiredColumn("id", schema.Int64),
//	    schema.OptionalColumn("name", schema.ByteArray),
//	)
//	w, _ := tessera.Create("users.tsr", s, nil)
//	_ = w.WriteBatch(0, []int64{1, 2, 3}, nil, nil)
//	_ = w.WriteBatch(1, []string{"ada", "lin"}, []bool{true, false, true}, nil)
//	_ = w.Close()
//
//	r, _ := tessera.Open("users.tsr", nil)
//	defer r.Close()
//	br, _ := r.BatchReader(table.BatchConfig{})
//	for {
//	    b, err := br.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    // use b.Columns
//	    b.Release()
//	}
package tessera

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tessera/pkg/checksum"
	"github.com/ajitpratap0/tessera/pkg/config"
	"github.com/ajitpratap0/tessera/pkg/cpufeat"
	"github.com/ajitpratap0/tessera/pkg/logger"
	"github.com/ajitpratap0/tessera/pkg/schema"
	"github.com/ajitpratap0/tessera/pkg/table"
)

var (
	initOnce sync.Once
	initErr  error
)

// Init sets up process-wide state: the global logger, the CPU capability
// snapshot and the CRC32 strategy. Only the first call has any effect; later
// calls return the first call's result. A nil cfg uses config.DefaultConfig.
func Init(cfg *config.Config) error {
	initOnce.Do(func() {
		if cfg == nil {
			cfg = config.DefaultConfig()
		}
		if initErr = cfg.Validate(); initErr != nil {
			return
		}
		if initErr = logger.Init(cfg.Logging.LoggerConfig()); initErr != nil {
			return
		}
		snap := cpufeat.Detect()
		logger.Debug("tessera initialized",
			zap.String("arch", snap.Arch),
			zap.Strings("cpu_features", snap.Features()),
			zap.String("crc32", checksum.Default().Name()))
	})
	return initErr
}

// Capabilities returns the process CPU capability snapshot.
func Capabilities() cpufeat.Snapshot {
	return cpufeat.Detect()
}

// Open opens the table file at path. A nil cfg uses
// config.DefaultReaderConfig.
func Open(path string, cfg *config.ReaderConfig, opts ...table.Option) (*table.Reader, error) {
	return table.OpenFile(path, cfg, opts...)
}

// OpenBuffer opens a table held in memory. The reader keeps b; the caller
// must not modify it while the reader is open.
func OpenBuffer(b []byte, cfg *config.ReaderConfig, opts ...table.Option) (*table.Reader, error) {
	return table.OpenBytes(b, cfg, opts...)
}

// Create starts a new table file at path, replacing any existing file.
func Create(path string, s *schema.Schema, cfg *config.WriterConfig, opts ...table.Option) (*table.Writer, error) {
	return table.CreateFile(path, s, cfg, opts...)
}
