package config

import (
	"github.com/ajitpratap0/tessera/pkg/bloom"
	"github.com/ajitpratap0/tessera/pkg/compression"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/logger"
)

const (
	// DefaultRowGroupRows is the row count at which a row group is cut.
	DefaultRowGroupRows = 1 << 20
	// DefaultPageRows caps the rows stored in one page.
	DefaultPageRows = 1 << 14
	// DefaultPageSizeBytes caps the encoded size of one page.
	DefaultPageSizeBytes = 1 << 20
	// DefaultBatchSize is the row count of a materialized batch.
	DefaultBatchSize = 4096
	// DefaultMaxPageSize bounds page sizes accepted by readers.
	DefaultMaxPageSize = 64 << 20
	// MaxPageSizeLimit is the largest page a page header can describe.
	MaxPageSizeLimit = 1<<32 - 1
)

// Config is the root of a configuration file.
type Config struct {
	Writer  WriterConfig  `yaml:"writer" json:"writer"`
	Reader  ReaderConfig  `yaml:"reader" json:"reader"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// WriterConfig controls how files are written.
type WriterConfig struct {
	// Codec compresses every page unless ColumnCodecs overrides it
	Codec compression.Codec `yaml:"codec" json:"codec"`
	// Level trades compression speed for ratio
	Level compression.Level `yaml:"level" json:"level"`
	// RowGroupRows is the exact row count of every row group but the last
	RowGroupRows int `yaml:"row_group_rows" json:"row_group_rows"`
	// PageRows caps the rows stored in one page
	PageRows int `yaml:"page_rows" json:"page_rows"`
	// PageSizeBytes caps the uncompressed size of one page
	PageSizeBytes int `yaml:"page_size_bytes" json:"page_size_bytes"`
	// EnableStatistics records min/max per column chunk
	EnableStatistics bool `yaml:"enable_statistics" json:"enable_statistics"`
	// EnableBloomFilter writes a split-block Bloom filter per column chunk
	EnableBloomFilter bool `yaml:"enable_bloom_filter" json:"enable_bloom_filter"`
	// BloomBitsPerValue sizes Bloom filters
	BloomBitsPerValue int `yaml:"bloom_bits_per_value" json:"bloom_bits_per_value"`
	// ColumnCodecs overrides Codec per column name
	ColumnCodecs map[string]compression.Codec `yaml:"column_codecs,omitempty" json:"column_codecs,omitempty"`
}

// ReaderConfig controls how files are read.
type ReaderConfig struct {
	// MemoryMap reads files through a read-only memory mapping
	MemoryMap bool `yaml:"memory_map" json:"memory_map"`
	// VerifyChecksums checks every page CRC32 before decompressing
	VerifyChecksums bool `yaml:"verify_checksums" json:"verify_checksums"`
	// ZeroCopy lets batches alias mapped bytes where the layout allows
	ZeroCopy bool `yaml:"zero_copy" json:"zero_copy"`
	// BatchSize is the row count of each batch
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// MaxPageSize rejects pages whose declared sizes exceed it
	MaxPageSize int `yaml:"max_page_size" json:"max_page_size"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level       string   `yaml:"level" json:"level"`
	Development bool     `yaml:"development" json:"development"`
	Encoding    string   `yaml:"encoding" json:"encoding"`
	OutputPaths []string `yaml:"output_paths,omitempty" json:"output_paths,omitempty"`
}

// DefaultConfig returns a configuration with every section defaulted.
func DefaultConfig() *Config {
	return &Config{
		Writer:  *DefaultWriterConfig(),
		Reader:  *DefaultReaderConfig(),
		Logging: LoggingConfig{Level: "info", Encoding: "json"},
	}
}

// DefaultWriterConfig returns snappy-compressed pages, 1Mi-row row groups
// and statistics enabled.
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Codec:             compression.Snappy,
		Level:             compression.Default,
		RowGroupRows:      DefaultRowGroupRows,
		PageRows:          DefaultPageRows,
		PageSizeBytes:     DefaultPageSizeBytes,
		EnableStatistics:  true,
		EnableBloomFilter: false,
		BloomBitsPerValue: bloom.DefaultBitsPerValue,
	}
}

// DefaultReaderConfig returns checksum verification on and memory mapping off.
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		MemoryMap:       false,
		VerifyChecksums: true,
		ZeroCopy:        false,
		BatchSize:       DefaultBatchSize,
		MaxPageSize:     DefaultMaxPageSize,
	}
}

// Validate checks the writer settings.
func (c *WriterConfig) Validate() error {
	if !c.Codec.Valid() {
		return errors.Newf(errors.ErrorTypeConfig, "unsupported codec %d", c.Codec)
	}
	switch c.Level {
	case compression.Fastest, compression.Default, compression.Better, compression.Best:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported compression level %d", c.Level)
	}
	if c.RowGroupRows <= 0 {
		return errors.New(errors.ErrorTypeConfig, "row_group_rows must be positive")
	}
	if c.PageRows <= 0 {
		return errors.New(errors.ErrorTypeConfig, "page_rows must be positive")
	}
	if c.PageSizeBytes <= 0 || c.PageSizeBytes > MaxPageSizeLimit {
		return errors.Newf(errors.ErrorTypeConfig, "page_size_bytes must be in (0, %d]", MaxPageSizeLimit)
	}
	if c.EnableBloomFilter && c.BloomBitsPerValue <= 0 {
		return errors.New(errors.ErrorTypeConfig, "bloom_bits_per_value must be positive")
	}
	for name, codec := range c.ColumnCodecs {
		if !codec.Valid() {
			return errors.Newf(errors.ErrorTypeConfig, "column %q: unsupported codec %d", name, codec)
		}
	}
	return nil
}

// CodecFor returns the codec for the named column.
func (c *WriterConfig) CodecFor(column string) compression.Codec {
	if codec, ok := c.ColumnCodecs[column]; ok {
		return codec
	}
	return c.Codec
}

// Validate checks the reader settings.
func (c *ReaderConfig) Validate() error {
	if c.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "batch_size must be positive")
	}
	if c.MaxPageSize <= 0 || c.MaxPageSize > MaxPageSizeLimit {
		return errors.Newf(errors.ErrorTypeConfig, "max_page_size must be in (0, %d]", MaxPageSizeLimit)
	}
	if c.ZeroCopy && !c.MemoryMap {
		return errors.New(errors.ErrorTypeConfig, "zero_copy requires memory_map")
	}
	return nil
}

// LoggerConfig converts the section for logger.Init.
func (c LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       c.Level,
		Development: c.Development,
		Encoding:    c.Encoding,
		OutputPaths: c.OutputPaths,
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Writer.Validate(); err != nil {
		return err
	}
	return c.Reader.Validate()
}
