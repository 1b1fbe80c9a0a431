// Package config provides the configuration structures for Tessera writers
// and readers, plus YAML loading with environment variable substitution.
//
// The configuration file is organized into three sections:
//   - writer: codec, compression level, row group and page sizing,
//     statistics and Bloom filters
//   - reader: memory mapping, checksum verification, zero-copy, batch size
//   - logging: level, encoding and output paths for the global logger
//
// Example file:
//
//	writer:
//	  codec: zstd
//	  level: better
//	  row_group_rows: 1048576
//	  column_codecs:
//	    payload: lz4_raw
//	reader:
//	  memory_map: true
//	  verify_checksums: true
//	logging:
//	  level: ${TESSERA_LOG_LEVEL}
//
// Values of the form ${NAME} are replaced with the environment variable
// NAME before the YAML is parsed.
package config
