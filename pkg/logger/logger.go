// Package logger holds the process-wide zap logger and the field
// constructors used when logging about files, row groups and pages.
package logger

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global atomic.Pointer[zap.Logger]
	once   sync.Once
)

// Config represents logger configuration
type Config struct {
	Level       string
	Development bool
	Encoding    string // json or console
	OutputPaths []string
}

// Init builds the global logger from cfg. Only the first call, or the first
// Get, decides the logger; later calls return the first call's error.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		var l *zap.Logger
		if l, err = build(cfg); err == nil {
			global.Store(l)
		}
	})
	return err
}

func build(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(cfg.Level); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	if cfg.Development {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
	}
	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    enc,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	opts := []zap.Option{zap.Fields(zap.String("lib", "tessera"))}
	if cfg.Development {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	l, err := zcfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// Get returns the global logger, initializing it at info level when Init
// was never called.
func Get() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	if err := Init(Config{Level: "info"}); err != nil {
		// A failed Init leaves nothing stored.
		global.CompareAndSwap(nil, zap.NewNop())
	}
	if l := global.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// File names the table file a log entry is about.
func File(path string) zap.Field { return zap.String("file", path) }

// RowGroup identifies a row group by index.
func RowGroup(i int) zap.Field { return zap.Int("row_group", i) }

// Column identifies a column by name.
func Column(name string) zap.Field { return zap.String("column", name) }

// Page identifies a page by index within its column chunk.
func Page(i int) zap.Field { return zap.Int("page", i) }

// Debug logs a debug message on the global logger
func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

// Info logs an info message on the global logger
func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

// Named returns a child of the global logger for one component.
func Named(component string) *zap.Logger {
	return Get().Named(component)
}

// Sync flushes any buffered log entries
func Sync() error {
	if l := global.Load(); l != nil {
		return l.Sync()
	}
	return nil
}
