package table

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/tessera/pkg/logger"
	"github.com/ajitpratap0/tessera/pkg/metrics"
)

// DefaultCreatedBy is recorded in files unless WithCreatedBy overrides it.
const DefaultCreatedBy = "tessera"

// Option configures a Writer or a Reader. Writer-only options are ignored
// by readers.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	metrics   *metrics.Collector
	createdBy string
	keyValues []KeyValue
	fields    []zap.Field
}

func buildOptions(opts []Option) options {
	o := options{createdBy: DefaultCreatedBy}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}
	if len(o.fields) > 0 {
		o.logger = o.logger.With(o.fields...)
	}
	return o
}

// withFields adds fields to whichever logger the caller chose.
func withFields(fields ...zap.Field) Option {
	return func(o *options) { o.fields = append(o.fields, fields...) }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = logger.OrNop(l) }
}

// WithMetrics records page and row-group metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithCreatedBy sets the application name stored in the metadata.
func WithCreatedBy(name string) Option {
	return func(o *options) { o.createdBy = name }
}

// WithKeyValue adds an application metadata entry.
func WithKeyValue(key, value string) Option {
	return func(o *options) { o.keyValues = append(o.keyValues, KeyValue{Key: key, Value: value}) }
}
