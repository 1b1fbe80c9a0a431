// Package metrics provides Prometheus instrumentation for Tessera readers and
// writers.
//
// # Overview
//
// A Collector owns one set of counters and histograms describing page and
// row-group traffic:
//   - pages written and read, labelled by codec
//   - bytes moved, labelled by stage (raw, compressed, decoded)
//   - row groups written
//   - checksum failures
//   - page decode latency
//
// # Basic Usage
//
//	c := metrics.NewCollector(prometheus.NewRegistry())
//	w, _ := table.NewWriter(f, s, cfg, table.WithMetrics(c))
//
// Default returns a process-wide collector registered on the default
// Prometheus registry. A nil *Collector is valid and records nothing, so
// components can call it unconditionally.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tessera"

// Stage labels for BytesProcessed.
const (
	StageRaw        = "raw"
	StageCompressed = "compressed"
	StageDecoded    = "decoded"
)

// Collector groups the metrics recorded by one writer or reader. Collectors
// are safe for concurrent use.
type Collector struct {
	pagesWritten     *prometheus.CounterVec
	pagesRead        *prometheus.CounterVec
	bytesProcessed   *prometheus.CounterVec
	rowGroupsWritten prometheus.Counter
	rowsWritten      prometheus.Counter
	checksumFailures prometheus.Counter
	pageDecode       prometheus.Histogram
	startTime        time.Time
}

// NewCollector creates a collector and registers its metrics on reg. A nil
// reg leaves the metrics unregistered, which is useful in tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pagesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_written_total",
				Help:      "Total number of data pages written",
			},
			[]string{"codec"},
		),
		pagesRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_read_total",
				Help:      "Total number of data pages decoded",
			},
			[]string{"codec"},
		),
		bytesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "page_bytes_total",
				Help:      "Page bytes moved, by stage",
			},
			[]string{"stage"},
		),
		rowGroupsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_groups_written_total",
			Help:      "Total number of row groups flushed",
		}),
		rowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Total number of rows flushed in row groups",
		}),
		checksumFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checksum_failures_total",
			Help:      "Pages whose CRC32 did not match the header",
		}),
		// Buckets run from 1μs to 1s in nanoseconds.
		pageDecode: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_decode_latency_nanoseconds",
			Help:      "Time to verify, decompress and decode one page",
			Buckets:   []float64{1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9},
		}),
		startTime: time.Now(),
	}

	if reg != nil {
		for _, m := range c.collectors() {
			reg.MustRegister(m)
		}
	}
	return c
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.pagesWritten,
		c.pagesRead,
		c.bytesProcessed,
		c.rowGroupsWritten,
		c.rowsWritten,
		c.checksumFailures,
		c.pageDecode,
	}
}

var (
	defaultOnce      sync.Once
	defaultCollector *Collector
)

// Default returns the process-wide collector, registering it on
// prometheus.DefaultRegisterer on first use.
func Default() *Collector {
	defaultOnce.Do(func() {
		defaultCollector = NewCollector(prometheus.DefaultRegisterer)
	})
	return defaultCollector
}

// PageWritten records one encoded page.
func (c *Collector) PageWritten(codec string, rawBytes, compressedBytes int) {
	if c == nil {
		return
	}
	c.pagesWritten.WithLabelValues(codec).Inc()
	c.bytesProcessed.WithLabelValues(StageRaw).Add(float64(rawBytes))
	c.bytesProcessed.WithLabelValues(StageCompressed).Add(float64(compressedBytes))
}

// PageRead records one decoded page and how long it took.
func (c *Collector) PageRead(codec string, decodedBytes int, d time.Duration) {
	if c == nil {
		return
	}
	c.pagesRead.WithLabelValues(codec).Inc()
	c.bytesProcessed.WithLabelValues(StageDecoded).Add(float64(decodedBytes))
	c.pageDecode.Observe(float64(d.Nanoseconds()))
}

// RowGroupWritten records a flushed row group of rows rows.
func (c *Collector) RowGroupWritten(rows int64) {
	if c == nil {
		return
	}
	c.rowGroupsWritten.Inc()
	c.rowsWritten.Add(float64(rows))
}

// ChecksumFailure records a page that failed CRC verification.
func (c *Collector) ChecksumFailure() {
	if c == nil {
		return
	}
	c.checksumFailures.Inc()
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t Timer) Stop() time.Duration {
	return time.Since(t.start)
}
