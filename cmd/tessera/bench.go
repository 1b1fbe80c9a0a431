package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tessera"
	"github.com/ajitpratap0/tessera/pkg/compression"
	"github.com/ajitpratap0/tessera/pkg/logger"
	"github.com/ajitpratap0/tessera/pkg/metrics"
	"github.com/ajitpratap0/tessera/pkg/schema"
	"github.com/ajitpratap0/tessera/pkg/table"
)

type benchOptions struct {
	rows   int
	pass   int
	codec  string
	level  string
	output string
	keep   bool
}

type benchResult struct {
	Rows      int64
	FileBytes int64
	Write     time.Duration
	Read      time.Duration
	RowGroups int
}

func benchSchema() (*schema.Schema, error) {
	return schema.New(
		schema.RequiredColumn("id", schema.Int64),
		schema.OptionalColumn("score", schema.Double),
		schema.OptionalColumn("label", schema.ByteArray),
		schema.RequiredColumn("flag", schema.Boolean),
	)
}

// writeBench writes opts.rows synthetic rows in passes of opts.pass rows.
func writeBench(w *table.Writer, opts benchOptions) error {
	for start := 0; start < opts.rows; start += opts.pass {
		n := opts.pass
		if start+n > opts.rows {
			n = opts.rows - start
		}
		ids := make([]int64, n)
		flags := make([]bool, n)
		validity := make([]bool, n)
		scores := make([]float64, 0, n)
		labels := make([][]byte, 0, n)
		for i := range ids {
			row := start + i
			ids[i] = int64(row)
			flags[i] = row%3 == 0
			validity[i] = row%10 != 0
			if validity[i] {
				scores = append(scores, float64(row)*0.25)
				labels = append(labels, strconv.AppendInt([]byte("label-"), int64(row%1000), 10))
			}
		}
		steps := []error{
			w.WriteBatch(0, ids, nil, nil),
			w.WriteBatch(1, scores, validity, nil),
			w.WriteBatch(2, labels, validity, nil),
			w.WriteBatch(3, flags, nil, nil),
		}
		for _, err := range steps {
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func runBench(c *cli, opts benchOptions, collector *metrics.Collector) (benchResult, error) {
	var res benchResult
	s, err := benchSchema()
	if err != nil {
		return res, err
	}
	wcfg := c.cfg.Writer
	if opts.codec != "" {
		if wcfg.Codec, err = compression.ParseCodec(opts.codec); err != nil {
			return res, err
		}
	}
	if opts.level != "" {
		if wcfg.Level, err = compression.ParseLevel(opts.level); err != nil {
			return res, err
		}
	}
	if opts.pass <= 0 {
		opts.pass = 64 << 10
	}

	start := time.Now()
	w, err := tessera.Create(opts.output, s, &wcfg, table.WithMetrics(collector))
	if err != nil {
		return res, err
	}
	if err := writeBench(w, opts); err != nil {
		_ = w.Close()
		return res, err
	}
	if err := w.Close(); err != nil {
		return res, err
	}
	res.Write = time.Since(start)
	res.FileBytes = w.BytesWritten()

	start = time.Now()
	rcfg := c.cfg.Reader
	r, err := tessera.Open(opts.output, &rcfg, table.WithMetrics(collector))
	if err != nil {
		return res, err
	}
	defer r.Close()
	br, err := r.BatchReader(table.BatchConfig{})
	if err != nil {
		return res, err
	}
	for {
		b, err := br.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, err
		}
		res.Rows += int64(b.NumRows)
		b.Release()
	}
	res.Read = time.Since(start)
	res.RowGroups = r.NumRowGroups()
	return res, nil
}

func rate(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

func newBenchCmd(c *cli) *cobra.Command {
	var opts benchOptions
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Write and read back synthetic rows and report throughput",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.rows <= 0 {
				return fmt.Errorf("--rows must be positive")
			}
			if opts.output == "" {
				dir, err := os.MkdirTemp("", "tessera-bench-")
				if err != nil {
					return err
				}
				defer os.RemoveAll(dir)
				opts.output = filepath.Join(dir, "bench.tsr")
			} else if !opts.keep {
				defer os.Remove(opts.output)
			}

			collector := metrics.NewCollector(prometheus.NewRegistry())
			res, err := runBench(c, opts, collector)
			if err != nil {
				return err
			}

			log := logger.Named("bench")
			log.Info("benchmark completed",
				zap.Int64("rows", res.Rows),
				zap.Duration("write", res.Write),
				zap.Duration("read", res.Read))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rows:        %d in %d row groups\n", res.Rows, res.RowGroups)
			fmt.Fprintf(out, "file size:   %.2f MiB\n", float64(res.FileBytes)/(1<<20))
			fmt.Fprintf(out, "write:       %v (%.0f rows/s, %.2f MiB/s)\n",
				res.Write, rate(res.Rows, res.Write), rate(res.FileBytes, res.Write)/(1<<20))
			fmt.Fprintf(out, "read:        %v (%.0f rows/s, %.2f MiB/s)\n",
				res.Read, rate(res.Rows, res.Read), rate(res.FileBytes, res.Read)/(1<<20))
			if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
				if mi, err := p.MemoryInfo(); err == nil {
					fmt.Fprintf(out, "rss:         %.2f MiB\n", float64(mi.RSS)/(1<<20))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.rows, "rows", 1_000_000, "Rows to write")
	cmd.Flags().IntVar(&opts.pass, "pass-rows", 64<<10, "Rows per write pass")
	cmd.Flags().StringVar(&opts.codec, "codec", "", "Compression codec (default from writer config)")
	cmd.Flags().StringVar(&opts.level, "level", "", "Compression level (default from writer config)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "File to write (default a temporary file)")
	cmd.Flags().BoolVar(&opts.keep, "keep", false, "Keep the output file")
	return cmd
}
