package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/tessera"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/formats/arrowbatch"
	"github.com/ajitpratap0/tessera/pkg/table"
)

func newExportCmd(c *cli) *cobra.Command {
	var (
		columns   []string
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "export <file> <out.arrow>",
		Short: "Convert a table file to an Arrow IPC file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rcfg := c.cfg.Reader
			r, err := tessera.Open(args[0], &rcfg)
			if err != nil {
				return err
			}
			defer r.Close()

			f, err := os.Create(args[1])
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output").
					WithDetail("path", args[1])
			}
			w := bufio.NewWriter(f)
			rows, err := arrowbatch.WriteIPC(w, r, table.BatchConfig{BatchSize: batchSize, Columns: columns}, nil)
			if err == nil {
				err = w.Flush()
			}
			if cerr := f.Close(); err == nil && cerr != nil {
				err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close output")
			}
			if err != nil {
				_ = os.Remove(args[1])
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", rows, args[1])
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to export, in order (default all)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Rows per Arrow record batch (default from reader config)")
	return cmd
}
