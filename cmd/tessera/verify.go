package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/tessera"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/table"
)

type verifyResult struct {
	RowGroups int
	Columns   int
	Pages     int
	Values    int64
}

// verifyFile decodes every page of every column chunk with checksum
// verification on. It stops at the first failure.
func verifyFile(r *table.Reader, batchSize int) (verifyResult, error) {
	res := verifyResult{RowGroups: r.NumRowGroups(), Columns: r.NumColumns()}
	for rg := 0; rg < r.NumRowGroups(); rg++ {
		for col := 0; col < r.NumColumns(); col++ {
			cr, err := r.ColumnReader(rg, col)
			if err != nil {
				return res, err
			}
			for {
				b, err := cr.ReadBatch(batchSize)
				if err == io.EOF {
					break
				}
				if err != nil {
					return res, err
				}
				res.Values += int64(b.Rows)
			}
			res.Pages += len(cr.Chunk().Pages)
		}
	}
	return res, nil
}

func newVerifyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Decode every page and check its CRC32",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rcfg := c.cfg.Reader
			rcfg.VerifyChecksums = true
			r, err := tessera.Open(args[0], &rcfg)
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := verifyFile(r, rcfg.BatchSize)
			if err != nil {
				if errors.IsCorruption(err) {
					return fmt.Errorf("%s: corrupt: %w", args[0], err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d row groups, %d columns, %d pages, %d values)\n",
				args[0], res.RowGroups, res.Columns, res.Pages, res.Values)
			return nil
		},
	}
}
