package main

import (
	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/tessera"
	"github.com/ajitpratap0/tessera/pkg/errors"
	"github.com/ajitpratap0/tessera/pkg/table"
)

type columnView struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Repetition string `json:"repetition"`
	TypeLength int32  `json:"type_length,omitempty"`
}

type inspectView struct {
	Path        string       `json:"path"`
	Fingerprint string       `json:"schema_fingerprint"`
	Columns     []columnView `json:"columns"`
	*table.FileMetadata
}

func newInspectCmd(c *cli) *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print file metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rcfg := c.cfg.Reader
			r, err := tessera.Open(args[0], &rcfg)
			if err != nil {
				return err
			}
			defer r.Close()

			md := *r.Metadata()
			if summary {
				md.RowGroups = nil
			}
			view := inspectView{
				Path:         args[0],
				Fingerprint:  r.Schema().Fingerprint(),
				FileMetadata: &md,
			}
			for _, col := range r.Schema().Columns() {
				view.Columns = append(view.Columns, columnView{
					Name:       col.Name,
					Type:       col.Type.String(),
					Repetition: col.Repetition.String(),
					TypeLength: col.TypeLength,
				})
			}

			out, err := gojson.MarshalIndent(view, "", "  ")
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode metadata")
			}
			out = append(out, '\n')
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "Omit per row group details")
	return cmd
}
