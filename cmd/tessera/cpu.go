package main

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/tessera"
	"github.com/ajitpratap0/tessera/pkg/checksum"
)

func newCPUCmd(_ *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cpu",
		Short: "Show detected CPU features and the selected CRC32 strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			snap := tessera.Capabilities()

			// Host details are informational only.
			if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
				fmt.Fprintf(out, "Model: %s\n", infos[0].ModelName)
			}
			physical, _ := cpu.Counts(false)
			logical, _ := cpu.Counts(true)
			fmt.Fprintf(out, "Cores: %d physical, %d logical\n", physical, logical)

			fmt.Fprintf(out, "Arch: %s\n", snap.Arch)
			features := snap.Features()
			if len(features) == 0 {
				features = []string{"none"}
			}
			fmt.Fprintf(out, "Features: %s\n", strings.Join(features, " "))
			fmt.Fprintf(out, "CRC32: %s\n", checksum.Default().Name())
			return nil
		},
	}
}
