package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/tessera"
	"github.com/ajitpratap0/tessera/pkg/config"
)

var version = "0.1.0"

// cli holds state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// load reads the configuration file, if any, over the defaults and sets up
// process-wide state.
func (c *cli) load() error {
	cfg := config.DefaultConfig()
	if c.configPath != "" {
		loaded, err := config.LoadConfig(c.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	// Keep stdout for command output.
	if len(cfg.Logging.OutputPaths) == 0 {
		cfg.Logging.OutputPaths = []string{"stderr"}
	}
	c.cfg = cfg
	return tessera.Init(cfg)
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "tessera",
		Short: "Tessera - columnar table file toolkit",
		Long: `Tessera reads and writes row-group organized columnar table files with
per-page compression and CRC32 integrity checks.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tessera v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(
		newInspectCmd(c),
		newVerifyCmd(c),
		newExportCmd(c),
		newCPUCmd(c),
		newBenchCmd(c),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
