// Package commands implements the compactor subcommands.
package commands

import (
	"github.com/spf13/cobra"
)

const (
	flagConfig      = "config"
	flagLogLevel    = "log-level"
	flagLogJSON     = "log-json"
	flagSilent      = "silent"
	flagNoColor     = "no-color"
	flagMetricsAddr = "metrics-addr"
	flagNoInput     = "no-input"
	flagFormat      = "format"
	flagOutput      = "output"
	flagSave        = "save"
	flagInput       = "input"
	flagResume      = "resume"
	flagTop         = "top"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath  string
	logLevel    string
	logJSON     bool
	silent      bool
	noColor     bool
	noInput     bool
	metricsAddr string
}

// NewRootCommand builds the compactor command tree.
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "compactor",
		Short: "Transparent filesystem compression for whole directory trees",
		Long: `compactor classifies the files under a directory and compresses the
ones worth compressing with the filesystem's own transparent compression.

Commands:
  scan        Classify a directory and report what compression would reclaim
  compress    Compress the compressible files of a directory
  decompress  Remove compression from a directory
  render      Re-render a saved report
  config      Print the effective configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, flagConfig, "", "config file (default .compactor.yaml in . or $HOME)")
	flags.StringVar(&g.logLevel, flagLogLevel, "", "log level: debug, info, warn, error")
	flags.BoolVar(&g.logJSON, flagLogJSON, false, "log as JSON")
	flags.BoolVar(&g.silent, flagSilent, false, "disable progress output")
	flags.BoolVar(&g.noColor, flagNoColor, false, "disable colored output")
	flags.BoolVar(&g.noInput, flagNoInput, false, "do not read p/r/s commands from stdin")
	flags.StringVar(&g.metricsAddr, flagMetricsAddr, "", "serve /metrics, /healthz and /readyz on this address")

	root.AddCommand(
		newScanCommand(g),
		newCompactCommand(g, modeCompress),
		newCompactCommand(g, modeDecompress),
		newRenderCommand(g),
		newConfigCommand(g),
		newVersionCommand(),
	)

	return root
}
