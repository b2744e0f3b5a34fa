package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/compactor/pkg/report"
	"github.com/Sumatoshi-tech/compactor/pkg/terminal"
)

// ErrNoInput is returned when render is called without --input.
var ErrNoInput = errors.New("input report is required (use --input)")

func newRenderCommand(g *globalOptions) *cobra.Command {
	var (
		ro    reportOptions
		input string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Re-render a report saved with --save",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" {
				return ErrNoInput
			}

			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}

			r, err := report.Load(input)
			if err != nil {
				return err
			}

			term := terminal.NewConfig()
			if g.noColor {
				term.NoColor = true
			}

			return ro.emit(cmd, r, term, cfg.Decimal)
		},
	}

	cmd.Flags().StringVar(&input, flagInput, "", "saved JSON report")
	ro.register(cmd)

	return cmd
}
