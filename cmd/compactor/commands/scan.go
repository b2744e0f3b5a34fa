package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/compactor/pkg/report"
)

func newScanCommand(g *globalOptions) *cobra.Command {
	var ro reportOptions

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Classify a directory and report what compression would reclaim",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			root, err := rootArg(args)
			if err != nil {
				return err
			}

			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}

			defer func() { err = errors.Join(err, s.close()) }()

			ctx, commands, stop := controls(cmd.Context(), stdin(cmd, g))
			defer stop()

			res, err := s.backend.Scan(ctx, root, commands, s.reporter)
			if err != nil {
				return err
			}

			return ro.emit(cmd, report.New(res.Folder, res.RunID), s.term, s.cfg.Decimal)
		},
	}

	ro.register(cmd)
	ro.registerSave(cmd)

	return cmd
}

func rootArg(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", root, err)
	}

	return abs, nil
}
