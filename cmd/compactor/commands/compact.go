package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/compactor/pkg/compact"
	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/progress"
	"github.com/Sumatoshi-tech/compactor/pkg/report"
)

const (
	modeCompress   = compact.ModeCompress
	modeDecompress = compact.ModeDecompress
)

// ErrInputAndResume is returned when both --input and --resume are given.
var ErrInputAndResume = errors.New("--input and --resume are mutually exclusive")

type compactOptions struct {
	reportOptions

	input  string
	resume bool
}

func newCompactCommand(g *globalOptions, mode compact.Mode) *cobra.Command {
	var co compactOptions

	short := "Compress the compressible files of a directory"
	if mode == compact.ModeDecompress {
		short = "Remove transparent compression from a directory"
	}

	cmd := &cobra.Command{
		Use:   mode.String() + " [path]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if co.input != "" && co.resume {
				return ErrInputAndResume
			}

			root, err := rootArg(args)
			if err != nil {
				return err
			}

			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}

			defer func() { err = errors.Join(err, s.close()) }()

			return runCompact(cmd, g, s, &co, mode, root)
		},
	}

	cmd.Flags().StringVar(&co.input, flagInput, "", "use a report saved with --save instead of scanning")
	cmd.Flags().BoolVar(&co.resume, flagResume, false, "continue the last interrupted run over path")
	co.register(cmd)
	co.registerSave(cmd)

	return cmd
}

func runCompact(cmd *cobra.Command, g *globalOptions, s *session, co *compactOptions, mode compact.Mode, root string) error {
	ctx, commands, stop := controls(cmd.Context(), stdin(cmd, g))
	defer stop()

	folder, runID, err := sourceFolder(ctx, commands, cmd, s, co, mode, root)
	if err != nil || folder == nil {
		return err
	}

	run := s.backend.Compress
	if mode == compact.ModeDecompress {
		run = s.backend.Decompress
	}

	res, err := run(ctx, folder, runID, commands, s.reporter)
	if res == nil {
		return err
	}

	emitErr := co.emit(cmd, report.New(res.Folder, runID), s.term, s.cfg.Decimal)

	return errors.Join(err, emitErr)
}

// sourceFolder returns the inventory to work on: a resumed checkpoint, a
// saved report or a fresh scan. A nil folder means the scan was stopped.
func sourceFolder(
	ctx context.Context,
	commands <-chan progress.Command,
	cmd *cobra.Command,
	s *session,
	co *compactOptions,
	mode compact.Mode,
	root string,
) (*inventory.Folder, string, error) {
	switch {
	case co.resume:
		run, err := s.backend.Resume(root, mode)
		if err != nil {
			return nil, "", err
		}

		s.logger.Info("resuming", "run_id", run.Metadata.RunID,
			"processed", run.Metadata.Processed, "remaining", run.Metadata.Remaining)

		return run.Folder, run.Metadata.RunID, nil
	case co.input != "":
		r, err := report.Load(co.input)
		if err != nil {
			return nil, "", err
		}

		return r.Folder(), r.RunID, nil
	default:
		res, err := s.backend.Scan(ctx, root, commands, s.reporter)
		if err != nil {
			return nil, "", err
		}

		if res.Stopped {
			_, printErr := fmt.Fprintln(cmd.ErrOrStderr(), "Scan stopped; nothing was changed.")

			return nil, "", printErr
		}

		return res.Folder, res.RunID, nil
	}
}
