package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/compactor/pkg/checkpoint"
	"github.com/Sumatoshi-tech/compactor/pkg/compact"
	"github.com/Sumatoshi-tech/compactor/pkg/compaction"
	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/progress"
)

// Compress compresses the Compressible bucket of folder. runID ties the run
// to the scan that produced folder; an empty runID gets a fresh one.
func (b *Backend) Compress(ctx context.Context, folder *inventory.Folder, runID string, commands <-chan progress.Command, reporter progress.Reporter) (*compaction.Result, error) {
	return b.compact(ctx, compact.ModeCompress, folder, runID, commands, reporter)
}

// Decompress decompresses the AlreadyCompressed bucket of folder.
func (b *Backend) Decompress(ctx context.Context, folder *inventory.Folder, runID string, commands <-chan progress.Command, reporter progress.Reporter) (*compaction.Result, error) {
	return b.compact(ctx, compact.ModeDecompress, folder, runID, commands, reporter)
}

func (b *Backend) compact(
	ctx context.Context,
	mode compact.Mode,
	folder *inventory.Folder,
	runID string,
	commands <-chan progress.Command,
	reporter progress.Reporter,
) (*compaction.Result, error) {
	err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer b.release()

	if runID == "" {
		runID = uuid.NewString()
	}

	logger := b.runLogger(runID)

	co := compaction.New(folder, b.compactor, b.known, compaction.Options{
		Mode:           mode,
		Threshold:      b.cfg.Estimator.Threshold,
		StatusInterval: b.cfg.Compaction.StatusInterval,
		FlushInterval:  b.cfg.Compaction.FlushInterval,
		ResultsBuffer:  b.cfg.Compaction.ResultsBuffer,
		Physical:       b.physical,
		Reporter:       reporter,
		Logger:         logger,
		Tracer:         b.tracer,
		Metrics:        b.metrics,
	})

	res, runErr := co.Run(ctx, commands)

	b.checkpoint(ctx, mode, runID, res, runErr)

	return res, runErr
}

// checkpoint keeps an interrupted run resumable and forgets a finished one.
func (b *Backend) checkpoint(ctx context.Context, mode compact.Mode, runID string, res *compaction.Result, runErr error) {
	if !b.cfg.Checkpoint.Enabled || res == nil {
		return
	}

	logger := b.runLogger(runID)
	m := checkpoint.NewManager(b.cfg.Checkpoint.Dir, res.Folder.Path)

	if res.Stopped || runErr != nil {
		err := m.Save(res.Folder, mode.String(), runID, res.Processed)
		if err != nil {
			logger.WarnContext(ctx, "checkpoint not saved", "error", err)

			return
		}

		logger.InfoContext(ctx, "checkpoint saved", "dir", m.CheckpointDir(),
			"remaining", res.Folder.Group(compaction.Source(mode)).Len())

		return
	}

	err := m.Clear()
	if err != nil {
		logger.WarnContext(ctx, "checkpoint not cleared", "error", err)
	}
}

// Resume loads the checkpoint of an interrupted run over root.
// It returns fs.ErrNotExist when there is none or checkpoints are disabled.
func (b *Backend) Resume(root string, mode compact.Mode) (*checkpoint.Run, error) {
	if !b.cfg.Checkpoint.Enabled {
		return nil, fmt.Errorf("resume %s: %w", root, fs.ErrNotExist)
	}

	run, err := checkpoint.NewManager(b.cfg.Checkpoint.Dir, root).Load(root, mode.String())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no checkpoint for %s: %w", root, err)
		}

		return nil, fmt.Errorf("resume %s: %w", root, err)
	}

	return run, nil
}
