package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/compactor/pkg/background"
	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/observability"
	"github.com/Sumatoshi-tech/compactor/pkg/progress"
	"github.com/Sumatoshi-tech/compactor/pkg/scan"
)

const modeScan = "scan"

// ScanResult is the outcome of Scan.
type ScanResult struct {
	Folder  *inventory.Folder
	RunID   string
	Stopped bool
	Elapsed time.Duration
}

// Scan classifies every file under root. Commands pause, resume or stop the
// walk; a stopped scan returns the partial folder. reporter may be nil.
func (b *Backend) Scan(ctx context.Context, root string, commands <-chan progress.Command, reporter progress.Reporter) (*ScanResult, error) {
	err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer b.release()

	if reporter == nil {
		reporter = progress.Nop{}
	}

	smallFile, err := b.cfg.SmallFileBytes()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := b.runLogger(runID)
	start := time.Now()

	ctx, span := b.tracer.Start(ctx, "compactor."+modeScan, trace.WithAttributes(
		attribute.String("mode", modeScan),
		attribute.String("run.id", runID),
		attribute.String("run.root", root),
	))
	defer span.End()

	b.metrics.RunStarted(ctx, modeScan)
	logger.InfoContext(ctx, "scan started", "root", root)

	classifier := scan.New(root, b.exclude, b.known, scan.Options{
		SmallFileThreshold: smallFile,
		CheckInterval:      b.cfg.Scan.CheckInterval,
		StatusInterval:     b.cfg.Scan.StatusInterval,
		Stat:               b.stat,
		Logger:             logger,
	})

	handle := background.Spawn[*inventory.Folder, scan.Status](ctx, classifier)
	defer handle.Close()

	watchScan(ctx, handle, commands, reporter, b.cfg.Scan.StatusInterval)

	outcome, err := handle.Wait()
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.metrics.RunFinished(ctx, modeScan, observability.StatusFailed, elapsed)
		logger.ErrorContext(ctx, "scan failed", "root", root, "error", err)

		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	folder := outcome.Value
	summary := folder.Summary()
	status := observability.StatusCompleted

	reporter.Summary(summary)

	if outcome.Stopped {
		status = observability.StatusStopped

		reporter.Stopped(summary, elapsed)
	} else {
		reporter.Scanned(summary, elapsed)
	}

	counts := make(map[string]int, len(inventory.Buckets))
	for _, bucket := range inventory.Buckets {
		counts[bucket.String()] = summary.Group(bucket).Count
	}

	b.metrics.RecordScan(ctx, counts)
	b.metrics.RunFinished(ctx, modeScan, status, elapsed)

	span.SetAttributes(
		attribute.Int("scan.files", summary.Files()),
		attribute.String("run.status", status),
	)
	logger.InfoContext(ctx, "scan finished", "root", root, "status", status,
		"files", summary.Files(), "elapsed", elapsed)

	return &ScanResult{Folder: folder, RunID: runID, Stopped: outcome.Stopped, Elapsed: elapsed}, nil
}

// watchScan relays commands to the scan job and forwards its latest status
// until the job returns.
func watchScan(
	ctx context.Context,
	handle *background.Handle[*inventory.Folder, scan.Status],
	commands <-chan progress.Command,
	reporter progress.Reporter,
	interval time.Duration,
) {
	if interval <= 0 {
		interval = scan.DefaultStatusInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	done := ctx.Done()

	for {
		select {
		case <-handle.Done():
			return
		case <-done:
			done = nil

			handle.Cancel()
			reporter.Status("Stopping", progress.NoFraction)
		case cmd, ok := <-commands:
			if !ok {
				commands = nil

				continue
			}

			switch cmd {
			case progress.Pause:
				if !handle.IsPaused() {
					handle.Pause()
					reporter.Paused()
				}
			case progress.Resume:
				if handle.IsPaused() {
					handle.Resume()
					reporter.Resumed()
				}
			case progress.Stop:
				handle.Cancel()
				reporter.Status("Stopping", progress.NoFraction)
			}
		case <-ticker.C:
			if st, ok := handle.Status(); ok {
				reporter.Status("Scanning "+st.Path, progress.NoFraction)
				reporter.Summary(st.Summary)
			}
		}
	}
}
