// Package compaction drives an inventory through a single compaction worker
// while honouring pause, resume and stop requests.
package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/Sumatoshi-tech/compactor/pkg/background"
	"github.com/Sumatoshi-tech/compactor/pkg/compact"
	"github.com/Sumatoshi-tech/compactor/pkg/fsinfo"
	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/observability"
	"github.com/Sumatoshi-tech/compactor/pkg/progress"
	"github.com/Sumatoshi-tech/compactor/pkg/safeconv"
)

// Defaults for Options.
const (
	DefaultStatusInterval = 50 * time.Millisecond
	DefaultFlushInterval  = 60 * time.Second
	DefaultResultsBuffer  = 1
)

// KnownSet records paths found not worth compressing.
// *hashfilter.Filter satisfies it.
type KnownSet interface {
	Insert(item string) bool
	Save() error
}

// PhysicalFunc reports the allocated size of a file after it was processed.
type PhysicalFunc func(path string) (uint64, error)

// Options tune a Coordinator. Zero values select the defaults.
type Options struct {
	Mode           compact.Mode
	Threshold      float64
	StatusInterval time.Duration
	FlushInterval  time.Duration
	ResultsBuffer  int
	Physical       PhysicalFunc
	Reporter       progress.Reporter
	Logger         *slog.Logger
	Tracer         trace.Tracer
	Metrics        *observability.CompactionMetrics
}

// Result is what a finished run hands back to the caller.
type Result struct {
	Folder    *inventory.Folder
	Before    inventory.Summary
	After     inventory.Summary
	Processed int
	Failed    int
	Stopped   bool
	Elapsed   time.Duration
}

// Coordinator owns a folder for the duration of one run.
type Coordinator struct {
	folder    *inventory.Folder
	compactor compact.Compactor
	known     KnownSet
	opts      Options
}

// New prepares a run over folder. known may be nil.
func New(folder *inventory.Folder, c compact.Compactor, known KnownSet, opts Options) *Coordinator {
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}

	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}

	if opts.ResultsBuffer <= 0 {
		opts.ResultsBuffer = DefaultResultsBuffer
	}

	if opts.Physical == nil {
		opts.Physical = physicalSize
	}

	if opts.Reporter == nil {
		opts.Reporter = progress.Nop{}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Tracer == nil {
		opts.Tracer = nooptrace.NewTracerProvider().Tracer(observability.TracerName)
	}

	return &Coordinator{folder: folder, compactor: c, known: known, opts: opts}
}

func physicalSize(path string) (uint64, error) {
	info, err := fsinfo.StatPath(path)
	if err != nil {
		return 0, err
	}

	return info.Physical, nil
}

// Source is the bucket files are taken from in mode m.
func Source(m compact.Mode) inventory.Bucket {
	if m == compact.ModeDecompress {
		return inventory.AlreadyCompressed
	}

	return inventory.Compressible
}

type inflight struct {
	file inventory.File
	span trace.Span
}

// run is the state of one Run call. It is only touched by the goroutine
// executing the loop.
type run struct {
	*Coordinator

	ctx      context.Context
	source   *inventory.Group
	meter    *progress.Meter
	errLimit *rate.Limiter

	next     inventory.File
	hasNext  bool
	pending  []inflight
	current  string
	paused   bool
	stopping bool

	processed int
	failed    int
}

// Run dispatches every file of the source bucket to a worker and routes the
// answers. It returns when the worker has answered everything it was sent,
// either because the bucket ran dry or because a Stop arrived on commands
// or ctx was cancelled. Files that were never answered go back to the
// source bucket. The returned error is only set when the worker failed
// abnormally; the Result is valid either way.
func (co *Coordinator) Run(ctx context.Context, commands <-chan progress.Command) (*Result, error) {
	start := time.Now()
	mode := co.opts.Mode.String()

	ctx, span := co.opts.Tracer.Start(ctx, "compactor."+mode,
		trace.WithAttributes(attribute.String("mode", mode)))
	defer span.End()

	co.opts.Metrics.RunStarted(ctx, mode)

	before := co.folder.Summary()
	source := co.folder.Group(Source(co.opts.Mode))

	r := &run{
		Coordinator: co,
		ctx:         ctx,
		source:      source,
		meter:       progress.NewMeter(source.LogicalSize()),
		errLimit:    rate.NewLimiter(rate.Every(co.opts.StatusInterval), 1),
	}

	co.opts.Logger.InfoContext(ctx, "compaction started",
		"mode", mode, "files", source.Len(), "bytes", source.LogicalSize())
	co.opts.Reporter.Compacting(co.opts.Mode.String())

	jobErr := r.loop(commands)

	r.requeue()
	r.save()

	res := &Result{
		Folder:    co.folder,
		Before:    before,
		After:     co.folder.Summary(),
		Processed: r.processed,
		Failed:    r.failed,
		Stopped:   r.stopping,
		Elapsed:   time.Since(start),
	}

	status := observability.StatusCompleted

	switch {
	case jobErr != nil:
		status = observability.StatusFailed

		span.RecordError(jobErr)
		span.SetStatus(codes.Error, jobErr.Error())
	case res.Stopped:
		status = observability.StatusStopped
	}

	span.SetAttributes(
		attribute.Int("compactor.files.processed", res.Processed),
		attribute.Int("compactor.files.failed", res.Failed),
		attribute.String("run.status", status),
	)
	co.opts.Metrics.RunFinished(ctx, mode, status, res.Elapsed)

	co.opts.Reporter.Summary(res.After)

	if res.Stopped || jobErr != nil {
		co.opts.Reporter.Stopped(res.After, res.Elapsed)
	} else {
		co.opts.Reporter.Compacted(res.Before, res.After, res.Elapsed)
	}

	co.opts.Logger.InfoContext(ctx, "compaction finished",
		"mode", mode, "status", status, "processed", res.Processed,
		"failed", res.Failed, "elapsed", res.Elapsed)

	if jobErr != nil {
		return res, fmt.Errorf("compaction worker: %w", jobErr)
	}

	return res, nil
}

func (r *run) loop(commands <-chan progress.Command) error {
	dispatch := make(chan compact.Request)
	results := make(chan compact.Result, r.opts.ResultsBuffer)

	worker := compact.NewWorker(r.compactor, r.opts.Mode, r.opts.Threshold, dispatch, results, r.opts.Logger)

	handle := background.Spawn[int, struct{}](r.ctx, worker)
	defer handle.Close()

	statusTick := time.NewTicker(r.opts.StatusInterval)
	defer statusTick.Stop()

	flushTick := time.NewTicker(r.opts.FlushInterval)
	defer flushTick.Stop()

	r.next, r.hasNext = r.source.Pop()
	dispatchOpen := true
	done := r.ctx.Done()

	for {
		if dispatchOpen && (r.stopping || !r.hasNext) {
			close(dispatch)

			dispatchOpen = false
		}

		var (
			sendCh chan<- compact.Request
			req    compact.Request
		)

		if dispatchOpen && !r.paused {
			sendCh = dispatch
			req = compact.Request{Path: r.fullPath(r.next), LogicalSize: r.next.LogicalSize}
		}

		var recvCh <-chan compact.Result
		if len(r.pending) > 0 || !dispatchOpen {
			recvCh = results
		}

		select {
		case sendCh <- req:
			r.dispatched()
		case res, ok := <-recvCh:
			if !ok {
				_, err := handle.Wait()

				return err
			}

			r.complete(res)
		case cmd, ok := <-commands:
			if !ok {
				commands = nil

				continue
			}

			r.command(cmd)
		case <-done:
			done = nil

			r.opts.Logger.InfoContext(r.ctx, "compaction interrupted", "error", r.ctx.Err())
			r.command(progress.Stop)
		case <-statusTick.C:
			r.status()
		case <-flushTick.C:
			r.save()
		}
	}
}

func (r *run) fullPath(f inventory.File) string {
	return filepath.Join(r.folder.Path, f.Path)
}

func (r *run) dispatched() {
	_, span := r.opts.Tracer.Start(r.ctx, observability.SpanFile, trace.WithAttributes(
		attribute.String("file.path", r.next.Path),
		attribute.Int64("file.size", safeconv.Int64(r.next.LogicalSize)),
	))

	r.pending = append(r.pending, inflight{file: r.next, span: span})
	r.current = r.next.Path
	r.next, r.hasNext = r.source.Pop()
}

func (r *run) command(cmd progress.Command) {
	switch cmd {
	case progress.Pause:
		if r.paused || r.stopping {
			return
		}

		r.paused = true
		r.opts.Reporter.Paused()
		r.opts.Logger.InfoContext(r.ctx, "compaction paused")
	case progress.Resume:
		if !r.paused || r.stopping {
			return
		}

		r.paused = false
		r.opts.Reporter.Resumed()
		r.opts.Logger.InfoContext(r.ctx, "compaction resumed")
	case progress.Stop:
		if r.stopping {
			return
		}

		r.stopping = true
		r.paused = false
		r.opts.Reporter.Status("Stopping", progress.NoFraction)
		r.opts.Logger.InfoContext(r.ctx, "compaction stopping", "in_flight", len(r.pending))
	}
}

// complete routes one answer. Results arrive in dispatch order.
func (r *run) complete(res compact.Result) {
	entry := r.pending[0]
	r.pending[0] = inflight{}
	r.pending = r.pending[1:]

	file := entry.file
	full := r.fullPath(file)

	if res.Path != full {
		r.opts.Logger.WarnContext(r.ctx, "compaction result out of order", "expected", full, "got", res.Path)
	}

	r.processed++
	r.meter.Add(file.LogicalSize)

	before := file.PhysicalSize
	dest, outcome := r.route(&file, full, res)

	r.folder.Push(dest, file)

	r.opts.Metrics.RecordFile(r.ctx, r.opts.Mode.String(), outcome, safeconv.Delta(before, file.PhysicalSize), res.Elapsed)

	entry.span.SetAttributes(
		attribute.String("file.outcome", outcome),
		attribute.String("bucket", dest.String()),
	)

	if res.Err != nil {
		entry.span.RecordError(res.Err)
		entry.span.SetStatus(codes.Error, res.Err.Error())
	}

	entry.span.End()

	r.opts.Logger.DebugContext(r.ctx, "compaction routed",
		"path", file.Path, "bucket", dest.String(), "outcome", outcome, "elapsed", res.Elapsed)
}

func (r *run) route(file *inventory.File, full string, res compact.Result) (inventory.Bucket, string) {
	if res.Err != nil {
		r.failed++
		r.reportError(file.Path, res.Err)

		return inventory.Skipped, observability.OutcomeFailed
	}

	if r.opts.Mode == compact.ModeDecompress {
		file.PhysicalSize = file.LogicalSize

		return inventory.Compressible, observability.OutcomeDecompressed
	}

	if res.Compressed {
		physical, err := r.opts.Physical(full)
		if err != nil {
			r.failed++
			r.reportError(file.Path, fmt.Errorf("read size after compression: %w", err))

			return inventory.Skipped, observability.OutcomeFailed
		}

		file.PhysicalSize = physical

		if file.PhysicalSize < file.LogicalSize {
			return inventory.AlreadyCompressed, observability.OutcomeCompressed
		}
	}

	if r.known != nil {
		r.known.Insert(full)
	}

	return inventory.Skipped, observability.OutcomeIncompressible
}

func (r *run) reportError(path string, err error) {
	r.opts.Logger.WarnContext(r.ctx, "compaction failed", "path", path, "error", err)

	if r.errLimit.Allow() {
		r.opts.Reporter.Status(fmt.Sprintf("Error: %s: %v", path, err), progress.NoFraction)
	}
}

func (r *run) status() {
	stats := r.meter.Snapshot()

	var msg string

	switch {
	case r.stopping:
		msg = "Stopping"
	case r.paused:
		msg = "Paused"
	case r.current == "":
		msg = "Starting"
	default:
		msg = fmt.Sprintf("%s %s", verb(r.opts.Mode), r.current)
	}

	fraction := progress.NoFraction
	if stats.Total > 0 {
		fraction = stats.Percent / 100
	}

	r.opts.Reporter.Status(msg, fraction)
	r.opts.Reporter.Summary(r.folder.Summary())
}

func verb(m compact.Mode) string {
	if m == compact.ModeDecompress {
		return "Decompressing"
	}

	return "Compressing"
}

// requeue returns every file that was taken from the source bucket but
// never answered.
func (r *run) requeue() {
	for _, entry := range r.pending {
		entry.span.SetAttributes(attribute.String("file.outcome", "requeued"))
		entry.span.End()
		r.source.Push(entry.file)
	}

	r.pending = nil

	if r.hasNext {
		r.source.Push(r.next)
		r.hasNext = false
	}
}

func (r *run) save() {
	if r.known == nil {
		return
	}

	err := r.known.Save()
	if err != nil {
		r.opts.Logger.WarnContext(r.ctx, "compaction: cannot save known-incompressible set", "error", err)
	}
}
