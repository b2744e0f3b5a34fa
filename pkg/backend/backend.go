// Package backend is the explicit context a front end drives: it owns the
// configuration, the known-incompressible set, the exclude matcher and the
// compactor, and runs one scan or compaction at a time.
package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/compactor/pkg/compact"
	"github.com/Sumatoshi-tech/compactor/pkg/compaction"
	"github.com/Sumatoshi-tech/compactor/pkg/config"
	"github.com/Sumatoshi-tech/compactor/pkg/estimate"
	"github.com/Sumatoshi-tech/compactor/pkg/exclude"
	"github.com/Sumatoshi-tech/compactor/pkg/fsinfo"
	"github.com/Sumatoshi-tech/compactor/pkg/hashfilter"
	"github.com/Sumatoshi-tech/compactor/pkg/observability"
	"github.com/Sumatoshi-tech/compactor/pkg/scan"
)

// ErrBusy is returned when a job is started while another one is running.
var ErrBusy = errors.New("backend is already running a job")

// KnownSet is the known-incompressible set shared by scans and compactions.
type KnownSet interface {
	scan.KnownSet
	compaction.KnownSet
}

// Backend runs scans and compactions against one configuration.
type Backend struct {
	cfg       *config.Config
	known     KnownSet
	exclude   scan.Matcher
	compactor compact.Compactor
	stat      fsinfo.StatFunc
	physical  compaction.PhysicalFunc
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *observability.CompactionMetrics

	busy sync.Mutex
}

// Option customises a Backend.
type Option func(*Backend)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(b *Backend) { b.logger = l } }

// WithTracer sets the tracer for run spans.
func WithTracer(t trace.Tracer) Option { return func(b *Backend) { b.tracer = t } }

// WithMetrics sets the run and file instruments.
func WithMetrics(m *observability.CompactionMetrics) Option {
	return func(b *Backend) { b.metrics = m }
}

// WithKnownSet replaces the file-backed known-incompressible set.
func WithKnownSet(k KnownSet) Option { return func(b *Backend) { b.known = k } }

// WithCompactor replaces the native filesystem compactor.
func WithCompactor(c compact.Compactor) Option { return func(b *Backend) { b.compactor = c } }

// WithStat overrides how the scanner sizes files.
func WithStat(s fsinfo.StatFunc) Option { return func(b *Backend) { b.stat = s } }

// WithPhysical overrides how the coordinator re-reads sizes after compression.
func WithPhysical(p compaction.PhysicalFunc) Option {
	return func(b *Backend) { b.physical = p }
}

// New builds a backend from cfg. Collaborators not supplied through opts are
// created from the configuration.
func New(cfg *config.Config, opts ...Option) (*Backend, error) {
	b := &Backend{cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	if b.tracer == nil {
		b.tracer = nooptrace.NewTracerProvider().Tracer(observability.TracerName)
	}

	matcher, err := exclude.New(cfg.Excludes)
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}

	b.exclude = matcher

	if b.known == nil {
		known, openErr := hashfilter.Open(cfg.KnownSetFile())
		if openErr != nil {
			// Keep whatever loaded before the error.
			b.logger.Warn("known-incompressible set not fully loaded",
				"path", cfg.KnownSetFile(), "error", openErr)
		}

		b.known = known
	}

	if b.compactor == nil {
		c, compErr := nativeCompactor(cfg)
		if compErr != nil {
			return nil, compErr
		}

		b.compactor = c
	}

	return b, nil
}

func nativeCompactor(cfg *config.Config) (*compact.Native, error) {
	algorithm, err := compact.ParseAlgorithm(cfg.Compression.Algorithm)
	if err != nil {
		return nil, err
	}

	z, err := estimate.ConfidenceLevel(cfg.Estimator.Confidence)
	if err != nil {
		return nil, fmt.Errorf("estimator: %w", err)
	}

	est, err := estimate.New(estimate.Algorithm(cfg.Estimator.Algorithm),
		estimate.WithBlockSize(cfg.Estimator.BlockSize),
		estimate.WithWholeFileLimit(cfg.Estimator.WholeFileLimit),
		estimate.WithPrecision(cfg.Estimator.MarginOfError, z),
	)
	if err != nil {
		return nil, fmt.Errorf("estimator: %w", err)
	}

	return compact.NewNative(algorithm, est), nil
}

// Config returns the configuration the backend was built with.
func (b *Backend) Config() *config.Config { return b.cfg }

// Known returns the known-incompressible set.
func (b *Backend) Known() KnownSet { return b.known }

// Close flushes the known-incompressible set.
func (b *Backend) Close() error {
	err := b.known.Save()
	if err != nil {
		return fmt.Errorf("save known-incompressible set: %w", err)
	}

	return nil
}

func (b *Backend) acquire() error {
	if !b.busy.TryLock() {
		return ErrBusy
	}

	return nil
}

func (b *Backend) release() { b.busy.Unlock() }

func (b *Backend) runLogger(runID string) *slog.Logger {
	return b.logger.With("run_id", runID)
}
