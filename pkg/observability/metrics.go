package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesTotal     = "compactor.files.total"
	metricBytesSaved     = "compactor.bytes.saved.total"
	metricFileDuration   = "compactor.file.duration.seconds"
	metricRunsTotal      = "compactor.runs.total"
	metricRunDuration    = "compactor.run.duration.seconds"
	metricRunsActive     = "compactor.runs.active"
	metricScanFilesTotal = "compactor.scan.files.total"

	attrOutcome = "outcome"
	attrStatus  = "status"
	attrBucket  = "bucket"
)

// File outcomes.
const (
	OutcomeCompressed     = "compressed"
	OutcomeDecompressed   = "decompressed"
	OutcomeIncompressible = "incompressible"
	OutcomeFailed         = "failed"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
	StatusFailed    = "failed"
)

var (
	// fileDurationBuckets covers sub-millisecond probes to multi-minute files.
	fileDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120}
	// runDurationBuckets covers 10ms to 2h.
	runDurationBuckets = []float64{0.01, 0.1, 1, 10, 60, 300, 900, 1800, 3600, 7200}
)

// CompactionMetrics holds instruments for scan and compaction runs.
// All Record methods are safe to call on a nil receiver.
type CompactionMetrics struct {
	filesTotal     metric.Int64Counter
	bytesSaved     metric.Int64Counter
	fileDuration   metric.Float64Histogram
	runsTotal      metric.Int64Counter
	runDuration    metric.Float64Histogram
	runsActive     metric.Int64UpDownCounter
	scanFilesTotal metric.Int64Counter
}

// NewCompactionMetrics creates the instruments from mt.
func NewCompactionMetrics(mt metric.Meter) (*CompactionMetrics, error) {
	b := newMetricBuilder(mt)

	cm := &CompactionMetrics{
		filesTotal:     b.counter(metricFilesTotal, "Files processed by compaction runs", "{file}"),
		bytesSaved:     b.counter(metricBytesSaved, "Bytes of disk space reclaimed", "By"),
		fileDuration:   b.histogram(metricFileDuration, "Per-file processing duration in seconds", "s", fileDurationBuckets...),
		runsTotal:      b.counter(metricRunsTotal, "Scan and compaction runs", "{run}"),
		runDuration:    b.histogram(metricRunDuration, "Run duration in seconds", "s", runDurationBuckets...),
		runsActive:     b.upDownCounter(metricRunsActive, "Runs currently in progress", "{run}"),
		scanFilesTotal: b.counter(metricScanFilesTotal, "Files classified by scans", "{file}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return cm, nil
}

// RecordFile records one processed file. saved may be negative when a file grew.
func (cm *CompactionMetrics) RecordFile(ctx context.Context, mode, outcome string, saved int64, elapsed time.Duration) {
	if cm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrMode, mode), attribute.String(attrOutcome, outcome))
	cm.filesTotal.Add(ctx, 1, attrs)
	cm.fileDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String(attrMode, mode)))

	if saved > 0 {
		cm.bytesSaved.Add(ctx, saved)
	}
}

// RunStarted marks a run of kind mode as active.
func (cm *CompactionMetrics) RunStarted(ctx context.Context, mode string) {
	if cm == nil {
		return
	}

	cm.runsActive.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMode, mode)))
}

// RunFinished records the end of a run started with RunStarted.
func (cm *CompactionMetrics) RunFinished(ctx context.Context, mode, status string, elapsed time.Duration) {
	if cm == nil {
		return
	}

	modeAttr := attribute.String(attrMode, mode)
	cm.runsActive.Add(ctx, -1, metric.WithAttributes(modeAttr))
	cm.runsTotal.Add(ctx, 1, metric.WithAttributes(modeAttr, attribute.String(attrStatus, status)))
	cm.runDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(modeAttr))
}

// RecordScan records how many files landed in each bucket.
func (cm *CompactionMetrics) RecordScan(ctx context.Context, counts map[string]int) {
	if cm == nil {
		return
	}

	for bucket, n := range counts {
		cm.scanFilesTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrBucket, bucket)))
	}
}
