// Package estimate predicts how well a file compresses by compressing an
// evenly spaced, statistically sized sample of its blocks with a fast codec.
package estimate

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/compactor/pkg/units"
)

// Algorithm names a probe codec.
type Algorithm string

// Supported probe codecs.
const (
	LZ4    Algorithm = "lz4"
	Zstd   Algorithm = "zstd"
	Snappy Algorithm = "snappy"
	Brotli Algorithm = "brotli"
)

// Algorithms lists the supported codecs.
var Algorithms = []Algorithm{LZ4, Zstd, Snappy, Brotli}

// Sentinel errors.
var (
	ErrUnknownAlgorithm  = errors.New("unknown estimator algorithm")
	ErrUnknownConfidence = errors.New("unsupported confidence level")
)

// Confidence is a z-score for a two-sided confidence level.
type Confidence float64

// Common confidence levels.
const (
	Confidence80 Confidence = 1.28
	Confidence85 Confidence = 1.44
	Confidence90 Confidence = 1.65
	Confidence95 Confidence = 1.96
	Confidence99 Confidence = 2.58
)

var confidenceLevels = map[int]Confidence{
	80: Confidence80,
	85: Confidence85,
	90: Confidence90,
	95: Confidence95,
	99: Confidence99,
}

// ConfidenceLevel returns the z-score for a confidence level in percent.
func ConfidenceLevel(percent int) (Confidence, error) {
	z, ok := confidenceLevels[percent]
	if !ok {
		return 0, fmt.Errorf("%w: %d%%", ErrUnknownConfidence, percent)
	}

	return z, nil
}

// Defaults.
const (
	DefaultBlockSize       = 4 * units.KiB
	DefaultWholeFileLimit  = 64 * units.KiB
	DefaultMarginOfError   = 0.15
	DefaultConfidence      = Confidence90
	DefaultConfidenceLevel = 90

	// worstCaseProportion is p(1-p) at p = 0.5.
	worstCaseProportion = 0.25
)

// SampleSize returns how many of population blocks to sample, using
// Cochran's formula with the finite population correction.
func SampleSize(population uint64, marginOfError float64, z Confidence) uint64 {
	if population == 0 {
		return 0
	}

	pop := float64(population)
	n0 := worstCaseProportion * math.Pow(float64(z)/marginOfError, 2)

	return uint64(math.Ceil(pop * n0 / (n0 + pop - 1)))
}

// Estimator computes compressed/original ratios.
type Estimator struct {
	algorithm      Algorithm
	blockSize      int64
	wholeFileLimit int64
	marginOfError  float64
	confidence     Confidence
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithBlockSize sets the sample block size.
func WithBlockSize(n int64) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.blockSize = n
		}
	}
}

// WithWholeFileLimit sets the size below which files are compressed whole.
// Zero samples every file larger than one block.
func WithWholeFileLimit(n int64) Option {
	return func(e *Estimator) {
		if n >= 0 {
			e.wholeFileLimit = n
		}
	}
}

// WithPrecision sets the sampling margin of error and confidence.
// Non-positive values keep the defaults.
func WithPrecision(marginOfError float64, z Confidence) Option {
	return func(e *Estimator) {
		if marginOfError > 0 {
			e.marginOfError = marginOfError
		}

		if z > 0 {
			e.confidence = z
		}
	}
}

// New returns an estimator using algorithm.
func New(algorithm Algorithm, opts ...Option) (*Estimator, error) {
	if !Known(algorithm) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}

	e := &Estimator{
		algorithm:      algorithm,
		blockSize:      DefaultBlockSize,
		wholeFileLimit: DefaultWholeFileLimit,
		marginOfError:  DefaultMarginOfError,
		confidence:     DefaultConfidence,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Known reports whether algorithm is supported.
func Known(algorithm Algorithm) bool {
	for _, a := range Algorithms {
		if a == algorithm {
			return true
		}
	}

	return false
}

// Algorithm returns the configured codec.
func (e *Estimator) Algorithm() Algorithm { return e.algorithm }

// RatioFile estimates the ratio for the file at path.
func (e *Estimator) RatioFile(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}

	return e.Ratio(f, info.Size())
}

// Ratio estimates compressed/original for size bytes of r. Empty input reports 1.
func (e *Estimator) Ratio(r io.ReaderAt, size int64) (float64, error) {
	if size <= 0 {
		return 1, nil
	}

	counter := &countingWriter{}

	zw, err := e.newWriter(counter)
	if err != nil {
		return 0, err
	}

	sampled, err := e.feed(zw, r, size)
	if err != nil {
		_ = zw.Close()

		return 0, err
	}

	closeErr := zw.Close()
	if closeErr != nil {
		return 0, fmt.Errorf("finish %s probe: %w", e.algorithm, closeErr)
	}

	return float64(counter.n) / float64(sampled), nil
}

func (e *Estimator) feed(w io.Writer, r io.ReaderAt, size int64) (int64, error) {
	if size < e.wholeFileLimit || size < e.blockSize {
		n, err := io.Copy(w, io.NewSectionReader(r, 0, size))
		if err != nil {
			return 0, fmt.Errorf("probe read: %w", err)
		}

		return n, nil
	}

	blocks := uint64(size / e.blockSize)
	samples := SampleSize(blocks, e.marginOfError, e.confidence)
	step := e.blockSize * int64(blocks/samples)

	buf := make([]byte, e.blockSize)

	for i := range int64(samples) {
		_, err := r.ReadAt(buf, step*i)
		if err != nil {
			return 0, fmt.Errorf("probe read at %d: %w", step*i, err)
		}

		_, err = w.Write(buf)
		if err != nil {
			return 0, fmt.Errorf("probe compress: %w", err)
		}
	}

	return e.blockSize * int64(samples), nil
}

func (e *Estimator) newWriter(w io.Writer) (io.WriteCloser, error) {
	switch e.algorithm {
	case LZ4:
		zw := lz4.NewWriter(w)

		err := zw.Apply(lz4.CompressionLevelOption(lz4.Fast))
		if err != nil {
			return nil, fmt.Errorf("configure lz4: %w", err)
		}

		return zw, nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}

		return zw, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case Brotli:
		return brotli.NewWriterLevel(w, brotli.BestSpeed), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, e.algorithm)
	}
}

// countingWriter discards everything and counts bytes.
type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))

	return len(p), nil
}
