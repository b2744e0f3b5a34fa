// Package compact applies and removes transparent filesystem compression on
// single files and runs the worker that feeds a compaction pipeline.
package compact

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/compactor/pkg/estimate"
)

// Algorithm selects the filesystem compression format.
type Algorithm string

// Supported algorithms. Names follow the Windows overlay formats; other
// platforms map them onto the closest format they support.
const (
	Xpress4K  Algorithm = "xpress4k"
	Xpress8K  Algorithm = "xpress8k"
	Xpress16K Algorithm = "xpress16k"
	LZX       Algorithm = "lzx"
)

// DefaultAlgorithm is used when none is configured.
const DefaultAlgorithm = Xpress8K

// Sentinel errors.
var (
	ErrUnsupported      = errors.New("transparent compression is not supported on this platform")
	ErrUnknownAlgorithm = errors.New("unknown compression algorithm")
)

// ParseAlgorithm resolves a case-insensitive algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(name)); a {
	case Xpress4K, Xpress8K, Xpress16K, LZX:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// Compactor is the per-file compression backend used by the pipeline.
type Compactor interface {
	// ProbeRatio estimates compressed/original size without modifying the file.
	ProbeRatio(path string) (float64, error)
	// Compress compresses path. False means the filesystem judged it not worth it.
	Compress(path string) (bool, error)
	// Decompress removes compression from path.
	Decompress(path string) error
}

// Native compresses files with the host filesystem.
type Native struct {
	algorithm Algorithm
	estimator *estimate.Estimator
}

// NewNative returns a Native backend using algorithm and est for probing.
func NewNative(algorithm Algorithm, est *estimate.Estimator) *Native {
	return &Native{algorithm: algorithm, estimator: est}
}

// Algorithm returns the configured format.
func (n *Native) Algorithm() Algorithm { return n.algorithm }

// ProbeRatio implements Compactor.
func (n *Native) ProbeRatio(path string) (float64, error) {
	return n.estimator.RatioFile(path)
}

// Compress implements Compactor.
func (n *Native) Compress(path string) (bool, error) {
	ok, err := compressFile(path, n.algorithm)
	if err != nil {
		return false, fmt.Errorf("compress %s: %w", path, err)
	}

	return ok, nil
}

// Decompress implements Compactor.
func (n *Native) Decompress(path string) error {
	err := decompressFile(path)
	if err != nil {
		return fmt.Errorf("decompress %s: %w", path, err)
	}

	return nil
}
