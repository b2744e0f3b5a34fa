package compact

import (
	"log/slog"
	"os"
	"time"

	"github.com/Sumatoshi-tech/compactor/pkg/background"
)

// DefaultThreshold is the probe ratio at or above which a file is left alone.
const DefaultThreshold = 0.95

// Mode selects what a pipeline does to each file.
type Mode int

// Modes.
const (
	ModeCompress Mode = iota
	ModeDecompress
)

func (m Mode) String() string {
	if m == ModeDecompress {
		return "decompress"
	}

	return "compress"
}

// Request asks the worker to process one file.
type Request struct {
	Path        string
	LogicalSize uint64
}

// Result reports the outcome for one file. For compression, Compressed false
// with a nil Err means the file was judged not worth compressing.
type Result struct {
	Path       string
	Compressed bool
	Err        error
	Elapsed    time.Duration
}

// Worker is a background job that handles requests one at a time until its
// input is closed or it is cancelled. It closes its output when it returns.
type Worker struct {
	compactor Compactor
	mode      Mode
	threshold float64
	in        <-chan Request
	out       chan<- Result
	logger    *slog.Logger
}

// NewWorker wires a worker between in and out. A zero threshold uses DefaultThreshold.
func NewWorker(c Compactor, mode Mode, threshold float64, in <-chan Request, out chan<- Result, logger *slog.Logger) *Worker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{compactor: c, mode: mode, threshold: threshold, in: in, out: out, logger: logger}
}

// Run implements background.Job. The outcome value is the number of files handled.
func (w *Worker) Run(ctl *background.ControlToken[struct{}]) (background.Outcome[int], error) {
	defer close(w.out)

	handled := 0

	for req := range w.in {
		if ctl.IsCancelledWithPause() {
			return background.Stopped(handled), nil
		}

		w.out <- w.handle(req)
		handled++
	}

	return background.Completed(handled), nil
}

func (w *Worker) handle(req Request) Result {
	start := time.Now()
	res := Result{Path: req.Path}

	info, err := os.Stat(req.Path)
	if err != nil {
		res.Err = err

		return res
	}

	switch w.mode {
	case ModeDecompress:
		res.Err = w.compactor.Decompress(req.Path)
		res.Compressed = false
	default:
		ratio, probeErr := w.compactor.ProbeRatio(req.Path)
		if probeErr != nil {
			res.Err = probeErr

			break
		}

		if ratio >= w.threshold {
			w.logger.Debug("compact: not worth compressing", "path", req.Path, "ratio", ratio)

			break
		}

		res.Compressed, res.Err = w.compactor.Compress(req.Path)
	}

	// Compression touches the file; keep its modification time as it was.
	chErr := os.Chtimes(req.Path, time.Time{}, info.ModTime())
	if chErr != nil {
		w.logger.Debug("compact: cannot restore mtime", "path", req.Path, "error", chErr)
	}

	res.Elapsed = time.Since(start)

	return res
}
