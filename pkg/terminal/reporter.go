package terminal

import (
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/progress"
	"github.com/Sumatoshi-tech/compactor/pkg/units"
)

const (
	clearLine = "\r\033[K"

	// TransientInterval spaces transient lines when the status cannot be
	// redrawn in place.
	TransientInterval = time.Second

	modeDecompress = "decompress"
)

// Reporter prints run notifications. In live mode the status line is redrawn
// in place; otherwise only transient messages without a fraction are
// printed, one per line, at most one per TransientInterval.
type Reporter struct {
	mu        sync.Mutex
	w         io.Writer
	cfg       Config
	live      bool
	decimal   bool
	drawn     bool
	mode      string
	transient *rate.Limiter
}

var _ progress.Reporter = (*Reporter)(nil)

// NewReporter writes to w. live enables in-place redraws.
func NewReporter(w io.Writer, cfg Config, live, decimal bool) *Reporter {
	return &Reporter{
		w:         w,
		cfg:       cfg,
		live:      live,
		decimal:   decimal,
		transient: rate.NewLimiter(rate.Every(TransientInterval), 1),
	}
}

func (r *Reporter) size(n uint64) string { return units.Format(n, r.decimal) }

// line prints a permanent line, clearing any live status first.
func (r *Reporter) line(text string, c Color) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.drawn {
		fmt.Fprint(r.w, clearLine)

		r.drawn = false
	}

	fmt.Fprintln(r.w, r.cfg.Colorize(text, c))
}

// Status implements progress.Reporter.
func (r *Reporter) Status(message string, fraction float64) {
	if !r.live {
		if fraction < 0 && r.transient.Allow() {
			r.line(message, ColorGray)
		}

		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprint(r.w, clearLine+r.cfg.StatusLine(message, fraction))

	r.drawn = true
}

// Summary implements progress.Reporter. Summaries are shown by the final report.
func (r *Reporter) Summary(inventory.Summary) {}

// Paused implements progress.Reporter.
func (r *Reporter) Paused() { r.line("Paused. Enter r to resume, s to stop.", ColorYellow) }

// Resumed implements progress.Reporter.
func (r *Reporter) Resumed() { r.line("Resumed.", ColorNone) }

// Compacting implements progress.Reporter.
func (r *Reporter) Compacting(mode string) {
	r.mu.Lock()
	r.mode = mode
	r.mu.Unlock()

	verb := "Compacting"
	if mode == modeDecompress {
		verb = "Decompressing"
	}

	r.line(verb+". Enter p to pause, s to stop.", ColorNone)
}

// Scanned implements progress.Reporter.
func (r *Reporter) Scanned(s inventory.Summary, elapsed time.Duration) {
	r.line(fmt.Sprintf("Scanned %d files: %s logical, %s on disk in %s",
		s.Files(), r.size(s.LogicalSize), r.size(s.PhysicalSize), elapsed.Round(time.Millisecond)), ColorNone)
}

// Compacted implements progress.Reporter.
func (r *Reporter) Compacted(before, after inventory.Summary, elapsed time.Duration) {
	gained := after.Saved() - min(after.Saved(), before.Saved())
	r.line(fmt.Sprintf("Done in %s: on disk %s -> %s, reclaimed %s",
		elapsed.Round(time.Millisecond), r.size(before.PhysicalSize), r.size(after.PhysicalSize), r.size(gained)),
		ColorGreen)
}

// Stopped implements progress.Reporter.
func (r *Reporter) Stopped(s inventory.Summary, elapsed time.Duration) {
	r.mu.Lock()
	mode := r.mode
	r.mu.Unlock()

	remaining, state := s.Compressible.Count, "compressible"
	if mode == modeDecompress {
		remaining, state = s.AlreadyCompressed.Count, "compressed"
	}

	r.line(fmt.Sprintf("Stopped after %s: %s on disk, %d files still %s",
		elapsed.Round(time.Millisecond), r.size(s.PhysicalSize), remaining, state), ColorYellow)
}
