// Package scan classifies every regular file under a root directory.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Sumatoshi-tech/compactor/pkg/background"
	"github.com/Sumatoshi-tech/compactor/pkg/fsinfo"
	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/units"
)

// Defaults.
const (
	DefaultSmallFileThreshold = 4 * units.KiB
	DefaultCheckInterval      = 128
	DefaultStatusInterval     = 100 * time.Millisecond
)

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("scan root is not a directory")

// Matcher reports whether a path is excluded.
type Matcher interface {
	Matches(path string) bool
}

// KnownSet reports whether a path was previously found not worth compressing.
type KnownSet interface {
	Contains(item string) bool
}

// Status is the progress snapshot published while scanning.
type Status struct {
	Path    string
	Summary inventory.Summary
}

// Options tune a Classifier. Zero fields take the package defaults.
type Options struct {
	// SmallFileThreshold is the size at or below which files are skipped.
	SmallFileThreshold uint64
	// CheckInterval is the number of files between cancellation checks.
	CheckInterval int
	// StatusInterval is the minimum time between status snapshots.
	StatusInterval time.Duration
	// Stat overrides fsinfo.Stat.
	Stat fsinfo.StatFunc
	// Logger receives per-file warnings.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.SmallFileThreshold == 0 {
		o.SmallFileThreshold = DefaultSmallFileThreshold
	}

	if o.CheckInterval <= 0 {
		o.CheckInterval = DefaultCheckInterval
	}

	if o.StatusInterval <= 0 {
		o.StatusInterval = DefaultStatusInterval
	}

	if o.Stat == nil {
		o.Stat = fsinfo.Stat
	}

	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return o
}

// Classifier is a background job that walks Root and buckets each file.
type Classifier struct {
	root    string
	exclude Matcher
	known   KnownSet
	opts    Options
}

// New returns a classifier for root. exclude and known may be nil.
func New(root string, exclude Matcher, known KnownSet, opts Options) *Classifier {
	return &Classifier{
		root:    root,
		exclude: exclude,
		known:   known,
		opts:    opts.withDefaults(),
	}
}

// Root returns the directory being scanned.
func (c *Classifier) Root() string { return c.root }

// Run walks the tree. On cancellation it returns the partial folder as a stopped outcome.
func (c *Classifier) Run(ctl *background.ControlToken[Status]) (background.Outcome[*inventory.Folder], error) {
	rootInfo, err := os.Stat(c.root)
	if err != nil {
		return background.Outcome[*inventory.Folder]{}, fmt.Errorf("open scan root: %w", err)
	}

	if !rootInfo.IsDir() {
		return background.Outcome[*inventory.Folder]{}, fmt.Errorf("%w: %s", ErrNotDirectory, c.root)
	}

	w := walker{c: c, ctl: ctl, folder: inventory.NewFolder(c.root), lastStatus: time.Now()}

	walkErr := filepath.WalkDir(c.root, w.visit)
	if walkErr != nil {
		return background.Outcome[*inventory.Folder]{}, fmt.Errorf("walk %s: %w", c.root, walkErr)
	}

	if w.stopped {
		return background.Stopped(w.folder), nil
	}

	return background.Completed(w.folder), nil
}

type walker struct {
	c          *Classifier
	ctl        *background.ControlToken[Status]
	folder     *inventory.Folder
	count      int
	lastStatus time.Time
	stopped    bool
}

func (w *walker) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		if path == w.c.root {
			return err
		}

		w.c.opts.Logger.Warn("scan: skipping unreadable entry", "path", path, "error", err)

		return nil
	}

	if !d.Type().IsRegular() {
		return nil
	}

	if w.count%w.c.opts.CheckInterval == 0 {
		if w.ctl.IsCancelledWithPause() {
			w.stopped = true

			return filepath.SkipAll
		}

		if time.Since(w.lastStatus) >= w.c.opts.StatusInterval {
			w.lastStatus = time.Now()
			w.ctl.SetStatus(Status{Path: w.relative(path), Summary: w.folder.Summary()})
		}
	}

	w.count++

	fi, infoErr := d.Info()
	if infoErr != nil {
		w.c.opts.Logger.Warn("scan: cannot read file info", "path", path, "error", infoErr)

		return nil
	}

	info, statErr := w.c.opts.Stat(path, fi)
	if statErr != nil {
		w.c.opts.Logger.Warn("scan: cannot size file", "path", path, "error", statErr)

		return nil
	}

	file := inventory.File{
		Path:         w.relative(path),
		LogicalSize:  info.Logical,
		PhysicalSize: info.Physical,
	}

	w.folder.Push(w.c.classify(path, info), file)

	return nil
}

func (w *walker) relative(path string) string {
	rel, err := filepath.Rel(w.c.root, path)
	if err != nil {
		return path
	}

	return rel
}

// classify applies the bucket rules in precedence order.
func (c *Classifier) classify(path string, info fsinfo.Info) inventory.Bucket {
	switch {
	case info.Physical < info.Logical:
		return inventory.AlreadyCompressed
	case info.Logical <= c.opts.SmallFileThreshold:
		return inventory.Skipped
	case info.NoCompress:
		return inventory.Skipped
	case c.known != nil && c.known.Contains(path):
		return inventory.Skipped
	case c.exclude != nil && c.exclude.Matches(path):
		return inventory.Skipped
	default:
		return inventory.Compressible
	}
}
