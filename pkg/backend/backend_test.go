package backend_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/compactor/pkg/backend"
	"github.com/Sumatoshi-tech/compactor/pkg/compact"
	"github.com/Sumatoshi-tech/compactor/pkg/config"
	"github.com/Sumatoshi-tech/compactor/pkg/estimate"
	"github.com/Sumatoshi-tech/compactor/pkg/fsinfo"
	"github.com/Sumatoshi-tech/compactor/pkg/hashfilter"
	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/progress"
)

const (
	waitFor    = 2 * time.Second
	bigFile    = 50000
	mediumFile = 10000
	smallFile  = 2000
	shrunk     = 4000
)

// fakeCompactor compresses everything and can hold each call until released.
type fakeCompactor struct {
	mu      sync.Mutex
	gate    chan struct{}
	started chan string
	calls   []string
}

func newFakeCompactor() *fakeCompactor {
	return &fakeCompactor{started: make(chan string, 16)}
}

func (f *fakeCompactor) enter(path string) {
	f.started <- filepath.Base(path)

	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(path))
	f.mu.Unlock()
}

func (f *fakeCompactor) ProbeRatio(string) (float64, error) { return 0.5, nil }

func (f *fakeCompactor) Compress(path string) (bool, error) {
	f.enter(path)

	return true, nil
}

func (f *fakeCompactor) Decompress(path string) error {
	f.enter(path)

	return nil
}

// sizes is a physical size oracle keyed by base name; unknown files report
// their logical size.
type sizes struct {
	mu   sync.Mutex
	phys map[string]uint64
}

func (s *sizes) set(name string, n uint64) {
	s.mu.Lock()
	s.phys[name] = n
	s.mu.Unlock()
}

func (s *sizes) stat(path string, fi fs.FileInfo) (fsinfo.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logical := uint64(fi.Size())

	phys, ok := s.phys[filepath.Base(path)]
	if !ok {
		phys = logical
	}

	return fsinfo.Info{Logical: logical, Physical: phys}, nil
}

func (s *sizes) physical(path string) (uint64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	info, err := s.stat(path, fi)

	return info.Physical, err
}

type fixture struct {
	root      string
	cfg       *config.Config
	sizes     *sizes
	compactor *fakeCompactor
	backend   *backend.Backend
}

func newFixture(t *testing.T, files map[string]int) *fixture {
	t.Helper()

	root := t.TempDir()
	for name, size := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), make([]byte, size), 0o644))
	}

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	cfg.State.Dir = t.TempDir()
	cfg.Checkpoint.Dir = t.TempDir()
	cfg.Checkpoint.Enabled = true
	cfg.Scan.StatusInterval = time.Millisecond
	cfg.Compaction.StatusInterval = 5 * time.Millisecond

	fx := &fixture{
		root:      root,
		cfg:       cfg,
		sizes:     &sizes{phys: map[string]uint64{}},
		compactor: newFakeCompactor(),
	}

	fx.backend, err = backend.New(cfg,
		backend.WithKnownSet(hashfilter.New()),
		backend.WithCompactor(fx.compactor),
		backend.WithStat(fx.sizes.stat),
		backend.WithPhysical(fx.sizes.physical),
	)
	require.NoError(t, err)

	return fx
}

func paths(files []inventory.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}

	return out
}

func TestScan_ClassifiesEndToEnd(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, map[string]int{"file1.txt": mediumFile, "file2.txt": smallFile, "file3.txt": bigFile})
	fx.sizes.set("file1.txt", shrunk)

	rec := &progress.Recorder{}

	res, err := fx.backend.Scan(context.Background(), fx.root, nil, rec)
	require.NoError(t, err)
	require.False(t, res.Stopped)
	assert.NotEmpty(t, res.RunID)

	folder := res.Folder
	assert.Equal(t, []string{"file1.txt"}, paths(folder.Group(inventory.AlreadyCompressed).Files()))
	assert.Equal(t, []string{"file2.txt"}, paths(folder.Group(inventory.Skipped).Files()))
	assert.Equal(t, []string{"file3.txt"}, paths(folder.Group(inventory.Compressible).Files()))
	assert.Equal(t, uint64(62000), folder.LogicalSize())
	assert.Equal(t, uint64(56000), folder.PhysicalSize())

	scanned, ok := rec.Last(progress.EventScanned)
	require.True(t, ok)
	assert.Equal(t, folder.Summary(), scanned.Summary)
}

func TestScan_MissingRoot(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)

	_, err := fx.backend.Scan(context.Background(), filepath.Join(fx.root, "absent"), nil, nil)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCompress_CompletesAndClearsCheckpoint(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, map[string]int{"a.txt": bigFile, "b.txt": bigFile})

	scanned, err := fx.backend.Scan(context.Background(), fx.root, nil, nil)
	require.NoError(t, err)

	fx.sizes.set("a.txt", shrunk)

	res, err := fx.backend.Compress(context.Background(), scanned.Folder, scanned.RunID, nil, nil)
	require.NoError(t, err)
	require.False(t, res.Stopped)

	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, []string{"a.txt"}, paths(res.Folder.Group(inventory.AlreadyCompressed).Files()))
	assert.Equal(t, []string{"b.txt"}, paths(res.Folder.Group(inventory.Skipped).Files()))
	assert.True(t, fx.backend.Known().Contains(filepath.Join(fx.root, "b.txt")))

	_, err = fx.backend.Resume(fx.root, compact.ModeCompress)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCompress_StopSavesResumableCheckpoint(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, map[string]int{"a.txt": bigFile, "b.txt": bigFile, "c.txt": bigFile})

	scanned, err := fx.backend.Scan(context.Background(), fx.root, nil, nil)
	require.NoError(t, err)

	fx.compactor.gate = make(chan struct{})
	commands := make(chan progress.Command, 1)
	done := make(chan struct{})

	var res *compactionResult

	go func() {
		defer close(done)

		r, runErr := fx.backend.Compress(context.Background(), scanned.Folder, scanned.RunID, commands, nil)
		res = &compactionResult{processed: r.Processed, stopped: r.Stopped, err: runErr}
	}()

	select {
	case <-fx.compactor.started:
	case <-time.After(waitFor):
		require.FailNow(t, "compaction never started")
	}

	commands <- progress.Stop
	time.Sleep(50 * time.Millisecond)
	close(fx.compactor.gate)

	select {
	case <-done:
	case <-time.After(waitFor):
		require.FailNow(t, "compaction did not stop")
	}

	require.NoError(t, res.err)
	assert.True(t, res.stopped)
	assert.Equal(t, 1, res.processed)

	run, err := fx.backend.Resume(fx.root, compact.ModeCompress)
	require.NoError(t, err)
	assert.Equal(t, scanned.RunID, run.Metadata.RunID)
	assert.Equal(t, 2, run.Folder.Group(inventory.Compressible).Len())

	_, err = fx.backend.Resume(fx.root, compact.ModeDecompress)
	require.Error(t, err)
}

type compactionResult struct {
	processed int
	stopped   bool
	err       error
}

func TestDecompress_ResetsCompressedFiles(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, map[string]int{"a.txt": bigFile})
	fx.sizes.set("a.txt", shrunk)

	scanned, err := fx.backend.Scan(context.Background(), fx.root, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, scanned.Folder.Group(inventory.AlreadyCompressed).Len())

	res, err := fx.backend.Decompress(context.Background(), scanned.Folder, "", nil, nil)
	require.NoError(t, err)

	files := res.Folder.Group(inventory.Compressible).Files()
	require.Len(t, files, 1)
	assert.Equal(t, files[0].LogicalSize, files[0].PhysicalSize)
}

func TestBackend_OneJobAtATime(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, map[string]int{"a.txt": bigFile})

	scanned, err := fx.backend.Scan(context.Background(), fx.root, nil, nil)
	require.NoError(t, err)

	fx.compactor.gate = make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, runErr := fx.backend.Compress(context.Background(), scanned.Folder, "", nil, nil)
		done <- runErr
	}()

	<-fx.compactor.started

	_, err = fx.backend.Scan(context.Background(), fx.root, nil, nil)
	require.ErrorIs(t, err, backend.ErrBusy)

	close(fx.compactor.gate)
	require.NoError(t, <-done)
}

func TestResume_DisabledCheckpoints(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.cfg.Checkpoint.Enabled = false

	_, err := fx.backend.Resume(fx.root, compact.ModeCompress)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	cfg.State.Dir = t.TempDir()
	cfg.Compression.Algorithm = "bogus"

	_, err = backend.New(cfg)
	require.ErrorIs(t, err, compact.ErrUnknownAlgorithm)
}

func TestNew_RejectsUnknownConfidence(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	cfg.State.Dir = t.TempDir()
	cfg.Estimator.Confidence = 70

	_, err = backend.New(cfg)
	require.ErrorIs(t, err, estimate.ErrUnknownConfidence)
}
