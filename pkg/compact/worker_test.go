package compact_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/compactor/pkg/background"
	"github.com/Sumatoshi-tech/compactor/pkg/compact"
	"github.com/Sumatoshi-tech/compactor/pkg/estimate"
)

var errDenied = errors.New("access denied")

type fakeCompactor struct {
	mu         sync.Mutex
	ratio      float64
	compressed bool
	err        error
	calledWith []string
}

func (f *fakeCompactor) ProbeRatio(string) (float64, error) { return f.ratio, nil }

func (f *fakeCompactor) Compress(path string) (bool, error) {
	f.mu.Lock()
	f.calledWith = append(f.calledWith, path)
	f.mu.Unlock()

	return f.compressed, f.err
}

func (f *fakeCompactor) Decompress(string) error { return f.err }

func (f *fakeCompactor) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calledWith...)
}

func writeFile(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, 8192), 0o600))

	old := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, old, old))

	return path
}

func runWorker(t *testing.T, c compact.Compactor, mode compact.Mode, paths ...string) []compact.Result {
	t.Helper()

	in := make(chan compact.Request)
	out := make(chan compact.Result, 1)

	h := background.Spawn[int, struct{}](context.Background(), compact.NewWorker(c, mode, 0, in, out, nil))

	go func() {
		for _, p := range paths {
			in <- compact.Request{Path: p}
		}

		close(in)
	}()

	var results []compact.Result
	for res := range out {
		results = append(results, res)
	}

	outcome, err := h.Wait()
	require.NoError(t, err)
	assert.False(t, outcome.Stopped)
	assert.Equal(t, len(paths), outcome.Value)

	return results
}

func TestWorker_CompressesWhenRatioLow(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "a.dat")
	before, err := os.Stat(path)
	require.NoError(t, err)

	fake := &fakeCompactor{ratio: 0.5, compressed: true}
	results := runWorker(t, fake, compact.ModeCompress, path)

	require.Len(t, results, 1)
	assert.True(t, results[0].Compressed)
	require.NoError(t, results[0].Err)
	assert.Equal(t, []string{path}, fake.calls())

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestWorker_SkipsWhenRatioHigh(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "b.dat")
	fake := &fakeCompactor{ratio: compact.DefaultThreshold, compressed: true}

	results := runWorker(t, fake, compact.ModeCompress, path)

	require.Len(t, results, 1)
	assert.False(t, results[0].Compressed)
	require.NoError(t, results[0].Err)
	assert.Empty(t, fake.calls(), "compress is never attempted")
}

func TestWorker_ReportsErrors(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "c.dat")
	missing := filepath.Join(t.TempDir(), "gone.dat")

	results := runWorker(t, &fakeCompactor{ratio: 0.1, err: errDenied}, compact.ModeCompress, path, missing)

	require.Len(t, results, 2)
	require.ErrorIs(t, results[0].Err, errDenied)
	require.Error(t, results[1].Err)
}

func TestWorker_Decompress(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "d.dat")

	results := runWorker(t, &fakeCompactor{}, compact.ModeDecompress, path)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
}

func TestWorker_CancelClosesOutput(t *testing.T) {
	t.Parallel()

	in := make(chan compact.Request, 1)
	out := make(chan compact.Result, 1)

	h := background.Spawn[int, struct{}](context.Background(), compact.NewWorker(&fakeCompactor{}, compact.ModeCompress, 0, in, out, nil))
	h.Cancel()

	in <- compact.Request{Path: "ignored"}

	_, open := <-out
	assert.False(t, open, "cancelled worker drops the request and closes its output")

	outcome, err := h.Wait()
	require.NoError(t, err)
	assert.True(t, outcome.Stopped)
	assert.Zero(t, outcome.Value)
}

func TestParseAlgorithm(t *testing.T) {
	t.Parallel()

	algo, err := compact.ParseAlgorithm("LZX")
	require.NoError(t, err)
	assert.Equal(t, compact.LZX, algo)

	_, err = compact.ParseAlgorithm("deflate")
	require.ErrorIs(t, err, compact.ErrUnknownAlgorithm)
}

func TestNative_ProbeRatioUsesEstimator(t *testing.T) {
	t.Parallel()

	est, err := estimate.New(estimate.LZ4)
	require.NoError(t, err)

	n := compact.NewNative(compact.DefaultAlgorithm, est)
	assert.Equal(t, compact.Xpress8K, n.Algorithm())

	ratio, err := n.ProbeRatio(writeFile(t, "zeros.dat"))
	require.NoError(t, err)
	assert.Less(t, ratio, compact.DefaultThreshold)
}

func TestModeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "compress", compact.ModeCompress.String())
	assert.Equal(t, "decompress", compact.ModeDecompress.String())
}
