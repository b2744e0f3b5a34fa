package commands

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/progress"
	"github.com/Sumatoshi-tech/compactor/pkg/report"
)

const (
	tinyFile  = 100
	largeFile = 50000
)

// isolatedConfig writes a config file that keeps all state under t.TempDir.
func isolatedConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "compactor.yaml")
	body := "state:\n  dir: " + filepath.Join(dir, "state") +
		"\ncheckpoint:\n  dir: " + filepath.Join(dir, "checkpoints") +
		"\nlogging:\n  level: warn\n"

	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(""))

	err := root.Execute()

	return stdout.String(), stderr.String(), err
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	for line, want := range map[string]progress.Command{
		"p":      progress.Pause,
		" R \n":  progress.Resume,
		"s":      progress.Stop,
		"q":      progress.Stop,
		"resume": progress.Resume,
	} {
		got, ok := parseCommand(line)
		require.True(t, ok, line)
		assert.Equal(t, want, got, line)
	}

	_, ok := parseCommand("x")
	assert.False(t, ok)
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "compactor "), out)
}

func TestConfigCommand_PrintsEffectiveYAML(t *testing.T) {
	t.Parallel()

	cfgPath := isolatedConfig(t)

	out, _, err := execute(t, "config", "--config", cfgPath, "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "algorithm: xpress8k")
	assert.Contains(t, out, "level: debug")
	assert.Contains(t, out, filepath.Join(filepath.Dir(cfgPath), "state"))
}

func TestConfigCommand_RejectsBadLogLevel(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "config", "--config", isolatedConfig(t), "--log-level", "loud")
	require.Error(t, err)
}

func TestScanCommand_JSONAndSave(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "tiny.txt"), make([]byte, tinyFile), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "large.txt"), make([]byte, largeFile), 0o644))

	saved := filepath.Join(t.TempDir(), "scan.json")

	out, _, err := execute(t, "scan", root, "--config", isolatedConfig(t),
		"--format", "json", "--save", saved, "--silent", "--no-input")
	require.NoError(t, err)

	r, err := report.Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, root, r.Root)
	assert.Equal(t, 2, r.Totals.Files())
	assert.Contains(t, paths(r.Buckets.Skipped), "tiny.txt")

	loaded, err := report.Load(saved)
	require.NoError(t, err)
	assert.Equal(t, r.Totals, loaded.Totals)
}

func TestScanCommand_UnknownFormat(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "scan", t.TempDir(), "--config", isolatedConfig(t),
		"--format", "xml", "--silent", "--no-input")
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestRenderCommand(t *testing.T) {
	t.Parallel()

	folder := inventory.NewFolder("/data")
	folder.Push(inventory.Compressible, inventory.File{Path: "big.bin", LogicalSize: largeFile, PhysicalSize: largeFile})

	input := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.New(folder, "").Save(input))

	out, _, err := execute(t, "render", "--config", isolatedConfig(t), "--input", input, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "/data")
	assert.Contains(t, out, "big.bin")

	htmlPath := filepath.Join(t.TempDir(), "out", "report.html")
	_, _, err = execute(t, "render", "--config", isolatedConfig(t), "--input", input,
		"--format", "plot", "--output", htmlPath)
	require.NoError(t, err)

	html, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "echarts")
}

func TestRenderCommand_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "render", "--config", isolatedConfig(t))
	require.ErrorIs(t, err, ErrNoInput)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"root":""}`), 0o600))

	_, _, err = execute(t, "render", "--config", isolatedConfig(t), "--input", bad)
	require.ErrorIs(t, err, report.ErrInvalidReport)
}

func TestCompactCommand_FlagConflicts(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "compress", t.TempDir(), "--config", isolatedConfig(t),
		"--input", "x.json", "--resume")
	require.ErrorIs(t, err, ErrInputAndResume)
}

func TestCompactCommand_ResumeWithoutCheckpoint(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "decompress", t.TempDir(), "--config", isolatedConfig(t),
		"--resume", "--silent", "--no-input")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func paths(files []inventory.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}

	return out
}
