package terminal_test

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/progress"
	"github.com/Sumatoshi-tech/compactor/pkg/terminal"
)

const testWidth = 60

func TestDetectWidth(t *testing.T) {
	t.Setenv("COLUMNS", "")
	assert.Equal(t, terminal.DefaultWidth, terminal.DetectWidth())

	t.Setenv("COLUMNS", "120")
	assert.Equal(t, 120, terminal.DetectWidth())

	t.Setenv("COLUMNS", "10")
	assert.Equal(t, terminal.MinWidth, terminal.DetectWidth())

	t.Setenv("COLUMNS", "wide")
	assert.Equal(t, terminal.DefaultWidth, terminal.DetectWidth())
}

func TestNewConfig_NoColorFromEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, terminal.NewConfig().NoColor)
}

func TestDrawProgressBar(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "███████░░░", terminal.DrawProgressBar(0.7, 10))
	assert.Equal(t, "░░░░", terminal.DrawProgressBar(-1, 4))
	assert.Equal(t, "████", terminal.DrawProgressBar(3, 4))
}

func TestColorize(t *testing.T) {
	t.Parallel()

	plain := terminal.Config{NoColor: true}
	assert.Equal(t, "ok", plain.Colorize("ok", terminal.ColorGreen))

	colored := terminal.Config{}
	out := colored.Colorize("ok", terminal.ColorGreen)
	assert.Contains(t, out, "\x1b[32m")
	assert.Contains(t, out, "ok")
	assert.Equal(t, "ok", colored.Colorize("ok", terminal.ColorNone))
}

func TestColorForRatio(t *testing.T) {
	t.Parallel()

	assert.Equal(t, terminal.ColorGreen, terminal.ColorForRatio(0.4))
	assert.Equal(t, terminal.ColorYellow, terminal.ColorForRatio(0.8))
	assert.Equal(t, terminal.ColorRed, terminal.ColorForRatio(1))
}

func TestTruncateLeftAndPad(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", terminal.TruncateLeft("short", 10))
	assert.Equal(t, "...file.txt", terminal.TruncateLeft("/very/long/path/to/file.txt", 11))
	assert.Equal(t, "..", terminal.TruncateLeft("abcdef", 2))
	assert.Equal(t, "ab  ", terminal.PadRight("ab", 4))
	assert.Equal(t, "abcdef", terminal.PadRight("abcdef", 4))
}

func TestStatusLine_FitsWidth(t *testing.T) {
	t.Parallel()

	cfg := terminal.Config{Width: testWidth, NoColor: true}
	line := cfg.StatusLine("Compressing "+strings.Repeat("x", 200), 0.5)

	assert.True(t, strings.HasPrefix(line, "["))
	assert.Contains(t, line, " 50% ")
	assert.LessOrEqual(t, utf8.RuneCountInString(line), testWidth)

	assert.Equal(t, "Stopping", cfg.StatusLine("Stopping", progress.NoFraction))
}

func TestReporter_NonLivePrintsOnlyTransientStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	r := terminal.NewReporter(&buf, terminal.Config{Width: testWidth, NoColor: true}, false, false)

	r.Status("Compressing a.txt", 0.5)
	assert.Zero(t, buf.Len())

	r.Status("Error: a.txt: denied", progress.NoFraction)
	r.Paused()

	before := inventory.Summary{LogicalSize: 10000, PhysicalSize: 10000}
	after := inventory.Summary{LogicalSize: 10000, PhysicalSize: 4000}
	r.Compacted(before, after, 1500*time.Millisecond)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"Error: a.txt: denied",
		"Paused. Enter r to resume, s to stop.",
		"Done in 1.5s: on disk 9.8 KiB -> 3.9 KiB, reclaimed 5.9 KiB",
	}, lines)
}

func TestReporter_LiveRedrawsInPlace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	r := terminal.NewReporter(&buf, terminal.Config{Width: testWidth, NoColor: true}, true, true)

	r.Status("Compressing a.txt", 0.25)
	r.Status("Compressing b.txt", 0.5)
	r.Stopped(inventory.Summary{PhysicalSize: 4000}, time.Second)

	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "\r\x1b[K"))
	assert.Contains(t, out, "b.txt")
	assert.True(t, strings.HasSuffix(out, "Stopped after 1s: 4.0 kB on disk, 0 files still compressible\n"))
}

func TestReporter_NonLiveSpacesTransientLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	r := terminal.NewReporter(&buf, terminal.Config{Width: testWidth, NoColor: true}, false, false)

	for i := range 50 {
		r.Status("Scanning /data/dir"+strings.Repeat("x", i), progress.NoFraction)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"Scanning /data/dir"}, lines)
}

func TestReporter_StoppedNamesRemainingWork(t *testing.T) {
	t.Parallel()

	summary := inventory.Summary{
		PhysicalSize:      4000,
		Compressible:      inventory.GroupSummary{Count: 3},
		AlreadyCompressed: inventory.GroupSummary{Count: 5},
	}

	var compress bytes.Buffer

	r := terminal.NewReporter(&compress, terminal.Config{Width: testWidth, NoColor: true}, false, true)
	r.Compacting("compress")
	r.Stopped(summary, time.Second)

	assert.Equal(t,
		"Compacting. Enter p to pause, s to stop.\nStopped after 1s: 4.0 kB on disk, 3 files still compressible\n",
		compress.String())

	var decompress bytes.Buffer

	r = terminal.NewReporter(&decompress, terminal.Config{Width: testWidth, NoColor: true}, false, true)
	r.Compacting("decompress")
	r.Stopped(summary, time.Second)

	assert.Equal(t,
		"Decompressing. Enter p to pause, s to stop.\nStopped after 1s: 4.0 kB on disk, 5 files still compressed\n",
		decompress.String())
}
