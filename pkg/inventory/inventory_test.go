package inventory_test

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
)

const (
	invariantSteps = 2000
	invariantSeed  = 42
	maxFileSize    = 1 << 20
)

func sums(files []inventory.File) (logical, physical uint64) {
	for _, f := range files {
		logical += f.LogicalSize
		physical += f.PhysicalSize
	}

	return logical, physical
}

func TestGroup_TotalsTrackContents(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(invariantSeed, invariantSeed))

	var g inventory.Group

	for step := range invariantSteps {
		if rng.IntN(3) == 0 {
			g.Pop()
		} else {
			g.Push(inventory.File{
				Path:         "f",
				LogicalSize:  rng.Uint64N(maxFileSize),
				PhysicalSize: rng.Uint64N(maxFileSize),
			})
		}

		logical, physical := sums(g.Files())
		require.Equal(t, logical, g.LogicalSize(), "step %d", step)
		require.Equal(t, physical, g.PhysicalSize(), "step %d", step)
	}
}

func TestGroup_PopOrderAndEmpty(t *testing.T) {
	t.Parallel()

	var g inventory.Group

	_, ok := g.Pop()
	assert.False(t, ok)

	g.Push(inventory.File{Path: "a", LogicalSize: 10, PhysicalSize: 5})
	g.Push(inventory.File{Path: "b", LogicalSize: 20, PhysicalSize: 20})

	f, ok := g.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", f.Path)
	assert.Equal(t, inventory.GroupSummary{Count: 1, LogicalSize: 10, PhysicalSize: 5}, g.Summary())
}

func TestFolder_TotalsAreSumOfBuckets(t *testing.T) {
	t.Parallel()

	folder := inventory.NewFolder("/data")
	folder.Push(inventory.AlreadyCompressed, inventory.File{Path: "file1", LogicalSize: 10000, PhysicalSize: 4000})
	folder.Push(inventory.Skipped, inventory.File{Path: "file2", LogicalSize: 2000, PhysicalSize: 2000})
	folder.Push(inventory.Compressible, inventory.File{Path: "file3", LogicalSize: 50000, PhysicalSize: 50000})

	summary := folder.Summary()
	assert.Equal(t, uint64(62000), summary.LogicalSize)
	assert.Equal(t, uint64(56000), summary.PhysicalSize)
	assert.Equal(t, uint64(6000), summary.Saved())
	assert.Equal(t, 3, summary.Files())
	assert.Equal(t, 1, summary.Group(inventory.Compressible).Count)

	f, ok := folder.Pop(inventory.Compressible)
	require.True(t, ok)

	f.PhysicalSize = 20000
	folder.Push(inventory.AlreadyCompressed, f)

	assert.Equal(t, uint64(62000), folder.LogicalSize())
	assert.Equal(t, uint64(26000), folder.PhysicalSize())
	assert.Equal(t, 2, folder.Group(inventory.AlreadyCompressed).Len())
}

func TestFolder_JSONRebuildsTotals(t *testing.T) {
	t.Parallel()

	folder := inventory.NewFolder("/data")
	folder.Push(inventory.Compressible, inventory.File{Path: "a", LogicalSize: 100, PhysicalSize: 100})
	folder.Push(inventory.Skipped, inventory.File{Path: "b", LogicalSize: 7, PhysicalSize: 4096})

	data, err := json.Marshal(folder)
	require.NoError(t, err)

	var decoded inventory.Folder

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "/data", decoded.Path)
	assert.Equal(t, folder.Summary(), decoded.Summary())
	assert.Equal(t, folder.Group(inventory.Skipped).Files(), decoded.Group(inventory.Skipped).Files())
}

func TestGroupSummary_Ratio(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, inventory.GroupSummary{}.Ratio(), 1e-9)
	assert.InDelta(t, 0.25, inventory.GroupSummary{LogicalSize: 4, PhysicalSize: 1}.Ratio(), 1e-9)
}

func TestBucket_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "compressible", inventory.Compressible.String())
	assert.Equal(t, "compressed", inventory.AlreadyCompressed.String())
	assert.Equal(t, "skipped", inventory.Skipped.String())
}
