// Package inventory holds the per-folder classification produced by a scan
// and drained by a compaction run.
package inventory

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Bucket identifies one of the three classification groups.
type Bucket int

// Buckets.
const (
	Compressible Bucket = iota
	AlreadyCompressed
	Skipped

	bucketCount = 3
)

// Buckets lists every bucket in display order.
var Buckets = [bucketCount]Bucket{Compressible, AlreadyCompressed, Skipped}

func (b Bucket) String() string {
	switch b {
	case Compressible:
		return "compressible"
	case AlreadyCompressed:
		return "compressed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("bucket(%d)", int(b))
	}
}

// File is one classified file. Path is relative to the folder root.
type File struct {
	Path         string `json:"path"          yaml:"path"`
	LogicalSize  uint64 `json:"logical_size"  yaml:"logical_size"`
	PhysicalSize uint64 `json:"physical_size" yaml:"physical_size"`
}

// Group is an ordered list of files with running size totals.
// Totals are only ever changed together with the list.
type Group struct {
	files    []File
	logical  uint64
	physical uint64
}

// Push appends f.
func (g *Group) Push(f File) {
	g.files = append(g.files, f)
	g.logical += f.LogicalSize
	g.physical += f.PhysicalSize
}

// Pop removes and returns the last file.
func (g *Group) Pop() (File, bool) {
	n := len(g.files)
	if n == 0 {
		return File{}, false
	}

	f := g.files[n-1]
	g.files[n-1] = File{}
	g.files = g.files[:n-1]
	g.logical -= f.LogicalSize
	g.physical -= f.PhysicalSize

	return f, true
}

// Len returns the number of files.
func (g *Group) Len() int { return len(g.files) }

// LogicalSize returns the sum of apparent sizes.
func (g *Group) LogicalSize() uint64 { return g.logical }

// PhysicalSize returns the sum of on-disk sizes.
func (g *Group) PhysicalSize() uint64 { return g.physical }

// Files returns a copy of the files in push order.
func (g *Group) Files() []File { return slices.Clone(g.files) }

// Summary returns the count and totals without the file list.
func (g *Group) Summary() GroupSummary {
	return GroupSummary{Count: len(g.files), LogicalSize: g.logical, PhysicalSize: g.physical}
}

// MarshalJSON encodes the group as its file list.
func (g *Group) MarshalJSON() ([]byte, error) {
	files := g.files
	if files == nil {
		files = []File{}
	}

	return json.Marshal(files)
}

// UnmarshalJSON rebuilds the group through Push so totals are recomputed.
func (g *Group) UnmarshalJSON(data []byte) error {
	var files []File

	err := json.Unmarshal(data, &files)
	if err != nil {
		return fmt.Errorf("decode group: %w", err)
	}

	*g = Group{}
	for _, f := range files {
		g.Push(f)
	}

	return nil
}

// GroupSummary is the aggregate of one group.
type GroupSummary struct {
	Count        int    `json:"count"         yaml:"count"`
	LogicalSize  uint64 `json:"logical_size"  yaml:"logical_size"`
	PhysicalSize uint64 `json:"physical_size" yaml:"physical_size"`
}

// Ratio returns physical/logical, or 1 for an empty group.
func (s GroupSummary) Ratio() float64 {
	if s.LogicalSize == 0 {
		return 1
	}

	return float64(s.PhysicalSize) / float64(s.LogicalSize)
}

// Summary is the aggregate of a whole folder.
type Summary struct {
	LogicalSize       uint64       `json:"logical_size"       yaml:"logical_size"`
	PhysicalSize      uint64       `json:"physical_size"      yaml:"physical_size"`
	Compressible      GroupSummary `json:"compressible"       yaml:"compressible"`
	AlreadyCompressed GroupSummary `json:"already_compressed" yaml:"already_compressed"`
	Skipped           GroupSummary `json:"skipped"            yaml:"skipped"`
}

// Group returns the summary of bucket b.
func (s Summary) Group(b Bucket) GroupSummary {
	switch b {
	case Compressible:
		return s.Compressible
	case AlreadyCompressed:
		return s.AlreadyCompressed
	default:
		return s.Skipped
	}
}

// Files returns the number of files across all buckets.
func (s Summary) Files() int {
	return s.Compressible.Count + s.AlreadyCompressed.Count + s.Skipped.Count
}

// Saved returns logical minus physical bytes, or zero if physical is larger.
func (s Summary) Saved() uint64 {
	if s.PhysicalSize >= s.LogicalSize {
		return 0
	}

	return s.LogicalSize - s.PhysicalSize
}

// Folder is the classification of a directory tree.
// Folder totals are always the sum of its buckets.
type Folder struct {
	Path   string
	groups [bucketCount]Group
}

// NewFolder returns an empty folder rooted at path.
func NewFolder(path string) *Folder {
	return &Folder{Path: path}
}

// Push adds f to bucket b.
func (f *Folder) Push(b Bucket, file File) {
	f.groups[b].Push(file)
}

// Pop removes the last file of bucket b.
func (f *Folder) Pop(b Bucket) (File, bool) {
	return f.groups[b].Pop()
}

// Group returns bucket b.
func (f *Folder) Group(b Bucket) *Group {
	return &f.groups[b]
}

// Len returns the number of files across all buckets.
func (f *Folder) Len() int {
	n := 0
	for i := range f.groups {
		n += f.groups[i].Len()
	}

	return n
}

// LogicalSize returns the sum of apparent sizes over all buckets.
func (f *Folder) LogicalSize() uint64 {
	var total uint64
	for i := range f.groups {
		total += f.groups[i].logical
	}

	return total
}

// PhysicalSize returns the sum of on-disk sizes over all buckets.
func (f *Folder) PhysicalSize() uint64 {
	var total uint64
	for i := range f.groups {
		total += f.groups[i].physical
	}

	return total
}

// Summary returns the aggregate view of the folder.
func (f *Folder) Summary() Summary {
	return Summary{
		LogicalSize:       f.LogicalSize(),
		PhysicalSize:      f.PhysicalSize(),
		Compressible:      f.groups[Compressible].Summary(),
		AlreadyCompressed: f.groups[AlreadyCompressed].Summary(),
		Skipped:           f.groups[Skipped].Summary(),
	}
}

type folderJSON struct {
	Path              string `json:"path"`
	Compressible      *Group `json:"compressible"`
	AlreadyCompressed *Group `json:"already_compressed"`
	Skipped           *Group `json:"skipped"`
}

// MarshalJSON encodes the root and the three file lists.
func (f *Folder) MarshalJSON() ([]byte, error) {
	return json.Marshal(folderJSON{
		Path:              f.Path,
		Compressible:      &f.groups[Compressible],
		AlreadyCompressed: &f.groups[AlreadyCompressed],
		Skipped:           &f.groups[Skipped],
	})
}

// UnmarshalJSON decodes a folder written by MarshalJSON.
func (f *Folder) UnmarshalJSON(data []byte) error {
	var out Folder

	raw := folderJSON{
		Compressible:      &out.groups[Compressible],
		AlreadyCompressed: &out.groups[AlreadyCompressed],
		Skipped:           &out.groups[Skipped],
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("decode folder: %w", err)
	}

	out.Path = raw.Path
	*f = out

	return nil
}
