// Package fsinfo reports the apparent and allocated size of files along with
// the attributes that mark a file as unsuitable for compression.
package fsinfo

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/Sumatoshi-tech/compactor/pkg/safeconv"
)

// Info is what a scan needs to know about one regular file.
type Info struct {
	Logical    uint64
	Physical   uint64
	NoCompress bool
}

// StatFunc computes Info for the file at path described by fi.
type StatFunc func(path string, fi fs.FileInfo) (Info, error)

// Stat is the host implementation of StatFunc.
func Stat(path string, fi fs.FileInfo) (Info, error) {
	info, err := stat(path, fi)
	if err != nil {
		return Info{}, fmt.Errorf("stat %s: %w", path, err)
	}

	return info, nil
}

// StatPath is Stat for a path without a prior directory entry.
func StatPath(path string) (Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("stat %s: %w", path, err)
	}

	return Stat(path, fi)
}

func logicalSize(fi fs.FileInfo) uint64 {
	return safeconv.Uint64(fi.Size())
}
