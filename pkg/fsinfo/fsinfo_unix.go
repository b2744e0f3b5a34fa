//go:build unix

package fsinfo

import (
	"io/fs"
	"syscall"

	"github.com/Sumatoshi-tech/compactor/pkg/safeconv"
)

const (
	blockUnit   = 512
	writableAny = 0o222
)

func stat(_ string, fi fs.FileInfo) (Info, error) {
	info := Info{
		Logical:  logicalSize(fi),
		Physical: logicalSize(fi),
		// Read-only files are left alone.
		NoCompress: fi.Mode().Perm()&writableAny == 0,
	}

	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		info.Physical = safeconv.Uint64(int64(st.Blocks)) * blockUnit
	}

	return info, nil
}
