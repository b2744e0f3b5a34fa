//go:build !unix && !windows

package fsinfo

import "io/fs"

func stat(_ string, fi fs.FileInfo) (Info, error) {
	size := logicalSize(fi)

	return Info{Logical: size, Physical: size}, nil
}
