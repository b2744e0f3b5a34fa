//go:build linux

package compact

import (
	"errors"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/Sumatoshi-tech/compactor/pkg/safeconv"
)

// Inode flag and btrfs defragment ioctl (linux/fs.h, linux/btrfs.h).
const (
	fsComprFl = 0x00000004

	btrfsIocDefragRange        = 0x40309410
	btrfsDefragRangeCompress   = 1
	btrfsDefragRangeStartIO    = 2
	btrfsCompressZlib          = 1
	btrfsCompressLZO           = 2
	btrfsCompressZstd          = 3
	btrfsDefragWholeFileLength = ^uint64(0)

	blockUnit = 512
)

var btrfsAlgorithms = map[Algorithm]uint32{
	Xpress4K:  btrfsCompressLZO,
	Xpress8K:  btrfsCompressLZO,
	Xpress16K: btrfsCompressZlib,
	LZX:       btrfsCompressZstd,
}

type btrfsDefragRangeArgs struct {
	Start        uint64
	Len          uint64
	Flags        uint64
	ExtentThresh uint32
	CompressType uint32
	Unused       [4]uint32
}

func compressFile(path string, algorithm Algorithm) (bool, error) {
	compressType, ok := btrfsAlgorithms[algorithm]
	if !ok {
		return false, ErrUnknownAlgorithm
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	fd := int(f.Fd())

	err = setInodeFlag(fd, true)
	if err != nil {
		return false, err
	}

	args := btrfsDefragRangeArgs{
		Len:          btrfsDefragWholeFileLength,
		Flags:        btrfsDefragRangeCompress | btrfsDefragRangeStartIO,
		CompressType: compressType,
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), btrfsIocDefragRange, uintptr(unsafe.Pointer(&args)))
	if errno != 0 && !ignorableIoctlErr(errno) {
		return false, errno
	}

	err = f.Sync()
	if err != nil {
		return false, err
	}

	var st unix.Stat_t

	err = unix.Fstat(fd, &st)
	if err != nil {
		return false, err
	}

	return safeconv.Uint64(st.Blocks)*blockUnit < safeconv.Uint64(st.Size), nil
}

func decompressFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return setInodeFlag(int(f.Fd()), false)
}

func setInodeFlag(fd int, on bool) error {
	flags, err := unix.IoctlGetUint32(fd, unix.FS_IOC_GETFLAGS)
	if err != nil {
		if ignorableIoctlErr(err) {
			return ErrUnsupported
		}

		return err
	}

	want := flags &^ fsComprFl
	if on {
		want = flags | fsComprFl
	}

	if want == flags {
		return nil
	}

	err = unix.IoctlSetPointerInt(fd, unix.FS_IOC_SETFLAGS, int(want))
	if err != nil {
		if ignorableIoctlErr(err) {
			return ErrUnsupported
		}

		return err
	}

	return nil
}

// ignorableIoctlErr reports errors meaning "this filesystem does not do that".
func ignorableIoctlErr(err error) bool {
	return errors.Is(err, syscall.ENOTTY) ||
		errors.Is(err, syscall.EINVAL) ||
		errors.Is(err, syscall.EOPNOTSUPP)
}
