//go:build windows

package hashfilter

import (
	"math"
	"os"

	"golang.org/x/sys/windows"
)

func lockShared(f *os.File) error {
	return lockFile(f, 0)
}

func lockExclusive(f *os.File) error {
	return lockFile(f, windows.LOCKFILE_EXCLUSIVE_LOCK)
}

func lockFile(f *os.File, flags uint32) error {
	ol := new(windows.Overlapped)

	return windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, math.MaxUint32, math.MaxUint32, ol)
}

func unlock(f *os.File) {
	ol := new(windows.Overlapped)
	_ = windows.UnlockFileEx(windows.Handle(f.Fd()), 0, math.MaxUint32, math.MaxUint32, ol)
}
