//go:build windows

package fsinfo

import (
	"io/fs"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const noCompressAttrs = windows.FILE_ATTRIBUTE_READONLY |
	windows.FILE_ATTRIBUTE_SYSTEM |
	windows.FILE_ATTRIBUTE_TEMPORARY

const invalidFileSize = 0xFFFFFFFF

var (
	modkernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetCompressedFileSizeW = modkernel32.NewProc("GetCompressedFileSizeW")
)

func stat(path string, fi fs.FileInfo) (Info, error) {
	info := Info{Logical: logicalSize(fi)}

	if data, ok := fi.Sys().(*syscall.Win32FileAttributeData); ok {
		info.NoCompress = data.FileAttributes&noCompressAttrs != 0
	}

	physical, err := compressedFileSize(path)
	if err != nil {
		return Info{}, err
	}

	info.Physical = physical

	return info, nil
}

func compressedFileSize(path string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	var high uint32

	r1, _, callErr := procGetCompressedFileSizeW.Call(
		uintptr(unsafe.Pointer(p)),
		uintptr(unsafe.Pointer(&high)),
	)

	low := uint32(r1)
	if low == invalidFileSize && callErr != windows.ERROR_SUCCESS {
		return 0, callErr
	}

	return uint64(high)<<32 | uint64(low), nil
}
