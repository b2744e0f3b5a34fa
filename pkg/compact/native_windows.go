//go:build windows

package compact

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows Overlay Filter ioctls and structures (winioctl.h, wofapi.h).
const (
	fsctlSetExternalBacking    = 0x9030C
	fsctlDeleteExternalBacking = 0x90314

	wofCurrentVersion          = 1
	wofProviderFile            = 2
	fileProviderCurrentVersion = 1

	fileReadData        = 0x0001
	fileWriteAttributes = 0x0100

	fileFlagSequentialScan = 0x08000000

	errorObjectNotExternallyBacked windows.Errno = 342
	errorCompressionNotBeneficial  windows.Errno = 344
)

var wofAlgorithms = map[Algorithm]uint32{
	Xpress4K:  0,
	LZX:       1,
	Xpress8K:  2,
	Xpress16K: 3,
}

type wofExternalInfo struct {
	Version  uint32
	Provider uint32
}

type fileProviderExternalInfo struct {
	Version   uint32
	Algorithm uint32
	Flags     uint32
}

type wofBacking struct {
	wof  wofExternalInfo
	file fileProviderExternalInfo
}

func openForCompaction(path string) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return windows.InvalidHandle, err
	}

	return windows.CreateFile(
		p,
		fileReadData|fileWriteAttributes,
		windows.FILE_SHARE_READ,
		nil,
		windows.OPEN_EXISTING,
		fileFlagSequentialScan,
		0,
	)
}

func compressFile(path string, algorithm Algorithm) (bool, error) {
	algo, ok := wofAlgorithms[algorithm]
	if !ok {
		return false, ErrUnknownAlgorithm
	}

	h, err := openForCompaction(path)
	if err != nil {
		return false, err
	}
	defer windows.CloseHandle(h)

	in := wofBacking{
		wof:  wofExternalInfo{Version: wofCurrentVersion, Provider: wofProviderFile},
		file: fileProviderExternalInfo{Version: fileProviderCurrentVersion, Algorithm: algo},
	}

	var returned uint32

	err = windows.DeviceIoControl(
		h,
		fsctlSetExternalBacking,
		(*byte)(unsafe.Pointer(&in)),
		uint32(unsafe.Sizeof(in)),
		nil,
		0,
		&returned,
		nil,
	)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errorCompressionNotBeneficial):
		return false, nil
	default:
		return false, err
	}
}

func decompressFile(path string) error {
	h, err := openForCompaction(path)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)

	var returned uint32

	err = windows.DeviceIoControl(h, fsctlDeleteExternalBacking, nil, 0, nil, 0, &returned, nil)
	if err != nil && !errors.Is(err, errorObjectNotExternallyBacked) {
		return err
	}

	return nil
}
