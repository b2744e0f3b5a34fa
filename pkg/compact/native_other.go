//go:build !windows && !linux

package compact

func compressFile(string, Algorithm) (bool, error) {
	return false, ErrUnsupported
}

func decompressFile(string) error {
	return ErrUnsupported
}
