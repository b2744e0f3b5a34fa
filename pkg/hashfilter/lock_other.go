//go:build !unix && !windows

package hashfilter

import "os"

// Platforms without advisory locks only get in-process protection.

func lockShared(*os.File) error    { return nil }
func lockExclusive(*os.File) error { return nil }
func unlock(*os.File)              {}
