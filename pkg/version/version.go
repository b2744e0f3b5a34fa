// Package version holds build information injected with -ldflags.
package version

import (
	"runtime/debug"
	"strings"
)

const unknown = "unknown"

// Build information. Set with
// -ldflags "-X github.com/Sumatoshi-tech/compactor/pkg/version.Version=v1.2.3".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills in values that were not injected at link time from
// the module build info embedded by the go tool.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = shortHash(s.Value)
			}
		case "vcs.time":
			if Date == unknown {
				Date = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" && !strings.HasSuffix(Commit, "-dirty") && Commit != unknown {
				Commit += "-dirty"
			}
		}
	}
}

const shortHashLen = 12

func shortHash(h string) string {
	if len(h) > shortHashLen {
		return h[:shortHashLen]
	}

	return h
}

// String returns "compactor <version> (commit: <commit>, built: <date>)".
func String() string {
	return "compactor " + Version + " (commit: " + Commit + ", built: " + Date + ")"
}
