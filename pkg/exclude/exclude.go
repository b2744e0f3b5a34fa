// Package exclude matches paths against user-configured glob patterns.
//
// Matching is case-insensitive, "*" crosses directory separators, and both
// slash styles are treated as the same separator.
package exclude

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultPatterns are the excludes used when none are configured.
var DefaultPatterns = []string{
	`*:\Windows*`,
	`*:\System Volume Information*`,
	`*:\$*`,
	"*.7z",
	"*.aac",
	"*.avi",
	"*.ba",
	"*.{bik,bk2,bnk,pc_binkvid}",
	"*.br",
	"*.bz2",
	"*.cab",
	"*.dl_",
	"*.docx",
	"*.flac",
	"*.flv",
	"*.gif",
	"*.gz",
	"*.jpeg",
	"*.jpg",
	"*.log",
	"*.lz4",
	"*.lzma",
	"*.lzx",
	"*.m[24]v",
	"*.m4a",
	"*.mkv",
	"*.mp[234]",
	"*.mpeg",
	"*.mpg",
	"*.ogg",
	"*.onepkg",
	"*.png",
	"*.pptx",
	"*.rar",
	"*.upk",
	"*.vob",
	"*.vs[st]x",
	"*.wem",
	"*.webm",
	"*.wm[afv]",
	"*.xap",
	"*.xnb",
	"*.xlsx",
	"*.xz",
	"*.zst",
	"*.zstd",
}

// Matcher is a compiled set of patterns. The zero value matches nothing.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// New compiles patterns.
func New(patterns []string) (*Matcher, error) {
	m := &Matcher{
		patterns: append([]string(nil), patterns...),
		globs:    make([]glob.Glob, 0, len(patterns)),
	}

	for _, p := range patterns {
		g, err := glob.Compile(normalize(p))
		if err != nil {
			return nil, fmt.Errorf("compile exclude %q: %w", p, err)
		}

		m.globs = append(m.globs, g)
	}

	return m, nil
}

// MustDefault compiles DefaultPatterns.
func MustDefault() *Matcher {
	m, err := New(DefaultPatterns)
	if err != nil {
		panic(err)
	}

	return m
}

// Matches reports whether path matches any pattern.
func (m *Matcher) Matches(path string) bool {
	if m == nil || len(m.globs) == 0 {
		return false
	}

	candidate := normalize(path)
	for _, g := range m.globs {
		if g.Match(candidate) {
			return true
		}
	}

	return false
}

// Patterns returns the source patterns.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}

	return append([]string(nil), m.patterns...)
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, `\`, "/"))
}
