// Package discover expands operator-supplied path patterns into the concrete
// files and array-store directories the pipeline stages operate on.
package discover

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindFiles expands the given patterns and returns the regular files they
// match, deduplicated and sorted. Each pattern may contain a leading "~",
// environment variables, and shell-style globs. Matches that are not regular
// files are logged and skipped.
func FindFiles(patterns []string) []string {
	return find(patterns, func(info os.FileInfo) bool {
		return info.Mode().IsRegular()
	}, "not a file or does not exist")
}

// FindDirs is like [FindFiles] but keeps directories. Array stores are
// directories on disk, so converted, Sv, and MVBS inputs all go through here.
func FindDirs(patterns []string) []string {
	return find(patterns, func(info os.FileInfo) bool {
		return info.IsDir()
	}, "not a directory or does not exist")
}

func find(patterns []string, keep func(os.FileInfo) bool, reason string) []string {
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		expanded := os.ExpandEnv(expandHome(pattern))
		matches, err := filepath.Glob(expanded)
		if err != nil {
			slog.Warn("bad pattern, ignored", "pattern", pattern, "error", err)
			continue
		}
		// A pattern without metacharacters globs to itself only if it
		// exists, so a plain missing path needs its own warning.
		if matches == nil && !hasMeta(expanded) {
			matches = []string{expanded}
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || !keep(info) {
				slog.Warn("ignored", "path", match, "reason", reason)
				continue
			}
			seen[match] = struct{}{}
		}
	}
	found := make([]string, 0, len(seen))
	for path := range seen {
		found = append(found, path)
	}
	sort.Strings(found)
	return found
}

// expandHome replaces a leading "~" with the current user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

// Stem returns the final path element without its extension. Stage output
// names are derived from input stems, e.g. "250501WF-D20250501-T181250".
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
