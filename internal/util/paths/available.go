// Package paths resolves local destinations for downloaded files.
package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxSuffix bounds the " (n)" search.
const maxSuffix = 9999

// AvailablePath returns path when nothing exists there. Otherwise it inserts
// " (n)" before the extension and returns the first free candidate.
//
// Example: with "report.pdf" and "report (1).pdf" present, the result is
// "report (2).pdf".
func AvailablePath(path string) (string, error) {
	return available(path, nil)
}

// ResolveCollisions makes every destination in dests unique, both among
// themselves and against files already on disk. The slice is modified in
// place; the count of renamed entries is returned.
func ResolveCollisions(dests []string) (int, error) {
	taken := make(map[string]bool, len(dests))
	renamed := 0
	for i, d := range dests {
		candidate, err := available(d, taken)
		if err != nil {
			return renamed, err
		}
		if candidate != d {
			renamed++
		}
		taken[candidate] = true
		dests[i] = candidate
	}
	return renamed, nil
}

func available(path string, taken map[string]bool) (string, error) {
	ok, err := isFree(path, taken)
	if err != nil || ok {
		return path, err
	}

	base, ext := splitExt(path)
	for i := 1; i <= maxSuffix; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		ok, err := isFree(candidate, taken)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s", path)
}

// splitExt splits off the extension. Dotfiles like ".env" have none.
func splitExt(path string) (string, string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") && strings.Count(name, ".") == 1 {
		return path, ""
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext), ext
}

func isFree(path string, taken map[string]bool) (bool, error) {
	if taken[path] {
		return false, nil
	}
	_, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}
	return false, nil
}
