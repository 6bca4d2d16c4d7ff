//go:build windows

package localfs

import "io/fs"

// fileIdentity is unavailable from FileInfo on Windows; callers fall back
// to the absolute path.
func fileIdentity(info fs.FileInfo) (string, bool) {
	return "", false
}
