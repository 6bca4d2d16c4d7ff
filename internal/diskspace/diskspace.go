// Package diskspace checks free space on the filesystem that will hold a
// file before it is written.
package diskspace

import (
	"errors"
	"fmt"
	"path/filepath"
)

// DefaultMargin is the headroom callers add on top of the expected size.
const DefaultMargin = 1.1

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	requiredMB := float64(e.RequiredBytes) / (1024 * 1024)
	availableMB := float64(e.AvailableBytes) / (1024 * 1024)
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MB, have %.2f MB available",
		e.Path, requiredMB, availableMB)
}

// CheckAvailableSpace reports an InsufficientSpaceError when the filesystem
// holding targetPath has less than requiredBytes*margin free. targetPath
// itself need not exist, only its directory. When free space cannot be
// determined (network or virtual filesystems) the check passes.
func CheckAvailableSpace(targetPath string, requiredBytes int64, margin float64) error {
	if requiredBytes <= 0 {
		return nil
	}
	available, ok := availableBytes(filepath.Dir(targetPath))
	if !ok {
		return nil
	}
	return compare(targetPath, requiredBytes, margin, available)
}

// CheckDir is CheckAvailableSpace for a file to be created inside dir.
func CheckDir(dir string, requiredBytes int64) error {
	return CheckAvailableSpace(filepath.Join(dir, "probe"), requiredBytes, DefaultMargin)
}

// GetAvailableSpace returns the available space in bytes for the filesystem
// containing path. Returns 0 if unable to determine.
func GetAvailableSpace(path string) int64 {
	available, ok := availableBytes(filepath.Dir(path))
	if !ok {
		return 0
	}
	return available
}

func compare(targetPath string, requiredBytes int64, margin float64, available int64) error {
	if margin < 1 {
		margin = 1
	}
	required := int64(float64(requiredBytes) * margin)
	if available < required {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// IsInsufficientSpaceError reports whether err is or wraps an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var ise *InsufficientSpaceError
	return errors.As(err, &ise)
}
