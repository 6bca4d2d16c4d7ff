// Package validation checks names that arrive from the server before they
// are used on the local filesystem.
package validation

import (
	"fmt"
	"strings"
)

// ValidateFilename validates a filename (not a full path) to prevent path
// traversal. Use it on names received from the server before passing them
// to filepath.Join.
//
// Returns an error if the filename:
//   - Is empty, "." or ".."
//   - Contains path separators (/ or \)
//   - Contains null bytes
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}

	// Both separators, whatever the local OS
	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}

	// "foo..bar.txt" is fine; only the bare names are traversal
	if filename == "." || filename == ".." {
		return fmt.Errorf("filename cannot be %q", filename)
	}

	return nil
}
