// Package pathmodel provides pure helpers for POSIX-style remote paths:
// joining, parent resolution, breadcrumbs and folder-name sanitization.
// Remote paths always use forward slashes regardless of the local OS.
package pathmodel

import (
	"strings"
)

// Root is the top of the remote namespace.
const Root = "/"

// Segment is one clickable breadcrumb element.
type Segment struct {
	Label    string
	FullPath string
	Current  bool // last segment; navigating to it is a refresh
}

// Clean normalizes a path to an absolute form with single separators and
// no trailing slash (except for the root). Backslashes are treated as
// separators. "." segments are dropped and ".." removes the previous segment
// without ever climbing above the root.
func Clean(p string) string {
	parts := split(p)
	if len(parts) == 0 {
		return Root
	}
	return Root + strings.Join(parts, "/")
}

// Join appends segment to base and normalizes the result.
// A segment may itself contain separators ("a/b").
func Join(base, segment string) string {
	if segment == "" {
		return Clean(base)
	}
	return Clean(base + "/" + segment)
}

// Parent returns the path with its last segment removed.
// Parent of a top-level path and of the root itself is the root.
func Parent(p string) string {
	parts := split(p)
	if len(parts) <= 1 {
		return Root
	}
	return Root + strings.Join(parts[:len(parts)-1], "/")
}

// Base returns the last segment of the path, or "/" for the root.
func Base(p string) string {
	parts := split(p)
	if len(parts) == 0 {
		return Root
	}
	return parts[len(parts)-1]
}

// IsRoot reports whether p normalizes to the root.
func IsRoot(p string) bool {
	return len(split(p)) == 0
}

// Breadcrumbs returns the navigable segments of p, starting with the root.
// The last segment is marked Current.
func Breadcrumbs(p string) []Segment {
	parts := split(p)
	segments := make([]Segment, 0, len(parts)+1)
	segments = append(segments, Segment{Label: Root, FullPath: Root})

	full := ""
	for _, part := range parts {
		full += "/" + part
		segments = append(segments, Segment{Label: part, FullPath: full})
	}

	segments[len(segments)-1].Current = true
	return segments
}

// split breaks p into its non-empty, resolved segments.
func split(p string) []string {
	p = strings.ReplaceAll(p, "\\", "/")
	raw := strings.Split(p, "/")

	parts := make([]string, 0, len(raw))
	for _, s := range raw {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, s)
		}
	}
	return parts
}
