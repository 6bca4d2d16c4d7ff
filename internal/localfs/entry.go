package localfs

import (
	"context"
	"errors"
	"io"
)

// ErrNotFile is returned by Open on a directory entry.
var ErrNotFile = errors.New("entry is a directory")

// ErrNotDir is returned by Children on a file entry.
var ErrNotDir = errors.New("entry is not a directory")

// Entry is one node of a local tree. The walker only ever sees this
// interface, so every source shares a single traversal algorithm.
type Entry interface {
	// Name is the base name, used as a relative-path component.
	Name() string
	IsDir() bool
	// Size is the file size in bytes; 0 for directories.
	Size() int64
	// ID identifies the node. Two distinct directories never share an ID,
	// even when their names collide; a directory reachable twice (through a
	// symlink, say) reports the same ID both times.
	ID() string
	// Children enumerates a directory's immediate children in source order.
	Children(ctx context.Context) ([]Entry, error)
	// Open returns the file contents. It is called at upload time, never
	// during traversal.
	Open() (io.ReadCloser, error)
}

// EntryError returns the resolution error of an entry that a source could
// list but not inspect (a dangling symlink, a file removed mid-listing).
// Sources whose entries cannot fail that way always yield nil.
func EntryError(e Entry) error {
	if f, ok := e.(interface{ Err() error }); ok {
		return f.Err()
	}
	return nil
}

// IsLink reports whether e was reached through a symbolic link. Sources
// without links always yield false.
func IsLink(e Entry) bool {
	if l, ok := e.(interface{ IsLink() bool }); ok {
		return l.IsLink()
	}
	return false
}
