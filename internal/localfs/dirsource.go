package localfs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// dirEntry is an Entry backed by a path on the local filesystem.
type dirEntry struct {
	path string
	name string
	info fs.FileInfo // resolved through symlinks
	err  error       // set when the entry could not be resolved; Open reports it
	link bool        // listed as a symlink
}

// DirSource returns the Entry for a local directory or file. Symlinks are
// followed; identity is the device and inode, so a link back into the tree
// resolves to an ID the walker has already expanded.
func DirSource(root string) (Entry, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	return &dirEntry{path: abs, name: filepath.Base(abs), info: info}, nil
}

func (e *dirEntry) Name() string { return e.name }

func (e *dirEntry) IsDir() bool {
	return e.info != nil && e.info.IsDir()
}

func (e *dirEntry) Size() int64 {
	if e.info == nil || e.info.IsDir() {
		return 0
	}
	return e.info.Size()
}

func (e *dirEntry) ID() string {
	if e.info != nil {
		if id, ok := fileIdentity(e.info); ok {
			return id
		}
	}
	return "path:" + e.path
}

// Path returns the absolute local path.
func (e *dirEntry) Path() string { return e.path }

// IsLink reports whether the entry was listed as a symbolic link.
func (e *dirEntry) IsLink() bool { return e.link }

// Err reports why the entry could not be resolved, if it could not.
func (e *dirEntry) Err() error { return e.err }

// Children lists the directory. Entries that cannot be stat'ed (broken
// symlinks, races with deletion) are still returned so the failure is
// recorded against that file rather than the whole directory.
func (e *dirEntry) Children(ctx context.Context) ([]Entry, error) {
	if !e.IsDir() {
		return nil, ErrNotDir
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirents, err := os.ReadDir(e.path)
	if err != nil {
		return nil, err
	}

	children := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		full := filepath.Join(e.path, d.Name())
		child := &dirEntry{path: full, name: d.Name(), link: d.Type()&fs.ModeSymlink != 0}

		info, err := d.Info()
		if err == nil && info.Mode()&os.ModeSymlink != 0 {
			info, err = os.Stat(full)
		}
		if err != nil {
			child.err = err
		} else {
			child.info = info
		}
		children = append(children, child)
	}
	return children, nil
}

func (e *dirEntry) Open() (io.ReadCloser, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.IsDir() {
		return nil, ErrNotFile
	}
	return os.Open(e.path)
}
