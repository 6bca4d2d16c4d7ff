package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FlatFile is a file that carries its position in a tree as a relative
// path ("project/src/main.go") instead of living in an enumerable directory.
type FlatFile struct {
	RelativePath string
	Size         int64
	Opener       func() (io.ReadCloser, error)
}

// flatNode is a synthesized directory or a leaf file of a flat source.
type flatNode struct {
	name     string
	id       string
	file     *FlatFile
	children []*flatNode
	index    map[string]*flatNode
}

// FlatSource rebuilds the directory tree implied by the files' relative
// paths and returns its top-level entries. Directories are synthesized, so
// the walker expands them exactly as it expands real ones.
func FlatSource(files []FlatFile) ([]Entry, error) {
	root := &flatNode{index: map[string]*flatNode{}}

	for i := range files {
		f := &files[i]
		parts := splitRelative(f.RelativePath)
		if len(parts) == 0 {
			return nil, fmt.Errorf("file %d has an empty relative path", i)
		}

		node := root
		for depth, part := range parts {
			last := depth == len(parts)-1
			child, exists := node.index[part]

			switch {
			case exists && last:
				return nil, fmt.Errorf("duplicate or conflicting relative path %q", f.RelativePath)
			case exists && child.file != nil:
				return nil, fmt.Errorf("%q is both a file and a directory", strings.Join(parts[:depth+1], "/"))
			case !exists:
				child = &flatNode{
					name: part,
					id:   "flat:" + strings.Join(parts[:depth+1], "/"),
				}
				if last {
					child.file = f
				} else {
					child.index = map[string]*flatNode{}
				}
				node.index[part] = child
				node.children = append(node.children, child)
			}
			node = child
		}
	}

	entries := make([]Entry, len(root.children))
	for i, c := range root.children {
		entries[i] = c
	}
	return entries, nil
}

// FlatFilesFromPaths builds FlatFiles for local files listed relative to
// base. Each relative path is prefixed with base's own name, so the
// resulting tree is rooted at that folder.
func FlatFilesFromPaths(base string, relPaths []string) ([]FlatFile, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	rootName := filepath.Base(abs)

	files := make([]FlatFile, 0, len(relPaths))
	for _, rel := range relPaths {
		rel = strings.TrimSpace(rel)
		if rel == "" {
			continue
		}
		full := filepath.Join(abs, filepath.FromSlash(rel))
		info, err := os.Stat(full)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory; list files only", rel)
		}
		files = append(files, FlatFile{
			RelativePath: path.Join(rootName, filepath.ToSlash(rel)),
			Size:         info.Size(),
			Opener:       func() (io.ReadCloser, error) { return os.Open(full) },
		})
	}
	return files, nil
}

// splitRelative normalizes a relative path into its non-empty components.
func splitRelative(p string) []string {
	p = strings.ReplaceAll(p, "\\", "/")
	var parts []string
	for _, s := range strings.Split(path.Clean("/"+p), "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func (n *flatNode) Name() string { return n.name }
func (n *flatNode) IsDir() bool  { return n.file == nil }
func (n *flatNode) ID() string   { return n.id }

func (n *flatNode) Size() int64 {
	if n.file == nil {
		return 0
	}
	return n.file.Size
}

func (n *flatNode) Children(ctx context.Context) ([]Entry, error) {
	if n.file != nil {
		return nil, ErrNotDir
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Entry, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out, nil
}

func (n *flatNode) Open() (io.ReadCloser, error) {
	if n.file == nil {
		return nil, ErrNotFile
	}
	if n.file.Opener == nil {
		return nil, fmt.Errorf("%s: no opener", n.file.RelativePath)
	}
	return n.file.Opener()
}
