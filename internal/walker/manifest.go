package walker

import (
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
)

// ErrNoOpener is returned by Open on a handle built without an opener.
var ErrNoOpener = errors.New("file handle has no opener")

// otherExtension is the histogram key for names ending in a dot.
const otherExtension = "other"

// FileHandle is one discovered file. Contents are read only through Open.
type FileHandle struct {
	// RelativePath is slash-joined and starts with the root folder's name.
	RelativePath string
	Size         int64
	open         func() (io.ReadCloser, error)
}

// NewFileHandle creates a handle over an arbitrary opener.
func NewFileHandle(relativePath string, size int64, open func() (io.ReadCloser, error)) FileHandle {
	return FileHandle{RelativePath: relativePath, Size: size, open: open}
}

// Open returns the file contents.
func (h FileHandle) Open() (io.ReadCloser, error) {
	if h.open == nil {
		return nil, ErrNoOpener
	}
	return h.open()
}

// FileFailure records an entry that could not be included.
type FileFailure struct {
	RelativePath string
	Err          error
}

// ExtensionCount is one histogram bucket.
type ExtensionCount struct {
	Extension string
	Count     int
}

// Manifest is the flattened result of a traversal. It is immutable;
// accessors return copies.
type Manifest struct {
	rootName   string
	files      []FileHandle
	totalBytes uint64
	histogram  map[string]int
	failures   []FileFailure
	// hiddenSkipped counts dot-named entries left out by WalkOptions.
	hiddenSkipped int
}

// NewManifest builds a manifest directly from handles, computing the
// totals and histogram the walker would.
func NewManifest(rootName string, files []FileHandle) *Manifest {
	b := newBuilder(rootName)
	for _, f := range files {
		b.addFile(f)
	}
	return b.freeze()
}

func (m *Manifest) RootName() string { return m.rootName }

// Len returns the number of files.
func (m *Manifest) Len() int { return len(m.files) }

func (m *Manifest) TotalBytes() uint64 { return m.totalBytes }

// Files returns the discovered files in discovery order.
func (m *Manifest) Files() []FileHandle {
	out := make([]FileHandle, len(m.files))
	copy(out, m.files)
	return out
}

// ExtensionHistogram maps lower-cased extension to file count.
func (m *Manifest) ExtensionHistogram() map[string]int {
	out := make(map[string]int, len(m.histogram))
	for k, v := range m.histogram {
		out[k] = v
	}
	return out
}

// TopExtensions returns up to n buckets, most frequent first, ties by name.
func (m *Manifest) TopExtensions(n int) []ExtensionCount {
	buckets := make([]ExtensionCount, 0, len(m.histogram))
	for ext, count := range m.histogram {
		buckets = append(buckets, ExtensionCount{Extension: ext, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Extension < buckets[j].Extension
	})
	if n >= 0 && len(buckets) > n {
		buckets = buckets[:n]
	}
	return buckets
}

// Failures lists entries skipped during traversal.
func (m *Manifest) Failures() []FileFailure {
	out := make([]FileFailure, len(m.failures))
	copy(out, m.failures)
	return out
}

// HiddenSkipped returns how many dot-named files and directories were left
// out because hidden entries were not requested.
func (m *Manifest) HiddenSkipped() int { return m.hiddenSkipped }

// Extension returns the histogram key for a file name: the lower-cased
// text after the last dot, or the whole lower-cased name when it has no
// dot. Names ending in a dot map to "other".
func Extension(name string) string {
	ext := name[strings.LastIndex(name, ".")+1:]
	if ext == "" {
		return otherExtension
	}
	return strings.ToLower(ext)
}

// builder accumulates a manifest during traversal.
type builder struct {
	mu sync.Mutex
	m  *Manifest
}

func newBuilder(rootName string) *builder {
	return &builder{m: &Manifest{rootName: rootName, histogram: map[string]int{}}}
}

func (b *builder) addFile(h FileHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.m.files = append(b.m.files, h)
	if h.Size > 0 {
		b.m.totalBytes += uint64(h.Size)
	}
	name := h.RelativePath
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	b.m.histogram[Extension(name)]++
}

func (b *builder) addFailure(relativePath string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m.failures = append(b.m.failures, FileFailure{RelativePath: relativePath, Err: err})
}

func (b *builder) addHidden() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m.hiddenSkipped++
}

func (b *builder) counts() (files int, bytes uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.m.files), b.m.totalBytes
}

// freeze hands out the manifest; the builder must not be used afterwards.
func (b *builder) freeze() *Manifest {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.m
	b.m = nil
	return m
}
