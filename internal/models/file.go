package models

import (
	"time"
)

// EntryKind distinguishes files from directories in a remote listing.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
)

// DirectoryEntry is one item of a remote directory listing.
// Values are immutable once returned by the directory client.
type DirectoryEntry struct {
	Name     string
	Path     string // absolute, remote namespace
	Kind     EntryKind
	Size     *uint64   // nil when the backend omits it (directories)
	Modified time.Time // zero when unknown
}

// IsDir reports whether the entry is a directory.
func (e DirectoryEntry) IsDir() bool {
	return e.Kind == KindDirectory
}

// SizeOrZero returns the size, or 0 when unknown.
func (e DirectoryEntry) SizeOrZero() uint64 {
	if e.Size == nil {
		return 0
	}
	return *e.Size
}

// FileListing is the JSON body of GET /tools/files/list.
type FileListing struct {
	Files []FileListItem `json:"files"`
	Path  string         `json:"path"`
}

// FileListItem is the wire form of a listing entry.
// Modified is a float Unix timestamp (seconds).
type FileListItem struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Type     string   `json:"type"`
	Size     *uint64  `json:"size,omitempty"`
	Modified *float64 `json:"modified,omitempty"`
}

// ToEntry converts the wire item into a DirectoryEntry.
func (i FileListItem) ToEntry() DirectoryEntry {
	kind := KindFile
	if i.Type == string(KindDirectory) {
		kind = KindDirectory
	}

	entry := DirectoryEntry{
		Name: i.Name,
		Path: i.Path,
		Kind: kind,
	}
	if i.Size != nil {
		size := *i.Size
		entry.Size = &size
	}
	if i.Modified != nil {
		sec := int64(*i.Modified)
		nsec := int64((*i.Modified - float64(sec)) * 1e9)
		entry.Modified = time.Unix(sec, nsec)
	}
	return entry
}

// CreateFolderResponse is the JSON body of POST /tools/files/create-folder.
type CreateFolderResponse struct {
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// ImportUploadResponse is the JSON body of POST /tools/import/upload.
type ImportUploadResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	FilesCount int    `json:"files_count"`
	TotalSize  int64  `json:"total_size"`
}

// ErrorResponse is the body the backend returns on failure.
type ErrorResponse struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Text returns the first non-empty message field.
func (r ErrorResponse) Text() string {
	switch {
	case r.Detail != "":
		return r.Detail
	case r.Message != "":
		return r.Message
	default:
		return r.Error
	}
}
