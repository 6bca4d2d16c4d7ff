// Package navigation implements one browsing surface over a remote directory
// tree: the controller that owns the current path and listing, and the
// selection layer that keyboard and pointer input drive.
package navigation

import (
	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/pathmodel"
)

// Status is the controller's state-machine position.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "Loading"
	case StatusReady:
		return "Ready"
	case StatusError:
		return "Error"
	default:
		return "Idle"
	}
}

// State is an immutable snapshot of one browsing surface.
//
// SelectedIndex < len(Entries) whenever Entries is non-empty and Loading is
// false; it is 0 when Entries is empty.
type State struct {
	CurrentPath   string
	Entries       []models.DirectoryEntry
	SelectedIndex int
	Loading       bool
	Status        Status
	LastError     *models.ErrorKind
	Err           error  // underlying error behind LastError
	Seq           uint64 // request sequence the listing belongs to
	Version       uint64 // increments on every change; observers may drop older snapshots
}

// Breadcrumbs returns the breadcrumb segments of the current path.
func (s State) Breadcrumbs() []pathmodel.Segment {
	if s.CurrentPath == "" {
		return nil
	}
	return pathmodel.Breadcrumbs(s.CurrentPath)
}

// Selected returns the highlighted entry, if any.
func (s State) Selected() (models.DirectoryEntry, bool) {
	if len(s.Entries) == 0 || s.SelectedIndex < 0 || s.SelectedIndex >= len(s.Entries) {
		return models.DirectoryEntry{}, false
	}
	return s.Entries[s.SelectedIndex], true
}

// ErrorMessage returns the fixed user-facing message for LastError, or "".
func (s State) ErrorMessage() string {
	if s.LastError == nil {
		return ""
	}
	return s.LastError.Message()
}

// clone copies the entry slice so the snapshot can't alias controller state.
func (s State) clone() State {
	if s.Entries != nil {
		entries := make([]models.DirectoryEntry, len(s.Entries))
		copy(entries, s.Entries)
		s.Entries = entries
	}
	if s.LastError != nil {
		kind := *s.LastError
		s.LastError = &kind
	}
	return s
}
