package navigation

import (
	"time"

	"github.com/odoobiznes/kms-fsnav/internal/events"
	"github.com/odoobiznes/kms-fsnav/internal/models"
)

// NavigationChangedEvent carries a new State snapshot.
type NavigationChangedEvent struct {
	events.BaseEvent
	Source string // surface name, e.g. "picker" or "viewer"
	State  State
}

// NavigationLoadingEvent is published when a listing request is issued.
type NavigationLoadingEvent struct {
	events.BaseEvent
	Source string
	Path   string
	Seq    uint64
}

// NavigationErrorEvent is published when the latest listing request fails.
type NavigationErrorEvent struct {
	events.BaseEvent
	Source  string
	Path    string
	Kind    models.ErrorKind
	Message string
	Error   error
}

// SelectionChangedEvent is published when the highlighted entry moves.
type SelectionChangedEvent struct {
	events.BaseEvent
	Source string
	Index  int
	Entry  models.DirectoryEntry
}

// OpenFileEvent is published when a file entry is activated.
type OpenFileEvent struct {
	events.BaseEvent
	Source string
	Entry  models.DirectoryEntry
}

// NewNavigationChangedEvent creates a new NavigationChangedEvent.
func NewNavigationChangedEvent(source string, state State) *NavigationChangedEvent {
	return &NavigationChangedEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventNavigationChanged,
			Time:      time.Now(),
		},
		Source: source,
		State:  state,
	}
}

// NewNavigationLoadingEvent creates a new NavigationLoadingEvent.
func NewNavigationLoadingEvent(source, path string, seq uint64) *NavigationLoadingEvent {
	return &NavigationLoadingEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventNavigationLoading,
			Time:      time.Now(),
		},
		Source: source,
		Path:   path,
		Seq:    seq,
	}
}

// NewNavigationErrorEvent creates a new NavigationErrorEvent.
func NewNavigationErrorEvent(source, path string, err error) *NavigationErrorEvent {
	kind := models.KindOf(err)
	return &NavigationErrorEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventNavigationError,
			Time:      time.Now(),
		},
		Source:  source,
		Path:    path,
		Kind:    kind,
		Message: kind.Message(),
		Error:   err,
	}
}

// NewSelectionChangedEvent creates a new SelectionChangedEvent.
func NewSelectionChangedEvent(source string, index int, entry models.DirectoryEntry) *SelectionChangedEvent {
	return &SelectionChangedEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventSelectionChanged,
			Time:      time.Now(),
		},
		Source: source,
		Index:  index,
		Entry:  entry,
	}
}

// NewOpenFileEvent creates a new OpenFileEvent.
func NewOpenFileEvent(source string, entry models.DirectoryEntry) *OpenFileEvent {
	return &OpenFileEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventOpenFile,
			Time:      time.Now(),
		},
		Source: source,
		Entry:  entry,
	}
}
