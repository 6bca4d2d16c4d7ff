// Package importer uploads a walked local tree into a remote directory as
// a single batch, reporting phase-based progress.
package importer

import (
	"context"
	"io"
	"time"

	"github.com/odoobiznes/kms-fsnav/internal/events"
	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/walker"
)

// Phase is a step of one import attempt. Phases only move forward.
type Phase int

const (
	PhaseEnumerating Phase = iota
	PhasePackaging
	PhaseTransferring
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseEnumerating:
		return "Enumerating"
	case PhasePackaging:
		return "Packaging"
	case PhaseTransferring:
		return "Transferring"
	case PhaseDone:
		return "Done"
	default:
		return "Failed"
	}
}

// Progress is the observable state of an import.
type Progress struct {
	Phase   Phase
	Percent int // 0..100
	Message string
	Kind    *models.ErrorKind // set in PhaseFailed
}

// Part is one file of a batch, tagged with its manifest-relative path.
type Part struct {
	RelativePath string
	Size         int64
	Open         func() (io.ReadCloser, error)
}

// Batch is the packaged form of a manifest, ready for a transport.
type Batch struct {
	TargetPath string
	RootName   string
	Parts      []Part
	TotalBytes int64
}

// TransferResult is what a transport reports after a successful transfer.
type TransferResult struct {
	FilesCount int
	TotalBytes int64
	Message    string
	Location   string // where the batch landed, when the transport knows
}

// Transport carries a whole batch in one operation. Atomicity of that
// operation is the transport's concern.
type Transport interface {
	// Transfer sends batch. progress, when the transport supports it,
	// receives bytes sent so far and the total.
	Transfer(ctx context.Context, batch *Batch, progress func(sent, total int64)) (*TransferResult, error)
	// ReportsProgress tells the uploader whether progress will be called.
	ReportsProgress() bool
	// Name identifies the transport in logs ("http", "s3", "azure").
	Name() string
}

// Result summarizes a completed import.
type Result struct {
	RootName   string
	TargetPath string
	FilesCount int
	TotalBytes uint64
	Skipped    []walker.FileFailure // files that could not be opened
	Message    string
	Location   string
	Duration   time.Duration
}

// ImportProgressEvent is published on every progress change.
type ImportProgressEvent struct {
	events.BaseEvent
	Name       string
	TargetPath string
	Progress   Progress
}

// NewImportProgressEvent creates a new ImportProgressEvent.
func NewImportProgressEvent(name, target string, p Progress) *ImportProgressEvent {
	return &ImportProgressEvent{
		BaseEvent:  events.NewBase(events.EventImportProgress),
		Name:       name,
		TargetPath: target,
		Progress:   p,
	}
}
