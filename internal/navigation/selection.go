package navigation

import (
	"context"
	"errors"
	"fmt"

	"github.com/odoobiznes/kms-fsnav/internal/models"
)

// ErrIndexOutOfRange is returned by SelectByIndex for an index outside the listing.
var ErrIndexOutOfRange = errors.New("selection index out of range")

// FileOpener handles activation of a file entry (download, preview, ...).
type FileOpener interface {
	OpenFile(ctx context.Context, entry models.DirectoryEntry) error
}

// FileOpenerFunc adapts a function to FileOpener.
type FileOpenerFunc func(ctx context.Context, entry models.DirectoryEntry) error

func (f FileOpenerFunc) OpenFile(ctx context.Context, entry models.DirectoryEntry) error {
	return f(ctx, entry)
}

// SelectionIndex maps keyboard and pointer input onto a controller's
// listing. Moves clamp at both ends and never wrap.
type SelectionIndex struct {
	ctrl   *Controller
	opener FileOpener
}

// NewSelectionIndex binds a selection layer to ctrl. opener may be nil, in
// which case activating a file only publishes an open_file event.
func NewSelectionIndex(ctrl *Controller, opener FileOpener) *SelectionIndex {
	return &SelectionIndex{ctrl: ctrl, opener: opener}
}

// MoveDown highlights the next entry.
func (s *SelectionIndex) MoveDown() {
	_, _ = s.ctrl.setSelected(func(cur, _ int) int { return cur + 1 })
}

// MoveUp highlights the previous entry.
func (s *SelectionIndex) MoveUp() {
	_, _ = s.ctrl.setSelected(func(cur, _ int) int { return cur - 1 })
}

// Home highlights the first entry.
func (s *SelectionIndex) Home() {
	_, _ = s.ctrl.setSelected(func(_, _ int) int { return 0 })
}

// End highlights the last entry.
func (s *SelectionIndex) End() {
	_, _ = s.ctrl.setSelected(func(_, n int) int { return n - 1 })
}

// SelectByIndex highlights entry i, as from a pointer click.
func (s *SelectionIndex) SelectByIndex(i int) error {
	var outOfRange bool
	_, err := s.ctrl.setSelected(func(cur, n int) int {
		if i < 0 || i >= n {
			outOfRange = true
			return cur
		}
		return i
	})
	if err != nil {
		return err
	}
	if outOfRange {
		return fmt.Errorf("index %d: %w", i, ErrIndexOutOfRange)
	}
	return nil
}

// Selected returns the highlighted entry, if any.
func (s *SelectionIndex) Selected() (models.DirectoryEntry, bool) {
	return s.ctrl.State().Selected()
}

// Activate acts on the highlighted entry: directories are entered, files
// are handed to the opener. With nothing highlighted it does nothing.
func (s *SelectionIndex) Activate(ctx context.Context) error {
	state := s.ctrl.State()
	if state.Loading {
		return nil
	}
	entry, ok := state.Selected()
	if !ok {
		return nil
	}

	if entry.IsDir() {
		return s.ctrl.NavigateInto(ctx, entry)
	}

	s.ctrl.publish(NewOpenFileEvent(s.ctrl.opts.Source, entry))
	if s.opener == nil {
		return nil
	}
	return s.opener.OpenFile(ctx, entry)
}

// Back navigates to the parent directory.
func (s *SelectionIndex) Back(ctx context.Context) error {
	return s.ctrl.NavigateUp(ctx)
}
