package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/odoobiznes/kms-fsnav/internal/api"
	"github.com/odoobiznes/kms-fsnav/internal/events"
	"github.com/odoobiznes/kms-fsnav/internal/logging"
	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/pathmodel"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("navigation surface closed")
	// ErrNotDirectory is returned by NavigateInto for file entries.
	ErrNotDirectory = errors.New("entry is not a directory")
	// ErrNotOpen is returned by path-relative operations before Open.
	ErrNotOpen = errors.New("navigation surface not opened")
	// ErrEmptyName is returned by CreateSubdirectory for a blank name.
	ErrEmptyName = errors.New("folder name is empty")
	// ErrNameNotConfirmed is returned when the user declines a sanitized name.
	ErrNameNotConfirmed = errors.New("sanitized folder name was not confirmed")
)

// ConfirmFunc asks the user to accept a sanitized folder name.
type ConfirmFunc func(original, sanitized string) bool

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	// Access is forwarded verbatim on every listing and create call.
	Access api.AccessOptions

	// IncludeHidden keeps dot-named entries in listings.
	IncludeHidden bool

	// Source names the surface on published events ("picker", "viewer").
	Source string

	Logger   *logging.Logger
	EventBus *events.EventBus

	// OnChange receives every new snapshot. It runs on the goroutine that
	// changed the state and must not block.
	OnChange func(State)
}

// Controller owns the current path and listing of one browsing surface.
// Listing requests run on their own goroutines; only the response to the
// most recently issued request is applied.
type Controller struct {
	client api.DirectoryClient
	opts   ControllerOptions
	logger *logging.Logger

	mu       sync.Mutex
	state    State
	seq      uint64
	closed   bool
	cancelFn context.CancelFunc // cancels the in-flight listing

	wg sync.WaitGroup
}

// NewController creates an Idle controller.
func NewController(client api.DirectoryClient, opts ControllerOptions) *Controller {
	if opts.Source == "" {
		opts.Source = "picker"
	}
	return &Controller{
		client: client,
		opts:   opts,
		logger: logging.OrNop(opts.Logger).WithComponent("navigation"),
	}
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Wait blocks until every issued listing request has settled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Open starts browsing at initialPath (the root when empty).
func (c *Controller) Open(ctx context.Context, initialPath string) error {
	if initialPath == "" {
		initialPath = pathmodel.Root
	}
	return c.load(ctx, pathmodel.Clean(initialPath), true)
}

// NavigateInto descends into a directory entry.
func (c *Controller) NavigateInto(ctx context.Context, entry models.DirectoryEntry) error {
	if !entry.IsDir() {
		return fmt.Errorf("%s: %w", entry.Path, ErrNotDirectory)
	}
	return c.load(ctx, pathmodel.Clean(entry.Path), true)
}

// NavigateUp moves to the parent of the current path. At the root it
// reloads the root.
func (c *Controller) NavigateUp(ctx context.Context) error {
	current, err := c.currentPath()
	if err != nil {
		return err
	}
	return c.load(ctx, pathmodel.Parent(current), true)
}

// NavigateTo moves to an explicit path. A relative path is resolved
// against the current path.
func (c *Controller) NavigateTo(ctx context.Context, path string) error {
	target := strings.TrimSpace(path)
	if !strings.HasPrefix(target, "/") {
		c.mu.Lock()
		current := c.state.CurrentPath
		c.mu.Unlock()
		if current == "" {
			current = pathmodel.Root
		}
		target = pathmodel.Join(current, target)
	}
	return c.load(ctx, pathmodel.Clean(target), true)
}

// Refresh reloads the current path, keeping the selection where possible.
func (c *Controller) Refresh(ctx context.Context) error {
	current, err := c.currentPath()
	if err != nil {
		return err
	}
	return c.load(ctx, current, false)
}

// CreateSubdirectory creates name under the current path. Unsafe
// characters are replaced; when that changes the name, confirm must accept
// the sanitized form or nothing is created. Success triggers a Refresh.
// The create call itself blocks; callers on an interactive loop should run
// it off that loop.
func (c *Controller) CreateSubdirectory(ctx context.Context, name string, confirm ConfirmFunc) (*api.CreateResult, error) {
	current, err := c.currentPath()
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		return nil, models.WithKind(models.ErrInvalidName, ErrEmptyName)
	}

	sanitized, changed := pathmodel.SanitizeName(name)
	if sanitized == "" || sanitized == "." || sanitized == ".." {
		return nil, models.WithKind(models.ErrInvalidName, fmt.Errorf("folder name %q is not usable", name))
	}
	if changed {
		if confirm == nil || !confirm(name, sanitized) {
			c.logger.Debug().Str("name", name).Str("sanitized", sanitized).Msg("sanitized folder name declined")
			return nil, models.WithKind(models.ErrInvalidName, ErrNameNotConfirmed)
		}
	}

	target := pathmodel.Join(current, sanitized)
	result, err := c.client.CreateDirectory(ctx, target, c.opts.Access)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", target).Msg("create folder failed")
		return nil, err
	}

	c.logger.Info().Str("path", target).Msg("folder created")
	if err := c.Refresh(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// Close invalidates the controller. Responses still in flight are
// discarded and every later call returns ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.seq++
	if c.cancelFn != nil {
		c.cancelFn()
		c.cancelFn = nil
	}
	c.mu.Unlock()

	c.logger.Debug().Str("source", c.opts.Source).Msg("navigation surface closed")
}

func (c *Controller) currentPath() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrClosed
	}
	if c.state.CurrentPath == "" {
		return "", ErrNotOpen
	}
	return c.state.CurrentPath, nil
}

// load issues a listing request for path under a new sequence number and
// moves the state to Loading. Navigation clears the listing and resets the
// selection; a refresh keeps both until the response arrives.
func (c *Controller) load(ctx context.Context, path string, navigate bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	c.seq++
	seq := c.seq
	if c.cancelFn != nil {
		c.cancelFn()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	c.cancelFn = cancel

	c.state.CurrentPath = path
	c.state.Status = StatusLoading
	c.state.Loading = true
	c.state.LastError = nil
	c.state.Err = nil
	c.state.Seq = seq
	if navigate {
		c.state.Entries = nil
		c.state.SelectedIndex = 0
	}
	c.state.Version++
	snapshot := c.state.clone()
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Debug().Str("path", path).Uint64("seq", seq).Msg("listing")
	c.publish(NewNavigationLoadingEvent(c.opts.Source, path, seq))
	c.notify(snapshot)

	go func() {
		defer c.wg.Done()
		defer cancel()

		entries, err := c.client.List(loadCtx, path, c.opts.Access)
		c.apply(seq, path, entries, err)
	}()

	return nil
}

// apply installs a listing response if it belongs to the latest request.
func (c *Controller) apply(seq uint64, path string, entries []models.DirectoryEntry, err error) {
	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug().Str("path", path).Uint64("seq", seq).Msg("discarding stale listing")
		return
	}
	c.cancelFn = nil

	c.state.Loading = false
	if err != nil {
		kind := models.KindOf(err)
		c.state.Status = StatusError
		c.state.LastError = &kind
		c.state.Err = err
		c.state.Entries = nil
		c.state.SelectedIndex = 0
	} else {
		if !c.opts.IncludeHidden {
			entries = filterHidden(entries)
		}
		SortEntries(entries)

		c.state.Status = StatusReady
		c.state.Entries = entries
		c.state.SelectedIndex = clampIndex(c.state.SelectedIndex, len(entries))
	}
	c.state.Version++
	snapshot := c.state.clone()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Str("kind", models.KindOf(err).String()).Msg("listing failed")
		c.publish(NewNavigationErrorEvent(c.opts.Source, path, err))
	}
	c.notify(snapshot)
}

// setSelected moves the highlight to next(current, len(entries)), clamped.
// next always runs under the lock, even for an empty listing, so it sees
// the same n the move is applied to. It reports whether the index changed.
func (c *Controller) setSelected(next func(current, n int) int) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	n := len(c.state.Entries)
	want := next(c.state.SelectedIndex, n)
	if n == 0 {
		c.mu.Unlock()
		return false, nil
	}
	index := clampIndex(want, n)
	if index == c.state.SelectedIndex {
		c.mu.Unlock()
		return false, nil
	}
	c.state.SelectedIndex = index
	c.state.Version++
	snapshot := c.state.clone()
	c.mu.Unlock()

	c.publish(NewSelectionChangedEvent(c.opts.Source, index, snapshot.Entries[index]))
	c.notify(snapshot)
	return true, nil
}

func (c *Controller) notify(snapshot State) {
	c.publish(NewNavigationChangedEvent(c.opts.Source, snapshot))
	if c.opts.OnChange != nil {
		c.opts.OnChange(snapshot)
	}
}

func (c *Controller) publish(event events.Event) {
	if c.opts.EventBus != nil {
		c.opts.EventBus.Publish(event)
	}
}

// clampIndex bounds i to [0, n-1], or 0 when n is 0.
func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
