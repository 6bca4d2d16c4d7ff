// Package walker flattens local directory trees into import manifests.
package walker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/odoobiznes/kms-fsnav/internal/constants"
	"github.com/odoobiznes/kms-fsnav/internal/events"
	"github.com/odoobiznes/kms-fsnav/internal/localfs"
	"github.com/odoobiznes/kms-fsnav/internal/logging"
	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/util/filter"
)

// ErrNoRoots is returned by Walk when given nothing to traverse.
var ErrNoRoots = errors.New("no entries to import")

// WalkOptions configures a traversal.
type WalkOptions struct {
	// Concurrency bounds in-flight directory expansions.
	Concurrency int

	// IncludeHidden keeps dot-named files and directories below the roots.
	// Roots are always included.
	IncludeHidden bool

	// Filter drops files and prunes directories below the roots, matching
	// paths relative to the root. nil keeps everything.
	Filter *filter.Config

	// OnProgress is called from the coordinating goroutine after each
	// directory expansion.
	OnProgress func(Progress)

	Logger   *logging.Logger
	EventBus *events.EventBus
}

// Progress is a running traversal count.
type Progress struct {
	Files       int
	Bytes       uint64
	Directories int // expanded so far
	Pending     int // queued or in flight
}

// WalkProgressEvent is published on the event bus alongside OnProgress.
type WalkProgressEvent struct {
	events.BaseEvent
	RootName string
	Progress Progress
}

// dirTask is a directory waiting to be expanded.
type dirTask struct {
	entry   localfs.Entry
	relPath string
	root    bool
}

// expansion is the outcome of one Children call.
type expansion struct {
	task     dirTask
	children []localfs.Entry
	err      error
}

// Walk traverses roots and returns the manifest of every file found.
//
// Traversal is iterative: a single coordinator owns the work queue and the
// set of expanded directory IDs, and hands directories to at most
// Concurrency goroutines at a time. A directory is expanded at most once
// no matter how many paths lead to it; a path through a symbolic link is
// used only when no plain path reaches the directory, and among links the
// lexically smallest path wins. Unreadable entries below the roots
// are recorded in Manifest.Failures; failing to read a root, or ctx
// ending, aborts the walk.
func Walk(ctx context.Context, roots []localfs.Entry, opts WalkOptions) (*Manifest, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = constants.DefaultWalkConcurrency
	}
	if concurrency > constants.MaxWalkConcurrency {
		concurrency = constants.MaxWalkConcurrency
	}
	logger := logging.OrNop(opts.Logger).WithComponent("walker")

	rootName := roots[0].Name()
	b := newBuilder(rootName)
	expanded := make(map[string]bool)
	var pending []dirTask
	var linked []dirTask // reached through a symlink, expanded last
	dirs := 0

	push := func(t dirTask) {
		id := t.entry.ID()
		if expanded[id] {
			logger.Debug().Str("path", t.relPath).Str("id", id).Msg("directory already expanded")
			return
		}
		expanded[id] = true
		pending = append(pending, t)
	}

	// promoteLinked queues the deferred link targets once every plain path
	// has been expanded.
	promoteLinked := func() {
		batch := linked
		linked = nil
		sort.Slice(batch, func(i, j int) bool { return batch[i].relPath < batch[j].relPath })
		// pending is a stack; push in reverse so the smallest path pops first.
		for i := len(batch) - 1; i >= 0; i-- {
			push(batch[i])
		}
	}

	// enqueue routes one entry: files go straight into the manifest,
	// directories onto the queue unless already seen.
	enqueue := func(e localfs.Entry, relPath string, root bool) {
		if err := localfs.EntryError(e); err != nil {
			b.addFailure(relPath, err)
			logger.Warn().Err(err).Str("path", relPath).Msg("skipping unreadable entry")
			return
		}
		if !root && !opts.Filter.IsEmpty() {
			below := belowRoot(relPath)
			if (e.IsDir() && !opts.Filter.KeepDir(below)) || (!e.IsDir() && !opts.Filter.KeepFile(below)) {
				return
			}
		}
		if !e.IsDir() {
			b.addFile(NewFileHandle(relPath, e.Size(), e.Open))
			return
		}
		if !root && localfs.IsLink(e) {
			linked = append(linked, dirTask{entry: e, relPath: relPath})
			return
		}
		push(dirTask{entry: e, relPath: relPath, root: root})
	}

	for _, r := range roots {
		enqueue(r, r.Name(), true)
	}

	sem := make(chan struct{}, concurrency)
	// A worker keeps its slot until its result is handed over, so at most
	// cap(sem) expansions run at once.
	results := make(chan expansion, concurrency)
	inflight := 0
	lastReport := time.Time{}

	report := func(force bool) {
		if !force && time.Since(lastReport) < 100*time.Millisecond {
			return
		}
		lastReport = time.Now()
		files, bytes := b.counts()
		p := Progress{Files: files, Bytes: bytes, Directories: dirs, Pending: len(pending) + inflight}
		if opts.OnProgress != nil {
			opts.OnProgress(p)
		}
		opts.EventBus.Publish(&WalkProgressEvent{
			BaseEvent: events.NewBase(events.EventWalkProgress),
			RootName:  rootName,
			Progress:  p,
		})
	}

	handle := func(r expansion) error {
		inflight--
		dirs++
		if r.err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if r.task.root {
				return models.WithKind(models.ErrUnknown, fmt.Errorf("failed to read %s: %w", r.task.relPath, r.err))
			}
			b.addFailure(r.task.relPath, r.err)
			logger.Warn().Err(r.err).Str("path", r.task.relPath).Msg("skipping unreadable directory")
			return nil
		}
		for _, child := range r.children {
			name := child.Name()
			if !opts.IncludeHidden && localfs.IsHiddenName(name) {
				b.addHidden()
				continue
			}
			enqueue(child, r.task.relPath+"/"+name, false)
		}
		report(false)
		return nil
	}

	for len(pending) > 0 || inflight > 0 || len(linked) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(pending) == 0 && inflight == 0 {
			promoteLinked()
			continue
		}
		if len(pending) > 0 {
			select {
			case sem <- struct{}{}:
				task := pending[len(pending)-1]
				pending = pending[:len(pending)-1]
				inflight++
				go func(t dirTask) {
					children, err := t.entry.Children(ctx)
					select {
					case results <- expansion{task: t, children: children, err: err}:
					case <-ctx.Done():
					}
					<-sem
				}(task)
			case r := <-results:
				if err := handle(r); err != nil {
					return nil, err
				}
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		select {
		case r := <-results:
			if err := handle(r); err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	report(true)
	m := b.freeze()
	logger.Info().
		Str("root", m.RootName()).
		Int("files", m.Len()).
		Uint64("bytes", m.TotalBytes()).
		Int("failures", len(m.failures)).
		Int("hidden", m.hiddenSkipped).
		Msg("walk complete")
	return m, nil
}

// belowRoot strips the root name from a manifest-relative path.
func belowRoot(relPath string) string {
	if i := strings.IndexByte(relPath, '/'); i >= 0 {
		return relPath[i+1:]
	}
	return relPath
}
