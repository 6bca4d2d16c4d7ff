package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/odoobiznes/kms-fsnav/internal/constants"
	"github.com/odoobiznes/kms-fsnav/internal/events"
	"github.com/odoobiznes/kms-fsnav/internal/logging"
	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/pathmodel"
	"github.com/odoobiznes/kms-fsnav/internal/progress"
	"github.com/odoobiznes/kms-fsnav/internal/walker"
)

var (
	ErrBusy           = errors.New("an import is already running")
	ErrAborted        = errors.New("import aborted")
	ErrNothingToRetry = errors.New("no failed import to retry")
	ErrEmptyManifest  = errors.New("nothing to import")
)

// Options configures an Uploader.
type Options struct {
	// Name labels progress and log lines; defaults to the manifest root name.
	Name string

	// OnProgress receives every progress change, in order.
	OnProgress func(Progress)

	Logger   *logging.Logger
	EventBus *events.EventBus
}

// Uploader drives one import through its phases. A failed import keeps
// its manifest, so Retry resends it without walking the tree again.
type Uploader struct {
	transport Transport
	opts      Options
	logger    *logging.Logger

	emitMu sync.Mutex // orders progress delivery

	mu       sync.Mutex
	manifest *walker.Manifest
	target   string
	progress Progress
	running  bool
	aborted  bool
	cancel   context.CancelFunc
}

// New creates an Uploader that sends batches over transport.
func New(transport Transport, opts Options) *Uploader {
	return &Uploader{
		transport: transport,
		opts:      opts,
		logger:    logging.OrNop(opts.Logger).WithComponent("importer"),
	}
}

// Run imports manifest into targetPath and blocks until the import is Done
// or Failed.
func (u *Uploader) Run(ctx context.Context, manifest *walker.Manifest, targetPath string) (*Result, error) {
	if manifest == nil || manifest.Len() == 0 {
		return nil, ErrEmptyManifest
	}

	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return nil, ErrBusy
	}
	u.manifest = manifest
	u.target = pathmodel.Clean(targetPath)
	u.aborted = false
	runCtx := u.beginLocked(ctx)
	u.mu.Unlock()

	return u.execute(runCtx)
}

// Retry re-runs the last failed import from Enumerating, reusing its
// manifest.
func (u *Uploader) Retry(ctx context.Context) (*Result, error) {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return nil, ErrBusy
	}
	if u.manifest == nil || u.progress.Phase != PhaseFailed {
		u.mu.Unlock()
		return nil, ErrNothingToRetry
	}
	runCtx := u.beginLocked(ctx)
	u.mu.Unlock()

	return u.execute(runCtx)
}

// Abort cancels the running import and discards its manifest. An import
// aborted before Transferring has sent nothing. Aborting an idle uploader
// discards the manifest of its last failed import.
func (u *Uploader) Abort() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.aborted = true
	if !u.running {
		u.manifest = nil
	}
	if u.cancel != nil {
		u.cancel()
	}
}

// Manifest returns the manifest currently held, or nil.
func (u *Uploader) Manifest() *walker.Manifest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.manifest
}

// Progress returns the latest progress.
func (u *Uploader) Progress() Progress {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.progress
}

func (u *Uploader) beginLocked(ctx context.Context) context.Context {
	runCtx, cancel := context.WithCancel(ctx)
	u.running = true
	u.cancel = cancel
	return runCtx
}

func (u *Uploader) execute(ctx context.Context) (*Result, error) {
	defer func() {
		u.mu.Lock()
		if u.cancel != nil {
			u.cancel()
			u.cancel = nil
		}
		u.running = false
		if u.aborted {
			u.manifest = nil
		}
		u.mu.Unlock()
	}()

	u.mu.Lock()
	manifest, target := u.manifest, u.target
	u.mu.Unlock()

	name := u.opts.Name
	if name == "" {
		name = manifest.RootName()
	}
	logger := u.logger
	start := time.Now()
	files := manifest.Files()
	n := len(files)

	u.emit(name, target, Progress{
		Phase:   PhaseEnumerating,
		Percent: 0,
		Message: fmt.Sprintf("%d files, %s", n, progress.FormatBytes(int64(manifest.TotalBytes()))),
	})

	batch := &Batch{
		TargetPath: target,
		RootName:   manifest.RootName(),
		Parts:      make([]Part, 0, n),
	}
	var skipped []walker.FileFailure
	last := -1
	for i, f := range files {
		if err := u.checkpoint(ctx); err != nil {
			return nil, u.fail(name, target, err)
		}
		if err := validRelativePath(f.RelativePath); err != nil {
			return nil, u.fail(name, target, err)
		}
		// A file that cannot be opened is left out; the rest still go.
		if err := probeReadable(f); err != nil {
			logger.Warn().Err(err).Str("file", f.RelativePath).Msg("skipping unreadable file")
			skipped = append(skipped, walker.FileFailure{RelativePath: f.RelativePath, Err: err})
		} else {
			batch.Parts = append(batch.Parts, Part{RelativePath: f.RelativePath, Size: f.Size, Open: f.Open})
			batch.TotalBytes += f.Size
		}

		pct := (i + 1) * constants.PackagingPercentSpan / n
		if pct != last {
			last = pct
			u.emit(name, target, Progress{Phase: PhasePackaging, Percent: pct, Message: f.RelativePath})
		}
	}

	if err := u.checkpoint(ctx); err != nil {
		return nil, u.fail(name, target, err)
	}
	if len(batch.Parts) == 0 {
		return nil, u.fail(name, target, fmt.Errorf("%w: none of %d files could be read: %w", ErrEmptyManifest, n, skipped[0].Err))
	}

	u.emit(name, target, Progress{
		Phase:   PhaseTransferring,
		Percent: constants.PackagingPercentSpan,
		Message: "sending via " + u.transport.Name(),
	})

	var onTransfer func(sent, total int64)
	if u.transport.ReportsProgress() {
		onTransfer = func(sent, total int64) {
			u.advance(name, target, transferPercent(sent, total))
		}
	} else {
		u.emit(name, target, Progress{
			Phase:   PhaseTransferring,
			Percent: constants.TransferWatermarkPercent,
			Message: "sending via " + u.transport.Name(),
		})
	}

	logger.Info().
		Str("import", name).
		Str("target", target).
		Str("transport", u.transport.Name()).
		Int("files", len(batch.Parts)).
		Int("skipped", len(skipped)).
		Int64("bytes", batch.TotalBytes).
		Msg("transferring batch")

	tr, err := u.transport.Transfer(ctx, batch, onTransfer)
	if err != nil {
		if abortErr := u.checkpoint(ctx); errors.Is(abortErr, ErrAborted) {
			err = abortErr
		}
		return nil, u.fail(name, target, err)
	}

	res := &Result{
		RootName:   manifest.RootName(),
		TargetPath: target,
		FilesCount: len(batch.Parts),
		TotalBytes: uint64(batch.TotalBytes),
		Skipped:    skipped,
		Message:    tr.Message,
		Location:   tr.Location,
		Duration:   time.Since(start),
	}
	if tr.FilesCount > 0 {
		res.FilesCount = tr.FilesCount
	}
	if tr.TotalBytes > 0 {
		res.TotalBytes = uint64(tr.TotalBytes)
	}
	if res.Message == "" {
		res.Message = fmt.Sprintf("imported %d files", res.FilesCount)
	}

	u.emit(name, target, Progress{Phase: PhaseDone, Percent: 100, Message: res.Message})
	logger.Info().
		Str("import", name).
		Int("files", res.FilesCount).
		Uint64("bytes", res.TotalBytes).
		Dur("duration", res.Duration).
		Msg("import complete")
	return res, nil
}

// probeReadable opens and closes f so that an unreadable file is found
// before the transfer starts.
func probeReadable(f walker.FileHandle) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	return rc.Close()
}

// checkpoint reports whether the run should stop before its next step.
func (u *Uploader) checkpoint(ctx context.Context) error {
	u.mu.Lock()
	aborted := u.aborted
	u.mu.Unlock()
	if aborted {
		return ErrAborted
	}
	return ctx.Err()
}

// fail moves the import to Failed and returns err carrying its kind.
func (u *Uploader) fail(name, target string, err error) error {
	kind := failureKind(err)

	u.mu.Lock()
	pct := u.progress.Percent
	u.mu.Unlock()

	msg := kind.Message()
	if errors.Is(err, ErrAborted) {
		msg = ErrAborted.Error()
	}
	u.emit(name, target, Progress{Phase: PhaseFailed, Percent: pct, Message: msg, Kind: &kind})

	u.logger.Error().Err(err).Str("import", name).Str("target", target).Str("kind", kind.String()).Msg("import failed")
	return models.WithKind(kind, fmt.Errorf("import %s into %s: %w", name, target, err))
}

// advance reports transport progress, never moving backwards and never
// after the transfer phase has ended.
func (u *Uploader) advance(name, target string, pct int) {
	u.emitMu.Lock()
	defer u.emitMu.Unlock()

	u.mu.Lock()
	if u.progress.Phase != PhaseTransferring || pct <= u.progress.Percent {
		u.mu.Unlock()
		return
	}
	p := Progress{Phase: PhaseTransferring, Percent: pct, Message: u.progress.Message}
	u.progress = p
	u.mu.Unlock()

	u.deliver(name, target, p)
}

func (u *Uploader) emit(name, target string, p Progress) {
	u.emitMu.Lock()
	defer u.emitMu.Unlock()

	u.mu.Lock()
	u.progress = p
	u.mu.Unlock()

	u.deliver(name, target, p)
}

func (u *Uploader) deliver(name, target string, p Progress) {
	if u.opts.OnProgress != nil {
		u.opts.OnProgress(p)
	}
	u.opts.EventBus.Publish(NewImportProgressEvent(name, target, p))
}

// transferPercent maps transport bytes onto the span after packaging.
func transferPercent(sent, total int64) int {
	if total <= 0 {
		return constants.PackagingPercentSpan
	}
	if sent > total {
		sent = total
	}
	span := int64(constants.TransferMaxPercent - constants.PackagingPercentSpan)
	return constants.PackagingPercentSpan + int(sent*span/total)
}

// failureKind classifies a failure that may not carry a kind of its own.
func failureKind(err error) models.ErrorKind {
	var ke models.KindedError
	if errors.As(err, &ke) {
		return ke.ErrorKind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrTransport
	}
	return models.ErrUnknown
}

// validRelativePath rejects paths that would land outside the target.
func validRelativePath(rel string) error {
	if rel == "" || strings.HasPrefix(rel, "/") {
		return fmt.Errorf("invalid relative path %q", rel)
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("invalid relative path %q", rel)
		}
	}
	return nil
}
