package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odoobiznes/kms-fsnav/internal/api"
	"github.com/odoobiznes/kms-fsnav/internal/events"
	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/walker"
)

type fakeTransport struct {
	mu       sync.Mutex
	calls    int
	batches  []*Batch
	reports  bool
	steps    []int64
	errs     []error // per call; nil or missing means success
	block    bool    // wait for ctx before returning
	started  chan struct{}
	location string
}

func (f *fakeTransport) Name() string          { return "fake" }
func (f *fakeTransport) ReportsProgress() bool { return f.reports }

func (f *fakeTransport) Transfer(ctx context.Context, batch *Batch, progress func(sent, total int64)) (*TransferResult, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.batches = append(f.batches, batch)
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if progress != nil {
		for _, s := range f.steps {
			progress(s, batch.TotalBytes)
		}
	}
	return &TransferResult{FilesCount: len(batch.Parts), TotalBytes: batch.TotalBytes, Message: "ok", Location: f.location}, nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testManifest(paths ...string) *walker.Manifest {
	files := make([]walker.FileHandle, len(paths))
	for i, p := range paths {
		content := strings.Repeat("x", 10)
		files[i] = walker.NewFileHandle(p, 10, func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		})
	}
	return walker.NewManifest(strings.Split(paths[0], "/")[0], files)
}

type recorder struct {
	mu   sync.Mutex
	seen []Progress
}

func (r *recorder) record(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, p)
}

func (r *recorder) progress() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Progress(nil), r.seen...)
}

func percents(ps []Progress) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = fmt.Sprintf("%s %d", p.Phase, p.Percent)
	}
	return out
}

func TestRunReportsPhasesWithTransportProgress(t *testing.T) {
	tr := &fakeTransport{reports: true, steps: []int64{0, 20, 40}, location: "/srv/in"}
	rec := &recorder{}
	u := New(tr, Options{OnProgress: rec.record})

	m := testManifest("proj/a.txt", "proj/b.go", "proj/sub/c.txt", "proj/sub/d")
	res, err := u.Run(context.Background(), m, "/srv/in/")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Enumerating 0",
		"Packaging 12",
		"Packaging 25",
		"Packaging 37",
		"Packaging 50",
		"Transferring 50",
		"Transferring 74",
		"Transferring 99",
		"Done 100",
	}, percents(rec.progress()))

	assert.Equal(t, "proj", res.RootName)
	assert.Equal(t, "/srv/in", res.TargetPath)
	assert.Equal(t, 4, res.FilesCount)
	assert.Equal(t, uint64(40), res.TotalBytes)
	assert.Equal(t, "ok", res.Message)
	assert.Equal(t, "/srv/in", res.Location)

	require.Len(t, tr.batches, 1)
	b := tr.batches[0]
	assert.Equal(t, "/srv/in", b.TargetPath)
	assert.Equal(t, "proj", b.RootName)
	assert.Equal(t, int64(40), b.TotalBytes)
	require.Len(t, b.Parts, 4)
	assert.Equal(t, "proj/sub/c.txt", b.Parts[2].RelativePath)

	rc, err := b.Parts[0].Open()
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Len(t, data, 10)
}

func TestRunUsesWatermarkWithoutTransportProgress(t *testing.T) {
	tr := &fakeTransport{reports: false}
	rec := &recorder{}
	u := New(tr, Options{OnProgress: rec.record})

	_, err := u.Run(context.Background(), testManifest("proj/a.txt"), "/srv")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Enumerating 0",
		"Packaging 50",
		"Transferring 50",
		"Transferring 60",
		"Done 100",
	}, percents(rec.progress()))
}

func TestProgressNeverMovesBackwards(t *testing.T) {
	tr := &fakeTransport{reports: true, steps: []int64{30, 10, 30, 40, 5}}
	rec := &recorder{}
	u := New(tr, Options{OnProgress: rec.record})

	_, err := u.Run(context.Background(), testManifest("p/a", "p/b", "p/c", "p/d"), "/x")
	require.NoError(t, err)

	seen := rec.progress()
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i].Phase, seen[i-1].Phase, "phase regressed at %d", i)
		assert.GreaterOrEqual(t, seen[i].Percent, seen[i-1].Percent, "percent regressed at %d", i)
	}
}

func TestFailedImportKeepsManifestForRetry(t *testing.T) {
	transportErr := models.WithKind(models.ErrTransport, errors.New("connection reset"))
	tr := &fakeTransport{errs: []error{transportErr}}
	u := New(tr, Options{})
	m := testManifest("proj/a.txt", "proj/b.txt")

	_, err := u.Run(context.Background(), m, "/srv")
	require.Error(t, err)
	assert.Equal(t, models.ErrTransport, models.KindOf(err))

	p := u.Progress()
	assert.Equal(t, PhaseFailed, p.Phase)
	require.NotNil(t, p.Kind)
	assert.Equal(t, models.ErrTransport, *p.Kind)
	assert.Equal(t, models.ErrTransport.Message(), p.Message)
	assert.Same(t, m, u.Manifest())

	res, err := u.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesCount)
	assert.Equal(t, 2, tr.callCount())
	assert.Equal(t, PhaseDone, u.Progress().Phase)
	assert.Equal(t, tr.batches[0].Parts[1].RelativePath, tr.batches[1].Parts[1].RelativePath)
}

func TestRetryRequiresFailure(t *testing.T) {
	u := New(&fakeTransport{}, Options{})
	_, err := u.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)

	_, err = u.Run(context.Background(), testManifest("p/a"), "/x")
	require.NoError(t, err)
	_, err = u.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)
}

func TestAbortBeforeTransferSendsNothing(t *testing.T) {
	tr := &fakeTransport{}
	var u *Uploader
	u = New(tr, Options{OnProgress: func(p Progress) {
		if p.Phase == PhasePackaging {
			u.Abort()
		}
	}})

	_, err := u.Run(context.Background(), testManifest("p/a", "p/b", "p/c"), "/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 0, tr.callCount())
	assert.Nil(t, u.Manifest())
	assert.Equal(t, PhaseFailed, u.Progress().Phase)

	_, err = u.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)
}

func TestAbortDuringTransfer(t *testing.T) {
	tr := &fakeTransport{block: true, started: make(chan struct{})}
	u := New(tr, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := u.Run(context.Background(), testManifest("p/a"), "/x")
		done <- err
	}()

	<-tr.started
	_, err := u.Run(context.Background(), testManifest("p/b"), "/y")
	assert.ErrorIs(t, err, ErrBusy)

	u.Abort()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrAborted)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Abort")
	}
	assert.Nil(t, u.Manifest())
}

func TestAbortIdleDiscardsFailedManifest(t *testing.T) {
	tr := &fakeTransport{errs: []error{errors.New("boom")}}
	u := New(tr, Options{})

	_, err := u.Run(context.Background(), testManifest("p/a"), "/x")
	require.Error(t, err)
	assert.Equal(t, models.ErrUnknown, models.KindOf(err))
	require.NotNil(t, u.Manifest())

	u.Abort()
	assert.Nil(t, u.Manifest())
	_, err = u.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)
}

func TestDeadlineMapsToTransport(t *testing.T) {
	tr := &fakeTransport{errs: []error{context.DeadlineExceeded}}
	u := New(tr, Options{})

	_, err := u.Run(context.Background(), testManifest("p/a"), "/x")
	require.Error(t, err)
	assert.Equal(t, models.ErrTransport, models.KindOf(err))
}

func TestEmptyManifestIsRejected(t *testing.T) {
	u := New(&fakeTransport{}, Options{})
	_, err := u.Run(context.Background(), walker.NewManifest("empty", nil), "/x")
	assert.ErrorIs(t, err, ErrEmptyManifest)
	_, err = u.Run(context.Background(), nil, "/x")
	assert.ErrorIs(t, err, ErrEmptyManifest)
}

func TestPackagingRejectsEscapingPaths(t *testing.T) {
	for _, rel := range []string{"../etc/passwd", "/abs", "p//a", "p/./a", ""} {
		t.Run(rel, func(t *testing.T) {
			tr := &fakeTransport{}
			u := New(tr, Options{})
			m := walker.NewManifest("p", []walker.FileHandle{walker.NewFileHandle(rel, 1, nil)})

			_, err := u.Run(context.Background(), m, "/x")
			require.Error(t, err)
			assert.Equal(t, models.ErrUnknown, models.KindOf(err))
			assert.Equal(t, PhaseFailed, u.Progress().Phase)
			assert.Equal(t, 0, tr.callCount())
		})
	}
}

func TestProgressEventsArePublished(t *testing.T) {
	bus := events.NewEventBus(0)
	sub := bus.Subscribe(events.EventImportProgress)
	u := New(&fakeTransport{}, Options{Name: "photos", EventBus: bus})

	_, err := u.Run(context.Background(), testManifest("p/a"), "/x")
	require.NoError(t, err)

	var last *ImportProgressEvent
	for {
		select {
		case ev := <-sub:
			e, ok := ev.(*ImportProgressEvent)
			require.True(t, ok)
			assert.Equal(t, "photos", e.Name)
			assert.Equal(t, "/x", e.TargetPath)
			last = e
			continue
		default:
		}
		break
	}
	require.NotNil(t, last)
	assert.Equal(t, PhaseDone, last.Progress.Phase)
	assert.Equal(t, 100, last.Progress.Percent)
}

func TestTransferPercent(t *testing.T) {
	tests := []struct {
		sent, total int64
		want        int
	}{
		{0, 100, 50},
		{50, 100, 74},
		{100, 100, 99},
		{200, 100, 99},
		{5, 0, 50},
	}
	for _, tt := range tests {
		if got := transferPercent(tt.sent, tt.total); got != tt.want {
			t.Errorf("transferPercent(%d, %d) = %d, want %d", tt.sent, tt.total, got, tt.want)
		}
	}
}

type fakeBatchUploader struct {
	target string
	parts  []api.UploadPart
	resp   *models.ImportUploadResponse
	err    error
}

func (f *fakeBatchUploader) UploadBatch(ctx context.Context, targetPath string, parts []api.UploadPart, onProgress func(sent, total int64)) (*models.ImportUploadResponse, error) {
	f.target = targetPath
	f.parts = parts
	if onProgress != nil {
		onProgress(10, 10)
	}
	return f.resp, f.err
}

func TestHTTPTransport(t *testing.T) {
	fake := &fakeBatchUploader{resp: &models.ImportUploadResponse{Success: true, Message: "2 files imported", FilesCount: 2, TotalSize: 20}}
	tr := NewHTTPTransport(fake)
	assert.True(t, tr.ReportsProgress())
	assert.Equal(t, "http", tr.Name())

	rec := &recorder{}
	u := New(tr, Options{OnProgress: rec.record})
	res, err := u.Run(context.Background(), testManifest("p/a", "p/b"), "/srv/kms")
	require.NoError(t, err)

	assert.Equal(t, "/srv/kms", fake.target)
	require.Len(t, fake.parts, 2)
	assert.Equal(t, "p/b", fake.parts[1].RelativePath)
	assert.Equal(t, int64(10), fake.parts[1].Size)
	assert.Equal(t, "2 files imported", res.Message)
	assert.Equal(t, uint64(20), res.TotalBytes)

	seen := rec.progress()
	assert.Equal(t, "Transferring 99", percents(seen)[len(seen)-2])
}

func TestHTTPTransportPropagatesKind(t *testing.T) {
	fake := &fakeBatchUploader{err: &api.Error{Kind: models.ErrPermissionDenied, Op: "upload", Path: "/root", StatusCode: 403}}
	u := New(NewHTTPTransport(fake), Options{})

	_, err := u.Run(context.Background(), testManifest("p/a"), "/root")
	require.Error(t, err)
	assert.Equal(t, models.ErrPermissionDenied, models.KindOf(err))
	assert.True(t, api.IsPermissionDenied(err))
}

func readableFile(rel, content string) walker.FileHandle {
	return walker.NewFileHandle(rel, int64(len(content)), func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	})
}

func unreadableFile(rel string) walker.FileHandle {
	return walker.NewFileHandle(rel, 6, func() (io.ReadCloser, error) {
		return nil, fs.ErrPermission
	})
}

func TestUnreadableFileDoesNotBlockImport(t *testing.T) {
	var mu sync.Mutex
	received := map[string]string{}
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
				return
			}
			data, _ := io.ReadAll(part)
			if part.FormName() == "files" {
				mu.Lock()
				received[part.FileName()] = string(data)
				mu.Unlock()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"message":"imported","files_count":2,"total_size":8}`)
	}))
	defer srv.Close()

	client := api.NewClientWithHTTP(srv.URL, "", srv.Client(), nil)
	m := walker.NewManifest("root", []walker.FileHandle{
		readableFile("root/a.txt", "aaa"),
		unreadableFile("root/secret.txt"),
		readableFile("root/sub/b.txt", "bbbbb"),
	})

	u := New(NewHTTPTransport(client), Options{})
	res, err := u.Run(context.Background(), m, "/opt/kms/imports")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, map[string]string{"root/a.txt": "aaa", "root/sub/b.txt": "bbbbb"}, received)
	mu.Unlock()

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "root/secret.txt", res.Skipped[0].RelativePath)
	assert.ErrorIs(t, res.Skipped[0].Err, fs.ErrPermission)
	assert.Equal(t, 2, res.FilesCount)
	assert.Equal(t, PhaseDone, u.Progress().Phase)
}

func TestSkippedFilesLeaveBatchTotals(t *testing.T) {
	tr := &fakeTransport{}
	m := walker.NewManifest("p", []walker.FileHandle{
		unreadableFile("p/locked"),
		readableFile("p/ok", "1234"),
	})

	res, err := New(tr, Options{}).Run(context.Background(), m, "/srv")
	require.NoError(t, err)

	require.Len(t, tr.batches, 1)
	require.Len(t, tr.batches[0].Parts, 1)
	assert.Equal(t, "p/ok", tr.batches[0].Parts[0].RelativePath)
	assert.Equal(t, int64(4), tr.batches[0].TotalBytes)
	assert.Equal(t, uint64(4), res.TotalBytes)
	require.Len(t, res.Skipped, 1)
}

func TestAllFilesUnreadableFails(t *testing.T) {
	tr := &fakeTransport{}
	u := New(tr, Options{})
	m := walker.NewManifest("p", []walker.FileHandle{unreadableFile("p/a"), unreadableFile("p/b")})

	_, err := u.Run(context.Background(), m, "/srv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyManifest)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Equal(t, 0, tr.callCount())
	assert.Equal(t, PhaseFailed, u.Progress().Phase)
}
