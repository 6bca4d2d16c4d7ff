package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odoobiznes/kms-fsnav/internal/importer"
	"github.com/odoobiznes/kms-fsnav/internal/logging"
	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/progress"
	"github.com/odoobiznes/kms-fsnav/internal/walker"
)

// scriptedTransport fails the first failures transfers with failErr and
// records every batch it accepts.
type scriptedTransport struct {
	mu       sync.Mutex
	failures int
	failErr  error
	calls    int
	batches  []*importer.Batch
}

func (t *scriptedTransport) Name() string          { return "fake" }
func (t *scriptedTransport) ReportsProgress() bool { return false }

func (t *scriptedTransport) Transfer(ctx context.Context, batch *importer.Batch, _ func(sent, total int64)) (*importer.TransferResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.calls <= t.failures {
		return nil, t.failErr
	}
	t.batches = append(t.batches, batch)
	return &importer.TransferResult{Message: "Import finished"}, nil
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func testSettings(retries int) importSettings {
	return importSettings{
		target:          "/opt/kms/incoming",
		parallel:        2,
		walkConcurrency: 2,
		includeHidden:   true,
		retries:         retries,
		logger:          logging.Nop(),
	}
}

func TestReadFileList(t *testing.T) {
	input := "\uFEFFsrc/main.go\r\n\n# generated\n  docs/readme.md  \n"
	paths, err := readFileList(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.go", "docs/readme.md"}, paths)
}

func TestBuildImportJobs(t *testing.T) {
	base := filepath.Join(t.TempDir(), "project")
	writeTree(t, base, map[string]string{
		"src/main.go": "package main",
		"README.md":   "hi",
	})
	other := filepath.Join(t.TempDir(), "photos")
	writeTree(t, other, map[string]string{"a.jpg": "jpg"})

	t.Run("directories", func(t *testing.T) {
		jobs, err := buildImportJobs([]string{base, other}, "", "", nil)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, base, jobs[0].source)
		assert.Equal(t, "project", jobs[0].roots[0].Name())
		assert.Equal(t, "photos", jobs[1].roots[0].Name())
	})

	t.Run("file list from stdin comes first", func(t *testing.T) {
		stdin := strings.NewReader("src/main.go\nREADME.md\n")
		jobs, err := buildImportJobs([]string{other}, "-", base, stdin)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, base, jobs[0].source)
		require.Len(t, jobs[0].roots, 1)
		assert.Equal(t, "project", jobs[0].roots[0].Name())
		assert.True(t, jobs[0].roots[0].IsDir())
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := buildImportJobs([]string{filepath.Join(base, "nope")}, "", "", nil)
		assert.Error(t, err)
	})

	t.Run("missing file list", func(t *testing.T) {
		_, err := buildImportJobs(nil, filepath.Join(base, "list.txt"), base, nil)
		assert.ErrorContains(t, err, "failed to open file list")
	})
}

func TestRunImportsImportsEveryJob(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a")
	writeTree(t, a, map[string]string{"x.txt": "1", "sub/y.txt": "22"})
	b := filepath.Join(t.TempDir(), "b")
	writeTree(t, b, map[string]string{"z.csv": "333"})

	jobs, err := buildImportJobs([]string{a, b}, "", "", nil)
	require.NoError(t, err)

	var uiOut bytes.Buffer
	transport := &scriptedTransport{}
	ui := progress.NewTextImportUI(&uiOut, len(jobs))

	outcomes := runImports(context.Background(), jobs, transport, testSettings(0), ui)
	ui.Wait()

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		require.NoError(t, o.err)
		assert.Equal(t, "Import finished", o.result.Message)
	}
	assert.Equal(t, 2, outcomes[0].manifest.Len())
	assert.Equal(t, 1, outcomes[1].manifest.Len())
	assert.Equal(t, 2, transport.calls)
	assert.Equal(t, 2, ui.Completed())
	assert.Contains(t, uiOut.String(), "Import finished")

	var summary bytes.Buffer
	require.NoError(t, printImportSummary(&summary, outcomes, time.Second))
	assert.Contains(t, summary.String(), "2 of 2 imports succeeded")
	assert.Contains(t, summary.String(), "/opt/kms/incoming")
	assert.Contains(t, summary.String(), "txt (2)")
}

func TestRunImportRetriesTransportFailures(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	writeTree(t, dir, map[string]string{"f.bin": "abc"})
	jobs, err := buildImportJobs([]string{dir}, "", "", nil)
	require.NoError(t, err)

	transport := &scriptedTransport{
		failures: 1,
		failErr:  models.WithKind(models.ErrTransport, errors.New("connection reset")),
	}
	ui := progress.NewTextImportUI(&bytes.Buffer{}, 1)

	out := runImport(context.Background(), jobs[0], transport, testSettings(1), ui)
	require.NoError(t, out.err)
	assert.Equal(t, 2, transport.calls)
	require.Len(t, transport.batches, 1)
	assert.Equal(t, "data", transport.batches[0].RootName)
}

func TestRunImportGivesUpAfterRetries(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	writeTree(t, dir, map[string]string{"f.bin": "abc"})
	jobs, err := buildImportJobs([]string{dir}, "", "", nil)
	require.NoError(t, err)

	transport := &scriptedTransport{
		failures: 5,
		failErr:  models.WithKind(models.ErrTransport, errors.New("connection reset")),
	}
	var uiOut bytes.Buffer
	ui := progress.NewTextImportUI(&uiOut, 1)

	out := runImport(context.Background(), jobs[0], transport, testSettings(2), ui)
	require.Error(t, out.err)
	assert.Equal(t, 3, transport.calls)
	assert.Equal(t, models.ErrTransport, models.KindOf(out.err))
	assert.Contains(t, out.err.Error(), "cannot reach the server")
	assert.Contains(t, uiOut.String(), "✗")
}

func TestRunImportDoesNotRetryOtherFailures(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	writeTree(t, dir, map[string]string{"f.bin": "abc"})
	jobs, err := buildImportJobs([]string{dir}, "", "", nil)
	require.NoError(t, err)

	transport := &scriptedTransport{
		failures: 1,
		failErr:  models.WithKind(models.ErrPermissionDenied, errors.New("forbidden")),
	}
	ui := progress.NewTextImportUI(&bytes.Buffer{}, 1)

	out := runImport(context.Background(), jobs[0], transport, testSettings(3), ui)
	require.Error(t, out.err)
	assert.Equal(t, 1, transport.calls)
	assert.Equal(t, models.ErrPermissionDenied, models.KindOf(out.err))
}

func TestPrintImportSummaryReportsFailures(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ok")
	writeTree(t, dir, map[string]string{"a.go": "package a"})
	jobs, err := buildImportJobs([]string{dir}, "", "", nil)
	require.NoError(t, err)

	ui := progress.NewTextImportUI(&bytes.Buffer{}, 1)
	ok := runImport(context.Background(), jobs[0], &scriptedTransport{}, testSettings(0), ui)
	require.NoError(t, ok.err)

	failed := importOutcome{
		job: importJob{source: "/tmp/missing"},
		err: errors.New("walk /tmp/missing: no such file"),
	}

	var out bytes.Buffer
	err = printImportSummary(&out, []importOutcome{ok, failed}, 1500*time.Millisecond)
	require.EqualError(t, err, "1 of 2 imports failed")
	assert.Contains(t, out.String(), "✗ /tmp/missing: walk /tmp/missing: no such file")
	assert.Contains(t, out.String(), "1 file, ")
	assert.Contains(t, out.String(), "1 of 2 imports succeeded in 1.5s")
}

func TestRunImportKeepsHiddenFilesByDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")
	writeTree(t, dir, map[string]string{"main.go": "package main", ".env": "KEY=1", ".config/app.ini": "x=1"})
	jobs, err := buildImportJobs([]string{dir}, "", "", nil)
	require.NoError(t, err)

	transport := &scriptedTransport{}
	out := runImport(context.Background(), jobs[0], transport, testSettings(0), progress.NewTextImportUI(&bytes.Buffer{}, 1))
	require.NoError(t, out.err)
	require.Len(t, transport.batches, 1)

	var paths []string
	for _, p := range transport.batches[0].Parts {
		paths = append(paths, p.RelativePath)
	}
	assert.ElementsMatch(t, []string{"proj/main.go", "proj/.env", "proj/.config/app.ini"}, paths)
	assert.Equal(t, 0, out.manifest.HiddenSkipped())
}

func TestPrintImportSummaryCountsLeftOutFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")
	writeTree(t, dir, map[string]string{"main.go": "package main", ".env": "KEY=1", ".git/HEAD": "ref"})
	jobs, err := buildImportJobs([]string{dir}, "", "", nil)
	require.NoError(t, err)

	settings := testSettings(0)
	settings.includeHidden = false
	out := runImport(context.Background(), jobs[0], &scriptedTransport{}, settings, progress.NewTextImportUI(&bytes.Buffer{}, 1))
	require.NoError(t, out.err)
	assert.Equal(t, 1, out.manifest.Len())

	out.result.Skipped = []walker.FileFailure{{RelativePath: "proj/locked.txt", Err: os.ErrPermission}}

	var summary bytes.Buffer
	require.NoError(t, printImportSummary(&summary, []importOutcome{out}, time.Second))
	assert.Contains(t, summary.String(), "skipped 1 entry that could not be read")
	assert.Contains(t, summary.String(), "left out 2 hidden entries")
}
