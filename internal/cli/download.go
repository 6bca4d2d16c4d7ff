package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/odoobiznes/kms-fsnav/internal/api"
	"github.com/odoobiznes/kms-fsnav/internal/diskspace"
	"github.com/odoobiznes/kms-fsnav/internal/logging"
	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/navigation"
	"github.com/odoobiznes/kms-fsnav/internal/pathmodel"
	"github.com/odoobiznes/kms-fsnav/internal/progress"
	"github.com/odoobiznes/kms-fsnav/internal/util/paths"
	"github.com/odoobiznes/kms-fsnav/internal/validation"
)

// errIsDirectory is returned when a directory is passed where a file is expected.
var errIsDirectory = errors.New("is a directory")

// fileDownloader is the part of api.Client used for downloads.
type fileDownloader interface {
	Download(ctx context.Context, path string, opts api.AccessOptions, w io.Writer) (int64, error)
}

// progressWriter forwards writes and reports the running byte count.
type progressWriter struct {
	w       io.Writer
	written int64
	onWrite func(int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.onWrite != nil {
		p.onWrite(p.written)
	}
	return n, err
}

// lookupEntry resolves a remote path to its listing entry by listing the
// parent directory.
func lookupEntry(ctx context.Context, client api.DirectoryClient, remotePath string, opts api.AccessOptions) (models.DirectoryEntry, error) {
	clean := pathmodel.Clean(remotePath)
	if pathmodel.IsRoot(clean) {
		return models.DirectoryEntry{Name: "/", Path: clean, Kind: models.KindDirectory}, nil
	}

	entries, err := client.List(ctx, pathmodel.Parent(clean), opts)
	if err != nil {
		return models.DirectoryEntry{}, err
	}
	name := pathmodel.Base(clean)
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return models.DirectoryEntry{}, &api.Error{
		Kind: models.ErrNotFound,
		Op:   "open",
		Path: clean,
		Err:  errors.New("no such file"),
	}
}

// downloadTo streams entry into dest. Data goes to a temporary sibling that
// is renamed into place only when the download completes.
func downloadTo(ctx context.Context, client fileDownloader, entry models.DirectoryEntry, opts api.AccessOptions, dest string, reporter progress.Reporter) (int64, error) {
	if entry.IsDir() {
		return 0, fmt.Errorf("%s: %w", entry.Path, errIsDirectory)
	}

	if entry.Size != nil {
		if err := diskspace.CheckAvailableSpace(dest, int64(*entry.Size), diskspace.DefaultMargin); err != nil {
			return 0, err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	total := int64(-1) // unknown size shows a spinner
	if entry.Size != nil {
		total = int64(*entry.Size)
	}
	reporter.Start(total, entry.Name)

	n, err := client.Download(ctx, entry.Path, opts, &progressWriter{w: tmp, onWrite: reporter.Update})
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to write %s: %w", dest, closeErr)
	}
	if err != nil {
		reporter.Error(err)
		return n, err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		reporter.Error(err)
		return n, fmt.Errorf("failed to move download into place: %w", err)
	}
	committed = true
	reporter.Finish()
	return n, nil
}

// newDownloadOpener returns a FileOpener that saves activated files into
// dir without overwriting existing files.
func newDownloadOpener(client fileDownloader, opts api.AccessOptions, dir string, logger *logging.Logger) navigation.FileOpener {
	logger = logging.OrNop(logger).WithComponent("download")
	return navigation.FileOpenerFunc(func(ctx context.Context, entry models.DirectoryEntry) error {
		if err := validation.ValidateFilename(entry.Name); err != nil {
			return fmt.Errorf("refusing to save %s: %w", entry.Path, err)
		}
		dest, err := paths.AvailablePath(filepath.Join(dir, entry.Name))
		if err != nil {
			return err
		}
		n, err := downloadTo(ctx, client, entry, opts, dest, progress.NewNoOpProgress())
		if err != nil {
			logger.Warn().Err(err).Str("path", entry.Path).Msg("download failed")
			return err
		}
		logger.Info().Str("path", entry.Path).Str("dest", dest).Int64("bytes", n).Msg("file downloaded")
		return nil
	})
}
