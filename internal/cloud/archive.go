// Package cloud holds what the archive transports share: packaging a batch
// into a temporary tar.gz and mapping storage failures onto error kinds.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/odoobiznes/kms-fsnav/internal/diskspace"
	"github.com/odoobiznes/kms-fsnav/internal/importer"
	"github.com/odoobiznes/kms-fsnav/internal/pathmodel"
	"github.com/odoobiznes/kms-fsnav/internal/util/tar"
)

// ErrInsufficientSpace indicates the archive did not fit in the temp directory.
var ErrInsufficientSpace = errors.New("insufficient disk space")

// Archive is a batch packaged on local disk.
type Archive struct {
	Path string // local temp file
	Name string // object name, without any prefix
	Size int64
}

// Remove deletes the local archive.
func (a *Archive) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	return os.Remove(a.Path)
}

// BuildArchive writes batch into a tar.gz under tempDir (the system temp
// directory when empty). Archive members keep the batch's relative paths.
func BuildArchive(ctx context.Context, batch *importer.Batch, tempDir string) (*Archive, error) {
	if batch == nil || len(batch.Parts) == 0 {
		return nil, errors.New("empty batch")
	}

	dir := tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	// Uncompressed size plus margin bounds the archive size
	if err := diskspace.CheckDir(dir, batch.TotalBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientSpace, err)
	}

	files := make([]tar.File, len(batch.Parts))
	for i, p := range batch.Parts {
		files[i] = tar.File{Name: p.RelativePath, Size: p.Size, Open: p.Open}
	}

	archivePath, size, err := tar.CreateTempTarGz(ctx, tempDir, files)
	if err != nil {
		if IsDiskFullError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientSpace, err)
		}
		return nil, err
	}

	return &Archive{
		Path: archivePath,
		Name: tar.ArchiveName(batch.RootName, time.Now()),
		Size: size,
	}, nil
}

// ObjectKey joins a storage prefix, the import's target path and an
// archive name into an object key without a leading slash.
func ObjectKey(prefix, targetPath, name string) string {
	target := strings.TrimPrefix(pathmodel.Clean(targetPath), "/")
	return path.Join(strings.Trim(prefix, "/"), target, name)
}

// IsDiskFullError checks if an error is likely caused by running out of disk space
//
// Checks for common error strings across different operating systems:
//   - Linux/Unix: "no space left on device", "enospc"
//   - Windows: "out of disk space", "insufficient disk space"
//   - Quota: "disk quota exceeded"
func IsDiskFullError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	diskFullIndicators := []string{
		"no space left on device", // Linux/Unix
		"disk full",               // Generic
		"out of disk space",       // Windows
		"insufficient disk space", // Windows
		"not enough space",        // Generic
		"enospc",                  // Linux errno
		"disk quota exceeded",     // Quota systems
	}

	for _, indicator := range diskFullIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}
