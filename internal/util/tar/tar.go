// Package tar builds the gzip-compressed tar archives that cloud
// transports upload in place of a multipart batch.
package tar

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/odoobiznes/kms-fsnav/internal/util/buffers"
)

// File is one archive member.
type File struct {
	Name string // slash-separated path inside the archive
	Size int64
	Open func() (io.ReadCloser, error)
}

// WriteTarGz streams files into w as a gzip-compressed tar. Parent
// directories get their own entries ahead of the first file inside them,
// so the archive extracts the same tree on any platform.
func WriteTarGz(ctx context.Context, w io.Writer, files []File) error {
	gzWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzWriter)

	buf := buffers.GetCopyBuffer()
	defer buffers.PutCopyBuffer(buf)

	now := time.Now()
	dirs := make(map[string]bool)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		for _, dir := range parentDirs(f.Name) {
			if dirs[dir] {
				continue
			}
			dirs[dir] = true
			header := &tar.Header{
				Name:     dir + "/",
				Typeflag: tar.TypeDir,
				Mode:     0755,
				ModTime:  now,
			}
			if err := tarWriter.WriteHeader(header); err != nil {
				return fmt.Errorf("failed to write tar header: %w", err)
			}
		}

		if err := writeFile(tarWriter, f, now, *buf); err != nil {
			return err
		}
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

func writeFile(tw *tar.Writer, f File, modTime time.Time, buf []byte) error {
	header := &tar.Header{
		Name:     f.Name,
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     f.Size,
		ModTime:  modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}

	if f.Open == nil {
		return fmt.Errorf("%s: no content", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	// The header already carries the walked size; a file that changed
	// since then cannot be archived consistently.
	n, err := io.CopyBuffer(tw, io.LimitReader(rc, f.Size), buf)
	if err != nil {
		return fmt.Errorf("failed to write file contents of %s: %w", f.Name, err)
	}
	if n != f.Size {
		return fmt.Errorf("%s shrank during import: read %d of %d bytes", f.Name, n, f.Size)
	}
	return nil
}

// parentDirs returns every ancestor directory of name, outermost first.
func parentDirs(name string) []string {
	var dirs []string
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		dirs = append(dirs, dir)
	}
	for i, j := 0, len(dirs)-1; i < j; i, j = i+1, j-1 {
		dirs[i], dirs[j] = dirs[j], dirs[i]
	}
	return dirs
}

// CreateTempTarGz writes files to a new archive in dir (the system temp
// directory when empty) and returns its path and size. The caller removes
// the file.
func CreateTempTarGz(ctx context.Context, dir string, files []File) (string, int64, error) {
	outFile, err := os.CreateTemp(dir, "kms-import-*.tar.gz")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create tar file: %w", err)
	}
	outputPath := outFile.Name()

	err = WriteTarGz(ctx, outFile, files)
	if closeErr := outFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(outputPath) // Clean up partial file
		return "", 0, fmt.Errorf("failed to create tar: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		os.Remove(outputPath)
		return "", 0, fmt.Errorf("tar output file not created: %w", err)
	}
	return outputPath, info.Size(), nil
}

// ArchiveName returns the object name for an archive of rootName created
// at now, e.g. "photos-20240102T030405Z.tar.gz".
func ArchiveName(rootName string, now time.Time) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ':
			return '_'
		}
		return r
	}, rootName)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "import"
	}
	return name + "-" + now.UTC().Format("20060102T150405Z") + ".tar.gz"
}
