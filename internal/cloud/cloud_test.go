package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odoobiznes/kms-fsnav/internal/importer"
	"github.com/odoobiznes/kms-fsnav/internal/models"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, target, name string
		want                 string
	}{
		{"", "/srv/in", "a.tar.gz", "srv/in/a.tar.gz"},
		{"imports/", "/srv/in/", "a.tar.gz", "imports/srv/in/a.tar.gz"},
		{"/imports", "/", "a.tar.gz", "imports/a.tar.gz"},
		{"", "", "a.tar.gz", "a.tar.gz"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.prefix, tt.target, tt.name); got != tt.want {
			t.Errorf("ObjectKey(%q, %q, %q) = %q, want %q", tt.prefix, tt.target, tt.name, got, tt.want)
		}
	}
}

func TestKindFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   models.ErrorKind
	}{
		{401, models.ErrPermissionDenied},
		{403, models.ErrPermissionDenied},
		{404, models.ErrNotFound},
		{408, models.ErrTransport},
		{429, models.ErrTransport},
		{500, models.ErrTransport},
		{503, models.ErrTransport},
		{400, models.ErrUnknown},
		{409, models.ErrUnknown},
	}
	for _, tt := range tests {
		if got := KindFromStatus(tt.status); got != tt.want {
			t.Errorf("KindFromStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.ErrorKind
	}{
		{"deadline", fmt.Errorf("put: %w", context.DeadlineExceeded), models.ErrTransport},
		{"canceled", context.Canceled, models.ErrUnknown},
		{"expired token", errors.New("ExpiredToken: the token has expired"), models.ErrPermissionDenied},
		{"connection reset", errors.New("read tcp: connection reset by peer"), models.ErrTransport},
		{"throttled", errors.New("SlowDown: reduce your request rate"), models.ErrTransport},
		{"other", errors.New("invalid argument"), models.ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestBuildArchive(t *testing.T) {
	batch := &importer.Batch{
		TargetPath: "/srv",
		RootName:   "proj",
		Parts: []importer.Part{{
			RelativePath: "proj/a.txt",
			Size:         3,
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader("abc")), nil
			},
		}},
	}

	archive, err := BuildArchive(context.Background(), batch, t.TempDir())
	require.NoError(t, err)

	info, err := os.Stat(archive.Path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), archive.Size)
	assert.True(t, strings.HasPrefix(archive.Name, "proj-"))
	assert.True(t, strings.HasSuffix(archive.Name, ".tar.gz"))

	require.NoError(t, archive.Remove())
	_, err = os.Stat(archive.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestBuildArchiveEmptyBatch(t *testing.T) {
	_, err := BuildArchive(context.Background(), &importer.Batch{}, "")
	assert.Error(t, err)
}

func TestIsDiskFullError(t *testing.T) {
	assert.True(t, IsDiskFullError(errors.New("write /tmp/x: no space left on device")))
	assert.True(t, IsDiskFullError(errors.New("disk quota exceeded")))
	assert.False(t, IsDiskFullError(errors.New("permission denied")))
	assert.False(t, IsDiskFullError(nil))
}
