package importer

import (
	"context"
	"errors"

	"github.com/odoobiznes/kms-fsnav/internal/api"
	"github.com/odoobiznes/kms-fsnav/internal/models"
)

// BatchUploader is the part of the API client the HTTP transport needs.
type BatchUploader interface {
	UploadBatch(ctx context.Context, targetPath string, parts []api.UploadPart, onProgress func(sent, total int64)) (*models.ImportUploadResponse, error)
}

// HTTPTransport posts a batch to the backend's import endpoint as one
// multipart request. The server writes the files under the target path.
type HTTPTransport struct {
	client BatchUploader
}

// NewHTTPTransport creates a transport over client.
func NewHTTPTransport(client BatchUploader) *HTTPTransport {
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) Name() string { return "http" }

func (t *HTTPTransport) ReportsProgress() bool { return true }

func (t *HTTPTransport) Transfer(ctx context.Context, batch *Batch, progress func(sent, total int64)) (*TransferResult, error) {
	if batch == nil || len(batch.Parts) == 0 {
		return nil, errors.New("empty batch")
	}

	parts := make([]api.UploadPart, len(batch.Parts))
	for i, p := range batch.Parts {
		parts[i] = api.UploadPart{RelativePath: p.RelativePath, Size: p.Size, Open: p.Open}
	}

	resp, err := t.client.UploadBatch(ctx, batch.TargetPath, parts, progress)
	if err != nil {
		return nil, err
	}
	return &TransferResult{
		FilesCount: resp.FilesCount,
		TotalBytes: resp.TotalSize,
		Message:    resp.Message,
		Location:   batch.TargetPath,
	}, nil
}
