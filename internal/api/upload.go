package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"sync"

	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/progress"
)

// UploadPart is one file of an import batch. RelativePath becomes the
// multipart filename, so the server recreates the directory structure
// under the target path.
type UploadPart struct {
	RelativePath string
	Size         int64
	Open         func() (io.ReadCloser, error)
}

// UploadBatch sends all parts to the import endpoint in a single multipart
// request. The body is streamed; onProgress (optional) receives the number
// of file bytes written so far and the batch total.
func (c *Client) UploadBatch(ctx context.Context, targetPath string, parts []UploadPart, onProgress func(sent, total int64)) (*models.ImportUploadResponse, error) {
	if len(parts) == 0 {
		return nil, &Error{Kind: models.ErrUnknown, Op: "upload", Path: targetPath, Err: errors.New("no files to upload")}
	}

	var total int64
	for _, p := range parts {
		total += p.Size
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pw.CloseWithError(writeBatch(mw, targetPath, parts, total, onProgress))
	}()

	req, err := c.newRequest(ctx, nethttp.MethodPost, pathImportUpload, nil, pr)
	if err != nil {
		pr.CloseWithError(err)
		wg.Wait()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Info().Str("target", targetPath).Int("files", len(parts)).Int64("bytes", total).Msg("uploading import batch")

	resp, err := c.do(c.transferClient, req, "upload", targetPath)
	// Unblock the writer if the request ended before the body was consumed.
	pr.CloseWithError(context.Canceled)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result models.ImportUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &Error{Kind: models.ErrUnknown, Op: "upload", Path: targetPath, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if !result.Success {
		return &result, &Error{Kind: models.ErrUnknown, Op: "upload", Path: targetPath, Detail: result.Message, Err: errors.New(result.Message)}
	}

	return &result, nil
}

// writeBatch encodes the multipart body: the target_path field followed by
// one "files" part per file.
func writeBatch(mw *multipart.Writer, targetPath string, parts []UploadPart, total int64, onProgress func(sent, total int64)) error {
	if err := mw.WriteField("target_path", targetPath); err != nil {
		return err
	}

	var sent int64
	report := func(current int64) {
		sent = current
		if onProgress != nil {
			onProgress(current, total)
		}
	}

	for _, p := range parts {
		w, err := mw.CreateFormFile("files", p.RelativePath)
		if err != nil {
			return err
		}

		rc, err := p.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", p.RelativePath, err)
		}
		_, err = io.Copy(w, progress.NewCallbackReader(rc, sent, report))
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to send %s: %w", p.RelativePath, err)
		}
	}

	return mw.Close()
}
