// Package azure imports a batch as a single tar.gz block blob.
package azure

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"golang.org/x/sync/errgroup"

	"github.com/odoobiznes/kms-fsnav/internal/cloud"
	"github.com/odoobiznes/kms-fsnav/internal/config"
	"github.com/odoobiznes/kms-fsnav/internal/constants"
	inthttp "github.com/odoobiznes/kms-fsnav/internal/http"
	"github.com/odoobiznes/kms-fsnav/internal/importer"
	"github.com/odoobiznes/kms-fsnav/internal/logging"
	"github.com/odoobiznes/kms-fsnav/internal/models"
)

// BlockStager is the part of a block blob client the transport uses.
type BlockStager interface {
	StageBlock(ctx context.Context, base64BlockID string, body io.ReadSeekCloser, options *blockblob.StageBlockOptions) (blockblob.StageBlockResponse, error)
	CommitBlockList(ctx context.Context, base64BlockIDs []string, options *blockblob.CommitBlockListOptions) (blockblob.CommitBlockListResponse, error)
}

// Transport stages an archive as blocks and commits them in one call, so
// the blob only becomes visible once every block is in place.
type Transport struct {
	newBlob     func(blobName string) BlockStager
	container   string
	blockSize   int64
	concurrency int
	logger      *logging.Logger
	retry       inthttp.RetryConfig
}

// NewTransport creates an Azure transport from cfg.
func NewTransport(cfg *config.Config, logger *logging.Logger) (*Transport, error) {
	if cfg.Azure.Container == "" {
		return nil, config.ErrMissingAzureSAS
	}

	sasURL, err := buildSASURL(cfg.Azure)
	if err != nil {
		return nil, err
	}

	httpClient, err := inthttp.CreateTransferClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	client, err := azblob.NewClientWithNoCredential(sasURL, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: httpClient,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	container := cfg.Azure.Container
	return NewTransportWithStager(func(blobName string) BlockStager {
		return client.ServiceClient().NewContainerClient(container).NewBlockBlobClient(blobName)
	}, container, logger), nil
}

// NewTransportWithStager creates a transport that obtains block blob
// clients from newBlob.
func NewTransportWithStager(newBlob func(blobName string) BlockStager, container string, logger *logging.Logger) *Transport {
	t := &Transport{
		newBlob:     newBlob,
		container:   container,
		blockSize:   constants.AzureBlockSize,
		concurrency: constants.AzureUploadConcurrency,
		logger:      logging.OrNop(logger).WithComponent("azure"),
		retry:       inthttp.DefaultRetryConfig(),
	}
	t.retry.OnRetry = func(attempt int, err error, errType inthttp.ErrorType) {
		t.logger.Warn().Err(err).Int("attempt", attempt).Str("type", inthttp.ErrorTypeName(errType)).Msg("retrying blob operation")
	}
	return t
}

func (t *Transport) Name() string { return "azure" }

func (t *Transport) ReportsProgress() bool { return true }

// Transfer packages batch into a temporary archive and uploads it as
// target/<root>-<timestamp>.tar.gz in the container.
func (t *Transport) Transfer(ctx context.Context, batch *importer.Batch, progress func(sent, total int64)) (*importer.TransferResult, error) {
	start := time.Now()
	archive, err := cloud.BuildArchive(ctx, batch, "")
	if err != nil {
		return nil, models.WithKind(models.ErrUnknown, fmt.Errorf("failed to package archive: %w", err))
	}
	defer archive.Remove()

	blobName := cloud.ObjectKey("", batch.TargetPath, archive.Name)
	blob := t.newBlob(blobName)

	file, err := os.Open(archive.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	totalBlocks := (archive.Size + t.blockSize - 1) / t.blockSize
	blockIDs := make([]string, totalBlocks)
	var sent atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for blockNum := int64(0); blockNum < totalBlocks; blockNum++ {
		blockID := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("block-%06d", blockNum)))
		blockIDs[blockNum] = blockID

		offset := blockNum * t.blockSize
		length := min(t.blockSize, archive.Size-offset)

		g.Go(func() error {
			section := io.NewSectionReader(file, offset, length)
			err := inthttp.ExecuteWithRetry(gctx, t.retry, func() error {
				if _, err := section.Seek(0, io.SeekStart); err != nil {
					return err
				}
				_, err := blob.StageBlock(gctx, blockID, streaming.NopCloser(section), nil)
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to stage block %d: %w", blockNum, err)
			}
			if s := sent.Add(length); progress != nil {
				progress(s, archive.Size)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, models.WithKind(classify(err), err)
	}

	err = inthttp.ExecuteWithRetry(ctx, t.retry, func() error {
		_, err := blob.CommitBlockList(ctx, blockIDs, &blockblob.CommitBlockListOptions{
			Metadata: map[string]*string{
				"files": to.Ptr(strconv.Itoa(len(batch.Parts))),
			},
		})
		return err
	})
	if err != nil {
		return nil, models.WithKind(classify(err), fmt.Errorf("failed to commit %s: %w", blobName, err))
	}

	location := fmt.Sprintf("azure://%s/%s", t.container, blobName)
	t.logger.Info().
		Str("location", location).
		Int64("size", archive.Size).
		Int64("blocks", totalBlocks).
		Dur("duration", time.Since(start)).
		Msg("archive uploaded")

	return &importer.TransferResult{
		FilesCount: len(batch.Parts),
		TotalBytes: batch.TotalBytes,
		Message:    fmt.Sprintf("archived %d files to %s", len(batch.Parts), location),
		Location:   location,
	}, nil
}

// classify maps an Azure failure onto an ErrorKind.
func classify(err error) models.ErrorKind {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if kind := cloud.KindFromStatus(respErr.StatusCode); kind != models.ErrUnknown {
			return kind
		}
	}
	return cloud.Classify(err)
}
