// Package s3 imports a batch as a single tar.gz object in an S3 bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/odoobiznes/kms-fsnav/internal/cloud"
	"github.com/odoobiznes/kms-fsnav/internal/config"
	"github.com/odoobiznes/kms-fsnav/internal/constants"
	inthttp "github.com/odoobiznes/kms-fsnav/internal/http"
	"github.com/odoobiznes/kms-fsnav/internal/importer"
	"github.com/odoobiznes/kms-fsnav/internal/logging"
	"github.com/odoobiznes/kms-fsnav/internal/models"
)

// PutObjectAPI is the part of the S3 client the transport uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Transport uploads each batch as one archive object. The object appears
// only once PutObject completes, so a failed transfer leaves nothing behind.
type Transport struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *logging.Logger
	retry  inthttp.RetryConfig
}

// NewTransport creates an S3 transport from cfg. Static credentials are used
// when configured; otherwise the default AWS credential chain applies.
func NewTransport(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Transport, error) {
	if cfg.S3.Bucket == "" {
		return nil, config.ErrMissingS3Bucket
	}

	httpClient, err := inthttp.CreateTransferClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	region := cfg.S3.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.S3.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Checksums computed up front would read the archive twice.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return NewTransportWithClient(client, cfg.S3.Bucket, cfg.S3.Prefix, logger), nil
}

// NewTransportWithClient creates a transport over an existing client.
func NewTransportWithClient(client PutObjectAPI, bucket, prefix string, logger *logging.Logger) *Transport {
	t := &Transport{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logging.OrNop(logger).WithComponent("s3"),
		retry:  inthttp.DefaultRetryConfig(),
	}
	t.retry.OnRetry = func(attempt int, err error, errType inthttp.ErrorType) {
		t.logger.Warn().Err(err).Int("attempt", attempt).Str("type", inthttp.ErrorTypeName(errType)).Msg("retrying PutObject")
	}
	return t
}

func (t *Transport) Name() string { return "s3" }

func (t *Transport) ReportsProgress() bool { return true }

// Transfer packages batch into a temporary archive and uploads it under
// prefix/target/<root>-<timestamp>.tar.gz. progress receives archive bytes.
func (t *Transport) Transfer(ctx context.Context, batch *importer.Batch, progress func(sent, total int64)) (*importer.TransferResult, error) {
	start := time.Now()
	archive, err := cloud.BuildArchive(ctx, batch, "")
	if err != nil {
		return nil, models.WithKind(models.ErrUnknown, fmt.Errorf("failed to package archive: %w", err))
	}
	defer archive.Remove()

	key := cloud.ObjectKey(t.prefix, batch.TargetPath, archive.Name)
	t.logger.Debug().Str("key", key).Int64("size", archive.Size).Dur("packaged_in", time.Since(start)).Msg("archive ready")

	file, err := os.Open(archive.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	var sent atomic.Int64
	body := &uploadProgressReader{
		reader:    file,
		threshold: constants.ProgressThreshold,
		callback: func(n int64) {
			s := sent.Add(n)
			if progress != nil {
				progress(s, archive.Size)
			}
		},
	}

	err = inthttp.ExecuteWithRetry(ctx, t.retry, func() error {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(t.bucket),
			Key:           aws.String(key),
			Body:          body,
			ContentLength: aws.Int64(archive.Size),
			ContentType:   aws.String("application/gzip"),
		})
		return err
	})
	if err != nil {
		return nil, models.WithKind(classify(err), fmt.Errorf("failed to upload s3://%s/%s: %w", t.bucket, key, err))
	}

	location := fmt.Sprintf("s3://%s/%s", t.bucket, key)
	t.logger.Info().Str("location", location).Int64("size", archive.Size).Dur("duration", time.Since(start)).Msg("archive uploaded")

	return &importer.TransferResult{
		FilesCount: len(batch.Parts),
		TotalBytes: batch.TotalBytes,
		Message:    fmt.Sprintf("archived %d files to %s", len(batch.Parts), location),
		Location:   location,
	}, nil
}

// classify maps an S3 failure onto an ErrorKind.
func classify(err error) models.ErrorKind {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return models.ErrNotFound
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return models.ErrPermissionDenied
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		if kind := cloud.KindFromStatus(respErr.HTTPStatusCode()); kind != models.ErrUnknown {
			return kind
		}
	}
	return cloud.Classify(err)
}
