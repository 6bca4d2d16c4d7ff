// Package providers selects the import transport named by configuration.
package providers

import (
	"context"
	"fmt"

	"github.com/odoobiznes/kms-fsnav/internal/cloud/providers/azure"
	"github.com/odoobiznes/kms-fsnav/internal/cloud/providers/s3"
	"github.com/odoobiznes/kms-fsnav/internal/config"
	"github.com/odoobiznes/kms-fsnav/internal/importer"
	"github.com/odoobiznes/kms-fsnav/internal/logging"
)

// NewTransport creates the transport for cfg.Transport. The HTTP transport
// posts through client; the archive transports ignore it.
func NewTransport(ctx context.Context, cfg *config.Config, client importer.BatchUploader, logger *logging.Logger) (importer.Transport, error) {
	switch cfg.Transport {
	case config.TransportHTTP, "":
		if client == nil {
			return nil, fmt.Errorf("http transport requires an API client")
		}
		return importer.NewHTTPTransport(client), nil
	case config.TransportS3:
		return s3.NewTransport(ctx, cfg, logger)
	case config.TransportAzure:
		return azure.NewTransport(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
}
