package constants

import (
	"time"
)

// Retry configuration
const (
	// MaxRetries - maximum number of retries for transient errors
	MaxRetries = 5

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (15s)
	// Exponential backoff with jitter caps at this value
	RetryMaxDelay = 15 * time.Second

	// APIRetryWaitMin / APIRetryWaitMax bound the retryable HTTP client's backoff
	// for listing and create-folder calls.
	APIRetryWaitMin = 500 * time.Millisecond
	APIRetryWaitMax = 5 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// Directory walking
const (
	// DefaultWalkConcurrency - concurrent directory expansions during a local walk
	DefaultWalkConcurrency = 8

	// MaxWalkConcurrency - upper bound accepted from configuration
	MaxWalkConcurrency = 64
)

// Import progress
const (
	// PackagingPercentSpan - packaging covers 0..50% of an import
	PackagingPercentSpan = 50

	// TransferWatermarkPercent - reported once the batch is handed to a transport
	// that cannot report its own progress
	TransferWatermarkPercent = 60

	// TransferMaxPercent - transport progress never reports more than this before Done
	TransferMaxPercent = 99
)

// Archive transports
const (
	// CopyBufferSize - buffer used to stream file contents into an archive (256KB)
	CopyBufferSize = 256 * 1024

	// ProgressThreshold - bytes accumulated before an upload reports progress (1MB)
	ProgressThreshold = 1024 * 1024

	// AzureBlockSize - block size for Azure archive uploads (8MB)
	AzureBlockSize = 8 * 1024 * 1024

	// AzureUploadConcurrency - parallel block uploads per archive
	AzureUploadConcurrency = 4
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPClientTimeout - overall timeout for listing/create-folder requests
	HTTPClientTimeout = 60 * time.Second

	// ProxyWarmupTimeout - timeout for the optional proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second
)
