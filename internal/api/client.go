package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/odoobiznes/kms-fsnav/internal/config"
	"github.com/odoobiznes/kms-fsnav/internal/constants"
	"github.com/odoobiznes/kms-fsnav/internal/http"
	"github.com/odoobiznes/kms-fsnav/internal/logging"
	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/pathmodel"
	"github.com/odoobiznes/kms-fsnav/internal/ratelimit"
)

// Backend endpoints
const (
	pathList         = "/tools/files/list"
	pathCreateFolder = "/tools/files/create-folder"
	pathDownload     = "/tools/files/download"
	pathImportUpload = "/tools/import/upload"
)

// AccessOptions are forwarded verbatim to the backend as allow_any and
// use_sudo. The client attaches no policy to them.
type AccessOptions struct {
	AllowAny bool
	UseSudo  bool
}

func (o AccessOptions) query(path string) url.Values {
	q := url.Values{}
	q.Set("path", path)
	q.Set("allow_any", strconv.FormatBool(o.AllowAny))
	q.Set("use_sudo", strconv.FormatBool(o.UseSudo))
	return q
}

// CreateResult is the outcome of a successful CreateDirectory.
type CreateResult struct {
	Message string
}

// DirectoryClient is the remote listing contract the navigation layer depends on.
type DirectoryClient interface {
	List(ctx context.Context, path string, opts AccessOptions) ([]models.DirectoryEntry, error)
	CreateDirectory(ctx context.Context, path string, opts AccessOptions) (*CreateResult, error)
}

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client talks to the KMS backend's file tools.
type Client struct {
	httpClient     *nethttp.Client // retrying client for small JSON calls
	transferClient *nethttp.Client // no overall timeout, for streams
	baseURL        string
	token          string
	logger         *logging.Logger
	limiter        *ratelimit.RateLimiter // nil when unpaced

	listMu sync.Mutex
	lists  map[string]*listCall // in-flight listings by listKey
}

// listCall is one listing request shared by identical List calls. It runs
// detached from any single caller and is cancelled once every caller has
// given up on it.
type listCall struct {
	done    chan struct{}
	entries []models.DirectoryEntry
	err     error
	waiters int
	cancel  context.CancelFunc
}

// NewClient creates a client from configuration.
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("API base URL is empty")
	}
	logger = logging.OrNop(logger).WithComponent("api")

	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	transferClient, err := http.CreateTransferClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure transfer client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = constants.APIRetryWaitMin
	retryClient.RetryWaitMax = constants.APIRetryWaitMax
	retryClient.Logger = &retryLogger{logger: logger}
	// Keep the response on final failure so its status and detail can be classified.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := newClient(cfg.BaseURL, cfg.Token, retryClient.StandardClient(), transferClient, logger)
	c.SetRateLimit(cfg.RequestsPerSecond)
	return c, nil
}

// NewClientWithHTTP creates a client over a caller-supplied HTTP client
// (used for both small calls and streams).
func NewClientWithHTTP(baseURL, token string, httpClient *nethttp.Client, logger *logging.Logger) *Client {
	return newClient(baseURL, token, httpClient, httpClient, logging.OrNop(logger))
}

func newClient(baseURL, token string, httpClient, transferClient *nethttp.Client, logger *logging.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		transferClient: transferClient,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		token:          token,
		logger:         logger,
	}
}

// SetRateLimit paces requests to perSecond with a burst of
// ratelimit.DefaultBurst. Zero or less removes pacing.
func (c *Client) SetRateLimit(perSecond float64) {
	if perSecond <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = ratelimit.NewRateLimiter(perSecond, ratelimit.DefaultBurst, c.logger)
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// newRequest builds an authenticated request for an endpoint.
func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*nethttp.Request, error) {
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and converts transport failures and error statuses into *Error.
func (c *Client) do(client *nethttp.Client, req *nethttp.Request, op, path string) (*nethttp.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, &Error{Kind: kindFromTransportError(err), Op: op, Path: path, Err: err}
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("op", op).Str("path", path).Msg("request failed")
		return nil, &Error{Kind: kindFromTransportError(err), Op: op, Path: path, Err: err}
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		detail := readErrorDetail(resp.Body)
		c.logger.Debug().Int("status", resp.StatusCode).Str("op", op).Str("path", path).Str("detail", detail).Msg("request rejected")
		return nil, &Error{
			Kind:       kindFromStatus(resp.StatusCode, detail),
			Op:         op,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     detail,
		}
	}

	return resp, nil
}

// readErrorDetail extracts the backend's message from an error body.
func readErrorDetail(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 64*1024))
	var parsed models.ErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Text() != "" {
		return parsed.Text()
	}
	return strings.TrimSpace(string(body))
}

// List returns the entries of a remote directory in backend order.
// Concurrent identical calls share one request; each caller gets its own
// copy. A caller whose ctx ends stops waiting without failing the others.
func (c *Client) List(ctx context.Context, path string, opts AccessOptions) ([]models.DirectoryEntry, error) {
	key := listKey(path, opts)

	c.listMu.Lock()
	call, ok := c.lists[key]
	if !ok {
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.HTTPClientTimeout)
		call = &listCall{done: make(chan struct{}), cancel: cancel}
		if c.lists == nil {
			c.lists = make(map[string]*listCall)
		}
		c.lists[key] = call
		go c.runList(reqCtx, key, call, path, opts)
	}
	call.waiters++
	c.listMu.Unlock()

	select {
	case <-call.done:
		if call.err != nil {
			return nil, call.err
		}
		entries := make([]models.DirectoryEntry, len(call.entries))
		copy(entries, call.entries)
		return entries, nil
	case <-ctx.Done():
		c.listMu.Lock()
		call.waiters--
		if call.waiters == 0 {
			call.cancel()
			c.forgetListLocked(key, call)
		}
		c.listMu.Unlock()
		return nil, &Error{Kind: kindFromTransportError(ctx.Err()), Op: "list", Path: path, Err: ctx.Err()}
	}
}

func (c *Client) runList(ctx context.Context, key string, call *listCall, path string, opts AccessOptions) {
	entries, err := c.list(ctx, path, opts)
	call.cancel()

	c.listMu.Lock()
	c.forgetListLocked(key, call)
	c.listMu.Unlock()

	call.entries, call.err = entries, err
	close(call.done)
}

// forgetListLocked detaches call so later List calls start a new request.
func (c *Client) forgetListLocked(key string, call *listCall) {
	if c.lists[key] == call {
		delete(c.lists, key)
	}
}

func listKey(path string, opts AccessOptions) string {
	return fmt.Sprintf("%s|%t|%t", path, opts.AllowAny, opts.UseSudo)
}

func (c *Client) list(ctx context.Context, path string, opts AccessOptions) ([]models.DirectoryEntry, error) {
	req, err := c.newRequest(ctx, nethttp.MethodGet, pathList, opts.query(path), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(c.httpClient, req, "list", path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var listing models.FileListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, &Error{Kind: models.ErrUnknown, Op: "list", Path: path, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	entries := make([]models.DirectoryEntry, 0, len(listing.Files))
	for _, item := range listing.Files {
		entries = append(entries, item.ToEntry())
	}
	return entries, nil
}

// CreateDirectory creates a remote directory (parents included, as the backend does).
func (c *Client) CreateDirectory(ctx context.Context, path string, opts AccessOptions) (*CreateResult, error) {
	req, err := c.newRequest(ctx, nethttp.MethodPost, pathCreateFolder, opts.query(path), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(c.httpClient, req, "create-folder", path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result models.CreateFolderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &Error{Kind: models.ErrUnknown, Op: "create-folder", Path: path, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	// A listing of the parent that started before the create is stale.
	parentKey := listKey(pathmodel.Parent(path), opts)
	c.listMu.Lock()
	if call, ok := c.lists[parentKey]; ok {
		c.forgetListLocked(parentKey, call)
	}
	c.listMu.Unlock()

	c.logger.Info().Str("path", path).Msg("folder created")
	return &CreateResult{Message: result.Message}, nil
}

// Download streams a remote file into w and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, path string, opts AccessOptions, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, nethttp.MethodGet, pathDownload, opts.query(path), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.do(c.transferClient, req, "download", path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return n, err
		}
		return n, &Error{Kind: models.ErrTransport, Op: "download", Path: path, Err: err}
	}
	return n, nil
}
