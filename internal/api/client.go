package api

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rescale/webup/internal/config"
	"github.com/rescale/webup/internal/constants"
	"github.com/rescale/webup/internal/http"
	"github.com/rescale/webup/internal/logging"
	"github.com/rescale/webup/internal/metrics"
	"github.com/rescale/webup/internal/models"
	"github.com/rescale/webup/internal/version"
)

// retryLogger implements the retryablehttp.LeveledLogger interface on top of
// the application logger.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg("retry: " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("retry: " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("retry: " + msg)
}

// Client talks to the uploader service.
//
// list and download are idempotent and go through go-retryablehttp. move,
// delete, create and upload use plain clients so a retry can never apply a
// mutation twice.
type Client struct {
	baseURL  *url.URL
	username string
	password string
	logger   *logging.Logger

	listClient     *nethttp.Client // retrying, control timeouts
	downloadClient *nethttp.Client // retrying, no deadline
	mutateClient   *nethttp.Client // control timeouts
	uploadClient   *nethttp.Client // no deadline
}

type options struct {
	logger       *logging.Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// Option configures a Client
type Option func(*options)

// WithLogger sets the logger used for request and retry logging
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRetry overrides the retry policy of list and download
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(o *options) {
		o.retryMax = max
		o.retryWaitMin = waitMin
		o.retryWaitMax = waitMax
	}
}

// NewClient creates a new uploader client
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return nil, config.ErrEmptyServerURL
	}
	base, err := url.Parse(cfg.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse server url: %w", err)
	}

	o := options{
		retryMax:     constants.MaxRetries,
		retryWaitMin: constants.RetryInitialDelay,
		retryWaitMax: constants.RetryMaxDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}

	clients, err := http.NewClients(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	newRetrying := func(hc *nethttp.Client) *nethttp.Client {
		rc := retryablehttp.NewClient()
		rc.HTTPClient = hc
		rc.RetryMax = o.retryMax
		rc.RetryWaitMin = o.retryWaitMin
		rc.RetryWaitMax = o.retryWaitMax
		rc.Logger = &retryLogger{logger: o.logger}
		// Hand the final response back so non-2xx becomes a StatusError
		rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
		return rc.StandardClient()
	}

	return &Client{
		baseURL:        base,
		username:       cfg.Username,
		password:       cfg.Password,
		logger:         o.logger,
		listClient:     newRetrying(clients.Control),
		downloadClient: newRetrying(clients.Transfer),
		mutateClient:   clients.Control,
		uploadClient:   clients.Transfer,
	}, nil
}

// BaseURL returns the server base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// endpoint resolves an endpoint name against the base URL
func (c *Client) endpoint(name string, query url.Values) string {
	u := c.baseURL.ResolveReference(&url.URL{Path: name})
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, name string, query url.Values, body io.Reader) (*nethttp.Request, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, c.endpoint(name, query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", name, err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	return req, nil
}

// do sends req and converts non-2xx responses into *StatusError. On success the
// caller owns resp.Body.
func (c *Client) do(hc *nethttp.Client, op string, req *nethttp.Request) (*nethttp.Response, error) {
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		metrics.RecordRequest(op, 0, time.Since(start))
		// Surface the context error itself so callers can tell aborts apart
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s request cancelled: %w", op, ctxErr)
		}
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	metrics.RecordRequest(op, resp.StatusCode, time.Since(start))

	c.logger.Debug().
		Str("op", op).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*maxErrorBody))
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: errorBody(body)}
	}
	return resp, nil
}

// doForm posts a form-encoded mutation and discards the `{}` body
func (c *Client) doForm(ctx context.Context, op string, form url.Values) error {
	ctx, cancel := context.WithTimeout(ctx, constants.ControlRequestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, nethttp.MethodPost, op, nil, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(c.mutateClient, op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// List fetches the entries of directory path
func (c *Client) List(ctx context.Context, path string) ([]models.DirectoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.ControlRequestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, nethttp.MethodGet, "list", url.Values{"path": {path}}, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(c.listClient, "list", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read listing: %w", err)
	}
	return models.ParseListing(data)
}

// Move renames or relocates oldPath to newPath
func (c *Client) Move(ctx context.Context, oldPath, newPath string) error {
	return c.doForm(ctx, "move", url.Values{"oldPath": {oldPath}, "newPath": {newPath}})
}

// Delete removes a file or folder
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doForm(ctx, "delete", url.Values{"path": {path}})
}

// Create creates the folder at path
func (c *Client) Create(ctx context.Context, path string) error {
	return c.doForm(ctx, "create", url.Values{"path": {path}})
}

// Download opens the file at path for reading. The caller must close the body.
// size is -1 when the server does not send Content-Length.
func (c *Client) Download(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	req, err := c.newRequest(ctx, nethttp.MethodGet, "download", url.Values{"path": {path}}, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.do(c.downloadClient, "download", req)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}
