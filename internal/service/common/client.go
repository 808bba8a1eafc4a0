//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/expo-up/internal/config"
	"github.com/oshokin/expo-up/internal/domain/update"
	"github.com/oshokin/expo-up/internal/logger"
	"github.com/oshokin/expo-up/internal/version"
)

const (
	// GenericFailureMessage is reported when the server gives no reason.
	GenericFailureMessage = "something went wrong"

	// requestIDHeader correlates a request with update server logs.
	requestIDHeader = "X-Request-ID"

	// maxErrorBodySize caps how much of an error response is read.
	maxErrorBodySize = 1 << 20
)

var (
	// ErrBundleExists is returned when the server answers an upload with 200:
	// the bundle for this timestamp and runtime version is already stored.
	ErrBundleExists = errors.New("bundle exists already")

	// errHostRequired is returned when a client is created without a host.
	errHostRequired = errors.New("update server host must be provided")
	// errTokenRequired is returned when a client is created without a token.
	errTokenRequired = errors.New("auth token must be provided")
	// errBadHTTPStatus marks a non-2xx response.
	errBadHTTPStatus = errors.New("unexpected http status")
)

// ServerError is a failed exchange with the update server.
type ServerError struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	// Message is the server supplied "error" text or GenericFailureMessage.
	Message string
	// Err is the transport error or errBadHTTPStatus.
	Err error
}

// Error returns the user-facing message only.
func (e *ServerError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *ServerError) Unwrap() error {
	return e.Err
}

// UploadRequest describes a bundle upload.
type UploadRequest struct {
	// ArchivePath is the zip file to send.
	ArchivePath string
	// UpdatesKey identifies the project on the server.
	UpdatesKey string
	// BundleTimestamp is the archive creation time in Unix milliseconds.
	BundleTimestamp int64
	// Platform is the bundle's target platform.
	Platform update.Platform
	// RuntimeVersion is the app version the bundle is compatible with.
	RuntimeVersion string
}

// RollbackRequest is the JSON body of a rollback instruction.
type RollbackRequest struct {
	RollbackType   update.RollbackType `json:"rollbackType"`
	Platform       update.Platform     `json:"platform"`
	RuntimeVersion string              `json:"runtimeVersion"`
	UpdatesKey     string              `json:"updatesKey"`
}

// errorResponse is the optional JSON body of a failed request.
type errorResponse struct {
	Error any `json:"error"`
}

// Client talks to the update server endpoint.
type Client struct {
	// http performs the requests.
	http *http.Client
	// url is the absolute endpoint URL.
	url string
	// token is sent as a bearer token.
	token string

	// callTimeout bounds every request.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a timeout for every request.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// NewClient creates a client for host (e.g. "https://example.com") and endpoint path.
func NewClient(host, endpoint, token string, opts ...Option) (*Client, error) {
	if host == "" {
		return nil, errHostRequired
	}

	if token == "" {
		return nil, errTokenRequired
	}

	if endpoint == "" {
		endpoint = config.DefaultEndpoint
	}

	client := &Client{
		http:        http.DefaultClient,
		url:         strings.TrimSuffix(host, "/") + endpoint,
		token:       token,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// UploadBundle sends the archive as multipart/form-data.
// A 200 answer means the bundle already exists and yields ErrBundleExists;
// any other 2xx is a successful upload.
func (c *Client) UploadBundle(ctx context.Context, req *UploadRequest) error {
	contentType, body, err := encodeUpload(req)
	if err != nil {
		return err
	}

	status, err := c.post(ctx, contentType, body)
	if err != nil {
		return err
	}

	if status == http.StatusOK {
		return ErrBundleExists
	}

	return nil
}

// Rollback asks the server to revert a runtime version. Any 2xx is a success.
func (c *Client) Rollback(ctx context.Context, req *RollbackRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode rollback request: %w", err)
	}

	_, err = c.post(ctx, "application/json", body)

	return err
}

// encodeUpload builds the multipart body with the archive and its metadata.
func encodeUpload(req *UploadRequest) (string, []byte, error) {
	archive, err := os.ReadFile(filepath.Clean(req.ArchivePath))
	if err != nil {
		return "", nil, fmt.Errorf("read archive: %w", err)
	}

	var (
		body   bytes.Buffer
		writer = multipart.NewWriter(&body)
	)

	part, err := writer.CreateFormFile("file", filepath.Base(req.ArchivePath))
	if err != nil {
		return "", nil, err
	}

	if _, err = part.Write(archive); err != nil {
		return "", nil, err
	}

	fields := []struct{ name, value string }{
		{"updatesKey", req.UpdatesKey},
		{"bundleTimestamp", strconv.FormatInt(req.BundleTimestamp, 10)},
		{"platform", req.Platform.String()},
		{"runtimeVersion", req.RuntimeVersion},
	}
	for _, field := range fields {
		if err = writer.WriteField(field.name, field.value); err != nil {
			return "", nil, err
		}
	}

	if err = writer.Close(); err != nil {
		return "", nil, err
	}

	return writer.FormDataContentType(), body.Bytes(), nil
}

// post sends body to the endpoint and returns the status of a 2xx response.
// Failures are returned as *ServerError.
func (c *Client) post(ctx context.Context, contentType string, body []byte) (int, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.NewString()

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set(requestIDHeader, requestID)

	logger.DebugKV(ctx, "Sending request", "url", c.url, "request_id", requestID, "size", len(body))

	resp, err := c.http.Do(req)
	if err != nil {
		logger.DebugKV(ctx, "Request failed", "request_id", requestID, "error", err)

		return 0, &ServerError{Message: GenericFailureMessage, Err: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	logger.DebugKV(ctx, "Received response", "request_id", requestID, "status", resp.Status)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize)) //nolint:errcheck // Best effort.

		return resp.StatusCode, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
			Err:        fmt.Errorf("%s: %w", resp.Status, errBadHTTPStatus),
		}
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))

	return resp.StatusCode, nil
}

// errorMessage returns the "error" string of a JSON error body or GenericFailureMessage.
func errorMessage(data []byte) string {
	var payload errorResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return GenericFailureMessage
	}

	if msg, ok := payload.Error.(string); ok && msg != "" {
		return msg
	}

	return GenericFailureMessage
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
