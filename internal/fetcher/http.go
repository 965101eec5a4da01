// Package fetcher downloads source images for the proxy.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-retryablehttp"
)

var (
	// ErrTooLarge is returned when the source body exceeds the configured limit.
	ErrTooLarge = errors.New("source image too large")
	// ErrNotImage is returned when the source body is not an image.
	ErrNotImage = errors.New("source is not an image")
	// ErrUnsupportedScheme is returned for URLs no fetcher can serve.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

const (
	defaultTimeout   = 10 * time.Second
	defaultMaxBytes  = 32 << 20
	defaultUserAgent = "image-proxy/1.0"
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.URL, e.StatusCode)
}

// HTTPOptions configures the HTTP fetcher. Zero values fall back to defaults.
type HTTPOptions struct {
	Timeout      time.Duration
	MaxBytes     int64
	UserAgent    string
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// HTTP fetches sources over http and https with retries on network errors
// and 5xx responses.
type HTTP struct {
	client    *retryablehttp.Client
	maxBytes  int64
	userAgent string
}

// NewHTTP creates an HTTP fetcher.
func NewHTTP(opts HTTPOptions) *HTTP {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = zlogAdapter{}
	client.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}
	// Hand the last response back instead of a generic "giving up" error so
	// the status code survives.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTP{
		client:    client,
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
	}
}

// Fetch downloads the body at url.
func (h *HTTP) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := h.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > h.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	body, err := ReadLimited(resp.Body, h.maxBytes)
	if err != nil {
		return nil, err
	}

	if err := CheckImage(body); err != nil {
		return nil, err
	}

	return body, nil
}

// ReadLimited reads at most limit bytes from r and fails with ErrTooLarge if
// more are available.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return body, nil
}

// CheckImage sniffs body and rejects anything that is not an image.
func CheckImage(body []byte) error {
	mt := mimetype.Detect(body)
	if !strings.HasPrefix(mt.String(), "image/") {
		return fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}
	return nil
}
