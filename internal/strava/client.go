// Package strava talks to the Strava v3 REST API and normalizes its
// activities into workouts.
package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sstent/vo2sync-go/internal/models"
)

const (
	DefaultBaseURL = "https://www.strava.com/api/v3"
	DefaultTimeout = 30 * time.Second
)

var userAgent = "vo2sync/0.1"

// FetchError describes a failed call to the remote service. It matches
// models.ErrRemoteFetch under errors.Is.
type FetchError struct {
	Op         string
	StatusCode int
	Retryable  bool
	RetryAfter time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote returned %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == models.ErrRemoteFetch }

// Client holds configuration items for the REST client and provides methods
// that interact with the Strava API.
type Client struct {
	BaseURL *url.URL

	userAgent string
	client    *http.Client
}

// NewClient returns a new Strava API client rooted at baseURL. The
// http.Client should perform authentication, such as the one returned by
// NewHTTPClient. A nil client gets a plain one with DefaultTimeout.
func NewClient(baseURL string, cc *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if cc == nil {
		cc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{BaseURL: u, userAgent: userAgent, client: cc}, nil
}

// NewRequest creates an HTTP Request relative to BaseURL. If a non-nil body
// is provided it will be JSON encoded and included in the request.
func (c *Client) NewRequest(ctx context.Context, method, urlStr string, body interface{}) (*http.Request, error) {
	u, err := c.BaseURL.Parse(strings.TrimPrefix(urlStr, "/"))
	if err != nil {
		return nil, err
	}

	var buf io.ReadWriter
	if body != nil {
		buf = new(bytes.Buffer)
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), buf)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// Do sends a request and decodes a 2xx JSON response into v. Transport
// failures, timeouts and non-2xx statuses come back as *FetchError; a body
// that does not decode comes back as models.ErrParse.
func (c *Client) Do(op string, req *http.Request, v interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return &FetchError{Op: op, Retryable: isTemporary(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Op: op, Retryable: true, Err: err}
	}

	// Anything other than a HTTP 2xx response code is treated as an error.
	if resp.StatusCode >= 300 { //nolint:gomnd
		return &FetchError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	if v != nil && len(data) != 0 {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("%w: %s: decoding response: %v", models.ErrParse, op, err)
		}
	}
	return nil
}

func isTemporary(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
