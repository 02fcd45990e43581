package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"

	"jobwatch/internal/progress"
	"jobwatch/internal/util"
)

const (
	progressPath   = "api/gmail/progress"
	maxBodyBytes   = 4 << 20
	defaultTimeout = 30 * time.Second
)

// Client talks to the progress JSON API.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string

	cookieName  string
	cookieValue string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithSessionCookie sends the given session cookie with every request.
func WithSessionCookie(name, value string) ClientOption {
	return func(c *Client) {
		c.cookieName = name
		c.cookieValue = value
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient builds a Client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	base, err := util.NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{base: base, userAgent: "jobwatch"}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	// Requests are credentialed: cookies for the base URL ride along.
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		hc := *c.http
		hc.Jar = jar
		c.http = &hc
	}
	if c.cookieName != "" && c.cookieValue != "" {
		c.http.Jar.SetCookies(base, []*http.Cookie{{Name: c.cookieName, Value: c.cookieValue, Path: "/"}})
	}
	return c, nil
}

// BaseURL returns the normalized server base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// HTTPClient exposes the credentialed HTTP client so other transports share cookies.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// ProgressURL is the status endpoint for one job.
func (c *Client) ProgressURL(jobID string) string {
	return util.JoinURL(c.base, progressPath, jobID+"/")
}

// Progress fetches the current snapshot of a job.
func (c *Client) Progress(ctx context.Context, jobID string) (progress.Snapshot, error) {
	return c.GetURL(ctx, c.ProgressURL(jobID))
}

// GetURL fetches a snapshot from an explicit status endpoint.
func (c *Client) GetURL(ctx context.Context, rawURL string) (progress.Snapshot, error) {
	env, err := do[*progress.Snapshot](ctx, c, "get", http.MethodGet, rawURL)
	if err != nil {
		return progress.Snapshot{}, err
	}
	if env.Data == nil {
		return progress.Snapshot{}, &progress.RequestError{
			Op: "get", URL: rawURL, Kind: progress.ErrUnsuccessful, Message: "response carries no data",
		}
	}
	return *env.Data, nil
}

// List returns the most recent jobs visible to the session.
func (c *Client) List(ctx context.Context) ([]progress.Snapshot, error) {
	env, err := do[[]progress.Snapshot](ctx, c, "list", http.MethodGet, util.JoinURL(c.base, progressPath+"/"))
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// Active returns pending and in-progress jobs.
func (c *Client) Active(ctx context.Context) ([]progress.Snapshot, error) {
	env, err := do[[]progress.Snapshot](ctx, c, "active", http.MethodGet, util.JoinURL(c.base, progressPath, "active/"))
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// Delete removes a finished job's progress record. The server refuses to
// delete pending or running jobs.
func (c *Client) Delete(ctx context.Context, jobID string) (string, error) {
	env, err := do[json.RawMessage](ctx, c, "delete", http.MethodDelete, util.JoinURL(c.base, progressPath, jobID, "delete/"))
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func do[T any](ctx context.Context, c *Client, op, method, rawURL string) (progress.Envelope[T], error) {
	var env progress.Envelope[T]

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return env, &progress.RequestError{Op: op, URL: rawURL, Kind: progress.ErrTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return env, &progress.RequestError{Op: op, URL: rawURL, Kind: progress.ErrTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return env, &progress.RequestError{Op: op, URL: rawURL, StatusCode: resp.StatusCode, Kind: progress.ErrTransport, Err: err}
	}
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return env, &progress.RequestError{Op: op, URL: rawURL, StatusCode: resp.StatusCode, Kind: progress.ErrTransport, Message: msg}
	}
	if decodeErr != nil {
		return env, &progress.RequestError{
			Op: op, URL: rawURL, StatusCode: resp.StatusCode, Kind: progress.ErrTransport,
			Err: fmt.Errorf("decode response: %w", decodeErr),
		}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "unknown error"
		}
		return env, &progress.RequestError{Op: op, URL: rawURL, StatusCode: resp.StatusCode, Kind: progress.ErrUnsuccessful, Message: msg}
	}
	return env, nil
}

// IsCanceled reports whether err came from a canceled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
