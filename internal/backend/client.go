// Package backend is the dashboard's client for the remote REST API. Every
// call attaches the session's bearer token at request time, recovers from one
// expired token with a silent refresh, and maps failures onto typed errors and
// toast notifications.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/telemetry"
)

const maxErrorBody = 64 << 10

// RequestIDHeader carries the dashboard's request id to the REST API.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID returns ctx carrying id; calls made with it forward the id upstream.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the id stored by WithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Authenticator supplies the bearer token for a session and recovers from its expiry.
type Authenticator interface {
	oauth2.TokenSource
	// Refresh replaces the session token. stale is the token that was rejected.
	Refresh(ctx context.Context, stale string) error
	// ForceLogout ends the session. It must be safe to call more than once.
	ForceLogout(ctx context.Context)
}

// Client calls the backend API. The zero value is not usable; use New.
// WithAuth and WithNotifier return scoped copies, so one Client built at
// startup serves every request.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	auth      Authenticator
	notifier  notify.Notifier
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration, userAgent string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend base url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   u,
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
		notifier:  notify.Discard,
	}, nil
}

// WithAuth returns a copy of c that authenticates as a.
func (c *Client) WithAuth(a Authenticator) *Client {
	cp := *c
	cp.auth = a
	return &cp
}

// WithNotifier returns a copy of c that reports failures to n.
func (c *Client) WithNotifier(n notify.Notifier) *Client {
	cp := *c
	if n == nil {
		n = notify.Discard
	}
	cp.notifier = n
	return &cp
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	out    any
	// bearer overrides the Authenticator for auth endpoints that carry an explicit token.
	bearer string
}

// Get decodes GET path into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query, out: out})
}

// Post sends body and decodes the response into out (which may be nil).
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, body: body, out: out})
}

// Put sends body and decodes the response into out (which may be nil).
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPut, path: path, body: body, out: out})
}

// Patch sends body and decodes the response into out (which may be nil).
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPatch, path: path, body: body, out: out})
}

// Delete issues DELETE path.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: path})
}

func (c *Client) do(ctx context.Context, r request) error {
	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	resource := resourceOf(r.path)

	for attempt := 0; ; attempt++ {
		req, err := c.newRequest(ctx, r, payload)
		if err != nil {
			return err
		}

		var sent string
		switch {
		case r.bearer != "":
			req.Header.Set("Authorization", "Bearer "+r.bearer)
		case c.auth != nil:
			tok, err := c.auth.Token()
			if err != nil {
				return &APIError{Method: r.method, Path: r.path, Status: http.StatusUnauthorized, Kind: auth.KindSessionExpired, Err: err}
			}
			tok.SetAuthHeader(req)
			sent = tok.AccessToken
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		telemetry.UpstreamRequestDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
		if err != nil {
			telemetry.UpstreamRequestsTotal.WithLabelValues(resource, "error").Inc()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			apiErr := &APIError{Method: r.method, Path: r.path, Kind: auth.KindNetworkError, Err: err}
			c.toast(apiErr)
			return apiErr
		}
		telemetry.UpstreamRequestsTotal.WithLabelValues(resource, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusUnauthorized && c.auth != nil && r.bearer == "" {
			drain(resp)
			if attempt == 0 {
				err := c.auth.Refresh(ctx, sent)
				if err == nil {
					telemetry.UpstreamRetriesTotal.Inc()
					continue
				}
				slog.Info("session refresh failed", "path", r.path, "error", err)
			}
			c.auth.ForceLogout(ctx)
			return &APIError{Method: r.method, Path: r.path, Status: http.StatusUnauthorized, Kind: auth.KindSessionExpired}
		}

		return c.handle(resp, r)
	}
}

func (c *Client) newRequest(ctx context.Context, r request, payload []byte) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(r.path, "/")
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if id := RequestIDFrom(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}
	return req, nil
}

// handle decodes a final response.
func (c *Client) handle(resp *http.Response, r request) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if r.out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil && !errors.Is(err, io.EOF) {
			return &APIError{Method: r.method, Path: r.path, Status: resp.StatusCode, Kind: auth.KindServerError, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message, code, fields := parseErrorBody(body)
	kind := auth.KindForStatus(resp.StatusCode)
	if k, ok := auth.KindFromCode(code); ok {
		kind = k
	}
	apiErr := &APIError{
		Method:  r.method,
		Path:    r.path,
		Status:  resp.StatusCode,
		Kind:    kind,
		Code:    code,
		Message: message,
		Fields:  fields,
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		// Surfaced to the caller as an authorization error, never toasted.
	case resp.StatusCode == http.StatusUnprocessableEntity && len(fields) > 0:
		// Field errors are rendered inline on the form.
	default:
		c.toast(apiErr)
	}
	return apiErr
}

func (c *Client) toast(e *APIError) {
	c.notifier.Notify(notify.Error(e.Kind.Title(), e.UserMessage()))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

// resourceOf returns the first path segment, used as a low-cardinality metrics label.
func resourceOf(path string) string {
	p := strings.TrimLeft(path, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "root"
	}
	return p
}
