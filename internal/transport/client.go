// Package transport provides the authenticated HTTP client shared by the
// catalogue and RAiD clients. Requests answered with 502 Bad Gateway or
// failing with a network timeout are retried with exponential backoff.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/agentstation/foundry/pkg/constants"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/logging"
)

// Observer is notified after every HTTP attempt, including retried ones.
// status is zero when no response was received.
type Observer func(method, path string, status int, elapsed time.Duration)

// Client provides HTTP client functionality with authentication and retry.
type Client struct {
	http       *http.Client
	auth       Authenticator
	baseURL    *url.URL
	service    string
	userAgent  string
	maxTries   uint
	newBackOff func() backoff.BackOff
	observer   Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMaxTries bounds the number of attempts for retryable failures.
func WithMaxTries(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// WithBackOff sets the backoff policy factory. A fresh policy is created per request.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		if fn != nil {
			c.newBackOff = fn
		}
	}
}

// WithService names the remote service in errors and logs.
func WithService(name string) Option {
	return func(c *Client) {
		c.service = name
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithObserver registers a callback invoked after each attempt.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithProxy routes requests through the given proxies. Empty values fall
// back to the environment.
func WithProxy(httpProxy, httpsProxy string) Option {
	return func(c *Client) {
		if httpProxy == "" && httpsProxy == "" {
			return
		}
		t := c.transport()
		t.Proxy = func(req *http.Request) (*url.URL, error) {
			proxy := httpProxy
			if req.URL.Scheme == "https" && httpsProxy != "" {
				proxy = httpsProxy
			}
			if proxy == "" {
				return http.ProxyFromEnvironment(req)
			}
			return url.Parse(proxy)
		}
	}
}

// WithVerifyCertificate toggles TLS certificate verification.
func WithVerifyCertificate(verify bool) Option {
	return func(c *Client) {
		if verify {
			return
		}
		t := c.transport()
		if t.TLSClientConfig == nil {
			t.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		t.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec // explicitly configured
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, auth Authenticator, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.NewConfigError("transport", fmt.Sprintf("invalid base URL %q", baseURL), err)
	}
	if auth == nil {
		auth = &NoAuth{}
	}

	c := &Client{
		http:      &http.Client{Timeout: constants.DefaultHTTPTimeout},
		auth:      auth,
		baseURL:   parsed,
		service:   parsed.Host,
		userAgent: constants.UserAgent,
		maxTries:  constants.MaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = constants.RetryBackoff
			b.MaxInterval = constants.MaxRetryBackoff
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Service returns the name used for this client in errors.
func (c *Client) Service() string {
	return c.service
}

// URL resolves path, which may be percent-encoded, against the base URL
// and attaches query.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.baseURL
	// path may carry escaped segments, such as a RAiD handle with %2F
	escaped := strings.TrimSuffix(c.baseURL.EscapedPath(), "/") + "/" + strings.TrimPrefix(path, "/")
	if unescaped, err := url.PathUnescape(escaped); err == nil {
		u.Path = unescaped
		u.RawPath = escaped
	} else {
		u.Path = escaped
		u.RawPath = ""
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.Do(ctx, http.MethodPut, path, nil, body)
}

// Do performs an authenticated request. 502 responses and timeouts are
// retried; any other response is returned to the caller unchanged.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, errors.WrapParse("json", "request body", err)
		}
	}

	target := c.URL(path, query)
	logger := logging.FromContext(ctx)

	attempt := func() (*http.Response, error) {
		req, err := c.newRequest(ctx, method, target, payload)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			c.observe(method, path, 0, time.Since(start))
			if ctx.Err() != nil {
				return nil, backoff.Permanent(fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err()))
			}
			if isTimeout(err) {
				return nil, fmt.Errorf("%w: %s %s: %w", errors.ErrTimeout, method, path, err)
			}
			return nil, backoff.Permanent(errors.WrapAPI(c.service, 0, fmt.Errorf("%s %s: %w", method, path, err)))
		}
		c.observe(method, path, resp.StatusCode, time.Since(start))

		if resp.StatusCode == http.StatusBadGateway {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return nil, &errors.APIError{
				Service:    c.service,
				StatusCode: resp.StatusCode,
				Message:    "bad gateway",
				Endpoint:   target,
			}
		}
		return resp, nil
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Debug().
				Err(err).
				Str("method", method).
				Str("path", path).
				Dur("wait", wait).
				Msg("Retrying request")
		}),
	)
}

func (c *Client) newRequest(ctx context.Context, method, target string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.WrapResource("create", "request", method+" "+target, err)
	}

	c.auth.Apply(req)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) observe(method, path string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(method, path, status, elapsed)
	}
}

func (c *Client) transport() *http.Transport {
	if t, ok := c.http.Transport.(*http.Transport); ok {
		return t
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	c.http.Transport = t
	return t
}

func isTimeout(err error) bool {
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
