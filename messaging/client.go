// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

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
	"strings"

	"github.com/bureau-foundation/protoclient/lib/netutil"
	"github.com/bureau-foundation/protoclient/lib/version"
)

const (
	// apiPath is appended to the configured root address unless it is
	// already there.
	apiPath = "api/v1/"

	tokenPath = "tokens/"
	mePath    = "me/"

	// TokenHeader carries the bearer credential on every request issued
	// while a session is active.
	TokenHeader = "X-Protonet-Token"

	contentTypeJSON   = "application/json"
	contentTypeBinary = "application/octet-stream"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the root address of the Protonet box (e.g.,
	// "https://box.example.com"). "api/v1/" is appended if missing.
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string
}

// Client is the session controller for one Protonet account. It owns
// the credential store, the cancellation scope and the event bus, and
// routes every domain call through the request executor. Authenticated
// calls are guarded: a 401 clears the session and fires
// EventAuthenticationFailed instead of returning an error.
//
// A Client is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	credentials *credentialStore
	scope       *cancelScope
	events      *eventBus
}

// NewClient creates an anonymous client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("messaging: BaseURL is required")
	}

	baseURL, err := normalizeBaseURL(config.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		logger:      logger,
		userAgent:   userAgent,
		credentials: &credentialStore{},
		scope:       newCancelScope(),
		events:      newEventBus(logger),
	}, nil
}

// normalizeBaseURL appends "/" and apiPath to raw unless it already
// ends with apiPath.
func normalizeBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, apiPath) {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		raw += apiPath
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("messaging: invalid BaseURL %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("messaging: BaseURL %q must be http or https", raw)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("messaging: BaseURL %q has no host", raw)
	}
	return parsed, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// resolve turns a target locator into an absolute URL. Relative paths
// resolve against the API root; hypermedia locators returned by the
// service are usually absolute and pass through.
func (c *Client) resolve(target string) (string, error) {
	reference, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("messaging: invalid target %q: %w", target, err)
	}
	return c.baseURL.ResolveReference(reference).String(), nil
}

// request is the outbound envelope for one exchange. At most one of
// body (JSON-encoded) and raw (streamed as-is) is set. credential is
// threaded explicitly; there are no shared default headers.
type request struct {
	method      string
	target      string
	credential  credential
	body        any
	raw         io.Reader
	contentType string
	header      http.Header
}

// response is the inbound envelope: status and the bounded raw body.
type response struct {
	statusCode int
	body       []byte
}

// send performs the exchange and returns the live response. The caller
// owns the returned release func and must call it after the body has
// been consumed; it detaches the request from the cancellation scope.
func (c *Client) send(ctx context.Context, req request) (*http.Response, context.CancelFunc, error) {
	requestURL, err := c.resolve(req.target)
	if err != nil {
		return nil, nil, err
	}

	var bodyReader io.Reader
	contentType := req.contentType
	switch {
	case req.raw != nil:
		bodyReader = req.raw
		if contentType == "" {
			contentType = contentTypeBinary
		}
	case req.body != nil:
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, nil, fmt.Errorf("messaging: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
		contentType = contentTypeJSON
	}

	requestCtx, release := c.scope.bind(ctx)

	httpRequest, err := http.NewRequestWithContext(requestCtx, req.method, requestURL, bodyReader)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("messaging: failed to create request: %w", err)
	}

	for key, values := range req.header {
		for _, value := range values {
			httpRequest.Header.Add(key, value)
		}
	}
	httpRequest.Header.Set("Accept", contentTypeJSON)
	httpRequest.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		httpRequest.Header.Set("Content-Type", contentType)
	}
	if req.credential.present() {
		httpRequest.Header.Set(TokenHeader, req.credential.token)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		failure := classifyFailure(requestCtx, req.method, req.target, err)
		release()
		return nil, nil, failure
	}
	return httpResponse, release, nil
}

// classifyFailure decides between Cancelled and TransportFailure for
// an error that interrupted the exchange. A request context cancelled
// by the scope or the caller is Cancelled. An expired deadline is a
// timeout and, like any other network failure, a TransportFailure.
func classifyFailure(requestCtx context.Context, method, target string, err error) error {
	if cancelled(requestCtx) {
		return &cancelledError{Method: method, Target: target, Err: context.Cause(requestCtx)}
	}
	return &TransportError{Method: method, Target: target, Err: err}
}

// cancelled reports whether ctx ended by cancellation rather than by
// a deadline.
func cancelled(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	cause := context.Cause(ctx)
	return errors.Is(cause, errScopeInvalidated) || errors.Is(cause, context.Canceled)
}

// execute performs exactly one exchange and validates the status. On
// 2xx it returns the body. A 401 yields an *HTTPError matching
// ErrUnauthorized; any other non-2xx yields an *HTTPError.
func (c *Client) execute(ctx context.Context, req request) (*response, error) {
	httpResponse, release, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer release()
	defer httpResponse.Body.Close()

	body, err := netutil.ReadResponse(httpResponse.Body)
	if err != nil {
		return nil, classifyFailure(httpResponse.Request.Context(), req.method, req.target, err)
	}

	if err := checkStatus(req.method, req.target, httpResponse.StatusCode, body); err != nil {
		return nil, err
	}
	return &response{statusCode: httpResponse.StatusCode, body: body}, nil
}

// checkStatus maps a status code onto the error taxonomy.
func checkStatus(method, target string, statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return &HTTPError{
		StatusCode: statusCode,
		Method:     method,
		Target:     target,
		Body:       netutil.Truncate(body, maxErrorBody),
	}
}

// maxErrorBody bounds how much of an error response is kept on HTTPError.
const maxErrorBody = 1024

// decode parses a 2xx body into T.
func decode[T any](target string, resp *response) (*T, error) {
	var value T
	if err := json.Unmarshal(resp.body, &value); err != nil {
		return nil, &DecodeError{Target: target, Err: err}
	}
	return &value, nil
}

// call is execute followed by decode.
func call[T any](ctx context.Context, c *Client, req request) (*T, error) {
	resp, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return decode[T](req.target, resp)
}

// errMissingField builds a DecodeError for a 2xx body that parsed but
// lacked the wrapped record.
func errMissingField(target, field string) error {
	return &DecodeError{Target: target, Err: errors.New("response has no " + field)}
}
