// Package gateway is the HTTP client for the system under test: the model
// serving gateway and its management API. Every request the verifier sends
// flows through here, so header conventions (bearer token, subscription
// selector) and response decoding live in one place.
package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SubscriptionHeader selects which subscription a request is accounted
// against when the caller holds more than one.
const SubscriptionHeader = "x-maas-subscription"

// UsageHeader carries the token usage total the gateway metered for the
// request.
const UsageHeader = "x-odhu-usage-total-tokens"

// Options configure a Client.
type Options struct {
	// GatewayURL is the inference endpoint base, e.g. "https://gateway.example".
	GatewayURL string

	// APIBaseURL is the management API base, e.g. "https://gateway.example/maas-api".
	APIBaseURL string

	// Timeout per request. Default: 30s.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS verification for self-signed test
	// gateways. Never set outside a test environment.
	InsecureSkipVerify bool

	Logger *slog.Logger
}

// Client talks to the gateway and its management API.
type Client struct {
	http       *http.Client
	gatewayURL string
	apiBaseURL string
	logger     *slog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		gatewayURL: strings.TrimRight(opts.GatewayURL, "/"),
		apiBaseURL: strings.TrimRight(opts.APIBaseURL, "/"),
		logger:     logger,
	}
}

// HTTPClient exposes the underlying http.Client for components that need
// raw access, such as the token minter.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// APIBaseURL returns the management API base URL.
func (c *Client) APIBaseURL() string {
	return c.apiBaseURL
}

// Request describes one call to the gateway.
type Request struct {
	// Method defaults to GET without a payload and POST with one.
	Method string

	// Path is appended to the gateway URL, e.g. "/simulator/v1/chat/completions".
	// Paths beginning with "/maas-api" or resolved via API() go to the
	// management API base instead.
	Path string

	// Token is sent as a bearer Authorization header when non-empty.
	Token string

	// Subscription is sent as the subscription selector header when
	// non-empty.
	Subscription string

	// Payload is the JSON request body.
	Payload []byte

	// ExtraHeaders are set verbatim after the standard headers.
	ExtraHeaders map[string]string
}

// Response is a fully read gateway response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// TotalTokens reports the metered token usage for the request: the usage
// header when present, otherwise the usage.total_tokens field of the body.
// The second return is false when neither source reported usage.
func (r *Response) TotalTokens() (int64, bool) {
	if raw := r.Header.Get(UsageHeader); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n, true
		}
	}
	var body struct {
		Usage struct {
			TotalTokens int64 `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(r.Body, &body); err == nil && body.Usage.TotalTokens > 0 {
		return body.Usage.TotalTokens, true
	}
	return 0, false
}

// Do sends the request against the gateway base URL.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	return c.send(ctx, c.gatewayURL, req)
}

// DoAPI sends the request against the management API base URL.
func (c *Client) DoAPI(ctx context.Context, req Request) (*Response, error) {
	return c.send(ctx, c.apiBaseURL, req)
}

func (c *Client) send(ctx context.Context, base string, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		if req.Payload != nil {
			method = http.MethodPost
		} else {
			method = http.MethodGet
		}
	}

	url := base + req.Path
	var body io.Reader
	if req.Payload != nil {
		body = bytes.NewReader(req.Payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request %s %s: %w", method, url, err)
	}
	if req.Payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	if req.Subscription != "" {
		httpReq.Header.Set(SubscriptionHeader, req.Subscription)
	}
	for k, v := range req.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &RequestError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &RequestError{Method: method, URL: url, Err: err}
	}

	c.logger.Debug("gateway request",
		"method", method, "url", url,
		"subscription", req.Subscription, "status", resp.StatusCode)

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   raw,
	}, nil
}

// RequestError reports a request that never produced an HTTP response.
type RequestError struct {
	Method string
	URL    string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
