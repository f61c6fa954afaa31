// Package api is the console's client for the Entity Store REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	applog "finconsole/internal/log"
)

var (
	storeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finconsole",
		Subsystem: "entity_store",
		Name:      "requests_total",
		Help:      "Entity Store calls broken down by method, endpoint and outcome.",
	}, []string{"method", "endpoint", "outcome"})

	storeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "finconsole",
		Subsystem: "entity_store",
		Name:      "latency_seconds",
		Help:      "Latency of Entity Store calls.",
		Buckets:   []float64{0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10},
	}, []string{"method", "endpoint"})
)

// Client talks to the Entity Store. A Client without a token is only good
// for login and registration; WithToken derives an authenticated one.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewClient creates a client for the Entity Store at baseURL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse entity store url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("entity store url must be http or https, got %q", baseURL)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// WithToken returns a copy of c that sends the bearer token on every call.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// envelope is the Entity Store's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

// do performs one request and decodes the envelope's data into out when out
// is non-nil. Non-2xx responses are turned into *Error.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	metricEndpoint := endpointLabel(endpoint)
	start := time.Now()
	outcome := "ok"
	defer func() {
		storeRequests.WithLabelValues(method, metricEndpoint, outcome).Inc()
		storeLatency.WithLabelValues(method, metricEndpoint).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			outcome = "encode"
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		outcome = "encode"
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = KindNetwork.String()
		applog.FromContext(ctx).WarnContext(ctx, "Entity store unreachable",
			applog.FieldMethod, method,
			applog.FieldPath, endpoint,
			applog.FieldError, err)
		return &Error{Kind: KindNetwork, Message: MsgNetwork, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		outcome = KindNetwork.String()
		return &Error{Kind: KindNetwork, Message: MsgNetwork, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := errorFromResponse(resp.StatusCode, raw)
		outcome = apiErr.Kind.String()
		applog.FromContext(ctx).WarnContext(ctx, "Entity store rejected request",
			applog.FieldMethod, method,
			applog.FieldPath, endpoint,
			applog.FieldStatusCode, resp.StatusCode,
			applog.FieldErrorKind, apiErr.Kind.String(),
			"message", apiErr.Message)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		outcome = "decode"
		return &Error{Kind: KindServerNoBody, Status: resp.StatusCode, Message: MsgInvalidData, Err: err}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		outcome = "decode"
		return &Error{Kind: KindServerNoBody, Status: resp.StatusCode, Message: MsgInvalidData, Err: err}
	}
	return nil
}

// errorFromResponse follows the message fallback chain: the body's message,
// then the status line for a JSON body without one, then the generic
// message when the body is not JSON at all.
func errorFromResponse(status int, raw []byte) *Error {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return &Error{Kind: KindServerNoBody, Status: status, Message: MsgUnknown}
	}
	return &Error{Kind: KindServer, Status: status, Message: statusMessage(status, body.Message)}
}

// endpointLabel strips query strings and numeric ids so metric labels stay
// bounded: "/api/budget/12?x=1" becomes "/api/budget/:id".
func endpointLabel(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if p != "" && strings.Trim(p, "0123456789") == "" {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
