// Package remotefetch provides the default implementations of the
// effect.Introspector and effect.RemoteSubgraphFetcher effects: talking to
// a subgraph's `_service { sdl }` endpoint over HTTP, and an in-process
// Registry of published subgraphs. The core resolution/watch packages never import this package
// directly; they depend only on the effect interfaces.
package remotefetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MaxRetryWait caps exponential backoff between introspection attempts at
// 10s wall-clock, 2s under tests (spec.md §5 "Timeouts").
const MaxRetryWait = 10 * time.Second

// TestMaxRetryWait is the cap tests should install via
// HTTPIntrospector.RetryWaitMax to keep suites fast.
const TestMaxRetryWait = 2 * time.Second

type serviceSDLResponse struct {
	Data struct {
		Service struct {
			SDL string `json:"sdl"`
		} `json:"_service"`
	} `json:"data"`
}

// HTTPIntrospector implements effect.Introspector by POSTing the
// `{_service{sdl}}` introspection query to the subgraph's GraphQL endpoint,
// retrying transient failures with exponential backoff (spec.md §4.1, §5).
type HTTPIntrospector struct {
	Client       *http.Client
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// NewHTTPIntrospector returns an HTTPIntrospector configured with the
// module's default retry policy.
func NewHTTPIntrospector() *HTTPIntrospector {
	return &HTTPIntrospector{RetryWaitMax: MaxRetryWait}
}

func (h *HTTPIntrospector) retryableClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.Logger = nil
	c.HTTPClient = tracedHTTPClient(h.Client)
	c.RetryMax = h.RetryMax
	if c.RetryMax == 0 {
		c.RetryMax = 4
	}
	c.RetryWaitMin = h.RetryWaitMin
	if c.RetryWaitMin == 0 {
		c.RetryWaitMin = 100 * time.Millisecond
	}
	c.RetryWaitMax = h.RetryWaitMax
	if c.RetryWaitMax == 0 {
		c.RetryWaitMax = MaxRetryWait
	}
	return c
}

// tracedHTTPClient wraps base's transport (http.DefaultTransport if base is
// nil or leaves Transport unset) with otelhttp.NewTransport so every
// introspection request emits an HTTP client span, preserving base's
// Timeout/CheckRedirect/Jar.
func tracedHTTPClient(base *http.Client) *http.Client {
	transport := http.DefaultTransport
	client := &http.Client{}
	if base != nil {
		if base.Transport != nil {
			transport = base.Transport
		}
		client.Timeout = base.Timeout
		client.CheckRedirect = base.CheckRedirect
		client.Jar = base.Jar
	}
	client.Transport = otelhttp.NewTransport(transport)
	return client
}

// Introspect implements effect.Introspector.
func (h *HTTPIntrospector) Introspect(ctx context.Context, endpoint *url.URL, headers map[string]string) (string, error) {
	body := []byte(`{"query":"{_service{sdl}}"}`)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building introspection request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.retryableClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("introspecting %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d introspecting %s", resp.StatusCode, endpoint)
	}

	var svc serviceSDLResponse
	if err := json.NewDecoder(resp.Body).Decode(&svc); err != nil {
		return "", fmt.Errorf("decoding introspection response from %s: %w", endpoint, err)
	}
	if svc.Data.Service.SDL == "" {
		return "", fmt.Errorf("empty SDL returned by %s", endpoint)
	}
	return svc.Data.Service.SDL, nil
}
