package router

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// healthPollInterval and healthTimeout match spec.md §4.6/§5: "poll ...
// every 250 ms ... after 10 s with no success, return HealthCheckFailed".
const (
	healthPollInterval = 250 * time.Millisecond
	healthTimeout      = 10 * time.Second
)

// waitHealthy polls hc's URL until it answers 2xx, ctx is cancelled, or
// healthTimeout elapses (spec.md §8 scenario 5). A disabled health check
// is treated as immediate success.
func waitHealthy(ctx context.Context, client *http.Client, hc HealthCheck) error {
	if !hc.Enabled {
		return nil
	}
	client = tracedHTTPClient(client)

	url := hc.url()
	deadline := time.Now().Add(healthTimeout)
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	for {
		if pollOnce(ctx, client, url) {
			return nil
		}
		if time.Now().After(deadline) {
			return &HealthCheckFailedError{URL: url, Elapsed: healthTimeout.String()}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tracedHTTPClient wraps base's transport (http.DefaultTransport if base is
// nil or leaves Transport unset) with otelhttp.NewTransport so every
// health-check request emits an HTTP client span, preserving base's
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

func pollOnce(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
