package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

func serverAddr(t *testing.T, srv *httptest.Server) HealthCheck {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}
	return HealthCheck{Enabled: true, Host: u.Hostname(), Port: port, Path: "/health"}
}

func TestWaitHealthy_SucceedsOnFirst2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hc := serverAddr(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := waitHealthy(ctx, srv.Client(), hc); err != nil {
		t.Fatalf("expected health check to succeed, got %v", err)
	}
}

func TestWaitHealthy_DisabledSkipsCheck(t *testing.T) {
	ctx := context.Background()
	if err := waitHealthy(ctx, nil, HealthCheck{Enabled: false}); err != nil {
		t.Fatalf("expected disabled health check to succeed immediately, got %v", err)
	}
}

// TestWaitHealthy_TimesOutBetween10And11Seconds exercises spec.md §8
// scenario 5: a server that never answers 2xx must fail after >= 10s and
// <= 11s, wrapped as HealthCheckFailedError.
func TestWaitHealthy_TimesOutBetween10And11Seconds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping long health-check timeout test in short mode")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	hc := serverAddr(t, srv)
	ctx := context.Background()

	start := time.Now()
	err := waitHealthy(ctx, srv.Client(), hc)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected health check to fail")
	}
	var hcErr *HealthCheckFailedError
	if !errors.As(err, &hcErr) {
		t.Fatalf("expected *HealthCheckFailedError, got %T: %v", err, err)
	}
	if elapsed < 10*time.Second || elapsed > 11*time.Second {
		t.Fatalf("expected failure between 10s and 11s, took %s", elapsed)
	}
}
