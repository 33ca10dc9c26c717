package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kaigraph/devgraph/internal/effect"
	"github.com/kaigraph/devgraph/remotefetch"
	"github.com/kaigraph/devgraph/subgraph"
)

// RegistryServer exposes a remotefetch.Registry over HTTP so more than one
// devgraph process on the same machine can share one subgraph registry,
// generalized from the teacher's registryServer path-switch handler
// (server/server.go), which exposed a single /schema/registration write
// endpoint over a registry.Registry. This adds the read endpoints the core
// needs (effect.RemoteSubgraphFetcher has no write side of its own).
type RegistryServer struct {
	registry *remotefetch.Registry
}

// NewRegistryServer wraps an existing Registry for HTTP exposure.
func NewRegistryServer(registry *remotefetch.Registry) *RegistryServer {
	return &RegistryServer{registry: registry}
}

type registerRequest struct {
	GraphRef          string                  `json:"graph_ref"`
	Subgraphs         []effect.RemoteSubgraph `json:"subgraphs"`
	FederationVersion string                  `json:"federation_version"`
	Pinned            bool                    `json:"pinned"`
}

func (s *RegistryServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/registry/register":
		if req.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleRegister(w, req)
	case "/registry/subgraphs":
		if req.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleListSubgraphs(w, req)
	case "/registry/federation-version":
		if req.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleFederationVersion(w, req)
	default:
		http.NotFound(w, req)
	}
}

func (s *RegistryServer) handleRegister(w http.ResponseWriter, req *http.Request) {
	var body registerRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.GraphRef == "" {
		http.Error(w, "graph_ref is required", http.StatusBadRequest)
		return
	}
	s.registry.Register(parseGraphRef(body.GraphRef), body.Subgraphs, body.FederationVersion, body.Pinned)
	w.WriteHeader(http.StatusNoContent)
}

func (s *RegistryServer) handleListSubgraphs(w http.ResponseWriter, req *http.Request) {
	graphRef := req.URL.Query().Get("graph_ref")
	subgraphs, err := s.registry.ListSubgraphs(req.Context(), parseGraphRef(graphRef))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(subgraphs)
}

func (s *RegistryServer) handleFederationVersion(w http.ResponseWriter, req *http.Request) {
	graphRef := req.URL.Query().Get("graph_ref")
	version, ok, err := s.registry.FederationVersion(req.Context(), parseGraphRef(graphRef))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Version string `json:"version"`
		Pinned  bool   `json:"pinned"`
	}{Version: version, Pinned: ok})
}

func parseGraphRef(text string) effect.GraphRef {
	graphRef, err := subgraph.ParseGraphRef(text)
	if err != nil {
		return effect.GraphRef{}
	}
	return graphRef
}

// RunRegistryServer serves a Registry over HTTP at addr until ctx is
// cancelled or a SIGTERM/SIGINT arrives, mirroring the teacher's RunRegistry
// lifecycle (signal.NotifyContext, 5s graceful shutdown).
func RunRegistryServer(ctx context.Context, addr string, registry *remotefetch.Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: otelhttp.NewHandler(NewRegistryServer(registry), serviceName+"-registry"),
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, os.Interrupt)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-signalCtx.Done():
	case err := <-serveErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down registry server")
	return srv.Shutdown(shutdownCtx)
}
