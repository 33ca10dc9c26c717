package remotefetch

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kaigraph/devgraph/internal/effect"
)

// registeredGraph is one graph variant's known subgraph set plus its pinned
// federation version, generalized from the teacher registry's
// RegistrationGraph shape (name, routing host, SDL).
type registeredGraph struct {
	subgraphs  map[string]effect.RemoteSubgraph
	fedVersion string
	pinned     bool
}

// Registry is the default, in-process implementation of
// effect.RemoteSubgraphFetcher: an atomically-swapped map of graph ref to
// its registered subgraph set (spec.md §1 "the core sees an injected
// remote-subgraph fetcher service" — this is that service's default, for
// single-process local dev; orchestrator.RegistryServer exposes the same
// store over HTTP for multi-process setups).
//
// Adapted from the teacher's registry.Registry: the atomic.Value-backed
// storage survives, but the role inverts from "receive pushed
// registrations from gateways" to "answer fetch/list/federation-version
// queries from the core".
type Registry struct {
	graphs atomic.Value // map[string]registeredGraph
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.graphs.Store(make(map[string]registeredGraph))
	return r
}

func (r *Registry) snapshot() map[string]registeredGraph {
	return r.graphs.Load().(map[string]registeredGraph)
}

// Register records subgraphs as the registry's current view of graphRef,
// replacing any previously registered set. It is the write-side API the
// teacher's RegisterGateway handler drove directly over HTTP; here it is
// called by orchestrator.RegistryServer after decoding a registration
// request, or directly by tests and single-process callers.
func (r *Registry) Register(graphRef effect.GraphRef, subgraphs []effect.RemoteSubgraph, fedVersion string, pinned bool) {
	next := make(map[string]registeredGraph, len(r.snapshot())+1)
	for k, v := range r.snapshot() {
		next[k] = v
	}

	byName := make(map[string]effect.RemoteSubgraph, len(subgraphs))
	for _, s := range subgraphs {
		byName[s.Name] = s
	}
	next[graphRef.String()] = registeredGraph{subgraphs: byName, fedVersion: fedVersion, pinned: pinned}
	r.graphs.Store(next)
}

func (r *Registry) lookup(graphRef effect.GraphRef) (registeredGraph, bool) {
	g, ok := r.snapshot()[graphRef.String()]
	return g, ok
}

// FetchSubgraph implements effect.RemoteSubgraphFetcher.
func (r *Registry) FetchSubgraph(ctx context.Context, graphRef effect.GraphRef, subgraphName string) (effect.RemoteSubgraph, error) {
	g, ok := r.lookup(graphRef)
	if !ok {
		return effect.RemoteSubgraph{}, fmt.Errorf("graph ref %s is not registered", graphRef)
	}
	sub, ok := g.subgraphs[subgraphName]
	if !ok {
		return effect.RemoteSubgraph{}, fmt.Errorf("subgraph %q not found in graph ref %s", subgraphName, graphRef)
	}
	return sub, nil
}

// ListSubgraphs implements effect.RemoteSubgraphFetcher.
func (r *Registry) ListSubgraphs(ctx context.Context, graphRef effect.GraphRef) ([]effect.RemoteSubgraph, error) {
	g, ok := r.lookup(graphRef)
	if !ok {
		return nil, fmt.Errorf("graph ref %s is not registered", graphRef)
	}
	out := make([]effect.RemoteSubgraph, 0, len(g.subgraphs))
	for _, s := range g.subgraphs {
		out = append(out, s)
	}
	return out, nil
}

// FederationVersion implements effect.RemoteSubgraphFetcher. An
// unregistered graph ref, or one with no pinned version, reports ok=false
// rather than an error so callers fall back to their own default-selection
// rules (spec.md §4.2).
func (r *Registry) FederationVersion(ctx context.Context, graphRef effect.GraphRef) (string, bool, error) {
	g, ok := r.lookup(graphRef)
	if !ok || !g.pinned {
		return "", false, nil
	}
	return g.fedVersion, true, nil
}
