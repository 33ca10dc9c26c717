package orchestrator

import (
	"context"
	"errors"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/kaigraph/devgraph/internal/effect"
	"github.com/kaigraph/devgraph/supergraphconfig"
)

type stubFetcher struct {
	listed     []effect.RemoteSubgraph
	fedVersion string
	hasFed     bool
}

func (s stubFetcher) FetchSubgraph(ctx context.Context, graphRef effect.GraphRef, name string) (effect.RemoteSubgraph, error) {
	for _, r := range s.listed {
		if r.Name == name {
			return r, nil
		}
	}
	return effect.RemoteSubgraph{}, errors.New("not found")
}

func (s stubFetcher) ListSubgraphs(ctx context.Context, graphRef effect.GraphRef) ([]effect.RemoteSubgraph, error) {
	return s.listed, nil
}

func (s stubFetcher) FederationVersion(ctx context.Context, graphRef effect.GraphRef) (string, bool, error) {
	return s.fedVersion, s.hasFed, nil
}

type stubIntrospector struct {
	sdl string
	err error
}

func (s stubIntrospector) Introspect(ctx context.Context, endpoint *url.URL, headers map[string]string) (string, error) {
	return s.sdl, s.err
}

func mustWriteTempFile(t *testing.T, contents string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "supergraph-*.yaml")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(contents); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	return f.Name()
}

func TestResolveInitial_MergesRemoteAndLocal(t *testing.T) {
	fetcher := stubFetcher{listed: []effect.RemoteSubgraph{
		{Name: "products", RoutingURL: "http://products.example.com", SDL: "type Query { p: Int }"},
	}}

	localYAML := `
subgraphs:
  reviews:
    routing_url: http://reviews.example.com
    schema:
      sdl: "type Query { r: Int }"
`
	opts := Options{
		ConfigPath:   mustWriteTempFile(t, localYAML),
		Stdin:        strings.NewReader(""),
		Fetcher:      fetcher,
		Introspector: stubIntrospector{},
		GraphRef:     &effect.GraphRef{Name: "mygraph", Variant: "current"},
	}

	resolved, lazy, err := resolveInitial(context.Background(), opts)
	if err != nil {
		t.Fatalf("resolveInitial: %v", err)
	}
	if len(resolved.resolutionErrors) != 0 {
		t.Fatalf("expected no resolution errors, got %+v", resolved.resolutionErrors)
	}
	if resolved.config.Subgraphs.Len() != 2 {
		t.Fatalf("expected 2 subgraphs, got %d", resolved.config.Subgraphs.Len())
	}
	if _, ok := resolved.config.Subgraphs.Get("products"); !ok {
		t.Fatalf("expected remote subgraph products to survive the merge")
	}
	if _, ok := resolved.config.Subgraphs.Get("reviews"); !ok {
		t.Fatalf("expected local subgraph reviews to survive the merge")
	}
	if lazy.Len() != 2 {
		t.Fatalf("expected lazy set to mirror the merged set, got %d", lazy.Len())
	}
}

func TestResolveInitial_EmptySetSeedsDefaultSubgraph(t *testing.T) {
	opts := Options{
		ConfigPath:   mustWriteTempFile(t, "subgraphs: {}\n"),
		Stdin:        strings.NewReader(""),
		Fetcher:      stubFetcher{},
		Introspector: stubIntrospector{sdl: "type Query { hello: String }"},
		DefaultSubgraph: supergraphconfig.DefaultSubgraphOptions{
			CLI: &supergraphconfig.DefaultSubgraph{Name: "starter", URL: "http://localhost:4001/graphql"},
		},
	}

	resolved, lazy, err := resolveInitial(context.Background(), opts)
	if err != nil {
		t.Fatalf("resolveInitial: %v", err)
	}
	if resolved.config.Subgraphs.Len() != 1 {
		t.Fatalf("expected exactly the seeded default subgraph, got %d", resolved.config.Subgraphs.Len())
	}
	if _, ok := resolved.config.Subgraphs.Get("starter"); !ok {
		t.Fatalf("expected default subgraph %q to be present", "starter")
	}
	if lazy.Len() != 1 {
		t.Fatalf("expected lazy set to contain the seeded default subgraph, got %d", lazy.Len())
	}
}

func TestResolveInitial_EmptySetNoDefaultFailsFast(t *testing.T) {
	opts := Options{
		ConfigPath:   mustWriteTempFile(t, "subgraphs: {}\n"),
		Stdin:        strings.NewReader(""),
		Fetcher:      stubFetcher{},
		Introspector: stubIntrospector{},
	}

	_, _, err := resolveInitial(context.Background(), opts)
	if !errors.Is(err, supergraphconfig.ErrNoDefaultSubgraph) {
		t.Fatalf("expected ErrNoDefaultSubgraph, got %v", err)
	}
}

func TestResolveInitial_PerSubgraphIntrospectionFailureIsReportedNotFatal(t *testing.T) {
	localYAML := `
subgraphs:
  broken:
    routing_url: http://broken.example.com
    schema:
      subgraph_url: http://broken.example.com/graphql
`
	opts := Options{
		ConfigPath:   mustWriteTempFile(t, localYAML),
		Stdin:        strings.NewReader(""),
		Fetcher:      stubFetcher{},
		Introspector: stubIntrospector{err: errors.New("connection refused")},
	}

	resolved, _, err := resolveInitial(context.Background(), opts)
	if err != nil {
		t.Fatalf("resolveInitial should not fail outright on a per-subgraph error: %v", err)
	}
	if len(resolved.resolutionErrors) != 1 {
		t.Fatalf("expected one resolution error, got %+v", resolved.resolutionErrors)
	}
	if _, ok := resolved.resolutionErrors["broken"]; !ok {
		t.Fatalf("expected resolution error keyed by subgraph name, got %+v", resolved.resolutionErrors)
	}
}

func TestPrepareReady_ReadsFromStdinWhenConfigPathEmpty(t *testing.T) {
	opts := Options{
		ConfigPath: "",
		Stdin: strings.NewReader(`
subgraphs:
  inventory:
    routing_url: http://inventory.example.com
    schema:
      sdl: "type Query { i: Int }"
`),
		Fetcher:      stubFetcher{},
		Introspector: stubIntrospector{},
	}

	ready, err := prepareReady(context.Background(), opts)
	if err != nil {
		t.Fatalf("prepareReady: %v", err)
	}
	if len(ready.EnvWarnings()) != 0 {
		t.Fatalf("expected no env warnings, got %+v", ready.EnvWarnings())
	}
}

func TestPrepareReady_PropagatesContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := Options{
		ConfigPath:   mustWriteTempFile(t, "subgraphs: {}\n"),
		Stdin:        strings.NewReader(""),
		Fetcher:      cancelAwareFetcher{},
		Introspector: stubIntrospector{},
		GraphRef:     &effect.GraphRef{Name: "mygraph"},
	}

	_, err := prepareReady(ctx, opts)
	if err == nil {
		t.Fatalf("expected prepareReady to surface the cancelled context")
	}
}

// cancelAwareFetcher fails LoadRemote's ListSubgraphs call as soon as its
// ctx is already cancelled, proving ctx is actually threaded through
// prepareReady rather than silently replaced.
type cancelAwareFetcher struct{}

func (cancelAwareFetcher) FetchSubgraph(ctx context.Context, graphRef effect.GraphRef, name string) (effect.RemoteSubgraph, error) {
	return effect.RemoteSubgraph{}, ctx.Err()
}

func (cancelAwareFetcher) ListSubgraphs(ctx context.Context, graphRef effect.GraphRef) ([]effect.RemoteSubgraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (cancelAwareFetcher) FederationVersion(ctx context.Context, graphRef effect.GraphRef) (string, bool, error) {
	return "", false, nil
}
