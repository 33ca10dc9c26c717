package subgraph

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kaigraph/devgraph/internal/effect"
)

type fakeIntrospector struct {
	sdl string
	err error
}

func (f fakeIntrospector) Introspect(ctx context.Context, endpoint *url.URL, headers map[string]string) (string, error) {
	return f.sdl, f.err
}

type fakeFetcher struct {
	remote effect.RemoteSubgraph
	err    error
}

func (f fakeFetcher) FetchSubgraph(ctx context.Context, graphRef effect.GraphRef, name string) (effect.RemoteSubgraph, error) {
	return f.remote, f.err
}
func (f fakeFetcher) ListSubgraphs(ctx context.Context, graphRef effect.GraphRef) ([]effect.RemoteSubgraph, error) {
	return nil, nil
}
func (f fakeFetcher) FederationVersion(ctx context.Context, graphRef effect.GraphRef) (string, bool, error) {
	return "", false, nil
}

func TestResolveLazy_FileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.graphql")
	if err := os.WriteFile(path, []byte("type Query { x: Int }"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := Descriptor{Name: "products", Schema: Source{Kind: SourceFile, FilePath: "products.graphql"}}
	resolved, err := ResolveLazy(dir, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(resolved.Schema.FilePath) {
		t.Fatalf("expected absolute path, got %q", resolved.Schema.FilePath)
	}
	if _, err := os.Stat(resolved.Schema.FilePath); err != nil {
		t.Fatalf("resolved path does not exist: %v", err)
	}
}

func TestResolveLazy_FileMissing(t *testing.T) {
	dir := t.TempDir()
	d := Descriptor{Name: "products", Schema: Source{Kind: SourceFile, FilePath: "missing.graphql"}}

	_, err := ResolveLazy(dir, d)
	var notFound *FileNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected FileNotFoundError, got %v", err)
	}
	if notFound.SubgraphName != "products" {
		t.Fatalf("expected subgraph name to be preserved, got %q", notFound.SubgraphName)
	}
}

func TestResolveLazy_NonFilePassesThrough(t *testing.T) {
	d := Descriptor{Name: "products", Schema: Source{Kind: SourceSDL, SDL: "type Query { x: Int }"}}
	resolved, err := ResolveLazy("/anywhere", d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(d, resolved); diff != "" {
		t.Fatalf("expected SDL descriptor unchanged (-want +got):\n%s", diff)
	}
}

func TestResolveFull_SDL(t *testing.T) {
	d := Descriptor{Name: "products", Schema: Source{Kind: SourceSDL, SDL: "type Query { x: Int }"}}
	resolved, err := ResolveFull(context.Background(), fakeIntrospector{}, fakeFetcher{}, "", d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.RoutingURL != "" {
		t.Fatalf("expected no routing url for inline SDL, got %q", resolved.RoutingURL)
	}
	if resolved.SDL != d.Schema.SDL {
		t.Fatalf("sdl mismatch: got %q", resolved.SDL)
	}
}

func TestResolveFull_Introspection_RoutingURLFallsBackToEndpoint(t *testing.T) {
	endpoint, _ := url.Parse("http://products.example.com/graphql")
	d := Descriptor{Name: "products", Schema: Source{Kind: SourceIntrospection, IntrospectionURL: endpoint}}
	resolved, err := ResolveFull(context.Background(), fakeIntrospector{sdl: "type Query { x: Int }"}, fakeFetcher{}, "", d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.RoutingURL != endpoint.String() {
		t.Fatalf("expected routing url to fall back to endpoint, got %q", resolved.RoutingURL)
	}
}

func TestResolveFull_Remote_MissingRoutingURL(t *testing.T) {
	d := Descriptor{
		Name:   "products",
		Schema: Source{Kind: SourceRemote, GraphRefText: "mygraph@current", SubgraphName: "products"},
	}
	_, err := ResolveFull(context.Background(), fakeIntrospector{}, fakeFetcher{remote: effect.RemoteSubgraph{SDL: "type Query { x: Int }"}}, "", d)
	var missing *MissingRoutingURLError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingRoutingURLError, got %v", err)
	}
}

func TestResolveFull_FedTwoDetection(t *testing.T) {
	sdl := `extend schema @link(url: "https://specs.apollo.dev/federation/v2.0")

type Query { x: Int }`
	d := Descriptor{Name: "products", Schema: Source{Kind: SourceSDL, SDL: sdl}}
	resolved, err := ResolveFull(context.Background(), fakeIntrospector{}, fakeFetcher{}, "", d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resolved.IsFedTwo {
		t.Fatalf("expected @link schema extension to be detected as fed2")
	}
}

func TestResolveAllFull_PartitionsSuccessAndFailure(t *testing.T) {
	descriptors := map[string]Descriptor{
		"ok":   {Name: "ok", Schema: Source{Kind: SourceSDL, SDL: "type Query { x: Int }"}},
		"fail": {Name: "fail", Schema: Source{Kind: SourceFile, FilePath: "nope.graphql"}},
	}
	result := ResolveAllFull(context.Background(), fakeIntrospector{}, fakeFetcher{}, t.TempDir(), descriptors)
	if _, ok := result.Resolved["ok"]; !ok {
		t.Fatalf("expected 'ok' subgraph to resolve")
	}
	if _, ok := result.Errors["fail"]; !ok {
		t.Fatalf("expected 'fail' subgraph to have a resolution error")
	}
	if len(result.Resolved) != 1 || len(result.Errors) != 1 {
		t.Fatalf("expected exactly one success and one failure, got %+v / %+v", result.Resolved, result.Errors)
	}
}
