package remotefetch_test

import (
	"context"
	"testing"

	"github.com/kaigraph/devgraph/internal/effect"
	"github.com/kaigraph/devgraph/remotefetch"
)

func TestRegistry_RegisterThenListSubgraphs(t *testing.T) {
	reg := remotefetch.NewRegistry()
	ref := effect.GraphRef{Name: "my-graph", Variant: "prod"}
	reg.Register(ref, []effect.RemoteSubgraph{
		{Name: "products", RoutingURL: "http://localhost:4001", SDL: "type Query { x: Int }"},
	}, "2.9.0", true)

	subgraphs, err := reg.ListSubgraphs(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subgraphs) != 1 || subgraphs[0].Name != "products" {
		t.Fatalf("unexpected result: %+v", subgraphs)
	}
}

func TestRegistry_FetchSubgraphUnknownGraphRefErrors(t *testing.T) {
	reg := remotefetch.NewRegistry()
	_, err := reg.FetchSubgraph(context.Background(), effect.GraphRef{Name: "unknown"}, "products")
	if err == nil {
		t.Fatal("expected error for unregistered graph ref")
	}
}

func TestRegistry_FederationVersionUnpinnedReportsFalse(t *testing.T) {
	reg := remotefetch.NewRegistry()
	ref := effect.GraphRef{Name: "my-graph"}
	reg.Register(ref, nil, "", false)

	_, pinned, err := reg.FederationVersion(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pinned {
		t.Fatalf("expected unpinned federation version")
	}
}

func TestRegistry_FederationVersionPinnedReportsTrue(t *testing.T) {
	reg := remotefetch.NewRegistry()
	ref := effect.GraphRef{Name: "my-graph"}
	reg.Register(ref, nil, "2.9.1", true)

	version, pinned, err := reg.FederationVersion(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pinned || version != "2.9.1" {
		t.Fatalf("expected pinned version 2.9.1, got %q pinned=%v", version, pinned)
	}
}

func TestRegistry_RegisterReplacesPreviousSet(t *testing.T) {
	reg := remotefetch.NewRegistry()
	ref := effect.GraphRef{Name: "my-graph"}
	reg.Register(ref, []effect.RemoteSubgraph{{Name: "a"}}, "", false)
	reg.Register(ref, []effect.RemoteSubgraph{{Name: "b"}}, "", false)

	subgraphs, err := reg.ListSubgraphs(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subgraphs) != 1 || subgraphs[0].Name != "b" {
		t.Fatalf("expected replaced set with only %q, got %+v", "b", subgraphs)
	}
}
