package watch

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/kaigraph/devgraph/internal/effect"
	"github.com/kaigraph/devgraph/subgraph"
)

type fakeIntrospector struct{ sdl string }

func (f fakeIntrospector) Introspect(ctx context.Context, endpoint *url.URL, headers map[string]string) (string, error) {
	return f.sdl, nil
}

type fakeFetcher struct{ sdl string }

func (f fakeFetcher) FetchSubgraph(ctx context.Context, ref effect.GraphRef, name string) (effect.RemoteSubgraph, error) {
	return effect.RemoteSubgraph{Name: name, SDL: f.sdl, RoutingURL: "http://remote.example.com"}, nil
}
func (f fakeFetcher) ListSubgraphs(ctx context.Context, ref effect.GraphRef) ([]effect.RemoteSubgraph, error) {
	return nil, nil
}
func (f fakeFetcher) FederationVersion(ctx context.Context, ref effect.GraphRef) (string, bool, error) {
	return "", false, nil
}

func TestNew_SelectsWatcherByKind(t *testing.T) {
	u, _ := url.Parse("http://localhost:4001/graphql")

	cases := []struct {
		name string
		d    subgraph.Descriptor
		want any
	}{
		{"sdl", subgraph.Descriptor{Name: "a", Schema: subgraph.Source{Kind: subgraph.SourceSDL, SDL: "type Query { a: Int }"}}, &SDLWatcher{}},
		{"introspection", subgraph.Descriptor{Name: "b", Schema: subgraph.Source{Kind: subgraph.SourceIntrospection, IntrospectionURL: u}}, &PollWatcher{}},
		{"remote", subgraph.Descriptor{Name: "c", Schema: subgraph.Source{Kind: subgraph.SourceRemote, GraphRefText: "mygraph@current", SubgraphName: "c"}}, &PollWatcher{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := New(tc.name, tc.d, fakeIntrospector{sdl: "type Query { x: Int }"}, fakeFetcher{sdl: "type Query { y: Int }"})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			switch tc.want.(type) {
			case *SDLWatcher:
				if _, ok := w.(*SDLWatcher); !ok {
					t.Fatalf("expected *SDLWatcher, got %T", w)
				}
			case *PollWatcher:
				if _, ok := w.(*PollWatcher); !ok {
					t.Fatalf("expected *PollWatcher, got %T", w)
				}
			}
		})
	}
}

func TestNew_RemoteWatcherFetchesByGraphRef(t *testing.T) {
	d := subgraph.Descriptor{
		Name:   "c",
		Schema: subgraph.Source{Kind: subgraph.SourceRemote, GraphRefText: "mygraph@current", SubgraphName: "c"},
	}
	w, err := New("c", d, fakeIntrospector{}, fakeFetcher{sdl: "type Query { y: Int }"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan Event, 4)
	go w.Run(ctx, out)

	select {
	case ev := <-out:
		if ev.NewSDL != "type Query { y: Int }" {
			t.Fatalf("expected fetched SDL, got %q", ev.NewSDL)
		}
		if ev.NewRoutingURL != "http://remote.example.com" {
			t.Fatalf("expected remote routing url inherited, got %q", ev.NewRoutingURL)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestNew_UnknownKindErrors(t *testing.T) {
	_, err := New("x", subgraph.Descriptor{Name: "x", Schema: subgraph.Source{Kind: subgraph.SourceKind(99)}}, fakeIntrospector{}, fakeFetcher{})
	if err == nil {
		t.Fatal("expected error for unknown source kind")
	}
}
