package watch

import (
	"context"
	"fmt"

	"github.com/kaigraph/devgraph/internal/effect"
	"github.com/kaigraph/devgraph/subgraph"
)

// Watcher emits events for one subgraph source until ctx is cancelled. It
// must stop producing events and release its resources before Run returns
// (spec.md §4.3, §5 "cancel-safe").
type Watcher interface {
	Run(ctx context.Context, out chan<- Event)
}

// RoutingURLUpdater is implemented by watchers whose routing URL is
// static and therefore can be moved without a restart (spec.md §4.4 step
// 4). PollWatcher doesn't implement it: its routing URL already comes
// fresh from each fetch.
type RoutingURLUpdater interface {
	UpdateRoutingURL(url string)
}

func (f *FileWatcher) UpdateRoutingURL(url string) { f.RoutingURL.Set(url) }
func (s *SDLWatcher) UpdateRoutingURL(url string)  { s.RoutingURL.Set(url) }

// New builds the Watcher matching d's schema source kind (spec.md §4.3:
// "Watchers are themselves a variant whose payload captures the per-source
// state").
func New(name string, d subgraph.Descriptor, introspector effect.Introspector, fetcher effect.RemoteSubgraphFetcher) (Watcher, error) {
	switch d.Schema.Kind {
	case subgraph.SourceFile:
		return &FileWatcher{Name: name, Path: d.Schema.FilePath, RoutingURL: NewRoutingURLBox(d.RoutingURL)}, nil

	case subgraph.SourceIntrospection:
		endpoint := d.Schema.IntrospectionURL
		headers := d.Schema.IntrospectionHeaders
		staticRoutingURL := d.RoutingURL
		if staticRoutingURL == "" {
			staticRoutingURL = endpoint.String()
		}
		return &PollWatcher{
			Name:     name,
			Interval: DefaultPollInterval,
			Fetch: func(ctx context.Context) (string, string, error) {
				sdl, err := introspector.Introspect(ctx, endpoint, headers)
				return sdl, staticRoutingURL, err
			},
		}, nil

	case subgraph.SourceRemote:
		graphRef, err := subgraph.ParseGraphRef(d.Schema.GraphRefText)
		if err != nil {
			return nil, err
		}
		subgraphName := d.Schema.SubgraphName
		explicitRoutingURL := d.RoutingURL
		return &PollWatcher{
			Name:     name,
			Interval: DefaultPollInterval,
			Fetch: func(ctx context.Context) (string, string, error) {
				remote, err := fetcher.FetchSubgraph(ctx, graphRef, subgraphName)
				if err != nil {
					return "", "", err
				}
				routingURL := explicitRoutingURL
				if routingURL == "" {
					routingURL = remote.RoutingURL
				}
				return remote.SDL, routingURL, nil
			},
		}, nil

	case subgraph.SourceSDL:
		return &SDLWatcher{Name: name, SDL: d.Schema.SDL, RoutingURL: NewRoutingURLBox(d.RoutingURL)}, nil

	default:
		return nil, fmt.Errorf("unknown schema source kind %v for subgraph %q", d.Schema.Kind, name)
	}
}
