package watch

import "context"

// SDLWatcher is the degenerate watcher for an inline SDL source: it has no
// content to watch, so it emits exactly one SubgraphSchemaChanged and then
// blocks until ctx is cancelled (spec.md §4.3: "SDL: never changes; emit
// once at startup").
type SDLWatcher struct {
	Name       string
	SDL        string
	RoutingURL *RoutingURLBox
}

func (s *SDLWatcher) Run(ctx context.Context, out chan<- Event) {
	emit(ctx, out, schemaChanged(s.Name, s.SDL, s.RoutingURL.Get()))
	<-ctx.Done()
}
