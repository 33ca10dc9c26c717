package watch

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/zeebo/blake3"
)

// DefaultPollInterval is how often Introspection and Remote sources are
// re-fetched (spec.md §4.3: "Introspection / Remote: poll on a fixed
// interval (default 1s)").
const DefaultPollInterval = time.Second

// maxFetchElapsed bounds how long a single poll tick's retries may run
// before giving up and waiting for the next tick.
const maxFetchElapsed = 30 * time.Second

// PollFetch retrieves the current SDL and routing URL for a polled
// subgraph. For Introspection sources the routing URL is static (the
// endpoint itself, or an explicit override); for Remote sources it comes
// from the registry and can change independently of the SDL.
type PollFetch func(ctx context.Context) (sdl, routingURL string, err error)

// PollWatcher re-fetches a subgraph on a fixed interval, emitting
// SubgraphSchemaChanged when the SDL content changes and RoutingURLChanged
// when only the routing URL moves (spec.md §4.3). It backs both the
// Introspection and Remote schema sources, which differ only in Fetch.
type PollWatcher struct {
	Name     string
	Interval time.Duration
	Fetch    PollFetch

	// OnFetchError, if set, is called with every failed fetch attempt
	// (after retries are exhausted for that tick). Tests use this to
	// assert that polling errors don't tear down the watcher.
	OnFetchError func(error)
}

func (p *PollWatcher) Run(ctx context.Context, out chan<- Event) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var lastHash [32]byte
	var lastRoutingURL string
	haveLast := false

	tick := func() {
		result, err := backoff.Retry(ctx, func() (fetchResult, error) {
			sdl, routingURL, ferr := p.Fetch(ctx)
			return fetchResult{sdl, routingURL}, ferr
		}, backoff.WithMaxElapsedTime(maxFetchElapsed))
		if err != nil {
			if p.OnFetchError != nil {
				p.OnFetchError(err)
			}
			return
		}
		sdl, routingURL := result.sdl, result.routingURL

		hash := blake3.Sum256([]byte(sdl))
		switch {
		case !haveLast:
			emit(ctx, out, schemaChanged(p.Name, sdl, routingURL))
		case hash != lastHash:
			emit(ctx, out, schemaChanged(p.Name, sdl, routingURL))
		case routingURL != lastRoutingURL:
			emit(ctx, out, routingURLChanged(p.Name, routingURL))
		}
		lastHash = hash
		lastRoutingURL = routingURL
		haveLast = true
	}

	tick()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

type fetchResult struct {
	sdl, routingURL string
}
