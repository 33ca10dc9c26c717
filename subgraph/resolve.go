package subgraph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/kaigraph/devgraph/internal/effect"
)

// MaxConcurrentResolves bounds how many subgraphs are resolved at once
// (spec.md §4.1: "bounded parallelism of 50").
const MaxConcurrentResolves = 50

// ResolveLazy canonicalizes a File descriptor's path against root; all
// other source kinds pass through unchanged (spec.md §4.1).
func ResolveLazy(root string, d Descriptor) (Descriptor, error) {
	if d.Schema.Kind != SourceFile {
		return d, nil
	}

	joined := filepath.Join(root, d.Schema.FilePath)
	canonical, err := filepath.Abs(joined)
	if err == nil {
		canonical, err = filepath.EvalSymlinks(canonical)
	}
	if err != nil {
		return Descriptor{}, &FileNotFoundError{
			SubgraphName:  d.Name,
			ConfigRoot:    root,
			OffendingPath: d.Schema.FilePath,
			Err:           err,
		}
	}
	if _, statErr := os.Stat(canonical); statErr != nil {
		return Descriptor{}, &FileNotFoundError{
			SubgraphName:  d.Name,
			ConfigRoot:    root,
			OffendingPath: d.Schema.FilePath,
			Err:           statErr,
		}
	}

	out := d
	out.Schema.FilePath = canonical
	return out, nil
}

// ResolveFull fully resolves one descriptor into an SDL + routing URL pair,
// dispatching I/O through the injected introspect/fetch-remote effects
// (spec.md §4.1).
func ResolveFull(ctx context.Context, introspector effect.Introspector, fetcher effect.RemoteSubgraphFetcher, root string, d Descriptor) (Resolved, error) {
	switch d.Schema.Kind {
	case SourceFile:
		lazy, err := ResolveLazy(root, d)
		if err != nil {
			return Resolved{}, err
		}
		raw, err := os.ReadFile(lazy.Schema.FilePath)
		if err != nil {
			return Resolved{}, &FileNotFoundError{
				SubgraphName:  d.Name,
				ConfigRoot:    root,
				OffendingPath: d.Schema.FilePath,
				Err:           err,
			}
		}
		return finish(d.RoutingURL, string(raw))

	case SourceIntrospection:
		sdl, err := introspector.Introspect(ctx, d.Schema.IntrospectionURL, d.Schema.IntrospectionHeaders)
		if err != nil {
			return Resolved{}, &IntrospectionFailedError{
				SubgraphName: d.Name,
				Endpoint:     d.Schema.IntrospectionURL.String(),
				Err:          err,
			}
		}
		routingURL := d.RoutingURL
		if routingURL == "" {
			routingURL = d.Schema.IntrospectionURL.String()
		}
		return finish(routingURL, sdl)

	case SourceRemote:
		graphRef, err := ParseGraphRef(d.Schema.GraphRefText)
		if err != nil {
			return Resolved{}, &InvalidGraphRefError{SubgraphName: d.Name, GraphRef: d.Schema.GraphRefText, Err: err}
		}
		remote, err := fetcher.FetchSubgraph(ctx, graphRef, d.Schema.SubgraphName)
		if err != nil {
			return Resolved{}, &FetchRemoteFailedError{SubgraphName: d.Name, GraphRef: graphRef.String(), Err: err}
		}
		routingURL := d.RoutingURL
		if routingURL == "" {
			routingURL = remote.RoutingURL
		}
		if routingURL == "" {
			return Resolved{}, &MissingRoutingURLError{SubgraphName: d.Name, GraphRef: graphRef.String()}
		}
		return finish(routingURL, remote.SDL)

	case SourceSDL:
		return finish("", d.Schema.SDL)

	default:
		return Resolved{}, fmt.Errorf("unknown schema source kind %v for subgraph %q", d.Schema.Kind, d.Name)
	}
}

func finish(routingURL, sdl string) (Resolved, error) {
	isFedTwo, err := IsFedTwo(sdl)
	if err != nil {
		return Resolved{}, fmt.Errorf("failed to parse sdl: %w", err)
	}
	return Resolved{RoutingURL: routingURL, SDL: sdl, IsFedTwo: isFedTwo}, nil
}

// ResolveAllResult partitions the outcome of resolving a whole descriptor
// set into successes and per-name failures, per spec.md §7 ("per-subgraph
// resolution failures do not abort the whole supergraph resolve").
type ResolveAllResult struct {
	Resolved map[string]Resolved
	Errors   map[string]error
}

// ResolveAllFull resolves every descriptor concurrently, bounded to
// MaxConcurrentResolves in flight at once (spec.md §4.1).
func ResolveAllFull(ctx context.Context, introspector effect.Introspector, fetcher effect.RemoteSubgraphFetcher, root string, descriptors map[string]Descriptor) ResolveAllResult {
	type outcome struct {
		name     string
		resolved Resolved
		err      error
	}

	results := make(chan outcome, len(descriptors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentResolves)

	for name, d := range descriptors {
		name, d := name, d
		g.Go(func() error {
			resolved, err := ResolveFull(gctx, introspector, fetcher, root, d)
			results <- outcome{name: name, resolved: resolved, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	out := ResolveAllResult{
		Resolved: make(map[string]Resolved, len(descriptors)),
		Errors:   make(map[string]error),
	}
	for o := range results {
		if o.err != nil {
			out.Errors[o.name] = o.err
			continue
		}
		out.Resolved[o.name] = o.resolved
	}
	return out
}

// ResolveAllLazy canonicalizes every File descriptor's path. Unlike
// ResolveAllFull this is cheap and synchronous; it still partitions
// failures the same way so callers have one shape to handle.
func ResolveAllLazy(root string, descriptors map[string]Descriptor) ResolveAllResultLazy {
	out := ResolveAllResultLazy{
		Resolved: make(map[string]Descriptor, len(descriptors)),
		Errors:   make(map[string]error),
	}
	for name, d := range descriptors {
		resolved, err := ResolveLazy(root, d)
		if err != nil {
			out.Errors[name] = err
			continue
		}
		out.Resolved[name] = resolved
	}
	return out
}

// ResolveAllResultLazy is the lazy-resolution analogue of ResolveAllResult.
type ResolveAllResultLazy struct {
	Resolved map[string]Descriptor
	Errors   map[string]error
}
