package orchestrator

import (
	"context"
	"fmt"

	"github.com/kaigraph/devgraph/supergraphconfig"
)

// resolvedInitial holds what FullyResolveSubgraphs produces from the Ready
// state: the fully resolved configuration composition.Watcher seeds from,
// and the per-subgraph resolution errors. The lazy descriptor set
// supervisor.Supervisor spawns watchers from is built off the same Ready
// state and returned by resolveInitial alongside it (spec.md §4.2 steps
// 5-6 run off the same merged subgraph set).
type resolvedInitial struct {
	config           supergraphconfig.Config
	resolutionErrors map[string]error
}

// resolveInitial drives the full C2 pipeline once: load remote, merge
// local/stdin, seed a default subgraph if empty, then resolve both fully
// (for composition) and lazily (for the supervisor). It is also the
// ReloadFunc the C4 supervisor calls on every supergraph-YAML change.
func resolveInitial(ctx context.Context, opts Options) (resolvedInitial, *supergraphconfig.Subgraphs, error) {
	ready, err := prepareReady(ctx, opts)
	if err != nil {
		return resolvedInitial{}, nil, err
	}

	config, resolutionErrors, err := ready.FullyResolveSubgraphs(ctx, opts.Introspector, opts.Fetcher)
	if err != nil {
		return resolvedInitial{}, nil, err
	}

	lazy, _, err := ready.LazilyResolveSubgraphs()
	if err != nil {
		return resolvedInitial{}, nil, err
	}

	return resolvedInitial{config: config, resolutionErrors: resolutionErrors}, lazy, nil
}

// prepareReady runs the Resolver pipeline up through
// DefineDefaultSubgraphIfEmpty, the part every caller (initial resolution
// and every reload) shares. An empty merged set with neither a CLI default
// nor a usable prompt fails with supergraphconfig.ErrNoDefaultSubgraph.
func prepareReady(ctx context.Context, opts Options) (supergraphconfig.Ready, error) {
	withRemote, err := supergraphconfig.New(opts.TargetFederationVersion).LoadRemote(ctx, opts.Fetcher, opts.GraphRef)
	if err != nil {
		return supergraphconfig.Ready{}, fmt.Errorf("failed to load remote subgraphs: %w", err)
	}

	var fd *supergraphconfig.FileDescriptor
	if opts.ConfigPath != "" {
		fd = &supergraphconfig.FileDescriptor{Path: opts.ConfigPath}
	}
	merged, err := withRemote.LoadFromFileDescriptor(opts.Stdin, fd)
	if err != nil {
		return supergraphconfig.Ready{}, fmt.Errorf("failed to load local supergraph config: %w", err)
	}

	return merged.DefineDefaultSubgraphIfEmpty(opts.DefaultSubgraph)
}
