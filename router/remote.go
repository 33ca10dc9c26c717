package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kaigraph/devgraph/internal/effect"
)

// Credentials is what LoadRemoteConfig resolves: an optional APOLLO_KEY and
// the graph-ref env var name it should be exported under, if any (spec.md
// §4.6 LoadRemoteConfig; §4.6 Run "environment ... optional APOLLO_KEY,
// optional APOLLO_GRAPH_REF").
type Credentials struct {
	APIKey         string
	GraphRefEnvVar string
	GraphRef       string
}

// LoadRemoteConfig implements C6's LoadRemoteConfig stage. A graph-ref
// scoped key is preferred; failures of either path are non-fatal and
// downgrade to "no APOLLO_KEY" (spec.md §4.6: "Failures here are
// non-fatal").
func LoadRemoteConfig(ctx context.Context, fetcher effect.APIKeyFetcher, graphRef string, logger *slog.Logger) Credentials {
	if logger == nil {
		logger = slog.Default()
	}
	if fetcher == nil {
		return Credentials{}
	}

	if graphRef != "" {
		key, envVar, err := fetcher.APIKeyForGraphRef(ctx, mustParseGraphRef(graphRef))
		if err != nil {
			logger.Warn("failed to fetch graph-scoped API key, continuing without APOLLO_KEY", "graph_ref", graphRef, "error", err)
			return Credentials{}
		}
		return Credentials{APIKey: key, GraphRefEnvVar: envVar, GraphRef: graphRef}
	}

	key, err := fetcher.ProfileAPIKey(ctx)
	if err != nil {
		logger.Warn("failed to load profile API key, continuing without APOLLO_KEY", "error", err)
		return Credentials{}
	}
	return Credentials{APIKey: key}
}

func mustParseGraphRef(text string) effect.GraphRef {
	name, variant, found := strings.Cut(text, "@")
	if !found || variant == "" {
		variant = "current"
	}
	return effect.GraphRef{Name: name, Variant: variant}
}
