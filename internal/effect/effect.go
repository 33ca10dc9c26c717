// Package effect collects the small interfaces that let the rest of this
// module stay pure: every place the spec calls for I/O (HTTP fetch, file
// read/write, process exec) goes through one of these so tests can inject
// fakes instead of touching the network or the filesystem.
package effect

import (
	"context"
	"net/url"
	"os/exec"
)

// Introspector resolves a subgraph's SDL by querying its `{_service{sdl}}`
// introspection endpoint. Headers are passed through verbatim.
type Introspector interface {
	Introspect(ctx context.Context, endpoint *url.URL, headers map[string]string) (sdl string, err error)
}

// RemoteSubgraph is the registry's view of a single subgraph within a
// graph variant.
type RemoteSubgraph struct {
	Name       string
	RoutingURL string
	SDL        string
}

// RemoteSubgraphFetcher stands in for the GraphQL client layer over the
// central registry (spec.md §1, explicitly out of core scope). The core
// only ever sees this interface.
type RemoteSubgraphFetcher interface {
	FetchSubgraph(ctx context.Context, graphRef GraphRef, subgraphName string) (RemoteSubgraph, error)
	ListSubgraphs(ctx context.Context, graphRef GraphRef) ([]RemoteSubgraph, error)
	FederationVersion(ctx context.Context, graphRef GraphRef) (string, bool, error)
}

// GraphRef is a parsed `name@variant` registry reference.
type GraphRef struct {
	Name    string
	Variant string
}

func (g GraphRef) String() string {
	if g.Variant == "" {
		return g.Name
	}
	return g.Name + "@" + g.Variant
}

// ReadFile abstracts a filesystem/stdin read so the resolver pipeline can
// be tested without touching disk.
type ReadFile interface {
	ReadFile(path string) ([]byte, error)
}

// WriteFile abstracts a scratch-file write (composition's supergraph.yaml,
// the router's config.yaml/supergraph.graphql).
type WriteFile interface {
	WriteFile(path string, contents []byte) error
}

// ExecCommand abstracts spawning the `supergraph` and `router` binaries so
// tests can assert on the exact argument vector and environment (spec.md
// §9 "binary invocation uses an injected spawn effect").
type ExecCommand interface {
	Exec(ctx context.Context, cfg ExecCommandConfig) (*exec.Cmd, error)
}

// ExecCommandConfig is the argument vector + environment for a single
// child-process invocation.
type ExecCommandConfig struct {
	Binary string
	Args   []string
	Env    map[string]string
	Dir    string
}

// BinaryInstaller stands in for the `supergraph`/`router` binary
// installers (spec.md §1, explicitly out of core scope).
type BinaryInstaller interface {
	Install(ctx context.Context, name, version string) (path string, err error)
}

// APIKeyFetcher resolves the Apollo Studio credential the router needs to
// talk to the registry: a graph-scoped key when a graph-ref was given, or
// the caller's profile credential otherwise (spec.md §4.6 LoadRemoteConfig,
// explicitly out of core scope).
type APIKeyFetcher interface {
	APIKeyForGraphRef(ctx context.Context, ref GraphRef) (key string, graphRefEnvVar string, err error)
	ProfileAPIKey(ctx context.Context) (key string, err error)
}
