package supergraphconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/kaigraph/devgraph/internal/effect"
	"github.com/kaigraph/devgraph/subgraph"
)

// Resolver drives the C2 typestate pipeline (spec.md §4.2): New ->
// LoadRemote -> LoadFromFileDescriptor -> Define/SkipDefaultSubgraph ->
// FullyResolveSubgraphs|LazilyResolveSubgraphs. Each stage is a distinct
// method returning the next stage's value; Go has no move semantics so the
// "consumed" guarantee is by convention (call sites discard the prior
// value), the same way the teacher's pipeline funcs return freshly built
// structs rather than mutating in place.
type Resolver struct {
	target *FederationVersion
}

// New starts the pipeline with an optional explicit target federation
// version (spec.md §4.2 step 1; highest-precedence source in §3).
func New(target *FederationVersion) Resolver {
	return Resolver{target: target}
}

// WithRemote is the pipeline state after loading (or skipping) the
// registry's subgraph set.
type WithRemote struct {
	target           *FederationVersion
	subgraphs        *Subgraphs
	remoteFedVersion *FederationVersion
}

// LoadRemote fetches the full subgraph set for graphRef, or starts empty
// when graphRef is nil (spec.md §4.2 step 2).
func (r Resolver) LoadRemote(ctx context.Context, fetcher effect.RemoteSubgraphFetcher, graphRef *effect.GraphRef) (WithRemote, error) {
	subgraphs := NewSubgraphs()
	var remoteFedVersion *FederationVersion

	if graphRef != nil {
		remoteSubgraphs, err := fetcher.ListSubgraphs(ctx, *graphRef)
		if err != nil {
			return WithRemote{}, fmt.Errorf("failed to list subgraphs for %s: %w", graphRef, err)
		}
		for _, rs := range remoteSubgraphs {
			subgraphs.Set(rs.Name, subgraph.Descriptor{
				Name:       rs.Name,
				RoutingURL: rs.RoutingURL,
				Schema:     subgraph.Source{Kind: subgraph.SourceSDL, SDL: rs.SDL},
			})
		}

		if text, ok, err := fetcher.FederationVersion(ctx, *graphRef); err == nil && ok {
			parsed, parseErr := ParseFederationVersion(text)
			if parseErr == nil {
				remoteFedVersion = &parsed
			}
		}
	}

	return WithRemote{target: r.target, subgraphs: subgraphs, remoteFedVersion: remoteFedVersion}, nil
}

// FileDescriptor names where the local supergraph YAML comes from. A nil
// FileDescriptor (or one with an empty Path) means "read from stdin".
type FileDescriptor struct {
	Path string
}

// Merged is the pipeline state after merging the local YAML (or stdin) on
// top of the remote subgraph set.
type Merged struct {
	target           *FederationVersion
	subgraphs        *Subgraphs
	remoteFedVersion *FederationVersion
	localFedVersion  *FederationVersion
	root             string
	envWarnings      []ExpandEnvWarning
}

// LoadFromFileDescriptor reads the local supergraph YAML (from fd.Path, or
// from stdin if fd is nil), expands env placeholders, and merges it onto
// the remote subgraph set: a local entry with the same name replaces the
// remote entry, preserving the remote entry's routing URL if the local one
// omits it (spec.md §4.2 step 3).
func (w WithRemote) LoadFromFileDescriptor(stdin io.Reader, fd *FileDescriptor) (Merged, error) {
	var (
		raw  []byte
		err  error
		root string
	)

	if fd != nil && fd.Path != "" {
		raw, err = os.ReadFile(fd.Path)
		if err != nil {
			return Merged{}, fmt.Errorf("failed to read supergraph config %q: %w", fd.Path, err)
		}
		root = filepath.Dir(fd.Path)
	} else {
		raw, err = io.ReadAll(stdin)
		if err != nil {
			return Merged{}, fmt.Errorf("failed to read supergraph config from stdin: %w", err)
		}
		root, err = os.Getwd()
		if err != nil {
			return Merged{}, fmt.Errorf("failed to determine working directory: %w", err)
		}
	}

	expanded, warnings := ExpandEnv(string(raw))

	localSubgraphs, localFedVersion, err := DecodeFile([]byte(expanded))
	if err != nil {
		return Merged{}, err
	}

	merged := w.subgraphs.Clone()
	localSubgraphs.Range(func(name string, local subgraph.Descriptor) {
		if remote, exists := merged.Get(name); exists && !local.HasRoutingURL() {
			local.RoutingURL = remote.RoutingURL
		}
		merged.Set(name, local)
	})

	return Merged{
		target:           w.target,
		subgraphs:        merged,
		remoteFedVersion: w.remoteFedVersion,
		localFedVersion:  localFedVersion,
		root:             root,
		envWarnings:      warnings,
	}, nil
}

// ErrNoDefaultSubgraph is returned by DefineDefaultSubgraphIfEmpty when the
// merged set is empty, stdin isn't a TTY, and no CLI-provided default was
// given (spec.md §4.2 step 4: "hard-fail telling the caller to pass
// --name/--url").
var ErrNoDefaultSubgraph = errors.New("no subgraphs configured: pass --name and --url, or run interactively")

// DefaultSubgraphOptions controls how an empty subgraph set is seeded
// (spec.md §4.2 step 4).
type DefaultSubgraphOptions struct {
	CLI    *DefaultSubgraph
	IsTTY  bool
	Prompt func() (DefaultSubgraph, error)
}

// Ready is the pipeline state after the default-subgraph step, ready for
// full or lazy resolution.
type Ready struct {
	Merged
}

// DefineDefaultSubgraphIfEmpty seeds a single subgraph when the merged set
// is empty, using either a CLI-provided triple or an interactive prompt.
// The default schema source is introspection of the URL (spec.md §4.2).
func (m Merged) DefineDefaultSubgraphIfEmpty(opts DefaultSubgraphOptions) (Ready, error) {
	if m.subgraphs.Len() > 0 {
		return Ready{m}, nil
	}

	var def DefaultSubgraph
	switch {
	case opts.CLI != nil:
		def = *opts.CLI
	case opts.IsTTY && opts.Prompt != nil:
		prompted, err := opts.Prompt()
		if err != nil {
			return Ready{}, fmt.Errorf("failed to prompt for default subgraph: %w", err)
		}
		def = prompted
	default:
		return Ready{}, ErrNoDefaultSubgraph
	}

	source := subgraph.Source{Kind: subgraph.SourceSDL, SDL: def.SDL}
	if def.SDL == "" {
		u, err := url.Parse(def.URL)
		if err != nil {
			return Ready{}, fmt.Errorf("invalid default subgraph url %q: %w", def.URL, err)
		}
		source = subgraph.Source{Kind: subgraph.SourceIntrospection, IntrospectionURL: u}
	}

	m.subgraphs.Set(def.Name, subgraph.Descriptor{Name: def.Name, RoutingURL: def.URL, Schema: source})
	return Ready{m}, nil
}

// SkipDefaultSubgraph advances to Ready without seeding a default, even if
// the subgraph set is empty.
func (m Merged) SkipDefaultSubgraph() Ready {
	return Ready{m}
}

// EnvWarnings returns any `${env.NAME}` placeholders left unexpanded
// because the variable was unset and had no default (spec.md §7).
func (r Ready) EnvWarnings() []ExpandEnvWarning { return r.envWarnings }

// chooseFederationVersion applies the precedence from spec.md §3.
func chooseFederationVersion(target, local, remote *FederationVersion) FederationVersion {
	switch {
	case target != nil:
		return *target
	case local != nil:
		return *local
	case remote != nil:
		return *remote
	default:
		return FederationVersion{Kind: LatestFedTwo}
	}
}

// FullyResolveSubgraphs resolves every subgraph to SDL + routing URL,
// selects the federation version per spec.md §3, and enforces the
// fed-one/fed-two mismatch invariant (spec.md §3, §8 property 3).
func (r Ready) FullyResolveSubgraphs(ctx context.Context, introspector effect.Introspector, fetcher effect.RemoteSubgraphFetcher) (Config, map[string]error, error) {
	pending := make(map[string]subgraph.Descriptor, r.subgraphs.Len())
	r.subgraphs.Range(func(name string, d subgraph.Descriptor) { pending[name] = d })

	result := subgraph.ResolveAllFull(ctx, introspector, fetcher, r.root, pending)

	chosen := chooseFederationVersion(r.target, r.localFedVersion, r.remoteFedVersion)

	if chosen.IsFedOne() {
		var offending []string
		for name, resolved := range result.Resolved {
			if resolved.IsFedTwo {
				offending = append(offending, name)
			}
		}
		if len(offending) > 0 {
			return Config{}, result.Errors, &FederationVersionMismatchError{Specified: chosen, Offending: offending}
		}
	}

	finalSubgraphs := NewSubgraphs()
	r.subgraphs.Range(func(name string, d subgraph.Descriptor) {
		resolved, ok := result.Resolved[name]
		if !ok {
			return
		}
		finalSubgraphs.Set(name, subgraph.Descriptor{
			Name:       name,
			RoutingURL: resolved.RoutingURL,
			Schema:     subgraph.Source{Kind: subgraph.SourceSDL, SDL: resolved.SDL},
		})
	})

	return Config{Subgraphs: finalSubgraphs, FederationVersion: chosen}, result.Errors, nil
}

// LazilyResolveSubgraphs canonicalizes File paths against root without
// reading any subgraph's content, producing the handles C3's watchers are
// built from (spec.md §4.2 step 5).
func (r Ready) LazilyResolveSubgraphs() (*Subgraphs, map[string]error, error) {
	pending := make(map[string]subgraph.Descriptor, r.subgraphs.Len())
	r.subgraphs.Range(func(name string, d subgraph.Descriptor) { pending[name] = d })

	result := subgraph.ResolveAllLazy(r.root, pending)

	lazy := NewSubgraphs()
	r.subgraphs.Range(func(name string, d subgraph.Descriptor) {
		if resolved, ok := result.Resolved[name]; ok {
			lazy.Set(name, resolved)
		}
	})

	return lazy, result.Errors, nil
}

// Root returns the path-resolution root chosen in LoadFromFileDescriptor.
func (r Ready) Root() string { return r.root }
