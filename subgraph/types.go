// Package subgraph implements the subgraph-source resolver (C1): turning an
// unresolved subgraph descriptor into either a lazily-resolved handle
// (for watching) or a fully-resolved SDL + routing URL pair.
package subgraph

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kaigraph/devgraph/internal/effect"
)

// SourceKind tags which of the four schema_source variants a Descriptor
// carries (spec.md §3).
type SourceKind int

const (
	SourceFile SourceKind = iota
	SourceIntrospection
	SourceRemote
	SourceSDL
)

func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceIntrospection:
		return "introspection"
	case SourceRemote:
		return "remote"
	case SourceSDL:
		return "sdl"
	default:
		return "unknown"
	}
}

// Source is the tagged schema_source variant. Exactly one set of fields is
// meaningful, selected by Kind.
type Source struct {
	Kind SourceKind

	// SourceFile
	FilePath string

	// SourceIntrospection
	IntrospectionURL     *url.URL
	IntrospectionHeaders map[string]string

	// SourceRemote
	GraphRefText string
	SubgraphName string

	// SourceSDL
	SDL string
}

// Descriptor is an unresolved subgraph: a unique name, an optional routing
// URL, and a schema source.
type Descriptor struct {
	Name       string
	RoutingURL string // empty means "not set"
	Schema     Source
}

// HasRoutingURL reports whether an explicit routing URL was supplied.
func (d Descriptor) HasRoutingURL() bool { return d.RoutingURL != "" }

// Resolved is a fully-resolved subgraph (spec.md §3): an SDL, an optional
// routing URL, and whether the SDL opts into federation 2 via `@link`.
type Resolved struct {
	RoutingURL string
	SDL        string
	IsFedTwo   bool
}

// ParseGraphRef parses `name@variant`, defaulting variant to "current" when
// omitted (spec.md §4.1).
func ParseGraphRef(text string) (effect.GraphRef, error) {
	if text == "" {
		return effect.GraphRef{}, fmt.Errorf("invalid graph ref %q: empty", text)
	}
	name, variant, found := strings.Cut(text, "@")
	if name == "" {
		return effect.GraphRef{}, fmt.Errorf("invalid graph ref %q: missing graph name", text)
	}
	if !found || variant == "" {
		variant = "current"
	}
	return effect.GraphRef{Name: name, Variant: variant}, nil
}
