// Package supergraphconfig implements the supergraph-config resolver (C2):
// merging remote registry data, a local YAML file, and CLI/prompt fallback
// into one resolved supergraph configuration, per spec.md §4.2.
package supergraphconfig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kaigraph/devgraph/subgraph"
)

// FedVersionKind distinguishes the four federation_version shapes in
// spec.md §3.
type FedVersionKind int

const (
	LatestFedOne FedVersionKind = iota
	LatestFedTwo
	ExactFedOne
	ExactFedTwo
)

// FederationVersion is one of LatestFedOne | LatestFedTwo | ExactFedOne(semver)
// | ExactFedTwo(semver).
type FederationVersion struct {
	Kind  FedVersionKind
	Exact string // populated only for ExactFedOne/ExactFedTwo
}

func (v FederationVersion) IsFedOne() bool {
	return v.Kind == LatestFedOne || v.Kind == ExactFedOne
}

func (v FederationVersion) String() string {
	switch v.Kind {
	case LatestFedOne:
		return "1"
	case LatestFedTwo:
		return "2"
	case ExactFedOne, ExactFedTwo:
		return "=" + v.Exact
	default:
		return "unknown"
	}
}

// ParseFederationVersion parses the `federation_version` YAML value, which
// may be the bare integer/string "1" or "2", or an exact semver optionally
// prefixed with "=" (spec.md §6 example: `federation_version: 2` or
// `=2.7.1` or `1`).
func ParseFederationVersion(raw string) (FederationVersion, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "=")
	switch text {
	case "1":
		return FederationVersion{Kind: LatestFedOne}, nil
	case "2":
		return FederationVersion{Kind: LatestFedTwo}, nil
	}

	major, err := semverMajor(text)
	if err != nil {
		return FederationVersion{}, fmt.Errorf("invalid federation_version %q: %w", raw, err)
	}
	if major == 1 {
		return FederationVersion{Kind: ExactFedOne, Exact: text}, nil
	}
	return FederationVersion{Kind: ExactFedTwo, Exact: text}, nil
}

func semverMajor(text string) (int, error) {
	parts := strings.SplitN(text, ".", 2)
	if len(parts) == 0 || parts[0] == "" {
		return 0, fmt.Errorf("not a semver")
	}
	return strconv.Atoi(parts[0])
}

// FederationVersionMismatchError is raised when the chosen version is
// fed-one but some resolved subgraph opted into federation 2 via `@link`
// (spec.md §3 invariant, §8 property 3).
type FederationVersionMismatchError struct {
	Specified FederationVersion
	Offending []string
}

func (e *FederationVersionMismatchError) Error() string {
	return fmt.Sprintf("federation version %s was specified, but subgraph(s) %s require federation 2",
		e.Specified, strings.Join(e.Offending, ", "))
}

// Subgraphs is an insertion-ordered name -> descriptor map (spec.md §3:
// "iteration order is insertion order of the source file; remote subgraphs
// precede and are then overwritten by any local subgraph of the same
// name").
type Subgraphs struct {
	order []string
	data  map[string]subgraph.Descriptor
}

// NewSubgraphs returns an empty ordered subgraph set.
func NewSubgraphs() *Subgraphs {
	return &Subgraphs{data: make(map[string]subgraph.Descriptor)}
}

// Set inserts or overwrites name. Overwriting preserves the original
// position; a new name is appended.
func (s *Subgraphs) Set(name string, d subgraph.Descriptor) {
	if _, exists := s.data[name]; !exists {
		s.order = append(s.order, name)
	}
	s.data[name] = d
}

// Delete removes name, if present.
func (s *Subgraphs) Delete(name string) {
	if _, exists := s.data[name]; !exists {
		return
	}
	delete(s.data, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns name's descriptor, if present.
func (s *Subgraphs) Get(name string) (subgraph.Descriptor, bool) {
	d, ok := s.data[name]
	return d, ok
}

// Len reports the number of subgraphs.
func (s *Subgraphs) Len() int { return len(s.order) }

// Names returns subgraph names in insertion order.
func (s *Subgraphs) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Range calls fn for every subgraph in insertion order.
func (s *Subgraphs) Range(fn func(name string, d subgraph.Descriptor)) {
	for _, name := range s.order {
		fn(name, s.data[name])
	}
}

// Clone returns a deep-enough copy (descriptors are value types) that the
// caller can mutate independently.
func (s *Subgraphs) Clone() *Subgraphs {
	out := &Subgraphs{
		order: append([]string(nil), s.order...),
		data:  make(map[string]subgraph.Descriptor, len(s.data)),
	}
	for k, v := range s.data {
		out.data[k] = v
	}
	return out
}

// Config is the final resolved supergraph configuration (spec.md §3):
// an ordered subgraph map plus the chosen federation version.
type Config struct {
	Subgraphs         *Subgraphs
	FederationVersion FederationVersion
}

// DefaultSubgraph is the {name, url, schema?} triple used by
// define_default_subgraph_if_empty (spec.md §4.2 step 4).
type DefaultSubgraph struct {
	Name string
	URL  string
	// SDL, if set, is used as an inline Sdl schema source. Otherwise the
	// default schema source is introspection of URL (spec.md §4.2).
	SDL string
}
