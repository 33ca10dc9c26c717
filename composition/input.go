package composition

import (
	"github.com/kaigraph/devgraph/supergraphconfig"
	"github.com/kaigraph/devgraph/watch"
)

// InputKind tags which of the six transitions described in spec.md §4.5 an
// Input represents.
type InputKind int

const (
	InputSubgraphSchemaChanged InputKind = iota
	InputRoutingURLChanged
	InputSubgraphRemoved
	InputFederationVersionChanged
	InputRecompose
	InputPassthrough
)

// Input is the union of everything the composition watcher's merged input
// stream can carry (spec.md §4.5: subgraph events from C4, federation
// version changes, an optional recompose-now signal, and pass-through
// events forwarded verbatim).
type Input struct {
	Kind InputKind

	// InputSubgraphSchemaChanged / InputRoutingURLChanged / InputSubgraphRemoved
	Name       string
	SDL        string
	RoutingURL string

	// InputFederationVersionChanged: NewBinaryVersion is the concrete
	// supergraph-binary version to reinstall at; NewFederationVersion is
	// the YAML federation_version value to record on success.
	NewFederationVersion supergraphconfig.FederationVersion
	NewBinaryVersion     string

	// InputPassthrough carries an opaque event (e.g. a router-originated
	// one) that this watcher does not interpret, only relays.
	Passthrough any
}

func SubgraphSchemaChangedInput(name, sdl, routingURL string) Input {
	return Input{Kind: InputSubgraphSchemaChanged, Name: name, SDL: sdl, RoutingURL: routingURL}
}

func RoutingURLChangedInput(name, routingURL string) Input {
	return Input{Kind: InputRoutingURLChanged, Name: name, RoutingURL: routingURL}
}

func SubgraphRemovedInput(name string) Input {
	return Input{Kind: InputSubgraphRemoved, Name: name}
}

func FederationVersionChangedInput(newVersion supergraphconfig.FederationVersion, newBinaryVersion string) Input {
	return Input{Kind: InputFederationVersionChanged, NewFederationVersion: newVersion, NewBinaryVersion: newBinaryVersion}
}

func RecomposeInput() Input { return Input{Kind: InputRecompose} }

func PassthroughInput(ev any) Input { return Input{Kind: InputPassthrough, Passthrough: ev} }

// FromWatchEvent adapts a C4 watch.Event onto the merged input stream. A
// ConfigReloadFailed event has no composition-state meaning, so it is
// relayed as a pass-through.
func FromWatchEvent(ev watch.Event) Input {
	switch ev.Kind {
	case watch.SubgraphSchemaChanged:
		return SubgraphSchemaChangedInput(ev.Name, ev.NewSDL, ev.NewRoutingURL)
	case watch.RoutingURLChanged:
		return RoutingURLChangedInput(ev.Name, ev.NewRoutingURL)
	case watch.SubgraphRemoved:
		return SubgraphRemovedInput(ev.Name)
	default:
		return PassthroughInput(ev)
	}
}
