// Package watch implements the subgraph watcher (C3): one instance per
// subgraph source, each emitting SubgraphSchemaChanged / RoutingUrlChanged
// / SubgraphRemoved events into a shared channel (spec.md §4.3).
package watch

import "github.com/google/uuid"

// EventKind tags which of the three C3 events an Event carries.
type EventKind int

const (
	SubgraphSchemaChanged EventKind = iota
	RoutingURLChanged
	SubgraphRemoved

	// ConfigReloadFailed is emitted by the C4 supervisor, not by any
	// per-subgraph watcher, when re-resolving the supergraph YAML after a
	// file change fails (spec.md §4.4: "surface the error on the event
	// stream"). The previous watcher set is left running.
	ConfigReloadFailed
)

// Event is the union of everything the subgraph watchers and their
// supervisor can emit (spec.md §4.3, §4.4). Only the fields relevant to
// Kind are populated.
type Event struct {
	Kind EventKind
	Name string

	// SubgraphSchemaChanged
	NewSDL         string
	SchemaSourceID uuid.UUID

	// SubgraphSchemaChanged, RoutingURLChanged
	NewRoutingURL string

	// SubgraphRemoved, ConfigReloadFailed
	ResolutionError error
}

func schemaChanged(name, sdl, routingURL string) Event {
	return Event{
		Kind:           SubgraphSchemaChanged,
		Name:           name,
		NewSDL:         sdl,
		NewRoutingURL:  routingURL,
		SchemaSourceID: uuid.New(),
	}
}

func routingURLChanged(name, routingURL string) Event {
	return Event{Kind: RoutingURLChanged, Name: name, NewRoutingURL: routingURL}
}

func removed(name string, resolutionErr error) Event {
	return Event{Kind: SubgraphRemoved, Name: name, ResolutionError: resolutionErr}
}

// RoutingURLChangedEvent lets other packages (the C4 supervisor) build a
// RoutingUrlChanged event for cases where it has no running watcher to
// emit it from — a routing-url-only change that doesn't restart anything.
func RoutingURLChangedEvent(name, routingURL string) Event { return routingURLChanged(name, routingURL) }

// RemovedEvent lets other packages (the C4 supervisor) build a
// SubgraphRemoved event when it cancels a watcher directly, since a
// cancelled watcher does not emit one for itself.
func RemovedEvent(name string, resolutionErr error) Event { return removed(name, resolutionErr) }

// ConfigReloadFailedEvent builds the event the C4 supervisor emits when a
// supergraph-YAML reload fails.
func ConfigReloadFailedEvent(err error) Event {
	return Event{Kind: ConfigReloadFailed, ResolutionError: err}
}
