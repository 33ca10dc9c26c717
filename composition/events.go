// Package composition implements the composition watcher (C5): it keeps
// an in-memory fully-resolved supergraph, serializes it to a scratch YAML
// file, and invokes an external `supergraph` binary to produce a merged
// SDL on every subgraph or federation-version change (spec.md §4.5).
package composition

import (
	"github.com/oklog/ulid/v2"

	"github.com/kaigraph/devgraph/subgraph"
	"github.com/kaigraph/devgraph/supergraphconfig"
)

// EventKind tags which of the five CompositionEvent variants an Event
// carries (spec.md §3: "Composition event").
type EventKind int

const (
	Started EventKind = iota
	Success
	Error
	SubgraphAdded
	SubgraphRemoved
)

// Event is the union of everything the composition watcher emits. Only
// the fields relevant to Kind are populated. RunID correlates a
// Started/Success|Error pair belonging to the same recompose cycle.
type Event struct {
	Kind  EventKind
	RunID ulid.ULID

	// Success
	MergedSDL         string
	FederationVersion supergraphconfig.FederationVersion
	Hints             []string

	// Error
	Err error

	// SubgraphAdded
	Name         string
	SchemaSource subgraph.Source

	// SubgraphRemoved
	ResolutionError error
}

func startedEvent(runID ulid.ULID) Event { return Event{Kind: Started, RunID: runID} }

func successEvent(runID ulid.ULID, sdl string, fedVersion supergraphconfig.FederationVersion, hints []string) Event {
	return Event{Kind: Success, RunID: runID, MergedSDL: sdl, FederationVersion: fedVersion, Hints: hints}
}

func errorEvent(runID ulid.ULID, err error) Event {
	return Event{Kind: Error, RunID: runID, Err: err}
}

func subgraphAddedEvent(name string, source subgraph.Source) Event {
	return Event{Kind: SubgraphAdded, Name: name, SchemaSource: source}
}

func subgraphRemovedEvent(name string, resolutionErr error) Event {
	return Event{Kind: SubgraphRemoved, Name: name, ResolutionError: resolutionErr}
}
