package subgraph

import "fmt"

// FileNotFoundError is returned by ResolveLazy/ResolveFull when a File
// schema source's path does not exist relative to the config root
// (spec.md §4.1, §8).
type FileNotFoundError struct {
	SubgraphName  string
	ConfigRoot    string
	OffendingPath string
	Err           error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("could not find schema file (%s) relative to (%s) for subgraph %q: %v",
		e.OffendingPath, e.ConfigRoot, e.SubgraphName, e.Err)
}

func (e *FileNotFoundError) Unwrap() error { return e.Err }

// InvalidGraphRefError wraps a malformed `name@variant` reference.
type InvalidGraphRefError struct {
	SubgraphName string
	GraphRef     string
	Err          error
}

func (e *InvalidGraphRefError) Error() string {
	return fmt.Sprintf("invalid graph ref %q for subgraph %q: %v", e.GraphRef, e.SubgraphName, e.Err)
}

func (e *InvalidGraphRefError) Unwrap() error { return e.Err }

// IntrospectionFailedError wraps a failed `_service { sdl }` call.
type IntrospectionFailedError struct {
	SubgraphName string
	Endpoint     string
	Err          error
}

func (e *IntrospectionFailedError) Error() string {
	return fmt.Sprintf("failed to introspect subgraph %q at %s: %v", e.SubgraphName, e.Endpoint, e.Err)
}

func (e *IntrospectionFailedError) Unwrap() error { return e.Err }

// FetchRemoteFailedError wraps a failed registry fetch.
type FetchRemoteFailedError struct {
	SubgraphName string
	GraphRef     string
	Err          error
}

func (e *FetchRemoteFailedError) Error() string {
	return fmt.Sprintf("failed to fetch the sdl for subgraph %q from remote (%s): %v", e.SubgraphName, e.GraphRef, e.Err)
}

func (e *FetchRemoteFailedError) Unwrap() error { return e.Err }

// MissingRoutingURLError is returned when a Remote subgraph resolves with
// neither an explicit nor a registry-reported routing URL.
type MissingRoutingURLError struct {
	SubgraphName string
	GraphRef     string
}

func (e *MissingRoutingURLError) Error() string {
	return fmt.Sprintf("the subgraph %q with graph ref %q does not have an assigned routing url", e.SubgraphName, e.GraphRef)
}
