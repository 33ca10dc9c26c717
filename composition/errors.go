package composition

import (
	"fmt"
	"strings"
)

// BuildIssue is one entry of a failed composition's error list (spec.md
// §9: `{ "message": "...", "code": "...", ... }`).
type BuildIssue struct {
	Message  string
	Code     string
	Subgraph string
}

// BuildError wraps the `supergraph` binary's own composition-layer
// errors — the binary ran, but the subgraphs don't compose (spec.md §7
// "Build(list of {message, code?, subgraph?})"). IsConfig mirrors the
// binary's `is_config` flag: true means the fix is in the user's
// subgraph/config, not in this tool.
type BuildError struct {
	Issues   []BuildIssue
	IsConfig bool
}

func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		if issue.Subgraph != "" {
			msgs[i] = fmt.Sprintf("%s: %s", issue.Subgraph, issue.Message)
		} else {
			msgs[i] = issue.Message
		}
	}
	return "composition failed: " + strings.Join(msgs, "; ")
}

// BinaryInvocationError wraps a failure to spawn or run the supergraph
// binary itself (spec.md §7 "BinaryInvocation").
type BinaryInvocationError struct {
	Err error
}

func (e *BinaryInvocationError) Error() string { return fmt.Sprintf("supergraph binary invocation failed: %v", e.Err) }
func (e *BinaryInvocationError) Unwrap() error  { return e.Err }

// OutputParseError wraps a failure to parse the binary's JSON output
// document (spec.md §7 "OutputParse").
type OutputParseError struct {
	Err error
}

func (e *OutputParseError) Error() string { return fmt.Sprintf("failed to parse composition output: %v", e.Err) }
func (e *OutputParseError) Unwrap() error  { return e.Err }

// WriteFileError wraps a failure to write the scratch supergraph.yaml
// (spec.md §7 "WriteFile"; §4.5 recompose step 1).
type WriteFileError struct {
	Path string
	Err  error
}

func (e *WriteFileError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}
func (e *WriteFileError) Unwrap() error { return e.Err }

// SerdeYamlError wraps a failure to serialize the in-memory supergraph to
// YAML (spec.md §7 "SerdeYaml").
type SerdeYamlError struct {
	Err error
}

func (e *SerdeYamlError) Error() string { return fmt.Sprintf("failed to serialize supergraph config: %v", e.Err) }
func (e *SerdeYamlError) Unwrap() error  { return e.Err }

// BinaryReinstallError wraps a failed attempt to reinstall the supergraph
// binary at a new federation version (spec.md §4.5 transition 4).
type BinaryReinstallError struct {
	Version string
	Err     error
}

func (e *BinaryReinstallError) Error() string {
	return fmt.Sprintf("failed to install supergraph binary %s: %v", e.Version, e.Err)
}
func (e *BinaryReinstallError) Unwrap() error { return e.Err }

// ResolvingSubgraphsError wraps the per-subgraph resolution errors
// collected by C2/C1 and surfaced as one composition error at startup when
// initial resolution was only partially successful (spec.md §4.5 "Initial
// composition").
type ResolvingSubgraphsError struct {
	Errors map[string]error
}

func (e *ResolvingSubgraphsError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for name, err := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %v", name, err))
	}
	return "failed to resolve subgraph(s): " + strings.Join(parts, "; ")
}
