package router

import "fmt"

// SpawnFailedError wraps a failure to start the router child process
// (spec.md §7 "SpawnFailed"). Per spec.md §7 propagation policy, this
// terminates the runner.
type SpawnFailedError struct {
	Err error
}

func (e *SpawnFailedError) Error() string { return fmt.Sprintf("failed to spawn router: %v", e.Err) }
func (e *SpawnFailedError) Unwrap() error  { return e.Err }

// HealthCheckFailedError is returned when the router never answered 2xx on
// its health endpoint within the bounded wait (spec.md §7
// "HealthCheckFailed"; §8 scenario 5).
type HealthCheckFailedError struct {
	URL     string
	Elapsed string
}

func (e *HealthCheckFailedError) Error() string {
	return fmt.Sprintf("router health check at %s did not succeed within %s", e.URL, e.Elapsed)
}

// OutputCaptureError wraps a failure to read the router's stdout/stderr
// streams (spec.md §7 "OutputCapture").
type OutputCaptureError struct {
	Err error
}

func (e *OutputCaptureError) Error() string { return fmt.Sprintf("failed to capture router output: %v", e.Err) }
func (e *OutputCaptureError) Unwrap() error  { return e.Err }

// BinaryExitedError is surfaced when the router process exits
// unexpectedly; the whole runner is cancelled (spec.md §4.6, §7
// "BinaryExited(status)").
type BinaryExitedError struct {
	ExitCode int
}

func (e *BinaryExitedError) Error() string {
	return fmt.Sprintf("router process exited unexpectedly with status %d", e.ExitCode)
}

// InternalError wraps a failure in an injected dependency (spec.md §7
// "Internal { dependency, err }") — e.g. the scratch-file writer or the
// config-file watcher.
type InternalError struct {
	Dependency string
	Err        error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("router runner dependency %s failed: %v", e.Dependency, e.Err)
}
func (e *InternalError) Unwrap() error { return e.Err }
