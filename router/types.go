// Package router implements the router runner (C6): the typestate
// Install -> LoadLocalConfig -> LoadRemoteConfig -> Run -> Watch -> Abort
// pipeline that spawns the `router` binary, captures its structured logs,
// health-checks it, and hot-reloads its scratch files on composition or
// config-file changes (spec.md §4.6).
package router

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// Address is a listen address override (spec.md §4.6 LoadLocalConfig:
// "an address override {host, port}").
type Address struct {
	Host string
	Port int
}

// DefaultAddress is the router's own default when no override is given.
var DefaultAddress = Address{Host: "127.0.0.1", Port: 4000}

func (a Address) String() string {
	if a.Host == "" {
		a = DefaultAddress
	}
	port := a.Port
	if port == 0 {
		port = DefaultAddress.Port
	}
	return a.Host + ":" + strconv.Itoa(port)
}

// HealthCheck describes the router's `/health` endpoint (spec.md §4.6:
// "health-check endpoint (default enabled, 127.0.0.1:8088/health)").
type HealthCheck struct {
	Enabled bool
	Host    string
	Port    int
	Path    string
}

// DefaultHealthCheck matches the router binary's own default.
var DefaultHealthCheck = HealthCheck{Enabled: true, Host: "127.0.0.1", Port: 8088, Path: "/health"}

func (h HealthCheck) url() string {
	host := h.Host
	if host == "" {
		host = DefaultHealthCheck.Host
	}
	port := h.Port
	if port == 0 {
		port = DefaultHealthCheck.Port
	}
	path := h.Path
	if path == "" {
		path = DefaultHealthCheck.Path
	}
	return "http://" + host + ":" + strconv.Itoa(port) + path
}

// Config is the router's config.yaml, kept as both a mutable yaml.Node
// (so unrecognized keys survive every rewrite) and its serialized string
// form (spec.md §4.6: "kept as both the parsed structure and its string
// form").
type Config struct {
	Node       *yaml.Node
	Listen     Address
	Health     HealthCheck
	ListenPath string // optional URL listen path prefix
	Rendered   []byte
}

// LogLevel mirrors the router binary's own tracing levels.
type LogLevel string

const (
	LogTrace LogLevel = "TRACE"
	LogDebug LogLevel = "DEBUG"
	LogInfo  LogLevel = "INFO"
	LogWarn  LogLevel = "WARN"
	LogError LogLevel = "ERROR"
)

// LogLine is one parsed entry of the router's NDJSON stdout stream, or a
// surfaced stderr/non-JSON line (spec.md §6: "non-JSON stdout lines are
// surfaced as warnings; stderr is surfaced as errors verbatim").
type LogLine struct {
	Level   LogLevel
	Message string
	Raw     string

	// Banner is set when Message matched "exposed at http" (spec.md §4.6);
	// URL is the http(s) URL extracted from it.
	Banner bool
	URL    string
}

// UpdateKind tags a RouterUpdateEvent (spec.md §4.6 Watch).
type UpdateKind int

const (
	SchemaChanged UpdateKind = iota
	ConfigChanged
)

// UpdateEvent is the unified stream Watch consumes: composition events
// (SchemaChanged) merged with an optional router-config-file watch
// (ConfigChanged).
type UpdateEvent struct {
	Kind UpdateKind

	// SchemaChanged
	SupergraphSDL string

	// ConfigChanged
	ConfigYAML []byte
}
