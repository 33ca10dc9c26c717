// Package supervisor implements the subgraph-set supervisor (C4): it owns
// the live name -> watcher map, spawns one watcher per lazily-resolved
// subgraph, and reacts to changes in the supergraph YAML file by
// starting, cancelling, or restarting watchers (spec.md §4.4).
package supervisor

import (
	"context"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kaigraph/devgraph/subgraph"
	"github.com/kaigraph/devgraph/supergraphconfig"
	"github.com/kaigraph/devgraph/watch"
)

// debounceWindow matches the supergraph-YAML watch's own debounce
// (spec.md §4.4: "The supergraph YAML watcher is itself debounced (1s)").
const debounceWindow = time.Second

// ReloadFunc re-runs C2's load + lazy-resolve pipeline from scratch. It is
// called every time the supergraph YAML file changes.
type ReloadFunc func(ctx context.Context) (*supergraphconfig.Subgraphs, error)

// NewWatcherFunc builds a C3 watcher for one subgraph. Exists so
// Supervisor doesn't import watch.New directly, which keeps this package
// testable with a fake.
type NewWatcherFunc func(name string, d subgraph.Descriptor) (watch.Watcher, error)

type liveWatcher struct {
	descriptor subgraph.Descriptor
	cancel     context.CancelFunc
	done       chan struct{}
	updater    watch.RoutingURLUpdater // nil unless the watcher supports in-place routing URL moves
}

// Supervisor drives C4. Construct with New and call Run once; Run owns the
// watcher map exclusively for its lifetime, so no other goroutine may call
// methods on the same Supervisor concurrently with Run.
type Supervisor struct {
	NewWatcher NewWatcherFunc
	ConfigPath string // empty disables the supergraph-YAML watch
	Reload     ReloadFunc
	Logger     *slog.Logger

	live map[string]*liveWatcher
}

// New constructs a Supervisor. ConfigPath may be empty when there is no
// supergraph YAML file to watch (e.g. config was read from stdin).
func New(newWatcher NewWatcherFunc, configPath string, reload ReloadFunc, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		NewWatcher: newWatcher,
		ConfigPath: configPath,
		Reload:     reload,
		Logger:     logger,
		live:       make(map[string]*liveWatcher),
	}
}

// Run spawns one watcher per entry in initial, fanning every event
// directly into out, then — if ConfigPath is set — watches the supergraph
// YAML file and diffs on every debounced change (spec.md §4.4). It blocks
// until ctx is cancelled, at which point every live watcher is cancelled
// and Run waits for all of them to exit before returning.
func (s *Supervisor) Run(ctx context.Context, initial *supergraphconfig.Subgraphs, out chan<- watch.Event) error {
	var wg sync.WaitGroup
	defer func() {
		s.cancelAll()
		wg.Wait()
	}()

	initial.Range(func(name string, d subgraph.Descriptor) {
		s.start(ctx, &wg, name, d, out)
	})

	if s.ConfigPath == "" {
		<-ctx.Done()
		return nil
	}

	return s.watchConfigFile(ctx, &wg, out)
}

func (s *Supervisor) start(ctx context.Context, wg *sync.WaitGroup, name string, d subgraph.Descriptor, out chan<- watch.Event) {
	w, err := s.NewWatcher(name, d)
	if err != nil {
		s.Logger.Error("failed to build subgraph watcher", "subgraph", name, "error", err)
		return
	}

	watcherCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	var updater watch.RoutingURLUpdater
	if u, ok := w.(watch.RoutingURLUpdater); ok {
		updater = u
	}

	s.live[name] = &liveWatcher{descriptor: d, cancel: cancel, done: done, updater: updater}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		w.Run(watcherCtx, out)
	}()
}

func (s *Supervisor) cancelAll() {
	for _, lw := range s.live {
		lw.cancel()
	}
}

func (s *Supervisor) stop(ctx context.Context, name string, emitRemoved bool, out chan<- watch.Event) {
	lw, ok := s.live[name]
	if !ok {
		return
	}
	lw.cancel()
	<-lw.done
	delete(s.live, name)
	if emitRemoved {
		emitEvent(ctx, out, watch.RemovedEvent(name, nil))
	}
}

func emitEvent(ctx context.Context, out chan<- watch.Event, ev watch.Event) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

// watchConfigFile registers an fsnotify watch on the supergraph YAML file
// and re-resolves + diffs on every debounced change.
func (s *Supervisor) watchConfigFile(ctx context.Context, wg *sync.WaitGroup, out chan<- watch.Event) error {
	dir := filepath.Dir(s.ConfigPath)

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer notifier.Close()

	if err := notifier.Add(dir); err != nil {
		return err
	}

	var debounce *time.Timer
	debounceC := make(<-chan time.Time)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case ev, ok := <-notifier.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.ConfigPath) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceWindow)
				debounceC = debounce.C
			} else {
				if !debounce.Stop() {
					<-debounceC
				}
				debounce.Reset(debounceWindow)
			}

		case <-debounceC:
			debounce = nil
			debounceC = make(<-chan time.Time)
			s.reconcile(ctx, wg, out)

		case watchErr, ok := <-notifier.Errors:
			if !ok {
				return nil
			}
			s.Logger.Error("supergraph config watch error", "error", watchErr)
		}
	}
}

// reconcile re-runs C2 and diffs the result against the live watcher map
// (spec.md §4.4 steps 1-4). If re-resolution fails, the previous watcher
// set is left intact and the error is surfaced on the event stream.
func (s *Supervisor) reconcile(ctx context.Context, wg *sync.WaitGroup, out chan<- watch.Event) {
	next, err := s.Reload(ctx)
	if err != nil {
		s.Logger.Error("failed to reload supergraph config, keeping previous watcher set", "error", err)
		emitEvent(ctx, out, watch.ConfigReloadFailedEvent(err))
		return
	}

	nextNames := make(map[string]subgraph.Descriptor, next.Len())
	next.Range(func(name string, d subgraph.Descriptor) { nextNames[name] = d })

	for name := range s.live {
		if _, stillPresent := nextNames[name]; !stillPresent {
			s.stop(ctx, name, true, out)
		}
	}

	next.Range(func(name string, d subgraph.Descriptor) {
		lw, wasLive := s.live[name]
		switch {
		case !wasLive:
			s.start(ctx, wg, name, d, out)

		case sameSchemaSource(lw.descriptor, d):
			if lw.descriptor.RoutingURL != d.RoutingURL {
				lw.descriptor.RoutingURL = d.RoutingURL
				if lw.updater != nil {
					lw.updater.UpdateRoutingURL(d.RoutingURL)
				}
				emitEvent(ctx, out, watch.RoutingURLChangedEvent(name, d.RoutingURL))
			}

		default:
			s.stop(ctx, name, false, out)
			s.start(ctx, wg, name, d, out)
		}
	})
}

// sameSchemaSource reports whether two descriptors describe the same
// watcher (same kind and parameters), ignoring RoutingURL (spec.md §4.4
// step 4 treats a routing-url-only change specially).
func sameSchemaSource(a, b subgraph.Descriptor) bool {
	if a.Schema.Kind != b.Schema.Kind {
		return false
	}
	switch a.Schema.Kind {
	case subgraph.SourceFile:
		return a.Schema.FilePath == b.Schema.FilePath
	case subgraph.SourceIntrospection:
		return urlString(a.Schema.IntrospectionURL) == urlString(b.Schema.IntrospectionURL) &&
			headersEqual(a.Schema.IntrospectionHeaders, b.Schema.IntrospectionHeaders)
	case subgraph.SourceRemote:
		return a.Schema.GraphRefText == b.Schema.GraphRefText && a.Schema.SubgraphName == b.Schema.SubgraphName
	case subgraph.SourceSDL:
		return a.Schema.SDL == b.Schema.SDL
	default:
		return false
	}
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

func headersEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
