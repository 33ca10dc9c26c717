package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of filesystem events into a single
// re-read (spec.md §4.3: "Coalesce raw events within a 1-second window").
const debounceWindow = time.Second

// FileWatcher watches a single local schema file for content changes,
// deletion, and recreation (spec.md §4.3 "File").
type FileWatcher struct {
	Name       string
	Path       string
	RoutingURL *RoutingURLBox
}

func (f *FileWatcher) Run(ctx context.Context, out chan<- Event) {
	dir := filepath.Dir(f.Path)

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		emit(ctx, out, removed(f.Name, err))
		return
	}
	defer notifier.Close()

	// Watch the containing directory, not the file itself: editors that
	// write-then-rename (or delete-then-recreate) leave the original inode
	// watch dangling, so only a directory watch survives both patterns.
	if err := notifier.Add(dir); err != nil {
		emit(ctx, out, removed(f.Name, err))
		return
	}

	wasPresent := f.readAndEmit(ctx, out, false)

	var debounce *time.Timer
	debounceC := make(<-chan time.Time)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case ev, ok := <-notifier.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.Path) {
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
			wasPresent = f.readAndEmit(ctx, out, wasPresent)

		case watchErr, ok := <-notifier.Errors:
			if !ok {
				return
			}
			emit(ctx, out, removed(f.Name, watchErr))
		}
	}
}

// readAndEmit re-reads the file after quiescence. wasPresent is the
// present/absent state as of the last emitted event, used to suppress a
// duplicate SubgraphRemoved when the file is already known to be gone. It
// emits SubgraphSchemaChanged whenever the file can be read, and
// SubgraphRemoved on the transition into "missing".
func (f *FileWatcher) readAndEmit(ctx context.Context, out chan<- Event, wasPresent bool) (isPresent bool) {
	contents, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if wasPresent {
				emit(ctx, out, removed(f.Name, nil))
			}
			return false
		}
		emit(ctx, out, removed(f.Name, err))
		return false
	}

	emit(ctx, out, schemaChanged(f.Name, string(contents), f.RoutingURL.Get()))
	return true
}

func emit(ctx context.Context, out chan<- Event, ev Event) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
