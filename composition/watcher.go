package composition

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/kaigraph/devgraph/internal/effect"
	"github.com/kaigraph/devgraph/subgraph"
	"github.com/kaigraph/devgraph/supergraphconfig"
)

// Watcher drives C5: it holds the one in-memory fully-resolved supergraph,
// recomposes it through an external `supergraph` binary on every relevant
// input, and coalesces any inputs that arrive mid-composition into exactly
// one follow-up run (spec.md §4.5).
type Watcher struct {
	Install  effect.BinaryInstaller
	Write    effect.WriteFile
	Composer Composer
	Logger   *slog.Logger

	scratchPath string

	mu         sync.Mutex
	subgraphs  *supergraphconfig.Subgraphs
	fedVersion supergraphconfig.FederationVersion
	binary     Binary
}

// New constructs a Watcher. scratchPath is where the serialized
// supergraph.yaml is written before every compose invocation;
// scratchOutputDir is where `--output` documents (when supported) land.
func New(binary Binary, install effect.BinaryInstaller, exec effect.ExecCommand, read effect.ReadFile, write effect.WriteFile, scratchPath, scratchOutputDir string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		Install:     install,
		Write:       write,
		Logger:      logger,
		scratchPath: scratchPath,
		binary:      binary,
		Composer: &runner{
			Exec:       exec,
			Read:       read,
			ScratchDir: scratchOutputDir,
			Logger:     func(msg string, args ...any) { logger.Warn(msg, args...) },
		},
	}
}

// Run seeds state from initial, optionally performs the startup
// composition (spec.md §4.5 "Initial composition"), then services in until
// ctx is cancelled or in is closed. passthrough receives every
// InputPassthrough input verbatim; it may be nil if nothing downstream
// needs them.
func (w *Watcher) Run(ctx context.Context, initial *supergraphconfig.Config, resolutionErrors map[string]error, composeOnInit bool, in <-chan Input, out chan<- Event, passthrough chan<- any) error {
	w.mu.Lock()
	w.subgraphs = initial.Subgraphs.Clone()
	w.fedVersion = initial.FederationVersion
	w.mu.Unlock()

	if composeOnInit {
		if len(resolutionErrors) > 0 {
			errCopy := make(map[string]error, len(resolutionErrors))
			for k, v := range resolutionErrors {
				errCopy[k] = v
			}
			emitEvent(ctx, out, errorEvent(newRunID(), &ResolvingSubgraphsError{Errors: errCopy}))
		} else {
			w.composeOnce(ctx, out)
		}
	}

	composing := false
	dirty := false
	doneCh := make(chan struct{}, 1)

	start := func() {
		composing = true
		go func() {
			w.composeOnce(ctx, out)
			doneCh <- struct{}{}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case input, ok := <-in:
			if !ok {
				return nil
			}
			if w.apply(ctx, input, out, passthrough) {
				if composing {
					dirty = true
				} else {
					start()
				}
			}

		case <-doneCh:
			composing = false
			if dirty {
				dirty = false
				start()
			}
		}
	}
}

// apply mutates in-memory state per one input and reports whether a
// recompose is warranted (spec.md §4.5 transitions 1-6).
func (w *Watcher) apply(ctx context.Context, input Input, out chan<- Event, passthrough chan<- any) bool {
	switch input.Kind {
	case InputSubgraphSchemaChanged:
		w.mu.Lock()
		d, existed := w.subgraphs.Get(input.Name)
		d.Name = input.Name
		d.RoutingURL = input.RoutingURL
		d.Schema = subgraph.Source{Kind: subgraph.SourceSDL, SDL: input.SDL}
		w.subgraphs.Set(input.Name, d)
		w.mu.Unlock()

		if !existed {
			emitEvent(ctx, out, subgraphAddedEvent(input.Name, d.Schema))
		}
		return true

	case InputRoutingURLChanged:
		w.mu.Lock()
		d, ok := w.subgraphs.Get(input.Name)
		changed := ok && d.RoutingURL != input.RoutingURL
		if ok && changed {
			d.RoutingURL = input.RoutingURL
			w.subgraphs.Set(input.Name, d)
		}
		w.mu.Unlock()
		return changed

	case InputSubgraphRemoved:
		w.mu.Lock()
		_, existed := w.subgraphs.Get(input.Name)
		w.subgraphs.Delete(input.Name)
		w.mu.Unlock()
		if existed {
			emitEvent(ctx, out, subgraphRemovedEvent(input.Name, nil))
		}
		return existed

	case InputFederationVersionChanged:
		path, err := w.Install.Install(ctx, "supergraph", input.NewBinaryVersion)
		if err != nil {
			w.Logger.Error("failed to reinstall supergraph binary, keeping previous binary",
				"version", input.NewBinaryVersion, "error", err)
			emitEvent(ctx, out, errorEvent(newRunID(), &BinaryReinstallError{Version: input.NewBinaryVersion, Err: err}))
			return false
		}
		w.mu.Lock()
		w.binary = Binary{Path: path, Version: input.NewBinaryVersion}
		w.fedVersion = input.NewFederationVersion
		w.mu.Unlock()
		return true

	case InputRecompose:
		return true

	case InputPassthrough:
		if passthrough != nil {
			select {
			case passthrough <- input.Passthrough:
			case <-ctx.Done():
			}
		}
		return false

	default:
		return false
	}
}

// composeOnce runs exactly one Started -> Success|Error cycle (spec.md
// §4.5 "Recompose" procedure).
func (w *Watcher) composeOnce(ctx context.Context, out chan<- Event) {
	w.mu.Lock()
	subgraphsSnapshot := w.subgraphs.Clone()
	fedVersion := w.fedVersion
	binary := w.binary
	w.mu.Unlock()

	yamlBytes, err := supergraphconfig.EncodeSubgraphs(subgraphsSnapshot, fedVersion)
	if err != nil {
		emitEvent(ctx, out, errorEvent(newRunID(), &SerdeYamlError{Err: err}))
		return
	}

	if err := w.Write.WriteFile(w.scratchPath, yamlBytes); err != nil {
		emitEvent(ctx, out, errorEvent(newRunID(), &WriteFileError{Path: w.scratchPath, Err: err}))
		return
	}

	runID := newRunID()
	emitEvent(ctx, out, startedEvent(runID))

	raw, err := w.Composer.Compose(ctx, binary, w.scratchPath)
	if err != nil {
		emitEvent(ctx, out, errorEvent(runID, err))
		return
	}

	parsed, buildErr, err := parseOutput(raw)
	switch {
	case err != nil:
		emitEvent(ctx, out, errorEvent(runID, err))
	case buildErr != nil:
		emitEvent(ctx, out, errorEvent(runID, buildErr))
	default:
		emitEvent(ctx, out, successEvent(runID, parsed.SupergraphSDL, fedVersion, parsed.Hints))
	}
}

func emitEvent(ctx context.Context, out chan<- Event, ev Event) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

func newRunID() ulid.ULID { return ulid.Make() }
