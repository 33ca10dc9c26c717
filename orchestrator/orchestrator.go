// Package orchestrator wires C2 through C6 into one running process: it
// resolves the initial supergraph configuration, supervises per-subgraph
// watchers, recomposes on every change, and keeps a local router instance
// pointed at the freshest composed schema. Adapted from the teacher's
// server/gateway.go lifecycle (slog JSON logging, signal-driven graceful
// shutdown, InitTracer/shutdown), retargeted from driving one HTTP gateway
// handler to driving this module's C2-C6 pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kaigraph/devgraph/composition"
	"github.com/kaigraph/devgraph/internal/effect"
	"github.com/kaigraph/devgraph/internal/telemetry"
	"github.com/kaigraph/devgraph/router"
	"github.com/kaigraph/devgraph/subgraph"
	"github.com/kaigraph/devgraph/supergraphconfig"
	"github.com/kaigraph/devgraph/supervisor"
	"github.com/kaigraph/devgraph/watch"
)

const serviceName = "devgraph"

// Version is overridden at build time via -ldflags.
var Version = "dev"

// shutdownGrace bounds how long graceful shutdown may take once a signal
// is received, mirroring the teacher's own shutdown timeout.
const shutdownGrace = 10 * time.Second

// Options collects every out-of-core-scope collaborator and CLI-level
// choice this orchestrator needs to drive C2-C6 (spec.md §1's "explicitly
// out of scope" list: binary installers, the registry client, the
// credential fetcher).
type Options struct {
	GraphRef                *effect.GraphRef
	ConfigPath              string // supergraph YAML; empty means read from Stdin
	Stdin                   io.Reader
	TargetFederationVersion *supergraphconfig.FederationVersion
	DefaultSubgraph         supergraphconfig.DefaultSubgraphOptions

	Fetcher      effect.RemoteSubgraphFetcher
	Introspector effect.Introspector
	Installer    effect.BinaryInstaller
	APIKeys      effect.APIKeyFetcher // nil is valid: router runs without a registry credential

	SupergraphBinaryVersion string
	RouterBinaryVersion     string
	RouterConfigPath        string
	RouterAddr              *router.Address
	RouterHealth            *router.HealthCheck

	ScratchDir     string // base temp dir; "" makes Run create and clean up its own
	TracingEnabled bool

	Logger *slog.Logger
}

// Run resolves the initial configuration and then drives C3-C6 until ctx
// is cancelled or a fatal error occurs. It installs its own signal
// handling on top of ctx the way the teacher's Run() does.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	slog.SetDefault(logger)

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(signalCtx, opts.TracingEnabled, serviceName, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracer", "error", err)
		}
	}()

	scratchDir := opts.ScratchDir
	if scratchDir == "" {
		dir, err := os.MkdirTemp("", "devgraph-dev-")
		if err != nil {
			return fmt.Errorf("failed to create scratch directory: %w", err)
		}
		scratchDir = dir
		defer os.RemoveAll(scratchDir)
	}

	resolved, lazySubgraphs, err := resolveInitial(signalCtx, opts)
	if err != nil {
		return fmt.Errorf("failed to resolve initial supergraph configuration: %w", err)
	}
	if len(resolved.resolutionErrors) > 0 {
		for name, resErr := range resolved.resolutionErrors {
			logger.Warn("subgraph failed to resolve", "subgraph", name, "error", resErr)
		}
	}

	supergraphBinaryPath, err := opts.Installer.Install(signalCtx, "supergraph", opts.SupergraphBinaryVersion)
	if err != nil {
		return fmt.Errorf("failed to install supergraph binary: %w", err)
	}

	compositionScratchYAML := filepath.Join(scratchDir, "supergraph.yaml")
	compositionOutputDir := filepath.Join(scratchDir, "composition-output")
	routerScratchDir := filepath.Join(scratchDir, "router")

	compositionWatcher := composition.New(
		composition.Binary{Path: supergraphBinaryPath, Version: opts.SupergraphBinaryVersion},
		opts.Installer,
		effect.OSExecCommand{},
		effect.OSReadFile{},
		effect.OSWriteFile{},
		compositionScratchYAML,
		compositionOutputDir,
		logger,
	)

	installedRouter, err := router.InstallRouter(signalCtx, opts.Installer, opts.RouterBinaryVersion, routerScratchDir, effect.OSExecCommand{}, effect.OSReadFile{}, effect.OSWriteFile{}, logger)
	if err != nil {
		return fmt.Errorf("failed to install router binary: %w", err)
	}
	localConfig, err := installedRouter.LoadLocalConfig(opts.RouterConfigPath, opts.RouterAddr, opts.RouterHealth)
	if err != nil {
		return fmt.Errorf("failed to load router config: %w", err)
	}
	graphRefText := ""
	if opts.GraphRef != nil {
		graphRefText = opts.GraphRef.String()
	}
	remoteConfig := localConfig.LoadRemoteConfig(signalCtx, opts.APIKeys, graphRefText)

	newWatcher := func(name string, d subgraph.Descriptor) (watch.Watcher, error) {
		return watch.New(name, d, opts.Introspector, opts.Fetcher)
	}
	reload := func(ctx context.Context) (*supergraphconfig.Subgraphs, error) {
		_, lazy, err := resolveInitial(ctx, opts)
		if err != nil {
			return nil, err
		}
		return lazy, nil
	}
	sup := supervisor.New(newWatcher, opts.ConfigPath, reload, logger)

	watchEvents := make(chan watch.Event)
	compositionInputs := make(chan composition.Input)
	compositionEvents := make(chan composition.Event)
	compositionPassthrough := make(chan any)
	routerUpdates := make(chan router.UpdateEvent)
	firstSDL := make(chan string, 1)

	errs := make(chan error, 8)
	done := make(chan struct{})

	go func() {
		defer close(watchEvents)
		if err := sup.Run(signalCtx, lazySubgraphs, watchEvents); err != nil {
			errs <- fmt.Errorf("supervisor stopped: %w", err)
		}
	}()

	go forwardWatchEventsToCompositionInputs(signalCtx, watchEvents, compositionInputs)

	go func() {
		defer close(compositionEvents)
		if err := compositionWatcher.Run(signalCtx, &resolved.config, resolved.resolutionErrors, true, compositionInputs, compositionEvents, compositionPassthrough); err != nil {
			errs <- fmt.Errorf("composition watcher stopped: %w", err)
		}
	}()

	go drainPassthrough(signalCtx, logger, compositionPassthrough)

	go routeCompositionEvents(signalCtx, logger, compositionEvents, firstSDL, routerUpdates)

	go func() {
		defer close(done)
		runRouter(signalCtx, logger, remoteConfig, firstSDL, routerUpdates)
	}()

	select {
	case <-signalCtx.Done():
	case err := <-errs:
		logger.Error("orchestrator component failed", "error", err)
		stop()
	}

	<-done
	return nil
}

// runRouter blocks waiting for the first composed schema, spawns the
// router, and then watches it until ctx is cancelled or it exits
// unexpectedly, logging every line it emits (spec.md §4.6).
func runRouter(ctx context.Context, logger *slog.Logger, remote router.RemoteConfigLoaded, firstSDL <-chan string, updates <-chan router.UpdateEvent) {
	var sdl string
	select {
	case sdl = <-firstSDL:
	case <-ctx.Done():
		return
	}

	running, err := remote.Run(ctx, sdl)
	if err != nil {
		logger.Error("failed to start router", "error", err)
		return
	}

	watching := running.Watch(ctx, updates)
	defer watching.Abort()

	for {
		select {
		case ll, ok := <-running.Logs:
			if !ok {
				return
			}
			logRouterLine(logger, ll)
		case <-watching.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

func logRouterLine(logger *slog.Logger, ll router.LogLine) {
	if ll.Banner {
		logger.Info("router ready", "url", ll.URL)
		return
	}
	switch ll.Level {
	case router.LogError:
		logger.Error(ll.Message, "raw", ll.Raw)
	case router.LogWarn:
		logger.Warn(ll.Message)
	case router.LogDebug, router.LogTrace:
		logger.Debug(ll.Message)
	default:
		logger.Info(ll.Message)
	}
}

// routeCompositionEvents translates Success events into router schema
// updates, delivering the first one through firstSDL (which gates router
// startup) and every subsequent one through updates (which feeds the
// already-running router's hot reload).
func routeCompositionEvents(ctx context.Context, logger *slog.Logger, events <-chan composition.Event, firstSDL chan<- string, updates chan<- router.UpdateEvent) {
	gotFirst := false
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case composition.Success:
				if !gotFirst {
					gotFirst = true
					select {
					case firstSDL <- ev.MergedSDL:
					case <-ctx.Done():
						return
					}
					continue
				}
				select {
				case updates <- router.UpdateEvent{Kind: router.SchemaChanged, SupergraphSDL: ev.MergedSDL}:
				case <-ctx.Done():
					return
				}
			case composition.Error:
				logger.Error("composition failed", "run_id", ev.RunID.String(), "error", ev.Err)
			case composition.Started:
				logger.Debug("composition started", "run_id", ev.RunID.String())
			case composition.SubgraphAdded:
				logger.Info("subgraph added", "subgraph", ev.Name)
			case composition.SubgraphRemoved:
				logger.Info("subgraph removed", "subgraph", ev.Name)
			}
		}
	}
}

func forwardWatchEventsToCompositionInputs(ctx context.Context, in <-chan watch.Event, out chan<- composition.Input) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- composition.FromWatchEvent(ev):
			case <-ctx.Done():
				return
			}
		}
	}
}

func drainPassthrough(ctx context.Context, logger *slog.Logger, in <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			logger.Debug("unhandled pass-through event", "event", ev)
		}
	}
}
