package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"path/filepath"

	"github.com/kaigraph/devgraph/internal/effect"
)

// Installed is the pipeline state after C6's Install stage (spec.md §4.6:
// "fetch/verify the router binary at the requested version. Idempotent.").
type Installed struct {
	BinaryPath string
	ScratchDir string
	Exec       effect.ExecCommand
	Write      effect.WriteFile
	Read       effect.ReadFile
	Client     *http.Client // health-check client; nil uses http.DefaultClient
	Logger     *slog.Logger
}

// InstallRouter runs the Install stage.
func InstallRouter(ctx context.Context, installer effect.BinaryInstaller, version, scratchDir string, exec effect.ExecCommand, read effect.ReadFile, write effect.WriteFile, logger *slog.Logger) (Installed, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path, err := installer.Install(ctx, "router", version)
	if err != nil {
		return Installed{}, fmt.Errorf("installing router binary %s: %w", version, err)
	}
	return Installed{BinaryPath: path, ScratchDir: scratchDir, Exec: exec, Write: write, Read: read, Logger: logger}, nil
}

// LocalConfigLoaded is the pipeline state after LoadLocalConfig.
type LocalConfigLoaded struct {
	Installed
	Config *Config
}

// LoadLocalConfig runs the LoadLocalConfig stage (spec.md §4.6).
func (i Installed) LoadLocalConfig(configPath string, addrOverride *Address, healthOverride *HealthCheck) (LocalConfigLoaded, error) {
	cfg, err := LoadLocalConfig(i.Read, configPath, addrOverride, healthOverride)
	if err != nil {
		return LocalConfigLoaded{}, err
	}
	return LocalConfigLoaded{Installed: i, Config: cfg}, nil
}

// RemoteConfigLoaded is the pipeline state after LoadRemoteConfig.
type RemoteConfigLoaded struct {
	LocalConfigLoaded
	Credentials Credentials
}

// LoadRemoteConfig runs the LoadRemoteConfig stage (spec.md §4.6). Failure
// to obtain a credential is non-fatal by design, so this stage cannot fail.
func (l LocalConfigLoaded) LoadRemoteConfig(ctx context.Context, fetcher effect.APIKeyFetcher, graphRef string) RemoteConfigLoaded {
	creds := LoadRemoteConfig(ctx, fetcher, graphRef, l.Logger)
	return RemoteConfigLoaded{LocalConfigLoaded: l, Credentials: creds}
}

// Running is the pipeline state after Run: the router child process is
// spawned, its logs are being pumped, and its health check has already
// passed (spec.md §4.6 Run).
type Running struct {
	RemoteConfigLoaded

	cmd            *exec.Cmd
	cancel         context.CancelFunc
	exited         chan error
	Logs           chan LogLine
	supergraphPath string
	configPath     string
}

// Run implements C6's Run stage: write the scratch files, spawn the
// router, pump its logs, and block until the health check passes or fails
// (spec.md §4.6; §8 scenario 5).
func (r RemoteConfigLoaded) Run(ctx context.Context, supergraphSDL string) (Running, error) {
	configPath := filepath.Join(r.ScratchDir, "config.yaml")
	supergraphPath := filepath.Join(r.ScratchDir, "supergraph.graphql")

	if err := r.Write.WriteFile(configPath, r.Config.Rendered); err != nil {
		return Running{}, &InternalError{Dependency: "write-config", Err: err}
	}
	if err := r.Write.WriteFile(supergraphPath, []byte(supergraphSDL)); err != nil {
		return Running{}, &InternalError{Dependency: "write-supergraph", Err: err}
	}

	args := []string{
		"--supergraph", supergraphPath,
		"--hot-reload",
		"--config", configPath,
		"--log", "info",
		"--dev",
	}
	env := map[string]string{"APOLLO_ROVER": "true"}
	if r.Credentials.APIKey != "" {
		env["APOLLO_KEY"] = r.Credentials.APIKey
	}
	if r.Credentials.GraphRef != "" {
		env["APOLLO_GRAPH_REF"] = r.Credentials.GraphRef
	}

	procCtx, cancel := context.WithCancel(ctx)

	cmd, err := r.Exec.Exec(procCtx, effect.ExecCommandConfig{Binary: r.BinaryPath, Args: args, Env: env})
	if err != nil {
		cancel()
		return Running{}, &SpawnFailedError{Err: err}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return Running{}, &OutputCaptureError{Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return Running{}, &OutputCaptureError{Err: err}
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return Running{}, &SpawnFailedError{Err: err}
	}

	logs := make(chan LogLine, 64)
	go pumpStdout(procCtx, stdout, logs)
	go pumpStderr(procCtx, stderr, logs)

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	running := Running{
		RemoteConfigLoaded: r,
		cmd:                cmd,
		cancel:             cancel,
		exited:             exited,
		Logs:               logs,
		supergraphPath:     supergraphPath,
		configPath:         configPath,
	}

	if err := waitHealthy(procCtx, r.Client, r.Config.Health); err != nil {
		running.Abort()
		return Running{}, err
	}

	return running, nil
}

// Abort implements C6's Abort stage: kill the child process unconditionally
// and release this runner's resources (spec.md §4.6; §5 "Child-process
// kill is unconditional on abort").
func (r Running) Abort() {
	r.cancel()
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
}

// Watching is the pipeline state after Watch.
type Watching struct {
	Running
	done chan struct{}
}

// Done reports when the watch loop has exited, whether because ctx was
// cancelled or because the router process exited unexpectedly.
func (w Watching) Done() <-chan struct{} { return w.done }

// Watch implements C6's Watch stage: merge composition-originated schema
// changes with router-config-file changes into one serialized stream of
// scratch-file rewrites, relying on the router's own `--hot-reload` to pick
// them up. If the router process exits unexpectedly, BinaryExited is
// surfaced on Logs and the whole runner is cancelled (spec.md §4.6).
func (r Running) Watch(ctx context.Context, updates <-chan UpdateEvent) Watching {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-updates:
				if !ok {
					return
				}
				r.applyUpdate(ev)

			case err := <-r.exited:
				emitLogLine(ctx, r.Logs, LogLine{
					Level:   LogError,
					Message: fmt.Sprintf("router process exited unexpectedly: %v", err),
				})
				r.cancel()
				return
			}
		}
	}()
	return Watching{Running: r, done: done}
}

func (r Running) applyUpdate(ev UpdateEvent) {
	switch ev.Kind {
	case SchemaChanged:
		if err := r.Write.WriteFile(r.supergraphPath, []byte(ev.SupergraphSDL)); err != nil {
			r.Logger.Error("failed to rewrite supergraph schema scratch file; composition error is logged, router keeps running",
				"path", r.supergraphPath, "error", err)
		}
	case ConfigChanged:
		if err := r.Write.WriteFile(r.configPath, ev.ConfigYAML); err != nil {
			r.Logger.Error("failed to rewrite router config scratch file", "path", r.configPath, "error", err)
		}
	}
}

// ExitCode extracts the child process's exit status from the error Wait()
// returned, or -1 if it isn't an *exec.ExitError (e.g. the process was
// killed by a signal during Abort).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
