package router

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/kaigraph/devgraph/internal/effect"
)

type osReadFile struct{}

func (osReadFile) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

type osWriteFile struct{}

func (osWriteFile) WriteFile(path string, contents []byte) error { return os.WriteFile(path, contents, 0o644) }

type scriptExec struct{}

func (scriptExec) Exec(ctx context.Context, cfg effect.ExecCommandConfig) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, cfg.Binary, cfg.Args...)
	cmd.Dir = cfg.Dir
	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env
	return cmd, nil
}

type fakeInstaller struct {
	path string
	err  error
}

func (f fakeInstaller) Install(ctx context.Context, name, version string) (string, error) {
	return f.path, f.err
}

func writeScript(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func installedForScript(t *testing.T, scriptPath, scratchDir string) Installed {
	t.Helper()
	ctx := context.Background()
	installed, err := InstallRouter(ctx, fakeInstaller{path: scriptPath}, "1.0.0", scratchDir, scriptExec{}, osReadFile{}, osWriteFile{}, nil)
	if err != nil {
		t.Fatalf("InstallRouter: %v", err)
	}
	return installed
}

func TestRunner_RunSpawnsProcessAndPumpsLogs(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "router.sh", `#!/bin/sh
echo '{"level":"INFO","fields":{"message":"router starting"}}'
echo '{"level":"INFO","fields":{"message":"GraphQL endpoint exposed at http://127.0.0.1:4000"}}'
while true; do sleep 1; done
`)

	installed := installedForScript(t, script, dir)
	disabledHealth := &HealthCheck{Enabled: false}
	local, err := installed.LoadLocalConfig("", nil, disabledHealth)
	if err != nil {
		t.Fatalf("LoadLocalConfig: %v", err)
	}
	remote := local.LoadRemoteConfig(context.Background(), nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	running, err := remote.Run(ctx, "type Query { x: Int }")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer running.Abort()

	first := drainLog(t, running.Logs, 2*time.Second)
	if first.Message != "router starting" {
		t.Fatalf("expected first log line 'router starting', got %+v", first)
	}

	banner := drainLog(t, running.Logs, 2*time.Second)
	if !banner.Banner || banner.URL != "http://127.0.0.1:4000" {
		t.Fatalf("expected banner with url http://127.0.0.1:4000, got %+v", banner)
	}
}

func TestRunner_WatchRewritesScratchFilesOnUpdate(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "router.sh", `#!/bin/sh
while true; do sleep 1; done
`)

	installed := installedForScript(t, script, dir)
	local, err := installed.LoadLocalConfig("", nil, &HealthCheck{Enabled: false})
	if err != nil {
		t.Fatalf("LoadLocalConfig: %v", err)
	}
	remote := local.LoadRemoteConfig(context.Background(), nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	running, err := remote.Run(ctx, "type Query { x: Int }")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	updates := make(chan UpdateEvent, 2)
	watching := running.Watch(ctx, updates)
	defer watching.Abort()

	updates <- UpdateEvent{Kind: SchemaChanged, SupergraphSDL: "type Query { y: Int }"}

	deadline := time.Now().Add(2 * time.Second)
	for {
		contents, _ := os.ReadFile(running.supergraphPath)
		if string(contents) == "type Query { y: Int }" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("supergraph scratch file was not rewritten, last contents: %q", contents)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunner_UnexpectedExitSurfacesBinaryExited(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "router.sh", `#!/bin/sh
echo '{"level":"INFO","fields":{"message":"about to exit"}}'
exit 1
`)

	installed := installedForScript(t, script, dir)
	local, err := installed.LoadLocalConfig("", nil, &HealthCheck{Enabled: false})
	if err != nil {
		t.Fatalf("LoadLocalConfig: %v", err)
	}
	remote := local.LoadRemoteConfig(context.Background(), nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	running, err := remote.Run(ctx, "type Query { x: Int }")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	updates := make(chan UpdateEvent)
	watching := running.Watch(ctx, updates)

	drainLog(t, running.Logs, 2*time.Second) // "about to exit"

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ll := <-running.Logs:
			if ll.Level == LogError {
				return
			}
		case <-watching.done:
			return
		case <-deadline:
			t.Fatal("timed out waiting for BinaryExited to surface")
		}
	}
}

func drainLog(t *testing.T, logs <-chan LogLine, timeout time.Duration) LogLine {
	t.Helper()
	select {
	case ll := <-logs:
		return ll
	case <-time.After(timeout):
		t.Fatal("timed out waiting for log line")
		return LogLine{}
	}
}
