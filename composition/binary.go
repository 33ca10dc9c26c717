package composition

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kaigraph/devgraph/internal/effect"
)

// minOutputFlagMajor/Minor is the first supergraph binary release that
// understands `--output <path>` (spec.md §6: "for versions >= 2.9").
const (
	minOutputFlagMajor = 2
	minOutputFlagMinor = 9
)

// Binary is a handle on an installed supergraph binary: its filesystem path
// and the version string it was installed at, which gates whether `compose`
// is invoked with `--output` or via stdout-capture (spec.md §9 open
// question: unknown versions fall back to stdout parsing with a warning).
type Binary struct {
	Path    string
	Version string
}

// supportsOutputFlag reports whether Version is parseable and >= 2.9. An
// unparseable version is treated as "does not support it" and the caller is
// expected to log a fallback warning (spec.md §9).
func (b Binary) supportsOutputFlag() bool {
	major, minor, ok := parseMajorMinor(b.Version)
	if !ok {
		return false
	}
	if major != minOutputFlagMajor {
		return major > minOutputFlagMajor
	}
	return minor >= minOutputFlagMinor
}

func parseMajorMinor(version string) (major, minor int, ok bool) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(strings.SplitN(parts[1], "-", 2)[0])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

// Composer invokes the supergraph binary over a scratch supergraph.yaml and
// returns its raw JSON output document (spec.md §4.5 recompose step 3).
// The default implementation is *runner; tests substitute a fake.
type Composer interface {
	Compose(ctx context.Context, bin Binary, supergraphYAMLPath string) ([]byte, error)
}

// runner is the default Composer, shelling out to the real binary via the
// injected exec effect.
type runner struct {
	Exec       effect.ExecCommand
	Read       effect.ReadFile
	ScratchDir string
	Logger     func(msg string, args ...any)
}

func (r *runner) Compose(ctx context.Context, bin Binary, supergraphYAMLPath string) ([]byte, error) {
	useOutputFlag := bin.supportsOutputFlag()
	if bin.Version != "" && !useOutputFlag {
		if _, _, ok := parseMajorMinor(bin.Version); !ok {
			r.logf("supergraph binary version %q is not a recognized semver; falling back to stdout parsing", bin.Version)
		}
	}

	args := []string{"compose", supergraphYAMLPath}
	var outputPath string
	if useOutputFlag {
		outputPath = filepath.Join(r.ScratchDir, "composition-output.json")
		args = append(args, "--output", outputPath)
	}

	cmd, err := r.Exec.Exec(ctx, effect.ExecCommandConfig{Binary: bin.Path, Args: args})
	if err != nil {
		return nil, &BinaryInvocationError{Err: err}
	}

	var stdout bytes.Buffer
	if cmd.Stdout == nil {
		cmd.Stdout = &stdout
	}
	var stderr bytes.Buffer
	if cmd.Stderr == nil {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		return nil, &BinaryInvocationError{Err: fmt.Errorf("%w (stderr: %s)", err, stderr.String())}
	}

	if outputPath == "" {
		return stdout.Bytes(), nil
	}

	contents, err := r.readOutputFile(outputPath)
	if err != nil {
		return nil, &BinaryInvocationError{Err: fmt.Errorf("reading --output file: %w", err)}
	}
	return contents, nil
}

func (r *runner) readOutputFile(path string) ([]byte, error) {
	if r.Read != nil {
		return r.Read.ReadFile(path)
	}
	return os.ReadFile(path)
}

func (r *runner) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger(format, args...)
	}
}
