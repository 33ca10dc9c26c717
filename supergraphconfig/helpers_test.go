package supergraphconfig

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/kaigraph/devgraph/subgraph"
)

// fakeIntrospectorForTest never gets called in these tests because every
// fixture subgraph uses an inline SDL source; it exists only to satisfy
// the effect.Introspector parameter.
type fakeIntrospectorForTest struct{}

func (fakeIntrospectorForTest) Introspect(ctx context.Context, endpoint *url.URL, headers map[string]string) (string, error) {
	return "", nil
}

func mustWriteTempFile(t *testing.T, contents string) *FileDescriptor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supergraph.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write temp supergraph config: %v", err)
	}
	return &FileDescriptor{Path: path}
}

func mustSDLDescriptor(name, sdl string) subgraph.Descriptor {
	return subgraph.Descriptor{Name: name, Schema: subgraph.Source{Kind: subgraph.SourceSDL, SDL: sdl}}
}
