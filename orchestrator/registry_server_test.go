package orchestrator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/kaigraph/devgraph/internal/effect"
	"github.com/kaigraph/devgraph/remotefetch"
)

func TestParseGraphRef(t *testing.T) {
	cases := map[string]effect.GraphRef{
		"mygraph":         {Name: "mygraph", Variant: "current"},
		"mygraph@current": {Name: "mygraph", Variant: "current"},
		"mygraph@prod":    {Name: "mygraph", Variant: "prod"},
		"":                {},
	}
	for text, want := range cases {
		if got := parseGraphRef(text); got != want {
			t.Errorf("parseGraphRef(%q) = %+v, want %+v", text, got, want)
		}
	}
}

func TestRegistryServer_RegisterThenListSubgraphs(t *testing.T) {
	registry := remotefetch.NewRegistry()
	srv := httptest.NewServer(NewRegistryServer(registry))
	defer srv.Close()

	body, err := json.Marshal(registerRequest{
		GraphRef: "mygraph@current",
		Subgraphs: []effect.RemoteSubgraph{
			{Name: "products", RoutingURL: "http://products.example.com", SDL: "type Query { p: Int }"},
		},
		FederationVersion: "2",
		Pinned:            true,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(srv.URL+"/registry/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /registry/register: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/registry/subgraphs?graph_ref=mygraph@current")
	if err != nil {
		t.Fatalf("GET /registry/subgraphs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var subgraphs []effect.RemoteSubgraph
	if err := json.NewDecoder(resp.Body).Decode(&subgraphs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(subgraphs) != 1 || subgraphs[0].Name != "products" {
		t.Fatalf("unexpected subgraphs: %+v", subgraphs)
	}
}

func TestRegistryServer_FederationVersionUnregisteredReportsUnpinned(t *testing.T) {
	registry := remotefetch.NewRegistry()
	srv := httptest.NewServer(NewRegistryServer(registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/registry/federation-version?graph_ref=unknown")
	if err != nil {
		t.Fatalf("GET /registry/federation-version: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Version string `json:"version"`
		Pinned  bool   `json:"pinned"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Pinned {
		t.Fatalf("expected unregistered graph ref to report pinned=false")
	}
}

func TestRegistryServer_ListSubgraphsUnregisteredGraphRefIs404(t *testing.T) {
	registry := remotefetch.NewRegistry()
	srv := httptest.NewServer(NewRegistryServer(registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/registry/subgraphs?graph_ref=unknown")
	if err != nil {
		t.Fatalf("GET /registry/subgraphs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRegistryServer_RegisterRejectsWrongMethod(t *testing.T) {
	registry := remotefetch.NewRegistry()
	srv := httptest.NewServer(NewRegistryServer(registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/registry/register")
	if err != nil {
		t.Fatalf("GET /registry/register: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
