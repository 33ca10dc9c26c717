package supergraphconfig

import (
	"fmt"
	"net/url"

	"github.com/goccy/go-yaml"

	"github.com/kaigraph/devgraph/subgraph"
)

// rawFile mirrors the supergraph config YAML document (spec.md §6). The
// subgraphs map is decoded via yaml.MapSlice to preserve the source file's
// key order, since spec.md §3 makes iteration order part of the data model.
type rawFile struct {
	FederationVersion interface{}   `yaml:"federation_version,omitempty"`
	Subgraphs         yaml.MapSlice `yaml:"subgraphs"`
}

type rawSchemaSource struct {
	File                 *string           `yaml:"file,omitempty"`
	SubgraphURL          *string           `yaml:"subgraph_url,omitempty"`
	IntrospectionHeaders map[string]string `yaml:"introspection_headers,omitempty"`
	GraphRef             *string           `yaml:"graphref,omitempty"`
	Subgraph             *string           `yaml:"subgraph,omitempty"`
	SDL                  *string           `yaml:"sdl,omitempty"`
}

type rawSubgraphEntry struct {
	RoutingURL string          `yaml:"routing_url,omitempty"`
	Schema     rawSchemaSource `yaml:"schema"`
}

// DecodeFile parses a supergraph config YAML document (after env
// expansion) into an ordered subgraph set and an optional federation
// version (nil when the document doesn't set one).
func DecodeFile(data []byte) (*Subgraphs, *FederationVersion, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal supergraph config: %w", err)
	}

	subgraphs := NewSubgraphs()
	for _, item := range raw.Subgraphs {
		name, ok := item.Key.(string)
		if !ok {
			return nil, nil, fmt.Errorf("subgraph name %v is not a string", item.Key)
		}
		entryBytes, err := yaml.Marshal(item.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to re-marshal subgraph %q: %w", name, err)
		}
		var entry rawSubgraphEntry
		if err := yaml.Unmarshal(entryBytes, &entry); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal subgraph %q: %w", name, err)
		}

		source, err := entry.Schema.toSource()
		if err != nil {
			return nil, nil, fmt.Errorf("subgraph %q: %w", name, err)
		}
		subgraphs.Set(name, subgraph.Descriptor{
			Name:       name,
			RoutingURL: entry.RoutingURL,
			Schema:     source,
		})
	}

	var fedVersion *FederationVersion
	if raw.FederationVersion != nil {
		text := fmt.Sprintf("%v", raw.FederationVersion)
		parsed, err := ParseFederationVersion(text)
		if err != nil {
			return nil, nil, err
		}
		fedVersion = &parsed
	}

	return subgraphs, fedVersion, nil
}

func (s rawSchemaSource) toSource() (subgraph.Source, error) {
	switch {
	case s.File != nil:
		return subgraph.Source{Kind: subgraph.SourceFile, FilePath: *s.File}, nil
	case s.SubgraphURL != nil:
		u, err := url.Parse(*s.SubgraphURL)
		if err != nil {
			return subgraph.Source{}, fmt.Errorf("invalid subgraph_url %q: %w", *s.SubgraphURL, err)
		}
		return subgraph.Source{
			Kind:                 subgraph.SourceIntrospection,
			IntrospectionURL:     u,
			IntrospectionHeaders: s.IntrospectionHeaders,
		}, nil
	case s.GraphRef != nil:
		name := ""
		if s.Subgraph != nil {
			name = *s.Subgraph
		}
		return subgraph.Source{Kind: subgraph.SourceRemote, GraphRefText: *s.GraphRef, SubgraphName: name}, nil
	case s.SDL != nil:
		return subgraph.Source{Kind: subgraph.SourceSDL, SDL: *s.SDL}, nil
	default:
		return subgraph.Source{}, fmt.Errorf("schema must set exactly one of file/subgraph_url/graphref/sdl")
	}
}

func sourceToRaw(s subgraph.Source) rawSchemaSource {
	switch s.Kind {
	case subgraph.SourceFile:
		return rawSchemaSource{File: &s.FilePath}
	case subgraph.SourceIntrospection:
		text := ""
		if s.IntrospectionURL != nil {
			text = s.IntrospectionURL.String()
		}
		return rawSchemaSource{SubgraphURL: &text, IntrospectionHeaders: s.IntrospectionHeaders}
	case subgraph.SourceRemote:
		return rawSchemaSource{GraphRef: &s.GraphRefText, Subgraph: &s.SubgraphName}
	default:
		return rawSchemaSource{SDL: &s.SDL}
	}
}

// EncodeSubgraphs serializes an ordered subgraph set back into the
// `subgraphs:` mapping shape, preserving insertion order (spec.md §8
// round-trip property); DecodeFile reads that shape back. The composition
// watcher uses it to write its scratch supergraph.yaml.
func EncodeSubgraphs(subgraphs *Subgraphs, fedVersion FederationVersion) ([]byte, error) {
	raw := rawFile{FederationVersion: fedVersion.String()}
	subgraphs.Range(func(name string, d subgraph.Descriptor) {
		entry := rawSubgraphEntry{RoutingURL: d.RoutingURL, Schema: sourceToRaw(d.Schema)}
		raw.Subgraphs = append(raw.Subgraphs, yaml.MapItem{Key: name, Value: entry})
	})
	return yaml.Marshal(raw)
}
