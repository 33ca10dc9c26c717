package router

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kaigraph/devgraph/internal/effect"
)

// LoadLocalConfig implements C6's LoadLocalConfig stage: read the
// router-config YAML (an empty/absent file means "use defaults"), then
// overwrite the listen address and health-check settings in place, keeping
// every other key the file already had (spec.md §4.6). Node-based editing
// is used specifically so a user's own router config keys survive rewrites
// verbatim.
func LoadLocalConfig(read effect.ReadFile, path string, addrOverride *Address, healthOverride *HealthCheck) (*Config, error) {
	var raw []byte
	if path != "" {
		contents, err := read.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading router config %s: %w", path, err)
		}
		raw = contents
	}

	root, err := parseOrEmptyMapping(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing router config: %w", err)
	}

	listen := readAddress(root)
	if addrOverride != nil {
		listen = *addrOverride
	}
	setMappingPath(root, []string{"supergraph", "listen"}, listen.String())

	health := readHealthCheck(root)
	if healthOverride != nil {
		health = *healthOverride
	}
	if health.Enabled {
		setMappingPath(root, []string{"health_check", "enabled"}, true)
		setMappingPath(root, []string{"health_check", "listen"}, HealthCheck{Host: health.Host, Port: health.Port}.listenAddr())
		setMappingPath(root, []string{"health_check", "path"}, orDefault(health.Path, DefaultHealthCheck.Path))
	} else {
		setMappingPath(root, []string{"health_check", "enabled"}, false)
	}

	rendered, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("rendering router config: %w", err)
	}

	return &Config{Node: root, Listen: listen, Health: health, Rendered: rendered}, nil
}

func (h HealthCheck) listenAddr() string {
	host := h.Host
	if host == "" {
		host = DefaultHealthCheck.Host
	}
	port := h.Port
	if port == 0 {
		port = DefaultHealthCheck.Port
	}
	return Address{Host: host, Port: port}.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseOrEmptyMapping(raw []byte) (*yaml.Node, error) {
	if len(raw) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("router config root must be a mapping")
	}
	return root, nil
}

// readAddress recovers the currently-configured listen address, if any, so
// LoadLocalConfig can report the effective address even when no override
// was supplied.
func readAddress(root *yaml.Node) Address {
	raw, ok := lookupMappingPath(root, []string{"supergraph", "listen"})
	if !ok {
		return DefaultAddress
	}
	return parseAddress(raw)
}

func readHealthCheck(root *yaml.Node) HealthCheck {
	hc := DefaultHealthCheck
	if raw, ok := lookupMappingPath(root, []string{"health_check", "enabled"}); ok {
		hc.Enabled = raw == "true"
	}
	if raw, ok := lookupMappingPath(root, []string{"health_check", "listen"}); ok {
		addr := parseAddress(raw)
		hc.Host, hc.Port = addr.Host, addr.Port
	}
	if raw, ok := lookupMappingPath(root, []string{"health_check", "path"}); ok {
		hc.Path = raw
	}
	return hc
}

func parseAddress(raw string) Address {
	host, port := splitHostPort(raw)
	return Address{Host: host, Port: port}
}

func splitHostPort(raw string) (string, int) {
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i] == ':' {
			host := raw[:i]
			port := 0
			fmt.Sscanf(raw[i+1:], "%d", &port)
			return host, port
		}
	}
	return raw, 0
}

// setMappingPath creates/overwrites a nested scalar value at path within a
// mapping node, creating intermediate mapping nodes as needed.
func setMappingPath(root *yaml.Node, path []string, value any) {
	node := root
	for i, key := range path {
		idx := findMappingKey(node, key)
		isLeaf := i == len(path)-1
		if idx >= 0 {
			valueNode := node.Content[idx*2+1]
			if isLeaf {
				setScalar(valueNode, value)
				return
			}
			if valueNode.Kind != yaml.MappingNode {
				*valueNode = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			}
			node = valueNode
			continue
		}

		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
		var valueNode *yaml.Node
		if isLeaf {
			valueNode = &yaml.Node{}
			setScalar(valueNode, value)
		} else {
			valueNode = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		node.Content = append(node.Content, keyNode, valueNode)
		if isLeaf {
			return
		}
		node = valueNode
	}
}

func lookupMappingPath(root *yaml.Node, path []string) (string, bool) {
	node := root
	for _, key := range path {
		idx := findMappingKey(node, key)
		if idx < 0 {
			return "", false
		}
		node = node.Content[idx*2+1]
	}
	if node.Kind != yaml.ScalarNode {
		return "", false
	}
	return node.Value, true
}

func findMappingKey(node *yaml.Node, key string) int {
	if node.Kind != yaml.MappingNode {
		return -1
	}
	for i := 0; i*2 < len(node.Content); i++ {
		if node.Content[i*2].Value == key {
			return i
		}
	}
	return -1
}

func setScalar(node *yaml.Node, value any) {
	node.Kind = yaml.ScalarNode
	switch v := value.(type) {
	case string:
		node.Tag = "!!str"
		node.Value = v
	case bool:
		node.Tag = "!!bool"
		if v {
			node.Value = "true"
		} else {
			node.Value = "false"
		}
	default:
		node.Tag = "!!str"
		node.Value = fmt.Sprint(v)
	}
}
