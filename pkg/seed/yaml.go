package seed

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/loom/pkg/domain"
)

// YAML tags for container seeds. Untagged values are plain.
const (
	TagText = "!text"
	TagList = "!list"
	TagMap  = "!map"
)

// UnmarshalYAML decodes a single tagged YAML value into a seed.
func UnmarshalYAML(data []byte) (Seed, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode seed yaml: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &domain.ShapeError{Expected: "yaml document", Actual: "empty input"}
	}
	return FromYAMLNode(root.Content[0], nil)
}

// UnmarshalYAMLDocument decodes a YAML mapping of top-level names to seeds,
// preserving the mapping order.
func UnmarshalYAMLDocument(data []byte) ([]Field, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode seed document: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, &domain.ShapeError{Expected: "mapping of names to seeds", Actual: nodeKind(top)}
	}
	return fieldsFromNode(top, nil)
}

// FromYAMLNode converts a YAML node into a seed.
func FromYAMLNode(n *yaml.Node, path []string) (Seed, error) {
	if n.Kind == yaml.AliasNode {
		return FromYAMLNode(n.Alias, path)
	}

	switch n.Tag {
	case TagText:
		if n.Kind != yaml.ScalarNode {
			return nil, &domain.ShapeError{Path: path, Expected: "scalar under " + TagText, Actual: nodeKind(n)}
		}
		return TextSeed{Text: n.Value}, nil
	case TagList:
		if n.Kind != yaml.SequenceNode {
			return nil, &domain.ShapeError{Path: path, Expected: "sequence under " + TagList, Actual: nodeKind(n)}
		}
		items := make([]Seed, len(n.Content))
		for i, c := range n.Content {
			s, err := FromYAMLNode(c, domain.JoinPath(path, fmt.Sprint(i)))
			if err != nil {
				return nil, err
			}
			items[i] = s
		}
		return ListSeed{Items: items}, nil
	case TagMap:
		if n.Kind != yaml.MappingNode {
			return nil, &domain.ShapeError{Path: path, Expected: "mapping under " + TagMap, Actual: nodeKind(n)}
		}
		fields, err := fieldsFromNode(n, path)
		if err != nil {
			return nil, err
		}
		return MapSeed{Fields: fields}, nil
	}

	if err := rejectNestedTags(n, path); err != nil {
		return nil, err
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode plain value at %s: %w", strings.Join(path, "."), err)
	}
	return PlainSeed{Value: v}, nil
}

func fieldsFromNode(n *yaml.Node, path []string) ([]Field, error) {
	fields := make([]Field, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if key.Kind != yaml.ScalarNode {
			return nil, &domain.ShapeError{Path: path, Expected: "string key", Actual: nodeKind(key)}
		}
		s, err := FromYAMLNode(n.Content[i+1], domain.JoinPath(path, key.Value))
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Key: key.Value, Seed: s})
	}
	return fields, nil
}

// rejectNestedTags fails when a container tag appears inside plain data,
// since plain data is never inspected for seeds.
func rejectNestedTags(n *yaml.Node, path []string) error {
	switch n.Tag {
	case TagText, TagList, TagMap:
		return &domain.ShapeError{Path: path, Expected: "plain value", Actual: n.Tag + " inside plain data"}
	}
	for i, c := range n.Content {
		p := path
		if n.Kind == yaml.SequenceNode {
			p = domain.JoinPath(path, fmt.Sprint(i))
		} else if n.Kind == yaml.MappingNode && i%2 == 1 {
			p = domain.JoinPath(path, n.Content[i-1].Value)
		}
		if err := rejectNestedTags(c, p); err != nil {
			return err
		}
	}
	return nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// ToYAMLNode converts a seed into a tagged YAML node.
func ToYAMLNode(s Seed) (*yaml.Node, error) {
	switch s := normalize(s).(type) {
	case TextSeed:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: TagText, Value: s.Text, Style: yaml.DoubleQuotedStyle}, nil
	case ListSeed:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: TagList}
		for _, it := range s.Items {
			c, err := ToYAMLNode(it)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	case MapSeed:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: TagMap}
		if err := appendFields(n, s.Fields); err != nil {
			return nil, err
		}
		return n, nil
	case PlainSeed:
		var n yaml.Node
		if err := n.Encode(s.Value); err != nil {
			return nil, err
		}
		return &n, nil
	default:
		return nil, &domain.ShapeError{Expected: "seed", Actual: "nil"}
	}
}

func appendFields(n *yaml.Node, fields []Field) error {
	for _, f := range fields {
		v, err := ToYAMLNode(f.Seed)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Key, err)
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: f.Key}, v)
	}
	return nil
}

// MarshalYAMLDocument encodes top-level entries as a tagged YAML mapping.
func MarshalYAMLDocument(entries []Field) ([]byte, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	if err := appendFields(n, entries); err != nil {
		return nil, err
	}
	return yaml.Marshal(n)
}
