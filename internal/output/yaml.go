package output

import (
	"gopkg.in/yaml.v3"

	"github.com/hostprobe/hostprobe/internal/metadata"
)

// YAMLFormatter renders the same record shape as JSONFormatter. Built on
// yaml.Node mapping nodes so attribute order is preserved.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(res *metadata.Result) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	appendScalarKV(root, "success", boolNode(res.Success))
	appendScalarKV(root, "type", stringNode(string(res.Type)))
	appendScalarKV(root, "identifier", stringNode(res.Identifier))
	if !res.Success && res.Err != "" {
		appendScalarKV(root, "error", stringNode(res.Err))
	}

	attrs := &yaml.Node{Kind: yaml.MappingNode}
	for _, attr := range res.Attributes {
		appendScalarKV(attrs, attr.Name, valuesNode(attr.Values))
	}
	appendScalarKV(root, "attributes", attrs)

	return yaml.Marshal(root)
}

func valuesNode(values []string) *yaml.Node {
	switch len(values) {
	case 0:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case 1:
		return stringNode(values[0])
	}

	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, v := range values {
		seq.Content = append(seq.Content, stringNode(v))
	}
	return seq
}

func appendScalarKV(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, stringNode(key), value)
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func boolNode(b bool) *yaml.Node {
	v := "false"
	if b {
		v = "true"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v}
}
