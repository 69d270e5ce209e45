package topology

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeYAML parses a YAML document.
func DecodeYAML(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode topology: %w", err)
	}
	return &doc, nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Params, keeping the
// mapping order.
func (p *Params) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: params must be a mapping", value.Line)
	}
	out := make(Params, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		val, err := scalarValue(v)
		if err != nil {
			return fmt.Errorf("param %q: %w", k.Value, err)
		}
		out = append(out, Param{Key: k.Value, Value: val})
	}
	*p = out
	return nil
}

// scalarValue decodes null and bool scalars. Everything else, numbers
// included, keeps its source text so hex addresses such as 0x1d reach the
// bus unchanged.
func scalarValue(n *yaml.Node) (any, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("line %d: value must be a scalar", n.Line)
	}
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	}
	return n.Value, nil
}
