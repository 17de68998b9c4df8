package recovery

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/relatio/internal/models"
)

// parseFlowMapping decodes a YAML flow mapping ({key: value, ...}). Models
// occasionally drop the quotes around keys, which YAML tolerates.
func parseFlowMapping(text string) (models.Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return models.Value{}, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return models.Value{}, fmt.Errorf("empty yaml document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return models.Value{}, fmt.Errorf("yaml document is not a mapping")
	}
	return nodeToValue(root, 0)
}

func nodeToValue(n *yaml.Node, depth int) (models.Value, error) {
	if depth > models.MaxNestingDepth {
		return models.Value{}, fmt.Errorf("yaml nesting deeper than %d", models.MaxNestingDepth)
	}

	switch n.Kind {
	case yaml.MappingNode:
		out := models.NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return models.Value{}, fmt.Errorf("yaml mapping key at line %d is not a scalar", key.Line)
			}
			val, err := nodeToValue(n.Content[i+1], depth+1)
			if err != nil {
				return models.Value{}, err
			}
			out.Set(key.Value, val)
		}
		return out, nil

	case yaml.SequenceNode:
		items := make([]models.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeToValue(c, depth+1)
			if err != nil {
				return models.Value{}, err
			}
			items = append(items, v)
		}
		return models.List(items...), nil

	case yaml.AliasNode:
		if n.Alias == nil {
			return models.Null(), nil
		}
		return nodeToValue(n.Alias, depth+1)

	case yaml.ScalarNode:
		return scalarToValue(n), nil
	}

	return models.Value{}, fmt.Errorf("unsupported yaml node kind %d", n.Kind)
}

func scalarToValue(n *yaml.Node) models.Value {
	// quoted scalars are always strings
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		return models.String(n.Value)
	}

	switch n.ShortTag() {
	case "!!null":
		return models.Null()
	case "!!bool":
		switch strings.ToLower(n.Value) {
		case "true", "yes", "on", "y":
			return models.Bool(true)
		default:
			return models.Bool(false)
		}
	case "!!int", "!!float":
		if v, err := models.ParseJSON([]byte(n.Value)); err == nil && v.Kind() == models.KindNumber {
			return v
		}
		return models.String(n.Value)
	}

	switch n.Value {
	case "None":
		return models.Null()
	case "True":
		return models.Bool(true)
	case "False":
		return models.Bool(false)
	}
	return models.String(n.Value)
}
