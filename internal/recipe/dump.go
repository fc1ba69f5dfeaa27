package recipe

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fontrecipe/internal/ir"
)

// Dump renders the recipe as YAML that Parse accepts again. Targets keep
// their order; within a step the kind key comes first, then needs, then the
// arguments sorted by name.
func Dump(r *Recipe) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, t := range r.Targets {
		steps := &yaml.Node{Kind: yaml.SequenceNode}
		for _, s := range t.Steps {
			node, err := stepNode(s)
			if err != nil {
				return nil, fmt.Errorf("dump %s: %w", t.Path, err)
			}
			steps.Content = append(steps.Content, node)
		}
		root.Content = append(root.Content, scalar(t.Path), steps)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("dump recipe: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("dump recipe: %w", err)
	}
	return buf.Bytes(), nil
}

func stepNode(s Step) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	switch s.Kind {
	case StepSource:
		node.Content = append(node.Content, scalar("source"), scalar(s.Source))
	case StepOperation:
		node.Content = append(node.Content, scalar("operation"), scalar(s.Operation))
	case StepPostprocess:
		node.Content = append(node.Content, scalar("postprocess"), scalar(s.Operation))
		if len(s.Needs) > 0 {
			needs := &yaml.Node{Kind: yaml.SequenceNode}
			for _, n := range s.Needs {
				needs.Content = append(needs.Content, scalar(n))
			}
			node.Content = append(node.Content, scalar("needs"), needs)
		}
	default:
		return nil, fmt.Errorf("cannot dump step of kind %s", s.Kind)
	}

	for _, k := range s.Args.SortedKeys() {
		var v yaml.Node
		if err := v.Encode(ir.ToAny(s.Args[k])); err != nil {
			return nil, fmt.Errorf("argument %s: %w", k, err)
		}
		node.Content = append(node.Content, scalar(k), &v)
	}
	return node, nil
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
