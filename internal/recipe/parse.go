package recipe

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fontrecipe/internal/ir"
)

// Parse decodes a recipe YAML document and validates it.
// Every problem found is returned together as ConfigErrors.
func Parse(data []byte) (*Recipe, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ConfigErrors{{Field: "yaml", Message: err.Error()}}
	}
	if doc.Kind == 0 || (doc.Kind == yaml.DocumentNode && len(doc.Content) == 0) {
		return nil, ConfigErrors{{Field: "recipe", Message: "recipe is empty"}}
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		root = root.Content[0]
	}
	return FromNode(root)
}

// FromNode decodes a recipe from a YAML mapping node, preserving declaration
// order and line numbers.
func FromNode(root *yaml.Node) (*Recipe, error) {
	if root.Kind != yaml.MappingNode {
		return nil, ConfigErrors{{
			Field:   "recipe",
			Message: "recipe must be a mapping of target path to steps",
			Line:    root.Line,
		}}
	}

	r := &Recipe{}
	var errs ConfigErrors
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		target := Target{Path: keyNode.Value, Line: keyNode.Line}

		if valNode.Kind != yaml.SequenceNode {
			errs = append(errs, &ConfigError{
				Target:  target.Path,
				Field:   "steps",
				Message: "target must map to a list of steps",
				Line:    valNode.Line,
			})
			r.Targets = append(r.Targets, target)
			continue
		}

		for idx, item := range valNode.Content {
			if item.Kind != yaml.MappingNode {
				errs = append(errs, &ConfigError{
					Target:  target.Path,
					Step:    idx + 1,
					Field:   "step",
					Message: "step must be a mapping",
					Line:    item.Line,
				})
				continue
			}
			var raw map[string]any
			if err := item.Decode(&raw); err != nil {
				errs = append(errs, &ConfigError{
					Target:  target.Path,
					Step:    idx + 1,
					Field:   "step",
					Message: err.Error(),
					Line:    item.Line,
				})
				continue
			}
			step, stepErrs := decodeStep(raw, target.Path, idx+1, item.Line)
			errs = append(errs, stepErrs...)
			target.Steps = append(target.Steps, step)
		}
		r.Targets = append(r.Targets, target)
	}

	errs = append(errs, r.validate()...)
	if len(errs) > 0 {
		return nil, errs
	}
	return r, nil
}

// FromMap builds a recipe from decoded data, as produced by recipe providers
// or a TOML configuration. Targets are ordered by path since maps carry no
// declaration order.
func FromMap(m map[string]any) (*Recipe, error) {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	r := &Recipe{}
	var errs ConfigErrors
	for _, path := range paths {
		target := Target{Path: path}
		items, ok := stepList(m[path])
		if !ok {
			errs = append(errs, &ConfigError{
				Target:  path,
				Field:   "steps",
				Message: "target must map to a list of steps",
			})
			r.Targets = append(r.Targets, target)
			continue
		}
		for idx, item := range items {
			step, stepErrs := decodeStep(item, path, idx+1, 0)
			errs = append(errs, stepErrs...)
			target.Steps = append(target.Steps, step)
		}
		r.Targets = append(r.Targets, target)
	}

	errs = append(errs, r.validate()...)
	if len(errs) > 0 {
		return nil, errs
	}
	return r, nil
}

func stepList(v any) ([]map[string]any, bool) {
	switch val := v.(type) {
	case []map[string]any:
		return val, true
	case []any:
		out := make([]map[string]any, 0, len(val))
		for _, item := range val {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	default:
		return nil, false
	}
}

var kindKeys = []string{"source", "operation", "postprocess"}

func decodeStep(raw map[string]any, target string, idx, line int) (Step, ConfigErrors) {
	step := Step{Kind: stepUnknown, Line: line}
	var errs ConfigErrors
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ConfigError{
			Target:  target,
			Step:    idx,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Line:    line,
		})
	}

	var present []string
	for _, k := range kindKeys {
		if _, ok := raw[k]; ok {
			present = append(present, k)
		}
	}
	if len(present) != 1 {
		fail("step", "step must have exactly one of source, operation or postprocess (found %d: %s)",
			len(present), strings.Join(present, ", "))
		return step, errs
	}

	kindKey := present[0]
	name, ok := raw[kindKey].(string)
	if !ok {
		fail(kindKey, "must be a string, got %T", raw[kindKey])
		return step, errs
	}
	switch kindKey {
	case "source":
		step.Kind = StepSource
		step.Source = name
	case "operation":
		step.Kind = StepOperation
		step.Operation = name
	case "postprocess":
		step.Kind = StepPostprocess
		step.Operation = name
	}

	if needs, ok := raw["needs"]; ok {
		switch val := needs.(type) {
		case string:
			step.Needs = []string{val}
		case []any:
			for i, n := range val {
				s, ok := n.(string)
				if !ok {
					fail("needs", "entry %d must be a target path, got %T", i+1, n)
					continue
				}
				step.Needs = append(step.Needs, s)
			}
		case []string:
			step.Needs = append(step.Needs, val...)
		default:
			fail("needs", "must be a target path or a list of target paths, got %T", needs)
		}
	}

	for k, v := range raw {
		if k == kindKey || k == "needs" {
			continue
		}
		conv, err := ir.FromAny(v)
		if err != nil {
			fail(k, "%v", err)
			continue
		}
		if step.Args == nil {
			step.Args = ir.Map{}
		}
		step.Args[k] = conv
	}

	if step.Kind == StepSource && len(step.Args) > 0 {
		fail("source", "source steps take no arguments (got %s)", strings.Join(step.Args.SortedKeys(), ", "))
	}

	return step, errs
}
