package recipe

import (
	"fmt"
	"sort"

	"github.com/roach88/fontrecipe/internal/ir"
)

// StepKind distinguishes the three step record forms.
type StepKind int

const (
	StepSource StepKind = iota
	StepOperation
	StepPostprocess

	// stepUnknown marks a record whose kind could not be decoded. It keeps
	// its position so later errors report the right step number.
	stepUnknown StepKind = -1
)

func (k StepKind) String() string {
	switch k {
	case StepSource:
		return "source"
	case StepOperation:
		return "operation"
	case StepPostprocess:
		return "postprocess"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Step is one record of a target's chain.
type Step struct {
	Kind StepKind

	// Source is the path declared by a source step.
	Source string

	// Operation is the operation name of an operation or postprocess step.
	Operation string

	// Args holds every key of the record except the kind key and needs.
	Args ir.Map

	// Needs lists target paths a postprocess step waits for.
	Needs []string

	// Line is the 1-based line in the recipe file, 0 when unknown.
	Line int
}

// Spec returns the operation spec of an operation or postprocess step.
func (s Step) Spec() ir.OperationSpec {
	return ir.OperationSpec{Name: s.Operation, Args: s.Args}
}

// Target is a declared output path and its chain.
type Target struct {
	Path  string
	Steps []Step
	Line  int
}

// Recipe is the full set of targets in declaration order.
type Recipe struct {
	Targets []Target
}

// Lookup returns the target declared for path.
func (r *Recipe) Lookup(path string) (*Target, bool) {
	for i := range r.Targets {
		if r.Targets[i].Path == path {
			return &r.Targets[i], true
		}
	}
	return nil, false
}

// Paths returns all declared target paths sorted.
func (r *Recipe) Paths() []string {
	paths := make([]string, 0, len(r.Targets))
	for _, t := range r.Targets {
		paths = append(paths, t.Path)
	}
	sort.Strings(paths)
	return paths
}

// Override returns a new recipe where targets declared in other replace
// targets with the same path and new targets are appended.
func (r *Recipe) Override(other *Recipe) *Recipe {
	out := &Recipe{}
	replaced := make(map[string]bool)
	for _, t := range r.Targets {
		if o, ok := other.Lookup(t.Path); ok {
			out.Targets = append(out.Targets, *o)
			replaced[t.Path] = true
			continue
		}
		out.Targets = append(out.Targets, t)
	}
	for _, t := range other.Targets {
		if !replaced[t.Path] {
			out.Targets = append(out.Targets, t)
		}
	}
	return out
}

// Canonical returns the canonical JSON of the recipe with targets keyed by
// path. Two recipes that differ only in declaration order encode the same.
func (r *Recipe) Canonical() ([]byte, error) {
	targets := make(ir.Map, len(r.Targets))
	for _, t := range r.Targets {
		steps := make(ir.List, len(t.Steps))
		for i, s := range t.Steps {
			steps[i] = s.record()
		}
		targets[t.Path] = steps
	}
	return ir.MarshalCanonical(targets)
}

// record returns the step as a single map in its declared record form.
func (s Step) record() ir.Map {
	m := s.Args.Clone()
	if m == nil {
		m = ir.Map{}
	}
	switch s.Kind {
	case StepSource:
		m["source"] = ir.String(s.Source)
	case StepOperation:
		m["operation"] = ir.String(s.Operation)
	case StepPostprocess:
		m["postprocess"] = ir.String(s.Operation)
		if len(s.Needs) > 0 {
			needs := make(ir.List, len(s.Needs))
			for i, n := range s.Needs {
				needs[i] = ir.String(n)
			}
			m["needs"] = needs
		}
	}
	return m
}

// OutputStep returns the index of the step that writes the target file: the
// last operation step, with any later postprocess steps modifying it in place.
// Returns -1 for chains without an operation step.
func (t *Target) OutputStep() int {
	return lastDataStep(t.Steps)
}
