package recipe

import "strings"

// Validate checks the shape of every chain and returns all problems as
// ConfigErrors, or nil.
//
// needs entries are not resolved here; an unknown target in needs is
// reported by the compiler once the graph exists.
func (r *Recipe) Validate() error {
	return r.validate().orNil()
}

func (r *Recipe) validate() ConfigErrors {
	var errs ConfigErrors
	if len(r.Targets) == 0 {
		return ConfigErrors{{Field: "recipe", Message: "recipe declares no targets"}}
	}

	seen := make(map[string]int)
	for _, t := range r.Targets {
		if strings.TrimSpace(t.Path) == "" {
			errs = append(errs, &ConfigError{Field: "target", Message: "target path is empty", Line: t.Line})
			continue
		}
		if _, dup := seen[t.Path]; dup {
			errs = append(errs, &ConfigError{
				Target:  t.Path,
				Field:   "target",
				Message: "target declared more than once",
				Line:    t.Line,
			})
			continue
		}
		seen[t.Path] = t.Line
		errs = append(errs, validateChain(t)...)
	}
	return errs
}

func validateChain(t Target) ConfigErrors {
	var errs ConfigErrors
	fail := func(step int, line int, field, msg string) {
		errs = append(errs, &ConfigError{Target: t.Path, Step: step, Field: field, Message: msg, Line: line})
	}

	if len(t.Steps) == 0 {
		fail(0, t.Line, "steps", "chain is empty")
		return errs
	}

	if first := t.Steps[0]; first.Kind != StepSource && first.Kind != stepUnknown {
		fail(1, first.Line, first.Kind.String(), "chain must start with a source step")
	}

	produced, post := false, false
	for i, s := range t.Steps {
		n := i + 1
		if post && (s.Kind == StepSource || s.Kind == StepOperation) {
			fail(n, s.Line, s.Kind.String(), "only postprocess steps may follow a postprocess step")
		}
		switch s.Kind {
		case stepUnknown:
			continue
		case StepSource:
			if strings.TrimSpace(s.Source) == "" {
				fail(n, s.Line, "source", "source path is empty")
			}
			if s.Source == t.Path {
				fail(n, s.Line, "source", "target cannot use itself as a source")
			}
			// Postprocess steps must never touch a switched-in source.
			produced = false
		case StepOperation:
			if strings.TrimSpace(s.Operation) == "" {
				fail(n, s.Line, "operation", "operation name is empty")
			}
			produced = true
		case StepPostprocess:
			post = true
			if strings.TrimSpace(s.Operation) == "" {
				fail(n, s.Line, "postprocess", "operation name is empty")
			}
			if !produced {
				fail(n, s.Line, "postprocess", "postprocess step has no earlier operation producing its input")
			}
			for _, need := range s.Needs {
				if strings.TrimSpace(need) == "" {
					fail(n, s.Line, "needs", "needs entry is empty")
				}
			}
		}
		if s.Kind != StepPostprocess && len(s.Needs) > 0 {
			fail(n, s.Line, "needs", "needs is only allowed on postprocess steps")
		}
	}

	if !hasUnknown(t.Steps) {
		switch last := lastDataStep(t.Steps); {
		case last < 0:
			fail(0, t.Line, "steps", "chain has no operation step")
		case t.Steps[last].Kind == StepSource:
			fail(last+1, t.Steps[last].Line, "source", "chain must end with an operation producing the target")
		}
	}
	return errs
}

// lastDataStep returns the index of the last source or operation step, or
// -1 when the chain has no operation step at all.
func lastDataStep(steps []Step) int {
	hasOp := false
	last := -1
	for i, s := range steps {
		switch s.Kind {
		case StepOperation:
			hasOp = true
			last = i
		case StepSource:
			last = i
		}
	}
	if !hasOp {
		return -1
	}
	return last
}

func hasUnknown(steps []Step) bool {
	for _, s := range steps {
		if s.Kind == stepUnknown {
			return true
		}
	}
	return false
}
