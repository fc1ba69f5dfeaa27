package recipe

import (
	"fmt"
	"strings"
)

// ConfigError reports a malformed recipe. It is fatal and raised before any
// node executes.
type ConfigError struct {
	Target  string `json:"target,omitempty"`
	Step    int    `json:"step,omitempty"` // 1-based, 0 when the error is about the target itself
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config error")
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, ": target %q", e.Target)
	}
	if e.Step > 0 {
		fmt.Fprintf(&b, " step %d", e.Step)
	}
	fmt.Fprintf(&b, ": %s: %s", e.Field, e.Message)
	return b.String()
}

// ConfigErrors collects every problem found in one pass.
type ConfigErrors []*ConfigError

func (errs ConfigErrors) Error() string {
	switch len(errs) {
	case 0:
		return "no config errors"
	case 1:
		return errs[0].Error()
	}
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return fmt.Sprintf("%d config errors:\n  %s", len(errs), strings.Join(lines, "\n  "))
}

// Unwrap exposes each error to errors.Is and errors.As.
func (errs ConfigErrors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

// orNil returns nil for an empty collection so callers can return it as error.
func (errs ConfigErrors) orNil() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
