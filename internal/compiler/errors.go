package compiler

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle across data and needs edges.
type CycleError struct {
	// Targets are the targets taking part in the cycle, in cycle order when
	// the cycle was found while resolving targets, sorted otherwise.
	Targets []string
}

func (e *CycleError) Error() string {
	if len(e.Targets) == 1 {
		return fmt.Sprintf("dependency cycle: target %q depends on itself", e.Targets[0])
	}
	return fmt.Sprintf("dependency cycle between targets: %s", strings.Join(e.Targets, " -> "))
}

// DependencyUnsatisfiedError reports a needs entry naming an undeclared target.
type DependencyUnsatisfiedError struct {
	Target string
	Step   int
	Need   string
}

func (e *DependencyUnsatisfiedError) Error() string {
	return fmt.Sprintf("target %q step %d needs %q, which is not a declared target", e.Target, e.Step, e.Need)
}
