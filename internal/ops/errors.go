package ops

import (
	"fmt"
	"strings"

	"github.com/roach88/fontrecipe/internal/ir"
)

// UnknownOperationError reports an operation name absent from the registry.
// Target and Step are filled in by the graph builder when known.
type UnknownOperationError struct {
	Name   string
	Target string
	Step   int
}

func (e *UnknownOperationError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("unknown operation %q (target %q step %d)", e.Name, e.Target, e.Step)
	}
	return fmt.Sprintf("unknown operation %q", e.Name)
}

// ArgumentError reports an argument that does not match the operation schema.
type ArgumentError struct {
	Operation string
	Arg       string
	Message   string
}

func (e *ArgumentError) Error() string {
	if e.Arg == "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("%s: argument %q: %s", e.Operation, e.Arg, e.Message)
}

// OperationExecutionError reports a failed operation run. It is contained to
// the failing node: dependents are skipped, the rest of the build continues.
type OperationExecutionError struct {
	Name     string
	Args     ir.Map
	Argv     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *OperationExecutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "operation %s failed", ir.OperationSpec{Name: e.Name, Args: e.Args})
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, "\n%s", s)
	}
	return b.String()
}

func (e *OperationExecutionError) Unwrap() error {
	return e.Err
}
