package ir

import (
	"fmt"
	"strings"
)

// OperationSpec names an operation and the arguments it is applied with.
// Treat as immutable once constructed; use Clone before modifying Args.
type OperationSpec struct {
	Name string
	Args Map
}

// Canonical returns the canonical JSON encoding of the spec.
func (s OperationSpec) Canonical() ([]byte, error) {
	args := s.Args
	if args == nil {
		args = Map{}
	}
	return MarshalCanonical(Map{
		"name": String(s.Name),
		"args": args,
	})
}

// Clone returns a deep copy.
func (s OperationSpec) Clone() OperationSpec {
	return OperationSpec{Name: s.Name, Args: s.Args.Clone()}
}

// String renders the spec as name(key=value, ...) with sorted keys.
func (s OperationSpec) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	parts := make([]string, 0, len(s.Args))
	for _, k := range s.Args.SortedKeys() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, Text(s.Args[k])))
	}
	return s.Name + "(" + strings.Join(parts, ", ") + ")"
}
