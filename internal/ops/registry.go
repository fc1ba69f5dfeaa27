package ops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/roach88/fontrecipe/internal/ir"
)

// Registry maps operation names to their definitions.
//
// Registration happens at startup; lookups and executions are safe from any
// goroutine afterwards.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]*Definition
	runner Runner
}

// NewRegistry creates an empty registry that runs commands with runner.
// A nil runner defaults to ExecRunner.
func NewRegistry(runner Runner) *Registry {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Registry{defs: make(map[string]*Definition), runner: runner}
}

// Default creates a registry holding the standard catalogue.
func Default(runner Runner) *Registry {
	r := NewRegistry(runner)
	for _, def := range Catalogue() {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a definition. Names are unique.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return errors.New("register: operation name is empty")
	}
	if def.Command == nil && def.Exec == nil {
		return fmt.Errorf("register %s: neither Command nor Exec is set", def.Name)
	}
	if def.Arity == (Arity{}) {
		def.Arity = Single
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("register %s: already registered", def.Name)
	}
	r.defs[def.Name] = &def
	return nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns all registered names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Bind validates spec against its definition's argument schema.
// Returns *UnknownOperationError or *ArgumentError.
func (r *Registry) Bind(spec ir.OperationSpec) (*Bound, error) {
	def, ok := r.Lookup(spec.Name)
	if !ok {
		return nil, &UnknownOperationError{Name: spec.Name}
	}

	for _, name := range spec.Args.SortedKeys() {
		a, ok := def.arg(name)
		if !ok {
			return nil, &ArgumentError{Operation: def.Name, Arg: name, Message: "unknown argument"}
		}
		if err := checkKind(a, spec.Args[name]); err != nil {
			return nil, &ArgumentError{Operation: def.Name, Arg: name, Message: err.Error()}
		}
	}
	for _, a := range def.Args {
		if _, ok := spec.Args[a.Name]; a.Required && !ok {
			return nil, &ArgumentError{Operation: def.Name, Arg: a.Name, Message: "required argument is missing"}
		}
	}
	return &Bound{Def: def, Spec: spec}, nil
}

func checkKind(a ArgSpec, v ir.Value) error {
	mismatch := func() error {
		return fmt.Errorf("expected %s, got %s", a.Kind, ir.KindOf(v))
	}
	switch a.Kind {
	case ArgString:
		if _, ok := v.(ir.String); !ok {
			return mismatch()
		}
	case ArgArgv:
		s, ok := v.(ir.String)
		if !ok {
			return mismatch()
		}
		if _, err := SplitArgs(string(s)); err != nil {
			return err
		}
	case ArgInt:
		if _, ok := v.(ir.Int); !ok {
			return mismatch()
		}
	case ArgBool:
		if _, ok := v.(ir.Bool); !ok {
			return mismatch()
		}
	case ArgList:
		switch val := v.(type) {
		case ir.String:
		case ir.List:
			for i, elem := range val {
				switch elem.(type) {
				case ir.String, ir.Int, ir.Bool:
				default:
					return fmt.Errorf("element %d: expected a scalar, got %s", i, ir.KindOf(elem))
				}
			}
		default:
			return mismatch()
		}
	case ArgMap:
		if _, ok := v.(ir.Map); !ok {
			return mismatch()
		}
	}
	return nil
}

// OutputExt returns the extension of the artifact spec produces from input.
func (r *Registry) OutputExt(spec ir.OperationSpec, input string) string {
	if def, ok := r.Lookup(spec.Name); ok && def.Ext != "" {
		return def.Ext
	}
	return filepath.Ext(input)
}

// Execute runs one operation call to completion. Failures are returned as
// *OperationExecutionError; nothing is retried.
func (r *Registry) Execute(ctx context.Context, call Call) error {
	b, err := r.Bind(call.Spec)
	if err != nil {
		return &OperationExecutionError{Name: call.Spec.Name, Args: call.Spec.Args, Err: err}
	}
	def := b.Def
	fail := func(argv []string, out Output, err error) error {
		var execErr *OperationExecutionError
		if errors.As(err, &execErr) {
			return execErr
		}
		return &OperationExecutionError{
			Name:     def.Name,
			Args:     call.Spec.Args,
			Argv:     argv,
			ExitCode: out.ExitCode,
			Stderr:   tail(out.Stderr),
			Err:      err,
		}
	}

	if !def.Arity.Allows(len(call.Inputs)) {
		return fail(nil, Output{}, fmt.Errorf("got %d inputs, arity is %s", len(call.Inputs), def.Arity))
	}
	if call.Output != "" {
		if err := os.MkdirAll(filepath.Dir(call.Abs(call.Output)), 0o755); err != nil {
			return fail(nil, Output{}, err)
		}
	}

	// In-place operations always work on their output path.
	if def.InPlace && call.Output != "" && call.Output != call.Input() {
		if err := CopyPath(call.Abs(call.Input()), call.Abs(call.Output)); err != nil {
			return fail(nil, Output{}, err)
		}
		inputs := append([]string{call.Output}, call.Inputs[1:]...)
		call.Inputs = inputs
	}

	if def.Exec != nil {
		if err := def.Exec(ctx, r.runner, b, call); err != nil {
			return fail(nil, Output{}, err)
		}
		return nil
	}

	argv, err := def.Command(b, call)
	if err != nil {
		return fail(nil, Output{}, err)
	}
	out, err := r.runner.Run(ctx, call.WorkDir, argv)
	if err != nil {
		return fail(argv, out, err)
	}
	return nil
}
