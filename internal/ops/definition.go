package ops

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/roach88/fontrecipe/internal/ir"
)

// Arity bounds the number of input artifacts an operation accepts.
// Max < 0 means unbounded.
type Arity struct {
	Min int
	Max int
}

// Single is the arity of an ordinary one-input operation.
var Single = Arity{Min: 1, Max: 1}

// Allows reports whether n inputs satisfy the arity.
func (a Arity) Allows(n int) bool {
	if n < a.Min {
		return false
	}
	return a.Max < 0 || n <= a.Max
}

func (a Arity) String() string {
	switch {
	case a.Max < 0:
		return fmt.Sprintf("%d..n", a.Min)
	case a.Min == a.Max:
		return fmt.Sprintf("%d", a.Min)
	default:
		return fmt.Sprintf("%d..%d", a.Min, a.Max)
	}
}

// ArgKind is the declared type of an operation argument.
type ArgKind int

const (
	// ArgString is a plain string passed as a single word.
	ArgString ArgKind = iota
	// ArgArgv is a command-line fragment split into words with shell quoting rules.
	ArgArgv
	ArgInt
	ArgBool
	// ArgList is a list of strings. A single string is accepted as a one-element list.
	ArgList
	ArgMap
	// ArgData is any structured value, handed to the operation as is.
	ArgData
)

func (k ArgKind) String() string {
	switch k {
	case ArgString:
		return "string"
	case ArgArgv:
		return "argv"
	case ArgInt:
		return "int"
	case ArgBool:
		return "bool"
	case ArgList:
		return "list"
	case ArgMap:
		return "map"
	case ArgData:
		return "data"
	default:
		return fmt.Sprintf("ArgKind(%d)", int(k))
	}
}

// ArgSpec declares one argument of an operation.
type ArgSpec struct {
	Name     string
	Kind     ArgKind
	Required bool
	Doc      string
}

// Call is one invocation of an operation on concrete artifacts.
// Paths are relative to WorkDir unless absolute.
type Call struct {
	Spec    ir.OperationSpec
	Inputs  []string
	Output  string
	WorkDir string
}

// Input returns the first input path.
func (c Call) Input() string {
	if len(c.Inputs) == 0 {
		return ""
	}
	return c.Inputs[0]
}

// Abs resolves p against WorkDir.
func (c Call) Abs(p string) string {
	if filepath.IsAbs(p) || c.WorkDir == "" {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}

// Definition is one operation variant.
type Definition struct {
	Name        string
	Description string
	Arity       Arity

	// InPlace operations rewrite their input file. Used as an ordinary
	// operation step, the input is copied to the output path first and the
	// command runs on the copy.
	InPlace bool

	Args []ArgSpec

	// Ext is the extension of the produced artifact. Empty keeps the
	// extension of the first input.
	Ext string

	// Command builds the argument vector run by the registry's Runner.
	Command func(b *Bound, c Call) ([]string, error)

	// Exec replaces Command for operations that need more than one process
	// or run in-process.
	Exec func(ctx context.Context, r Runner, b *Bound, c Call) error
}

func (d *Definition) arg(name string) (ArgSpec, bool) {
	for _, a := range d.Args {
		if a.Name == name {
			return a, true
		}
	}
	return ArgSpec{}, false
}

// Bound is an operation spec whose arguments passed schema validation.
type Bound struct {
	Def  *Definition
	Spec ir.OperationSpec
}

// Has reports whether the argument is present.
func (b *Bound) Has(name string) bool {
	_, ok := b.Spec.Args[name]
	return ok
}

// Text returns a string argument, or "" when absent.
func (b *Bound) Text(name string) string {
	if v, ok := b.Spec.Args[name].(ir.String); ok {
		return string(v)
	}
	return ""
}

// Int returns an int argument, or 0 when absent.
func (b *Bound) Int(name string) int64 {
	if v, ok := b.Spec.Args[name].(ir.Int); ok {
		return int64(v)
	}
	return 0
}

// Bool returns a bool argument, or false when absent.
func (b *Bound) Bool(name string) bool {
	if v, ok := b.Spec.Args[name].(ir.Bool); ok {
		return bool(v)
	}
	return false
}

// Strings returns a list argument as strings.
func (b *Bound) Strings(name string) []string {
	switch v := b.Spec.Args[name].(type) {
	case ir.String:
		return []string{string(v)}
	case ir.List:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			out = append(out, ir.Text(elem))
		}
		return out
	}
	return nil
}

// Map returns a map argument.
func (b *Bound) Map(name string) ir.Map {
	if v, ok := b.Spec.Args[name].(ir.Map); ok {
		return v
	}
	return nil
}

// Argv splits an argv argument into words. Bind already checked the quoting.
func (b *Bound) Argv(name string) []string {
	words, _ := SplitArgs(b.Text(name))
	return words
}
