package ops

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fontrecipe/internal/ir"
)

// recordingRunner records every argv and optionally fails.
type recordingRunner struct {
	mu    sync.Mutex
	calls [][]string
	fail  func(argv []string) (Output, error)
}

func (r *recordingRunner) Run(_ context.Context, _ string, argv []string) (Output, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string(nil), argv...))
	r.mu.Unlock()
	if r.fail != nil {
		return r.fail(argv)
	}
	return Output{}, nil
}

func spec(name string, args ir.Map) ir.OperationSpec {
	return ir.OperationSpec{Name: name, Args: args}
}

func TestRegistry_RegisterRejects(t *testing.T) {
	r := NewRegistry(&recordingRunner{})
	cmd := func(*Bound, Call) ([]string, error) { return []string{"true"}, nil }

	require.NoError(t, r.Register(Definition{Name: "x", Command: cmd}))

	assert.ErrorContains(t, r.Register(Definition{Name: "x", Command: cmd}), "already registered")
	assert.ErrorContains(t, r.Register(Definition{Command: cmd}), "name is empty")
	assert.ErrorContains(t, r.Register(Definition{Name: "y"}), "neither Command nor Exec")

	def, ok := r.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, Single, def.Arity, "zero arity defaults to a single input")
}

func TestRegistry_Names(t *testing.T) {
	r := Default(&recordingRunner{})
	names := r.Names()
	assert.Contains(t, names, "buildVariable")
	assert.Contains(t, names, "buildStat")
	assert.Contains(t, names, "exec")
	assert.IsIncreasing(t, names)
}

func TestRegistry_Bind(t *testing.T) {
	r := Default(&recordingRunner{})

	tests := []struct {
		name    string
		spec    ir.OperationSpec
		wantArg string
		wantMsg string
	}{
		{"unknown argument", spec("fix", ir.Map{"bogus": ir.String("x")}), "bogus", "unknown argument"},
		{"missing required", spec("rename", nil), "name", "required argument is missing"},
		{"wrong kind", spec("rename", ir.Map{"name": ir.Int(3)}), "name", "expected string, got int"},
		{"bad quoting", spec("fix", ir.Map{"args": ir.String("'open")}), "args", "unterminated"},
		{"map expected", spec("remap", ir.Map{"mappings": ir.String("a")}), "mappings", "expected map"},
		{"nested list", spec("instantiateUfo", ir.Map{
			"instance_name": ir.String("Regular"),
			"glyphData":     ir.List{ir.List{ir.String("a")}},
		}), "glyphData", "expected a scalar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Bind(tt.spec)
			var argErr *ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, tt.wantArg, argErr.Arg)
			assert.Contains(t, argErr.Message, tt.wantMsg)
		})
	}
}

func TestRegistry_BindUnknownOperation(t *testing.T) {
	r := Default(&recordingRunner{})
	_, err := r.Bind(spec("nope", nil))
	var unknown *UnknownOperationError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Name)
}

func TestRegistry_OutputExt(t *testing.T) {
	r := Default(&recordingRunner{})
	assert.Equal(t, ".woff2", r.OutputExt(spec("compress", nil), "a.ttf"))
	assert.Equal(t, ".otf", r.OutputExt(spec("fix", nil), "a.otf"))
	assert.Equal(t, ".ttf", r.OutputExt(spec("unknown", nil), "a.ttf"))
}

func TestRegistry_ExecuteFailure(t *testing.T) {
	runner := &recordingRunner{fail: func([]string) (Output, error) {
		return Output{ExitCode: 2, Stderr: []byte("boom\n")}, errors.New("exit status 2")
	}}
	r := Default(runner)
	dir := t.TempDir()

	err := r.Execute(context.Background(), Call{
		Spec:    spec("fix", nil),
		Inputs:  []string{"a.ttf"},
		Output:  "out/a.ttf",
		WorkDir: dir,
	})

	var execErr *OperationExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "fix", execErr.Name)
	assert.Equal(t, 2, execErr.ExitCode)
	assert.Equal(t, []string{"gftools-fix-font", "-o", "out/a.ttf", "a.ttf"}, execErr.Argv)
	assert.Contains(t, err.Error(), "boom")
	assert.DirExists(t, filepath.Join(dir, "out"), "output directory is created before the run")
}

func TestRegistry_ExecuteArity(t *testing.T) {
	runner := &recordingRunner{}
	r := Default(runner)

	err := r.Execute(context.Background(), Call{
		Spec:   spec("fix", nil),
		Inputs: []string{"a.ttf", "b.ttf"},
		Output: filepath.Join(t.TempDir(), "a.ttf"),
	})
	var execErr *OperationExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, err.Error(), "arity is 1")
	assert.Empty(t, runner.calls)
}

func TestRegistry_ExecuteBindFailure(t *testing.T) {
	r := Default(&recordingRunner{})
	err := r.Execute(context.Background(), Call{Spec: spec("nope", nil), Inputs: []string{"a"}})

	var execErr *OperationExecutionError
	require.ErrorAs(t, err, &execErr)
	var unknown *UnknownOperationError
	assert.ErrorAs(t, err, &unknown)
}

func TestRegistry_ExecuteInPlaceCopiesInput(t *testing.T) {
	runner := &recordingRunner{}
	r := Default(runner)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in.ttf"), []byte("font"), 0o644))

	err := r.Execute(context.Background(), Call{
		Spec:    spec("buildAvar2", nil),
		Inputs:  []string{"in.ttf"},
		Output:  "tmp/out.ttf",
		WorkDir: dir,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "tmp", "out.ttf"))
	require.NoError(t, err)
	assert.Equal(t, "font", string(data))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"gftools-gen-avar2", "--inplace", "tmp/out.ttf"}, runner.calls[0])
}

func TestRegistry_ExecuteInProcess(t *testing.T) {
	runner := &recordingRunner{}
	r := Default(runner)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a.ufo", "glyphs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ufo", "glyphs", "a.glif"), []byte("<glyph/>"), 0o644))

	err := r.Execute(context.Background(), Call{
		Spec:    spec("copy", nil),
		Inputs:  []string{"a.ufo"},
		Output:  "b.ufo",
		WorkDir: dir,
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "b.ufo", "glyphs", "a.glif"))
	assert.Empty(t, runner.calls)
}
