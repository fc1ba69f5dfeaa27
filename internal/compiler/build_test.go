package compiler

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fontrecipe/internal/ops"
	"github.com/roach88/fontrecipe/internal/recipe"
)

func parse(t *testing.T, src string) *recipe.Recipe {
	t.Helper()
	r, err := recipe.Parse([]byte(src))
	require.NoError(t, err)
	return r
}

func build(t *testing.T, src string) *Graph {
	t.Helper()
	g, err := Build(parse(t, src), ops.Default(nil), NewSession(t.TempDir()))
	require.NoError(t, err)
	return g
}

func buildErr(t *testing.T, src string) error {
	t.Helper()
	g, err := Build(parse(t, src), ops.Default(nil), NewSession(""))
	require.Error(t, err)
	assert.Nil(t, g)
	return err
}

func keySet(g *Graph) []Key {
	keys := append([]Key(nil), g.Order...)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// byOp returns the only node running op.
func byOp(t *testing.T, g *Graph, op string) *Node {
	t.Helper()
	var found *Node
	for _, k := range g.Order {
		if g.Nodes[k].Op.Name == op {
			require.Nil(t, found, "more than one %s node", op)
			found = g.Nodes[k]
		}
	}
	require.NotNil(t, found, "no %s node", op)
	return found
}

const hintedPair = `
unhinted/X.ttf:
  - source: X.designspace
  - operation: buildTTF
  - operation: fix
hinted/X.ttf:
  - source: X.designspace
  - operation: buildTTF
  - operation: fix
  - operation: autohint
`

// TestBuild_SharedPrefix tests that a shared chain prefix produces one node per step.
func TestBuild_SharedPrefix(t *testing.T) {
	g := build(t, hintedPair)

	require.Equal(t, 3+1, g.Len(), "shared prefix must not be duplicated")

	compile := byOp(t, g, "buildTTF")
	fix := byOp(t, g, "fix")
	hint := byOp(t, g, "autohint")

	assert.True(t, compile.Output.Temp)
	assert.Equal(t, ".fontrecipe/tmp/0001-buildTTF.ttf", compile.Output.Path)
	assert.Equal(t, []Input{{Path: "X.designspace"}}, compile.Inputs)

	// hinted/X.ttf is folded first and names fix's output as a temp; the
	// unhinted target then promotes it.
	assert.Equal(t, Artifact{Path: "unhinted/X.ttf"}, fix.Output)
	assert.Equal(t, []Input{{Node: fix.Key, Path: "unhinted/X.ttf"}}, hint.Inputs)
	assert.Equal(t, Artifact{Path: "hinted/X.ttf"}, hint.Output)

	assert.Equal(t, fix.Key, g.Targets["unhinted/X.ttf"])
	assert.Equal(t, hint.Key, g.Targets["hinted/X.ttf"])
	assert.Equal(t, []Key{compile.Key, fix.Key, hint.Key}, g.Chains["hinted/X.ttf"])
}

// TestBuild_Deterministic tests that declaration order does not change the graph.
func TestBuild_Deterministic(t *testing.T) {
	reordered := `
hinted/X.ttf:
  - source: X.designspace
  - operation: buildTTF
  - operation: fix
  - operation: autohint
unhinted/X.ttf:
  - source: X.designspace
  - operation: buildTTF
  - operation: fix
`
	a := build(t, hintedPair)
	b := build(t, reordered)
	c := build(t, hintedPair)

	assert.Equal(t, keySet(a), keySet(b))
	assert.Equal(t, a.Edges(), b.Edges())
	assert.Equal(t, a.Order, c.Order)
	for _, k := range a.Order {
		assert.Equal(t, a.Nodes[k].Output, b.Nodes[k].Output)
	}
}

// TestBuild_KeyIgnoresTargetName tests that identical chains collapse onto one node.
func TestBuild_KeyIgnoresTargetName(t *testing.T) {
	g := build(t, `
a.ttf:
  - source: A.ufo
  - operation: buildTTF
b.ttf:
  - source: A.ufo
  - operation: buildTTF
`)
	require.Equal(t, 1, g.Len())
	n := byOp(t, g, "buildTTF")
	assert.Equal(t, "a.ttf", n.Output.Path)
	assert.Equal(t, []string{"b.ttf"}, n.Aliases)
	assert.Equal(t, n.Key, g.Targets["a.ttf"])
	assert.Equal(t, n.Key, g.Targets["b.ttf"])
	assert.Equal(t, []string{"a.ttf", "b.ttf"}, n.Writes())
}

// TestBuild_ArgumentsDistinguishNodes tests that differing arguments are not shared.
func TestBuild_ArgumentsDistinguishNodes(t *testing.T) {
	g := build(t, `
a.ttf:
  - source: A.ufo
  - operation: buildTTF
    args: --no-production-names
b.ttf:
  - source: A.ufo
  - operation: buildTTF
`)
	assert.Equal(t, 2, g.Len())
	assert.NotEqual(t, g.Targets["a.ttf"], g.Targets["b.ttf"])
}

// TestBuild_PostprocessNeeds tests needs edges to other terminal nodes.
func TestBuild_PostprocessNeeds(t *testing.T) {
	g := build(t, `
A.ttf:
  - source: A.ufo
  - operation: buildTTF
B.ttf:
  - source: B.ufo
  - operation: buildTTF
  - postprocess: fix
    needs: A.ttf
`)
	require.Equal(t, 3, g.Len())
	pp := byOp(t, g, "fix")
	assert.Equal(t, KindPostprocess, pp.Kind)
	assert.Equal(t, []Key{g.Targets["A.ttf"]}, pp.Needs)
	assert.Equal(t, Artifact{Path: "B.ttf"}, pp.Output)
	require.Len(t, pp.Inputs, 1, "single-input operations get needs as ordering only")
	assert.Equal(t, pp.Output.Path, pp.Inputs[0].Path, "postprocess mutates its input in place")
	assert.Equal(t, pp.Key, g.Targets["B.ttf"])
	assert.Contains(t, g.Consumers(g.Targets["A.ttf"]), pp.Key)
}

// TestBuild_MultiInputPostprocess tests that needs become extra inputs of buildStat.
func TestBuild_MultiInputPostprocess(t *testing.T) {
	g := build(t, `
Foo[wght].ttf:
  - source: Foo.designspace
  - operation: buildVariable
Foo-Italic[wght].ttf:
  - source: Foo-Italic.designspace
  - operation: buildVariable
  - postprocess: buildStat
    needs: ["Foo[wght].ttf"]
`)
	stat := byOp(t, g, "buildStat")
	roman := g.Targets["Foo[wght].ttf"]
	require.Len(t, stat.Inputs, 2)
	assert.Equal(t, "Foo-Italic[wght].ttf", stat.Inputs[0].Path)
	assert.Equal(t, Input{Node: roman, Path: "Foo[wght].ttf"}, stat.Inputs[1])
	assert.Equal(t, []string{"Foo[wght].ttf"}, stat.Mutates)
	assert.Equal(t, []string{"Foo-Italic[wght].ttf", "Foo[wght].ttf"}, stat.Writes())
}

// TestBuild_PostprocessOnAlias tests that a postprocess on an aliased target
// leaves the original target alone.
func TestBuild_PostprocessOnAlias(t *testing.T) {
	g := build(t, `
a.ttf:
  - source: A.ufo
  - operation: buildTTF
b.ttf:
  - source: A.ufo
  - operation: buildTTF
  - postprocess: fix
`)
	compile := byOp(t, g, "buildTTF")
	pp := byOp(t, g, "fix")
	assert.Equal(t, "a.ttf", compile.Output.Path)
	assert.Equal(t, []string{"b.ttf"}, compile.Aliases)
	assert.Equal(t, "b.ttf", pp.Output.Path)
	assert.Empty(t, pp.After)
	assert.Equal(t, compile.Key, g.Targets["a.ttf"])
	assert.Equal(t, pp.Key, g.Targets["b.ttf"])
}

// TestBuild_ReadersRunBeforeRewrite tests order edges from readers of a
// target's unprocessed content to its postprocess.
func TestBuild_ReadersRunBeforeRewrite(t *testing.T) {
	g := build(t, `
X.ttf:
  - source: X.ufo
  - operation: buildTTF
  - postprocess: fix
X.woff2:
  - source: X.ufo
  - operation: buildTTF
  - operation: compress
`)
	compile := byOp(t, g, "buildTTF")
	pp := byOp(t, g, "fix")
	compress := byOp(t, g, "compress")

	assert.Equal(t, []Input{{Node: compile.Key, Path: "X.ttf"}}, compress.Inputs)
	assert.Equal(t, []Key{compress.Key}, pp.After)
	assert.Contains(t, g.Edges(), Edge{From: compress.Key, To: pp.Key, Kind: EdgeOrder})
}

// TestBuild_SourceSwitchToTarget tests that sourcing a declared target reads its terminal node.
func TestBuild_SourceSwitchToTarget(t *testing.T) {
	g := build(t, `
FooSC[wght].ttf:
  - source: Foo[wght].ttf
  - operation: remapLayout
    args: "'smcp -> ccmp'"
  - operation: rename
    name: Foo SC
Foo[wght].ttf:
  - source: Foo.designspace
  - operation: buildVariable
  - postprocess: buildStat
`)
	remap := byOp(t, g, "remapLayout")
	assert.Equal(t, []Input{{Node: g.Targets["Foo[wght].ttf"], Path: "Foo[wght].ttf"}}, remap.Inputs)
	assert.Equal(t, KindPostprocess, g.Nodes[g.Targets["Foo[wght].ttf"]].Kind)
	assert.Equal(t, "rename", g.Nodes[g.Targets["FooSC[wght].ttf"]].Op.Name)
}

// TestBuild_MidChainSourceSwitch tests that a source switch restarts the chain.
func TestBuild_MidChainSourceSwitch(t *testing.T) {
	g := build(t, `
out.ttf:
  - source: a.ufo
  - operation: buildTTF
  - source: b.ttf
  - operation: fix
`)
	assert.Equal(t, 2, g.Len())
	fix := byOp(t, g, "fix")
	assert.Equal(t, []Input{{Path: "b.ttf"}}, fix.Inputs)
	assert.Equal(t, []Key{fix.Key}, g.Chains["out.ttf"])
	assert.True(t, byOp(t, g, "buildTTF").Output.Temp)
}

// TestBuild_NeedsCycle tests that mutual needs are rejected.
func TestBuild_NeedsCycle(t *testing.T) {
	err := buildErr(t, `
T1.ttf:
  - source: a.ufo
  - operation: buildTTF
  - postprocess: fix
    needs: T2.ttf
T2.ttf:
  - source: b.ufo
  - operation: buildTTF
  - postprocess: fix
    needs: T1.ttf
`)
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"T1.ttf", "T2.ttf"}, cycle.Targets)
	assert.Equal(t, "dependency cycle between targets: T1.ttf -> T2.ttf", err.Error())
}

// TestBuild_SelfNeeds tests a postprocess that needs its own target.
func TestBuild_SelfNeeds(t *testing.T) {
	err := buildErr(t, `
a.ttf:
  - source: a.ufo
  - operation: buildTTF
  - postprocess: fix
    needs: a.ttf
`)
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a.ttf"}, cycle.Targets)
}

// TestBuild_SourceCycle tests targets sourcing each other.
func TestBuild_SourceCycle(t *testing.T) {
	err := buildErr(t, `
a.ttf:
  - source: b.ttf
  - operation: fix
b.ttf:
  - source: a.ttf
  - operation: fix
`)
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.ElementsMatch(t, []string{"a.ttf", "b.ttf"}, cycle.Targets)
}

// TestBuild_UnknownOperation tests eager operation name validation.
func TestBuild_UnknownOperation(t *testing.T) {
	err := buildErr(t, `
a.ttf:
  - source: a.ufo
  - operation: buildTTF
  - operation: makeItBold
`)
	var unknown *ops.UnknownOperationError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "makeItBold", unknown.Name)
	assert.Equal(t, "a.ttf", unknown.Target)
	assert.Equal(t, 3, unknown.Step)
}

// TestBuild_DependencyUnsatisfied tests needs naming an undeclared target.
func TestBuild_DependencyUnsatisfied(t *testing.T) {
	err := buildErr(t, `
a.ttf:
  - source: a.ufo
  - operation: buildTTF
  - postprocess: buildStat
    needs: [b.ttf]
`)
	var unsatisfied *DependencyUnsatisfiedError
	require.ErrorAs(t, err, &unsatisfied)
	assert.Equal(t, "a.ttf", unsatisfied.Target)
	assert.Equal(t, "b.ttf", unsatisfied.Need)
	assert.Equal(t, 3, unsatisfied.Step)
}

// TestBuild_ArgumentErrors tests that bad arguments surface as ConfigErrors.
func TestBuild_ArgumentErrors(t *testing.T) {
	err := buildErr(t, `
a.ttf:
  - source: a.ufo
  - operation: buildTTF
  - operation: rename
`)
	var cfg *recipe.ConfigError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, "args", cfg.Field)
	assert.Equal(t, 3, cfg.Step)
	assert.Contains(t, cfg.Message, `argument "name": required argument is missing`)
	assert.Equal(t, 5, cfg.Line)
}

// TestBuild_ConfigErrorsFirst tests that shape errors win over graph errors.
func TestBuild_ConfigErrorsFirst(t *testing.T) {
	r := &recipe.Recipe{Targets: []recipe.Target{{Path: "a.ttf"}}}
	g, err := Build(r, ops.Default(nil), nil)
	assert.Nil(t, g)
	var errs recipe.ConfigErrors
	assert.True(t, errors.As(err, &errs))
}

// TestBuild_ArityChecked tests that single-input operations cannot gather needs.
func TestBuild_ArityChecked(t *testing.T) {
	reg := ops.NewRegistry(nil)
	require.NoError(t, reg.Register(ops.Definition{
		Name:    "pair",
		Arity:   ops.Arity{Min: 2, Max: 2},
		Command: func(*ops.Bound, ops.Call) ([]string, error) { return nil, nil },
	}))
	r := parse(t, "a.ttf:\n  - source: a.ufo\n  - operation: pair\n")

	_, err := Build(r, reg, nil)
	var cfg *recipe.ConfigError
	require.ErrorAs(t, err, &cfg)
	assert.Contains(t, cfg.Message, "pair takes 2 inputs, got 1")
}

// TestBuild_TempExtension tests temp names follow the producing operation.
func TestBuild_TempExtension(t *testing.T) {
	g := build(t, `
Foo-Regular.woff2:
  - source: Foo.glyphs
  - operation: instantiateUfo
    instance_name: Foo Regular
  - operation: buildTTF
  - operation: compress
`)
	assert.Equal(t, ".fontrecipe/tmp/0001-instantiateUfo.ufo", byOp(t, g, "instantiateUfo").Output.Path)
	assert.Equal(t, ".fontrecipe/tmp/0002-buildTTF.ttf", byOp(t, g, "buildTTF").Output.Path)
	assert.Equal(t, "Foo-Regular.woff2", byOp(t, g, "compress").Output.Path)
}
