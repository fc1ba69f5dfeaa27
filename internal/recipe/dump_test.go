package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fontrecipe/internal/ir"
)

// TestDump_Reloadable tests that a dumped recipe parses back to the same recipe.
func TestDump_Reloadable(t *testing.T) {
	src := `
fonts/variable/Foo[wght].ttf:
  - source: sources/Foo.designspace
  - operation: buildVariable
    args: --filter ... --filter FlattenComponentsFilter
  - operation: fix
    include_source_fixes: true
  - postprocess: buildStat
    needs:
      - fonts/variable/Foo-Italic[wght].ttf
fonts/variable/Foo-Italic[wght].ttf:
  - source: sources/Foo-Italic.designspace
  - operation: buildVariable
  - operation: subspace
    axes: [wght=400:700, "true"]
    max: 700
`
	r, err := Parse([]byte(src))
	require.NoError(t, err)

	out, err := Dump(r)
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err, "dumped YAML:\n%s", out)

	c1, err := r.Canonical()
	require.NoError(t, err)
	c2, err := again.Canonical()
	require.NoError(t, err)
	assert.Equal(t, string(c1), string(c2))
	assert.Equal(t, ir.List{ir.String("wght=400:700"), ir.String("true")}, again.Targets[1].Steps[2].Args["axes"])
}

// TestDump_KeyOrder tests that the kind key leads each step.
func TestDump_KeyOrder(t *testing.T) {
	r := &Recipe{Targets: []Target{{
		Path: "a.ttf",
		Steps: []Step{
			{Kind: StepSource, Source: "a.ufo"},
			{Kind: StepOperation, Operation: "rename", Args: ir.Map{"name": ir.String("A SC"), "args": ir.String("--just-family")}},
		},
	}}}

	out, err := Dump(r)
	require.NoError(t, err)
	assert.Equal(t, "a.ttf:\n  - source: a.ufo\n  - operation: rename\n    args: --just-family\n    name: A SC\n", string(out))
}
