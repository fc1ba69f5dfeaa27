package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/ir"
	"github.com/roach88/fontrecipe/internal/ops"
	"github.com/roach88/fontrecipe/internal/recipe"
)

const fooDesignspace = `<?xml version='1.0' encoding='UTF-8'?>
<designspace format="5.0">
  <axes>
    <axis tag="wght" name="Weight" minimum="100" maximum="900" default="400"/>
  </axes>
  <sources>
    <source filename="Foo-Thin.ufo" familyname="Foo" stylename="Thin"/>
    <source filename="Foo-Black.ufo" familyname="Foo" stylename="Black"/>
  </sources>
  <instances>
    <instance name="Foo Regular" familyname="Foo" stylename="Regular" filename="instances/Foo-Regular.ufo"/>
    <instance familyname="Foo" stylename="Bold"/>
  </instances>
</designspace>
`

// writeProject lays out a Foo family. With smcp set the first master
// carries a small-cap feature.
func writeProject(t *testing.T, smcp bool) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Foo.designspace"), []byte(fooDesignspace), 0o644))
	for _, m := range []string{"Foo-Thin.ufo", "Foo-Black.ufo"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, m), 0o755))
	}
	if smcp {
		fea := "feature smcp {\n  sub a by a.sc;\n} smcp;\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Foo-Thin.ufo", "features.fea"), []byte(fea), 0o644))
	}
	return dir
}

func writeConfig(t *testing.T, dir, name, body string) *Config {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	return cfg
}

func chain(t *testing.T, r *recipe.Recipe, target string) []string {
	t.Helper()
	tg, ok := r.Lookup(target)
	require.True(t, ok, "missing target %s", target)
	var out []string
	for _, s := range tg.Steps {
		if s.Kind == recipe.StepSource {
			out = append(out, "source:"+s.Source)
			continue
		}
		out = append(out, s.Operation)
	}
	return out
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := writeProject(t, false)
	cfg := writeConfig(t, dir, "config.yaml", "sources:\n  - Foo.designspace\noutputDir: out\n")

	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, []string{"Foo.designspace"}, cfg.Sources)
	assert.Equal(t, "out/variable", cfg.VFDir)
	assert.Equal(t, "out/ttf", cfg.TTDir)
	assert.Equal(t, "out/otf", cfg.OTDir)
	assert.Equal(t, "out/webfonts", cfg.WoffDir)
	assert.True(t, cfg.BuildVariable)
	assert.True(t, cfg.CleanUp)
	assert.True(t, cfg.Webfonts())
	assert.Equal(t, "WARN", cfg.LogLevel)
}

func TestLoadConfig_TOML(t *testing.T) {
	dir := writeProject(t, false)
	cfg := writeConfig(t, dir, "config.toml", `
sources = ["Foo.designspace"]
buildStatic = false
recipeProvider = "noto"

[[includeSubsets]]
from = "Noto Sans Symbols"
ranges = [{start = 0x2190, end = 0x21FF}]
`)

	assert.Equal(t, "noto", cfg.RecipeProvider)
	assert.False(t, cfg.BuildStatic)
	assert.False(t, cfg.Webfonts(), "webfonts follow buildStatic when unset")
	require.Len(t, cfg.IncludeSubsets, 1)
	assert.Equal(t, "Noto Sans Symbols", cfg.IncludeSubsets[0]["from"])
}

func TestLoadConfig_IgnoredKeys(t *testing.T) {
	dir := writeProject(t, false)
	cfg := writeConfig(t, dir, "config.yaml", `
sources: [Foo.designspace]
axisOrder: [wght]
googleFonts: true
`)
	assert.Contains(t, cfg.Ignored, "axisOrder")
}

func TestParseConfig_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"unknown key", "c.yaml", "sources: [a.designspace]\nbuildVarable: true\n", "buildVarable"},
		{"wrong type", "c.yaml", "sources: [a.designspace]\nbuildTTF: \"yes\"\n", "buildTTF"},
		{"bad log level", "c.yaml", "sources: [a.designspace]\nlogLevel: LOUD\n", "logLevel"},
		{"toml wrong type", "c.toml", "sources = \"a.designspace\"\n", "sources"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(tt.file, []byte(tt.body))
			require.Error(t, err)
			var schemaErrs SchemaErrors
			require.ErrorAs(t, err, &schemaErrs)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseConfig_YAMLPosition(t *testing.T) {
	_, err := ParseConfig("config.yaml", []byte("sources: [a.designspace]\ncleanUp: 3\n"))
	var schemaErrs SchemaErrors
	require.ErrorAs(t, err, &schemaErrs)
	require.NotEmpty(t, schemaErrs)
	pos := schemaErrs[0].Pos
	require.True(t, pos.IsValid())
	assert.Equal(t, 2, pos.Line())
	assert.Contains(t, err.Error(), "config.yaml:2:")
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig("config.json", []byte("{}"))
	assert.ErrorContains(t, err, "unsupported config format")

	_, err = ParseConfig("config.yaml", []byte("familyName: Foo\n"))
	assert.ErrorContains(t, err, "no sources and no recipe")
}

func TestLoadSource_Designspace(t *testing.T) {
	dir := writeProject(t, true)
	src, err := LoadSource(dir, "Foo.designspace")
	require.NoError(t, err)

	assert.Equal(t, "Foo", src.FamilyName)
	assert.Equal(t, []string{"wght"}, src.AxisTags())
	assert.Equal(t, []string{"Foo-Thin.ufo", "Foo-Black.ufo"}, src.Masters)
	assert.True(t, src.Variable())
	assert.True(t, src.SmallCaps)
	require.Len(t, src.Instances, 2)
	assert.Equal(t, Instance{
		Name: "Foo Regular", Filename: "instances/Foo-Regular.ufo", FamilyName: "Foo", StyleName: "Regular",
	}, src.Instances[0])
	assert.Equal(t, "Foo Bold", src.Instances[1].Name)
	assert.Equal(t, "Foo-Bold.ufo", src.Instances[1].Filename)
}

func TestLoadSource_UFO(t *testing.T) {
	dir := writeProject(t, false)
	src, err := LoadSource(dir, "Foo-Thin.ufo")
	require.NoError(t, err)

	assert.True(t, src.IsUFO())
	assert.False(t, src.Variable())
	assert.False(t, src.SmallCaps)
	assert.Equal(t, "Foo", src.FamilyName)
	assert.Equal(t, []Instance{{Filename: "Foo-Thin.ufo"}}, src.Instances)
}

func TestLoadSource_Rejects(t *testing.T) {
	dir := writeProject(t, false)
	_, err := LoadSource(dir, "Foo.glyphs")
	assert.ErrorContains(t, err, "converted to a designspace")

	_, err = LoadSource(dir, "Foo.otf")
	assert.ErrorContains(t, err, "unknown source type")

	_, err = LoadSource(dir, "Missing.designspace")
	assert.Error(t, err)
}

func TestGoogleFonts_Targets(t *testing.T) {
	dir := writeProject(t, false)
	cfg := writeConfig(t, dir, "config.yaml", "sources: [Foo.designspace]\nbuildOTF: false\n")

	r, err := Generate(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"../fonts/ttf/Foo-Bold.ttf",
		"../fonts/ttf/Foo-Regular.ttf",
		"../fonts/variable/Foo[wght].ttf",
		"../fonts/webfonts/Foo-Bold.woff2",
		"../fonts/webfonts/Foo-Regular.woff2",
		"../fonts/webfonts/Foo[wght].woff2",
	}, r.Paths())

	assert.Equal(t, []string{"source:Foo.designspace", "buildVariable", "fix", "buildStat"},
		chain(t, r, "../fonts/variable/Foo[wght].ttf"))
	assert.Equal(t, []string{"source:Foo.designspace", "buildVariable", "fix", "compress"},
		chain(t, r, "../fonts/webfonts/Foo[wght].woff2"))
	assert.Equal(t, []string{"source:Foo.designspace", "instantiateUfo", "buildTTF", "autohint", "fix"},
		chain(t, r, "../fonts/ttf/Foo-Regular.ttf"))

	vf, _ := r.Lookup("../fonts/variable/Foo[wght].ttf")
	assert.Equal(t, "--filter ... --filter FlattenComponentsFilter --filter DecomposeTransformedComponentsFilter",
		ir.Text(vf.Steps[1].Args["args"]))
	assert.Equal(t, recipe.StepPostprocess, vf.Steps[3].Kind)
	assert.Empty(t, vf.Steps[3].Needs, "a single variable needs nothing")

	st, _ := r.Lookup("../fonts/ttf/Foo-Regular.ttf")
	assert.Equal(t, "Foo Regular", ir.Text(st.Steps[1].Args["instance_name"]))
	assert.Equal(t, "--fail-ok", ir.Text(st.Steps[3].Args["args"]))
}

func TestGoogleFonts_FontmakeAndFixArgs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlattenComponents = false
	cfg.LogLevel = "INFO"
	cfg.RemoveOutlineOverlaps = false
	cfg.CheckCompatibility = false
	cfg.ExtraVariableFontmakeArgs = "--no-production-names"
	cfg.ExtraStaticFontmakeArgs = "--static-only"

	assert.Equal(t,
		"--filter ... --filter DecomposeTransformedComponentsFilter --verbose INFO --keep-overlaps --no-check-compatibility --no-production-names",
		fontmakeArgs(cfg, true))
	assert.Equal(t,
		"--filter ... --filter DecomposeTransformedComponentsFilter --verbose INFO --keep-overlaps --static-only",
		fontmakeArgs(cfg, false))

	assert.Equal(t, "", fixArgs(cfg))
	cfg.IncludeSourceFixes = true
	cfg.FvarInstanceAxisDflts = "wdth=100"
	assert.Equal(t, "--include-source-fixes --fvar-instance-axis-dflts 'wdth=100'", fixArgs(cfg))
}

func TestGoogleFonts_SmallCapsAndStat(t *testing.T) {
	dir := writeProject(t, true)
	cfg := writeConfig(t, dir, "config.yaml", "sources: [Foo.designspace]\nbuildStatic: false\n")

	r, err := Generate(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"../fonts/variable/Foo[wght].ttf",
		"../fonts/variable/FooSC[wght].ttf",
	}, r.Paths(), "webfonts follow buildStatic")

	sc, _ := r.Lookup("../fonts/variable/FooSC[wght].ttf")
	require.Len(t, sc.Steps, 5)
	assert.Equal(t, "../fonts/variable/Foo[wght].ttf", sc.Steps[0].Source)
	assert.Equal(t, "'smcp -> ccmp'", ir.Text(sc.Steps[1].Args["args"]))
	assert.Equal(t, "Foo SC", ir.Text(sc.Steps[2].Args["name"]))

	stat := sc.Steps[4]
	assert.Equal(t, recipe.StepPostprocess, stat.Kind)
	assert.Equal(t, "buildStat", stat.Operation)
	assert.Equal(t, []string{"../fonts/variable/Foo[wght].ttf"}, stat.Needs)
}

func TestGoogleFonts_StaticFilenameSuffix(t *testing.T) {
	g := &googleFonts{cfg: DefaultConfig()}
	g.cfg.expandDirs()

	got, err := g.staticFilename(Instance{Filename: "instances/Foo Sans-Bold Italic.ufo"}, "SC", "otf")
	require.NoError(t, err)
	assert.Equal(t, "../fonts/otf/Foo SansSC-Bold Italic.otf", got)

	_, err = g.staticFilename(Instance{Filename: "Foo.ufo"}, "SC", "ttf")
	assert.Error(t, err)

	src := &Source{Path: "src/Foo-Italic.designspace", Axes: []Axis{{Tag: "wght"}, {Tag: "ital"}}}
	assert.Equal(t, "../fonts/webfonts/FooSC-Italic[ital,wght].woff2", g.vfFilename(src, "SC", "woff2"))
}

func TestNoto_Targets(t *testing.T) {
	dir := writeProject(t, false)
	cfg := writeConfig(t, dir, "config.yaml", `
sources: [Foo.designspace]
recipeProvider: noto
includeSubsets:
  - from: Noto Sans Symbols
`)
	r, err := Generate(cfg)
	require.NoError(t, err)

	paths := r.Paths()
	for _, want := range []string{
		"fonts/Foo/unhinted/variable/Foo[wght].ttf",
		"fonts/Foo/unhinted/slim-variable-ttf/Foo[wght].ttf",
		"fonts/Foo/full/variable/Foo[wght].ttf",
		"fonts/Foo/full/slim-variable-ttf/Foo[wght].ttf",
		"fonts/Foo/unhinted/ttf/Foo-Regular.ttf",
		"fonts/Foo/unhinted/otf/Foo-Regular.otf",
		"fonts/Foo/hinted/ttf/Foo-Bold.ttf",
		"fonts/Foo/full/otf/Foo-Bold.otf",
	} {
		assert.Contains(t, paths, want)
	}
	assert.NotContains(t, paths, "fonts/Foo/hinted/otf/Foo-Bold.otf")

	assert.Equal(t, []string{"source:Foo.designspace", "buildVariable", "fix", "subspace", "hbsubset"},
		chain(t, r, "fonts/Foo/unhinted/slim-variable-ttf/Foo[wght].ttf"))
	assert.Equal(t, []string{"source:Foo.designspace", "addSubset", "instantiateUfo", "buildTTF", "autohint", "fix"},
		chain(t, r, "fonts/Foo/full/ttf/Foo-Regular.ttf"))

	slim, _ := r.Lookup("fonts/Foo/unhinted/slim-variable-ttf/Foo[wght].ttf")
	assert.Equal(t, "wght=400:700", ir.Text(slim.Steps[3].Args["axes"]))
}

func TestGenerate_ExplicitRecipeOverrides(t *testing.T) {
	dir := writeProject(t, false)
	cfg := writeConfig(t, dir, "config.yaml", `
sources: [Foo.designspace]
buildStatic: false
recipe:
  ../fonts/variable/Foo[wght].ttf:
    - source: Foo.designspace
    - operation: buildVariable
  extra.ttf:
    - source: other.ttf
    - operation: fix
`)
	r, err := Generate(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"../fonts/variable/Foo[wght].ttf", "extra.ttf"}, r.Paths())
	assert.Equal(t, []string{"source:Foo.designspace", "buildVariable"},
		chain(t, r, "../fonts/variable/Foo[wght].ttf"))
}

func TestGenerate_RecipeOnly(t *testing.T) {
	cfg, err := ParseConfig("config.yaml", []byte(`
recipe:
  out.ttf:
    - source: in.ttf
    - operation: fix
`))
	require.NoError(t, err)

	r, err := Generate(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"out.ttf"}, r.Paths())
}

func TestGenerate_UnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = []string{"Foo.designspace"}
	cfg.RecipeProvider = "nope"

	_, err := Generate(cfg)
	var upe *UnknownProviderError
	require.ErrorAs(t, err, &upe)
	assert.Contains(t, err.Error(), "googlefonts, noto")
}

// Generated recipes must compile against the standard operations.
func TestGenerate_Compiles(t *testing.T) {
	for _, provider := range Names() {
		t.Run(provider, func(t *testing.T) {
			dir := writeProject(t, true)
			cfg := writeConfig(t, dir, "config.yaml", `
sources: [Foo.designspace]
recipeProvider: `+provider+`
autohintOTF: true
glyphData: [GlyphData.xml]
includeSubsets:
  - from: Noto Sans Symbols
`)
			r, err := Generate(cfg)
			require.NoError(t, err)

			g, err := compiler.Build(r, ops.Default(nil), compiler.NewSession(dir))
			require.NoError(t, err)
			assert.NotZero(t, g.Len())
		})
	}
}
