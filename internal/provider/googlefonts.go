package provider

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/fontrecipe/internal/recipe"
)

// GoogleFonts writes the Google Fonts onboarding recipe: variable fonts with
// a shared STAT table, hinted static TTF and OTF instances, WOFF2 copies and
// small-cap families when the sources carry an smcp feature.
func GoogleFonts(cfg *Config, sources []*Source) (*recipe.Recipe, error) {
	g := &googleFonts{cfg: cfg, d: newDraft()}
	if cfg.BuildVariable {
		for _, src := range sources {
			if src.Variable() {
				g.variable(src)
			}
		}
		g.stat()
	}
	if cfg.BuildStatic {
		for _, src := range sources {
			for _, inst := range src.Instances {
				if cfg.BuildTTF {
					if err := g.static(src, inst, "ttf"); err != nil {
						return nil, err
					}
				}
				if cfg.BuildOTF {
					if err := g.static(src, inst, "otf"); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return g.d.recipe()
}

type googleFonts struct {
	cfg *Config
	d   *draft
}

func (g *googleFonts) vfFilename(src *Source, suffix, ext string) string {
	base := strings.TrimSuffix(src.Basename(), filepath.Ext(src.Path))
	if suffix != "" {
		if strings.Contains(base, "-Italic") {
			base = strings.ReplaceAll(base, "-Italic", suffix+"-Italic")
		} else {
			base += suffix
		}
	}
	dir := g.cfg.VFDir
	if ext == "woff2" {
		dir = g.cfg.WoffDir
	}
	return filepath.Join(dir, fmt.Sprintf("%s[%s].%s", base, strings.Join(src.AxisTags(), ","), ext))
}

func (g *googleFonts) staticFilename(inst Instance, suffix, ext string) (string, error) {
	var dir string
	switch ext {
	case "ttf":
		dir = g.cfg.TTDir
	case "otf":
		dir = g.cfg.OTDir
	case "woff2":
		dir = g.cfg.WoffDir
	}
	base := filepath.Base(inst.Filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if suffix != "" {
		i := strings.LastIndex(base, "-")
		if i < 0 {
			return "", fmt.Errorf("instance file %s has no style part", inst.Filename)
		}
		base = base[:i] + suffix + base[i:]
	}
	return filepath.Join(dir, base+"."+ext), nil
}

// fontmakeArgs returns the fontmake options shared by every build step.
func fontmakeArgs(cfg *Config, variable bool) string {
	parts := []string{"--filter ..."}
	if cfg.FlattenComponents {
		parts = append(parts, "--filter FlattenComponentsFilter")
	}
	if cfg.DecomposeTransformedComponents {
		parts = append(parts, "--filter DecomposeTransformedComponentsFilter")
	}
	if cfg.LogLevel != "WARN" {
		parts = append(parts, "--verbose "+cfg.LogLevel)
	}
	if !cfg.ReverseOutlineDirection {
		parts = append(parts, "--keep-direction")
	}
	if !cfg.RemoveOutlineOverlaps {
		parts = append(parts, "--keep-overlaps")
	}
	if cfg.ExpandFeaturesToInstances {
		parts = append(parts, "--expand-features-to-instances")
	}
	parts = append(parts, cfg.ExtraFontmakeArgs)
	if variable {
		if !cfg.CheckCompatibility {
			parts = append(parts, "--no-check-compatibility")
		}
		parts = append(parts, cfg.ExtraVariableFontmakeArgs)
	} else {
		parts = append(parts, cfg.ExtraStaticFontmakeArgs)
	}
	return joinArgs(parts...)
}

func fixArgs(cfg *Config) string {
	var parts []string
	if cfg.IncludeSourceFixes {
		parts = append(parts, "--include-source-fixes")
	}
	if cfg.FvarInstanceAxisDflts != "" {
		parts = append(parts, "--fvar-instance-axis-dflts '"+cfg.FvarInstanceAxisDflts+"'")
	}
	return joinArgs(parts...)
}

func (g *googleFonts) fix() step {
	return op("fix", "args", fixArgs(g.cfg))
}

func (g *googleFonts) variable(src *Source) {
	target := g.vfFilename(src, "", "ttf")
	g.d.set(target, []step{
		{"source": src.Path},
		op("buildVariable", "args", fontmakeArgs(g.cfg, true)),
		g.fix(),
	})
	g.webfont(target, g.vfFilename(src, "", "woff2"))
	if g.cfg.BuildSmallCap && src.SmallCaps {
		g.d.set(g.vfFilename(src, "SC", "ttf"), g.smallCap(src, target))
	}
}

// stat appends one buildStat postprocess to the last variable target. It
// needs every other variable so the table covers the whole family.
func (g *googleFonts) stat() {
	var variables []string
	for _, t := range g.d.order {
		if strings.HasSuffix(t, "ttf") {
			variables = append(variables, t)
		}
	}
	if len(variables) == 0 {
		return
	}
	last := variables[len(variables)-1]
	others := append([]string(nil), variables[:len(variables)-1]...)
	sort.Strings(others)

	s := step{"postprocess": "buildStat"}
	if len(others) > 0 {
		needs := make([]any, len(others))
		for i, o := range others {
			needs[i] = o
		}
		s["needs"] = needs
	}
	g.d.steps[last] = append(g.d.steps[last], s)
}

func (g *googleFonts) static(src *Source, inst Instance, ext string) error {
	target, err := g.staticFilename(inst, "", ext)
	if err != nil {
		return err
	}
	steps := []step{{"source": src.Path}}
	if !src.IsUFO() {
		s := op("instantiateUfo", "instance_name", inst.Name)
		if len(g.cfg.GlyphData) > 0 {
			s["glyphData"] = toAnyList(g.cfg.GlyphData)
		}
		steps = append(steps, s)
	}
	build := "buildTTF"
	if ext == "otf" {
		build = "buildOTF"
	}
	steps = append(steps, op(build, "args", fontmakeArgs(g.cfg, false)))
	steps = append(steps, g.autohint(target)...)
	steps = append(steps, g.fix())
	g.d.set(target, steps)

	woff, err := g.staticFilename(inst, "", "woff2")
	if err != nil {
		return err
	}
	g.webfont(target, woff)
	if g.cfg.BuildSmallCap && src.SmallCaps {
		sc, err := g.staticFilename(inst, "SC", ext)
		if err != nil {
			return err
		}
		g.d.set(sc, g.smallCap(src, target))
	}
	return nil
}

// webfont repeats the chain of a TTF target and compresses the result.
func (g *googleFonts) webfont(original, woff string) {
	if !g.cfg.Webfonts() || !strings.HasSuffix(original, ".ttf") {
		return
	}
	g.d.set(woff, append(g.d.get(original), op("compress")))
}

func (g *googleFonts) autohint(target string) []step {
	switch {
	case g.cfg.AutohintTTF && strings.HasSuffix(target, "ttf"):
		args := "--fail-ok"
		if g.cfg.TTFAUseScript {
			args += " --auto-script"
		}
		return []step{op("autohint", "args", args)}
	case g.cfg.AutohintOTF && strings.HasSuffix(target, "otf"):
		return []step{op("autohintOTF")}
	}
	return nil
}

func (g *googleFonts) smallCap(src *Source, original string) []step {
	return []step{
		{"source": original},
		op("remapLayout", "args", "'smcp -> ccmp'"),
		op("rename", "args", "--just-family", "name", src.FamilyName+" SC"),
		g.fix(),
	}
}

func toAnyList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
