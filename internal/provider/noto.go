package provider

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/fontrecipe/internal/recipe"
)

const notoHintArgs = "--fail-ok --auto-script --discount-latin"

// Noto writes the Noto project layout under fonts/<Family>/: unhinted,
// hinted and slim variable builds, plus full builds with extra subsets
// merged in when includeSubsets is set.
func Noto(cfg *Config, sources []*Source) (*recipe.Recipe, error) {
	n := &noto{googleFonts{cfg: cfg, d: newDraft()}}
	if cfg.BuildVariable {
		for _, src := range sources {
			if src.Variable() {
				n.variable(src)
			}
		}
		n.stat()
	}
	if cfg.BuildStatic {
		for _, src := range sources {
			for _, inst := range src.Instances {
				n.static(src, inst, "ttf")
				n.static(src, inst, "otf")
			}
		}
	}
	return n.d.recipe()
}

type noto struct {
	googleFonts
}

func familyDir(src *Source) string {
	return filepath.Join("fonts", strings.ReplaceAll(src.FamilyName, " ", ""))
}

func (n *noto) subsets() step {
	s := op("addSubset")
	list := make([]any, len(n.cfg.IncludeSubsets))
	for i, m := range n.cfg.IncludeSubsets {
		list[i] = m
	}
	s["subsets"] = list
	return s
}

func (n *noto) variable(src *Source) {
	base := strings.TrimSuffix(src.Basename(), filepath.Ext(src.Path))
	tags := src.AxisTags()
	name := fmt.Sprintf("%s[%s].ttf", base, strings.Join(tags, ","))

	target := filepath.Join(familyDir(src), "unhinted", "variable", name)
	n.d.set(target, []step{
		{"source": src.Path},
		op("buildVariable"),
		op("fix"),
	})
	n.slim(target, tags)

	if len(n.cfg.IncludeSubsets) > 0 {
		target = filepath.Join(familyDir(src), "full", "variable", name)
		n.d.set(target, []step{
			{"source": src.Path},
			n.subsets(),
			op("buildVariable"),
			op("fix"),
		})
		n.slim(target, tags)
	}
}

// slim subspaces a variable target down to a wght 400-700 range.
func (n *noto) slim(target string, tags []string) {
	axes := "wght=400:700"
	for _, t := range tags {
		if t == "wdth" {
			axes += " wdth=drop"
		}
	}
	slim := strings.ReplaceAll(target, "variable", "slim-variable-ttf")
	slim = strings.ReplaceAll(slim, strings.Join(tags, ","), "wght")
	n.d.set(slim, append(n.d.get(target),
		op("subspace", "axes", axes),
		op("hbsubset"),
	))
}

func (n *noto) static(src *Source, inst Instance, ext string) {
	base := filepath.Base(inst.Filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := base + "." + ext
	build := "buildTTF"
	if ext == "otf" {
		build = "buildOTF"
	}
	instantiate := func() []step {
		if src.IsUFO() {
			return nil
		}
		return []step{op("instantiateUfo", "instance_name", inst.Name)}
	}

	unhinted := filepath.Join(familyDir(src), "unhinted", ext, name)
	steps := append([]step{{"source": src.Path}}, instantiate()...)
	steps = append(steps, op(build))
	n.d.set(unhinted, steps)

	if ext == "ttf" {
		hinted := filepath.Join(familyDir(src), "hinted", ext, name)
		n.d.set(hinted, append(n.d.get(unhinted),
			op("autohint", "args", notoHintArgs),
			op("fix"),
		))
	}

	if len(n.cfg.IncludeSubsets) > 0 {
		full := filepath.Join(familyDir(src), "full", ext, name)
		steps := []step{{"source": src.Path}, n.subsets()}
		steps = append(steps, instantiate()...)
		steps = append(steps, op(build))
		if ext == "ttf" {
			steps = append(steps, op("autohint", "args", notoHintArgs), op("fix"))
		}
		n.d.set(full, steps)
	}
}
