package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/fontrecipe/internal/recipe"
)

// Provider writes a recipe for a configuration and its loaded sources.
type Provider func(cfg *Config, sources []*Source) (*recipe.Recipe, error)

// DefaultProvider is used when the configuration names none.
const DefaultProvider = "googlefonts"

var providers = map[string]Provider{
	"googlefonts": GoogleFonts,
	"noto":        Noto,
}

// UnknownProviderError reports a recipeProvider with no registration.
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown recipe provider %q (known: %s)", e.Name, strings.Join(Names(), ", "))
}

// Lookup returns the provider registered under name.
func Lookup(name string) (Provider, bool) {
	p, ok := providers[name]
	return p, ok
}

// Names returns the registered provider names sorted.
func Names() []string {
	names := make([]string, 0, len(providers))
	for n := range providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Generate produces the recipe for cfg. A configuration with an explicit
// recipe and no sources or provider uses that recipe as is. Otherwise the
// provider's recipe is generated and explicit targets override it.
func Generate(cfg *Config) (*recipe.Recipe, error) {
	var explicit *recipe.Recipe
	if len(cfg.Recipe) > 0 {
		r, err := recipe.FromMap(cfg.Recipe)
		if err != nil {
			return nil, err
		}
		explicit = r
		if cfg.RecipeProvider == "" && len(cfg.Sources) == 0 {
			return explicit, nil
		}
	}

	name := cfg.RecipeProvider
	if name == "" {
		name = DefaultProvider
	}
	p, ok := Lookup(name)
	if !ok {
		return nil, &UnknownProviderError{Name: name}
	}

	sources := make([]*Source, 0, len(cfg.Sources))
	for _, path := range cfg.Sources {
		src, err := LoadSource(cfg.Dir, path)
		if err != nil {
			return nil, err
		}
		if cfg.FamilyName != "" {
			src.FamilyName = cfg.FamilyName
		}
		sources = append(sources, src)
	}

	r, err := p(cfg, sources)
	if err != nil {
		return nil, fmt.Errorf("%s provider: %w", name, err)
	}
	if explicit != nil {
		r = r.Override(explicit)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

type step = map[string]any

// draft accumulates targets in the order a provider writes them.
type draft struct {
	order []string
	steps map[string][]step
}

func newDraft() *draft {
	return &draft{steps: make(map[string][]step)}
}

func (d *draft) set(target string, steps []step) {
	if _, ok := d.steps[target]; !ok {
		d.order = append(d.order, target)
	}
	d.steps[target] = steps
}

// get returns a copy of the target's steps.
func (d *draft) get(target string) []step {
	src := d.steps[target]
	out := make([]step, len(src))
	for i, s := range src {
		c := make(step, len(s))
		for k, v := range s {
			c[k] = v
		}
		out[i] = c
	}
	return out
}

func (d *draft) recipe() (*recipe.Recipe, error) {
	m := make(map[string]any, len(d.steps))
	for t, steps := range d.steps {
		m[t] = steps
	}
	return recipe.FromMap(m)
}

// op builds an operation step. Empty string arguments are left out.
func op(name string, kv ...string) step {
	s := step{"operation": name}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			s[kv[i]] = kv[i+1]
		}
	}
	return s
}

// joinArgs joins non-empty argument fragments with single spaces.
func joinArgs(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
