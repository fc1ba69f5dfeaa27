package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/engine"
	"github.com/roach88/fontrecipe/internal/ops"
	"github.com/roach88/fontrecipe/internal/provider"
	"github.com/roach88/fontrecipe/internal/recipe"
)

// Error codes, shared by every command.
const (
	ErrCodeGeneric   = "E001" // Generic/unknown error
	ErrCodeNotFound  = "E002" // Path not found
	ErrCodeConfig    = "E003" // Configuration rejected by the schema or decoder
	ErrCodeRecipe    = "E004" // Malformed recipe
	ErrCodeGraph     = "E005" // Structural graph error (cycle, unknown need, bad arguments)
	ErrCodeProvider  = "E006" // Unknown recipe provider or unreadable source
	ErrCodeStore     = "E007" // History database error
	ErrCodeBuild     = "E101" // One or more operations failed
	ErrCodeCancelled = "E102" // Build interrupted
	ErrCodeScenario  = "E201" // Scenario failed
)

// errorCode classifies err by the first typed error it wraps.
func errorCode(err error) string {
	var (
		notFound    *notFoundError
		schemaErrs  provider.SchemaErrors
		configErrs  recipe.ConfigErrors
		configErr   *recipe.ConfigError
		cycle       *compiler.CycleError
		unsatisfied *compiler.DependencyUnsatisfiedError
		unknownOp   *ops.UnknownOperationError
		argErr      *ops.ArgumentError
		unknownProv *provider.UnknownProviderError
		buildErr    *engine.BuildError
	)
	switch {
	case errors.As(err, &notFound):
		return ErrCodeNotFound
	case errors.As(err, &schemaErrs):
		return ErrCodeConfig
	case errors.As(err, &configErrs), errors.As(err, &configErr):
		return ErrCodeRecipe
	case errors.As(err, &cycle), errors.As(err, &unsatisfied),
		errors.As(err, &unknownOp), errors.As(err, &argErr):
		return ErrCodeGraph
	case errors.As(err, &unknownProv):
		return ErrCodeProvider
	case errors.As(err, &buildErr):
		return ErrCodeBuild
	default:
		return ErrCodeGeneric
	}
}

// errorDetails returns the structured problems behind err, if any.
func errorDetails(err error) any {
	var configErrs recipe.ConfigErrors
	if errors.As(err, &configErrs) {
		return []*recipe.ConfigError(configErrs)
	}
	var schemaErrs provider.SchemaErrors
	if errors.As(err, &schemaErrs) {
		details := make([]string, len(schemaErrs))
		for i, e := range schemaErrs {
			details[i] = e.Error()
		}
		return details
	}
	return nil
}

type notFoundError struct {
	Path string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// project is a loaded configuration: either a builder configuration with
// sources, or a bare recipe file.
type project struct {
	Path   string
	Dir    string
	Config *provider.Config
	Recipe *recipe.Recipe
}

// loadProject reads path. YAML files whose top level has a sources or recipe
// key, and every TOML file, are builder configurations; other YAML files
// are recipes mapping targets to steps.
func loadProject(path string) (*project, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &notFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	p := &project{Path: path, Dir: filepath.Dir(path)}

	if isConfig(path, data) {
		cfg, err := provider.ParseConfig(path, data)
		if err != nil {
			return nil, err
		}
		cfg.Dir = p.Dir
		r, err := provider.Generate(cfg)
		if err != nil {
			return nil, err
		}
		p.Config, p.Recipe = cfg, r
		return p, nil
	}

	r, err := recipe.Parse(data)
	if err != nil {
		return nil, err
	}
	p.Recipe = r
	return p, nil
}

func isConfig(path string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return true
	case ".yaml", ".yml":
	default:
		return false
	}
	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return false
	}
	_, sources := top["sources"]
	_, rec := top["recipe"]
	return sources || rec
}

// compile builds the graph of the project, restricted to targets when any
// are given.
func (p *project) compile(reg *ops.Registry, sess *compiler.Session, targets []string) (*compiler.Graph, error) {
	g, err := compiler.Build(p.Recipe, reg, sess)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return g, nil
	}
	return g.Select(targets...)
}

// cleanUp is the configured temp cleanup default.
func (p *project) cleanUp() bool {
	return p.Config == nil || p.Config.CleanUp
}
