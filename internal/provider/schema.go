package provider

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/BurntSushi/toml"
)

//go:embed schema.cue
var schemaSource string

// SchemaError is a configuration value the schema rejects.
type SchemaError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Path != "" {
		fmt.Fprintf(&b, "%s: ", e.Path)
	}
	b.WriteString(e.Message)
	return b.String()
}

// SchemaErrors holds every violation found in one file.
type SchemaErrors []*SchemaError

func (errs SchemaErrors) Error() string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return fmt.Sprintf("%d schema errors:\n  %s", len(errs), strings.Join(lines, "\n  "))
}

func validateSchema(name string, f format, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	var v cue.Value
	switch f {
	case formatYAML:
		file, err := cueyaml.Extract(name, data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		v = ctx.BuildFile(file)
	case formatTOML:
		var raw map[string]any
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		v = ctx.Encode(raw)
	}
	if err := v.Err(); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return convertSchemaErrors(name, err)
	}
	return nil
}

// convertSchemaErrors keeps positions that point into the configuration
// file rather than the schema.
func convertSchemaErrors(name string, err error) SchemaErrors {
	var out SchemaErrors
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		se := &SchemaError{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		}
		for _, pos := range cueerrors.Positions(e) {
			if pos.Filename() == name {
				se.Pos = pos
				break
			}
		}
		out = append(out, se)
	}
	return out
}
