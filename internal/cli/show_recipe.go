package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/ops"
	"github.com/roach88/fontrecipe/internal/recipe"
	"github.com/roach88/fontrecipe/internal/report"
)

// ShowRecipeOptions holds flags for the show-recipe command.
type ShowRecipeOptions struct {
	*RootOptions
	Generated bool
	Targets   []string
}

// NewShowRecipeCommand creates the show-recipe command.
func NewShowRecipeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowRecipeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show-recipe <config>",
		Short: "Print the recipe a project builds",
		Long: `Print the project's recipe as YAML.

By default the recipe is rebuilt from the compiled graph: shared steps are
merged and temporary file names are resolved, so the output is exactly what
build would run. With --generated the recipe is printed as the provider
wrote it, before compilation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowRecipe(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Generated, "generated", false, "print the recipe before compilation")
	cmd.Flags().StringArrayVarP(&opts.Targets, "target", "t", nil, "show only this target and what it needs (repeatable)")

	return cmd
}

func runShowRecipe(opts *ShowRecipeOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	p, err := loadProject(path)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	r := p.Recipe
	if !opts.Generated {
		g, err := p.compile(ops.Default(nil), compiler.NewSession(p.Dir), opts.Targets)
		if err != nil {
			return formatter.Fail(ExitFailure, err)
		}
		r = report.DumpRecipe(g)
	}

	if formatter.JSON() {
		data, err := r.Canonical()
		if err != nil {
			return formatter.Fail(ExitFailure, err)
		}
		return formatter.Success(json.RawMessage(data))
	}

	data, err := recipe.Dump(r)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	_, err = formatter.Writer.Write(data)
	return err
}
