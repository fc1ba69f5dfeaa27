package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/ops"
	"github.com/roach88/fontrecipe/internal/report"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	As      string // "text" | "dot"; --format json overrides
	Targets []string
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph <config>",
		Short: "Print the compiled build graph",
		Long: `Compile the project and print its build graph without running it.

Text output lists one operation per line in creation order. DOT output can
be rendered with Graphviz; dashed edges are needs, dotted edges order a
reader before an in-place rewrite of its input.

Example:
  fontrecipe graph config.yaml --as dot | dot -Tsvg > graph.svg
  fontrecipe graph config.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "text", "graph rendering (text|dot)")
	cmd.Flags().StringArrayVarP(&opts.Targets, "target", "t", nil, "show only this target and what it needs (repeatable)")

	return cmd
}

func runGraph(opts *GraphOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if opts.As != "text" && opts.As != "dot" {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --as %q: must be text or dot", opts.As))
	}

	p, err := loadProject(path)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	g, err := p.compile(ops.Default(nil), compiler.NewSession(p.Dir), opts.Targets)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	switch {
	case formatter.JSON():
		return formatter.Success(report.Export(g))
	case opts.As == "dot":
		return report.WriteDOT(formatter.Writer, g)
	default:
		return report.WriteText(formatter.Writer, g)
	}
}
