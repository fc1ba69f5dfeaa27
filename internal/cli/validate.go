package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/ops"
	"github.com/roach88/fontrecipe/internal/provider"
	"github.com/roach88/fontrecipe/internal/recipe"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Targets int               `json:"targets,omitempty"`
	Nodes   int               `json:"nodes,omitempty"`
	Errors  []ValidationIssue `json:"errors,omitempty"`
}

// ValidationIssue is one problem found in a project.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
	Step    int    `json:"step,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Check a project without building it",
		Long: `Load the project, validate its configuration and recipe, and compile
the build graph. Reports every recipe problem found in one pass; nothing is
executed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	p, err := loadProject(path)
	if err != nil {
		var nf *notFoundError
		if errors.As(err, &nf) {
			return formatter.Fail(ExitCommandError, err)
		}
		return outputValidationErrors(formatter, issuesOf(err))
	}
	formatter.VerboseLog("Loaded %d target(s) from %s", len(p.Recipe.Targets), path)

	g, err := p.compile(ops.Default(nil), compiler.NewSession(p.Dir), nil)
	if err != nil {
		return outputValidationErrors(formatter, issuesOf(err))
	}
	formatter.VerboseLog("Compiled %d operation(s)", g.Len())

	res := ValidationResult{Valid: true, Targets: len(g.Targets), Nodes: g.Len()}
	if formatter.JSON() {
		return formatter.Success(res)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s valid: %d target(s), %d operation(s)\n", path, res.Targets, res.Nodes)
	return nil
}

// issuesOf flattens err into one issue per problem.
func issuesOf(err error) []ValidationIssue {
	var configErrs recipe.ConfigErrors
	if errors.As(err, &configErrs) {
		issues := make([]ValidationIssue, len(configErrs))
		for i, e := range configErrs {
			issues[i] = ValidationIssue{
				Code:    ErrCodeRecipe,
				Message: e.Field + ": " + e.Message,
				Target:  e.Target,
				Step:    e.Step,
				Line:    e.Line,
			}
		}
		return issues
	}
	var schemaErrs provider.SchemaErrors
	if errors.As(err, &schemaErrs) {
		issues := make([]ValidationIssue, len(schemaErrs))
		for i, e := range schemaErrs {
			issues[i] = ValidationIssue{Code: ErrCodeConfig, Message: e.Error()}
			if e.Pos.IsValid() {
				issues[i].Line = e.Pos.Line()
			}
		}
		return issues
	}
	return []ValidationIssue{{Code: errorCode(err), Message: err.Error()}}
}

func outputValidationErrors(formatter *OutputFormatter, issues []ValidationIssue) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))

	if formatter.JSON() {
		err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: issues},
			Error:  &CLIError{Code: issues[0].Code, Message: issues[0].Message},
		})
		if err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		switch {
		case issue.Target != "" && issue.Step > 0:
			fmt.Fprintf(formatter.Writer, "%s step %d\n", issue.Target, issue.Step)
		case issue.Target != "":
			fmt.Fprintln(formatter.Writer, issue.Target)
		}
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}
	return exitErr
}
