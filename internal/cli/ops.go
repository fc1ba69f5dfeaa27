package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/fontrecipe/internal/ops"
)

// OperationInfo describes one registered operation.
type OperationInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Arity       string    `json:"arity"`
	InPlace     bool      `json:"in_place"`
	Ext         string    `json:"ext,omitempty"`
	Args        []ArgInfo `json:"args,omitempty"`
}

// ArgInfo describes one operation argument.
type ArgInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Required bool   `json:"required,omitempty"`
}

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ops",
		Short:         "List the operations a recipe can use",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(rootOpts, ops.Default(nil), cmd)
		},
	}
	return cmd
}

func describeOps(reg *ops.Registry) []OperationInfo {
	var out []OperationInfo
	for _, name := range reg.Names() {
		def, _ := reg.Lookup(name)
		info := OperationInfo{
			Name:        def.Name,
			Description: def.Description,
			Arity:       def.Arity.String(),
			InPlace:     def.InPlace,
			Ext:         def.Ext,
		}
		for _, a := range def.Args {
			info.Args = append(info.Args, ArgInfo{Name: a.Name, Kind: a.Kind.String(), Required: a.Required})
		}
		out = append(out, info)
	}
	return out
}

func runOps(opts *RootOptions, reg *ops.Registry, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	infos := describeOps(reg)
	if formatter.JSON() {
		return formatter.Success(infos)
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tINPUTS\tARGS\tDESCRIPTION")
	for _, info := range infos {
		inputs := info.Arity
		if info.InPlace {
			inputs += " (in place)"
		}
		args := make([]string, len(info.Args))
		for i, a := range info.Args {
			args[i] = a.Name + ":" + a.Kind
			if a.Required {
				args[i] += "!"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, inputs, strings.Join(args, " "), info.Description)
	}
	return tw.Flush()
}
