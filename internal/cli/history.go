package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fontrecipe/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// RunInfo is one run in history output.
type RunInfo struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Nodes      int        `json:"nodes"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	Cached     int        `json:"cached"`
	RecipeHash string     `json:"recipe_hash"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NodeInfo is one node outcome of a run.
type NodeInfo struct {
	Seq      int    `json:"seq"`
	Node     string `json:"node"`
	Op       string `json:"op"`
	Kind     string `json:"kind"`
	Output   string `json:"output"`
	Status   string `json:"status"`
	Cached   bool   `json:"cached,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration int64  `json:"duration_ms"`
}

// RunDetail is a run with its node outcomes.
type RunDetail struct {
	RunInfo
	Nodes []NodeInfo `json:"node_runs"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past builds",
		Long: `List recent builds recorded in the history database, newest first.
With a run ID, show every operation of that run in the order it finished.

Example:
  fontrecipe history --db sources/.fontrecipe/history.db
  fontrecipe history 0190c4f2-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runHistory(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", DefaultDatabase, "path to the history database")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to list (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.Fail(ExitCommandError, &notFoundError{Path: opts.Database})
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, fmt.Errorf("open %s: %w", filepath.Clean(opts.Database), err))
	}
	defer st.Close()

	ctx := cmd.Context()
	if runID == "" {
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
		infos := make([]RunInfo, len(runs))
		for i, r := range runs {
			infos[i] = runInfo(r)
		}
		if formatter.JSON() {
			return formatter.Success(infos)
		}
		writeRuns(formatter, infos)
		return nil
	}

	run, err := st.GetRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.Fail(ExitFailure, err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	nodes, err := st.RunNodes(ctx, runID)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	detail := RunDetail{RunInfo: runInfo(run)}
	for _, n := range nodes {
		detail.Nodes = append(detail.Nodes, NodeInfo{
			Seq:      n.Seq,
			Node:     n.NodeKey,
			Op:       n.Op.String(),
			Kind:     n.Kind,
			Output:   n.Output,
			Status:   n.Status,
			Cached:   n.Cached,
			Error:    n.Error,
			Duration: n.Duration.Milliseconds(),
		})
	}
	if formatter.JSON() {
		return formatter.Success(detail)
	}
	writeRunDetail(formatter, detail)
	return nil
}

func runInfo(r store.Run) RunInfo {
	info := RunInfo{
		ID:         r.ID,
		Status:     r.Status,
		Nodes:      r.Nodes,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		Cached:     r.Cached,
		RecipeHash: r.RecipeHash,
		StartedAt:  r.StartedAt,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		info.FinishedAt = &finished
	}
	return info
}

func writeRuns(f *OutputFormatter, runs []RunInfo) {
	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(f.Writer, "%s  %-9s  %s  %d nodes, %d failed, %d skipped, %d cached\n",
			r.ID, r.Status, r.StartedAt.Format(time.RFC3339), r.Nodes, r.Failed, r.Skipped, r.Cached)
	}
}

func writeRunDetail(f *OutputFormatter, d RunDetail) {
	fmt.Fprintf(f.Writer, "run %s: %s\n", d.ID, d.Status)
	fmt.Fprintf(f.Writer, "started %s", d.StartedAt.Format(time.RFC3339))
	if d.FinishedAt != nil {
		fmt.Fprintf(f.Writer, ", took %s", d.FinishedAt.Sub(d.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintln(f.Writer)
	for _, n := range d.Nodes {
		line := fmt.Sprintf("  %3d %-9s %s -> %s", n.Seq, n.Status, n.Op, n.Output)
		if n.Cached {
			line += " (cached)"
		}
		fmt.Fprintln(f.Writer, line)
		if n.Error != "" {
			fmt.Fprintf(f.Writer, "      %s\n", n.Error)
		}
	}
}
