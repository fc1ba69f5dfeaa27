package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/engine"
	"github.com/roach88/fontrecipe/internal/ops"
	"github.com/roach88/fontrecipe/internal/report"
	"github.com/roach88/fontrecipe/internal/store"
)

// DefaultDatabase is the history database path, relative to the project.
const DefaultDatabase = ".fontrecipe/history.db"

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Jobs      int
	FailFast  bool
	NoCleanup bool
	TempDir   string
	Database  string
	NoCache   bool
	Targets   []string

	// Registry overrides the standard operations (for testing).
	Registry *ops.Registry
	// RunIDs overrides the UUIDv7 run ID generator (for testing).
	RunIDs engine.RunIDGenerator
}

// BuildResult is the JSON payload of a build.
type BuildResult struct {
	RunID     string                         `json:"run_id"`
	Succeeded int                            `json:"succeeded"`
	Failed    int                            `json:"failed"`
	Skipped   int                            `json:"skipped"`
	Cached    int                            `json:"cached"`
	Targets   map[string]engine.TargetStatus `json:"targets"`
	Failures  []BuildFailure                 `json:"failures,omitempty"`
}

// BuildFailure is one failed node.
type BuildFailure struct {
	Node   string `json:"node"`
	Op     string `json:"op"`
	Output string `json:"output"`
	Error  string `json:"error"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	return newBuildCommand(&BuildOptions{RootOptions: rootOpts})
}

func newBuildCommand(opts *BuildOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <config>",
		Short: "Build every target of a project",
		Long: `Compile the project into a build graph and run it.

Independent operations run in parallel, up to --jobs at a time. A failed
operation skips only the operations that depend on it; everything else
still builds unless --fail-fast is set.

Example:
  fontrecipe build sources/config.yaml
  fontrecipe build sources/config.yaml --jobs 4 --target ../fonts/variable/Foo[wght].ttf`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "operations to run at once (default: number of CPUs)")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop starting operations after the first failure")
	cmd.Flags().BoolVar(&opts.NoCleanup, "no-cleanup", false, "keep temporary artifacts")
	cmd.Flags().StringVar(&opts.TempDir, "temp-dir", "", "directory for temporary artifacts (default: "+compiler.DefaultTempRoot+")")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the history database (default: "+DefaultDatabase+" next to the config)")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "run every operation even if its artifacts are unchanged")
	cmd.Flags().StringArrayVarP(&opts.Targets, "target", "t", nil, "build only this target and what it needs (repeatable)")

	return cmd
}

func runBuild(opts *BuildOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	p, err := loadProject(path)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	level := ""
	if p.Config != nil {
		level = p.Config.LogLevel
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose, level)

	sess := compiler.NewSession(p.Dir)
	sess.Cleanup = p.cleanUp() && !opts.NoCleanup
	if opts.TempDir != "" {
		sess.TempRoot = opts.TempDir
	}

	reg := opts.Registry
	if reg == nil {
		reg = ops.Default(ops.ExecRunner{})
	}
	g, err := p.compile(reg, sess, opts.Targets)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	logger.Debug("graph compiled", "targets", len(g.Targets), "nodes", g.Len())

	st, err := openStore(p, opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	engOpts := []engine.Option{
		engine.WithWorkers(opts.Jobs),
		engine.WithFailFast(opts.FailFast),
		engine.WithLogger(logger),
		engine.WithStore(st),
		engine.WithCache(!opts.NoCache),
	}
	if opts.RunIDs != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	eng := engine.New(reg, sess, engOpts...)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := eng.Run(ctx, g)

	if opts.Verbose {
		for _, n := range res.Sequence() {
			fmt.Fprintln(formatter.GetErrWriter(), report.NodeStatusLine(n))
		}
	}
	if err := writeBuildResult(formatter, res, runErr); err != nil {
		return err
	}

	var buildErr *engine.BuildError
	switch {
	case runErr == nil:
		return nil
	case errors.As(runErr, &buildErr):
		return WrapExitError(ExitFailure, ErrCodeBuild, runErr)
	default:
		logger.Warn("build interrupted", "error", runErr)
		return WrapExitError(ExitFailure, ErrCodeCancelled, runErr)
	}
}

func openStore(p *project, path string) (*store.Store, error) {
	if path == "" {
		path = filepath.Join(p.Dir, DefaultDatabase)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	return store.Open(path)
}

func writeBuildResult(f *OutputFormatter, res *engine.Result, runErr error) error {
	if !f.JSON() {
		w := f.Writer
		return report.WriteSummary(w, report.Summarize(res), report.IsTerminal(w))
	}

	c := res.Counts()
	out := BuildResult{
		RunID:     res.RunID,
		Succeeded: c.Succeeded,
		Failed:    c.Failed,
		Skipped:   c.Skipped,
		Cached:    c.Cached,
		Targets:   res.Targets,
	}
	for _, n := range res.Sequence() {
		if n.Status == engine.StatusFailed && n.Err != nil {
			out.Failures = append(out.Failures, BuildFailure{
				Node:   string(n.Key),
				Op:     n.Op.String(),
				Output: n.Output,
				Error:  n.Err.Error(),
			})
		}
	}

	if runErr == nil {
		return f.Success(out)
	}
	code := ErrCodeBuild
	var buildErr *engine.BuildError
	if !errors.As(runErr, &buildErr) {
		code = ErrCodeCancelled
	}
	return f.encode(CLIResponse{
		Status: "error",
		Data:   out,
		Error:  &CLIError{Code: code, Message: runErr.Error()},
	})
}
