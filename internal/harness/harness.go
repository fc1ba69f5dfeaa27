package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/engine"
	"github.com/roach88/fontrecipe/internal/recipe"
	"github.com/roach88/fontrecipe/internal/store"
	"github.com/roach88/fontrecipe/internal/testutil"
)

// Harness is the scenario execution engine. It compiles the scenario recipe
// against the fake operation catalogue and runs it through the real engine
// with a fixed run ID and an in-memory history store.
type Harness struct {
	store  *store.Store
	fakes  *testutil.FakeOps
	sess   *compiler.Session
	runIDs *testutil.FixedRunID
	logger *slog.Logger
}

// Run executes a scenario in dir and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. dir must
// be empty; sources are written into it and every artifact is built there.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Write source files
// 3. Compile the recipe and select targets
// 4. Run the graph with fake operations
// 5. Collect the trace and evaluate assertions
func Run(scenario *Scenario, dir string) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := testutil.WriteSources(dir, scenario.Sources...); err != nil {
		return nil, fmt.Errorf("failed to write sources: %w", err)
	}

	sess := compiler.NewSession(dir)
	sess.Cleanup = !scenario.Keep
	h := &Harness{
		store:  st,
		fakes:  testutil.NewFakeOps().Fail(scenario.Fail...),
		sess:   sess,
		runIDs: testutil.NewFixedRunID(scenario.RunID),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	g, err := h.compile(scenario)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	res, err := h.execute(ctx, scenario, g)
	if err != nil {
		return nil, fmt.Errorf("failed to execute build: %w", err)
	}

	result, err := h.collect(g, res)
	if err != nil {
		return nil, err
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, Dir: dir}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

func (h *Harness) compile(scenario *Scenario) (*compiler.Graph, error) {
	r, err := recipe.FromNode(&scenario.Recipe)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}
	g, err := compiler.Build(r, h.fakes.Registry(), h.sess)
	if err != nil {
		return nil, fmt.Errorf("failed to compile recipe: %w", err)
	}
	return g.Select(scenario.Targets...)
}

// execute runs g. Node failures are part of the outcome, not an error.
func (h *Harness) execute(ctx context.Context, scenario *Scenario, g *compiler.Graph) (*engine.Result, error) {
	workers := scenario.Workers
	if workers == 0 {
		workers = 1
	}
	eng := engine.New(h.fakes.Registry(), h.sess,
		engine.WithWorkers(workers),
		engine.WithFailFast(scenario.FailFast),
		engine.WithStore(h.store),
		engine.WithLogger(h.logger),
		engine.WithRunIDGenerator(h.runIDs),
	)

	res, err := eng.Run(ctx, g)
	var buildErr *engine.BuildError
	if err != nil && !errors.As(err, &buildErr) {
		return nil, err
	}
	return res, nil
}

func (h *Harness) collect(g *compiler.Graph, res *engine.Result) (*Result, error) {
	result := NewResult()
	result.Graph = RenderGraph(g)

	for _, n := range res.Sequence() {
		ev := TraceEvent{
			Seq:    n.Seq,
			Node:   g.Nodes[n.Key].Index,
			Op:     n.Op.String(),
			Output: n.Output,
			Status: n.Status.String(),
			Cached: n.Cached,
		}
		if n.SkippedBy != "" {
			ev.SkippedBy = label(g, n.SkippedBy)
		}
		if n.Err != nil {
			ev.Error = n.Err.Error()
		}
		result.Trace = append(result.Trace, ev)
	}
	result.Calls = h.fakes.Names()

	for path, st := range res.Targets {
		result.Targets[path] = string(st)
	}
	for _, path := range g.TargetPaths() {
		data, err := os.ReadFile(h.sess.Abs(path))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read target %s: %w", path, err)
		}
		result.Artifacts[path] = string(data)
	}

	left, err := countFiles(h.sess.TempDir())
	if err != nil {
		return nil, err
	}
	result.TempLeft = left
	return result, nil
}

// RenderGraph renders one line per node in creation order, naming nodes by
// index instead of key.
func RenderGraph(g *compiler.Graph) []string {
	lines := make([]string, 0, g.Len())
	for _, k := range g.Order {
		n := g.Nodes[k]
		var b strings.Builder
		fmt.Fprintf(&b, "#%d %s %s -> %s", n.Index, n.Op, strings.Join(n.InputPaths(), ", "), n.Output.Path)
		if n.Output.Temp {
			b.WriteString(" (temp)")
		}
		if n.Kind == compiler.KindPostprocess {
			b.WriteString(" (in place)")
		}
		for _, a := range n.Aliases {
			fmt.Fprintf(&b, " +%s", a)
		}
		if len(n.Needs) > 0 {
			fmt.Fprintf(&b, " needs=%s", labels(g, n.Needs))
		}
		if len(n.After) > 0 {
			fmt.Fprintf(&b, " after=%s", labels(g, n.After))
		}
		lines = append(lines, b.String())
	}
	return lines
}

func label(g *compiler.Graph, k compiler.Key) string {
	return fmt.Sprintf("#%d", g.Nodes[k].Index)
}

func labels(g *compiler.Graph, keys []compiler.Key) string {
	idx := make([]int, len(keys))
	for i, k := range keys {
		idx[i] = g.Nodes[k].Index
	}
	sort.Ints(idx)
	parts := make([]string, len(idx))
	for i, n := range idx {
		parts[i] = fmt.Sprintf("#%d", n)
	}
	return strings.Join(parts, ",")
}

func countFiles(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count temp files: %w", err)
	}
	return n, nil
}
