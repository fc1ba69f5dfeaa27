package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/ir"
	"github.com/roach88/fontrecipe/internal/ops"
	"github.com/roach88/fontrecipe/internal/store"
)

// Executor runs one operation call. Implemented by *ops.Registry.
type Executor interface {
	Execute(ctx context.Context, call ops.Call) error
}

// Engine runs build graphs. One Engine may run many graphs, one at a time
// or concurrently; each Run has its own state.
type Engine struct {
	exec     Executor
	sess     *compiler.Session
	workers  int
	failFast bool
	log      *slog.Logger
	store    *store.Store
	cache    bool
	runIDs   RunIDGenerator
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds how many operations run at once.
// Values below 1 mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithFailFast stops dispatching new nodes after the first failure.
// Nodes already running are allowed to finish.
func WithFailFast(on bool) Option {
	return func(e *Engine) {
		e.failFast = on
	}
}

// WithLogger sets the logger for node lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithStore records run history in s.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithCache enables skipping nodes whose artifacts are unchanged since their
// last successful run. Needs WithStore.
func WithCache(on bool) Option {
	return func(e *Engine) {
		e.cache = on
	}
}

// WithRunIDGenerator replaces the UUIDv7 run ID generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// New creates an engine executing operations with exec inside sess.
func New(exec Executor, sess *compiler.Session, opts ...Option) *Engine {
	e := &Engine{
		exec:   exec,
		sess:   sess,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		runIDs: UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	return e
}

// outcome is what a worker reports back for one node.
type outcome struct {
	key      compiler.Key
	err      error
	cached   bool
	duration time.Duration
}

// run is the state of one Run call. Only the coordinating goroutine touches
// status, pending, ready and results.
type run struct {
	e     *Engine
	g     *compiler.Graph
	id    string
	log   *slog.Logger
	clock *Clock
	locks *artifactLocks
	temps *tempTracker
	cache *artifactCache

	status  map[compiler.Key]Status
	pending map[compiler.Key]int
	ready   *compiler.ReadyQueue
	results map[compiler.Key]*NodeResult
	failed  []compiler.Key
}

// Run executes every node of g and blocks until all of them are terminal.
//
// The returned Result is always non-nil. The error is a *BuildError when
// any node failed, or wraps ctx.Err() when the context was cancelled first.
// Failures never abort unrelated nodes unless fail-fast is set.
func (e *Engine) Run(ctx context.Context, g *compiler.Graph) (*Result, error) {
	r := e.newRun(g)
	r.log.Info("build starting", "nodes", g.Len(), "workers", e.workers)

	started := e.now()
	r.beginRun(ctx, started)

	cancelErr := r.loop(ctx)
	r.temps.sweep()

	res := r.result()
	r.finishRun(res)

	c := res.Counts()
	r.log.Info("build finished",
		"succeeded", c.Succeeded, "failed", c.Failed, "skipped", c.Skipped, "cached", c.Cached,
		"elapsed", e.now().Sub(started).Round(time.Millisecond))

	if cancelErr != nil {
		return res, fmt.Errorf("build cancelled: %w", cancelErr)
	}
	if len(r.failed) > 0 {
		return res, r.buildError()
	}
	return res, nil
}

func (e *Engine) newRun(g *compiler.Graph) *run {
	id := e.runIDs.Generate()
	log := e.log.With("run_id", id)
	r := &run{
		e:       e,
		g:       g,
		id:      id,
		log:     log,
		clock:   NewClock(),
		locks:   &artifactLocks{dir: e.sess.LockDir()},
		temps:   newTempTracker(g, e.sess, log),
		status:  make(map[compiler.Key]Status, g.Len()),
		pending: make(map[compiler.Key]int, g.Len()),
		ready:   g.NewReadyQueue(),
		results: make(map[compiler.Key]*NodeResult, g.Len()),
	}
	if e.store != nil && e.cache {
		r.cache = &artifactCache{store: e.store, workDir: e.sess.WorkDir, runID: id, log: log}
	}
	for _, k := range g.Order {
		n := g.Nodes[k]
		r.results[k] = &NodeResult{Key: k, Op: n.Op, Kind: n.Kind, Output: n.Output.Path}
		r.pending[k] = len(n.Deps())
		if r.pending[k] == 0 {
			r.transition(k, StatusReady)
			r.ready.Push(k)
		}
	}
	return r
}

// loop dispatches ready nodes and applies outcomes until nothing is
// running and nothing more can start. Returns ctx.Err() if the context
// ended the run early.
func (r *run) loop(ctx context.Context) error {
	jobs := make(chan compiler.Key)
	done := make(chan outcome, r.g.Len())

	var wg sync.WaitGroup
	for i := 0; i < r.e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := range jobs {
				done <- r.execute(ctx, k)
			}
		}()
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	var cancelErr error
	cancelled := ctx.Done()
	stopping := false
	running := 0
	for {
		for !stopping && running < r.e.workers && r.ready.Len() > 0 {
			k := r.ready.Pop()
			r.transition(k, StatusRunning)
			r.log.Debug("node started", "node", k.Short(), "op", r.g.Nodes[k].Op.String())
			jobs <- k
			running++
		}
		if running == 0 {
			return cancelErr
		}

		select {
		case o := <-done:
			running--
			r.complete(o)
			if o.err != nil && r.e.failFast && !stopping {
				r.log.Warn("fail-fast: skipping remaining nodes")
				stopping = true
				r.skipRemaining()
			}
		case <-cancelled:
			cancelled = nil
			cancelErr = ctx.Err()
			if !stopping {
				r.log.Warn("build cancelled: skipping remaining nodes", "error", cancelErr)
				stopping = true
				r.skipRemaining()
			}
		}
	}
}

// execute runs on a worker goroutine. It must not touch scheduling state.
func (r *run) execute(ctx context.Context, k compiler.Key) outcome {
	n := r.g.Nodes[k]
	start := time.Now()
	o := outcome{key: k}

	release, err := r.locks.acquire(ctx, r.absPaths(n.Writes()))
	if err != nil {
		o.err = err
		return o
	}
	defer release()

	inputHash := r.cache.inputHash(n)
	if r.cache.hit(ctx, n, inputHash) {
		o.cached = true
		o.duration = time.Since(start)
		return o
	}

	call := ops.Call{
		Spec:    n.Op,
		Inputs:  n.InputPaths(),
		Output:  n.Output.Path,
		WorkDir: r.e.sess.WorkDir,
	}
	if err := r.e.exec.Execute(ctx, call); err != nil {
		o.err = err
		o.duration = time.Since(start)
		return o
	}
	for _, alias := range n.Aliases {
		if err := ops.CopyPath(r.e.sess.Abs(n.Output.Path), r.e.sess.Abs(alias)); err != nil {
			o.err = fmt.Errorf("copy %s to alias %s: %w", n.Output.Path, alias, err)
			o.duration = time.Since(start)
			return o
		}
	}
	r.cache.record(ctx, n, inputHash)
	o.duration = time.Since(start)
	return o
}

// complete applies a worker outcome.
func (r *run) complete(o outcome) {
	res := r.results[o.key]
	res.Duration = o.duration
	res.Cached = o.cached
	n := r.g.Nodes[o.key]

	if o.err != nil {
		res.Err = o.err
		r.transition(o.key, StatusFailed)
		r.failed = append(r.failed, o.key)
		r.log.Error("node failed", "node", o.key.Short(), "op", n.Op.String(), "error", o.err)
	} else {
		r.transition(o.key, StatusSucceeded)
		r.log.Info("node succeeded", "node", o.key.Short(), "op", n.Op.String(),
			"output", n.Output.Path, "cached", o.cached, "duration", o.duration.Round(time.Millisecond))
	}
	r.settle(o.key)
}

// settle propagates a terminal node to its consumers. A consumer that reads
// the artifact of a failed or skipped node, or names it in needs, is skipped
// in turn. Order-only consumers just stop waiting.
func (r *run) settle(k compiler.Key) {
	root := k
	work := []compiler.Key{k}
	for len(work) > 0 {
		k := work[0]
		work = work[1:]
		r.finalize(k)

		bad := r.status[k] != StatusSucceeded
		for _, c := range r.g.Consumers(k) {
			if r.status[c] != StatusPending {
				continue
			}
			if bad && hardDep(r.g.Nodes[c], k) {
				r.transition(c, StatusSkipped)
				r.results[c].SkippedBy = root
				r.log.Warn("node skipped", "node", c.Short(), "op", r.g.Nodes[c].Op.String(), "failed", root.Short())
				work = append(work, c)
				continue
			}
			r.pending[c]--
			if r.pending[c] == 0 {
				r.transition(c, StatusReady)
				r.ready.Push(c)
			}
		}
	}
}

// hardDep reports whether n consumes k's artifact or names it in needs.
func hardDep(n *compiler.Node, k compiler.Key) bool {
	for _, in := range n.Inputs {
		if in.Node == k {
			return true
		}
	}
	for _, d := range n.Needs {
		if d == k {
			return true
		}
	}
	return false
}

// skipRemaining skips every node that has not started.
func (r *run) skipRemaining() {
	for r.ready.Len() > 0 {
		r.ready.Pop()
	}
	for _, k := range r.g.Order {
		if s := r.status[k]; s == StatusPending || s == StatusReady {
			r.transition(k, StatusSkipped)
			r.finalize(k)
		}
	}
}

// finalize stamps a terminal node, records it and releases its temp inputs.
func (r *run) finalize(k compiler.Key) {
	res := r.results[k]
	res.Seq = r.clock.Next()
	r.temps.done(k)
	r.recordNode(res)
}

func (r *run) transition(k compiler.Key, to Status) {
	from := r.status[k]
	if !CanTransition(from, to) {
		panic(fmt.Sprintf("engine: node %s: invalid transition %s -> %s", k.Short(), from, to))
	}
	r.status[k] = to
	r.results[k].Status = to
}

func (r *run) absPaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = r.e.sess.Abs(p)
	}
	return out
}

func (r *run) result() *Result {
	res := &Result{
		RunID:   r.id,
		Nodes:   r.results,
		Targets: make(map[string]TargetStatus, len(r.g.Targets)),
	}
	for path, k := range r.g.Targets {
		switch r.status[k] {
		case StatusSucceeded:
			res.Targets[path] = TargetBuilt
		case StatusFailed:
			res.Targets[path] = TargetFailed
		default:
			res.Targets[path] = TargetSkipped
		}
	}
	return res
}

func (r *run) buildError() *BuildError {
	be := &BuildError{}
	sort.Slice(r.failed, func(i, j int) bool {
		return r.g.Nodes[r.failed[i]].Index < r.g.Nodes[r.failed[j]].Index
	})
	for _, k := range r.failed {
		be.Failed = append(be.Failed, NodeFailure{Key: k, Op: r.g.Nodes[k].Op, Err: r.results[k].Err})
	}
	for _, k := range r.g.Order {
		if r.status[k] == StatusSkipped {
			be.Skipped = append(be.Skipped, k)
		}
	}
	return be
}

// graphHash identifies the resolved graph a run executed.
func graphHash(g *compiler.Graph) string {
	keys := make([]string, 0, g.Len())
	for _, k := range g.Order {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return ir.RecipeHash([]byte(strings.Join(keys, "\n")))
}

func (r *run) beginRun(ctx context.Context, started time.Time) {
	if r.e.store == nil {
		return
	}
	err := r.e.store.BeginRun(ctx, store.Run{
		ID:            r.id,
		RecipeHash:    graphHash(r.g),
		EngineVersion: ir.EngineVersion,
		KeyVersion:    ir.KeyVersion,
		WorkDir:       r.e.sess.WorkDir,
		Nodes:         r.g.Len(),
		StartedAt:     started,
	})
	if err != nil {
		r.log.Warn("failed to record run start", "error", err)
	}
}

func (r *run) finishRun(res *Result) {
	if r.e.store == nil {
		return
	}
	c := res.Counts()
	status := store.RunSucceeded
	if c.Failed > 0 || c.Skipped > 0 {
		status = store.RunFailed
	}
	err := r.e.store.FinishRun(context.Background(), store.Run{
		ID:         r.id,
		Status:     status,
		Failed:     c.Failed,
		Skipped:    c.Skipped,
		Cached:     c.Cached,
		FinishedAt: r.e.now(),
	})
	if err != nil {
		r.log.Warn("failed to record run finish", "error", err)
	}
}

func (r *run) recordNode(res *NodeResult) {
	if r.e.store == nil {
		return
	}
	nr := store.NodeRun{
		RunID:    r.id,
		NodeKey:  string(res.Key),
		Seq:      int(res.Seq),
		Op:       res.Op,
		Kind:     res.Kind.String(),
		Output:   res.Output,
		Status:   res.Status.String(),
		Cached:   res.Cached,
		Duration: res.Duration,
	}
	if res.Err != nil {
		nr.Error = res.Err.Error()
		var execErr *ops.OperationExecutionError
		if errors.As(res.Err, &execErr) {
			nr.ExitCode = execErr.ExitCode
		}
	}
	// Recording happens after the run context may be cancelled; history
	// should still be complete.
	if err := r.e.store.RecordNode(context.Background(), nr); err != nil {
		r.log.Warn("failed to record node", "node", res.Key.Short(), "error", err)
	}
}
