package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/ir"
)

// NodeResult is the outcome of one node.
type NodeResult struct {
	Key    compiler.Key
	Op     ir.OperationSpec
	Kind   compiler.Kind
	Output string
	Status Status

	// Cached nodes succeeded without running: their inputs and outputs
	// matched the last successful run.
	Cached bool

	// Err is set for failed nodes.
	Err error

	// SkippedBy names the failed node that caused a skip. Empty when the
	// node was skipped by fail-fast or cancellation.
	SkippedBy compiler.Key

	// Seq orders outcomes. Zero for nodes that never reached a terminal state.
	Seq      int64
	Duration time.Duration
}

// TargetStatus summarises a declared target.
type TargetStatus string

const (
	TargetBuilt   TargetStatus = "built"
	TargetFailed  TargetStatus = "failed"
	TargetSkipped TargetStatus = "skipped"
)

// Result describes a finished run.
type Result struct {
	RunID   string
	Nodes   map[compiler.Key]*NodeResult
	Targets map[string]TargetStatus
}

// Counts holds how many nodes ended in each status, plus cache hits.
type Counts struct {
	Succeeded int
	Failed    int
	Skipped   int
	Cached    int
}

// Counts tallies node outcomes.
func (r *Result) Counts() Counts {
	var c Counts
	for _, n := range r.Nodes {
		switch n.Status {
		case StatusSucceeded:
			c.Succeeded++
			if n.Cached {
				c.Cached++
			}
		case StatusFailed:
			c.Failed++
		case StatusSkipped:
			c.Skipped++
		}
	}
	return c
}

// Sequence returns the node results in outcome order.
func (r *Result) Sequence() []*NodeResult {
	out := make([]*NodeResult, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// NodeFailure pairs a failed node with its error.
type NodeFailure struct {
	Key compiler.Key
	Op  ir.OperationSpec
	Err error
}

// BuildError reports every failed node of a run. It is returned alongside
// the Result.
type BuildError struct {
	Failed  []NodeFailure
	Skipped []compiler.Key
}

func (e *BuildError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d operation(s) failed", len(e.Failed))
	if len(e.Skipped) > 0 {
		fmt.Fprintf(&b, ", %d skipped", len(e.Skipped))
	}
	for _, f := range e.Failed {
		fmt.Fprintf(&b, "\n  %s [%s]: %v", f.Op, f.Key.Short(), f.Err)
	}
	return b.String()
}

// Unwrap exposes the node errors to errors.As.
func (e *BuildError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f.Err
	}
	return errs
}
