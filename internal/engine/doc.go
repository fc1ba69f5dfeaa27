// Package engine executes a compiled build graph.
//
// A single coordinating goroutine owns every node's state. It dispatches
// ready nodes to a bounded pool of workers, lowest creation index first, and
// applies their outcomes as they come back. Workers only run operations;
// they never touch scheduling state.
//
// Node lifecycle:
//
//	pending -> ready -> running -> succeeded | failed
//	pending | ready -> skipped
//
// A failed node skips everything that consumes its artifact or names it in
// needs, and nothing else. Independent parts of the graph keep building
// unless fail-fast is set.
//
// Every path a node writes is guarded by an exclusive file lock, so
// concurrent builds in the same working directory never write one artifact
// at the same time.
package engine
