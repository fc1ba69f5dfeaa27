// Package compiler turns a recipe into a BuildGraph: a deduplicated DAG of
// operation nodes stored in an arena keyed by canonical key.
//
// A node's canonical key is derived from its operation, its arguments and
// the key (or source path) of its upstream node. It never depends on the
// target being built, so two targets whose chains agree on a prefix share
// the nodes of that prefix and each of them executes once.
//
// Build is pure. It assigns temporary artifact names through the Session but
// never touches the file system. Every structural problem (malformed chain,
// unknown operation, unresolvable needs, dependency cycle) is reported before
// anything executes.
package compiler
