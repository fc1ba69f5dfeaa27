// Package store provides SQLite-backed build history and the artifact cache.
//
// Tables:
//   - runs: one row per build invocation, keyed by run ID
//   - node_runs: the outcome of every node in a run
//   - artifact_cache: content hashes of each node's inputs and outputs from
//     its last successful run
//
// Writes are idempotent: recording the same node of the same run twice
// keeps the first record. Reads are ordered by seq, never by timestamp.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
