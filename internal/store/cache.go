package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CacheEntry records the content hashes seen when a node last succeeded.
// A node can be skipped when its current inputs and outputs hash to the
// recorded values.
type CacheEntry struct {
	NodeKey    string
	Output     string
	InputHash  string
	OutputHash string
	RunID      string
}

// LookupCache returns the cache entry for a node writing output.
// The bool is false when no entry exists.
func (s *Store) LookupCache(ctx context.Context, nodeKey, output string) (CacheEntry, bool, error) {
	e := CacheEntry{NodeKey: nodeKey, Output: output}
	err := s.db.QueryRowContext(ctx, `
		SELECT input_hash, output_hash, run_id
		FROM artifact_cache
		WHERE node_key = ? AND output = ?
	`, nodeKey, output).Scan(&e.InputHash, &e.OutputHash, &e.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("lookup cache %s: %w", nodeKey, err)
	}
	return e, true, nil
}

// PutCache stores or replaces the cache entry for a node.
func (s *Store) PutCache(ctx context.Context, e CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifact_cache (node_key, output, input_hash, output_hash, run_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(node_key, output) DO UPDATE SET
			input_hash = excluded.input_hash,
			output_hash = excluded.output_hash,
			run_id = excluded.run_id
	`, e.NodeKey, e.Output, e.InputHash, e.OutputHash, e.RunID)
	if err != nil {
		return fmt.Errorf("put cache %s: %w", e.NodeKey, err)
	}
	return nil
}

// ClearCache removes every cache entry.
func (s *Store) ClearCache(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifact_cache`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
