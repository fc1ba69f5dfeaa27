package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/fontrecipe/internal/ir"
)

// NodeRun is the outcome of a single node in a run.
type NodeRun struct {
	RunID    string
	NodeKey  string
	Seq      int
	Op       ir.OperationSpec
	Kind     string
	Output   string
	Status   string
	Cached   bool
	ExitCode int
	Error    string
	Duration time.Duration
}

// RecordNode writes a node outcome. Recording the same node twice in one
// run keeps the first record.
func (s *Store) RecordNode(ctx context.Context, n NodeRun) error {
	args, err := marshalArgs(n.Op.Args)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO node_runs (run_id, node_key, seq, op, args, kind, output, status, cached, exit_code, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, node_key) DO NOTHING
	`, n.RunID, n.NodeKey, n.Seq, n.Op.Name, args, n.Kind, n.Output, n.Status,
		boolInt(n.Cached), n.ExitCode, n.Error, n.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record node %s: %w", n.NodeKey, err)
	}
	return nil
}

// RunNodes returns every node recorded for a run in execution order.
func (s *Store) RunNodes(ctx context.Context, runID string) ([]NodeRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, node_key, seq, op, args, kind, output, status, cached, exit_code, error, duration_ms
		FROM node_runs
		WHERE run_id = ?
		ORDER BY seq ASC, node_key COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query nodes for run %s: %w", runID, err)
	}
	defer rows.Close()

	var nodes []NodeRun
	for rows.Next() {
		var (
			n        NodeRun
			args     string
			cached   int
			duration int64
		)
		if err := rows.Scan(&n.RunID, &n.NodeKey, &n.Seq, &n.Op.Name, &args, &n.Kind, &n.Output,
			&n.Status, &cached, &n.ExitCode, &n.Error, &duration); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		if n.Op.Args, err = unmarshalArgs(args); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.NodeKey, err)
		}
		n.Cached = cached != 0
		n.Duration = time.Duration(duration) * time.Millisecond
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func unmarshalArgs(s string) (ir.Map, error) {
	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	v, err := ir.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	m, ok := v.(ir.Map)
	if !ok {
		return nil, fmt.Errorf("unmarshal args: expected object, got %s", ir.KindOf(v))
	}
	return m, nil
}
