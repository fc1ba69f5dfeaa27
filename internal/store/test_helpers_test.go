package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/fontrecipe/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestRun creates a run with minimal required fields and records it.
func createTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	r := Run{
		ID:            id,
		RecipeHash:    "recipe-hash",
		EngineVersion: ir.EngineVersion,
		KeyVersion:    ir.KeyVersion,
		WorkDir:       "/work",
		Nodes:         3,
		StartedAt:     testStart,
	}
	if err := s.BeginRun(context.Background(), r); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	return r
}

// createTestNode returns a succeeded node outcome.
func createTestNode(runID, key string, seq int) NodeRun {
	return NodeRun{
		RunID:    runID,
		NodeKey:  key,
		Seq:      seq,
		Op:       ir.OperationSpec{Name: "fix", Args: ir.Map{}},
		Kind:     "operation",
		Output:   "out.ttf",
		Status:   "succeeded",
		Duration: 1500 * time.Millisecond,
	}
}
