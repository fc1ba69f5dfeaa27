package engine

import (
	"log/slog"
	"os"
	"sort"

	"github.com/roach88/fontrecipe/internal/compiler"
)

// tempTracker deletes intermediate artifacts once every node that touches
// them is terminal. Declared targets are never temp and never deleted.
type tempTracker struct {
	sess *compiler.Session
	log  *slog.Logger

	// open counts non-terminal nodes per temp path.
	open map[string]int

	// paths lists, per node, the temp paths it produces or reads.
	paths map[compiler.Key][]string
}

func newTempTracker(g *compiler.Graph, sess *compiler.Session, log *slog.Logger) *tempTracker {
	t := &tempTracker{
		sess:  sess,
		log:   log,
		open:  make(map[string]int),
		paths: make(map[compiler.Key][]string),
	}
	temp := make(map[string]bool)
	for _, k := range g.Order {
		if out := g.Nodes[k].Output; out.Temp {
			temp[out.Path] = true
		}
	}
	for _, k := range g.Order {
		n := g.Nodes[k]
		seen := make(map[string]bool)
		touch := func(p string) {
			if temp[p] && !seen[p] {
				seen[p] = true
				t.open[p]++
				t.paths[k] = append(t.paths[k], p)
			}
		}
		touch(n.Output.Path)
		for _, in := range n.Inputs {
			touch(in.Path)
		}
	}
	return t
}

// done records that node k is terminal and deletes the temp artifacts
// nothing else is waiting on.
func (t *tempTracker) done(k compiler.Key) {
	for _, p := range t.paths[k] {
		t.open[p]--
		if t.open[p] == 0 && t.sess.Cleanup {
			t.remove(p)
		}
	}
}

// sweep removes every remaining temp artifact and the temp root if empty.
func (t *tempTracker) sweep() {
	if !t.sess.Cleanup {
		return
	}
	paths := make([]string, 0, len(t.open))
	for p := range t.open {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		t.remove(p)
	}
	// Only succeeds when nothing else, such as lock files, is left.
	_ = os.Remove(t.sess.TempDir())
}

func (t *tempTracker) remove(p string) {
	if err := os.RemoveAll(t.sess.Abs(p)); err != nil {
		t.log.Warn("failed to remove temporary artifact", "path", p, "error", err)
		return
	}
	t.log.Debug("removed temporary artifact", "path", p)
}
