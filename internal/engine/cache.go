package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/ir"
	"github.com/roach88/fontrecipe/internal/store"
)

// artifactCache skips nodes whose inputs and outputs are byte-identical to
// what they were after the node's last successful run.
//
// A node that rewrites its input in place only hits when the rewrite left
// the file as it found it, so postprocess chains rebuild whenever their
// upstream does.
type artifactCache struct {
	store   *store.Store
	workDir string
	runID   string
	log     *slog.Logger
}

// hit reports whether n can be skipped, given the current hash of its
// inputs. Any error is a miss.
func (c *artifactCache) hit(ctx context.Context, n *compiler.Node, inputHash string) bool {
	if c == nil || inputHash == "" {
		return false
	}
	entry, ok, err := c.store.LookupCache(ctx, string(n.Key), n.Output.Path)
	if err != nil {
		c.log.Warn("cache lookup failed", "node", n.Key.Short(), "error", err)
		return false
	}
	if !ok {
		return false
	}
	if inputHash != entry.InputHash {
		return false
	}
	out, err := ir.ArtifactsHash(c.workDir, n.Writes())
	if err != nil || out != entry.OutputHash {
		return false
	}
	return true
}

// record stores the hashes of a node that just succeeded. The input hash is
// taken before execution because in-place nodes overwrite their input.
func (c *artifactCache) record(ctx context.Context, n *compiler.Node, inputHash string) {
	if c == nil || inputHash == "" {
		return
	}
	out, err := ir.ArtifactsHash(c.workDir, n.Writes())
	if err != nil {
		c.log.Warn("cache hash failed", "node", n.Key.Short(), "error", err)
		return
	}
	err = c.store.PutCache(ctx, store.CacheEntry{
		NodeKey:    string(n.Key),
		Output:     n.Output.Path,
		InputHash:  inputHash,
		OutputHash: out,
		RunID:      c.runID,
	})
	if err != nil {
		c.log.Warn("cache update failed", "node", n.Key.Short(), "error", err)
	}
}

// inputHash hashes n's inputs, or returns "" when caching is off or an input
// cannot be read.
func (c *artifactCache) inputHash(n *compiler.Node) string {
	if c == nil {
		return ""
	}
	h, err := ir.ArtifactsHash(c.workDir, n.InputPaths())
	if err != nil {
		return ""
	}
	return h
}
