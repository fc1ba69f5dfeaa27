package compiler

import (
	"container/heap"
	"fmt"
	"sort"
)

// keyHeap pops keys by node creation index.
type keyHeap struct {
	keys []Key
	g    *Graph
}

func (h *keyHeap) Len() int           { return len(h.keys) }
func (h *keyHeap) Less(i, j int) bool { return h.g.Nodes[h.keys[i]].Index < h.g.Nodes[h.keys[j]].Index }
func (h *keyHeap) Swap(i, j int)      { h.keys[i], h.keys[j] = h.keys[j], h.keys[i] }
func (h *keyHeap) Push(x any)         { h.keys = append(h.keys, x.(Key)) }
func (h *keyHeap) Pop() any {
	old := h.keys
	k := old[len(old)-1]
	h.keys = old[:len(old)-1]
	return k
}

// NewReadyQueue returns an empty min-heap of keys ordered by creation index.
func (g *Graph) NewReadyQueue() *ReadyQueue {
	return &ReadyQueue{h: &keyHeap{g: g}}
}

// ReadyQueue hands out keys lowest creation index first.
type ReadyQueue struct {
	h *keyHeap
}

func (q *ReadyQueue) Push(k Key) { heap.Push(q.h, k) }
func (q *ReadyQueue) Pop() Key   { return heap.Pop(q.h).(Key) }
func (q *ReadyQueue) Len() int   { return q.h.Len() }

// TopoOrder returns every key such that each node follows all of its
// dependencies. Among nodes ready at the same time the earlier created one
// comes first, so the order is a pure function of the graph.
func (g *Graph) TopoOrder() ([]Key, error) {
	pending := make(map[Key]int, len(g.Nodes))
	q := g.NewReadyQueue()
	for _, k := range g.Order {
		pending[k] = len(g.Nodes[k].Deps())
		if pending[k] == 0 {
			q.Push(k)
		}
	}

	order := make([]Key, 0, len(g.Nodes))
	for q.Len() > 0 {
		k := q.Pop()
		order = append(order, k)
		for _, c := range g.Consumers(k) {
			pending[c]--
			if pending[c] == 0 {
				q.Push(c)
			}
		}
	}
	if len(order) != len(g.Nodes) {
		return nil, &CycleError{Targets: g.unordered(order)}
	}
	return order, nil
}

func (g *Graph) unordered(order []Key) []string {
	done := make(map[Key]bool, len(order))
	for _, k := range order {
		done[k] = true
	}
	var rest []Key
	for _, k := range g.Order {
		if !done[k] {
			rest = append(rest, k)
		}
	}
	return targetsOf(g, rest)
}

// Select returns the subgraph needed to build the named targets: the closure
// of their terminal nodes through data and needs edges. Order edges are kept
// only between selected nodes. With no names the graph itself is returned.
func (g *Graph) Select(targets ...string) (*Graph, error) {
	if len(targets) == 0 {
		return g, nil
	}

	keep := make(map[Key]bool)
	var mark func(k Key)
	mark = func(k Key) {
		if keep[k] {
			return
		}
		keep[k] = true
		n := g.Nodes[k]
		for _, in := range n.Inputs {
			if in.Node != "" {
				mark(in.Node)
			}
		}
		for _, d := range n.Needs {
			mark(d)
		}
	}
	for _, t := range targets {
		k, ok := g.Targets[t]
		if !ok {
			return nil, fmt.Errorf("select: %q is not a declared target", t)
		}
		mark(k)
	}

	sub := newGraph()
	for path, k := range g.Targets {
		if keep[k] {
			sub.Targets[path] = k
			sub.Chains[path] = g.Chains[path]
		}
	}
	read := make(map[string]bool)
	for _, k := range g.Order {
		if keep[k] {
			for _, in := range g.Nodes[k].Inputs {
				read[in.Path] = true
			}
		}
	}

	for _, k := range g.Order {
		if !keep[k] {
			continue
		}
		n := *g.Nodes[k]
		n.Index = len(sub.Order)
		n.Aliases = nil
		for _, a := range g.Nodes[k].Aliases {
			if sub.IsTarget(a) || read[a] {
				n.Aliases = append(n.Aliases, a)
			}
		}
		n.After = nil
		for _, a := range g.Nodes[k].After {
			if keep[a] {
				n.After = append(n.After, a)
			}
		}
		sub.Nodes[k] = &n
		sub.Order = append(sub.Order, k)
	}
	sub.indexConsumers()
	return sub, nil
}

// Ancestors returns every node k depends on, directly or not, sorted by
// creation index.
func (g *Graph) Ancestors(k Key) []Key {
	seen := make(map[Key]bool)
	var walk func(Key)
	walk = func(k Key) {
		for _, d := range g.Nodes[k].Deps() {
			if !seen[d] {
				seen[d] = true
				walk(d)
			}
		}
	}
	walk(k)
	out := make([]Key, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return g.Nodes[out[i]].Index < g.Nodes[out[j]].Index })
	return out
}
