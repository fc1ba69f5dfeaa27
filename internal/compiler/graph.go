package compiler

import (
	"sort"

	"github.com/roach88/fontrecipe/internal/ir"
)

// Key is a node's canonical key: a hex SHA-256 over the node's identity fields.
type Key string

// Short returns the first 12 hex digits, enough for logs and diagrams.
func (k Key) Short() string {
	if len(k) > 12 {
		return string(k[:12])
	}
	return string(k)
}

// Kind distinguishes nodes that create an artifact from nodes that modify
// one in place.
type Kind int

const (
	KindNormal Kind = iota
	KindPostprocess
)

func (k Kind) String() string {
	if k == KindPostprocess {
		return "postprocess"
	}
	return "normal"
}

// Artifact is a file handle identified by path.
type Artifact struct {
	Path string `json:"path"`

	// Temp artifacts have system-assigned names and may be deleted once
	// nothing consumes them.
	Temp bool `json:"temp,omitempty"`
}

// Input is one input artifact of a node. Node is empty for user-supplied
// source files.
type Input struct {
	Node Key    `json:"node,omitempty"`
	Path string `json:"path"`
}

// Node is the unit of execution.
type Node struct {
	Key   Key
	Index int // creation order, used to break ties deterministically
	Op    ir.OperationSpec
	Kind  Kind

	Inputs []Input
	Output Artifact

	// Aliases are further target paths with the same content as Output.
	// They are copied from Output once the node succeeds.
	Aliases []string

	// Mutates lists paths besides Output that the node rewrites in place.
	// Only multi-input in-place postprocess operations have any.
	Mutates []string

	// Needs are ordering-only edges to the terminal nodes of other targets.
	Needs []Key

	// After are ordering-only edges to nodes that read an artifact this
	// node rewrites, so they see it before the rewrite.
	After []Key
}

// Deps returns every node this one waits for, sorted and without duplicates.
func (n *Node) Deps() []Key {
	seen := make(map[Key]bool)
	var deps []Key
	add := func(k Key) {
		if k != "" && !seen[k] {
			seen[k] = true
			deps = append(deps, k)
		}
	}
	for _, in := range n.Inputs {
		add(in.Node)
	}
	for _, k := range n.Needs {
		add(k)
	}
	for _, k := range n.After {
		add(k)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
	return deps
}

// InputPaths returns the input artifact paths in order.
func (n *Node) InputPaths() []string {
	paths := make([]string, len(n.Inputs))
	for i, in := range n.Inputs {
		paths[i] = in.Path
	}
	return paths
}

// Writes returns every path the node writes: its output, aliases and the
// extra artifacts it mutates. Sorted.
func (n *Node) Writes() []string {
	paths := []string{n.Output.Path}
	paths = append(paths, n.Aliases...)
	paths = append(paths, n.Mutates...)
	sort.Strings(paths)
	return dedupStrings(paths)
}

// Graph is the arena of nodes. Edges are key references only.
type Graph struct {
	Nodes map[Key]*Node

	// Order lists keys in creation order.
	Order []Key

	// Targets maps each declared target path to its terminal node.
	Targets map[string]Key

	// Chains lists, per target, the nodes its chain folded through in step
	// order, starting after its last source step.
	Chains map[string][]Key

	consumers map[Key][]Key
}

func newGraph() *Graph {
	return &Graph{
		Nodes:   make(map[Key]*Node),
		Targets: make(map[string]Key),
		Chains:  make(map[string][]Key),
	}
}

// Node returns the node with key k, or nil.
func (g *Graph) Node(k Key) *Node {
	return g.Nodes[k]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// TargetPaths returns the declared target paths sorted.
func (g *Graph) TargetPaths() []string {
	paths := make([]string, 0, len(g.Targets))
	for p := range g.Targets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// IsTarget reports whether path is a declared target.
func (g *Graph) IsTarget(path string) bool {
	_, ok := g.Targets[path]
	return ok
}

// Consumers returns the nodes that wait on k through any edge kind, in
// creation order.
func (g *Graph) Consumers(k Key) []Key {
	if g.consumers == nil {
		g.indexConsumers()
	}
	return g.consumers[k]
}

func (g *Graph) indexConsumers() {
	g.consumers = make(map[Key][]Key)
	for _, k := range g.Order {
		for _, d := range g.Nodes[k].Deps() {
			g.consumers[d] = append(g.consumers[d], k)
		}
	}
}

// EdgeKind is data, needs or order.
type EdgeKind string

const (
	EdgeData  EdgeKind = "data"
	EdgeNeeds EdgeKind = "needs"
	EdgeOrder EdgeKind = "order"
)

// Edge points from a dependency to the node that waits for it.
type Edge struct {
	From Key      `json:"from"`
	To   Key      `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// Edges returns every edge, sorted by (To creation index, From, Kind).
// A dependency reached through several edge kinds yields one edge per kind.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, k := range g.Order {
		n := g.Nodes[k]
		seen := make(map[Edge]bool)
		add := func(from Key, kind EdgeKind) {
			e := Edge{From: from, To: k, Kind: kind}
			if from != "" && !seen[e] {
				seen[e] = true
				edges = append(edges, e)
			}
		}
		start := len(edges)
		for _, in := range n.Inputs {
			add(in.Node, EdgeData)
		}
		for _, d := range n.Needs {
			add(d, EdgeNeeds)
		}
		for _, d := range n.After {
			add(d, EdgeOrder)
		}
		group := edges[start:]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].From != group[j].From {
				return group[i].From < group[j].From
			}
			return group[i].Kind < group[j].Kind
		})
	}
	return edges
}

func dedupStrings(sorted []string) []string {
	var out []string
	for _, s := range sorted {
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}
