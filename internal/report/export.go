package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/ir"
)

// GraphDoc is the machine-readable form of a build graph.
type GraphDoc struct {
	Nodes   []NodeDoc               `json:"nodes"`
	Edges   []compiler.Edge         `json:"edges"`
	Targets map[string]compiler.Key `json:"targets"`
}

// NodeDoc is one node of a GraphDoc.
type NodeDoc struct {
	Key     compiler.Key      `json:"key"`
	Index   int               `json:"index"`
	Op      string            `json:"op"`
	Args    map[string]any    `json:"args,omitempty"`
	Kind    string            `json:"kind"`
	Inputs  []compiler.Input  `json:"inputs"`
	Output  compiler.Artifact `json:"output"`
	Aliases []string          `json:"aliases,omitempty"`
	Mutates []string          `json:"mutates,omitempty"`
}

// Export converts g to a GraphDoc with nodes in creation order.
func Export(g *compiler.Graph) GraphDoc {
	doc := GraphDoc{
		Nodes:   make([]NodeDoc, 0, g.Len()),
		Edges:   g.Edges(),
		Targets: make(map[string]compiler.Key, len(g.Targets)),
	}
	for _, k := range g.Order {
		n := g.Nodes[k]
		nd := NodeDoc{
			Key:     k,
			Index:   n.Index,
			Op:      n.Op.Name,
			Kind:    n.Kind.String(),
			Inputs:  n.Inputs,
			Output:  n.Output,
			Aliases: n.Aliases,
			Mutates: n.Mutates,
		}
		if len(n.Op.Args) > 0 {
			nd.Args = ir.ToAny(n.Op.Args).(map[string]any)
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	if doc.Edges == nil {
		doc.Edges = []compiler.Edge{}
	}
	for path, k := range g.Targets {
		doc.Targets[path] = k
	}
	return doc
}

// WriteJSON writes the GraphDoc of g as indented JSON.
func WriteJSON(w io.Writer, g *compiler.Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Export(g)); err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return nil
}

// WriteDOT writes g in Graphviz DOT. Source files are drawn as notes,
// targets with a double border. Data edges are solid, needs dashed and
// order edges dotted.
func WriteDOT(w io.Writer, g *compiler.Graph) error {
	var b strings.Builder
	b.WriteString("digraph build {\n  rankdir=LR;\n  node [shape=box, fontname=\"Helvetica\"];\n")

	sources := make(map[string]bool)
	for _, k := range g.Order {
		for _, in := range g.Nodes[k].Inputs {
			if in.Node == "" {
				sources[in.Path] = true
			}
		}
	}
	for _, p := range sortedKeys(sources) {
		fmt.Fprintf(&b, "  %q [shape=note, label=%q];\n", "src:"+p, p)
	}

	terminal := make(map[compiler.Key]bool)
	for _, k := range g.Targets {
		terminal[k] = true
	}
	for _, k := range g.Order {
		n := g.Nodes[k]
		attrs := fmt.Sprintf("label=%q", n.Op.String()+"\n"+n.Output.Path)
		if n.Output.Temp {
			attrs += ", style=dashed"
		}
		if terminal[k] {
			attrs += ", peripheries=2"
		}
		fmt.Fprintf(&b, "  %q [%s];\n", k.Short(), attrs)
		for _, in := range n.Inputs {
			if in.Node == "" {
				fmt.Fprintf(&b, "  %q -> %q;\n", "src:"+in.Path, k.Short())
			}
		}
	}
	for _, e := range g.Edges() {
		style := ""
		switch e.Kind {
		case compiler.EdgeNeeds:
			style = " [style=dashed, label=\"needs\"]"
		case compiler.EdgeOrder:
			style = " [style=dotted]"
		}
		fmt.Fprintf(&b, "  %q -> %q%s;\n", e.From.Short(), e.To.Short(), style)
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteText writes one line per node in execution order:
//
//	[key] op(args) inputs -> output (temp) [+alias] needs=... after=...
func WriteText(w io.Writer, g *compiler.Graph) error {
	order, err := g.TopoOrder()
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, k := range order {
		n := g.Nodes[k]
		fmt.Fprintf(&b, "[%s] %s %s -> %s", k.Short(), n.Op, strings.Join(n.InputPaths(), ", "), n.Output.Path)
		if n.Output.Temp {
			b.WriteString(" (temp)")
		}
		if n.Kind == compiler.KindPostprocess {
			b.WriteString(" (in place)")
		}
		for _, a := range n.Aliases {
			fmt.Fprintf(&b, " +%s", a)
		}
		if len(n.Needs) > 0 {
			fmt.Fprintf(&b, " needs=%s", shortKeys(n.Needs))
		}
		if len(n.After) > 0 {
			fmt.Fprintf(&b, " after=%s", shortKeys(n.After))
		}
		b.WriteString("\n")
	}
	_, err = io.WriteString(w, b.String())
	return err
}

func shortKeys(keys []compiler.Key) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Short()
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
