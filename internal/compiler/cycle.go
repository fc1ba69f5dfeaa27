package compiler

import "sort"

// checkCycles runs a depth-first coloring walk over data, needs and order
// edges and returns a CycleError for the first back edge found.
//
// Target resolution already rejects cycles between targets as it folds.
// This walk covers the edges added afterwards and guards the invariant the
// scheduler depends on: the graph is acyclic over every edge kind.
//
// The algorithm:
//  1. Visit nodes in creation order; mark each grey on entry, black on exit
//  2. Following an edge to a grey node closes a cycle; the grey stack from
//     that node onward is the cycle path
//  3. Map the cycle path to the targets whose chains contain its nodes
func checkCycles(g *Graph) error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[Key]int, len(g.Nodes))
	var stack []Key
	var cycle []Key

	var walk func(k Key) bool
	walk = func(k Key) bool {
		color[k] = grey
		stack = append(stack, k)
		for _, d := range g.Nodes[k].Deps() {
			switch color[d] {
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == d {
						cycle = append([]Key(nil), stack[i:]...)
						break
					}
				}
				return true
			case white:
				if walk(d) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[k] = black
		return false
	}

	for _, k := range g.Order {
		if color[k] == white && walk(k) {
			return &CycleError{Targets: targetsOf(g, cycle)}
		}
	}
	return nil
}

// targetsOf returns the sorted targets whose chains touch any of keys.
func targetsOf(g *Graph, keys []Key) []string {
	in := make(map[Key]bool, len(keys))
	for _, k := range keys {
		in[k] = true
	}
	var targets []string
	for path, chain := range g.Chains {
		for _, k := range chain {
			if in[k] {
				targets = append(targets, path)
				break
			}
		}
	}
	sort.Strings(targets)
	return targets
}
