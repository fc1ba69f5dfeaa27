package report

import (
	"sort"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/recipe"
)

// DumpRecipe rewrites the graph as a recipe, after deduplication.
//
// Each target's chain is walked back from its terminal node. The walk stops
// at a user source, or at an artifact that is itself a finished target, which
// becomes the chain's source step. Loading the dump again yields the same
// graph.
func DumpRecipe(g *compiler.Graph) *recipe.Recipe {
	byKey := make(map[compiler.Key][]string)
	for _, path := range g.TargetPaths() {
		byKey[g.Targets[path]] = append(byKey[g.Targets[path]], path)
	}

	r := &recipe.Recipe{}
	for _, path := range g.TargetPaths() {
		r.Targets = append(r.Targets, recipe.Target{Path: path, Steps: chain(g, path, byKey)})
	}
	return r
}

func chain(g *compiler.Graph, target string, byKey map[compiler.Key][]string) []recipe.Step {
	var steps []recipe.Step
	k := g.Targets[target]
	for {
		n := g.Nodes[k]
		step := recipe.Step{
			Kind:      recipe.StepOperation,
			Operation: n.Op.Name,
			Args:      n.Op.Args.Clone(),
		}
		if n.Kind == compiler.KindPostprocess {
			step.Kind = recipe.StepPostprocess
			for _, need := range n.Needs {
				step.Needs = append(step.Needs, byKey[need][0])
			}
			sort.Strings(step.Needs)
		}
		steps = append(steps, step)

		in := n.Inputs[0]
		if in.Node == "" || g.Targets[in.Path] == in.Node {
			steps = append(steps, recipe.Step{Kind: recipe.StepSource, Source: in.Path})
			break
		}
		k = in.Node
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps
}
