package compiler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/fontrecipe/internal/ir"
	"github.com/roach88/fontrecipe/internal/ops"
	"github.com/roach88/fontrecipe/internal/recipe"
)

// Build compiles r into a BuildGraph.
//
// Targets are folded in sorted path order. A target whose chain switches to
// another declared target as its source, or whose postprocess step needs
// one, resolves that target first. The first structural error stops the
// build; nothing is returned alongside it.
//
// Build resets the session's naming counter, so the same recipe always gets
// the same temporary names.
func Build(r *recipe.Recipe, reg *ops.Registry, sess *Session) (*Graph, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if sess == nil {
		sess = NewSession("")
	}
	sess.reset()

	b := &builder{
		recipe:  r,
		reg:     reg,
		sess:    sess,
		g:       newGraph(),
		state:   make(map[string]visit),
		renamed: make(map[string]string),
	}
	for _, path := range r.Paths() {
		if _, err := b.target(path); err != nil {
			return nil, err
		}
	}
	b.finish()

	if err := checkCycles(b.g); err != nil {
		return nil, err
	}
	b.g.indexConsumers()
	return b.g, nil
}

type visit int

const (
	unvisited visit = iota
	visiting
	visited
)

type builder struct {
	recipe *recipe.Recipe
	reg    *ops.Registry
	sess   *Session
	g      *Graph

	state map[string]visit
	stack []string

	// renamed maps temp paths of promoted nodes to their target path.
	renamed map[string]string
}

// target folds the chain of path once and returns its terminal node.
func (b *builder) target(path string) (Key, error) {
	switch b.state[path] {
	case visited:
		return b.g.Targets[path], nil
	case visiting:
		for i, p := range b.stack {
			if p == path {
				return "", &CycleError{Targets: append([]string(nil), b.stack[i:]...)}
			}
		}
	}

	t, _ := b.recipe.Lookup(path)
	b.state[path] = visiting
	b.stack = append(b.stack, path)
	key, err := b.fold(t)
	b.stack = b.stack[:len(b.stack)-1]
	if err != nil {
		return "", err
	}
	b.state[path] = visited
	b.g.Targets[path] = key
	return key, nil
}

func (b *builder) fold(t *recipe.Target) (Key, error) {
	outStep := t.OutputStep()
	var (
		cur   Input
		chain []Key
	)

	for i, s := range t.Steps {
		step := i + 1
		switch s.Kind {
		case recipe.StepSource:
			cur = Input{Path: s.Source}
			chain = nil
			if _, declared := b.recipe.Lookup(s.Source); declared {
				k, err := b.target(s.Source)
				if err != nil {
					return "", err
				}
				cur.Node = k
			}

		case recipe.StepOperation:
			def, err := b.bind(t, step, s)
			if err != nil {
				return "", err
			}
			if !def.Arity.Allows(1) {
				return "", arityError(t, step, s, def, 1)
			}
			n, err := b.operation(t, s, cur, i == outStep)
			if err != nil {
				return "", err
			}
			cur = Input{Node: n.Key, Path: n.Output.Path}
			if i == outStep {
				cur.Path = t.Path
			}
			chain = append(chain, n.Key)

		case recipe.StepPostprocess:
			def, err := b.bind(t, step, s)
			if err != nil {
				return "", err
			}
			n, err := b.postprocess(t, step, s, def, cur)
			if err != nil {
				return "", err
			}
			cur = Input{Node: n.Key, Path: cur.Path}
			chain = append(chain, n.Key)
		}
	}

	b.g.Chains[t.Path] = chain
	return cur.Node, nil
}

// operation creates or reuses the node applying s to cur. When s writes
// the target, an existing node with a temporary output is promoted to the
// target path and one that already writes another target gets an alias.
func (b *builder) operation(t *recipe.Target, s recipe.Step, cur Input, output bool) (*Node, error) {
	spec := s.Spec()
	upstream := string(cur.Node)
	if upstream == "" {
		upstream = "source:" + cur.Path
	}
	key, err := nodeKey(ir.Map{
		"kind":     ir.String("operation"),
		"op":       ir.String(spec.Name),
		"args":     argsOf(spec),
		"upstream": ir.String(upstream),
	})
	if err != nil {
		return nil, err
	}

	n, exists := b.g.Nodes[key]
	switch {
	case !exists:
		n = b.add(&Node{Key: key, Op: spec.Clone(), Kind: KindNormal, Inputs: []Input{cur}})
		if output {
			n.Output = Artifact{Path: t.Path}
		} else {
			ext := b.reg.OutputExt(spec, cur.Path)
			n.Output = Artifact{Path: b.sess.TempPath(spec.Name, ext), Temp: true}
		}
	case output && n.Output.Temp:
		b.renamed[n.Output.Path] = t.Path
		n.Output = Artifact{Path: t.Path}
	case output && n.Output.Path != t.Path:
		n.Aliases = append(n.Aliases, t.Path)
	}
	return n, nil
}

// postprocess creates the node modifying the target artifact in place. The
// artifact path is part of the key, so a postprocess on an alias never
// touches the original.
func (b *builder) postprocess(t *recipe.Target, step int, s recipe.Step, def *ops.Definition, cur Input) (*Node, error) {
	needs := append([]string(nil), s.Needs...)
	sort.Strings(needs)
	needs = dedupStrings(needs)

	multi := def.Arity.Max != 1
	inputs := []Input{cur}
	var (
		needKeys []Key
		mutates  []string
		keyList  ir.List
	)
	for _, need := range needs {
		if _, declared := b.recipe.Lookup(need); !declared {
			return nil, &DependencyUnsatisfiedError{Target: t.Path, Step: step, Need: need}
		}
		k, err := b.target(need)
		if err != nil {
			return nil, err
		}
		needKeys = append(needKeys, k)
		keyList = append(keyList, ir.String(k))
		if multi {
			inputs = append(inputs, Input{Node: k, Path: need})
			if def.InPlace {
				mutates = append(mutates, need)
			}
		}
	}
	if !def.Arity.Allows(len(inputs)) {
		return nil, arityError(t, step, s, def, len(inputs))
	}

	spec := s.Spec()
	key, err := nodeKey(ir.Map{
		"kind":     ir.String("postprocess"),
		"op":       ir.String(spec.Name),
		"args":     argsOf(spec),
		"upstream": ir.String(cur.Node),
		"artifact": ir.String(cur.Path),
		"needs":    keyList,
	})
	if err != nil {
		return nil, err
	}
	if n, exists := b.g.Nodes[key]; exists {
		return n, nil
	}
	return b.add(&Node{
		Key:     key,
		Op:      spec.Clone(),
		Kind:    KindPostprocess,
		Inputs:  inputs,
		Output:  Artifact{Path: cur.Path},
		Mutates: mutates,
		Needs:   needKeys,
	}), nil
}

func (b *builder) add(n *Node) *Node {
	n.Index = len(b.g.Order)
	b.g.Nodes[n.Key] = n
	b.g.Order = append(b.g.Order, n.Key)
	return n
}

// bind checks the operation name and arguments of s against the registry.
func (b *builder) bind(t *recipe.Target, step int, s recipe.Step) (*ops.Definition, error) {
	bound, err := b.reg.Bind(s.Spec())
	if err == nil {
		return bound.Def, nil
	}
	var (
		unknown *ops.UnknownOperationError
		argErr  *ops.ArgumentError
	)
	switch {
	case errors.As(err, &unknown):
		unknown.Target, unknown.Step = t.Path, step
		return nil, unknown
	case errors.As(err, &argErr):
		return nil, &recipe.ConfigError{
			Target:  t.Path,
			Step:    step,
			Field:   "args",
			Message: argErr.Error(),
			Line:    s.Line,
		}
	default:
		return nil, err
	}
}

// finish points inputs at promoted paths and orders readers of every
// artifact before the nodes rewriting it.
func (b *builder) finish() {
	readers := make(map[Input][]Key)
	for _, k := range b.g.Order {
		n := b.g.Nodes[k]
		for i, in := range n.Inputs {
			if p, ok := b.renamed[in.Path]; ok {
				n.Inputs[i].Path = p
			}
		}
		for _, in := range n.Inputs {
			if in.Node != "" {
				readers[in] = append(readers[in], k)
			}
		}
	}

	writers := make(map[Input][]Key)
	for _, k := range b.g.Order {
		for _, pre := range preImages(b.g.Nodes[k]) {
			writers[pre] = append(writers[pre], k)
		}
	}

	for _, k := range b.g.Order {
		w := b.g.Nodes[k]
		after := make(map[Key]bool)
		for _, pre := range preImages(w) {
			rivals := make(map[Key]bool)
			for _, other := range writers[pre] {
				rivals[other] = true
			}
			for _, r := range readers[pre] {
				switch {
				case r == k:
				case rivals[r] && b.g.Nodes[r].Index > w.Index:
					// Rival writers go in creation order.
				default:
					after[r] = true
				}
			}
		}
		for r := range after {
			w.After = append(w.After, r)
		}
		sort.Slice(w.After, func(i, j int) bool { return w.After[i] < w.After[j] })
	}
}

// preImages returns the inputs a node rewrites in place.
func preImages(n *Node) []Input {
	if n.Kind != KindPostprocess {
		return nil
	}
	pre := []Input{n.Inputs[0]}
	for _, in := range n.Inputs[1:] {
		for _, m := range n.Mutates {
			if in.Path == m {
				pre = append(pre, in)
			}
		}
	}
	return pre
}

func nodeKey(fields ir.Map) (Key, error) {
	k, err := ir.NodeKey(fields)
	if err != nil {
		return "", err
	}
	return Key(k), nil
}

func argsOf(spec ir.OperationSpec) ir.Map {
	if spec.Args == nil {
		return ir.Map{}
	}
	return spec.Args
}

func arityError(t *recipe.Target, step int, s recipe.Step, def *ops.Definition, got int) error {
	return &recipe.ConfigError{
		Target:  t.Path,
		Step:    step,
		Field:   s.Kind.String(),
		Message: fmt.Sprintf("%s takes %s inputs, got %d", def.Name, def.Arity, got),
		Line:    s.Line,
	}
}
