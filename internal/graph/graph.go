// Package graph turns a workflow definition into an execution plan: an
// acyclic dependency graph over integer step ids, partitioned into layers.
package graph

import (
	"slices"

	serrors "github.com/akatz-ai/stepgraph/internal/errors"
	"github.com/akatz-ai/stepgraph/internal/template"
	"github.com/akatz-ai/stepgraph/internal/types"
)

// Options controls optional checks.
type Options struct {
	// StrictReferences requires every {{step.output}} reference to name a
	// transitive dependency of the referencing step.
	StrictReferences bool
}

// DefaultOptions enables strict reference checking.
func DefaultOptions() Options {
	return Options{StrictReferences: true}
}

// node is one step in the arena. Ids are declaration indexes.
type node struct {
	spec  types.StepSpec
	deps  []int // ascending, deduplicated
	succ  []int // ascending
	refs  []string
	layer int
}

// Plan is an immutable, validated execution plan. Safe for concurrent reads.
type Plan struct {
	name   string
	nodes  []node
	index  map[string]int
	layers [][]int
}

// Validate builds the plan and returns only its layers.
func Validate(def *types.WorkflowDefinition, opts Options) ([][]string, error) {
	p, err := Build(def, opts)
	if err != nil {
		return nil, err
	}
	return p.Layers(), nil
}

// Build validates def and computes its layers.
//
// Errors are returned as *errors.ValidationErrors. Structural problems
// (duplicate names, dangling dependencies, unknown template references) are
// all reported together; cycle and reference-scope checks only run once the
// structure is sound.
func Build(def *types.WorkflowDefinition, opts Options) (*Plan, error) {
	var verrs serrors.ValidationErrors

	p := &Plan{
		name:  def.Name,
		index: make(map[string]int, len(def.Steps)),
	}

	firstSeen := make(map[string]int, len(def.Steps))
	for i, s := range def.Steps {
		if j, dup := firstSeen[s.Name]; dup {
			verrs.Add(serrors.DuplicateStep(s.Name, j, i))
			continue
		}
		firstSeen[s.Name] = i
		p.index[s.Name] = len(p.nodes)
		p.nodes = append(p.nodes, node{spec: s, layer: -1})
	}

	names := make([]string, len(p.nodes))
	for id := range p.nodes {
		names[id] = p.nodes[id].spec.Name
	}

	for id := range p.nodes {
		n := &p.nodes[id]
		for _, dep := range n.spec.DependsOn {
			depID, ok := p.index[dep]
			if !ok {
				verrs.Add(serrors.DanglingDependency(n.spec.Name, dep, suggest(dep, names)))
				continue
			}
			if !slices.Contains(n.deps, depID) {
				n.deps = append(n.deps, depID)
			}
		}
		slices.Sort(n.deps)

		n.refs = template.References(n.spec.Prompt)
		for _, ref := range n.refs {
			if _, ok := p.index[ref]; !ok {
				verrs.Add(serrors.UnknownReference(n.spec.Name, ref, suggest(ref, names)))
			}
		}
	}
	if verrs.HasErrors() {
		return nil, &verrs
	}

	for id := range p.nodes {
		for _, dep := range p.nodes[id].deps {
			p.nodes[dep].succ = append(p.nodes[dep].succ, id)
		}
	}

	if cycle := p.layer(); cycle != nil {
		verrs.Add(serrors.CycleDetected(cycle))
		return nil, &verrs
	}

	if opts.StrictReferences {
		for id := range p.nodes {
			n := &p.nodes[id]
			if len(n.refs) == 0 {
				continue
			}
			ancestors := p.ancestorSet(id)
			for _, ref := range n.refs {
				if !ancestors[p.index[ref]] {
					verrs.Add(serrors.UndeclaredReference(n.spec.Name, ref))
				}
			}
		}
		if verrs.HasErrors() {
			return nil, &verrs
		}
	}

	return p, nil
}

// layer runs Kahn's algorithm. Each layer holds the nodes whose in-degree
// reached zero together, ordered by declaration. If nodes remain, it
// returns a cycle among them.
func (p *Plan) layer() []string {
	indeg := make([]int, len(p.nodes))
	for id := range p.nodes {
		indeg[id] = len(p.nodes[id].deps)
	}

	var current []int
	for id := range p.nodes {
		if indeg[id] == 0 {
			current = append(current, id)
		}
	}

	placed := 0
	for len(current) > 0 {
		depth := len(p.layers)
		for _, id := range current {
			p.nodes[id].layer = depth
		}
		p.layers = append(p.layers, current)
		placed += len(current)

		var next []int
		for _, id := range current {
			for _, s := range p.nodes[id].succ {
				indeg[s]--
				if indeg[s] == 0 {
					next = append(next, s)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if placed == len(p.nodes) {
		return nil
	}
	return p.findCycle()
}

// findCycle returns a dependency cycle among unplaced nodes, following
// depends_on edges, e.g. [a b a] when a depends on b and b on a.
func (p *Plan) findCycle() []string {
	// 0 = unvisited, 1 = visiting, 2 = visited
	state := make([]int, len(p.nodes))
	parent := make([]int, len(p.nodes))

	var cycle []int
	var dfs func(id int) bool
	dfs = func(id int) bool {
		state[id] = 1
		for _, dep := range p.nodes[id].deps {
			if state[dep] == 1 {
				cycle = []int{dep}
				for cur := id; cur != dep; cur = parent[cur] {
					cycle = append([]int{cur}, cycle...)
				}
				cycle = append([]int{dep}, cycle...)
				return true
			}
			if state[dep] == 0 {
				parent[dep] = id
				if dfs(dep) {
					return true
				}
			}
		}
		state[id] = 2
		return false
	}

	for id := range p.nodes {
		if p.nodes[id].layer < 0 && state[id] == 0 && dfs(id) {
			names := make([]string, len(cycle))
			for i, c := range cycle {
				names[i] = p.nodes[c].spec.Name
			}
			return names
		}
	}
	return nil
}

func (p *Plan) ancestorSet(id int) map[int]bool {
	seen := make(map[int]bool)
	stack := append([]int(nil), p.nodes[id].deps...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, p.nodes[cur].deps...)
	}
	return seen
}

func (p *Plan) descendantSet(id int) map[int]bool {
	seen := make(map[int]bool)
	stack := append([]int(nil), p.nodes[id].succ...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, p.nodes[cur].succ...)
	}
	return seen
}
