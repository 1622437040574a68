package graph

import "github.com/akatz-ai/stepgraph/internal/types"

// Name returns the workflow name.
func (p *Plan) Name() string { return p.name }

// Len returns the number of steps.
func (p *Plan) Len() int { return len(p.nodes) }

// Layers returns step names grouped into layers, each in declaration order.
func (p *Plan) Layers() [][]string {
	out := make([][]string, len(p.layers))
	for i, layer := range p.layers {
		out[i] = p.namesOf(layer)
	}
	return out
}

// LayerIDs returns the layers as step ids. Callers must not modify the result.
func (p *Plan) LayerIDs() [][]int { return p.layers }

// ID returns the integer id of the named step.
func (p *Plan) ID(name string) (int, bool) {
	id, ok := p.index[name]
	return id, ok
}

// Spec returns the step with the given id.
func (p *Plan) Spec(id int) types.StepSpec { return p.nodes[id].spec }

// DependencyIDs returns the direct dependencies of id. Callers must not modify the result.
func (p *Plan) DependencyIDs(id int) []int { return p.nodes[id].deps }

// LayerIndex returns the zero-based layer of id.
func (p *Plan) LayerIndex(id int) int { return p.nodes[id].layer }

// Steps returns the steps in declaration order.
func (p *Plan) Steps() []types.StepSpec {
	out := make([]types.StepSpec, len(p.nodes))
	for i := range p.nodes {
		out[i] = p.nodes[i].spec
	}
	return out
}

// Step returns the named step.
func (p *Plan) Step(name string) (types.StepSpec, bool) {
	id, ok := p.index[name]
	if !ok {
		return types.StepSpec{}, false
	}
	return p.nodes[id].spec, true
}

// LayerOf returns the layer index of the named step, or -1.
func (p *Plan) LayerOf(name string) int {
	id, ok := p.index[name]
	if !ok {
		return -1
	}
	return p.nodes[id].layer
}

// Dependencies returns the direct dependencies of name in declaration order.
func (p *Plan) Dependencies(name string) []string {
	id, ok := p.index[name]
	if !ok {
		return nil
	}
	return p.namesOf(p.nodes[id].deps)
}

// Dependents returns the steps that directly depend on name.
func (p *Plan) Dependents(name string) []string {
	id, ok := p.index[name]
	if !ok {
		return nil
	}
	return p.namesOf(p.nodes[id].succ)
}

// Ancestors returns every transitive dependency of name in declaration order.
func (p *Plan) Ancestors(name string) []string {
	id, ok := p.index[name]
	if !ok {
		return nil
	}
	return p.namesOfSet(p.ancestorSet(id))
}

// Descendants returns every step reachable from name through dependents,
// in declaration order. These are the steps skipped if name fails.
func (p *Plan) Descendants(name string) []string {
	id, ok := p.index[name]
	if !ok {
		return nil
	}
	return p.namesOfSet(p.descendantSet(id))
}

func (p *Plan) namesOf(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = p.nodes[id].spec.Name
	}
	return out
}

func (p *Plan) namesOfSet(set map[int]bool) []string {
	out := make([]string, 0, len(set))
	for id := range p.nodes {
		if set[id] {
			out = append(out, p.nodes[id].spec.Name)
		}
	}
	return out
}
