package graph

import (
	"fmt"
	"slices"
)

// Region bundles a region node with its boundary nodes.
type Region struct {
	Node   NodeID
	Input  NodeID
	Output NodeID
}

// In returns output port i of the region's Input node.
func (r Region) In(i int) Port {
	return Port{Node: r.Input, Index: i}
}

// Out returns input port i of the region's Output node.
func (r Region) Out(i int) Port {
	return Port{Node: r.Output, Index: i}
}

// In returns input port i of a node.
func In(id NodeID, i int) Port {
	return Port{Node: id, Index: i}
}

// Out returns output port i of a node.
func Out(id NodeID, i int) Port {
	return Port{Node: id, Index: i}
}

func allowedChild(parent, child NodeKind) bool {
	switch parent {
	case KindModule:
		return child == KindFuncDefn
	case KindFuncDefn, KindDFG, KindCase:
		switch child {
		case KindInput, KindOutput, KindOp, KindCall, KindConst, KindDFG, KindConditional:
			return true
		}
	case KindConditional:
		return child == KindCase
	}
	return false
}

// insert places n as the last child of parent.
func (g *Graph) insert(parent NodeID, n *Node) (NodeID, error) {
	p := g.Node(parent)
	if p == nil {
		return NoNodeID, fmt.Errorf("%w: parent %d does not exist", ErrGraph, parent)
	}
	if !allowedChild(p.Kind, n.Kind) {
		return NoNodeID, fmt.Errorf("%w: %s cannot contain %s", ErrGraph, p.Kind, n.Kind)
	}
	n.Parent = parent
	if n.Callee == 0 && n.Kind != KindCall {
		n.Callee = NoNodeID
	}
	id := g.alloc(n)
	p.children = append(p.children, id)
	return id, nil
}

func (g *Graph) mustInsert(parent NodeID, n *Node) NodeID {
	id, err := g.insert(parent, n)
	if err != nil {
		panic(err)
	}
	return id
}

func (g *Graph) addRegionIO(region NodeID, sig Signature) Region {
	in := g.mustInsert(region, &Node{Kind: KindInput, Sig: Signature{Outputs: slices.Clone(sig.Inputs)}})
	out := g.mustInsert(region, &Node{Kind: KindOutput, Sig: Signature{Inputs: slices.Clone(sig.Outputs)}})
	return Region{Node: region, Input: in, Output: out}
}

// AddFunc appends a top-level function definition with its boundary nodes.
func (g *Graph) AddFunc(name string, sig Signature) Region {
	fn := g.mustInsert(g.root, &Node{Kind: KindFuncDefn, Name: name, Sig: sig.clone()})
	return g.addRegionIO(fn, sig)
}

// AddOp appends an operation node to a region.
func (g *Graph) AddOp(parent NodeID, op Op, sig Signature) NodeID {
	return g.mustInsert(parent, &Node{Kind: KindOp, Op: op, Sig: sig.clone()})
}

// AddCall appends a call to callee; ports follow the callee signature.
func (g *Graph) AddCall(parent, callee NodeID) NodeID {
	fn := g.Node(callee)
	if fn == nil || fn.Kind != KindFuncDefn {
		panic(fmt.Errorf("%w: call target %d is not a function", ErrGraph, callee))
	}
	return g.mustInsert(parent, &Node{Kind: KindCall, Callee: callee, Sig: fn.Sig.clone()})
}

// AddConst appends a constant with a single output.
func (g *Graph) AddConst(parent NodeID, v ConstValue) NodeID {
	return g.mustInsert(parent, &Node{Kind: KindConst, Const: v, Sig: Signature{Outputs: []Type{v.Type}}})
}

// AddDFG appends a nested dataflow region.
func (g *Graph) AddDFG(parent NodeID, sig Signature) Region {
	dfg := g.mustInsert(parent, &Node{Kind: KindDFG, Sig: sig.clone()})
	return g.addRegionIO(dfg, sig)
}

// AddConditional appends a two-way conditional. The node takes a boolean
// predicate followed by others; case 0 runs when the predicate is false.
func (g *Graph) AddConditional(parent NodeID, others, outputs []Type) (NodeID, [2]Region) {
	inputs := append([]Type{TypeBool}, others...)
	cond := g.mustInsert(parent, &Node{Kind: KindConditional, Sig: Sig(inputs, slices.Clone(outputs))})
	var cases [2]Region
	caseSig := Sig(slices.Clone(others), slices.Clone(outputs))
	for i := range cases {
		c := g.mustInsert(cond, &Node{Kind: KindCase, Sig: caseSig.clone()})
		cases[i] = g.addRegionIO(c, caseSig)
	}
	return cond, cases
}

// Connect adds a dataflow edge between two sibling ports.
func (g *Graph) Connect(src, dst Port) error {
	from, to := g.Node(src.Node), g.Node(dst.Node)
	if from == nil || to == nil {
		return fmt.Errorf("%w: edge %s -> %s references a missing node", ErrGraph, src, dst)
	}
	if src.Index < 0 || src.Index >= len(from.outputs) {
		return fmt.Errorf("%w: node %d has no output %d", ErrGraph, src.Node, src.Index)
	}
	if dst.Index < 0 || dst.Index >= len(to.inputs) {
		return fmt.Errorf("%w: node %d has no input %d", ErrGraph, dst.Node, dst.Index)
	}
	if from.Parent != to.Parent {
		return fmt.Errorf("%w: edge %s -> %s crosses a region boundary", ErrGraph, src, dst)
	}
	if st, dt := from.Sig.Outputs[src.Index], to.Sig.Inputs[dst.Index]; st != dt {
		return fmt.Errorf("%w: edge %s -> %s connects %s to %s", ErrGraph, src, dst, st, dt)
	}
	if to.inputs[dst.Index].valid() {
		return fmt.Errorf("%w: input %s already connected", ErrGraph, dst)
	}
	to.inputs[dst.Index] = src
	from.outputs[src.Index] = append(from.outputs[src.Index], dst)
	return nil
}

// Disconnect removes the edge feeding dst, if any.
func (g *Graph) Disconnect(dst Port) {
	to := g.Node(dst.Node)
	if to == nil || dst.Index < 0 || dst.Index >= len(to.inputs) {
		return
	}
	src := to.inputs[dst.Index]
	to.inputs[dst.Index] = noPort
	if !src.valid() {
		return
	}
	from := g.Node(src.Node)
	if from == nil {
		return
	}
	from.outputs[src.Index] = slices.DeleteFunc(from.outputs[src.Index], func(p Port) bool {
		return p == dst
	})
}
