package graph

import (
	"fmt"
	"slices"
)

// RemoveSubtree deletes id and all of its descendants, dropping every edge
// that touches them.
func (g *Graph) RemoveSubtree(id NodeID) error {
	n := g.Node(id)
	if n == nil {
		return fmt.Errorf("%w: node %d does not exist", ErrGraph, id)
	}
	if id == g.root {
		return fmt.Errorf("%w: cannot remove the module root", ErrGraph)
	}
	var doomed []NodeID
	g.Walk(id, func(cur NodeID) bool {
		doomed = append(doomed, cur)
		return true
	})
	for _, cur := range doomed {
		g.detach(cur)
	}
	if p := g.Node(n.Parent); p != nil {
		p.children = slices.DeleteFunc(p.children, func(c NodeID) bool { return c == id })
	}
	for _, cur := range doomed {
		g.nodes[cur].removed = true
		g.nodes[cur].children = nil
	}
	return nil
}

// detach drops all edges incident to a node.
func (g *Graph) detach(id NodeID) {
	n := g.nodes[id]
	for i := range n.inputs {
		g.Disconnect(Port{Node: id, Index: i})
	}
	for i := range n.outputs {
		for _, dst := range slices.Clone(n.outputs[i]) {
			g.Disconnect(dst)
		}
	}
}

// InlineCall replaces a call node with a fresh copy of its callee's body.
// The copy is spliced into the caller's region at the position of the call:
// values fed into the call flow into whatever consumed the callee's Input
// ports, and consumers of the call's outputs read whatever fed the callee's
// Output ports. The callee itself is left untouched.
func (g *Graph) InlineCall(call NodeID) error {
	c := g.Node(call)
	if c == nil || c.Kind != KindCall {
		return fmt.Errorf("%w: node %d is not a call", ErrGraph, call)
	}
	callee := g.Node(c.Callee)
	if callee == nil || callee.Kind != KindFuncDefn {
		return fmt.Errorf("%w: call %d targets missing function %d", ErrGraph, call, c.Callee)
	}
	calleeIn, calleeOut, err := g.RegionIO(callee.ID)
	if err != nil {
		return err
	}
	parent := g.mustNode(c.Parent)
	pos := slices.Index(parent.children, call)

	// Copy the body, remembering how old ids map to fresh ones.
	mapping := make(map[NodeID]NodeID)
	body := slices.Clone(callee.children[2:])
	top := make([]NodeID, 0, len(body))
	for _, b := range body {
		top = append(top, g.copySubtree(b, c.Parent, mapping))
	}
	// copySubtree appended the fresh nodes; move them to the call's position.
	parent.children = parent.children[:len(parent.children)-len(top)]
	parent.children = slices.Insert(parent.children, pos, top...)

	// Rewire edges inside the copy. Edges from the callee's Input node are
	// redirected to whatever fed the call.
	olds := make([]NodeID, 0, len(mapping))
	for old := range mapping {
		olds = append(olds, old)
	}
	slices.Sort(olds)
	for _, old := range olds {
		orig := g.nodes[old]
		for i, src := range orig.inputs {
			if !src.valid() {
				continue
			}
			dst := Port{Node: mapping[old], Index: i}
			var from Port
			switch {
			case src.Node == calleeIn:
				var ok bool
				from, ok = g.Source(Port{Node: call, Index: src.Index})
				if !ok {
					return fmt.Errorf("%w: call %d input %d is not connected", ErrGraph, call, src.Index)
				}
			default:
				mapped, ok := mapping[src.Node]
				if !ok {
					return fmt.Errorf("%w: edge into node %d leaves the callee body", ErrGraph, old)
				}
				from = Port{Node: mapped, Index: src.Index}
			}
			if err := g.Connect(from, dst); err != nil {
				return err
			}
		}
	}

	// Consumers of the call's outputs now read from the copied producers.
	for j := range c.outputs {
		src, ok := g.Source(Port{Node: calleeOut, Index: j})
		if !ok {
			return fmt.Errorf("%w: function %q output %d is not connected", ErrGraph, callee.Name, j)
		}
		var from Port
		if src.Node == calleeIn {
			from, ok = g.Source(Port{Node: call, Index: src.Index})
			if !ok {
				return fmt.Errorf("%w: call %d input %d is not connected", ErrGraph, call, src.Index)
			}
		} else {
			from = Port{Node: mapping[src.Node], Index: src.Index}
		}
		for _, dst := range slices.Clone(c.outputs[j]) {
			g.Disconnect(dst)
			if err := g.Connect(from, dst); err != nil {
				return err
			}
		}
	}
	return g.RemoveSubtree(call)
}

// copySubtree clones id (and its descendants) under parent without edges.
func (g *Graph) copySubtree(id, parent NodeID, mapping map[NodeID]NodeID) NodeID {
	n := g.nodes[id]
	fresh := &Node{
		Kind:   n.Kind,
		Name:   n.Name,
		Sig:    n.Sig.clone(),
		Op:     n.Op,
		Callee: n.Callee,
		Const:  n.Const,
	}
	newID := g.mustInsert(parent, fresh)
	mapping[id] = newID
	for _, child := range slices.Clone(n.children) {
		g.copySubtree(child, newID, mapping)
	}
	return newID
}

// Clone returns a deep copy of the graph. Node ids are preserved.
func (g *Graph) Clone() *Graph {
	out := &Graph{root: g.root, nodes: make([]*Node, len(g.nodes))}
	for i, n := range g.nodes {
		if n == nil {
			continue
		}
		cp := *n
		cp.Sig = n.Sig.clone()
		cp.children = slices.Clone(n.children)
		cp.inputs = slices.Clone(n.inputs)
		cp.outputs = make([][]Port, len(n.outputs))
		for j := range n.outputs {
			cp.outputs[j] = slices.Clone(n.outputs[j])
		}
		out.nodes[i] = &cp
	}
	return out
}

// MoveBefore repositions id right before anchor; both must be siblings.
func (g *Graph) MoveBefore(id, anchor NodeID) error {
	n, a := g.Node(id), g.Node(anchor)
	if n == nil || a == nil || n.Parent != a.Parent || id == anchor {
		return fmt.Errorf("%w: cannot move %d before %d", ErrGraph, id, anchor)
	}
	p := g.mustNode(n.Parent)
	p.children = slices.DeleteFunc(p.children, func(c NodeID) bool { return c == id })
	pos := slices.Index(p.children, anchor)
	p.children = slices.Insert(p.children, pos, id)
	return nil
}

// ReplaceUses moves every consumer of from over to to.
func (g *Graph) ReplaceUses(from, to Port) error {
	for _, dst := range g.Targets(from) {
		g.Disconnect(dst)
		if err := g.Connect(to, dst); err != nil {
			return err
		}
	}
	return nil
}

// Reconnect moves the source of old onto dst; old is left unconnected.
func (g *Graph) Reconnect(old, dst Port) error {
	src, ok := g.Source(old)
	if !ok {
		return fmt.Errorf("%w: input %s is not connected", ErrGraph, old)
	}
	g.Disconnect(old)
	return g.Connect(src, dst)
}
