package graph

import (
	"fmt"
	"slices"

	"hugrqir/internal/diag"
)

// Validate checks structural invariants and reports findings into r.
// It never mutates the graph.
func (g *Graph) Validate(r diag.Reporter) {
	if r == nil {
		r = diag.NopReporter{}
	}
	v := validator{g: g, r: r}
	root := g.Node(g.root)
	if root == nil || root.Kind != KindModule {
		v.errorf(diag.GraphBadRoot, g.root, "root node is not a module")
		return
	}
	g.Walk(g.root, func(id NodeID) bool {
		v.checkNode(id)
		return true
	})
}

// Check runs Validate and converts error diagnostics into one error.
func (g *Graph) Check() error {
	bag := diag.NewBag(100)
	g.Validate(diag.BagReporter{Bag: bag})
	if !bag.HasErrors() {
		return nil
	}
	bag.Sort()
	return fmt.Errorf("%w: %w", ErrGraph, bag.Err())
}

type validator struct {
	g *Graph
	r diag.Reporter
}

func (v *validator) errorf(code diag.Code, id NodeID, format string, args ...any) {
	v.r.Report(code, diag.SevError, uint32(id), fmt.Sprintf(format, args...), nil)
}

func (v *validator) checkNode(id NodeID) {
	n := v.g.nodes[id]
	for _, child := range n.children {
		ck := v.g.nodes[child].Kind
		if !allowedChild(n.Kind, ck) {
			v.errorf(diag.GraphBadParent, child, "%s cannot be placed inside %s", ck, n.Kind)
		}
	}
	if n.Kind.IsRegion() && v.checkRegion(n) {
		if _, err := v.g.Order(id); err != nil {
			v.errorf(diag.GraphDataflowCycle, id, "dataflow region contains a cycle")
		}
	}
	switch n.Kind {
	case KindCall:
		v.checkCall(n)
	case KindConst:
		v.checkConst(n)
	case KindConditional:
		v.checkConditional(n)
	}
	if n.Kind.HasPorts() {
		v.checkPorts(n)
	}
}

func (v *validator) checkRegion(n *Node) bool {
	if len(n.children) < 2 {
		v.errorf(diag.GraphRegionShape, n.ID, "%s region lacks Input/Output nodes", n.Kind)
		return false
	}
	in, out := v.g.nodes[n.children[0]], v.g.nodes[n.children[1]]
	if in.Kind != KindInput || out.Kind != KindOutput {
		v.errorf(diag.GraphRegionShape, n.ID, "%s region must start with Input and Output", n.Kind)
		return false
	}
	if !slices.Equal(in.Sig.Outputs, n.Sig.Inputs) {
		v.errorf(diag.GraphRegionShape, in.ID, "region inputs %v do not match signature %s", in.Sig.Outputs, n.Sig)
	}
	if !slices.Equal(out.Sig.Inputs, n.Sig.Outputs) {
		v.errorf(diag.GraphRegionShape, out.ID, "region outputs %v do not match signature %s", out.Sig.Inputs, n.Sig)
	}
	for _, child := range n.children[2:] {
		if k := v.g.nodes[child].Kind; k == KindInput || k == KindOutput {
			v.errorf(diag.GraphRegionShape, child, "extra %s node inside region %d", k, n.ID)
		}
	}
	return true
}

func (v *validator) checkPorts(n *Node) {
	for i, src := range n.inputs {
		if !src.valid() {
			v.errorf(diag.GraphUnconnectedPort, n.ID, "input %d has no source", i)
			continue
		}
		from := v.g.Node(src.Node)
		if from == nil {
			v.errorf(diag.GraphUnconnectedPort, n.ID, "input %d is fed by removed node %d", i, src.Node)
			continue
		}
		if from.Parent != n.Parent {
			v.errorf(diag.GraphCrossRegionEdge, n.ID, "input %d is fed from outside the region", i)
		}
		if from.Sig.Outputs[src.Index] != n.Sig.Inputs[i] {
			v.errorf(diag.GraphTypeMismatch, n.ID, "input %d expects %s, got %s", i, n.Sig.Inputs[i], from.Sig.Outputs[src.Index])
		}
	}
	for i, targets := range n.outputs {
		if n.Sig.Outputs[i].Linear() && len(targets) != 1 {
			v.errorf(diag.GraphLinearity, n.ID, "output %d of type %s has %d consumers", i, n.Sig.Outputs[i], len(targets))
		}
	}
}

func (v *validator) checkCall(n *Node) {
	callee := v.g.Node(n.Callee)
	if callee == nil || callee.Kind != KindFuncDefn {
		v.errorf(diag.GraphDanglingCallee, n.ID, "call target %d is not a function", n.Callee)
		return
	}
	if !callee.Sig.Equal(n.Sig) {
		v.errorf(diag.GraphCallSignature, n.ID, "call signature %s differs from %q %s", n.Sig, callee.Name, callee.Sig)
	}
}

func (v *validator) checkConst(n *Node) {
	if len(n.Sig.Outputs) != 1 || n.Sig.Outputs[0] != n.Const.Type {
		v.errorf(diag.GraphBadConst, n.ID, "constant of type %s has outputs %v", n.Const.Type, n.Sig.Outputs)
	}
	switch n.Const.Type {
	case TypeBool, TypeInt, TypeFloat, TypeString:
	default:
		v.errorf(diag.GraphBadConst, n.ID, "constants of type %s are not supported", n.Const.Type)
	}
}

func (v *validator) checkConditional(n *Node) {
	if len(n.Sig.Inputs) == 0 || n.Sig.Inputs[0] != TypeBool {
		v.errorf(diag.GraphConditionalShape, n.ID, "conditional predicate must be bool")
		return
	}
	if len(n.children) != 2 {
		v.errorf(diag.GraphConditionalShape, n.ID, "conditional has %d cases, want 2", len(n.children))
		return
	}
	want := Signature{Inputs: n.Sig.Inputs[1:], Outputs: n.Sig.Outputs}
	for _, c := range n.children {
		if !v.g.nodes[c].Sig.Equal(want) {
			v.errorf(diag.GraphConditionalShape, c, "case signature %s, want %s", v.g.nodes[c].Sig, want)
		}
	}
}
