// Package graph holds the hierarchical dataflow program graph that the
// lowering pipeline consumes and rewrites in place.
//
// All nodes live in one arena owned by Graph and are addressed by NodeID.
// Ids are never reused: removing a node leaves a tombstone, so passes can
// hold ids across structural edits (inlining copies callee bodies while the
// original call node is still wired).
//
// Containment is an ordered parent/children relation. Region nodes
// (FuncDefn, DFG, Case) always start with an Input and an Output child.
// Dataflow edges only connect siblings.
package graph

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"fortio.org/safecast"
)

// ErrGraph classifies every structural error reported by this package.
var ErrGraph = errors.New("malformed program graph")

type NodeID uint32

const NoNodeID NodeID = math.MaxUint32

// NodeKind enumerates node kinds in the program graph.
type NodeKind uint8

const (
	KindModule NodeKind = iota
	KindFuncDefn
	KindInput
	KindOutput
	KindOp
	KindCall
	KindConst
	KindDFG
	KindConditional
	KindCase
)

var kindNames = [...]string{
	KindModule:      "Module",
	KindFuncDefn:    "FuncDefn",
	KindInput:       "Input",
	KindOutput:      "Output",
	KindOp:          "Op",
	KindCall:        "Call",
	KindConst:       "Const",
	KindDFG:         "DFG",
	KindConditional: "Conditional",
	KindCase:        "Case",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind converts a kind name back to NodeKind.
func ParseKind(s string) (NodeKind, error) {
	for k := KindModule; k <= KindCase; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown node kind %q", ErrGraph, s)
}

// IsRegion reports whether nodes of this kind own an Input/Output pair.
func (k NodeKind) IsRegion() bool {
	return k == KindFuncDefn || k == KindDFG || k == KindCase
}

// HasPorts reports whether nodes of this kind take part in dataflow.
func (k NodeKind) HasPorts() bool {
	switch k {
	case KindModule, KindFuncDefn, KindCase:
		return false
	}
	return true
}

// Op identifies an operation and its static arguments.
type Op struct {
	Dialect string
	Name    string
	// Tag labels a recorded output.
	Tag string
	// Angle names the symbolic source of a rotation angle. Informational only.
	Angle string
}

// Key returns the (dialect, name) pair used for dispatch.
func (o Op) Key() OpKey {
	return OpKey{Dialect: o.Dialect, Name: o.Name}
}

// OpKey identifies an operation kind within a dialect.
type OpKey struct {
	Dialect string
	Name    string
}

func (k OpKey) String() string {
	return k.Dialect + "." + k.Name
}

// ConstValue is the payload of a Const node.
type ConstValue struct {
	Type  Type
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// Port addresses one input or output slot of a node.
type Port struct {
	Node  NodeID
	Index int
}

var noPort = Port{Node: NoNodeID, Index: -1}

func (p Port) valid() bool {
	return p.Node != NoNodeID
}

func (p Port) String() string {
	return fmt.Sprintf("%d:%d", p.Node, p.Index)
}

// Node is a single arena slot.
type Node struct {
	ID     NodeID
	Kind   NodeKind
	Parent NodeID

	// Name is set on FuncDefn nodes.
	Name string
	// Sig holds port types for dataflow nodes and the region type for
	// FuncDefn and Case nodes.
	Sig    Signature
	Op     Op
	Callee NodeID
	Const  ConstValue

	children []NodeID
	inputs   []Port   // source of each input port
	outputs  [][]Port // targets of each output port
	removed  bool
}

// Graph is the arena of program graph nodes.
type Graph struct {
	nodes []*Node
	root  NodeID
}

// New returns a graph that only contains its Module root.
func New() *Graph {
	g := &Graph{}
	root := g.alloc(&Node{Kind: KindModule, Parent: NoNodeID, Callee: NoNodeID})
	g.root = root
	return g
}

func (g *Graph) alloc(n *Node) NodeID {
	id, err := safecast.Conv[NodeID](len(g.nodes))
	if err != nil || id == NoNodeID {
		panic(fmt.Errorf("node id overflow: %w", err))
	}
	n.ID = id
	if n.Kind.HasPorts() {
		n.inputs = make([]Port, len(n.Sig.Inputs))
		for i := range n.inputs {
			n.inputs[i] = noPort
		}
		n.outputs = make([][]Port, len(n.Sig.Outputs))
	}
	g.nodes = append(g.nodes, n)
	return id
}

// Root returns the Module node.
func (g *Graph) Root() NodeID {
	return g.root
}

// Node returns the live node with the given id or nil.
func (g *Graph) Node(id NodeID) *Node {
	if int(id) >= len(g.nodes) {
		return nil
	}
	n := g.nodes[id]
	if n == nil || n.removed {
		return nil
	}
	return n
}

// Contains reports whether id refers to a live node.
func (g *Graph) Contains(id NodeID) bool {
	return g.Node(id) != nil
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	count := 0
	for _, n := range g.nodes {
		if n != nil && !n.removed {
			count++
		}
	}
	return count
}

// Kind returns the kind of a live node; it panics on a dead id.
func (g *Graph) Kind(id NodeID) NodeKind {
	return g.mustNode(id).Kind
}

func (g *Graph) mustNode(id NodeID) *Node {
	n := g.Node(id)
	if n == nil {
		panic(fmt.Errorf("%w: node %d does not exist", ErrGraph, id))
	}
	return n
}

// Parent returns the container of id.
func (g *Graph) Parent(id NodeID) NodeID {
	n := g.Node(id)
	if n == nil {
		return NoNodeID
	}
	return n.Parent
}

// Children returns a copy of the ordered child list.
func (g *Graph) Children(id NodeID) []NodeID {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	return slices.Clone(n.children)
}

// RegionIO returns the Input and Output children of a region.
func (g *Graph) RegionIO(region NodeID) (in, out NodeID, err error) {
	n := g.Node(region)
	if n == nil || !n.Kind.IsRegion() {
		return NoNodeID, NoNodeID, fmt.Errorf("%w: node %d is not a region", ErrGraph, region)
	}
	if len(n.children) < 2 {
		return NoNodeID, NoNodeID, fmt.Errorf("%w: region %d lacks Input/Output", ErrGraph, region)
	}
	in, out = n.children[0], n.children[1]
	if g.Kind(in) != KindInput || g.Kind(out) != KindOutput {
		return NoNodeID, NoNodeID, fmt.Errorf("%w: region %d does not start with Input/Output", ErrGraph, region)
	}
	return in, out, nil
}

// NumInputs returns the number of input ports of a dataflow node.
func (g *Graph) NumInputs(id NodeID) int {
	return len(g.mustNode(id).inputs)
}

// NumOutputs returns the number of output ports of a dataflow node.
func (g *Graph) NumOutputs(id NodeID) int {
	return len(g.mustNode(id).outputs)
}

// Source returns the output port feeding the given input port.
func (g *Graph) Source(in Port) (Port, bool) {
	n := g.Node(in.Node)
	if n == nil || in.Index < 0 || in.Index >= len(n.inputs) {
		return noPort, false
	}
	src := n.inputs[in.Index]
	return src, src.valid()
}

// Targets returns the input ports fed by the given output port.
func (g *Graph) Targets(out Port) []Port {
	n := g.Node(out.Node)
	if n == nil || out.Index < 0 || out.Index >= len(n.outputs) {
		return nil
	}
	return slices.Clone(n.outputs[out.Index])
}

// Functions returns the top-level function definitions in module order.
func (g *Graph) Functions() []NodeID {
	var out []NodeID
	for _, id := range g.mustNode(g.root).children {
		if g.Kind(id) == KindFuncDefn {
			out = append(out, id)
		}
	}
	return out
}

// FuncsByName returns every top-level function with the given name.
func (g *Graph) FuncsByName(name string) []NodeID {
	var out []NodeID
	for _, id := range g.Functions() {
		if g.Node(id).Name == name {
			out = append(out, id)
		}
	}
	return out
}

// EnclosingFunc walks up from id to the nearest FuncDefn.
func (g *Graph) EnclosingFunc(id NodeID) NodeID {
	for cur := g.Parent(id); cur != NoNodeID; cur = g.Parent(cur) {
		if g.Kind(cur) == KindFuncDefn {
			return cur
		}
	}
	return NoNodeID
}

// Walk visits id and its descendants in pre-order, following child order.
// Returning false from fn skips the node's children.
func (g *Graph) Walk(id NodeID, fn func(NodeID) bool) {
	n := g.Node(id)
	if n == nil {
		return
	}
	if !fn(id) {
		return
	}
	for _, child := range n.children {
		g.Walk(child, fn)
	}
}

// Calls returns every live Call node in pre-order.
func (g *Graph) Calls() []NodeID {
	var out []NodeID
	g.Walk(g.root, func(id NodeID) bool {
		if g.Kind(id) == KindCall {
			out = append(out, id)
		}
		return true
	})
	return out
}
