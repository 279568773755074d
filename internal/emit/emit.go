// Package emit translates a program graph into an llir module. Operation
// nodes are lowered through a qis.Registry; everything else (regions,
// calls, constants, conditionals) is handled here.
package emit

import (
	"fmt"

	"hugrqir/internal/dce"
	"hugrqir/internal/graph"
	"hugrqir/internal/llir"
	"hugrqir/internal/qis"
)

// Options configures emission.
type Options struct {
	// RewriteEntry keeps the entry point under its plain name; otherwise it
	// is mangled like every other function.
	RewriteEntry bool
	// Registry defaults to qis.Default().
	Registry *qis.Registry
}

// Result describes what was emitted.
type Result struct {
	Funcs map[graph.NodeID]*llir.Function
	// Entry is the function emitted for main, nil when the graph has none.
	Entry *llir.Function
	Ops   int
}

// Emit adds one function per top-level FuncDefn of g to m.
func Emit(g *graph.Graph, m *llir.Module, opts Options) (*Result, error) {
	if opts.Registry == nil {
		opts.Registry = qis.Default()
	}
	e := &emitter{
		g:    g,
		m:    m,
		reg:  opts.Registry,
		ctx:  qis.NewContext(m, llir.NewBuilder(nil)),
		vals: make(map[graph.Port]llir.Value),
		res:  &Result{Funcs: make(map[graph.NodeID]*llir.Function)},
	}

	// Define every function first so calls can refer forward.
	for _, id := range g.Functions() {
		n := g.Node(id)
		fn, err := e.define(n, SymbolName(n, opts.RewriteEntry))
		if err != nil {
			return nil, err
		}
		e.res.Funcs[id] = fn
		if n.Name == dce.EntryName {
			e.res.Entry = fn
		}
	}
	for _, id := range g.Functions() {
		if err := e.body(id); err != nil {
			return nil, fmt.Errorf("function %q: %w", g.Node(id).Name, err)
		}
	}
	return e.res, nil
}

// SymbolName returns the symbol a function is emitted under.
func SymbolName(n *graph.Node, rewriteEntry bool) string {
	if rewriteEntry && n.Name == dce.EntryName {
		return n.Name
	}
	return fmt.Sprintf("__hugr__.%s.%d", n.Name, n.ID)
}

type emitter struct {
	g    *graph.Graph
	m    *llir.Module
	reg  *qis.Registry
	ctx  *qis.Context
	vals map[graph.Port]llir.Value
	res  *Result
}

func (e *emitter) define(n *graph.Node, name string) (*llir.Function, error) {
	sig, err := e.funcType(n.Sig)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", n.Name, err)
	}
	return e.m.Define(name, sig)
}

func (e *emitter) funcType(sig graph.Signature) (llir.FuncType, error) {
	ft := llir.FuncType{Ret: llir.Void}
	for _, t := range sig.Inputs {
		lt, err := e.ctx.ValueType(t)
		if err != nil {
			return ft, err
		}
		ft.Params = append(ft.Params, lt)
	}
	switch len(sig.Outputs) {
	case 0:
	case 1:
		lt, err := e.ctx.ValueType(sig.Outputs[0])
		if err != nil {
			return ft, err
		}
		ft.Ret = lt
	default:
		return ft, fmt.Errorf("%w: functions with %d outputs are not supported", qis.ErrLowering, len(sig.Outputs))
	}
	return ft, nil
}

func (e *emitter) body(id graph.NodeID) error {
	fn := e.res.Funcs[id]
	e.ctx.B.SetBlock(fn.AddBlock("entry"))
	args := make([]llir.Value, len(fn.Params))
	for i, p := range fn.Params {
		args[i] = p
	}
	outs, err := e.region(id, args)
	if err != nil {
		return err
	}
	if want := len(e.g.Node(id).Sig.Outputs); len(outs) != want {
		return fmt.Errorf("%w: function %d yields %d values, signature has %d outputs", graph.ErrGraph, id, len(outs), want)
	}
	if len(outs) == 0 {
		e.ctx.B.RetVoid()
	} else {
		e.ctx.B.Ret(outs[0])
	}
	return nil
}

// region emits the children of a region in dataflow order and returns the
// values reaching its Output node.
func (e *emitter) region(id graph.NodeID, args []llir.Value) ([]llir.Value, error) {
	in, out, err := e.g.RegionIO(id)
	if err != nil {
		return nil, err
	}
	for i, v := range args {
		e.vals[graph.Out(in, i)] = v
	}
	order, err := e.g.Order(id)
	if err != nil {
		return nil, err
	}
	for _, child := range order {
		if child == in || child == out {
			continue
		}
		if err := e.node(child); err != nil {
			return nil, err
		}
	}
	return e.inputs(out)
}

// inputs collects the values feeding every input port of a node.
func (e *emitter) inputs(id graph.NodeID) ([]llir.Value, error) {
	n := e.g.NumInputs(id)
	args := make([]llir.Value, n)
	for i := range n {
		src, ok := e.g.Source(graph.In(id, i))
		if !ok {
			return nil, fmt.Errorf("%w: node %d input %d is not connected", graph.ErrGraph, id, i)
		}
		v, ok := e.vals[src]
		if !ok {
			return nil, fmt.Errorf("%w: node %d input %d read before %s was emitted", graph.ErrGraph, id, i, src)
		}
		args[i] = v
	}
	return args, nil
}

func (e *emitter) bind(id graph.NodeID, outs []llir.Value) {
	for i, v := range outs {
		e.vals[graph.Out(id, i)] = v
	}
}

func (e *emitter) node(id graph.NodeID) error {
	n := e.g.Node(id)
	switch n.Kind {
	case graph.KindConst:
		v, err := e.constant(n.Const)
		if err != nil {
			return err
		}
		e.bind(id, []llir.Value{v})
		return nil
	case graph.KindOp:
		args, err := e.inputs(id)
		if err != nil {
			return err
		}
		outs, err := e.reg.Lower(e.ctx, n, args)
		if err != nil {
			return fmt.Errorf("node %d: %w", id, err)
		}
		e.res.Ops++
		e.bind(id, outs)
		return nil
	case graph.KindCall:
		return e.call(n)
	case graph.KindDFG:
		args, err := e.inputs(id)
		if err != nil {
			return err
		}
		outs, err := e.region(id, args)
		if err != nil {
			return err
		}
		e.bind(id, outs)
		return nil
	case graph.KindConditional:
		return e.conditional(n)
	}
	return fmt.Errorf("%w: cannot emit %s node %d", graph.ErrGraph, n.Kind, id)
}

func (e *emitter) constant(c graph.ConstValue) (llir.Value, error) {
	switch c.Type {
	case graph.TypeBool:
		return llir.Bool(c.Bool), nil
	case graph.TypeInt:
		return llir.Int(llir.I64, c.Int), nil
	case graph.TypeFloat:
		return llir.Float(c.Float), nil
	case graph.TypeString:
		return e.m.StringPtr(c.Str), nil
	}
	return nil, fmt.Errorf("%w: constants of type %s", qis.ErrLowering, c.Type)
}

func (e *emitter) call(n *graph.Node) error {
	callee, ok := e.res.Funcs[n.Callee]
	if !ok {
		return fmt.Errorf("%w: call %d targets unknown function %d", graph.ErrGraph, n.ID, n.Callee)
	}
	args, err := e.inputs(n.ID)
	if err != nil {
		return err
	}
	ret := e.ctx.B.Call(callee, args...)
	if len(n.Sig.Outputs) == 1 {
		e.bind(n.ID, []llir.Value{ret})
	}
	return nil
}

// conditional emits a two-way branch on the predicate and merges the case
// outputs with phis.
func (e *emitter) conditional(n *graph.Node) error {
	args, err := e.inputs(n.ID)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: conditional %d has no predicate", graph.ErrGraph, n.ID)
	}
	cases := e.g.Children(n.ID)
	if len(cases) != 2 {
		return fmt.Errorf("%w: conditional %d has %d cases", graph.ErrGraph, n.ID, len(cases))
	}
	fn := e.ctx.B.Block().Parent
	blocks := [2]*llir.Block{fn.AddBlock("cond.false"), fn.AddBlock("cond.true")}
	merge := fn.AddBlock("cond.end")
	e.ctx.B.CondBr(args[0], blocks[1], blocks[0])

	var ends [2]*llir.Block
	var results [2][]llir.Value
	for i, c := range cases {
		e.ctx.B.SetBlock(blocks[i])
		outs, err := e.region(c, args[1:])
		if err != nil {
			return err
		}
		if len(outs) != len(n.Sig.Outputs) {
			return fmt.Errorf("%w: case %d yields %d values, conditional has %d outputs", graph.ErrGraph, i, len(outs), len(n.Sig.Outputs))
		}
		// nested conditionals move the insertion point
		ends[i] = e.ctx.B.Block()
		results[i] = outs
		e.ctx.B.Br(merge)
	}

	e.ctx.B.SetBlock(merge)
	outs := make([]llir.Value, len(n.Sig.Outputs))
	for j, t := range n.Sig.Outputs {
		lt, err := e.ctx.ValueType(t)
		if err != nil {
			return err
		}
		phi := e.ctx.B.Phi(lt)
		for i := range cases {
			phi.AddIncoming(results[i][j], ends[i])
		}
		outs[j] = phi
	}
	e.bind(n.ID, outs)
	return nil
}
