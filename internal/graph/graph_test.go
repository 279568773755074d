package graph

import (
	"bytes"
	"errors"
	"slices"
	"testing"
)

var (
	opH       = Op{Dialect: "tket2.quantum", Name: "H"}
	opCX      = Op{Dialect: "tket2.quantum", Name: "CX"}
	opQAlloc  = Op{Dialect: "tket2.quantum", Name: "QAlloc"}
	opMeasure = Op{Dialect: "tket2.qsystem", Name: "Measure"}
)

func mustConnect(t *testing.T, g *Graph, src, dst Port) {
	t.Helper()
	if err := g.Connect(src, dst); err != nil {
		t.Fatalf("connect %s -> %s: %v", src, dst, err)
	}
}

// buildBell returns main: alloc two qubits, entangle, measure both and
// output the two booleans.
func buildBell(t *testing.T) (*Graph, Region) {
	t.Helper()
	g := New()
	main := g.AddFunc("main", Sig(nil, []Type{TypeBool, TypeBool}))
	q0 := g.AddOp(main.Node, opQAlloc, Sig(nil, Qubits(1)))
	q1 := g.AddOp(main.Node, opQAlloc, Sig(nil, Qubits(1)))
	h := g.AddOp(main.Node, opH, Sig(Qubits(1), Qubits(1)))
	cx := g.AddOp(main.Node, opCX, Sig(Qubits(2), Qubits(2)))
	m0 := g.AddOp(main.Node, opMeasure, Sig(Qubits(1), []Type{TypeBool}))
	m1 := g.AddOp(main.Node, opMeasure, Sig(Qubits(1), []Type{TypeBool}))
	mustConnect(t, g, Out(q0, 0), In(h, 0))
	mustConnect(t, g, Out(h, 0), In(cx, 0))
	mustConnect(t, g, Out(q1, 0), In(cx, 1))
	mustConnect(t, g, Out(cx, 0), In(m0, 0))
	mustConnect(t, g, Out(cx, 1), In(m1, 0))
	mustConnect(t, g, Out(m0, 0), main.Out(0))
	mustConnect(t, g, Out(m1, 0), main.Out(1))
	return g, main
}

func TestBuildAndValidate(t *testing.T) {
	g, main := buildBell(t)
	if err := g.Check(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if got := g.Functions(); !slices.Equal(got, []NodeID{main.Node}) {
		t.Fatalf("functions = %v", got)
	}
	if got := g.FuncsByName("main"); len(got) != 1 {
		t.Fatalf("FuncsByName(main) = %v", got)
	}
	in, out, err := g.RegionIO(main.Node)
	if err != nil || in != main.Input || out != main.Output {
		t.Fatalf("RegionIO = %d %d %v", in, out, err)
	}
}

func TestConnectRejectsBadEdges(t *testing.T) {
	g := New()
	f := g.AddFunc("f", Sig(Qubits(1), Qubits(1)))
	h := g.AddOp(f.Node, opH, Sig(Qubits(1), Qubits(1)))
	m := g.AddOp(f.Node, opMeasure, Sig(Qubits(1), []Type{TypeBool}))
	other := g.AddFunc("other", Sig(nil, nil))
	alloc := g.AddOp(other.Node, opQAlloc, Sig(nil, Qubits(1)))

	cases := []struct {
		name     string
		src, dst Port
	}{
		{"type mismatch", Out(m, 0), In(h, 0)},
		{"out of range", Out(h, 3), In(m, 0)},
		{"cross region", Out(alloc, 0), In(h, 0)},
		{"missing node", Out(NodeID(999), 0), In(h, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.Connect(tc.src, tc.dst)
			if !errors.Is(err, ErrGraph) {
				t.Fatalf("expected ErrGraph, got %v", err)
			}
		})
	}

	mustConnect(t, g, f.In(0), In(h, 0))
	if err := g.Connect(f.In(0), In(h, 0)); err == nil {
		t.Fatal("expected error when connecting an occupied input")
	}
}

func TestValidateReportsLinearityAndDangling(t *testing.T) {
	g := New()
	main := g.AddFunc("main", Sig(nil, nil))
	g.AddOp(main.Node, opQAlloc, Sig(nil, Qubits(1)))
	h := g.AddOp(main.Node, opH, Sig(Qubits(1), Qubits(1)))
	_ = h

	err := g.Check()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !errors.Is(err, ErrGraph) {
		t.Fatalf("expected ErrGraph, got %v", err)
	}
}

func TestOrderFollowsDataflow(t *testing.T) {
	g := New()
	main := g.AddFunc("main", Sig(nil, []Type{TypeBool}))
	// Declared in reverse: measure first, alloc last.
	m := g.AddOp(main.Node, opMeasure, Sig(Qubits(1), []Type{TypeBool}))
	h := g.AddOp(main.Node, opH, Sig(Qubits(1), Qubits(1)))
	q := g.AddOp(main.Node, opQAlloc, Sig(nil, Qubits(1)))
	mustConnect(t, g, Out(q, 0), In(h, 0))
	mustConnect(t, g, Out(h, 0), In(m, 0))
	mustConnect(t, g, Out(m, 0), main.Out(0))

	order, err := g.Order(main.Node)
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	want := []NodeID{main.Input, q, h, m, main.Output}
	if !slices.Equal(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestOrderDetectsCycle(t *testing.T) {
	g := New()
	main := g.AddFunc("main", Sig(nil, nil))
	a := g.AddOp(main.Node, opH, Sig(Qubits(1), Qubits(1)))
	b := g.AddOp(main.Node, opH, Sig(Qubits(1), Qubits(1)))
	mustConnect(t, g, Out(a, 0), In(b, 0))
	mustConnect(t, g, Out(b, 0), In(a, 0))
	if _, err := g.Order(main.Node); !errors.Is(err, ErrGraph) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if err := g.Check(); err == nil {
		t.Fatal("expected Check to report the cycle")
	}
}

func TestInlineCallSplicesBody(t *testing.T) {
	g := New()
	// helper(q) = H(q)
	helper := g.AddFunc("helper", Sig(Qubits(1), Qubits(1)))
	h := g.AddOp(helper.Node, opH, Sig(Qubits(1), Qubits(1)))
	mustConnect(t, g, helper.In(0), In(h, 0))
	mustConnect(t, g, Out(h, 0), helper.Out(0))

	main := g.AddFunc("main", Sig(nil, []Type{TypeBool}))
	q := g.AddOp(main.Node, opQAlloc, Sig(nil, Qubits(1)))
	call := g.AddCall(main.Node, helper.Node)
	m := g.AddOp(main.Node, opMeasure, Sig(Qubits(1), []Type{TypeBool}))
	mustConnect(t, g, Out(q, 0), In(call, 0))
	mustConnect(t, g, Out(call, 0), In(m, 0))
	mustConnect(t, g, Out(m, 0), main.Out(0))

	if err := g.InlineCall(call); err != nil {
		t.Fatalf("inline: %v", err)
	}
	if g.Contains(call) {
		t.Fatal("call node survived inlining")
	}
	if len(g.Calls()) != 0 {
		t.Fatalf("calls left: %v", g.Calls())
	}
	children := g.Children(main.Node)
	if len(children) != 5 {
		t.Fatalf("main has %d children, want 5", len(children))
	}
	copied := children[3]
	if copied == h || g.Node(copied).Op != opH {
		t.Fatalf("child 3 = %d (%v), want a fresh H", copied, g.Node(copied).Op)
	}
	if src, ok := g.Source(In(copied, 0)); !ok || src.Node != q {
		t.Fatalf("copied H is fed by %v", src)
	}
	if src, ok := g.Source(In(m, 0)); !ok || src.Node != copied {
		t.Fatalf("measure is fed by %v", src)
	}
	// callee untouched
	if src, ok := g.Source(In(h, 0)); !ok || src.Node != helper.Input {
		t.Fatalf("callee body was rewired: %v", src)
	}
	if err := g.Check(); err != nil {
		t.Fatalf("graph invalid after inlining: %v", err)
	}
}

func TestInlineCallPassthrough(t *testing.T) {
	g := New()
	id := g.AddFunc("id", Sig(Qubits(1), Qubits(1)))
	mustConnect(t, g, id.In(0), id.Out(0))

	main := g.AddFunc("main", Sig(nil, []Type{TypeBool}))
	q := g.AddOp(main.Node, opQAlloc, Sig(nil, Qubits(1)))
	call := g.AddCall(main.Node, id.Node)
	m := g.AddOp(main.Node, opMeasure, Sig(Qubits(1), []Type{TypeBool}))
	mustConnect(t, g, Out(q, 0), In(call, 0))
	mustConnect(t, g, Out(call, 0), In(m, 0))
	mustConnect(t, g, Out(m, 0), main.Out(0))

	if err := g.InlineCall(call); err != nil {
		t.Fatalf("inline: %v", err)
	}
	if src, _ := g.Source(In(m, 0)); src.Node != q {
		t.Fatalf("measure should read the allocation directly, got %v", src)
	}
	if err := g.Check(); err != nil {
		t.Fatalf("graph invalid after inlining: %v", err)
	}
}

func TestRemoveSubtree(t *testing.T) {
	g, main := buildBell(t)
	before := g.Len()
	dead := g.AddFunc("dead", Sig(nil, nil))
	if g.Len() != before+3 {
		t.Fatalf("Len = %d, want %d", g.Len(), before+3)
	}
	if err := g.RemoveSubtree(dead.Node); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if g.Contains(dead.Node) || g.Contains(dead.Input) {
		t.Fatal("removed nodes still live")
	}
	if g.Len() != before {
		t.Fatalf("Len = %d, want %d", g.Len(), before)
	}
	if err := g.RemoveSubtree(g.Root()); err == nil {
		t.Fatal("expected error removing the root")
	}
	// ids are not reused
	again := g.AddFunc("again", Sig(nil, nil))
	if again.Node <= dead.Output {
		t.Fatalf("id %d reused", again.Node)
	}
	_ = main
}

func TestCodecPreservesStructure(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatMsgpack} {
		t.Run(format.String(), func(t *testing.T) {
			g, _ := buildBell(t)
			g.AddConst(g.Functions()[0], ConstValue{Type: TypeFloat, Float: 1.5})
			var buf bytes.Buffer
			if err := Encode(&buf, g, format); err != nil {
				t.Fatalf("encode: %v", err)
			}
			back, err := Decode(&buf, format)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if back.Len() != g.Len() {
				t.Fatalf("decoded %d nodes, want %d", back.Len(), g.Len())
			}
			fn := back.FuncsByName("main")
			if len(fn) != 1 {
				t.Fatalf("main not found after decode")
			}
			children := back.Children(fn[0])
			last := back.Node(children[len(children)-1])
			if last.Kind != KindConst || last.Const.Float != 1.5 {
				t.Fatalf("const lost: %+v", last)
			}
			// the const has no consumer, the rest must still be well formed
			if len(back.Calls()) != 0 {
				t.Fatal("unexpected calls")
			}
			order, err := back.Order(fn[0])
			if err != nil || len(order) != len(children) {
				t.Fatalf("order after decode: %v %v", order, err)
			}
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"version":       `{"version":9,"nodes":[{"id":0,"kind":"Module"}]}`,
		"orphan":        `{"version":1,"nodes":[{"id":0,"kind":"Module"},{"id":1,"parent":7,"kind":"FuncDefn"}]}`,
		"unknown kind":  `{"version":1,"nodes":[{"id":0,"kind":"Lambda"}]}`,
		"dangling call": `{"version":1,"nodes":[{"id":0,"kind":"Module"},{"id":1,"parent":0,"kind":"FuncDefn","name":"main"},{"id":2,"parent":1,"kind":"Input"},{"id":3,"parent":1,"kind":"Output"},{"id":4,"parent":1,"kind":"Call","callee":42}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(bytes.NewBufferString(doc), FormatJSON); !IsDecodeError(err) {
				t.Fatalf("expected decode error, got %v", err)
			}
		})
	}
}

func TestDecodeNormalizesNames(t *testing.T) {
	// decomposed accents in function names
	doc := `{"version":1,"nodes":[
		{"id":0,"kind":"Module"},
		{"id":1,"parent":0,"kind":"FuncDefn","name":"mai\u0301n"},
		{"id":2,"parent":1,"kind":"Input"},
		{"id":3,"parent":1,"kind":"Output"},
		{"id":4,"parent":0,"kind":"FuncDefn","name":"re\u0301sume\u0301"},
		{"id":5,"parent":4,"kind":"Input"},
		{"id":6,"parent":4,"kind":"Output"}]}`
	g, err := Decode(bytes.NewBufferString(doc), FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(g.FuncsByName("ma\u00edn")) != 1 {
		t.Fatal("function name not NFC-composed")
	}
	if len(g.FuncsByName("r\u00e9sum\u00e9")) != 1 {
		t.Fatal("second name not NFC-composed")
	}
}

func TestFormatFromPath(t *testing.T) {
	if FormatFromPath("prog.hugr.json") != FormatJSON {
		t.Fatal("json expected")
	}
	if FormatFromPath("prog.MP") != FormatMsgpack {
		t.Fatal("msgpack expected")
	}
}

func TestReplaceUsesAndMoveBefore(t *testing.T) {
	g := New()
	main := g.AddFunc("main", Sig(nil, []Type{TypeBool}))
	q := g.AddOp(main.Node, opQAlloc, Sig(nil, Qubits(1)))
	h := g.AddOp(main.Node, opH, Sig(Qubits(1), Qubits(1)))
	m := g.AddOp(main.Node, opMeasure, Sig(Qubits(1), []Type{TypeBool}))
	mustConnect(t, g, Out(q, 0), In(h, 0))
	mustConnect(t, g, Out(h, 0), In(m, 0))
	mustConnect(t, g, Out(m, 0), main.Out(0))

	x := g.AddOp(main.Node, Op{Dialect: "tket2.quantum", Name: "X"}, Sig(Qubits(1), Qubits(1)))
	if err := g.MoveBefore(x, h); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := g.Reconnect(In(h, 0), In(x, 0)); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if err := g.ReplaceUses(Out(h, 0), Out(x, 0)); err != nil {
		t.Fatalf("replace uses: %v", err)
	}
	if err := g.RemoveSubtree(h); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got, want := g.Children(main.Node), []NodeID{main.Input, main.Output, q, x, m}; !slices.Equal(got, want) {
		t.Fatalf("children = %v, want %v", got, want)
	}
	if err := g.Check(); err != nil {
		t.Fatalf("graph invalid: %v", err)
	}
	if err := g.MoveBefore(x, main.Node); err == nil {
		t.Fatal("expected error moving across regions")
	}
}
