package emit

import (
	"errors"
	"strings"
	"testing"

	"hugrqir/internal/graph"
	"hugrqir/internal/llir"
	"hugrqir/internal/qis"
)

var (
	opQAlloc = graph.Op{Dialect: "tket2.quantum", Name: "QAlloc"}
	opQFree  = graph.Op{Dialect: "tket2.quantum", Name: "QFree"}
	opH      = graph.Op{Dialect: "tket2.quantum", Name: "H"}
	opX      = graph.Op{Dialect: "tket2.quantum", Name: "X"}
	opMFree  = graph.Op{Dialect: "tket2.quantum", Name: "MeasureFree"}
)

func connect(t *testing.T, g *graph.Graph, src, dst graph.Port) {
	t.Helper()
	if err := g.Connect(src, dst); err != nil {
		t.Fatalf("connect %s -> %s: %v", src, dst, err)
	}
}

// allocFree builds main() that allocates, applies H and frees one qubit.
func allocFree(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	main := g.AddFunc("main", graph.Sig(nil, nil))
	q := g.AddOp(main.Node, opQAlloc, graph.Sig(nil, graph.Qubits(1)))
	h := g.AddOp(main.Node, opH, graph.Sig(graph.Qubits(1), graph.Qubits(1)))
	free := g.AddOp(main.Node, opQFree, graph.Sig(graph.Qubits(1), nil))
	connect(t, g, graph.Out(q, 0), graph.In(h, 0))
	connect(t, g, graph.Out(h, 0), graph.In(free, 0))
	return g
}

func calleeNames(fn *llir.Function) []string {
	var out []string
	for _, in := range fn.Instrs() {
		if in.Op == llir.OpCall {
			out = append(out, in.Callee.Name)
		}
	}
	return out
}

func TestEmitStraightLine(t *testing.T) {
	g := allocFree(t)
	m := llir.NewModule("test")
	res, err := Emit(g, m, Options{RewriteEntry: true})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if res.Entry == nil || res.Entry.Name != "main" {
		t.Fatalf("entry = %v", res.Entry)
	}
	want := []string{qis.QubitAllocate, "__quantum__qis__h__body", qis.QubitRelease}
	got := calleeNames(res.Entry)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if res.Ops != 3 {
		t.Fatalf("ops = %d", res.Ops)
	}
	if err := llir.Verify(m); err != nil {
		t.Fatalf("verify: %v\n%s", err, m)
	}
}

func TestEmitMangling(t *testing.T) {
	g := allocFree(t)
	main := g.FuncsByName("main")[0]
	tests := []struct {
		rewrite bool
		want    string
	}{
		{true, "main"},
		{false, SymbolName(g.Node(main), false)},
	}
	for _, tt := range tests {
		m := llir.NewModule("test")
		res, err := Emit(g, m, Options{RewriteEntry: tt.rewrite})
		if err != nil {
			t.Fatalf("emit: %v", err)
		}
		if res.Entry.Name != tt.want {
			t.Fatalf("rewrite=%v: entry named %q, want %q", tt.rewrite, res.Entry.Name, tt.want)
		}
	}
	if got := SymbolName(g.Node(main), false); !strings.HasPrefix(got, "__hugr__.main.") {
		t.Fatalf("mangled name %q", got)
	}
}

func TestEmitCallsAndReturns(t *testing.T) {
	g := graph.New()
	flip := g.AddFunc("flip", graph.Sig(graph.Qubits(1), graph.Qubits(1)))
	x := g.AddOp(flip.Node, opX, graph.Sig(graph.Qubits(1), graph.Qubits(1)))
	connect(t, g, flip.In(0), graph.In(x, 0))
	connect(t, g, graph.Out(x, 0), flip.Out(0))

	main := g.AddFunc("main", graph.Sig(nil, []graph.Type{graph.TypeBool}))
	q := g.AddOp(main.Node, opQAlloc, graph.Sig(nil, graph.Qubits(1)))
	call := g.AddCall(main.Node, flip.Node)
	mf := g.AddOp(main.Node, opMFree, graph.Sig(graph.Qubits(1), []graph.Type{graph.TypeBool}))
	connect(t, g, graph.Out(q, 0), graph.In(call, 0))
	connect(t, g, graph.Out(call, 0), graph.In(mf, 0))
	connect(t, g, graph.Out(mf, 0), main.Out(0))

	m := llir.NewModule("test")
	res, err := Emit(g, m, Options{RewriteEntry: true})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	callee := res.Funcs[flip.Node]
	if !callee.Sig.Ret.Equal(llir.PtrTo(m.Opaque("Qubit"))) {
		t.Fatalf("flip returns %s", callee.Sig.Ret)
	}
	if !res.Entry.Sig.Ret.Equal(llir.I1) {
		t.Fatalf("main returns %s", res.Entry.Sig.Ret)
	}
	names := calleeNames(res.Entry)
	if len(names) < 2 || names[1] != callee.Name {
		t.Fatalf("main calls %v", names)
	}
	if err := llir.Verify(m); err != nil {
		t.Fatalf("verify: %v\n%s", err, m)
	}
}

func TestEmitConditional(t *testing.T) {
	g := graph.New()
	main := g.AddFunc("main", graph.Sig([]graph.Type{graph.TypeBool}, []graph.Type{graph.TypeBool}))
	q := g.AddOp(main.Node, opQAlloc, graph.Sig(nil, graph.Qubits(1)))
	cond, cases := g.AddConditional(main.Node, graph.Qubits(1), graph.Qubits(1))
	connect(t, g, main.In(0), graph.In(cond, 0))
	connect(t, g, graph.Out(q, 0), graph.In(cond, 1))
	// false: pass through; true: flip
	connect(t, g, cases[0].In(0), cases[0].Out(0))
	x := g.AddOp(cases[1].Node, opX, graph.Sig(graph.Qubits(1), graph.Qubits(1)))
	connect(t, g, cases[1].In(0), graph.In(x, 0))
	connect(t, g, graph.Out(x, 0), cases[1].Out(0))
	mf := g.AddOp(main.Node, opMFree, graph.Sig(graph.Qubits(1), []graph.Type{graph.TypeBool}))
	connect(t, g, graph.Out(cond, 0), graph.In(mf, 0))
	connect(t, g, graph.Out(mf, 0), main.Out(0))
	if err := g.Check(); err != nil {
		t.Fatalf("graph invalid: %v", err)
	}

	m := llir.NewModule("test")
	res, err := Emit(g, m, Options{RewriteEntry: true})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if n := len(res.Entry.Blocks); n != 4 {
		t.Fatalf("main has %d blocks, want 4", n)
	}
	merge := res.Entry.Blocks[3]
	phis := merge.Phis()
	if len(phis) != 1 || len(phis[0].Blocks) != 2 {
		t.Fatalf("merge phis = %v", phis)
	}
	if err := llir.Verify(m); err != nil {
		t.Fatalf("verify: %v\n%s", err, m)
	}
}

func TestEmitErrors(t *testing.T) {
	t.Run("multiple outputs", func(t *testing.T) {
		g := graph.New()
		main := g.AddFunc("main", graph.Sig(nil, []graph.Type{graph.TypeBool, graph.TypeBool}))
		for i := range 2 {
			c := g.AddConst(main.Node, graph.ConstValue{Type: graph.TypeBool})
			connect(t, g, graph.Out(c, 0), main.Out(i))
		}
		_, err := Emit(g, llir.NewModule("test"), Options{})
		if !errors.Is(err, qis.ErrLowering) {
			t.Fatalf("expected ErrLowering, got %v", err)
		}
	})
	t.Run("unsupported op", func(t *testing.T) {
		g := graph.New()
		main := g.AddFunc("main", graph.Sig(nil, nil))
		g.AddOp(main.Node, graph.Op{Dialect: "tket2.quantum", Name: "Toffoli"}, graph.Sig(nil, nil))
		_, err := Emit(g, llir.NewModule("test"), Options{})
		if !errors.Is(err, qis.ErrUnsupportedOperation) {
			t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
		}
	})
}
