package qis

import (
	"errors"
	"strings"
	"testing"

	"hugrqir/internal/graph"
	"hugrqir/internal/llir"
)

// harness lowers single nodes into the body of @f.
type harness struct {
	m   *llir.Module
	f   *llir.Function
	ctx *Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	m := llir.NewModule("qis")
	f, err := m.Define("f", llir.FuncType{Ret: llir.Void})
	if err != nil {
		t.Fatal(err)
	}
	b := llir.NewBuilder(f.AddBlock("entry"))
	return &harness{m: m, f: f, ctx: NewContext(m, b)}
}

func node(dialect, name string, in, out []graph.Type) *graph.Node {
	return &graph.Node{
		Kind: graph.KindOp,
		Op:   graph.Op{Dialect: dialect, Name: name},
		Sig:  graph.Sig(in, out),
	}
}

func (h *harness) callees() []string {
	var out []string
	for _, in := range h.f.Instrs() {
		if in.Op == llir.OpCall {
			out = append(out, in.Callee.Name)
		}
	}
	return out
}

func (h *harness) qubit() llir.Value {
	return &llir.IntToPtr{Typ: h.ctx.Qubit, Bits: 64, V: 0}
}

func TestGatesPassQubitsThrough(t *testing.T) {
	h := newHarness(t)
	q0, q1 := h.qubit(), &llir.IntToPtr{Typ: h.ctx.Qubit, Bits: 64, V: 1}
	outs, err := Default().Lower(h.ctx, node(dialectQuantum, "CX", graph.Qubits(2), graph.Qubits(2)), []llir.Value{q0, q1})
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if len(outs) != 2 || outs[0] != q0 || outs[1] != q1 {
		t.Fatalf("outputs = %v, want the inputs", outs)
	}
	fn := h.m.Func("__quantum__qis__cx__body")
	if fn == nil || len(fn.Sig.Params) != 2 || !fn.Sig.Ret.IsVoid() {
		t.Fatalf("cx declaration = %+v", fn)
	}
}

func TestRotationPutsAngleFirst(t *testing.T) {
	h := newHarness(t)
	angle := llir.Float(0.25)
	n := node(dialectQSystem, "PhasedX", []graph.Type{graph.TypeQubit, graph.TypeFloat, graph.TypeFloat}, graph.Qubits(1))
	if _, err := Default().Lower(h.ctx, n, []llir.Value{h.qubit(), angle, llir.Float(0.5)}); err != nil {
		t.Fatalf("lower: %v", err)
	}
	call := h.f.Instrs()[0]
	if call.Operands[0] != angle {
		t.Fatalf("first argument = %v, want the angle", call.Operands[0])
	}
	if got := call.Callee.Sig.String(); got != "void (double, double, %Qubit*)" {
		t.Fatalf("phasedx signature = %s", got)
	}
}

func TestCompositeOrder(t *testing.T) {
	cases := []struct {
		dialect, name string
		out           []graph.Type
		want          []string
	}{
		{dialectQSystem, "MeasureReset", []graph.Type{graph.TypeQubit, graph.TypeBool},
			[]string{QubitToResult, MeasureZ, ResetGate, ReadResult}},
		{dialectQuantum, "MeasureFree", []graph.Type{graph.TypeBool},
			[]string{QubitToResult, MeasureZ, QubitRelease, ReadResult}},
		{dialectQSystem, "Measure", []graph.Type{graph.TypeBool},
			[]string{QubitToResult, MeasureZ, ReadResult}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			outs, err := Default().Lower(h.ctx, node(tc.dialect, tc.name, graph.Qubits(1), tc.out), []llir.Value{h.qubit()})
			if err != nil {
				t.Fatalf("lower: %v", err)
			}
			if got := h.callees(); strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("calls = %v, want %v", got, tc.want)
			}
			bit := outs[len(outs)-1]
			if !bit.Type().IsInt(1) {
				t.Fatalf("measurement outcome has type %s", bit.Type())
			}
		})
	}
}

func TestAllocDeclaresOnce(t *testing.T) {
	h := newHarness(t)
	alloc := node(dialectQuantum, "QAlloc", nil, graph.Qubits(1))
	for range 3 {
		outs, err := Default().Lower(h.ctx, alloc, nil)
		if err != nil {
			t.Fatalf("lower: %v", err)
		}
		if !outs[0].Type().Equal(h.ctx.Qubit) {
			t.Fatalf("alloc returns %s", outs[0].Type())
		}
	}
	count := 0
	for _, f := range h.m.Funcs {
		if f.Name == QubitAllocate {
			count++
		}
	}
	if count != 1 || len(h.callees()) != 3 {
		t.Fatalf("declarations = %d, calls = %d", count, len(h.callees()))
	}
}

func TestRecordOutput(t *testing.T) {
	h := newHarness(t)
	n := node(dialectResult, "result_f64", []graph.Type{graph.TypeFloat}, nil)
	n.Op.Tag = "energy"
	if _, err := Default().Lower(h.ctx, n, []llir.Value{llir.Float(1)}); err != nil {
		t.Fatalf("lower: %v", err)
	}
	call := h.f.Instrs()[0]
	if call.Callee.Name != DoubleRecordOutput {
		t.Fatalf("callee = %s", call.Callee.Name)
	}
	tag, ok := call.Operands[1].(*llir.StringPtr)
	if !ok || string(tag.G.Data) != "energy\x00" {
		t.Fatalf("tag operand = %v", call.Operands[1])
	}
}

func TestRecordOutputEmptyTag(t *testing.T) {
	h := newHarness(t)
	n := node(dialectResult, "result_bool", []graph.Type{graph.TypeBool}, nil)
	_, err := Default().Lower(h.ctx, n, []llir.Value{llir.Bool(true)})
	if !errors.Is(err, ErrEmptyResultTag) || !errors.Is(err, ErrLowering) {
		t.Fatalf("expected ErrEmptyResultTag, got %v", err)
	}
	if len(h.f.Instrs()) != 0 {
		t.Fatal("instructions emitted for a rejected op")
	}
}

func TestUnsupportedOperation(t *testing.T) {
	h := newHarness(t)
	_, err := Default().Lower(h.ctx, node(dialectQuantum, "Toffoli", graph.Qubits(3), graph.Qubits(3)), nil)
	var unsupported *UnsupportedOperationError
	if !errors.As(err, &unsupported) || unsupported.Op.Name != "Toffoli" {
		t.Fatalf("expected UnsupportedOperationError, got %v", err)
	}
	if !errors.Is(err, ErrLowering) {
		t.Fatal("unsupported operation should be a lowering error")
	}
}

func TestArityMismatch(t *testing.T) {
	h := newHarness(t)
	_, err := Default().Lower(h.ctx, node(dialectQuantum, "H", graph.Qubits(2), graph.Qubits(2)), []llir.Value{h.qubit(), h.qubit()})
	var arity *ArityError
	if !errors.As(err, &arity) || arity.Want != 1 || arity.Got != 2 {
		t.Fatalf("expected arity error, got %v", err)
	}
}

func TestTryQAllocAlwaysSucceeds(t *testing.T) {
	h := newHarness(t)
	try := node(dialectQSystem, "TryQAlloc", nil, []graph.Type{graph.TypeBool, graph.TypeQubit})
	outs, err := Default().Lower(h.ctx, try, nil)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if len(outs) != 2 || !outs[1].Type().Equal(h.ctx.Qubit) {
		t.Fatalf("outputs = %v", outs)
	}
	if flag, ok := outs[0].(*llir.ConstInt); !ok || !flag.Typ.Equal(llir.I1) || flag.V != 1 {
		t.Fatalf("presence flag = %v", outs[0])
	}
	if got := h.callees(); len(got) != 1 || got[0] != QubitAllocate {
		t.Fatalf("callees = %v", got)
	}
}

func TestReadResultIsNotNarrowed(t *testing.T) {
	h := newHarness(t)
	bit, err := h.ctx.Read(&llir.IntToPtr{Typ: h.ctx.Result, Bits: 64, V: 0})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bit.Type().Equal(llir.I1) {
		t.Fatalf("read returns %s", bit.Type())
	}
	for _, in := range h.f.Instrs() {
		if in.Op == llir.OpTrunc {
			t.Fatal("unexpected trunc after read_result")
		}
	}
}

func TestDefaultRegistryCoversDialects(t *testing.T) {
	r := Default()
	for _, key := range []graph.OpKey{
		{Dialect: dialectQuantum, Name: "Tdg"},
		{Dialect: dialectQSystem, Name: "ZZPhase"},
		{Dialect: dialectQSystem, Name: "TryQAlloc"},
		{Dialect: dialectResult, Name: "result_uint"},
		{Dialect: dialectFutures, Name: "Dup"},
		{Dialect: dialectLogic, Name: "Eq"},
		{Dialect: dialectFloat, Name: "fneg"},
	} {
		if !r.Supports(key) {
			t.Errorf("%s is not registered", key)
		}
	}
	keys := r.Keys()
	if keys[0].String() > keys[len(keys)-1].String() {
		t.Fatal("keys are not sorted")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.add("d", "op", gate("x", 1))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	r.add("d", "op", gate("x", 1))
}
