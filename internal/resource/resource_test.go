package resource

import (
	"errors"
	"slices"
	"testing"

	"hugrqir/internal/llir"
	"hugrqir/internal/qis"
)

// newBody returns a context positioned in the entry block of a fresh main.
func newBody(t *testing.T, layout string) (*qis.Context, *llir.Function) {
	t.Helper()
	m := llir.NewModule("test")
	m.DataLayout = layout
	fn, err := m.Define("main", llir.FuncType{Ret: llir.Void})
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	c := qis.NewContext(m, llir.NewBuilder(fn.AddBlock("entry")))
	return c, fn
}

// addresses lists the static addresses passed to calls of name.
func addresses(fn *llir.Function, name string, arg int) []int64 {
	var out []int64
	for _, in := range fn.Instrs() {
		if in.Op != llir.OpCall || in.Callee.Name != name {
			continue
		}
		if p, ok := in.Operands[arg].(*llir.IntToPtr); ok {
			out = append(out, p.V)
		}
	}
	return out
}

func TestAssignPermutation(t *testing.T) {
	const n = 5
	c, fn := newBody(t, "")
	var qubits []llir.Value
	for range n {
		q, err := c.Alloc()
		if err != nil {
			t.Fatalf("alloc: %v", err)
		}
		qubits = append(qubits, q)
	}
	for _, q := range qubits[:3] {
		if _, err := c.MeasureToHandle(q); err != nil {
			t.Fatalf("measure: %v", err)
		}
	}
	for _, q := range qubits {
		if err := c.Free(q); err != nil {
			t.Fatalf("free: %v", err)
		}
	}
	c.B.RetVoid()

	got, err := Assign(fn, 64)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got != (Counters{Qubits: n, Results: 3}) {
		t.Fatalf("counters = %+v", got)
	}
	if addrs := addresses(fn, qis.QubitRelease, 0); !slices.Equal(addrs, []int64{0, 1, 2, 3, 4}) {
		t.Fatalf("release addresses = %v", addrs)
	}
	if addrs := addresses(fn, qis.MeasureZ, 1); !slices.Equal(addrs, []int64{0, 1, 2}) {
		t.Fatalf("result addresses = %v", addrs)
	}
	for _, in := range fn.Instrs() {
		if in.Op == llir.OpCall && (in.Callee.Name == qis.QubitAllocate || in.Callee.Name == qis.QubitToResult) {
			t.Fatalf("placeholder call to %s survived", in.Callee.Name)
		}
	}
	m := fn.Module
	if m.Func(qis.QubitAllocate) != nil || m.Func(qis.QubitToResult) != nil {
		t.Fatal("unused placeholder declarations kept")
	}
	if err := llir.Verify(m); err != nil {
		t.Fatalf("verify: %v\n%s", err, m)
	}
}

func TestAssignWidth(t *testing.T) {
	c, fn := newBody(t, "e-p:32:32-i64:64")
	q, err := c.Alloc()
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := c.Free(q); err != nil {
		t.Fatalf("free: %v", err)
	}
	c.B.RetVoid()

	width, err := PointerWidth(fn.Module)
	if err != nil || width != 32 {
		t.Fatalf("width = %d, %v", width, err)
	}
	if _, err := Assign(fn, width); err != nil {
		t.Fatalf("assign: %v", err)
	}
	for _, in := range fn.Instrs() {
		if in.Op == llir.OpCall && in.Callee.Name == qis.QubitRelease {
			if p := in.Operands[0].(*llir.IntToPtr); p.Bits != 32 {
				t.Fatalf("address width %d", p.Bits)
			}
		}
	}
}

func TestPointerWidthUnknown(t *testing.T) {
	width, err := PointerWidth(llir.NewModule("test"))
	if width != DefaultPointerWidth {
		t.Fatalf("width = %d", width)
	}
	if !errors.Is(err, ErrUnknownPointerWidth) || !errors.Is(err, ErrResourceAssignment) {
		t.Fatalf("expected ErrUnknownPointerWidth, got %v", err)
	}
}

func TestAssignRejects(t *testing.T) {
	m := llir.NewModule("test")
	decl, err := m.GetOrDeclare("ext", llir.FuncType{Ret: llir.Void})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if _, err := Assign(decl, 64); !errors.Is(err, ErrResourceAssignment) {
		t.Fatalf("declaration: expected ErrResourceAssignment, got %v", err)
	}
	_, fn := newBody(t, "")
	if _, err := Assign(fn, 0); !errors.Is(err, ErrResourceAssignment) {
		t.Fatalf("zero width: expected ErrResourceAssignment, got %v", err)
	}
}
