package qis

import (
	"hugrqir/internal/graph"
	"hugrqir/internal/llir"
)

// Runtime and QIS intrinsic names.
const (
	QubitAllocate = "__quantum__rt__qubit_allocate"
	QubitRelease  = "__quantum__rt__qubit_release"
	QubitToResult = "__QIR__CONV_Qubit_TO_Result"
	MeasureZ      = "__quantum__qis__mz__body"
	ReadResult    = "__quantum__qis__read_result__body"
	ResetGate     = "__quantum__qis__reset__body"

	BoolRecordOutput   = "__quantum__rt__bool_record_output"
	IntRecordOutput    = "__quantum__rt__int_record_output"
	DoubleRecordOutput = "__quantum__rt__double_record_output"
)

func (c *Context) declare(name string, ret *llir.Type, params ...*llir.Type) (*llir.Function, error) {
	return c.Module.GetOrDeclare(name, llir.FuncType{Ret: ret, Params: params})
}

func repeat(t *llir.Type, n int) []*llir.Type {
	out := make([]*llir.Type, n)
	for i := range out {
		out[i] = t
	}
	return out
}

// Gate calls a void intrinsic taking angles first and qubits second.
func (c *Context) Gate(name string, angles, qubits []llir.Value) error {
	params := append(repeat(llir.Double, len(angles)), repeat(c.Qubit, len(qubits))...)
	fn, err := c.declare(name, llir.Void, params...)
	if err != nil {
		return err
	}
	args := make([]llir.Value, 0, len(angles)+len(qubits))
	args = append(args, angles...)
	args = append(args, qubits...)
	c.B.Call(fn, args...)
	return nil
}

// Alloc emits a qubit allocation.
func (c *Context) Alloc() (llir.Value, error) {
	fn, err := c.declare(QubitAllocate, c.Qubit)
	if err != nil {
		return nil, err
	}
	q := c.B.Call(fn)
	q.Hint = "qubit"
	return q, nil
}

// Free releases a qubit.
func (c *Context) Free(q llir.Value) error {
	fn, err := c.declare(QubitRelease, llir.Void, c.Qubit)
	if err != nil {
		return err
	}
	c.B.Call(fn, q)
	return nil
}

// MeasureToHandle converts a qubit into a fresh result handle and measures
// into it.
func (c *Context) MeasureToHandle(q llir.Value) (llir.Value, error) {
	conv, err := c.declare(QubitToResult, c.Result, c.Qubit)
	if err != nil {
		return nil, err
	}
	mz, err := c.declare(MeasureZ, llir.Void, c.Qubit, c.Result)
	if err != nil {
		return nil, err
	}
	r := c.B.Call(conv, q)
	r.Hint = "result"
	c.B.Call(mz, q, r)
	return r, nil
}

// Read turns a result handle into a boolean. read_result already returns
// i1, so no trunc follows the call.
func (c *Context) Read(r llir.Value) (llir.Value, error) {
	fn, err := c.declare(ReadResult, llir.I1, c.Result)
	if err != nil {
		return nil, err
	}
	return c.B.Call(fn, r), nil
}

// Record emits an output recording call for v under tag.
func (c *Context) Record(name string, v llir.Value, tag string) error {
	if tag == "" {
		return ErrEmptyResultTag
	}
	fn, err := c.declare(name, llir.Void, v.Type(), llir.I8Ptr)
	if err != nil {
		return err
	}
	c.B.Call(fn, v, c.Module.StringPtr(tag))
	return nil
}

// gate lowers an n-qubit gate; its outputs are its inputs.
func gate(name string, n int) entry {
	sig := graph.Sig(graph.Qubits(n), graph.Qubits(n))
	return entry{sig, func(c *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
		if err := c.Gate(name, nil, args); err != nil {
			return nil, err
		}
		return args, nil
	}}
}

// rotation lowers a gate on n qubits followed by k angle inputs.
func rotation(name string, n, k int) entry {
	inputs := append(graph.Qubits(n), make([]graph.Type, k)...)
	for i := n; i < n+k; i++ {
		inputs[i] = graph.TypeFloat
	}
	sig := graph.Sig(inputs, graph.Qubits(n))
	return entry{sig, func(c *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
		qubits, angles := args[:n], args[n:]
		if err := c.Gate(name, angles, qubits); err != nil {
			return nil, err
		}
		return qubits, nil
	}}
}

func (r *Registry) add(dialect, name string, e entry) {
	r.Register(graph.OpKey{Dialect: dialect, Name: name}, e.sig, e.lower)
}

func types(ts ...graph.Type) []graph.Type {
	return ts
}
