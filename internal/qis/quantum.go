package qis

import (
	"hugrqir/internal/graph"
	"hugrqir/internal/llir"
)

const dialectQuantum = "tket2.quantum"

func registerQuantum(r *Registry) {
	for name, intrinsic := range map[string]string{
		"H":     "__quantum__qis__h__body",
		"X":     "__quantum__qis__x__body",
		"Y":     "__quantum__qis__y__body",
		"Z":     "__quantum__qis__z__body",
		"S":     "__quantum__qis__s__body",
		"Sdg":   "__quantum__qis__s__adj",
		"T":     "__quantum__qis__t__body",
		"Tdg":   "__quantum__qis__t__adj",
		"Reset": ResetGate,
	} {
		r.add(dialectQuantum, name, gate(intrinsic, 1))
	}
	r.add(dialectQuantum, "CX", gate("__quantum__qis__cx__body", 2))
	r.add(dialectQuantum, "CY", gate("__quantum__qis__cy__body", 2))
	r.add(dialectQuantum, "CZ", gate("__quantum__qis__cz__body", 2))
	r.add(dialectQuantum, "Rx", rotation("__quantum__qis__rx__body", 1, 1))
	r.add(dialectQuantum, "Ry", rotation("__quantum__qis__ry__body", 1, 1))
	r.add(dialectQuantum, "Rz", rotation("__quantum__qis__rz__body", 1, 1))

	r.add(dialectQuantum, "QAlloc", entry{
		graph.Sig(nil, graph.Qubits(1)),
		func(c *Context, _ graph.Op, _ []llir.Value) ([]llir.Value, error) {
			q, err := c.Alloc()
			if err != nil {
				return nil, err
			}
			return []llir.Value{q}, nil
		},
	})
	r.add(dialectQuantum, "QFree", entry{graph.Sig(graph.Qubits(1), nil), lowerFree})

	// Measure keeps the qubit alive.
	r.add(dialectQuantum, "Measure", entry{
		graph.Sig(graph.Qubits(1), types(graph.TypeQubit, graph.TypeBool)),
		func(c *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
			bit, err := c.measureRead(args[0])
			if err != nil {
				return nil, err
			}
			return []llir.Value{args[0], bit}, nil
		},
	})
	r.add(dialectQuantum, "MeasureFree", entry{
		graph.Sig(graph.Qubits(1), types(graph.TypeBool)),
		lowerMeasureFree,
	})
}

func lowerFree(c *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
	return nil, c.Free(args[0])
}

// lowerMeasureFree is measure-to-handle, release, read.
func lowerMeasureFree(c *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
	r, err := c.MeasureToHandle(args[0])
	if err != nil {
		return nil, err
	}
	if err := c.Free(args[0]); err != nil {
		return nil, err
	}
	bit, err := c.Read(r)
	if err != nil {
		return nil, err
	}
	return []llir.Value{bit}, nil
}

func (c *Context) measureRead(q llir.Value) (llir.Value, error) {
	r, err := c.MeasureToHandle(q)
	if err != nil {
		return nil, err
	}
	return c.Read(r)
}
