package qis

import (
	"hugrqir/internal/graph"
	"hugrqir/internal/llir"
)

const dialectQSystem = "tket2.qsystem"

func registerQSystem(r *Registry) {
	r.add(dialectQSystem, "Rz", rotation("__quantum__qis__rz__body", 1, 1))
	r.add(dialectQSystem, "PhasedX", rotation("__quantum__qis__phasedx__body", 1, 2))
	r.add(dialectQSystem, "ZZMax", gate("__quantum__qis__zzmax__body", 2))
	r.add(dialectQSystem, "ZZPhase", rotation("__quantum__qis__rzz__body", 2, 1))
	r.add(dialectQSystem, "Reset", gate(ResetGate, 1))
	r.add(dialectQSystem, "QFree", entry{graph.Sig(graph.Qubits(1), nil), lowerFree})
	// The optional qubit is flattened to a presence flag and the handle.
	// Static allocation never fails, so the flag is always set.
	r.add(dialectQSystem, "TryQAlloc", entry{
		graph.Sig(nil, types(graph.TypeBool, graph.TypeQubit)),
		func(c *Context, _ graph.Op, _ []llir.Value) ([]llir.Value, error) {
			q, err := c.Alloc()
			if err != nil {
				return nil, err
			}
			return []llir.Value{llir.Bool(true), q}, nil
		},
	})

	// Measure consumes the qubit.
	r.add(dialectQSystem, "Measure", entry{
		graph.Sig(graph.Qubits(1), types(graph.TypeBool)),
		func(c *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
			bit, err := c.measureRead(args[0])
			if err != nil {
				return nil, err
			}
			return []llir.Value{bit}, nil
		},
	})
	// Futures are plain booleans, so a lazy measurement is read eagerly.
	r.add(dialectQSystem, "LazyMeasure", entry{
		graph.Sig(graph.Qubits(1), types(graph.TypeQubit, graph.TypeFuture)),
		func(c *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
			bit, err := c.measureRead(args[0])
			if err != nil {
				return nil, err
			}
			return []llir.Value{args[0], bit}, nil
		},
	})
	r.add(dialectQSystem, "MeasureReset", entry{
		graph.Sig(graph.Qubits(1), types(graph.TypeQubit, graph.TypeBool)),
		lowerMeasureReset,
	})
}

// lowerMeasureReset is measure-to-handle, reset, read.
func lowerMeasureReset(c *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
	q := args[0]
	r, err := c.MeasureToHandle(q)
	if err != nil {
		return nil, err
	}
	if err := c.Gate(ResetGate, nil, []llir.Value{q}); err != nil {
		return nil, err
	}
	bit, err := c.Read(r)
	if err != nil {
		return nil, err
	}
	return []llir.Value{q, bit}, nil
}
