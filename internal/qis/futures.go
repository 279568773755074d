package qis

import (
	"hugrqir/internal/graph"
	"hugrqir/internal/llir"
)

const dialectFutures = "tket2.futures"

// Futures lower to the boolean they hold; every op is a pure rewiring.
func registerFutures(r *Registry) {
	r.add(dialectFutures, "Read", entry{
		graph.Sig(types(graph.TypeFuture), types(graph.TypeBool)),
		func(_ *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
			return args, nil
		},
	})
	r.add(dialectFutures, "Dup", entry{
		graph.Sig(types(graph.TypeFuture), types(graph.TypeFuture, graph.TypeFuture)),
		func(_ *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
			return []llir.Value{args[0], args[0]}, nil
		},
	})
	r.add(dialectFutures, "Free", entry{
		graph.Sig(types(graph.TypeFuture), nil),
		func(_ *Context, _ graph.Op, _ []llir.Value) ([]llir.Value, error) {
			return nil, nil
		},
	})
}
