// Package rebase rewrites generic gates into the operations the instruction
// selector understands and checks the entry point before lowering starts.
package rebase

import (
	"fmt"
	"math"

	"hugrqir/internal/dce"
	"hugrqir/internal/graph"
)

const quantum = "tket2.quantum"

// Options controls a rebase run.
type Options struct {
	// Validate re-checks the graph after rewriting.
	Validate bool
}

// Stats counts rewritten nodes per source operation.
type Stats struct {
	Rewritten map[string]int
}

type rule func(g *graph.Graph, node graph.NodeID) error

var rules = map[graph.OpKey]rule{
	{Dialect: quantum, Name: "V"}:    rotateX(math.Pi / 2),
	{Dialect: quantum, Name: "Vdg"}:  rotateX(-math.Pi / 2),
	{Dialect: quantum, Name: "SWAP"}: swapToCX,
}

// Run applies every rewrite rule to g in place.
func Run(g *graph.Graph, opts Options) (Stats, error) {
	stats := Stats{Rewritten: make(map[string]int)}
	if _, err := dce.FindEntry(g); err != nil {
		return stats, err
	}

	var matches []graph.NodeID
	g.Walk(g.Root(), func(id graph.NodeID) bool {
		n := g.Node(id)
		if n.Kind == graph.KindOp {
			if _, ok := rules[n.Op.Key()]; ok {
				matches = append(matches, id)
			}
		}
		return true
	})
	for _, id := range matches {
		key := g.Node(id).Op.Key()
		if err := rules[key](g, id); err != nil {
			return stats, fmt.Errorf("rebase %s (node %d): %w", key, id, err)
		}
		stats.Rewritten[key.String()]++
	}

	if opts.Validate {
		if err := g.Check(); err != nil {
			return stats, fmt.Errorf("after rebase: %w", err)
		}
	}
	return stats, nil
}

// rotateX replaces a fixed-angle single qubit gate with Rx(angle).
func rotateX(angle float64) rule {
	return func(g *graph.Graph, node graph.NodeID) error {
		if err := expectPorts(g, node, 1); err != nil {
			return err
		}
		parent := g.Parent(node)
		c := g.AddConst(parent, graph.ConstValue{Type: graph.TypeFloat, Float: angle})
		rx := g.AddOp(parent, graph.Op{Dialect: quantum, Name: "Rx", Angle: fmt.Sprintf("%g", angle)},
			graph.Sig([]graph.Type{graph.TypeQubit, graph.TypeFloat}, graph.Qubits(1)))
		for _, id := range []graph.NodeID{c, rx} {
			if err := g.MoveBefore(id, node); err != nil {
				return err
			}
		}
		if err := g.Reconnect(graph.In(node, 0), graph.In(rx, 0)); err != nil {
			return err
		}
		if err := g.Connect(graph.Out(c, 0), graph.In(rx, 1)); err != nil {
			return err
		}
		if err := g.ReplaceUses(graph.Out(node, 0), graph.Out(rx, 0)); err != nil {
			return err
		}
		return g.RemoveSubtree(node)
	}
}

// swapToCX expands SWAP(a, b) into CX(a,b) CX(b,a) CX(a,b).
func swapToCX(g *graph.Graph, node graph.NodeID) error {
	if err := expectPorts(g, node, 2); err != nil {
		return err
	}
	parent := g.Parent(node)
	sig := graph.Sig(graph.Qubits(2), graph.Qubits(2))
	var cx [3]graph.NodeID
	for i := range cx {
		cx[i] = g.AddOp(parent, graph.Op{Dialect: quantum, Name: "CX"}, sig)
		if err := g.MoveBefore(cx[i], node); err != nil {
			return err
		}
	}
	edges := [][2]graph.Port{
		{graph.Out(cx[0], 1), graph.In(cx[1], 0)},
		{graph.Out(cx[0], 0), graph.In(cx[1], 1)},
		{graph.Out(cx[1], 1), graph.In(cx[2], 0)},
		{graph.Out(cx[1], 0), graph.In(cx[2], 1)},
	}
	if err := g.Reconnect(graph.In(node, 0), graph.In(cx[0], 0)); err != nil {
		return err
	}
	if err := g.Reconnect(graph.In(node, 1), graph.In(cx[0], 1)); err != nil {
		return err
	}
	for _, e := range edges {
		if err := g.Connect(e[0], e[1]); err != nil {
			return err
		}
	}
	// cx[1] runs with control and target exchanged; cx[2] is back on the
	// original wires.
	if err := g.ReplaceUses(graph.Out(node, 0), graph.Out(cx[2], 0)); err != nil {
		return err
	}
	if err := g.ReplaceUses(graph.Out(node, 1), graph.Out(cx[2], 1)); err != nil {
		return err
	}
	return g.RemoveSubtree(node)
}

func expectPorts(g *graph.Graph, node graph.NodeID, qubits int) error {
	n := g.Node(node)
	want := graph.Sig(graph.Qubits(qubits), graph.Qubits(qubits))
	if !n.Sig.Equal(want) {
		return fmt.Errorf("%w: %s has signature %s, want %s", graph.ErrGraph, n.Op.Key(), n.Sig, want)
	}
	return nil
}
