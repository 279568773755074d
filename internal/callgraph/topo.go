package callgraph

import (
	"slices"

	"hugrqir/internal/graph"
)

// Topo is the result of ordering a call graph callers-first.
type Topo struct {
	Order   []graph.NodeID   // callers before callees
	Batches [][]graph.NodeID // waves of functions with no pending caller
	Cyclic  bool
	Cycles  []graph.NodeID // functions left on or behind a cycle
}

// Toposort orders functions so every caller precedes its callees.
func (cg *Graph) Toposort() *Topo {
	n := len(cg.Funcs)
	indeg := slices.Clone(cg.Indeg)
	topo := &Topo{
		Order:   make([]graph.NodeID, 0, n),
		Batches: make([][]graph.NodeID, 0),
	}

	current := make([]int, 0, n)
	for i := range n {
		if indeg[i] == 0 {
			current = append(current, i)
		}
	}

	visited := 0
	for len(current) > 0 {
		batch := make([]graph.NodeID, 0, len(current))
		next := make([]int, 0)
		for _, i := range current {
			batch = append(batch, cg.Funcs[i])
			topo.Order = append(topo.Order, cg.Funcs[i])
			visited++
			for _, to := range cg.Edges[i] {
				indeg[to]--
				if indeg[to] == 0 {
					next = append(next, to)
				}
			}
		}
		topo.Batches = append(topo.Batches, batch)
		slices.Sort(next)
		current = next
	}

	if visited != n {
		topo.Cyclic = true
		for i := range n {
			if indeg[i] > 0 {
				topo.Cycles = append(topo.Cycles, cg.Funcs[i])
			}
		}
	}
	return topo
}

// CalleesFirst returns Order reversed; only meaningful when !Cyclic.
func (t *Topo) CalleesFirst() []graph.NodeID {
	out := slices.Clone(t.Order)
	slices.Reverse(out)
	return out
}
