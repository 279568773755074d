// Package callgraph derives the function-level call graph of a program graph
// and orders it with Kahn's algorithm.
package callgraph

import (
	"slices"

	"hugrqir/internal/graph"
)

// Graph is a dense call graph. Vertex i is Funcs[i]; Edges[i] lists the
// distinct callees of i. Sites keeps the contributing call nodes per edge.
type Graph struct {
	Funcs []graph.NodeID
	Index map[graph.NodeID]int
	Edges [][]int
	Indeg []int
	Sites map[[2]int][]graph.NodeID
}

// Build collects call edges from every live call node for which keep returns
// true. A nil keep selects every call.
func Build(g *graph.Graph, keep func(call graph.NodeID) bool) *Graph {
	funcs := g.Functions()
	cg := &Graph{
		Funcs: funcs,
		Index: make(map[graph.NodeID]int, len(funcs)),
		Edges: make([][]int, len(funcs)),
		Indeg: make([]int, len(funcs)),
		Sites: make(map[[2]int][]graph.NodeID),
	}
	for i, fn := range funcs {
		cg.Index[fn] = i
	}
	for _, call := range g.Calls() {
		if keep != nil && !keep(call) {
			continue
		}
		from, okFrom := cg.Index[g.EnclosingFunc(call)]
		to, okTo := cg.Index[g.Node(call).Callee]
		if !okFrom || !okTo {
			continue
		}
		key := [2]int{from, to}
		if _, seen := cg.Sites[key]; !seen {
			cg.Edges[from] = append(cg.Edges[from], to)
			cg.Indeg[to]++
		}
		cg.Sites[key] = append(cg.Sites[key], call)
	}
	for i := range cg.Edges {
		slices.Sort(cg.Edges[i])
	}
	return cg
}

// Callees returns the distinct functions called by fn.
func (cg *Graph) Callees(fn graph.NodeID) []graph.NodeID {
	i, ok := cg.Index[fn]
	if !ok {
		return nil
	}
	out := make([]graph.NodeID, 0, len(cg.Edges[i]))
	for _, to := range cg.Edges[i] {
		out = append(out, cg.Funcs[to])
	}
	return out
}

// Reachable returns every function reachable from roots, roots included,
// in module order.
func (cg *Graph) Reachable(roots ...graph.NodeID) []graph.NodeID {
	seen := make([]bool, len(cg.Funcs))
	var stack []int
	for _, r := range roots {
		if i, ok := cg.Index[r]; ok && !seen[i] {
			seen[i] = true
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, to := range cg.Edges[cur] {
			if !seen[to] {
				seen[to] = true
				stack = append(stack, to)
			}
		}
	}
	var out []graph.NodeID
	for i, ok := range seen {
		if ok {
			out = append(out, cg.Funcs[i])
		}
	}
	return out
}
