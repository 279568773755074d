// Package inline flattens selected call sites of a program graph.
package inline

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"hugrqir/internal/callgraph"
	"hugrqir/internal/graph"
)

var (
	ErrInvalidArgument = errors.New("invalid inlining argument")
	ErrCyclicCallGraph = errors.New("cyclic call graph")
)

// CycleError names the functions that could not be ordered.
type CycleError struct {
	Funcs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: recursion among %s", ErrCyclicCallGraph, strings.Join(e.Funcs, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicCallGraph }

// AllCalls returns every call site in the graph.
func AllCalls(g *graph.Graph) []graph.NodeID {
	return g.Calls()
}

// Inline replaces every call in calls with a copy of its callee body.
//
// Functions are processed callees first, so by the time a body is copied
// into its callers all selected calls inside it are already resolved and
// one pass suffices. The caller's signature is never changed.
func Inline(g *graph.Graph, calls []graph.NodeID) error {
	selected := make(map[graph.NodeID]struct{}, len(calls))
	for _, id := range calls {
		n := g.Node(id)
		if n == nil || n.Kind != graph.KindCall {
			return fmt.Errorf("%w: node %d is not a call", ErrInvalidArgument, id)
		}
		selected[id] = struct{}{}
	}
	if len(selected) == 0 {
		return nil
	}

	cg := callgraph.Build(g, func(call graph.NodeID) bool {
		_, ok := selected[call]
		return ok
	})
	topo := cg.Toposort()
	if topo.Cyclic {
		names := make([]string, 0, len(topo.Cycles))
		for _, fn := range topo.Cycles {
			names = append(names, g.Node(fn).Name)
		}
		return &CycleError{Funcs: names}
	}

	for _, caller := range topo.CalleesFirst() {
		for _, call := range sitesIn(cg, caller) {
			if err := g.InlineCall(call); err != nil {
				return fmt.Errorf("inline call %d in %q: %w", call, g.Node(caller).Name, err)
			}
		}
	}

	for id := range selected {
		if g.Contains(id) {
			return fmt.Errorf("%w: call %d survived inlining", graph.ErrGraph, id)
		}
	}
	return nil
}

// sitesIn lists the selected call sites located in caller, in graph order.
func sitesIn(cg *callgraph.Graph, caller graph.NodeID) []graph.NodeID {
	from := cg.Index[caller]
	var out []graph.NodeID
	for _, to := range cg.Edges[from] {
		out = append(out, cg.Sites[[2]int{from, to}]...)
	}
	slices.Sort(out)
	return out
}
