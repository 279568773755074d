package callgraph

import (
	"slices"
	"testing"

	"hugrqir/internal/graph"
)

// addCallSite appends a zero-arity call from caller to callee.
func addCallSite(g *graph.Graph, caller, callee graph.NodeID) graph.NodeID {
	return g.AddCall(caller, callee)
}

func TestToposortOrdersCallersFirst(t *testing.T) {
	g := graph.New()
	leaf := g.AddFunc("leaf", graph.Sig(nil, nil)).Node
	mid := g.AddFunc("mid", graph.Sig(nil, nil)).Node
	main := g.AddFunc("main", graph.Sig(nil, nil)).Node
	addCallSite(g, main, mid)
	addCallSite(g, main, leaf)
	addCallSite(g, mid, leaf)
	addCallSite(g, mid, leaf)

	cg := Build(g, nil)
	if got := cg.Callees(mid); !slices.Equal(got, []graph.NodeID{leaf}) {
		t.Fatalf("callees(mid) = %v", got)
	}
	if sites := cg.Sites[[2]int{cg.Index[mid], cg.Index[leaf]}]; len(sites) != 2 {
		t.Fatalf("expected two call sites mid->leaf, got %v", sites)
	}

	topo := cg.Toposort()
	if topo.Cyclic {
		t.Fatalf("unexpected cycle: %v", topo.Cycles)
	}
	want := []graph.NodeID{main, mid, leaf}
	if !slices.Equal(topo.Order, want) {
		t.Fatalf("order = %v, want %v", topo.Order, want)
	}
	if len(topo.Batches) != 3 {
		t.Fatalf("batches = %v", topo.Batches)
	}
	if got := topo.CalleesFirst(); !slices.Equal(got, []graph.NodeID{leaf, mid, main}) {
		t.Fatalf("callees first = %v", got)
	}
}

func TestToposortReportsCycles(t *testing.T) {
	g := graph.New()
	a := g.AddFunc("a", graph.Sig(nil, nil)).Node
	b := g.AddFunc("b", graph.Sig(nil, nil)).Node
	main := g.AddFunc("main", graph.Sig(nil, nil)).Node
	addCallSite(g, main, a)
	addCallSite(g, a, b)
	addCallSite(g, b, a)

	topo := Build(g, nil).Toposort()
	if !topo.Cyclic {
		t.Fatal("expected a cycle")
	}
	if !slices.Equal(topo.Cycles, []graph.NodeID{a, b}) {
		t.Fatalf("cycles = %v", topo.Cycles)
	}
	if !slices.Equal(topo.Order, []graph.NodeID{main}) {
		t.Fatalf("order = %v", topo.Order)
	}
}

func TestBuildFilterAndReachable(t *testing.T) {
	g := graph.New()
	a := g.AddFunc("a", graph.Sig(nil, nil)).Node
	b := g.AddFunc("b", graph.Sig(nil, nil)).Node
	unused := g.AddFunc("unused", graph.Sig(nil, nil)).Node
	main := g.AddFunc("main", graph.Sig(nil, nil)).Node
	toA := addCallSite(g, main, a)
	addCallSite(g, a, b)
	addCallSite(g, b, a)

	// Only the main->a edge: the a<->b cycle disappears.
	cg := Build(g, func(call graph.NodeID) bool { return call == toA })
	if topo := cg.Toposort(); topo.Cyclic {
		t.Fatalf("filtered graph should be acyclic, cycles %v", topo.Cycles)
	}

	full := Build(g, nil)
	got := full.Reachable(main)
	if !slices.Equal(got, []graph.NodeID{a, b, main}) {
		t.Fatalf("reachable = %v", got)
	}
	if slices.Contains(got, unused) {
		t.Fatal("unused function reported reachable")
	}
}
