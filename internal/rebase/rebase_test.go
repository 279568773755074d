package rebase

import (
	"errors"
	"math"
	"testing"

	"hugrqir/internal/dce"
	"hugrqir/internal/graph"
)

func connect(t *testing.T, g *graph.Graph, src, dst graph.Port) {
	t.Helper()
	if err := g.Connect(src, dst); err != nil {
		t.Fatalf("connect %s -> %s: %v", src, dst, err)
	}
}

func opsIn(g *graph.Graph, fn graph.NodeID) []graph.Op {
	var out []graph.Op
	for _, id := range g.Children(fn) {
		if n := g.Node(id); n.Kind == graph.KindOp {
			out = append(out, n.Op)
		}
	}
	return out
}

func TestRunRewritesVToRx(t *testing.T) {
	for _, tc := range []struct {
		name  string
		angle float64
	}{
		{"V", math.Pi / 2},
		{"Vdg", -math.Pi / 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := graph.New()
			main := g.AddFunc("main", graph.Sig(graph.Qubits(1), graph.Qubits(1)))
			v := g.AddOp(main.Node, graph.Op{Dialect: quantum, Name: tc.name}, graph.Sig(graph.Qubits(1), graph.Qubits(1)))
			connect(t, g, main.In(0), graph.In(v, 0))
			connect(t, g, graph.Out(v, 0), main.Out(0))

			stats, err := Run(g, Options{Validate: true})
			if err != nil {
				t.Fatalf("rebase: %v", err)
			}
			if stats.Rewritten[quantum+"."+tc.name] != 1 {
				t.Fatalf("stats = %v", stats.Rewritten)
			}
			if g.Contains(v) {
				t.Fatal("original gate survived")
			}
			ops := opsIn(g, main.Node)
			if len(ops) != 1 || ops[0].Name != "Rx" {
				t.Fatalf("ops = %v", ops)
			}
			rx, ok := g.Source(main.Out(0))
			if !ok {
				t.Fatal("output disconnected")
			}
			angle, _ := g.Source(graph.In(rx.Node, 1))
			if got := g.Node(angle.Node).Const.Float; got != tc.angle {
				t.Fatalf("angle = %v, want %v", got, tc.angle)
			}
		})
	}
}

func TestRunExpandsSwap(t *testing.T) {
	g := graph.New()
	main := g.AddFunc("main", graph.Sig(graph.Qubits(2), graph.Qubits(2)))
	swap := g.AddOp(main.Node, graph.Op{Dialect: quantum, Name: "SWAP"}, graph.Sig(graph.Qubits(2), graph.Qubits(2)))
	connect(t, g, main.In(0), graph.In(swap, 0))
	connect(t, g, main.In(1), graph.In(swap, 1))
	connect(t, g, graph.Out(swap, 0), main.Out(0))
	connect(t, g, graph.Out(swap, 1), main.Out(1))

	if _, err := Run(g, Options{Validate: true}); err != nil {
		t.Fatalf("rebase: %v", err)
	}
	ops := opsIn(g, main.Node)
	if len(ops) != 3 {
		t.Fatalf("expected three CX, got %v", ops)
	}
	order, err := g.Order(main.Node)
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	first := order[1]
	for i := range 2 {
		src, _ := g.Source(graph.In(first, i))
		if src.Node != main.Input || src.Index != i {
			t.Fatalf("first CX input %d fed by %v", i, src)
		}
	}
	// first and last CX share orientation, the middle one is flipped
	mid := order[2]
	src, _ := g.Source(graph.In(mid, 0))
	if src.Node != first || src.Index != 1 {
		t.Fatalf("middle CX control fed by %v", src)
	}
}

func TestRunRequiresEntryPoint(t *testing.T) {
	g := graph.New()
	g.AddFunc("not_main", graph.Sig(nil, nil))
	if _, err := Run(g, Options{}); !errors.Is(err, dce.ErrEntryPoint) {
		t.Fatalf("expected entry point error, got %v", err)
	}
}
