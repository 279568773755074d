package buildpipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"hugrqir/internal/abi"
	"hugrqir/internal/dce"
	"hugrqir/internal/graph"
	"hugrqir/internal/inline"
	"hugrqir/internal/llir"
	"hugrqir/internal/qis"
	"hugrqir/internal/trace"
)

var (
	opQAlloc      = graph.Op{Dialect: "tket2.quantum", Name: "QAlloc"}
	opQFree       = graph.Op{Dialect: "tket2.quantum", Name: "QFree"}
	opH           = graph.Op{Dialect: "tket2.quantum", Name: "H"}
	opMeasureFree = graph.Op{Dialect: "tket2.quantum", Name: "MeasureFree"}
)

var defaultOpts = Options{Validate: true, RewriteEntry: true}

func connect(t *testing.T, g *graph.Graph, src, dst graph.Port) {
	t.Helper()
	if err := g.Connect(src, dst); err != nil {
		t.Fatalf("connect %s -> %s: %v", src, dst, err)
	}
}

// allocFree adds QAlloc followed by QFree to region.
func allocFree(t *testing.T, g *graph.Graph, region graph.NodeID) {
	t.Helper()
	q := g.AddOp(region, opQAlloc, graph.Sig(nil, graph.Qubits(1)))
	free := g.AddOp(region, opQFree, graph.Sig(graph.Qubits(1), nil))
	connect(t, g, graph.Out(q, 0), graph.In(free, 0))
}

func scenarioA(t *testing.T) *graph.Graph {
	g := graph.New()
	main := g.AddFunc("main", graph.Sig(nil, nil))
	allocFree(t, g, main.Node)
	return g
}

// scenarioB calls a helper that allocates one qubit twice from main.
func scenarioB(t *testing.T) *graph.Graph {
	g := graph.New()
	helper := g.AddFunc("helper", graph.Sig(nil, nil))
	allocFree(t, g, helper.Node)
	main := g.AddFunc("main", graph.Sig(nil, nil))
	g.AddCall(main.Node, helper.Node)
	g.AddCall(main.Node, helper.Node)
	return g
}

func scenarioC(t *testing.T) *graph.Graph {
	g := graph.New()
	main := g.AddFunc("main", graph.Sig(nil, nil))
	q := g.AddOp(main.Node, opQAlloc, graph.Sig(nil, graph.Qubits(1)))
	m := g.AddOp(main.Node, opMeasureFree, graph.Sig(graph.Qubits(1), []graph.Type{graph.TypeBool}))
	rec := g.AddOp(main.Node, graph.Op{Dialect: "tket2.result", Name: "result_bool"}, graph.Sig([]graph.Type{graph.TypeBool}, nil))
	connect(t, g, graph.Out(q, 0), graph.In(m, 0))
	connect(t, g, graph.Out(m, 0), graph.In(rec, 0))
	return g
}

// scenarioD has two helpers calling each other.
func scenarioD(t *testing.T) *graph.Graph {
	g := graph.New()
	even := g.AddFunc("even", graph.Sig(nil, nil))
	odd := g.AddFunc("odd", graph.Sig(nil, nil))
	g.AddCall(even.Node, odd.Node)
	g.AddCall(odd.Node, even.Node)
	main := g.AddFunc("main", graph.Sig(nil, nil))
	g.AddCall(main.Node, even.Node)
	return g
}

func compile(t *testing.T, g *graph.Graph, opts Options, sink ProgressSink) (CompileResult, error) {
	t.Helper()
	return Compile(context.Background(), &CompileRequest{Graph: g, Options: opts, Progress: sink, File: "test.json"})
}

func attr(t *testing.T, res CompileResult, key string) string {
	t.Helper()
	fn := res.Module.Func(res.Entry)
	if fn == nil {
		t.Fatalf("entry @%s missing", res.Entry)
	}
	a, ok := fn.Attr(key)
	if !ok {
		t.Fatalf("attribute %q missing on @%s", key, res.Entry)
	}
	return a.Value
}

func TestScenarioSingleQubit(t *testing.T) {
	rec := &Recorder{}
	res, err := compile(t, scenarioA(t), defaultOpts, rec)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.State != StateOptimized || res.Module == nil {
		t.Fatalf("state = %s, module = %v", res.State, res.Module)
	}
	if got := attr(t, res, abi.AttrRequiredQubits); got != "1" {
		t.Fatalf("required_num_qubits = %q", got)
	}
	if got := attr(t, res, abi.AttrRequiredResults); got != "0" {
		t.Fatalf("required_num_results = %q", got)
	}
	if _, ok := res.Module.Flag(abi.FlagMajorVersion); !ok {
		t.Fatal("module flags missing")
	}
	if err := llir.Verify(res.Module); err != nil {
		t.Fatalf("verify: %v", err)
	}

	var done []Stage
	for _, ev := range rec.Events() {
		if ev.Status == StatusDone {
			done = append(done, ev.Stage)
		}
		if ev.File != "test.json" {
			t.Fatalf("event for %q", ev.File)
		}
	}
	want := []Stage{StageRebase, StageInline, StagePrune, StageEmit, StageAssign, StageStamp, StageOptimize}
	if len(done) != len(want) {
		t.Fatalf("done stages = %v, want %v", done, want)
	}
	for i := range want {
		if done[i] != want[i] || !res.Timings.Has(want[i]) {
			t.Fatalf("done stages = %v, want %v", done, want)
		}
	}
}

func TestScenarioInlinedHelperAddresses(t *testing.T) {
	res, err := compile(t, scenarioB(t), defaultOpts, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.Counters.Qubits != 2 || res.Counters.Results != 0 {
		t.Fatalf("counters = %+v", res.Counters)
	}
	if defs := res.Module.Definitions(); len(defs) != 1 {
		t.Fatalf("expected one body, got %d", len(defs))
	}
	var addrs []int64
	for _, in := range res.Module.Func(res.Entry).Instrs() {
		if in.Op != llir.OpCall || in.Callee.Name != qis.QubitRelease {
			continue
		}
		h, ok := in.Operands[0].(*llir.IntToPtr)
		if !ok {
			t.Fatalf("release operand %v is not a static handle", in.Operands[0])
		}
		addrs = append(addrs, h.V)
	}
	if len(addrs) != 2 || addrs[0] != 0 || addrs[1] != 1 {
		t.Fatalf("addresses = %v, want [0 1]", addrs)
	}
	if res.Module.Func(qis.QubitAllocate) != nil {
		t.Fatal("allocation placeholder survived")
	}
	if got := attr(t, res, abi.AttrRequiredQubits); got != "2" {
		t.Fatalf("required_num_qubits = %q", got)
	}
}

func TestScenarioEmptyTag(t *testing.T) {
	res, err := compile(t, scenarioC(t), defaultOpts, nil)
	if !errors.Is(err, qis.ErrEmptyResultTag) || !errors.Is(err, qis.ErrLowering) {
		t.Fatalf("expected ErrEmptyResultTag, got %v", err)
	}
	if res.Module != nil || res.State != StateFailed {
		t.Fatalf("state = %s, module = %v", res.State, res.Module)
	}
	if res.Timings.Has(StageOptimize) {
		t.Fatal("optimizer ran after a lowering failure")
	}
}

func TestScenarioCyclicHelpers(t *testing.T) {
	res, err := compile(t, scenarioD(t), defaultOpts, nil)
	if !errors.Is(err, inline.ErrCyclicCallGraph) {
		t.Fatalf("expected ErrCyclicCallGraph, got %v", err)
	}
	var cycle *inline.CycleError
	if !errors.As(err, &cycle) || len(cycle.Funcs) == 0 {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if res.State != StateFailed || res.Timings.Has(StageEmit) {
		t.Fatalf("emission reached: state = %s", res.State)
	}
}

func TestMissingEntry(t *testing.T) {
	g := graph.New()
	helper := g.AddFunc("helper", graph.Sig(nil, nil))
	allocFree(t, g, helper.Node)
	_, err := compile(t, g, defaultOpts, nil)
	if !errors.Is(err, dce.ErrMissingEntryPoint) {
		t.Fatalf("expected ErrMissingEntryPoint, got %v", err)
	}

	g.AddFunc("main", graph.Sig(nil, nil))
	g.AddFunc("main", graph.Sig(nil, nil))
	_, err = compile(t, g, defaultOpts, nil)
	if !errors.Is(err, dce.ErrAmbiguousEntryPoint) || !errors.Is(err, dce.ErrEntryPoint) {
		t.Fatalf("expected ErrAmbiguousEntryPoint, got %v", err)
	}
}

// conditionalShapeDoc declares a float output on a conditional whose cases
// yield nothing.
const conditionalShapeDoc = `{"version":1,"nodes":[
	{"id":0,"kind":"Module"},
	{"id":1,"parent":0,"kind":"FuncDefn","name":"main"},
	{"id":2,"parent":1,"kind":"Input"},
	{"id":3,"parent":1,"kind":"Output"},
	{"id":4,"parent":1,"kind":"Const","value":{"type":"bool","bool":true}},
	{"id":5,"parent":1,"kind":"Conditional","inputs":["bool"],"outputs":["float"]},
	{"id":6,"parent":5,"kind":"Case"},
	{"id":7,"parent":6,"kind":"Input"},
	{"id":8,"parent":6,"kind":"Output"},
	{"id":9,"parent":5,"kind":"Case"},
	{"id":10,"parent":9,"kind":"Input"},
	{"id":11,"parent":9,"kind":"Output"}],
	"edges":[{"src":4,"src_port":0,"dst":5,"dst_port":0}]}`

func TestMalformedConditionalWithoutValidation(t *testing.T) {
	for _, validate := range []bool{false, true} {
		g, err := graph.Decode(strings.NewReader(conditionalShapeDoc), graph.FormatJSON)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		opts := defaultOpts
		opts.Validate = validate
		res, err := compile(t, g, opts, nil)
		if !errors.Is(err, graph.ErrGraph) {
			t.Fatalf("validate=%v: expected ErrGraph, got %v", validate, err)
		}
		if res.State != StateFailed || res.Module != nil {
			t.Fatalf("validate=%v: state = %s", validate, res.State)
		}
	}
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()
	p, err := New(scenarioA(t), defaultOpts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.Inline(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("inline on raw graph: %v", err)
	}
	if p.State() != StateRaw {
		t.Fatalf("state = %s after rejected transition", p.State())
	}
	if err := p.RunUntil(ctx, StatePruned); err != nil {
		t.Fatalf("run until pruned: %v", err)
	}
	if p.State() != StatePruned || p.Module() != nil {
		t.Fatalf("state = %s", p.State())
	}
	if err := p.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if p.Module() == nil || p.Entry() != "main" {
		t.Fatalf("module = %v, entry = %q", p.Module(), p.Entry())
	}
	if err := p.Optimize(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second optimize: %v", err)
	}
}

func TestFailedIsTerminal(t *testing.T) {
	ctx := context.Background()
	p, err := New(scenarioB(t), defaultOpts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	p.selectCalls = func(*graph.Graph) []graph.NodeID { return nil }
	err = p.Run(ctx)
	if !errors.Is(err, ErrMultipleBodies) {
		t.Fatalf("expected ErrMultipleBodies, got %v", err)
	}
	if p.State() != StateFailed || p.Module() != nil {
		t.Fatalf("state = %s", p.State())
	}
	if err := p.StampMetadata(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("transition out of failed: %v", err)
	}
}

func TestValidationFailure(t *testing.T) {
	g := graph.New()
	main := g.AddFunc("main", graph.Sig(nil, nil))
	g.AddOp(main.Node, opH, graph.Sig(graph.Qubits(1), graph.Qubits(1)))
	res, err := compile(t, g, defaultOpts, nil)
	if !errors.Is(err, graph.ErrGraph) {
		t.Fatalf("expected ErrGraph, got %v", err)
	}
	if res.Diagnostics == nil || !res.Diagnostics.HasErrors() {
		t.Fatal("diagnostics not recorded")
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err := New(scenarioA(t), defaultOpts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.State() != StateFailed {
		t.Fatalf("state = %s", p.State())
	}
}

func TestTraceSpans(t *testing.T) {
	ring := trace.NewRingTracer(256, trace.LevelDetail)
	ctx := trace.WithTracer(context.Background(), ring)
	p, err := New(scenarioB(t), defaultOpts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	ended := make(map[string]map[string]string)
	sawWidth := false
	for _, ev := range ring.Snapshot() {
		if ev.Kind == trace.KindSpanEnd && ev.Scope == trace.ScopeStage {
			ended[ev.Name] = ev.Extra
		}
		if ev.Kind == trace.KindPoint && ev.Name == "pointer-width" {
			sawWidth = true
		}
	}
	if ended["assign"]["qubits"] != "2" {
		t.Fatalf("assign extras = %v", ended["assign"])
	}
	if ended["inline"]["calls"] != "2" {
		t.Fatalf("inline extras = %v", ended["inline"])
	}
	if ended["prune"]["removed"] != "1" {
		t.Fatalf("prune extras = %v", ended["prune"])
	}
	emitted := ended["emit"]
	if emitted["target"] != "hardware" || emitted["triple"] != "arm64-unknown-none" ||
		emitted["reloc"] != "pic" || emitted["code-model"] != "default" || emitted["opt-level"] != "O2" {
		t.Fatalf("emit extras = %v", emitted)
	}
	if _, ok := p.Module().PointerWidth(); !ok && !sawWidth {
		t.Fatal("unknown pointer width was not logged")
	}
}

func TestDebugLevels(t *testing.T) {
	tests := []struct {
		debug int
		want  trace.Level
	}{
		{0, trace.LevelOff},
		{1, trace.LevelDetail},
		{2, trace.LevelDebug},
		{5, trace.LevelDebug},
	}
	for _, tt := range tests {
		if got := (Options{Debug: tt.debug}).TraceLevel(); got != tt.want {
			t.Errorf("Debug %d: level %s, want %s", tt.debug, got, tt.want)
		}
	}
}

func TestUnknownTarget(t *testing.T) {
	if _, err := New(graph.New(), Options{Target: "quantum-annealer"}); err == nil {
		t.Fatal("unknown target accepted")
	}
}
