// Package buildpipeline drives a program graph through rebase, inlining,
// pruning, emission, address assignment, ABI stamping and optimization.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hugrqir/internal/abi"
	"hugrqir/internal/dce"
	"hugrqir/internal/diag"
	"hugrqir/internal/emit"
	"hugrqir/internal/graph"
	"hugrqir/internal/inline"
	"hugrqir/internal/llir"
	"hugrqir/internal/opt"
	"hugrqir/internal/rebase"
	"hugrqir/internal/resource"
	"hugrqir/internal/target"
	"hugrqir/internal/trace"
)

// State is a point in the lowering sequence.
type State uint8

const (
	StateRaw State = iota
	StateRebased
	StateInlined
	StatePruned
	StateEmitted
	StateAddressesAssigned
	StateMetadataStamped
	StateOptimized
	// StateFailed is terminal: no transition leaves it.
	StateFailed
)

var stateNames = [...]string{
	StateRaw:               "raw",
	StateRebased:           "rebased",
	StateInlined:           "inlined",
	StatePruned:            "pruned",
	StateEmitted:           "emitted",
	StateAddressesAssigned: "addresses-assigned",
	StateMetadataStamped:   "metadata-stamped",
	StateOptimized:         "optimized",
	StateFailed:            "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

var (
	ErrInvalidTransition = errors.New("invalid pipeline transition")
	ErrMultipleBodies    = errors.New("expected exactly one function body")
)

// TransitionError reports a step requested in the wrong state.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: cannot reach %s from %s", ErrInvalidTransition, e.To, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

const maxDiagnostics = 100

// Options configures one compilation.
type Options struct {
	// Debug raises verbosity: 1 traces individual passes, 2 also dumps the
	// module after every stage that changes it.
	Debug int
	// SaveGraph, when set, receives the pruned graph. The encoding follows
	// the file extension.
	SaveGraph string
	// Validate re-checks the graph after every pass that mutates it.
	Validate bool
	// RewriteEntry emits main under its plain name.
	RewriteEntry bool
	// Target names a target profile; empty selects the host.
	Target string
}

// TraceLevel is the tracing level implied by Debug.
func (o Options) TraceLevel() trace.Level {
	switch {
	case o.Debug <= 0:
		return trace.LevelOff
	case o.Debug == 1:
		return trace.LevelDetail
	default:
		return trace.LevelDebug
	}
}

// Pipeline owns one graph and the module lowered from it. It is not safe
// for concurrent use; independent compilations use independent pipelines.
type Pipeline struct {
	opts    Options
	profile *target.Profile
	graph   *graph.Graph
	module  *llir.Module
	entry   *llir.Function
	counts  resource.Counters
	state   State

	file    string
	sink    ProgressSink
	timings Timings
	diags   *diag.Bag

	selectCalls func(*graph.Graph) []graph.NodeID
}

// New prepares a pipeline over g. The graph is modified in place.
func New(g *graph.Graph, opts Options) (*Pipeline, error) {
	if g == nil {
		return nil, fmt.Errorf("missing program graph")
	}
	profile, err := target.Lookup(opts.Target)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		opts:        opts,
		profile:     profile,
		graph:       g,
		diags:       diag.NewBag(maxDiagnostics),
		selectCalls: inline.AllCalls,
	}, nil
}

// Observe labels progress events with file and sends them to sink.
func (p *Pipeline) Observe(file string, sink ProgressSink) *Pipeline {
	p.file, p.sink = file, sink
	return p
}

func (p *Pipeline) State() State                { return p.state }
func (p *Pipeline) Graph() *graph.Graph         { return p.graph }
func (p *Pipeline) Timings() Timings            { return p.timings }
func (p *Pipeline) Diagnostics() *diag.Bag      { return p.diags }
func (p *Pipeline) Counters() resource.Counters { return p.counts }
func (p *Pipeline) Profile() *target.Profile    { return p.profile }

// Module returns the finished module, or nil before optimization completed.
func (p *Pipeline) Module() *llir.Module {
	if p.state != StateOptimized {
		return nil
	}
	return p.module
}

// Entry returns the symbol of the emitted entry function.
func (p *Pipeline) Entry() string {
	if p.entry == nil {
		return ""
	}
	return p.entry.Name
}

// Run performs every remaining transition.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.RunUntil(ctx, StateOptimized)
}

// RunUntil performs transitions until the pipeline reaches stop.
func (p *Pipeline) RunUntil(ctx context.Context, stop State) error {
	steps := []func(context.Context) error{
		StateRaw:               p.Rebase,
		StateRebased:           p.Inline,
		StateInlined:           p.Prune,
		StatePruned:            p.Emit,
		StateEmitted:           p.AssignAddresses,
		StateAddressesAssigned: p.StampMetadata,
		StateMetadataStamped:   p.Optimize,
	}
	if stop >= StateFailed {
		return &TransitionError{From: p.state, To: stop}
	}
	for p.state < stop {
		if err := steps[p.state](ctx); err != nil {
			return err
		}
	}
	if p.state != stop {
		return &TransitionError{From: p.state, To: stop}
	}
	return nil
}

// Rebase checks the entry point and rewrites generic gates.
func (p *Pipeline) Rebase(ctx context.Context) error {
	return p.advance(ctx, StateRaw, StateRebased, StageRebase, func(_ context.Context, span *trace.Span) error {
		if err := p.validate("input"); err != nil {
			return err
		}
		stats, err := rebase.Run(p.graph, rebase.Options{Validate: p.opts.Validate})
		if err != nil {
			return err
		}
		total := 0
		for _, n := range stats.Rewritten {
			total += n
		}
		span.WithExtra("rewritten", strconv.Itoa(total))
		return nil
	})
}

// Inline flattens every call site.
func (p *Pipeline) Inline(ctx context.Context) error {
	return p.advance(ctx, StateRebased, StateInlined, StageInline, func(_ context.Context, span *trace.Span) error {
		calls := p.selectCalls(p.graph)
		span.WithExtra("calls", strconv.Itoa(len(calls)))
		if err := inline.Inline(p.graph, calls); err != nil {
			return err
		}
		return p.validate(StageInline)
	})
}

// Prune removes functions main cannot reach and saves the graph when asked.
func (p *Pipeline) Prune(ctx context.Context) error {
	return p.advance(ctx, StateInlined, StatePruned, StagePrune, func(ctx context.Context, span *trace.Span) error {
		stats, err := dce.Prune(p.graph)
		if err != nil {
			return err
		}
		span.WithExtra("kept", strconv.Itoa(stats.Kept)).WithExtra("removed", strconv.Itoa(len(stats.Removed)))
		for _, name := range stats.Removed {
			trace.Point(ctx, trace.ScopePass, "removed", name)
		}
		if err := p.validate(StagePrune); err != nil {
			return err
		}
		if p.opts.SaveGraph != "" {
			if err := graph.Save(p.opts.SaveGraph, p.graph); err != nil {
				return fmt.Errorf("save graph: %w", err)
			}
		}
		return nil
	})
}

// Emit lowers the graph into a fresh module for the configured target.
func (p *Pipeline) Emit(ctx context.Context) error {
	return p.advance(ctx, StatePruned, StateEmitted, StageEmit, func(ctx context.Context, span *trace.Span) error {
		m := llir.NewModule(moduleName(p.file))
		m.Triple = p.profile.Triple
		m.DataLayout = p.profile.DataLayout
		res, err := emit.Emit(p.graph, m, emit.Options{RewriteEntry: p.opts.RewriteEntry})
		if err != nil {
			return err
		}
		if res.Entry == nil {
			return dce.ErrMissingEntryPoint
		}
		p.module, p.entry = m, res.Entry
		span.WithExtra("funcs", strconv.Itoa(len(res.Funcs))).WithExtra("ops", strconv.Itoa(res.Ops))
		span.WithExtra("target", p.profile.Name).WithExtra("triple", p.profile.Triple)
		for _, kv := range p.profile.Codegen() {
			span.WithExtra(kv[0], kv[1])
		}
		p.dump(ctx, StageEmit)
		return nil
	})
}

// AssignAddresses replaces allocation placeholders with static handles.
// The module must hold exactly one function body.
func (p *Pipeline) AssignAddresses(ctx context.Context) error {
	return p.advance(ctx, StateEmitted, StateAddressesAssigned, StageAssign, func(ctx context.Context, span *trace.Span) error {
		defs := p.module.Definitions()
		if len(defs) != 1 {
			names := make([]string, 0, len(defs))
			for _, fn := range defs {
				names = append(names, "@"+fn.Name)
			}
			return fmt.Errorf("%w, found %d: %s", ErrMultipleBodies, len(defs), strings.Join(names, ", "))
		}
		width, err := resource.PointerWidth(p.module)
		if err != nil {
			if !errors.Is(err, resource.ErrUnknownPointerWidth) {
				return err
			}
			trace.Point(ctx, trace.ScopeStage, "pointer-width", err.Error())
		}
		counts, err := resource.Assign(defs[0], width)
		if err != nil {
			return err
		}
		p.counts = counts
		span.WithExtra("qubits", strconv.Itoa(counts.Qubits)).WithExtra("results", strconv.Itoa(counts.Results))
		p.dump(ctx, StageAssign)
		return nil
	})
}

// StampMetadata marks the entry point and records resource requirements.
func (p *Pipeline) StampMetadata(ctx context.Context) error {
	return p.advance(ctx, StateAddressesAssigned, StateMetadataStamped, StageStamp, func(context.Context, *trace.Span) error {
		return abi.Stamp(p.module, p.Entry(), p.counts.Qubits, p.counts.Results)
	})
}

// Optimize runs the fixed pass sequence and verifies the result.
func (p *Pipeline) Optimize(ctx context.Context) error {
	return p.advance(ctx, StateMetadataStamped, StateOptimized, StageOptimize, func(ctx context.Context, span *trace.Span) error {
		stats, err := opt.Run(p.module)
		for name, n := range stats {
			span.WithExtra(name, strconv.Itoa(n))
		}
		if err != nil {
			return err
		}
		p.dump(ctx, StageOptimize)
		return nil
	})
}

func (p *Pipeline) advance(ctx context.Context, from, to State, stage Stage, run func(context.Context, *trace.Span) error) error {
	if p.state != from {
		return &TransitionError{From: p.state, To: to}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		p.state = StateFailed
		emitStage(p.sink, p.file, stage, StatusError, err, 0)
		return err
	}

	emitStage(p.sink, p.file, stage, StatusWorking, nil, 0)
	span, sctx := trace.Start(ctx, trace.ScopeStage, string(stage))
	err := run(sctx, span)
	detail := "ok"
	if err != nil {
		detail = err.Error()
	}
	elapsed := span.End(detail)
	p.timings.Set(stage, elapsed)
	if err != nil {
		p.state = StateFailed
		err = fmt.Errorf("%s: %w", stage, err)
		emitStage(p.sink, p.file, stage, StatusError, err, elapsed)
		return err
	}
	p.state = to
	emitStage(p.sink, p.file, stage, StatusDone, nil, elapsed)
	return nil
}

// validate reports graph findings into the pipeline's bag and fails when
// any of them is an error.
func (p *Pipeline) validate(after Stage) error {
	if !p.opts.Validate {
		return nil
	}
	bag := diag.NewBag(maxDiagnostics)
	p.graph.Validate(diag.BagReporter{Bag: bag})
	bag.Sort()
	for _, d := range bag.Items() {
		p.diags.Add(d)
	}
	if !bag.HasErrors() {
		return nil
	}
	return fmt.Errorf("after %s: %w: %w", after, graph.ErrGraph, bag.Err())
}

func (p *Pipeline) dump(ctx context.Context, stage Stage) {
	if p.opts.Debug < 2 {
		return
	}
	trace.Point(ctx, trace.ScopeFunc, "module after "+string(stage), p.module.String())
}

func emitStage(sink ProgressSink, file string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{File: file, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

func moduleName(file string) string {
	if file == "" || file == "-" {
		return "hugr"
	}
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
