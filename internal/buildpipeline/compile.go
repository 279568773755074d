package buildpipeline

import (
	"context"
	"fmt"

	"hugrqir/internal/diag"
	"hugrqir/internal/graph"
	"hugrqir/internal/llir"
	"hugrqir/internal/resource"
	"hugrqir/internal/target"
	"hugrqir/internal/trace"
)

// CompileRequest configures one compilation.
type CompileRequest struct {
	// Path of the input graph; ignored when Graph is set.
	Path  string
	Graph *graph.Graph

	Options  Options
	Progress ProgressSink
	// File labels progress events; defaults to Path.
	File string
}

// CompileResult captures compilation artefacts and stage timings.
type CompileResult struct {
	// Module is nil unless every stage succeeded.
	Module      *llir.Module
	Entry       string
	Counters    resource.Counters
	Diagnostics *diag.Bag
	Timings     Timings
	State       State
	Target      *target.Profile
}

// Compile loads the input when needed and runs every pipeline stage.
func Compile(ctx context.Context, req *CompileRequest) (CompileResult, error) {
	return compileUntil(ctx, req, StateOptimized)
}

// Check runs the graph passes and emission with validation forced on, but
// neither assigns addresses nor optimizes.
func Check(ctx context.Context, req *CompileRequest) (CompileResult, error) {
	if req == nil {
		return CompileResult{}, fmt.Errorf("missing compile request")
	}
	reqCopy := *req
	reqCopy.Options.Validate = true
	return compileUntil(ctx, &reqCopy, StateEmitted)
}

func compileUntil(ctx context.Context, req *CompileRequest, stop State) (CompileResult, error) {
	var result CompileResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing compile request")
	}
	file := req.File
	if file == "" {
		file = req.Path
	}

	g := req.Graph
	if g == nil {
		if req.Path == "" {
			return result, fmt.Errorf("missing input path")
		}
		emitStage(req.Progress, file, StageLoad, StatusWorking, nil, 0)
		span, _ := trace.Start(ctx, trace.ScopeStage, string(StageLoad))
		loaded, err := graph.Load(req.Path)
		detail := "ok"
		if err != nil {
			detail = err.Error()
		}
		elapsed := span.WithExtra("path", req.Path).End(detail)
		result.Timings.Set(StageLoad, elapsed)
		if err != nil {
			err = fmt.Errorf("%s: %w", StageLoad, err)
			emitStage(req.Progress, file, StageLoad, StatusError, err, elapsed)
			return result, err
		}
		emitStage(req.Progress, file, StageLoad, StatusDone, nil, elapsed)
		g = loaded
	}
	if err := ValidateEntrypoint(g); err != nil {
		emitStage(req.Progress, file, StageRebase, StatusError, err, 0)
		result.State = StateFailed
		return result, err
	}

	p, err := New(g, req.Options)
	if err != nil {
		return result, err
	}
	p.Observe(file, req.Progress)
	runErr := p.RunUntil(ctx, stop)

	result.Timings.Merge(p.Timings())
	result.Diagnostics = p.Diagnostics()
	result.State = p.State()
	result.Target = p.Profile()
	result.Entry = p.Entry()
	result.Counters = p.Counters()
	if runErr != nil {
		return result, runErr
	}
	result.Module = p.Module()
	return result, nil
}
