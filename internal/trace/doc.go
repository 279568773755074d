// Package trace records spans for the stages of a compilation.
//
// A Tracer travels through the pipeline inside a context.Context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span, ctx := trace.Start(ctx, trace.ScopeStage, "inline")
//	defer span.End("")
//
// Implementations: Nop (disabled), StreamTracer (writes each event as it
// happens), RingTracer (keeps the last N events for a post-mortem dump) and
// MultiTracer (fans out to several).
//
// Verbosity is a Level. Each level admits events up to a Scope:
// phase admits driver and stage spans, detail adds passes, debug adds
// per-function events.
package trace
