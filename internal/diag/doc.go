// Package diag defines the diagnostic model used by graph validation.
//
// # Purpose
//
//   - Provide deterministic data structures for findings produced while
//     checking a program graph before and between lowering passes.
//   - Offer light-weight utilities (Reporter, Bag) that let checkers emit
//     diagnostics without coupling to storage or formatting.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Message – human oriented text; keep it short and actionable.
//   - Node – the graph node the finding is attached to.
//   - Notes – optional secondary nodes/messages for additional context.
//
// Diagnostics never carry pointers into the graph, only node ids, so a Bag
// stays valid after the graph is rewritten.
package diag
