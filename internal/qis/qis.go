// Package qis selects QIR intrinsic calls for program graph operations.
//
// Every supported operation is an entry in a Registry keyed by dialect and
// operation name. Lookup misses are errors: there is no fallback lowering.
package qis

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"hugrqir/internal/graph"
	"hugrqir/internal/llir"
)

var (
	ErrLowering             = errors.New("lowering error")
	ErrUnsupportedOperation = fmt.Errorf("%w: unsupported operation", ErrLowering)
	ErrEmptyResultTag       = fmt.Errorf("%w: empty result tag", ErrLowering)
	ErrArity                = fmt.Errorf("%w: wrong operand arity", ErrLowering)
)

// UnsupportedOperationError reports an operation without a lowering.
type UnsupportedOperationError struct {
	Op graph.OpKey
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%v %s", ErrUnsupportedOperation, e.Op)
}

func (e *UnsupportedOperationError) Unwrap() error { return ErrUnsupportedOperation }

// ArityError reports a node whose port count does not match its operation.
type ArityError struct {
	Op   graph.OpKey
	Side string // "inputs" or "outputs"
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%v: %s takes %d %s, node has %d", ErrArity, e.Op, e.Want, e.Side, e.Got)
}

func (e *ArityError) Unwrap() error { return ErrArity }

// Context carries the module and insertion point lowering functions emit
// into.
type Context struct {
	Module *llir.Module
	B      *llir.Builder
	Qubit  *llir.Type // %Qubit*
	Result *llir.Type // %Result*
}

func NewContext(m *llir.Module, b *llir.Builder) *Context {
	return &Context{
		Module: m,
		B:      b,
		Qubit:  llir.PtrTo(m.Opaque("Qubit")),
		Result: llir.PtrTo(m.Opaque("Result")),
	}
}

// ValueType maps a program graph value type to its IR type.
func (c *Context) ValueType(t graph.Type) (*llir.Type, error) {
	switch t {
	case graph.TypeQubit:
		return c.Qubit, nil
	case graph.TypeResult:
		return c.Result, nil
	case graph.TypeBool, graph.TypeFuture:
		return llir.I1, nil
	case graph.TypeInt:
		return llir.I64, nil
	case graph.TypeFloat:
		return llir.Double, nil
	case graph.TypeString:
		return llir.I8Ptr, nil
	}
	return nil, fmt.Errorf("%w: no IR type for %s", ErrLowering, t)
}

// LowerFunc emits the instructions of one operation. args follow the node's
// input ports; the returned values feed its output ports.
type LowerFunc func(c *Context, op graph.Op, args []llir.Value) ([]llir.Value, error)

type entry struct {
	sig   graph.Signature
	lower LowerFunc
}

// Registry maps operations to lowering functions.
type Registry struct {
	table map[graph.OpKey]entry
}

func NewRegistry() *Registry {
	return &Registry{table: make(map[graph.OpKey]entry)}
}

// Register adds a lowering for an operation with the given port types.
// Registering the same key twice panics.
func (r *Registry) Register(key graph.OpKey, sig graph.Signature, fn LowerFunc) {
	if _, dup := r.table[key]; dup {
		panic(fmt.Sprintf("qis: duplicate lowering for %s", key))
	}
	r.table[key] = entry{sig: sig, lower: fn}
}

// Supports reports whether key has a lowering.
func (r *Registry) Supports(key graph.OpKey) bool {
	_, ok := r.table[key]
	return ok
}

// Keys lists registered operations sorted by dialect and name.
func (r *Registry) Keys() []graph.OpKey {
	keys := make([]graph.OpKey, 0, len(r.table))
	for k := range r.table {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b graph.OpKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

// Lower emits the operation of node n.
func (r *Registry) Lower(c *Context, n *graph.Node, args []llir.Value) ([]llir.Value, error) {
	key := n.Op.Key()
	e, ok := r.table[key]
	if !ok {
		return nil, &UnsupportedOperationError{Op: key}
	}
	if len(n.Sig.Inputs) != len(e.sig.Inputs) || len(args) != len(e.sig.Inputs) {
		return nil, &ArityError{Op: key, Side: "inputs", Want: len(e.sig.Inputs), Got: len(args)}
	}
	if len(n.Sig.Outputs) != len(e.sig.Outputs) {
		return nil, &ArityError{Op: key, Side: "outputs", Want: len(e.sig.Outputs), Got: len(n.Sig.Outputs)}
	}
	if !n.Sig.Equal(e.sig) {
		return nil, fmt.Errorf("%w: %s expects %s, node has %s", ErrLowering, key, e.sig, n.Sig)
	}
	outs, err := e.lower(c, n.Op, args)
	if err != nil {
		return nil, fmt.Errorf("lower %s: %w", key, err)
	}
	if len(outs) != len(e.sig.Outputs) {
		return nil, &ArityError{Op: key, Side: "outputs", Want: len(e.sig.Outputs), Got: len(outs)}
	}
	return outs, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	registerQuantum(r)
	registerQSystem(r)
	registerResult(r)
	registerFutures(r)
	registerLogic(r)
	registerFloat(r)
	return r
})

// Default returns the registry with every supported dialect. It is built
// once and must not be modified.
func Default() *Registry {
	return defaultRegistry()
}
