// Package resource gives qubit and result handles static addresses.
//
// Emitted functions obtain handles from placeholder calls
// (__quantum__rt__qubit_allocate and __QIR__CONV_Qubit_TO_Result). Assign
// replaces every such call with an `inttoptr` constant numbered in program
// order, so the addresses of each class form the permutation 0..N-1.
package resource

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"hugrqir/internal/llir"
	"hugrqir/internal/qis"
)

// DefaultPointerWidth is used when the data layout does not say.
const DefaultPointerWidth = 64

var (
	ErrResourceAssignment = errors.New("resource assignment failed")
	// ErrUnknownPointerWidth is recoverable: the default width applies.
	ErrUnknownPointerWidth = fmt.Errorf("%w: pointer width unknown, using %d bits", ErrResourceAssignment, DefaultPointerWidth)
)

// Counters accumulates the addresses handed out during one scan.
type Counters struct {
	Qubits  int
	Results int
}

func (c *Counters) next(class *int) (int64, error) {
	v, err := safecast.Conv[int64](*class)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrResourceAssignment, err)
	}
	*class++
	return v, nil
}

// PointerWidth returns the handle width for m. When the layout does not
// fix it the default is returned together with ErrUnknownPointerWidth.
func PointerWidth(m *llir.Module) (int, error) {
	if bits, ok := m.PointerWidth(); ok {
		return bits, nil
	}
	return DefaultPointerWidth, ErrUnknownPointerWidth
}

// Assign rewrites the placeholder calls in fn and returns how many
// addresses of each class were used.
func Assign(fn *llir.Function, width int) (Counters, error) {
	var c Counters
	if fn == nil || fn.IsDeclaration() {
		return c, fmt.Errorf("%w: function has no body", ErrResourceAssignment)
	}
	if width <= 0 || width > 64 {
		return c, fmt.Errorf("%w: invalid pointer width %d", ErrResourceAssignment, width)
	}

	// Collect first; rewriting edits the block slices.
	var calls []*llir.Instr
	for _, in := range fn.Instrs() {
		if in.Op != llir.OpCall {
			continue
		}
		switch in.Callee.Name {
		case qis.QubitAllocate, qis.QubitToResult:
			calls = append(calls, in)
		}
	}

	for _, in := range calls {
		class := &c.Qubits
		if in.Callee.Name == qis.QubitToResult {
			class = &c.Results
		}
		addr, err := c.next(class)
		if err != nil {
			return c, err
		}
		fn.ReplaceAllUsesWith(in, &llir.IntToPtr{Typ: in.Typ, Bits: width, V: addr})
		in.EraseFromParent()
	}

	if m := fn.Module; m != nil {
		dropUnused(m, qis.QubitAllocate, qis.QubitToResult)
	}
	return c, nil
}

// dropUnused removes declarations that no instruction calls anymore.
func dropUnused(m *llir.Module, names ...string) {
	for _, name := range names {
		decl := m.Func(name)
		if decl == nil || !decl.IsDeclaration() || called(m, decl) {
			continue
		}
		m.RemoveFunc(decl)
	}
}

func called(m *llir.Module, target *llir.Function) bool {
	for _, f := range m.Funcs {
		for _, in := range f.Instrs() {
			if in.Op == llir.OpCall && in.Callee == target {
				return true
			}
		}
	}
	return false
}
