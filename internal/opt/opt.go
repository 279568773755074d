// Package opt runs the fixed post-lowering pass sequence over an llir
// module and verifies the result.
package opt

import (
	"errors"
	"fmt"

	"hugrqir/internal/llir"
)

var ErrVerification = errors.New("module verification failed")

// VerificationError carries the rejected module text for diagnosis.
type VerificationError struct {
	Err    error
	Module string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%v: %v", ErrVerification, e.Err)
}

func (e *VerificationError) Unwrap() []error { return []error{ErrVerification, e.Err} }

// Pass rewrites one function and reports whether it changed anything.
type Pass struct {
	Name string
	Run  func(*llir.Function) bool
}

var passes = map[string]Pass{
	"mem2reg":     {"mem2reg", Mem2Reg},
	"simplifycfg": {"simplifycfg", SimplifyCFG},
	"instcombine": {"instcombine", InstCombine},
	"dce":         {"dce", DCE},
}

// Sequence is the pass order applied by Run. Some passes repeat so later
// ones see the output of earlier cleanups.
var Sequence = []string{
	"mem2reg",
	"simplifycfg",
	"instcombine",
	"dce",
	"simplifycfg",
	"instcombine",
	"dce",
}

// Stats counts, per pass name, the runs that changed a function.
type Stats map[string]int

// Run applies Sequence to every definition of m, then verifies it.
func Run(m *llir.Module) (Stats, error) {
	return RunPasses(m, Sequence)
}

// RunPasses applies the named passes in order, then verifies m.
func RunPasses(m *llir.Module, names []string) (Stats, error) {
	stats := Stats{}
	for _, name := range names {
		p, ok := passes[name]
		if !ok {
			return stats, fmt.Errorf("unknown pass %q", name)
		}
		for _, f := range m.Definitions() {
			if p.Run(f) {
				stats[p.Name]++
			}
		}
	}
	if err := llir.Verify(m); err != nil {
		return stats, &VerificationError{Err: err, Module: m.String()}
	}
	return stats, nil
}

// useCounts counts operand references to each instruction of f.
func useCounts(f *llir.Function) map[*llir.Instr]int {
	counts := make(map[*llir.Instr]int)
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			for _, op := range in.Operands {
				if def, ok := op.(*llir.Instr); ok {
					counts[def]++
				}
			}
		}
	}
	return counts
}
