package llir

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Verify checks module well-formedness and returns every violation joined.
func Verify(m *Module) error {
	var errs []error
	for _, f := range m.Funcs {
		if f.Module != m {
			errs = append(errs, fmt.Errorf("function @%s: not owned by module", f.Name))
			continue
		}
		if f.IsDeclaration() {
			continue
		}
		if err := verifyFunc(m, f); err != nil {
			errs = append(errs, fmt.Errorf("function @%s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

func verifyFunc(m *Module, f *Function) error {
	var errs []error

	// 1. Structure: terminators last, phis first
	for _, b := range f.Blocks {
		if b.Parent != f {
			errs = append(errs, fmt.Errorf("block %s: wrong parent", b.Name))
		}
		if b.Terminator() == nil {
			errs = append(errs, fmt.Errorf("block %s: missing terminator", b.Name))
		}
		seenBody := false
		for k, in := range b.Instrs {
			if in.Parent != b {
				errs = append(errs, fmt.Errorf("block %s: instruction %s has wrong parent", b.Name, in.Op))
			}
			if in.Op.IsTerminator() && k != len(b.Instrs)-1 {
				errs = append(errs, fmt.Errorf("block %s: terminator in the middle", b.Name))
			}
			if in.Op == OpPhi && seenBody {
				errs = append(errs, fmt.Errorf("block %s: phi after non-phi", b.Name))
			}
			if in.Op != OpPhi {
				seenBody = true
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	// 2. Branch targets
	for _, b := range f.Blocks {
		for _, s := range b.Successors() {
			if s == nil || s.Parent != f {
				errs = append(errs, fmt.Errorf("block %s: branch to foreign block", b.Name))
			}
		}
	}
	preds := f.Predecessors()
	if len(preds[f.Entry()]) > 0 {
		errs = append(errs, errors.New("entry block has predecessors"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	// 3. Operands and dominance
	dom := dominators(f)
	pos := make(map[*Instr]int)
	for _, b := range f.Blocks {
		for k, in := range b.Instrs {
			pos[in] = k
		}
	}
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			for k, op := range in.Operands {
				if err := checkOperand(m, f, op); err != nil {
					errs = append(errs, fmt.Errorf("block %s: %s operand %d: %w", b.Name, in.Op, k, err))
					continue
				}
				def, ok := op.(*Instr)
				if !ok {
					continue
				}
				use := b
				if in.Op == OpPhi {
					use = in.Blocks[k]
				}
				switch {
				case def.Parent == use && in.Op != OpPhi:
					if pos[def] >= pos[in] {
						errs = append(errs, fmt.Errorf("block %s: %s uses a value before its definition", b.Name, in.Op))
					}
				case !dom[use][def.Parent]:
					errs = append(errs, fmt.Errorf("block %s: %s operand %d does not dominate its use", b.Name, in.Op, k))
				}
			}
			if err := checkInstr(f, in, preds[b]); err != nil {
				errs = append(errs, fmt.Errorf("block %s: %w", b.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func checkOperand(m *Module, f *Function, op Value) error {
	switch x := op.(type) {
	case nil:
		return errors.New("nil operand")
	case *Instr:
		if x.Parent == nil || x.Parent.Parent != f {
			return errors.New("operand is not in this function")
		}
		if x.Typ.IsVoid() {
			return errors.New("operand has void type")
		}
	case *Param:
		if !slices.Contains(f.Params, x) {
			return fmt.Errorf("parameter %%%s belongs to another function", x.Name)
		}
	case *Global:
		if !slices.Contains(m.Globals, x) {
			return fmt.Errorf("global @%s is not in the module", x.Name)
		}
	case *StringPtr:
		if !slices.Contains(m.Globals, x.G) {
			return fmt.Errorf("global @%s is not in the module", x.G.Name)
		}
	case *Function:
		if x.Module != m {
			return fmt.Errorf("function @%s is not in the module", x.Name)
		}
	}
	return nil
}

func checkInstr(f *Function, in *Instr, preds []*Block) error {
	ops := in.Operands
	switch in.Op {
	case OpCall:
		if in.Callee == nil || in.Callee.Module != f.Module {
			return errors.New("call to a function outside the module")
		}
		sig := in.Callee.Sig
		if len(ops) != len(sig.Params) {
			return fmt.Errorf("call @%s with %d arguments, want %d", in.Callee.Name, len(ops), len(sig.Params))
		}
		for k, a := range ops {
			if !a.Type().Equal(sig.Params[k]) {
				return fmt.Errorf("call @%s argument %d is %s, want %s", in.Callee.Name, k, a.Type(), sig.Params[k])
			}
		}
		if !in.Typ.Equal(sig.Ret) {
			return fmt.Errorf("call @%s result type %s, want %s", in.Callee.Name, in.Typ, sig.Ret)
		}
	case OpRet:
		switch {
		case f.Sig.Ret.IsVoid() && len(ops) != 0:
			return errors.New("ret with a value in a void function")
		case !f.Sig.Ret.IsVoid() && (len(ops) != 1 || !ops[0].Type().Equal(f.Sig.Ret)):
			return fmt.Errorf("ret must return %s", f.Sig.Ret)
		}
	case OpCondBr:
		if len(ops) != 1 || !ops[0].Type().IsInt(1) || len(in.Blocks) != 2 {
			return errors.New("malformed conditional branch")
		}
	case OpBr:
		if len(in.Blocks) != 1 {
			return errors.New("malformed branch")
		}
	case OpPhi:
		if len(ops) != len(in.Blocks) {
			return errors.New("phi operand/block count mismatch")
		}
		if len(in.Blocks) != len(preds) {
			return fmt.Errorf("phi has %d incoming blocks, block has %d predecessors", len(in.Blocks), len(preds))
		}
		for k, b := range in.Blocks {
			if !slices.Contains(preds, b) {
				return fmt.Errorf("phi incoming block %s is not a predecessor", b.Name)
			}
			if !ops[k].Type().Equal(in.Typ) {
				return fmt.Errorf("phi incoming value of type %s, want %s", ops[k].Type(), in.Typ)
			}
		}
	case OpXor, OpAnd, OpOr, OpICmp, OpFAdd, OpFSub, OpFMul, OpFDiv:
		if len(ops) != 2 || !ops[0].Type().Equal(ops[1].Type()) {
			return fmt.Errorf("%s operands must have one type", in.Op)
		}
	case OpSelect:
		if len(ops) != 3 || !ops[0].Type().IsInt(1) || !ops[1].Type().Equal(ops[2].Type()) {
			return errors.New("malformed select")
		}
	case OpLoad:
		if len(ops) != 1 || ops[0].Type().Kind != TypePtr {
			return errors.New("load from a non-pointer")
		}
	case OpStore:
		if len(ops) != 2 || ops[1].Type().Kind != TypePtr || !ops[1].Type().Elem.Equal(ops[0].Type()) {
			return errors.New("store type mismatch")
		}
	}
	return nil
}

// dominators returns, for each block, the set of blocks dominating it.
// Unreachable blocks are dominated by everything.
func dominators(f *Function) map[*Block]map[*Block]bool {
	all := make(map[*Block]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		all[b] = true
	}
	dom := make(map[*Block]map[*Block]bool, len(f.Blocks))
	entry := f.Entry()
	for _, b := range f.Blocks {
		if b == entry {
			dom[b] = map[*Block]bool{b: true}
			continue
		}
		dom[b] = maps.Clone(all)
	}
	preds := f.Predecessors()
	for changed := true; changed; {
		changed = false
		for _, b := range f.Blocks[1:] {
			var next map[*Block]bool
			for _, p := range preds[b] {
				if next == nil {
					next = maps.Clone(dom[p])
					continue
				}
				for d := range next {
					if !dom[p][d] {
						delete(next, d)
					}
				}
			}
			if next == nil {
				continue
			}
			next[b] = true
			if len(next) != len(dom[b]) {
				dom[b] = next
				changed = true
			}
		}
	}
	return dom
}
