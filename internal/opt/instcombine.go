package opt

import "hugrqir/internal/llir"

// InstCombine folds constants and applies local algebraic identities.
func InstCombine(f *llir.Function) bool {
	changed := false
	for {
		round := false
		for _, in := range f.Instrs() {
			v := simplify(in)
			if v == nil || v == llir.Value(in) {
				continue
			}
			f.ReplaceAllUsesWith(in, v)
			in.EraseFromParent()
			round = true
		}
		if !round {
			return changed
		}
		changed = true
	}
}

// simplify returns a value equivalent to in, or nil when none is known.
func simplify(in *llir.Instr) llir.Value {
	ops := in.Operands
	switch in.Op {
	case llir.OpPhi:
		return simplifyPhi(in)
	case llir.OpSelect:
		if c, ok := ops[0].(*llir.ConstInt); ok {
			if c.V != 0 {
				return ops[1]
			}
			return ops[2]
		}
		if same(ops[1], ops[2]) {
			return ops[1]
		}
	case llir.OpXor, llir.OpAnd, llir.OpOr:
		return simplifyLogic(in.Op, ops[0], ops[1])
	case llir.OpICmp:
		x, okx := ops[0].(*llir.ConstInt)
		y, oky := ops[1].(*llir.ConstInt)
		if okx && oky {
			if r, ok := compare(in.Pred, x.Typ.Bits, x.V, y.V); ok {
				return llir.Bool(r)
			}
		}
	case llir.OpFAdd, llir.OpFSub, llir.OpFMul, llir.OpFDiv:
		x, okx := ops[0].(*llir.ConstFloat)
		y, oky := ops[1].(*llir.ConstFloat)
		if okx && oky {
			return llir.Float(foldFloat(in.Op, x.V, y.V))
		}
	case llir.OpFNeg:
		if x, ok := ops[0].(*llir.ConstFloat); ok {
			return llir.Float(-x.V)
		}
		if inner, ok := ops[0].(*llir.Instr); ok && inner.Op == llir.OpFNeg {
			return inner.Operands[0]
		}
	case llir.OpZExt:
		if x, ok := ops[0].(*llir.ConstInt); ok {
			return llir.Int(in.Typ, x.V&mask(x.Typ.Bits))
		}
	case llir.OpTrunc:
		if x, ok := ops[0].(*llir.ConstInt); ok {
			return llir.Int(in.Typ, x.V&mask(in.Typ.Bits))
		}
	case llir.OpSIToFP:
		if x, ok := ops[0].(*llir.ConstInt); ok {
			return llir.Float(float64(x.V))
		}
	}
	return nil
}

func simplifyPhi(phi *llir.Instr) llir.Value {
	var v llir.Value
	for _, op := range phi.Operands {
		if op == llir.Value(phi) {
			continue
		}
		if v != nil && !same(v, op) {
			return nil
		}
		v = op
	}
	return v
}

// simplifyLogic handles xor/and/or. Only i1 identities are applied to
// non-constant operands.
func simplifyLogic(op llir.Opcode, x, y llir.Value) llir.Value {
	cx, okx := x.(*llir.ConstInt)
	cy, oky := y.(*llir.ConstInt)
	if okx && oky {
		var r int64
		switch op {
		case llir.OpXor:
			r = cx.V ^ cy.V
		case llir.OpAnd:
			r = cx.V & cy.V
		case llir.OpOr:
			r = cx.V | cy.V
		}
		return llir.Int(cx.Typ, r&mask(cx.Typ.Bits))
	}
	if okx && !oky {
		x, y, cy, oky = y, x, cx, true
	}
	if !oky || !cy.Typ.IsInt(1) {
		if op != llir.OpXor && same(x, y) {
			return x
		}
		if op == llir.OpXor && same(x, y) {
			return llir.Int(x.Type(), 0)
		}
		return nil
	}
	set := cy.V != 0
	switch {
	case op == llir.OpXor && !set, op == llir.OpAnd && set, op == llir.OpOr && !set:
		return x
	case op == llir.OpAnd && !set, op == llir.OpOr && set:
		return cy
	case op == llir.OpXor && set:
		// not(not(a)) = a
		if inner, ok := x.(*llir.Instr); ok && inner.Op == llir.OpXor {
			if c, ok := inner.Operands[1].(*llir.ConstInt); ok && c.Typ.IsInt(1) && c.V != 0 {
				return inner.Operands[0]
			}
		}
	}
	return nil
}

func same(a, b llir.Value) bool {
	return a == b || (llir.IsConstant(a) && llir.SameConst(a, b))
}

func mask(bits int) int64 {
	if bits >= 64 || bits <= 0 {
		return -1
	}
	return int64(1)<<bits - 1
}

// compare folds an integer predicate on two constants of the given width.
// Operands are sign-extended first, so i1 true compares as -1.
func compare(pred string, bits int, x, y int64) (bool, bool) {
	x, y = signExtend(x, bits), signExtend(y, bits)
	switch pred {
	case "eq":
		return x == y, true
	case "ne":
		return x != y, true
	case "slt":
		return x < y, true
	case "sle":
		return x <= y, true
	case "sgt":
		return x > y, true
	case "sge":
		return x >= y, true
	}
	return false, false
}

func signExtend(v int64, bits int) int64 {
	if bits <= 0 || bits >= 64 {
		return v
	}
	shift := uint(64 - bits)
	return v << shift >> shift
}

func foldFloat(op llir.Opcode, x, y float64) float64 {
	switch op {
	case llir.OpFAdd:
		return x + y
	case llir.OpFSub:
		return x - y
	case llir.OpFMul:
		return x * y
	default:
		return x / y
	}
}
