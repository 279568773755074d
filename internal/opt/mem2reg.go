package opt

import "hugrqir/internal/llir"

// Mem2Reg promotes allocas that are only loaded from and stored to.
//
// Two shapes are handled: slots whose accesses all sit in one block, which
// are forwarded in instruction order, and entry-block slots with a single
// store in the entry block, whose value then reaches every load that
// follows it. Other slots stay in memory.
func Mem2Reg(f *llir.Function) bool {
	entry := f.Entry()
	if entry == nil {
		return false
	}
	var slots []*llir.Instr
	for _, in := range f.Instrs() {
		if in.Op == llir.OpAlloca {
			slots = append(slots, in)
		}
	}
	changed := false
	for _, slot := range slots {
		if promote(f, slot, entry) {
			changed = true
		}
	}
	return changed
}

func promote(f *llir.Function, slot *llir.Instr, entry *llir.Block) bool {
	var loads, stores []*llir.Instr
	for _, use := range f.Uses(slot) {
		switch {
		case use.Op == llir.OpLoad:
			loads = append(loads, use)
		case use.Op == llir.OpStore && use.Operands[1] == slot && use.Operands[0] != slot:
			stores = append(stores, use)
		default:
			// escapes
			return false
		}
	}

	if block := sharedBlock(loads, stores); block != nil {
		forwardInBlock(f, block, slot)
	} else if len(stores) == 1 && stores[0].Parent == entry && slot.Parent == entry {
		if !forwardSingleStore(f, stores[0], loads) {
			return false
		}
	} else {
		return false
	}

	for _, st := range stores {
		st.EraseFromParent()
	}
	slot.EraseFromParent()
	return true
}

// sharedBlock returns the block holding every access, or nil.
func sharedBlock(groups ...[]*llir.Instr) *llir.Block {
	var block *llir.Block
	for _, g := range groups {
		for _, in := range g {
			if block == nil {
				block = in.Parent
			} else if in.Parent != block {
				return nil
			}
		}
	}
	return block
}

func forwardInBlock(f *llir.Function, b *llir.Block, slot *llir.Instr) {
	var cur llir.Value = &llir.Undef{Typ: slot.Elem}
	// snapshot: erasing loads edits b.Instrs
	for _, in := range append([]*llir.Instr(nil), b.Instrs...) {
		switch {
		case in.Op == llir.OpStore && in.Operands[1] == slot:
			cur = in.Operands[0]
		case in.Op == llir.OpLoad && in.Operands[0] == slot:
			f.ReplaceAllUsesWith(in, cur)
			in.EraseFromParent()
		}
	}
}

func forwardSingleStore(f *llir.Function, store *llir.Instr, loads []*llir.Instr) bool {
	pos := indexOf(store.Parent, store)
	for _, ld := range loads {
		if ld.Parent == store.Parent && indexOf(ld.Parent, ld) < pos {
			return false
		}
	}
	v := store.Operands[0]
	for _, ld := range loads {
		f.ReplaceAllUsesWith(ld, v)
		ld.EraseFromParent()
	}
	return true
}

func indexOf(b *llir.Block, in *llir.Instr) int {
	for i, cur := range b.Instrs {
		if cur == in {
			return i
		}
	}
	return -1
}
