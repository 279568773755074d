package opt

import "hugrqir/internal/llir"

// SimplifyCFG cleans up the control flow graph of f.
// Transformations, repeated until nothing changes:
// 1. Fold conditional branches on constants or with identical targets
// 2. Redirect branches through empty forwarding blocks
// 3. Remove unreachable blocks
// 4. Merge a block into its only predecessor
func SimplifyCFG(f *llir.Function) bool {
	if f == nil || len(f.Blocks) == 0 {
		return false
	}
	changed := false
	for {
		round := foldBranches(f)
		round = skipForwarders(f) || round
		round = removeUnreachable(f) || round
		round = mergeBlocks(f) || round
		if !round {
			return changed
		}
		changed = true
	}
}

// foldBranches turns `br i1 true, %a, %b` and `br %c, %a, %a` into `br %a`.
func foldBranches(f *llir.Function) bool {
	changed := false
	for _, b := range f.Blocks {
		term := b.Terminator()
		if term == nil || term.Op != llir.OpCondBr {
			continue
		}
		then, els := term.Blocks[0], term.Blocks[1]
		keep, drop := then, els
		switch c := term.Operands[0].(type) {
		case *llir.ConstInt:
			if c.V == 0 {
				keep, drop = els, then
			}
		default:
			if then != els {
				continue
			}
			drop = nil
		}
		if drop != nil && drop != keep {
			for _, phi := range drop.Phis() {
				phi.RemoveIncoming(b)
			}
		}
		term.Op = llir.OpBr
		term.Operands = nil
		term.Blocks = []*llir.Block{keep}
		changed = true
	}
	return changed
}

// isForwarder reports whether b only branches elsewhere.
func isForwarder(b *llir.Block) bool {
	return len(b.Instrs) == 1 && b.Instrs[0].Op == llir.OpBr && b.Instrs[0].Blocks[0] != b
}

// skipForwarders points branches past empty blocks. Blocks feeding phis are
// kept, since the phi names the forwarder as its predecessor.
func skipForwarders(f *llir.Function) bool {
	entry := f.Entry()
	redirects := make(map[*llir.Block]*llir.Block)
	for _, b := range f.Blocks {
		if b == entry || !isForwarder(b) {
			continue
		}
		target := b.Instrs[0].Blocks[0]
		if len(target.Phis()) > 0 {
			continue
		}
		// follow chains
		visited := map[*llir.Block]bool{b: true}
		for isForwarder(target) && !visited[target] && len(target.Instrs[0].Blocks[0].Phis()) == 0 {
			visited[target] = true
			target = target.Instrs[0].Blocks[0]
		}
		if target != b {
			redirects[b] = target
		}
	}
	if len(redirects) == 0 {
		return false
	}

	changed := false
	for _, b := range f.Blocks {
		term := b.Terminator()
		if term == nil {
			continue
		}
		for k, s := range term.Blocks {
			if to, ok := redirects[s]; ok && to != b {
				term.Blocks[k] = to
				changed = true
			}
		}
	}
	return changed
}

// removeUnreachable drops blocks not reachable from the entry block.
func removeUnreachable(f *llir.Function) bool {
	reachable := make(map[*llir.Block]bool, len(f.Blocks))
	var visit func(b *llir.Block)
	visit = func(b *llir.Block) {
		if reachable[b] {
			return
		}
		reachable[b] = true
		for _, s := range b.Successors() {
			visit(s)
		}
	}
	visit(f.Entry())

	var dead []*llir.Block
	for _, b := range f.Blocks {
		if !reachable[b] {
			dead = append(dead, b)
		}
	}
	if len(dead) == 0 {
		return false
	}
	for _, b := range dead {
		for _, s := range b.Successors() {
			for _, phi := range s.Phis() {
				phi.RemoveIncoming(b)
			}
		}
		f.RemoveBlock(b)
	}
	return true
}

// mergeBlocks appends a block to its unique predecessor when that
// predecessor branches only to it.
func mergeBlocks(f *llir.Function) bool {
	changed := false
	for {
		preds := f.Predecessors()
		merged := false
		for _, b := range f.Blocks {
			if b == f.Entry() {
				continue
			}
			ps := preds[b]
			if len(ps) != 1 {
				continue
			}
			pred := ps[0]
			term := pred.Terminator()
			if pred == b || term == nil || term.Op != llir.OpBr {
				continue
			}
			mergeInto(f, pred, b)
			merged = true
			break
		}
		if !merged {
			return changed
		}
		changed = true
	}
}

func mergeInto(f *llir.Function, pred, b *llir.Block) {
	// single-predecessor phis are just their incoming value
	for _, phi := range b.Phis() {
		var v llir.Value = &llir.Undef{Typ: phi.Typ}
		if len(phi.Operands) > 0 {
			v = phi.Operands[0]
		}
		f.ReplaceAllUsesWith(phi, v)
		phi.EraseFromParent()
	}
	pred.Terminator().EraseFromParent()
	for _, in := range b.Instrs {
		in.Parent = pred
	}
	pred.Instrs = append(pred.Instrs, b.Instrs...)
	b.Instrs = nil

	// successors now see pred as their predecessor
	for _, s := range pred.Successors() {
		for _, phi := range s.Phis() {
			for k, from := range phi.Blocks {
				if from == b {
					phi.Blocks[k] = pred
				}
			}
		}
	}
	f.RemoveBlock(b)
}
