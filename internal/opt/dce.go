package opt

import "hugrqir/internal/llir"

// DCE deletes instructions whose results are unused and that have no side
// effects, repeating until nothing more dies.
func DCE(f *llir.Function) bool {
	changed := false
	for {
		uses := useCounts(f)
		removed := false
		for _, b := range f.Blocks {
			for i := len(b.Instrs) - 1; i >= 0; i-- {
				in := b.Instrs[i]
				if in.HasSideEffects() || uses[in] > 0 {
					continue
				}
				in.EraseFromParent()
				removed = true
			}
		}
		if !removed {
			return changed
		}
		changed = true
	}
}
