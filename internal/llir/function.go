package llir

import (
	"fmt"
	"slices"
)

// Attr is a string function attribute; Value may be empty.
type Attr struct {
	Key   string
	Value string
	// Valued distinguishes `"k"=""` from a bare `"k"`.
	Valued bool
}

// Function is a declaration or, when it has blocks, a definition.
type Function struct {
	Name   string
	Sig    FuncType
	Params []*Param
	Blocks []*Block
	Attrs  []Attr

	Module *Module
	names  map[string]int
}

// Type returns the pointer-to-function type used when the function is an
// operand.
func (f *Function) Type() *Type {
	return PtrTo(Void)
}

// IsDeclaration reports whether the function has no body.
func (f *Function) IsDeclaration() bool {
	return len(f.Blocks) == 0
}

// Entry returns the first block or nil.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// AddBlock appends a block named after hint, made unique in the function.
func (f *Function) AddBlock(hint string) *Block {
	if hint == "" {
		hint = "bb"
	}
	if f.names == nil {
		f.names = make(map[string]int)
	}
	name := hint
	if n := f.names[hint]; n > 0 {
		name = fmt.Sprintf("%s%d", hint, n)
	}
	f.names[hint]++
	b := &Block{Name: name, Parent: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// SetAttr sets or replaces a string attribute, keeping first-set order.
func (f *Function) SetAttr(key, value string, valued bool) {
	for i := range f.Attrs {
		if f.Attrs[i].Key == key {
			f.Attrs[i] = Attr{Key: key, Value: value, Valued: valued}
			return
		}
	}
	f.Attrs = append(f.Attrs, Attr{Key: key, Value: value, Valued: valued})
}

// Attr returns the attribute with the given key.
func (f *Function) Attr(key string) (Attr, bool) {
	for _, a := range f.Attrs {
		if a.Key == key {
			return a, true
		}
	}
	return Attr{}, false
}

// Instrs returns every instruction in program order: block order, then
// position within the block.
func (f *Function) Instrs() []*Instr {
	var out []*Instr
	for _, b := range f.Blocks {
		out = append(out, b.Instrs...)
	}
	return out
}

// Uses returns the instructions that read v.
func (f *Function) Uses(v Value) []*Instr {
	var out []*Instr
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if slices.Contains(in.Operands, v) {
				out = append(out, in)
			}
		}
	}
	return out
}

// ReplaceAllUsesWith rewrites every operand equal to old into repl and
// returns the number of replaced operands.
func (f *Function) ReplaceAllUsesWith(old, repl Value) int {
	count := 0
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			for k, op := range in.Operands {
				if op == old {
					in.Operands[k] = repl
					count++
				}
			}
		}
	}
	return count
}

// Predecessors maps each block to the blocks branching to it.
func (f *Function) Predecessors() map[*Block][]*Block {
	preds := make(map[*Block][]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		for _, s := range b.Successors() {
			if !slices.Contains(preds[s], b) {
				preds[s] = append(preds[s], b)
			}
		}
	}
	return preds
}

// RemoveBlock unlinks b from the function.
func (f *Function) RemoveBlock(b *Block) {
	f.Blocks = slices.DeleteFunc(f.Blocks, func(x *Block) bool { return x == b })
	b.Parent = nil
}
