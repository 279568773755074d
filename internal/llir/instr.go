package llir

// Opcode enumerates the instructions this IR can express.
type Opcode uint8

const (
	OpCall Opcode = iota
	OpRet
	OpBr
	OpCondBr
	OpPhi
	OpTrunc
	OpZExt
	OpXor
	OpAnd
	OpOr
	OpICmp
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFNeg
	OpSIToFP
	OpSelect
	OpAlloca
	OpLoad
	OpStore
)

var opcodeNames = [...]string{
	OpCall:   "call",
	OpRet:    "ret",
	OpBr:     "br",
	OpCondBr: "br",
	OpPhi:    "phi",
	OpTrunc:  "trunc",
	OpZExt:   "zext",
	OpXor:    "xor",
	OpAnd:    "and",
	OpOr:     "or",
	OpICmp:   "icmp",
	OpFAdd:   "fadd",
	OpFSub:   "fsub",
	OpFMul:   "fmul",
	OpFDiv:   "fdiv",
	OpFNeg:   "fneg",
	OpSIToFP: "sitofp",
	OpSelect: "select",
	OpAlloca: "alloca",
	OpLoad:   "load",
	OpStore:  "store",
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return "op?"
}

// IsTerminator reports whether the opcode ends a block.
func (o Opcode) IsTerminator() bool {
	return o == OpRet || o == OpBr || o == OpCondBr
}

// Instr is a single instruction. Instructions with a non-void type are
// values themselves.
type Instr struct {
	Op       Opcode
	Typ      *Type
	Operands []Value
	// Callee is the target of OpCall.
	Callee *Function
	// Pred is the icmp predicate.
	Pred string
	// Blocks holds branch targets, or the incoming blocks of a phi
	// (parallel to Operands).
	Blocks []*Block
	// Elem is the allocated type of an alloca.
	Elem *Type
	// Hint seeds the printed name.
	Hint string

	Parent *Block
}

func (i *Instr) Type() *Type { return i.Typ }

// HasSideEffects reports whether the instruction must be kept even when its
// result is unused.
func (i *Instr) HasSideEffects() bool {
	switch i.Op {
	case OpCall, OpStore, OpRet, OpBr, OpCondBr:
		return true
	}
	return false
}

// Block is a basic block.
type Block struct {
	Name   string
	Instrs []*Instr
	Parent *Function
}

func (b *Block) Type() *Type { return Label }

// Terminator returns the last instruction if it is a terminator.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Successors returns the branch targets of the block.
func (b *Block) Successors() []*Block {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	return term.Blocks
}

// Phis returns the leading phi instructions.
func (b *Block) Phis() []*Instr {
	var out []*Instr
	for _, in := range b.Instrs {
		if in.Op != OpPhi {
			break
		}
		out = append(out, in)
	}
	return out
}

func (b *Block) append(in *Instr) *Instr {
	in.Parent = b
	b.Instrs = append(b.Instrs, in)
	return in
}

// EraseFromParent unlinks the instruction from its block. Uses must already
// be gone.
func (i *Instr) EraseFromParent() {
	b := i.Parent
	if b == nil {
		return
	}
	for k, cur := range b.Instrs {
		if cur == i {
			b.Instrs = append(b.Instrs[:k], b.Instrs[k+1:]...)
			break
		}
	}
	i.Parent = nil
}

// RemoveIncoming drops the phi entries coming from pred.
func (i *Instr) RemoveIncoming(pred *Block) {
	ops := i.Operands[:0]
	blocks := i.Blocks[:0]
	for k, b := range i.Blocks {
		if b == pred {
			continue
		}
		ops = append(ops, i.Operands[k])
		blocks = append(blocks, b)
	}
	i.Operands, i.Blocks = ops, blocks
}
