package llir

// Builder appends instructions at the end of a block.
type Builder struct {
	block *Block
}

func NewBuilder(b *Block) *Builder {
	return &Builder{block: b}
}

func (b *Builder) Block() *Block { return b.block }

func (b *Builder) SetBlock(block *Block) { b.block = block }

func (b *Builder) emit(in *Instr) *Instr {
	return b.block.append(in)
}

// Call emits a call; the result type follows the callee.
func (b *Builder) Call(fn *Function, args ...Value) *Instr {
	return b.emit(&Instr{Op: OpCall, Typ: fn.Sig.Ret, Callee: fn, Operands: args})
}

func (b *Builder) Ret(v Value) *Instr {
	return b.emit(&Instr{Op: OpRet, Typ: Void, Operands: []Value{v}})
}

func (b *Builder) RetVoid() *Instr {
	return b.emit(&Instr{Op: OpRet, Typ: Void})
}

func (b *Builder) Br(dest *Block) *Instr {
	return b.emit(&Instr{Op: OpBr, Typ: Void, Blocks: []*Block{dest}})
}

func (b *Builder) CondBr(cond Value, then, els *Block) *Instr {
	return b.emit(&Instr{Op: OpCondBr, Typ: Void, Operands: []Value{cond}, Blocks: []*Block{then, els}})
}

// Phi emits an empty phi; fill it with AddIncoming.
func (b *Builder) Phi(t *Type) *Instr {
	return b.emit(&Instr{Op: OpPhi, Typ: t})
}

// AddIncoming adds a (value, predecessor) pair to a phi.
func (i *Instr) AddIncoming(v Value, pred *Block) {
	i.Operands = append(i.Operands, v)
	i.Blocks = append(i.Blocks, pred)
}

func (b *Builder) cast(op Opcode, v Value, to *Type) *Instr {
	return b.emit(&Instr{Op: op, Typ: to, Operands: []Value{v}})
}

func (b *Builder) Trunc(v Value, to *Type) *Instr  { return b.cast(OpTrunc, v, to) }
func (b *Builder) ZExt(v Value, to *Type) *Instr   { return b.cast(OpZExt, v, to) }
func (b *Builder) SIToFP(v Value, to *Type) *Instr { return b.cast(OpSIToFP, v, to) }

func (b *Builder) binary(op Opcode, x, y Value) *Instr {
	return b.emit(&Instr{Op: op, Typ: x.Type(), Operands: []Value{x, y}})
}

func (b *Builder) Xor(x, y Value) *Instr  { return b.binary(OpXor, x, y) }
func (b *Builder) And(x, y Value) *Instr  { return b.binary(OpAnd, x, y) }
func (b *Builder) Or(x, y Value) *Instr   { return b.binary(OpOr, x, y) }
func (b *Builder) FAdd(x, y Value) *Instr { return b.binary(OpFAdd, x, y) }
func (b *Builder) FSub(x, y Value) *Instr { return b.binary(OpFSub, x, y) }
func (b *Builder) FMul(x, y Value) *Instr { return b.binary(OpFMul, x, y) }
func (b *Builder) FDiv(x, y Value) *Instr { return b.binary(OpFDiv, x, y) }

// Not emits `xor x, true` for i1 values.
func (b *Builder) Not(x Value) *Instr {
	return b.Xor(x, Bool(true))
}

func (b *Builder) FNeg(x Value) *Instr {
	return b.emit(&Instr{Op: OpFNeg, Typ: Double, Operands: []Value{x}})
}

// ICmp emits an integer comparison with an LLVM predicate name (eq, ne, ...).
func (b *Builder) ICmp(pred string, x, y Value) *Instr {
	return b.emit(&Instr{Op: OpICmp, Typ: I1, Pred: pred, Operands: []Value{x, y}})
}

func (b *Builder) Select(cond, x, y Value) *Instr {
	return b.emit(&Instr{Op: OpSelect, Typ: x.Type(), Operands: []Value{cond, x, y}})
}

func (b *Builder) Alloca(t *Type) *Instr {
	return b.emit(&Instr{Op: OpAlloca, Typ: PtrTo(t), Elem: t})
}

func (b *Builder) Load(ptr Value) *Instr {
	return b.emit(&Instr{Op: OpLoad, Typ: ptr.Type().Elem, Operands: []Value{ptr}})
}

func (b *Builder) Store(v, ptr Value) *Instr {
	return b.emit(&Instr{Op: OpStore, Typ: Void, Operands: []Value{v, ptr}})
}
