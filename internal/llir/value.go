package llir

// Value is anything that can appear as an instruction operand.
type Value interface {
	Type() *Type
}

// Param is a function parameter.
type Param struct {
	Name string
	Typ  *Type
}

func (p *Param) Type() *Type { return p.Typ }

// ConstInt is an integer constant.
type ConstInt struct {
	Typ *Type
	V   int64
}

func (c *ConstInt) Type() *Type { return c.Typ }

// ConstFloat is a double constant.
type ConstFloat struct {
	V float64
}

func (c *ConstFloat) Type() *Type { return Double }

// ConstNull is the null pointer of a pointer type.
type ConstNull struct {
	Typ *Type
}

func (c *ConstNull) Type() *Type { return c.Typ }

// Undef is an unspecified value of a type.
type Undef struct {
	Typ *Type
}

func (u *Undef) Type() *Type { return u.Typ }

// IntToPtr is the constant expression `inttoptr (iN V to T)`. It is used to
// give resource handles their static addresses.
type IntToPtr struct {
	Typ  *Type
	Bits int
	V    int64
}

func (c *IntToPtr) Type() *Type { return c.Typ }

// Global is a private constant byte string.
type Global struct {
	Name string
	Data []byte // includes the trailing NUL
}

// Type returns the pointer type of the global symbol.
func (g *Global) Type() *Type { return PtrTo(g.ContentType()) }

func (g *Global) ContentType() *Type { return ArrayOf(len(g.Data), I8) }

// StringPtr is the constant `getelementptr` addressing the first byte of a
// string global.
type StringPtr struct {
	G *Global
}

func (s *StringPtr) Type() *Type { return I8Ptr }

func Bool(v bool) *ConstInt {
	if v {
		return &ConstInt{Typ: I1, V: 1}
	}
	return &ConstInt{Typ: I1, V: 0}
}

func Int(t *Type, v int64) *ConstInt {
	return &ConstInt{Typ: t, V: v}
}

func Float(v float64) *ConstFloat {
	return &ConstFloat{V: v}
}

// IsConstant reports whether v needs no instruction to compute.
func IsConstant(v Value) bool {
	switch v.(type) {
	case *ConstInt, *ConstFloat, *ConstNull, *Undef, *IntToPtr, *Global, *StringPtr, *Function:
		return true
	}
	return false
}

// SameConst reports whether two constants denote the same value.
func SameConst(a, b Value) bool {
	switch x := a.(type) {
	case *ConstInt:
		y, ok := b.(*ConstInt)
		return ok && x.Typ.Equal(y.Typ) && x.V == y.V
	case *ConstFloat:
		y, ok := b.(*ConstFloat)
		return ok && x.V == y.V
	case *IntToPtr:
		y, ok := b.(*IntToPtr)
		return ok && x.Typ.Equal(y.Typ) && x.V == y.V
	case *ConstNull:
		y, ok := b.(*ConstNull)
		return ok && x.Typ.Equal(y.Typ)
	}
	return a == b
}
