// Package llir is a small in-memory model of an LLVM module: typed values,
// functions made of basic blocks, declarations memoized by name, string
// globals, attributes and module flags. It prints textual LLVM IR with
// typed pointers.
package llir

import (
	"fmt"
	"strings"
)

// TypeKind enumerates the shapes of IR types.
type TypeKind uint8

const (
	TypeVoid TypeKind = iota
	TypeInt
	TypeDouble
	TypePtr
	TypeArray
	TypeStruct
	TypeLabel
)

// Type is an IR type. Types are compared structurally with Equal.
type Type struct {
	Kind TypeKind
	Bits int    // TypeInt
	Elem *Type  // TypePtr, TypeArray
	Len  int    // TypeArray
	Name string // TypeStruct; always opaque
}

var (
	Void   = &Type{Kind: TypeVoid}
	I1     = &Type{Kind: TypeInt, Bits: 1}
	I8     = &Type{Kind: TypeInt, Bits: 8}
	I32    = &Type{Kind: TypeInt, Bits: 32}
	I64    = &Type{Kind: TypeInt, Bits: 64}
	Double = &Type{Kind: TypeDouble}
	Label  = &Type{Kind: TypeLabel}

	// I8Ptr is the type of string arguments.
	I8Ptr = PtrTo(I8)
)

// IntType returns the integer type of the given width.
func IntType(bits int) *Type {
	switch bits {
	case 1:
		return I1
	case 8:
		return I8
	case 32:
		return I32
	case 64:
		return I64
	}
	return &Type{Kind: TypeInt, Bits: bits}
}

func PtrTo(elem *Type) *Type {
	return &Type{Kind: TypePtr, Elem: elem}
}

func ArrayOf(n int, elem *Type) *Type {
	return &Type{Kind: TypeArray, Len: n, Elem: elem}
}

// Opaque returns a named struct type without a body.
func Opaque(name string) *Type {
	return &Type{Kind: TypeStruct, Name: name}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TypeVoid:
		return "void"
	case TypeInt:
		return fmt.Sprintf("i%d", t.Bits)
	case TypeDouble:
		return "double"
	case TypePtr:
		return t.Elem.String() + "*"
	case TypeArray:
		return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
	case TypeStruct:
		return "%" + t.Name
	case TypeLabel:
		return "label"
	}
	return "?"
}

// Equal reports structural equality.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TypeInt:
		return t.Bits == o.Bits
	case TypePtr:
		return t.Elem.Equal(o.Elem)
	case TypeArray:
		return t.Len == o.Len && t.Elem.Equal(o.Elem)
	case TypeStruct:
		return t.Name == o.Name
	}
	return true
}

func (t *Type) IsVoid() bool { return t != nil && t.Kind == TypeVoid }

// IsInt reports whether t is an integer type of the given width; zero
// matches any width.
func (t *Type) IsInt(bits int) bool {
	return t != nil && t.Kind == TypeInt && (bits == 0 || t.Bits == bits)
}

// FuncType is a function signature.
type FuncType struct {
	Ret    *Type
	Params []*Type
}

func (s FuncType) Equal(o FuncType) bool {
	if !s.Ret.Equal(o.Ret) || len(s.Params) != len(o.Params) {
		return false
	}
	for i := range s.Params {
		if !s.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return true
}

func (s FuncType) String() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s (%s)", s.Ret, strings.Join(parts, ", "))
}
