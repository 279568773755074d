package graph

import (
	"fmt"
	"slices"
	"strings"
)

// Type is the kind of value carried along a dataflow edge.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeQubit
	TypeResult
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	// TypeFuture is a lazily read measurement outcome.
	TypeFuture
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeQubit:   "qubit",
	TypeResult:  "result",
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeString:  "string",
	TypeFuture:  "future",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", t)
}

// ParseType converts the textual name of a value type.
func ParseType(s string) (Type, error) {
	for t := TypeQubit; t <= TypeFuture; t++ {
		if strings.EqualFold(s, typeNames[t]) {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("%w: unknown value type %q", ErrGraph, s)
}

// Linear reports whether values of this type must be consumed exactly once.
func (t Type) Linear() bool {
	return t == TypeQubit
}

// Signature lists the value types flowing in and out of a node or region.
type Signature struct {
	Inputs  []Type
	Outputs []Type
}

// Sig is a shorthand constructor.
func Sig(inputs []Type, outputs []Type) Signature {
	return Signature{Inputs: inputs, Outputs: outputs}
}

// Equal reports whether both signatures have identical port types.
func (s Signature) Equal(o Signature) bool {
	return slices.Equal(s.Inputs, o.Inputs) && slices.Equal(s.Outputs, o.Outputs)
}

func (s Signature) clone() Signature {
	return Signature{
		Inputs:  slices.Clone(s.Inputs),
		Outputs: slices.Clone(s.Outputs),
	}
}

func (s Signature) String() string {
	return fmt.Sprintf("(%s) -> (%s)", joinTypes(s.Inputs), joinTypes(s.Outputs))
}

func joinTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// Qubits returns n qubit types; handy for gate signatures.
func Qubits(n int) []Type {
	out := make([]Type, n)
	for i := range out {
		out[i] = TypeQubit
	}
	return out
}
