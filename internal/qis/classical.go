package qis

import (
	"hugrqir/internal/graph"
	"hugrqir/internal/llir"
)

const (
	dialectLogic = "logic"
	dialectFloat = "arithmetic.float"
)

func registerLogic(r *Registry) {
	b := graph.TypeBool
	r.add(dialectLogic, "Not", entry{
		graph.Sig(types(b), types(b)),
		func(c *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
			return []llir.Value{c.B.Not(args[0])}, nil
		},
	})
	binary := func(build func(c *Context, x, y llir.Value) llir.Value) entry {
		return entry{
			graph.Sig(types(b, b), types(b)),
			func(c *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
				return []llir.Value{build(c, args[0], args[1])}, nil
			},
		}
	}
	r.add(dialectLogic, "And", binary(func(c *Context, x, y llir.Value) llir.Value { return c.B.And(x, y) }))
	r.add(dialectLogic, "Or", binary(func(c *Context, x, y llir.Value) llir.Value { return c.B.Or(x, y) }))
	r.add(dialectLogic, "Xor", binary(func(c *Context, x, y llir.Value) llir.Value { return c.B.Xor(x, y) }))
	r.add(dialectLogic, "Eq", binary(func(c *Context, x, y llir.Value) llir.Value { return c.B.ICmp("eq", x, y) }))
}

func registerFloat(r *Registry) {
	f := graph.TypeFloat
	binary := func(build func(b *llir.Builder, x, y llir.Value) *llir.Instr) entry {
		return entry{
			graph.Sig(types(f, f), types(f)),
			func(c *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
				return []llir.Value{build(c.B, args[0], args[1])}, nil
			},
		}
	}
	r.add(dialectFloat, "fadd", binary((*llir.Builder).FAdd))
	r.add(dialectFloat, "fsub", binary((*llir.Builder).FSub))
	r.add(dialectFloat, "fmul", binary((*llir.Builder).FMul))
	r.add(dialectFloat, "fdiv", binary((*llir.Builder).FDiv))
	r.add(dialectFloat, "fneg", entry{
		graph.Sig(types(f), types(f)),
		func(c *Context, _ graph.Op, args []llir.Value) ([]llir.Value, error) {
			return []llir.Value{c.B.FNeg(args[0])}, nil
		},
	})
}
