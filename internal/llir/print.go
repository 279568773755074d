package llir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// String renders the module as textual LLVM IR.
func (m *Module) String() string {
	var sb strings.Builder
	p := printer{sb: &sb}
	p.module(m)
	return sb.String()
}

type printer struct {
	sb    *strings.Builder
	names map[*Instr]string
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *printer) module(m *Module) {
	p.line("; ModuleID = '%s'", m.Name)
	p.line("source_filename = %q", m.Name)
	if m.DataLayout != "" {
		p.line("target datalayout = %q", m.DataLayout)
	}
	if m.Triple != "" {
		p.line("target triple = %q", m.Triple)
	}

	if len(m.Structs) > 0 {
		p.line("")
		for _, t := range m.Structs {
			p.line("%s = type opaque", t)
		}
	}
	if len(m.Globals) > 0 {
		p.line("")
		for _, g := range m.Globals {
			p.line("@%s = private unnamed_addr constant %s c\"%s\"", g.Name, g.ContentType(), escapeBytes(g.Data))
		}
	}

	groups := attrGroups{}
	for _, f := range m.Definitions() {
		p.line("")
		p.define(f, groups.id(f.Attrs))
	}
	var decls []*Function
	for _, f := range m.Funcs {
		if f.IsDeclaration() {
			decls = append(decls, f)
		}
	}
	if len(decls) > 0 {
		p.line("")
		for _, f := range decls {
			p.line("declare %s @%s(%s)", f.Sig.Ret, f.Name, joinTypes(f.Sig.Params))
		}
	}

	if len(groups.sets) > 0 {
		p.line("")
		for i, attrs := range groups.sets {
			p.line("attributes #%d = { %s }", i, renderAttrs(attrs))
		}
	}

	if len(m.Flags) > 0 {
		p.line("")
		refs := make([]string, len(m.Flags))
		for i := range m.Flags {
			refs[i] = fmt.Sprintf("!%d", i)
		}
		p.line("!llvm.module.flags = !{%s}", strings.Join(refs, ", "))
		p.line("")
		for i, f := range m.Flags {
			p.line("!%d = !{i32 %d, !%q, %s}", i, f.Behavior, f.Key, p.typed(f.Value))
		}
	}
}

func (p *printer) define(f *Function, group int) {
	params := make([]string, len(f.Params))
	for i, prm := range f.Params {
		params[i] = fmt.Sprintf("%s %%%s", prm.Typ, prm.Name)
	}
	attrs := ""
	if group >= 0 {
		attrs = fmt.Sprintf(" #%d", group)
	}
	p.line("define %s @%s(%s)%s {", f.Sig.Ret, f.Name, strings.Join(params, ", "), attrs)

	p.names = make(map[*Instr]string)
	used := make(map[string]int)
	next := 0
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Typ.IsVoid() {
				continue
			}
			if in.Hint == "" {
				p.names[in] = strconv.Itoa(next)
				next++
				continue
			}
			name := in.Hint
			if n := used[in.Hint]; n > 0 {
				name = fmt.Sprintf("%s%d", in.Hint, n)
			}
			used[in.Hint]++
			p.names[in] = name
		}
	}

	for i, b := range f.Blocks {
		if i > 0 {
			p.line("")
		}
		p.line("%s:", b.Name)
		for _, in := range b.Instrs {
			p.line("  %s", p.instr(in))
		}
	}
	p.line("}")
}

func (p *printer) instr(in *Instr) string {
	lhs := ""
	if !in.Typ.IsVoid() {
		lhs = "%" + p.names[in] + " = "
	}
	switch in.Op {
	case OpCall:
		args := make([]string, len(in.Operands))
		for i, a := range in.Operands {
			args[i] = p.typed(a)
		}
		return fmt.Sprintf("%scall %s @%s(%s)", lhs, in.Callee.Sig.Ret, in.Callee.Name, strings.Join(args, ", "))
	case OpRet:
		if len(in.Operands) == 0 {
			return "ret void"
		}
		return "ret " + p.typed(in.Operands[0])
	case OpBr:
		return "br label %" + in.Blocks[0].Name
	case OpCondBr:
		return fmt.Sprintf("br %s, label %%%s, label %%%s", p.typed(in.Operands[0]), in.Blocks[0].Name, in.Blocks[1].Name)
	case OpPhi:
		incoming := make([]string, len(in.Operands))
		for i, v := range in.Operands {
			incoming[i] = fmt.Sprintf("[ %s, %%%s ]", p.ref(v), in.Blocks[i].Name)
		}
		return fmt.Sprintf("%sphi %s %s", lhs, in.Typ, strings.Join(incoming, ", "))
	case OpTrunc, OpZExt, OpSIToFP:
		return fmt.Sprintf("%s%s %s to %s", lhs, in.Op, p.typed(in.Operands[0]), in.Typ)
	case OpXor, OpAnd, OpOr, OpFAdd, OpFSub, OpFMul, OpFDiv:
		return fmt.Sprintf("%s%s %s, %s", lhs, in.Op, p.typed(in.Operands[0]), p.ref(in.Operands[1]))
	case OpFNeg:
		return fmt.Sprintf("%sfneg %s", lhs, p.typed(in.Operands[0]))
	case OpICmp:
		return fmt.Sprintf("%sicmp %s %s, %s", lhs, in.Pred, p.typed(in.Operands[0]), p.ref(in.Operands[1]))
	case OpSelect:
		return fmt.Sprintf("%sselect %s, %s, %s", lhs, p.typed(in.Operands[0]), p.typed(in.Operands[1]), p.typed(in.Operands[2]))
	case OpAlloca:
		return fmt.Sprintf("%salloca %s", lhs, in.Elem)
	case OpLoad:
		return fmt.Sprintf("%sload %s, %s", lhs, in.Typ, p.typed(in.Operands[0]))
	case OpStore:
		return fmt.Sprintf("store %s, %s", p.typed(in.Operands[0]), p.typed(in.Operands[1]))
	}
	return "; unknown instruction " + in.Op.String()
}

func (p *printer) typed(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.Type().String() + " " + p.ref(v)
}

func (p *printer) ref(v Value) string {
	switch x := v.(type) {
	case *Param:
		return "%" + x.Name
	case *Instr:
		if name, ok := p.names[x]; ok {
			return "%" + name
		}
		return "%<detached>"
	case *Block:
		return "%" + x.Name
	case *ConstInt:
		if x.Typ.IsInt(1) {
			return strconv.FormatBool(x.V != 0)
		}
		return strconv.FormatInt(x.V, 10)
	case *ConstFloat:
		return formatDouble(x.V)
	case *ConstNull:
		return "null"
	case *Undef:
		return "undef"
	case *IntToPtr:
		return fmt.Sprintf("inttoptr (i%d %d to %s)", x.Bits, x.V, x.Typ)
	case *Global:
		return "@" + x.Name
	case *StringPtr:
		ct := x.G.ContentType()
		return fmt.Sprintf("getelementptr inbounds (%s, %s* @%s, i64 0, i64 0)", ct, ct, x.G.Name)
	case *Function:
		return "@" + x.Name
	}
	return "<unknown>"
}

// formatDouble prints the shortest exact decimal LLVM accepts, falling back
// to the hexadecimal form.
func formatDouble(v float64) string {
	s := fmt.Sprintf("%e", v)
	if back, err := strconv.ParseFloat(s, 64); err == nil && back == v {
		return s
	}
	return fmt.Sprintf("0x%016X", math.Float64bits(v))
}

func escapeBytes(data []byte) string {
	var sb strings.Builder
	for _, c := range data {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "\\%02X", c)
	}
	return sb.String()
}

func joinTypes(ts []*Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func renderAttrs(attrs []Attr) string {
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		if a.Valued {
			parts[i] = fmt.Sprintf("%q=%q", a.Key, a.Value)
		} else {
			parts[i] = strconv.Quote(a.Key)
		}
	}
	return strings.Join(parts, " ")
}

// attrGroups numbers distinct attribute sets in first-seen order.
type attrGroups struct {
	sets [][]Attr
}

func (g *attrGroups) id(attrs []Attr) int {
	if len(attrs) == 0 {
		return -1
	}
	key := renderAttrs(attrs)
	for i, s := range g.sets {
		if renderAttrs(s) == key {
			return i
		}
	}
	g.sets = append(g.sets, attrs)
	return len(g.sets) - 1
}
