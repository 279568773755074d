package llir

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var ErrConflictingDeclaration = errors.New("conflicting function declaration")

// ModuleFlag is one entry of !llvm.module.flags.
type ModuleFlag struct {
	Behavior int
	Key      string
	Value    *ConstInt
}

// Module owns functions, globals and module level metadata.
type Module struct {
	Name       string
	Triple     string
	DataLayout string

	Structs []*Type
	Globals []*Global
	Funcs   []*Function
	Flags   []ModuleFlag

	funcs   map[string]*Function
	strings map[string]*Global
}

func NewModule(name string) *Module {
	return &Module{
		Name:    name,
		funcs:   make(map[string]*Function),
		strings: make(map[string]*Global),
	}
}

// Opaque registers a named opaque struct type once and returns it.
func (m *Module) Opaque(name string) *Type {
	for _, t := range m.Structs {
		if t.Name == name {
			return t
		}
	}
	t := Opaque(name)
	m.Structs = append(m.Structs, t)
	return t
}

// Func returns the function with the given name, if any.
func (m *Module) Func(name string) *Function {
	return m.funcs[name]
}

// GetOrDeclare returns the function called name, declaring it with sig when
// missing. Asking again with the same signature returns the same function;
// a different signature is an error.
func (m *Module) GetOrDeclare(name string, sig FuncType) (*Function, error) {
	if f, ok := m.funcs[name]; ok {
		if !f.Sig.Equal(sig) {
			return nil, fmt.Errorf("%w: @%s is %s, requested %s", ErrConflictingDeclaration, name, f.Sig, sig)
		}
		return f, nil
	}
	f := m.newFunction(name, sig)
	return f, nil
}

// Define adds a function that will receive a body. The name must be free.
func (m *Module) Define(name string, sig FuncType) (*Function, error) {
	if _, ok := m.funcs[name]; ok {
		return nil, fmt.Errorf("%w: @%s already exists", ErrConflictingDeclaration, name)
	}
	return m.newFunction(name, sig), nil
}

func (m *Module) newFunction(name string, sig FuncType) *Function {
	f := &Function{Name: name, Sig: sig, Module: m}
	for i, t := range sig.Params {
		f.Params = append(f.Params, &Param{Name: "arg" + strconv.Itoa(i), Typ: t})
	}
	m.funcs[name] = f
	m.Funcs = append(m.Funcs, f)
	return f
}

// RemoveFunc drops a function; callers must have removed its uses.
func (m *Module) RemoveFunc(f *Function) {
	delete(m.funcs, f.Name)
	m.Funcs = slices.DeleteFunc(m.Funcs, func(x *Function) bool { return x == f })
	f.Module = nil
}

// Rename moves f to a new name.
func (m *Module) Rename(f *Function, name string) error {
	if name == f.Name {
		return nil
	}
	if _, taken := m.funcs[name]; taken {
		return fmt.Errorf("%w: @%s already exists", ErrConflictingDeclaration, name)
	}
	delete(m.funcs, f.Name)
	f.Name = name
	m.funcs[name] = f
	return nil
}

// StringPtr interns s as a NUL terminated private global and returns an
// i8* to its first byte.
func (m *Module) StringPtr(s string) *StringPtr {
	g, ok := m.strings[s]
	if !ok {
		g = &Global{
			Name: strconv.Itoa(len(m.Globals)),
			Data: append([]byte(s), 0),
		}
		m.strings[s] = g
		m.Globals = append(m.Globals, g)
	}
	return &StringPtr{G: g}
}

// AddFlag appends a module flag.
func (m *Module) AddFlag(behavior int, key string, value *ConstInt) {
	m.Flags = append(m.Flags, ModuleFlag{Behavior: behavior, Key: key, Value: value})
}

// Flag looks up a module flag by key.
func (m *Module) Flag(key string) (ModuleFlag, bool) {
	for _, f := range m.Flags {
		if f.Key == key {
			return f, true
		}
	}
	return ModuleFlag{}, false
}

// Definitions returns the functions that have a body.
func (m *Module) Definitions() []*Function {
	var out []*Function
	for _, f := range m.Funcs {
		if !f.IsDeclaration() {
			out = append(out, f)
		}
	}
	return out
}

// PointerWidth returns the address space 0 pointer size from the data
// layout. A layout without a pointer spec uses the LLVM default of 64; an
// empty layout is unknown.
func (m *Module) PointerWidth() (int, bool) {
	if m.DataLayout == "" {
		return 0, false
	}
	for _, spec := range strings.Split(m.DataLayout, "-") {
		var rest string
		switch {
		case strings.HasPrefix(spec, "p:"):
			rest = spec[2:]
		case strings.HasPrefix(spec, "p0:"):
			rest = spec[3:]
		default:
			continue
		}
		size, _, _ := strings.Cut(rest, ":")
		bits, err := strconv.Atoi(size)
		if err != nil || bits <= 0 {
			return 0, false
		}
		return bits, true
	}
	return 64, true
}
