package diag

import "fmt"

// Note attaches secondary context to a diagnostic.
type Note struct {
	Node uint32
	Msg  string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Node     uint32
	Notes    []Note
}

// New builds a diagnostic without notes.
func New(sev Severity, code Code, node uint32, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  msg,
		Node:     node,
	}
}

// WithNote returns a copy of d with an extra note.
func (d Diagnostic) WithNote(node uint32, msg string) Diagnostic {
	d.Notes = append(append([]Note(nil), d.Notes...), Note{Node: node, Msg: msg})
	return d
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s: node %d: %s", d.Severity, d.Code.ID(), d.Node, d.Message)
}
