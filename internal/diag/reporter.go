package diag

// Reporter is the minimal sink validation passes report into.
type Reporter interface {
	Report(code Code, sev Severity, node uint32, msg string, notes []Note)
}

// BagReporter stores reports in a Bag.
type BagReporter struct {
	Bag *Bag
}

func (r BagReporter) Report(code Code, sev Severity, node uint32, msg string, notes []Note) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  msg,
		Node:     node,
		Notes:    notes,
	})
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) Report(Code, Severity, uint32, string, []Note) {}
