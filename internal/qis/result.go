package qis

import (
	"hugrqir/internal/graph"
	"hugrqir/internal/llir"
)

const dialectResult = "tket2.result"

func registerResult(r *Registry) {
	r.add(dialectResult, "result_bool", record(BoolRecordOutput, graph.TypeBool))
	r.add(dialectResult, "result_int", record(IntRecordOutput, graph.TypeInt))
	r.add(dialectResult, "result_uint", record(IntRecordOutput, graph.TypeInt))
	r.add(dialectResult, "result_f64", record(DoubleRecordOutput, graph.TypeFloat))
}

// record lowers an output recording op; the tag must be non-empty.
func record(intrinsic string, t graph.Type) entry {
	return entry{
		graph.Sig(types(t), nil),
		func(c *Context, op graph.Op, args []llir.Value) ([]llir.Value, error) {
			return nil, c.Record(intrinsic, args[0], op.Tag)
		},
	}
}
