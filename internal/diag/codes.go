package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// структура графа
	GraphInfo             Code = 1000
	GraphBadRoot          Code = 1001
	GraphBadParent        Code = 1002
	GraphRegionShape      Code = 1003
	GraphUnconnectedPort  Code = 1004
	GraphTypeMismatch     Code = 1005
	GraphCrossRegionEdge  Code = 1006
	GraphLinearity        Code = 1007
	GraphDanglingCallee   Code = 1008
	GraphCallSignature    Code = 1009
	GraphConditionalShape Code = 1010
	GraphDataflowCycle    Code = 1011
	GraphBadConst         Code = 1012

	// точка входа
	EntryInfo      Code = 2000
	EntryMissing   Code = 2001
	EntryAmbiguous Code = 2002
)

var codeDescription = map[Code]string{
	UnknownCode:           "Unknown error",
	GraphInfo:             "Graph information",
	GraphBadRoot:          "Graph root is not a module",
	GraphBadParent:        "Node placed under an invalid parent",
	GraphRegionShape:      "Region boundary nodes are missing or malformed",
	GraphUnconnectedPort:  "Input port has no source",
	GraphTypeMismatch:     "Edge connects ports of different types",
	GraphCrossRegionEdge:  "Edge crosses a region boundary",
	GraphLinearity:        "Linear value is not consumed exactly once",
	GraphDanglingCallee:   "Call refers to a missing function",
	GraphCallSignature:    "Call signature differs from callee",
	GraphConditionalShape: "Conditional must have a boolean predicate and two cases",
	GraphDataflowCycle:    "Dataflow region contains a cycle",
	GraphBadConst:         "Constant value does not match its type",
	EntryInfo:             "Entry point information",
	EntryMissing:          "No top-level function named main",
	EntryAmbiguous:        "More than one top-level function named main",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("GRF%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("ENT%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
