package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/text/unicode/norm"
)

// Current schema version - increment when the document layout changes
const documentVersion = 1

// Format selects the serialized encoding of a graph document.
type Format uint8

const (
	FormatJSON Format = iota + 1
	FormatMsgpack
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	default:
		return "unknown"
	}
}

// FormatFromPath picks an encoding from the file extension; JSON unless the
// extension names MessagePack.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp", ".msgpack":
		return FormatMsgpack
	default:
		return FormatJSON
	}
}

type document struct {
	Version int          `json:"version" msgpack:"version"`
	Nodes   []nodeRecord `json:"nodes" msgpack:"nodes"`
	Edges   []edgeRecord `json:"edges" msgpack:"edges"`
}

type nodeRecord struct {
	ID      uint32       `json:"id" msgpack:"id"`
	Parent  *uint32      `json:"parent,omitempty" msgpack:"parent,omitempty"`
	Kind    string       `json:"kind" msgpack:"kind"`
	Name    string       `json:"name,omitempty" msgpack:"name,omitempty"`
	Inputs  []string     `json:"inputs,omitempty" msgpack:"inputs,omitempty"`
	Outputs []string     `json:"outputs,omitempty" msgpack:"outputs,omitempty"`
	Dialect string       `json:"dialect,omitempty" msgpack:"dialect,omitempty"`
	Op      string       `json:"op,omitempty" msgpack:"op,omitempty"`
	Tag     string       `json:"tag,omitempty" msgpack:"tag,omitempty"`
	Angle   string       `json:"angle,omitempty" msgpack:"angle,omitempty"`
	Callee  *uint32      `json:"callee,omitempty" msgpack:"callee,omitempty"`
	Value   *constRecord `json:"value,omitempty" msgpack:"value,omitempty"`
}

type constRecord struct {
	Type   string  `json:"type" msgpack:"type"`
	Bool   bool    `json:"bool,omitempty" msgpack:"bool,omitempty"`
	Int    int64   `json:"int,omitempty" msgpack:"int,omitempty"`
	Float  float64 `json:"float,omitempty" msgpack:"float,omitempty"`
	String string  `json:"string,omitempty" msgpack:"string,omitempty"`
}

type edgeRecord struct {
	Src     uint32 `json:"src" msgpack:"src"`
	SrcPort int    `json:"src_port" msgpack:"src_port"`
	Dst     uint32 `json:"dst" msgpack:"dst"`
	DstPort int    `json:"dst_port" msgpack:"dst_port"`
}

// Load reads a graph document from path, choosing the codec by extension.
func Load(path string) (*Graph, error) {
	// #nosec G304 -- path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph: %w", err)
	}
	defer func() { _ = f.Close() }()
	g, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Save writes g to path, choosing the codec by extension.
func Save(path string, g *Graph) error {
	// #nosec G304 -- path comes from build configuration
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write graph dump: %w", err)
	}
	if err := Encode(f, g, FormatFromPath(path)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Decode parses a document and rebuilds the arena. Node ids are reassigned
// in document order.
func Decode(r io.Reader, format Format) (*Graph, error) {
	var doc document
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGraph, err)
		}
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGraph, err)
		}
	default:
		return nil, fmt.Errorf("unsupported graph format %v", format)
	}
	return fromDocument(&doc)
}

// Encode serializes g.
func Encode(w io.Writer, g *Graph, format Format) error {
	doc := toDocument(g)
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(doc)
	default:
		return fmt.Errorf("unsupported graph format %v", format)
	}
}

func fromDocument(doc *document) (*Graph, error) {
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("%w: unsupported document version %d", ErrGraph, doc.Version)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("%w: document has no nodes", ErrGraph)
	}
	records := make(map[uint32]*nodeRecord, len(doc.Nodes))
	for i := range doc.Nodes {
		rec := &doc.Nodes[i]
		if _, dup := records[rec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %d", ErrGraph, rec.ID)
		}
		records[rec.ID] = rec
	}

	g := &Graph{}
	ids := make(map[uint32]NodeID, len(doc.Nodes))
	var calls []*Node
	var callTargets []uint32
	for i := range doc.Nodes {
		rec := &doc.Nodes[i]
		kind, err := ParseKind(rec.Kind)
		if err != nil {
			return nil, err
		}
		n, err := nodeFromRecord(rec, kind, records)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", rec.ID, err)
		}
		if rec.Parent == nil {
			if kind != KindModule || len(g.nodes) != 0 {
				return nil, fmt.Errorf("%w: node %d has no parent", ErrGraph, rec.ID)
			}
			n.Parent = NoNodeID
			g.root = g.alloc(n)
			ids[rec.ID] = g.root
			continue
		}
		parent, ok := ids[*rec.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: node %d appears before its parent %d", ErrGraph, rec.ID, *rec.Parent)
		}
		id, err := g.insert(parent, n)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", rec.ID, err)
		}
		ids[rec.ID] = id
		if kind == KindCall {
			calls = append(calls, n)
			callTargets = append(callTargets, *rec.Callee)
		}
	}
	for i, n := range calls {
		target, ok := ids[callTargets[i]]
		if !ok {
			return nil, fmt.Errorf("%w: call %d targets unknown node %d", ErrGraph, n.ID, callTargets[i])
		}
		n.Callee = target
	}
	for _, e := range doc.Edges {
		src, okSrc := ids[e.Src]
		dst, okDst := ids[e.Dst]
		if !okSrc || !okDst {
			return nil, fmt.Errorf("%w: edge %d:%d -> %d:%d references unknown nodes", ErrGraph, e.Src, e.SrcPort, e.Dst, e.DstPort)
		}
		if err := g.Connect(Port{Node: src, Index: e.SrcPort}, Port{Node: dst, Index: e.DstPort}); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func nodeFromRecord(rec *nodeRecord, kind NodeKind, records map[uint32]*nodeRecord) (*Node, error) {
	inputs, err := parseTypes(rec.Inputs)
	if err != nil {
		return nil, err
	}
	outputs, err := parseTypes(rec.Outputs)
	if err != nil {
		return nil, err
	}
	n := &Node{
		Kind:   kind,
		Name:   norm.NFC.String(rec.Name),
		Sig:    Sig(inputs, outputs),
		Callee: NoNodeID,
		Op: Op{
			Dialect: rec.Dialect,
			Name:    rec.Op,
			Tag:     norm.NFC.String(rec.Tag),
			Angle:   rec.Angle,
		},
	}
	switch kind {
	case KindOp:
		if rec.Dialect == "" || rec.Op == "" {
			return nil, fmt.Errorf("%w: op node without dialect or name", ErrGraph)
		}
	case KindCall:
		if rec.Callee == nil {
			return nil, fmt.Errorf("%w: call without callee", ErrGraph)
		}
		// Ports of a call are dictated by its callee.
		target, ok := records[*rec.Callee]
		if !ok || target.Kind != KindFuncDefn.String() {
			return nil, fmt.Errorf("%w: call targets %d which is not a function", ErrGraph, *rec.Callee)
		}
		if n.Sig.Inputs, err = parseTypes(target.Inputs); err != nil {
			return nil, err
		}
		if n.Sig.Outputs, err = parseTypes(target.Outputs); err != nil {
			return nil, err
		}
	case KindConst:
		if rec.Value == nil {
			return nil, fmt.Errorf("%w: const without value", ErrGraph)
		}
		t, err := ParseType(rec.Value.Type)
		if err != nil {
			return nil, err
		}
		n.Const = ConstValue{Type: t, Bool: rec.Value.Bool, Int: rec.Value.Int, Float: rec.Value.Float, Str: rec.Value.String}
		n.Sig = Signature{Outputs: []Type{t}}
	}
	return n, nil
}

func parseTypes(names []string) ([]Type, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]Type, len(names))
	for i, name := range names {
		t, err := ParseType(name)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func typeNamesOf(ts []Type) []string {
	if len(ts) == 0 {
		return nil
	}
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

func toDocument(g *Graph) *document {
	doc := &document{Version: documentVersion}
	g.Walk(g.root, func(id NodeID) bool {
		n := g.nodes[id]
		rec := nodeRecord{
			ID:      uint32(id),
			Kind:    n.Kind.String(),
			Name:    n.Name,
			Inputs:  typeNamesOf(n.Sig.Inputs),
			Outputs: typeNamesOf(n.Sig.Outputs),
			Dialect: n.Op.Dialect,
			Op:      n.Op.Name,
			Tag:     n.Op.Tag,
			Angle:   n.Op.Angle,
		}
		if n.Parent != NoNodeID {
			parent := uint32(n.Parent)
			rec.Parent = &parent
		}
		switch n.Kind {
		case KindCall:
			callee := uint32(n.Callee)
			rec.Callee = &callee
			rec.Inputs, rec.Outputs = nil, nil
		case KindConst:
			rec.Value = &constRecord{
				Type:   n.Const.Type.String(),
				Bool:   n.Const.Bool,
				Int:    n.Const.Int,
				Float:  n.Const.Float,
				String: n.Const.Str,
			}
			rec.Outputs = nil
		}
		doc.Nodes = append(doc.Nodes, rec)
		for i, src := range n.inputs {
			if !src.valid() {
				continue
			}
			doc.Edges = append(doc.Edges, edgeRecord{
				Src:     uint32(src.Node),
				SrcPort: src.Index,
				Dst:     uint32(id),
				DstPort: i,
			})
		}
		return true
	})
	sort.SliceStable(doc.Edges, func(i, j int) bool {
		a, b := doc.Edges[i], doc.Edges[j]
		if a.Dst != b.Dst {
			return a.Dst < b.Dst
		}
		return a.DstPort < b.DstPort
	})
	return doc
}

// IsDecodeError reports whether err came from a malformed document.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrGraph)
}
