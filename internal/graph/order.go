package graph

import (
	"container/heap"
	"fmt"
)

// Order returns the children of a region sorted so that every node comes
// after the producers of its inputs. Ties keep the original child order,
// which makes emission deterministic. The Input node is always first and the
// Output node always last.
func (g *Graph) Order(region NodeID) ([]NodeID, error) {
	n := g.Node(region)
	if n == nil {
		return nil, fmt.Errorf("%w: region %d does not exist", ErrGraph, region)
	}
	position := make(map[NodeID]int, len(n.children))
	for i, child := range n.children {
		position[child] = i
	}
	indeg := make(map[NodeID]int, len(n.children))
	for _, child := range n.children {
		for _, src := range g.nodes[child].inputs {
			if !src.valid() {
				continue
			}
			if _, sibling := position[src.Node]; sibling {
				indeg[child]++
			}
		}
	}

	ready := &positionHeap{pos: position}
	for _, child := range n.children {
		if indeg[child] == 0 {
			heap.Push(ready, child)
		}
	}
	order := make([]NodeID, 0, len(n.children))
	for ready.Len() > 0 {
		cur := heap.Pop(ready).(NodeID)
		order = append(order, cur)
		for _, targets := range g.nodes[cur].outputs {
			for _, dst := range targets {
				if _, sibling := position[dst.Node]; !sibling {
					continue
				}
				indeg[dst.Node]--
				if indeg[dst.Node] == 0 {
					heap.Push(ready, dst.Node)
				}
			}
		}
	}
	if len(order) != len(n.children) {
		return nil, fmt.Errorf("%w: dataflow cycle in region %d", ErrGraph, region)
	}
	if n.Kind.IsRegion() {
		order = pinBoundary(order, n.children[0], n.children[1])
	}
	return order, nil
}

// pinBoundary moves the Output node to the end; Input has no inputs and the
// lowest position, so it already comes first.
func pinBoundary(order []NodeID, _, out NodeID) []NodeID {
	res := make([]NodeID, 0, len(order))
	for _, id := range order {
		if id != out {
			res = append(res, id)
		}
	}
	return append(res, out)
}

type positionHeap struct {
	ids []NodeID
	pos map[NodeID]int
}

func (h *positionHeap) Len() int           { return len(h.ids) }
func (h *positionHeap) Less(i, j int) bool { return h.pos[h.ids[i]] < h.pos[h.ids[j]] }
func (h *positionHeap) Swap(i, j int)      { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *positionHeap) Push(x any)         { h.ids = append(h.ids, x.(NodeID)) }
func (h *positionHeap) Pop() any {
	old := h.ids
	last := old[len(old)-1]
	h.ids = old[:len(old)-1]
	return last
}
