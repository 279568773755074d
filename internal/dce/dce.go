// Package dce removes functions that the entry point can never reach.
package dce

import (
	"errors"
	"fmt"

	"hugrqir/internal/callgraph"
	"hugrqir/internal/graph"
)

// EntryName is the name of the program entry point.
const EntryName = "main"

var (
	ErrEntryPoint          = errors.New("entry point error")
	ErrMissingEntryPoint   = fmt.Errorf("%w: no top-level function named %q", ErrEntryPoint, EntryName)
	ErrAmbiguousEntryPoint = fmt.Errorf("%w: more than one top-level function named %q", ErrEntryPoint, EntryName)
)

// Stats summarises one pruning run.
type Stats struct {
	Kept    int
	Removed []string
}

// FindEntry returns the unique top-level function named main.
func FindEntry(g *graph.Graph) (graph.NodeID, error) {
	found := g.FuncsByName(EntryName)
	switch len(found) {
	case 0:
		return graph.NoNodeID, ErrMissingEntryPoint
	case 1:
		return found[0], nil
	default:
		return graph.NoNodeID, fmt.Errorf("%w (%d found)", ErrAmbiguousEntryPoint, len(found))
	}
}

// Prune deletes every function not transitively called from main. Running
// it on an already pruned graph changes nothing.
func Prune(g *graph.Graph) (Stats, error) {
	entry, err := FindEntry(g)
	if err != nil {
		return Stats{}, err
	}
	cg := callgraph.Build(g, nil)
	live := make(map[graph.NodeID]struct{})
	for _, fn := range cg.Reachable(entry) {
		live[fn] = struct{}{}
	}
	var stats Stats
	for _, fn := range g.Functions() {
		if _, ok := live[fn]; ok {
			stats.Kept++
			continue
		}
		name := g.Node(fn).Name
		if err := g.RemoveSubtree(fn); err != nil {
			return stats, fmt.Errorf("remove %q: %w", name, err)
		}
		stats.Removed = append(stats.Removed, name)
	}
	return stats, nil
}
