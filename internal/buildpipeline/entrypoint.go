package buildpipeline

import (
	"errors"
	"fmt"
	"strings"

	"hugrqir/internal/dce"
	"hugrqir/internal/graph"
)

// ValidateEntrypoint ensures there is exactly one top-level main. The
// returned error lists what was found to make the fix obvious.
func ValidateEntrypoint(g *graph.Graph) error {
	if g == nil {
		return fmt.Errorf("missing program graph")
	}
	_, err := dce.FindEntry(g)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dce.ErrAmbiguousEntryPoint):
		return fmt.Errorf("%w: %s", err, formatEntrypointList(g, g.FuncsByName(dce.EntryName)))
	case errors.Is(err, dce.ErrMissingEntryPoint):
		funcs := g.Functions()
		if len(funcs) == 0 {
			return fmt.Errorf("%w: the module defines no functions", err)
		}
		return fmt.Errorf("%w: defined functions are %s", err, formatEntrypointList(g, funcs))
	default:
		return err
	}
}

func formatEntrypointList(g *graph.Graph, ids []graph.NodeID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		n := g.Node(id)
		label := n.Name
		if label == "" {
			label = "<unnamed>"
		}
		parts = append(parts, fmt.Sprintf("%s (node %d)", label, id))
	}
	return strings.Join(parts, ", ")
}
