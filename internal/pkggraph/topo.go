package pkggraph

import (
	"sort"

	"github.com/vk/planforge/internal/descriptor"
)

// EdgeFilter selects the edges participating in an ordering or traversal.
type EdgeFilter func(Edge) bool

// AllEdges passes every edge.
func AllEdges(Edge) bool { return true }

// ProductionEdges passes normal and build edges, the subgraph a production
// build resolves.
func ProductionEdges(e Edge) bool {
	return e.Kind == descriptor.KindNormal || e.Kind == descriptor.KindBuild
}

// TestEdges passes production edges plus the dev edges declared by the
// package under test. Dev dependencies of a dependency stay invisible.
func TestEdges(underTest string) EdgeFilter {
	return func(e Edge) bool {
		if ProductionEdges(e) {
			return true
		}
		return e.Kind == descriptor.KindDev && e.Consumer == underTest
	}
}

// TopologicalOrder returns the package names restricted to edges matching
// the filter, providers before consumers. The ordering is deterministic:
// ties are broken by declaration order. Fails with a CycleError if the
// filtered subgraph is cyclic.
func (g *Graph) TopologicalOrder(filter EdgeFilter) ([]string, error) {
	remaining := make(map[string]int, len(g.nodes))
	for name, n := range g.nodes {
		count := 0
		for _, e := range n.out {
			if filter(e) {
				count++
			}
		}
		remaining[name] = count
	}

	var ready []string
	for _, name := range g.order {
		if remaining[name] == 0 {
			ready = append(ready, name)
		}
	}

	out := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			return g.nodes[ready[i]].index < g.nodes[ready[j]].index
		})
		name := ready[0]
		ready = ready[1:]
		out = append(out, name)
		for _, e := range g.nodes[name].in {
			if !filter(e) {
				continue
			}
			remaining[e.Consumer]--
			if remaining[e.Consumer] == 0 {
				ready = append(ready, e.Consumer)
			}
		}
	}

	if len(out) != len(g.nodes) {
		var stuck []string
		for _, name := range g.order {
			if remaining[name] > 0 {
				stuck = append(stuck, name)
			}
		}
		return nil, &CycleError{Members: stuck}
	}
	return out, nil
}
