// Package pkggraph builds and queries the immutable-once-built DAG of
// packages and their declared dependency edges. It is purely structural: no
// I/O, no build state. Edge kinds and platform predicates are carried on the
// edges so later stages can filter without re-parsing descriptors.
package pkggraph

import (
	"sort"

	"github.com/vk/planforge/internal/descriptor"
	"github.com/vk/planforge/internal/platform"
)

// Edge is a directed dependency from a consumer package to a provider.
type Edge struct {
	Consumer string
	Provider string
	Kind     descriptor.DepKind
	// Predicate gates the edge to matching target platforms.
	Predicate platform.Predicate
	// Features are provider flags the consumer requests through this edge.
	Features []string
	// DefaultFeatures requests the provider's default flags.
	DefaultFeatures bool
	// Optional edges are inert until a feature of the consumer enables them
	// with a "dep:provider" implication.
	Optional bool
}

// node is a single package plus its adjacency. Unexported so all interaction
// goes through the Graph API using package names.
type node struct {
	desc *descriptor.Descriptor
	// index is the declaration order, used for deterministic tie-breaking.
	index int
	// out are edges where this package is the consumer.
	out []Edge
	// in are edges where this package is the provider.
	in []Edge
}

// Graph is the package dependency DAG. Construct with New, populate with
// AddPackage/AddEdge, then treat as immutable.
type Graph struct {
	nodes map[string]*node
	order []string
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddPackage registers a package descriptor. The identity must be unique.
func (g *Graph) AddPackage(desc *descriptor.Descriptor) error {
	if _, ok := g.nodes[desc.Name]; ok {
		return &DuplicatePackageError{Name: desc.Name}
	}
	g.nodes[desc.Name] = &node{desc: desc, index: len(g.order)}
	g.order = append(g.order, desc.Name)
	return nil
}

// AddEdge declares that consumer depends on provider. Normal and build edges
// are cycle-checked immediately; dev edges are exempt because they never
// appear in the reachable production subgraph.
func (g *Graph) AddEdge(e Edge) error {
	consumer, ok := g.nodes[e.Consumer]
	if !ok {
		return &UnknownPackageError{Name: e.Consumer}
	}
	provider, ok := g.nodes[e.Provider]
	if !ok {
		return &UnknownPackageError{Name: e.Provider}
	}
	if e.Kind != descriptor.KindDev {
		if cycle := g.findPath(e.Provider, e.Consumer, ProductionEdges); cycle != nil {
			return &CycleError{Members: append(cycle, e.Provider)}
		}
	}
	consumer.out = append(consumer.out, e)
	provider.in = append(provider.in, e)
	return nil
}

// Package returns the descriptor for the named package.
func (g *Graph) Package(name string) (*descriptor.Descriptor, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return nil, false
	}
	return n.desc, true
}

// Packages returns all package names in declaration order.
func (g *Graph) Packages() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Dependencies returns the outgoing edges of the named package that pass the
// filter, in declaration order.
func (g *Graph) Dependencies(name string, filter EdgeFilter) []Edge {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	var edges []Edge
	for _, e := range n.out {
		if filter(e) {
			edges = append(edges, e)
		}
	}
	return edges
}

// Dependents returns the incoming edges of the named package that pass the
// filter.
func (g *Graph) Dependents(name string, filter EdgeFilter) []Edge {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	var edges []Edge
	for _, e := range n.in {
		if filter(e) {
			edges = append(edges, e)
		}
	}
	return edges
}

// findPath returns the node names along a path from -> to restricted to
// edges passing the filter, or nil if no path exists. Used for incremental
// cycle detection: an edge consumer->provider closes a cycle exactly when
// provider already reaches consumer.
func (g *Graph) findPath(from, to string, filter EdgeFilter) []string {
	if from == to {
		return []string{from}
	}
	seen := map[string]bool{from: true}
	var dfs func(cur string) []string
	dfs = func(cur string) []string {
		for _, e := range g.nodes[cur].out {
			if !filter(e) || seen[e.Provider] {
				continue
			}
			if e.Provider == to {
				return []string{e.Provider, cur}
			}
			seen[e.Provider] = true
			if path := dfs(e.Provider); path != nil {
				return append(path, cur)
			}
		}
		return nil
	}
	return dfs(from)
}

// Materialize returns the subgraph reachable from root over edges that pass
// the filter and whose platform predicate matches the target. Platform-gated
// sub-dependencies disappear entirely on non-matching platforms: their
// exports and imports become invisible to every later stage.
func (g *Graph) Materialize(root string, target platform.Platform, filter EdgeFilter) (*Graph, error) {
	if _, ok := g.nodes[root]; !ok {
		return nil, &UnknownPackageError{Name: root}
	}
	sub := New()
	var visit func(name string) error
	visit = func(name string) error {
		if _, ok := sub.nodes[name]; ok {
			return nil
		}
		n := g.nodes[name]
		if err := sub.AddPackage(n.desc); err != nil {
			return err
		}
		for _, e := range n.out {
			if !filter(e) || !e.Predicate.Matches(target) {
				continue
			}
			if err := visit(e.Provider); err != nil {
				return err
			}
			if err := sub.AddEdge(e); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(root); err != nil {
		return nil, err
	}
	// Preserve the original declaration order for determinism.
	sort.Slice(sub.order, func(i, j int) bool {
		return g.nodes[sub.order[i]].index < g.nodes[sub.order[j]].index
	})
	for i, name := range sub.order {
		sub.nodes[name].index = i
	}
	return sub, nil
}
