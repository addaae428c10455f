package manifest

import (
	"fmt"

	"github.com/vk/planforge/internal/descriptor"
	"github.com/vk/planforge/internal/pkggraph"
	"github.com/vk/planforge/internal/platform"
)

// BuildGraph assembles the declared package graph from loaded descriptors.
// Packages register in slice order, then every declared dependency becomes an
// edge; an edge naming an unknown provider or closing a cycle surfaces the
// graph's own error.
func BuildGraph(descs []*descriptor.Descriptor) (*pkggraph.Graph, error) {
	g := pkggraph.New()
	for _, d := range descs {
		if err := g.AddPackage(d); err != nil {
			return nil, err
		}
	}
	for _, d := range descs {
		for _, dep := range d.Dependencies {
			pred := platform.Always
			if dep.Predicate != "" {
				var err error
				pred, err = platform.ParsePredicate(dep.Predicate)
				if err != nil {
					return nil, fmt.Errorf("package %q dependency %q: %w", d.Name, dep.Package, err)
				}
			}
			err := g.AddEdge(pkggraph.Edge{
				Consumer:        d.Name,
				Provider:        dep.Package,
				Kind:            dep.Kind,
				Predicate:       pred,
				Features:        dep.Features,
				DefaultFeatures: dep.DefaultFeatures,
				Optional:        dep.Optional,
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}
