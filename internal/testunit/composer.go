// Package testunit derives test-scoped build configurations. A package's
// test unit layers its dev dependencies and test-gated code regions on top of
// the normal configuration without touching it: units are immutable values
// keyed by (package, purpose), never shared mutable state. A package that is
// both under test and a production dependency elsewhere in the same build
// keeps its normal configuration byte for byte.
package testunit

import (
	"context"
	"sort"
	"sync"

	"github.com/vk/planforge/internal/ctxlog"
	"github.com/vk/planforge/internal/directive"
	"github.com/vk/planforge/internal/features"
	"github.com/vk/planforge/internal/pkggraph"
	"github.com/vk/planforge/internal/platform"
)

// Purpose selects which of a package's parallel configurations a unit is.
type Purpose string

const (
	PurposeNormal Purpose = "normal"
	PurposeTest   Purpose = "test"
)

// Key identifies one unit.
type Key struct {
	Package string
	Purpose Purpose
}

// Unit is one immutable configuration overlay. Treat every field as
// read-only after composition.
type Unit struct {
	Package string
	Purpose Purpose
	// Config is the unit's build configuration. Test units start from a
	// clone of the normal config with the "test" region flag enabled.
	Config *directive.Config
	// ActiveFlags are the package's resolved feature flags for this purpose,
	// sorted.
	ActiveFlags []string
	// Graph is the subgraph the unit resolves against: for test units it
	// includes the package's own dev edges. Nil for normal units, which live
	// in the build-wide graph.
	Graph *pkggraph.Graph
}

// Composer builds and stores units over one declared graph and target.
type Composer struct {
	graph  *pkggraph.Graph
	target platform.Platform

	mu    sync.Mutex
	units map[Key]*Unit
}

// NewComposer creates a composer over the full declared graph.
func NewComposer(g *pkggraph.Graph, target platform.Platform) *Composer {
	return &Composer{graph: g, target: target, units: make(map[Key]*Unit)}
}

// SetNormal records a package's normal configuration as composed by the
// production pipeline. The config is cloned on the way in so the caller
// cannot mutate the stored unit afterwards.
func (c *Composer) SetNormal(pkg string, cfg *directive.Config, activeFlags []string) {
	flags := append([]string(nil), activeFlags...)
	sort.Strings(flags)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units[Key{Package: pkg, Purpose: PurposeNormal}] = &Unit{
		Package:     pkg,
		Purpose:     PurposeNormal,
		Config:      cfg.Clone(),
		ActiveFlags: flags,
	}
}

// Compose builds the test unit for a package: the reachable subgraph over
// production edges plus the package's own dev edges, features re-resolved
// over that subgraph, and the normal config overlaid with the "test" region
// flag. Composing the same package twice returns the stored unit.
func (c *Composer) Compose(ctx context.Context, pkg string, requests []features.Request) (*Unit, error) {
	key := Key{Package: pkg, Purpose: PurposeTest}
	c.mu.Lock()
	if u, ok := c.units[key]; ok {
		c.mu.Unlock()
		return u, nil
	}
	c.mu.Unlock()

	filter := pkggraph.TestEdges(pkg)
	sub, err := c.graph.Materialize(pkg, c.target, filter)
	if err != nil {
		return nil, err
	}
	res, err := features.Resolve(ctx, sub, pkg, requests, filter)
	if err != nil {
		return nil, err
	}

	base := directive.NewConfig()
	c.mu.Lock()
	defer c.mu.Unlock()
	if normal, ok := c.units[Key{Package: pkg, Purpose: PurposeNormal}]; ok {
		base = normal.Config
	}
	cfg := base.Clone()
	cfg.SetCfg("test")

	u := &Unit{
		Package:     pkg,
		Purpose:     PurposeTest,
		Config:      cfg,
		ActiveFlags: res.ActiveFlags(pkg),
		Graph:       sub,
	}
	c.units[key] = u
	ctxlog.FromContext(ctx).Debug("test unit composed",
		"package", pkg, "packages_in_scope", len(sub.Packages()), "flags", u.ActiveFlags)
	return u, nil
}

// Unit returns the stored unit for (package, purpose), if composed.
func (c *Composer) Unit(pkg string, purpose Purpose) (*Unit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.units[Key{Package: pkg, Purpose: purpose}]
	return u, ok
}
