// Package features computes the unified set of active feature flags for
// every package in a build. Activation is monotone: once any consumer's
// requirement turns a flag on it stays on for the remainder of the pass.
// Normal and test configurations are resolved in independent passes so a
// test overlay never contaminates the production resolution.
package features

import (
	"context"
	"sort"
	"strings"

	"github.com/vk/planforge/internal/ctxlog"
	"github.com/vk/planforge/internal/pkggraph"
)

// Request is an explicit (package, flag) activation from the top-level build
// target.
type Request struct {
	Package string
	Flag    string
}

// Resolution is the frozen result of one pass: which flags are active for
// which package, and which optional dependencies were enabled.
type Resolution struct {
	active  map[string]map[string]bool
	enabled map[string]map[string]bool // consumer -> optional provider -> on
}

// Active reports whether the flag is on for the package.
func (r *Resolution) Active(pkg, flag string) bool {
	return r.active[pkg][flag]
}

// ActiveFlags returns the package's active flags, sorted.
func (r *Resolution) ActiveFlags(pkg string) []string {
	flags := make([]string, 0, len(r.active[pkg]))
	for f := range r.active[pkg] {
		flags = append(flags, f)
	}
	sort.Strings(flags)
	return flags
}

// OptionalEnabled reports whether the consumer's optional dependency on the
// provider was enabled by some feature.
func (r *Resolution) OptionalEnabled(consumer, provider string) bool {
	return r.enabled[consumer][provider]
}

// EdgeEnabled reports whether an edge participates in the resolved build:
// non-optional edges always do, optional ones only once a feature enabled
// them.
func (r *Resolution) EdgeEnabled(e pkggraph.Edge) bool {
	if !e.Optional {
		return true
	}
	return r.OptionalEnabled(e.Consumer, e.Provider)
}

// resolver is the mutable state of a single pass.
type resolver struct {
	graph  *pkggraph.Graph
	filter pkggraph.EdgeFilter
	root   string
	res    *Resolution
	// deferred holds "dep?/flag" implications waiting for the optional
	// dependency to be enabled: consumer -> provider -> flags.
	deferred map[string]map[string][]string
}

// Resolve runs one pass over the graph restricted to edges matching the
// filter. The root package's default flags are always activated; other
// packages' defaults activate per consuming edge. The result is frozen once
// returned.
func Resolve(ctx context.Context, g *pkggraph.Graph, root string, requests []Request, filter pkggraph.EdgeFilter) (*Resolution, error) {
	logger := ctxlog.FromContext(ctx)

	if err := validateImplications(g); err != nil {
		return nil, err
	}

	r := &resolver{
		graph:  g,
		filter: filter,
		root:   root,
		res: &Resolution{
			active:  make(map[string]map[string]bool),
			enabled: make(map[string]map[string]bool),
		},
		deferred: make(map[string]map[string][]string),
	}

	// Seed: root defaults, explicit requests, then walk the dependency
	// edges so every reachable provider sees its consumers' requests.
	if err := r.enableDefaults(root); err != nil {
		return nil, err
	}
	for _, req := range requests {
		// Explicit requests must name a package in the graph. Only
		// implications tolerate providers a platform gate removed.
		if _, ok := g.Package(req.Package); !ok {
			return nil, &UnknownFlagError{Package: req.Package, Flag: req.Flag}
		}
		if err := r.enable(req.Package, req.Flag); err != nil {
			return nil, err
		}
	}
	if err := r.walk(root, make(map[string]bool)); err != nil {
		return nil, err
	}

	for _, pkg := range g.Packages() {
		logger.Debug("features resolved", "package", pkg, "active", strings.Join(r.res.ActiveFlags(pkg), ","))
	}
	return r.res, nil
}

// walk applies each edge's feature requests, consumer-first so defaults
// requested through edges accumulate with explicit activations.
func (r *resolver) walk(pkg string, seen map[string]bool) error {
	if seen[pkg] {
		return nil
	}
	seen[pkg] = true
	for _, e := range r.graph.Dependencies(pkg, r.filter) {
		if e.Optional && !r.res.OptionalEnabled(e.Consumer, e.Provider) {
			continue
		}
		if err := r.applyEdge(e); err != nil {
			return err
		}
		if err := r.walk(e.Provider, seen); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) applyEdge(e pkggraph.Edge) error {
	if e.DefaultFeatures {
		if err := r.enableDefaults(e.Provider); err != nil {
			return err
		}
	}
	for _, f := range e.Features {
		if err := r.enable(e.Provider, f); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) enableDefaults(pkg string) error {
	desc, ok := r.graph.Package(pkg)
	if !ok {
		return nil
	}
	for _, f := range desc.Features {
		if f.Default {
			if err := r.enable(pkg, f.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// enable marks (pkg, flag) active and recursively applies the flag's
// implications. Activation never unwinds; re-enabling is a no-op.
func (r *resolver) enable(pkg, flag string) error {
	desc, ok := r.graph.Package(pkg)
	if !ok {
		// The provider was filtered out of this materialization (platform
		// gate); its flags are invisible, not an error.
		return nil
	}
	if r.res.active[pkg][flag] {
		return nil
	}
	var decl []string
	for _, f := range desc.Features {
		if f.Name == flag {
			decl = f.Implies
			if decl == nil {
				decl = []string{}
			}
			break
		}
	}
	if decl == nil {
		return &UnknownFlagError{Package: pkg, Flag: flag}
	}
	if r.res.active[pkg] == nil {
		r.res.active[pkg] = make(map[string]bool)
	}
	r.res.active[pkg][flag] = true

	for _, imp := range decl {
		if err := r.imply(pkg, imp); err != nil {
			return err
		}
	}
	return nil
}

// imply applies one implication of an active flag.
func (r *resolver) imply(pkg, imp string) error {
	switch {
	case strings.HasPrefix(imp, "dep:"):
		return r.enableOptional(pkg, strings.TrimPrefix(imp, "dep:"))
	case strings.Contains(imp, "/"):
		depname, flag, _ := strings.Cut(imp, "/")
		if weak := strings.HasSuffix(depname, "?"); weak {
			depname = strings.TrimSuffix(depname, "?")
			if !r.optionalKnown(pkg, depname) {
				// Deferred: applies only if the optional dependency is
				// enabled later.
				if r.deferred[pkg] == nil {
					r.deferred[pkg] = make(map[string][]string)
				}
				r.deferred[pkg][depname] = append(r.deferred[pkg][depname], flag)
				return nil
			}
			return r.enable(depname, flag)
		}
		if err := r.enableOptional(pkg, depname); err != nil {
			return err
		}
		return r.enable(depname, flag)
	default:
		return r.enable(pkg, imp)
	}
}

// optionalKnown reports whether the consumer's edge to depname is already
// participating: either non-optional, or optional and enabled.
func (r *resolver) optionalKnown(pkg, depname string) bool {
	for _, e := range r.graph.Dependencies(pkg, r.filter) {
		if e.Provider != depname {
			continue
		}
		if !e.Optional || r.res.OptionalEnabled(pkg, depname) {
			return true
		}
	}
	return false
}

// enableOptional turns on the consumer's optional edge to the provider and
// flushes deferred implications. Enabling a non-optional dependency is a
// no-op; naming a dependency that does not exist is ignored, matching how
// gated-away dependencies are invisible.
func (r *resolver) enableOptional(pkg, depname string) error {
	var target *pkggraph.Edge
	for _, e := range r.graph.Dependencies(pkg, r.filter) {
		if e.Provider == depname {
			target = &e
			break
		}
	}
	if target == nil {
		return nil
	}
	if target.Optional {
		if r.res.OptionalEnabled(pkg, depname) {
			return nil
		}
		if r.res.enabled[pkg] == nil {
			r.res.enabled[pkg] = make(map[string]bool)
		}
		r.res.enabled[pkg][depname] = true
		if err := r.applyEdge(*target); err != nil {
			return err
		}
		if err := r.walk(depname, make(map[string]bool)); err != nil {
			return err
		}
	}
	for _, flag := range r.deferred[pkg][depname] {
		if err := r.enable(depname, flag); err != nil {
			return err
		}
	}
	delete(r.deferred[pkg], depname)
	return nil
}

// validateImplications rejects same-package implication cycles up front.
func validateImplications(g *pkggraph.Graph) error {
	for _, pkg := range g.Packages() {
		desc, _ := g.Package(pkg)
		implies := make(map[string][]string, len(desc.Features))
		for _, f := range desc.Features {
			for _, imp := range f.Implies {
				if !strings.Contains(imp, "/") && !strings.HasPrefix(imp, "dep:") {
					implies[f.Name] = append(implies[f.Name], imp)
				}
			}
		}
		state := make(map[string]int, len(implies)) // 0 new, 1 visiting, 2 done
		var visit func(flag string) error
		visit = func(flag string) error {
			switch state[flag] {
			case 1:
				return &ImplicationCycleError{Package: pkg, Flag: flag}
			case 2:
				return nil
			}
			state[flag] = 1
			for _, next := range implies[flag] {
				if err := visit(next); err != nil {
					return err
				}
			}
			state[flag] = 2
			return nil
		}
		for _, f := range desc.Features {
			if err := visit(f.Name); err != nil {
				return err
			}
		}
	}
	return nil
}
