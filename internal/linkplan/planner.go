// Package linkplan resolves every imported FFI symbol in a materialized
// package graph to the unit that provides it, and emits an ordered link plan.
// Resolution is name-based and deterministic; the planner never guesses
// between candidates and never checks symbols against external libraries,
// which are opaque.
package linkplan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/planforge/internal/ctxlog"
	"github.com/vk/planforge/internal/descriptor"
	"github.com/vk/planforge/internal/directive"
	"github.com/vk/planforge/internal/pkggraph"
	"github.com/vk/planforge/internal/platform"
)

// BindingSource says what kind of unit satisfies an import.
type BindingSource int

const (
	// SourceSibling is another package in the same build.
	SourceSibling BindingSource = iota
	// SourceLibrary is an external library declared through a link-lib
	// directive. Opaque: trusted by name.
	SourceLibrary
	// SourceFramework is a platform framework, only visible on platforms
	// matching its predicate.
	SourceFramework
)

func (s BindingSource) String() string {
	switch s {
	case SourceSibling:
		return "sibling"
	case SourceLibrary:
		return "library"
	case SourceFramework:
		return "framework"
	}
	return "unknown"
}

// Binding records where one imported symbol comes from.
type Binding struct {
	Symbol string
	Source BindingSource
	// Provider is a package name, library name, or framework name depending
	// on Source.
	Provider string
	// Convention is the exporter's calling convention for sibling bindings.
	// A mismatch against the import's expectation is recorded, not rejected;
	// the toolchain is the authority on ABI compatibility.
	Convention string
	// ConventionMismatch flags a sibling binding whose exporter declares a
	// different convention than the importer expects.
	ConventionMismatch bool
}

// Unit is one package's entry in the plan.
type Unit struct {
	Package  string
	Artifact descriptor.ArtifactKind
	Bindings []Binding
	// LinkLibs are the external library names this unit requires, in
	// directive emission order, duplicates preserved.
	LinkLibs []string
	// Frameworks are platform frameworks bound by this unit's imports.
	Frameworks []string
	// SearchPaths are this unit's own link search paths.
	SearchPaths []string
}

// Plan is the ordered result of link resolution: providers before consumers,
// ready for the toolchain to consume front to back.
type Plan struct {
	Units []Unit
	// SearchPaths is the union of all units' search paths, first occurrence
	// wins, in plan order.
	SearchPaths []string
}

// Unit returns the plan entry for the named package, or nil.
func (p *Plan) Unit(name string) *Unit {
	for i := range p.Units {
		if p.Units[i].Package == name {
			return &p.Units[i]
		}
	}
	return nil
}

// Build resolves every import in the graph and assembles the plan. The graph
// must already be materialized for the target platform with the effective
// edge set; configs carry the directive output of each package's build
// script (nil entries are treated as empty).
//
// A package whose imports fail poisons its dependent subtree: dependents are
// skipped rather than resolved against a broken provider, while unrelated
// siblings still resolve. All root-cause failures are reported together.
func Build(ctx context.Context, g *pkggraph.Graph, configs map[string]*directive.Config, target platform.Platform, filter pkggraph.EdgeFilter) (*Plan, error) {
	log := ctxlog.FromContext(ctx)

	order, err := g.TopologicalOrder(filter)
	if err != nil {
		return nil, err
	}

	// Symbol index over every non-binary package in the graph. Binaries
	// export nothing no matter what their descriptor claims.
	exporters := make(map[string][]string)
	conventions := make(map[string]map[string]string)
	for _, name := range g.Packages() {
		desc, _ := g.Package(name)
		if desc.Artifact == descriptor.ArtifactBinary {
			continue
		}
		for _, exp := range desc.Exports {
			exporters[exp.Symbol] = append(exporters[exp.Symbol], name)
			if conventions[exp.Symbol] == nil {
				conventions[exp.Symbol] = make(map[string]string)
			}
			conventions[exp.Symbol][name] = exp.Convention
		}
	}

	plan := &Plan{}
	seenPath := make(map[string]bool)
	failed := make(map[string]bool)
	var errs []error

	for _, name := range order {
		desc, _ := g.Package(name)

		poisoned := ""
		for _, e := range g.Dependencies(name, filter) {
			if failed[e.Provider] {
				poisoned = e.Provider
				break
			}
		}
		if poisoned != "" {
			failed[name] = true
			log.Warn("skipping link resolution, provider failed",
				"package", name, "provider", poisoned)
			continue
		}

		cfg := configs[name]
		if cfg == nil {
			cfg = directive.NewConfig()
		}

		unit := Unit{Package: name, Artifact: desc.Artifact}
		var pkgErrs []error
		for _, imp := range desc.Imports {
			b, err := resolveImport(name, imp, exporters, conventions, cfg, target)
			if err != nil {
				pkgErrs = append(pkgErrs, err)
				continue
			}
			unit.Bindings = append(unit.Bindings, b)
			if b.Source == SourceFramework && !contains(unit.Frameworks, b.Provider) {
				unit.Frameworks = append(unit.Frameworks, b.Provider)
			}
		}
		if len(pkgErrs) > 0 {
			failed[name] = true
			errs = append(errs, pkgErrs...)
			continue
		}

		unit.LinkLibs = append(unit.LinkLibs, cfg.LinkLibs...)
		unit.SearchPaths = append(unit.SearchPaths, cfg.LinkSearch...)
		for _, p := range cfg.LinkSearch {
			if !seenPath[p] {
				seenPath[p] = true
				plan.SearchPaths = append(plan.SearchPaths, p)
			}
		}
		plan.Units = append(plan.Units, unit)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	log.Debug("link plan assembled", "units", len(plan.Units), "search_paths", len(plan.SearchPaths))
	return plan, nil
}

// resolveImport tries, in order: sibling exports, the import's declared
// external library, the import's declared platform framework.
func resolveImport(importer string, imp descriptor.Import, exporters map[string][]string, conventions map[string]map[string]string, cfg *directive.Config, target platform.Platform) (Binding, error) {
	var candidates []string
	for _, exp := range exporters[imp.Symbol] {
		if exp != importer {
			candidates = append(candidates, exp)
		}
	}
	if len(candidates) > 1 {
		return Binding{}, &AmbiguousSymbolError{
			Symbol:    imp.Symbol,
			Importer:  importer,
			Exporters: candidates,
		}
	}
	if len(candidates) == 1 {
		provider := candidates[0]
		conv := conventions[imp.Symbol][provider]
		return Binding{
			Symbol:             imp.Symbol,
			Source:             SourceSibling,
			Provider:           provider,
			Convention:         conv,
			ConventionMismatch: imp.Convention != "" && conv != "" && imp.Convention != conv,
		}, nil
	}

	if imp.Lib != "" && hasLinkLib(cfg, imp.Lib) {
		return Binding{Symbol: imp.Symbol, Source: SourceLibrary, Provider: imp.Lib}, nil
	}

	if imp.Framework != "" {
		visible := true
		if imp.FrameworkPredicate != "" {
			pred, err := platform.ParsePredicate(imp.FrameworkPredicate)
			if err != nil {
				return Binding{}, fmt.Errorf("package %q import %q: %w", importer, imp.Symbol, err)
			}
			visible = pred.Matches(target)
		}
		if visible {
			return Binding{Symbol: imp.Symbol, Source: SourceFramework, Provider: imp.Framework}, nil
		}
	}

	return Binding{}, &UnresolvedSymbolError{Symbol: imp.Symbol, Importer: importer}
}

// hasLinkLib reports whether the config declares the named library via a
// link-lib directive, ignoring a static=/dylib= linkage prefix.
func hasLinkLib(cfg *directive.Config, name string) bool {
	for _, lib := range cfg.LinkLibs {
		if lib == name {
			return true
		}
		if _, bare, ok := strings.Cut(lib, "="); ok && bare == name {
			return true
		}
	}
	return false
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
