// Package engine orchestrates a full build resolution: load the build file
// and package descriptors, construct and materialize the package graph,
// resolve feature flags, run build scripts in dependency order, assemble the
// link plan, and compose requested test units. Each stage is a separate
// package; the engine only sequences them and carries state between.
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/vk/planforge/internal/buildfile"
	"github.com/vk/planforge/internal/ctxlog"
	"github.com/vk/planforge/internal/directive"
	"github.com/vk/planforge/internal/features"
	"github.com/vk/planforge/internal/linkplan"
	"github.com/vk/planforge/internal/manifest"
	"github.com/vk/planforge/internal/pkggraph"
	"github.com/vk/planforge/internal/platform"
	"github.com/vk/planforge/internal/script"
	"github.com/vk/planforge/internal/testunit"
)

const defaultOutDir = ".planforge"

// Options parameterize one engine instance.
type Options struct {
	// BuildFile is the path to the HCL build target file.
	BuildFile string
	// Target names the target to build; empty selects the only one.
	Target string
	// Workers caps concurrent build script runs.
	Workers int
	// CacheSize bounds the script result cache; zero disables caching.
	CacheSize int
	// Invoker overrides how build scripts run. Nil uses real subprocesses.
	Invoker script.Invoker
}

// Engine resolves builds.
type Engine struct {
	opts  Options
	cache *script.Cache
}

// Result is everything one resolution run produced.
type Result struct {
	RunID    string
	Target   string
	Platform platform.Platform
	// Order is the effective build order, providers before consumers.
	Order []string
	// Graph is the effective materialized graph: platform-gated and
	// non-enabled optional edges removed.
	Graph      *pkggraph.Graph
	Resolution *features.Resolution
	Configs    map[string]*directive.Config
	Plan       *linkplan.Plan
	// TestUnits holds a composed unit per package the target tests.
	TestUnits map[string]*testunit.Unit
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	e := &Engine{opts: opts}
	if opts.CacheSize > 0 {
		cache, err := script.NewCache(opts.CacheSize)
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}
	return e, nil
}

// Run performs one full resolution.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	bf, err := buildfile.Load(ctx, e.opts.BuildFile)
	if err != nil {
		return nil, err
	}
	target, err := bf.Target(e.opts.Target)
	if err != nil {
		return nil, err
	}
	requests, err := target.Requests()
	if err != nil {
		return nil, err
	}
	extraEnv, err := target.ExtraEnv()
	if err != nil {
		return nil, err
	}
	plat := target.ResolvePlatform()
	logger.Info("resolving build", "target", target.Name, "root", target.Root, "platform", plat.String())

	baseDir := filepath.Dir(e.opts.BuildFile)
	if bf.Workspace == nil || bf.Workspace.Packages == "" {
		return nil, fmt.Errorf("%s: workspace.packages is required", e.opts.BuildFile)
	}
	descs, err := manifest.LoadTree(filepath.Join(baseDir, bf.Workspace.Packages))
	if err != nil {
		return nil, err
	}
	logger.Debug("descriptors loaded", "count", len(descs))

	declared, err := manifest.BuildGraph(descs)
	if err != nil {
		return nil, err
	}

	// First pass: the platform-materialized production graph, optional edges
	// included so feature resolution can see and enable them.
	prod, err := declared.Materialize(target.Root, plat, pkggraph.ProductionEdges)
	if err != nil {
		return nil, err
	}
	res, err := features.Resolve(ctx, prod, target.Root, requests, pkggraph.ProductionEdges)
	if err != nil {
		return nil, err
	}

	// Second pass: drop optional edges no feature enabled. Everything
	// downstream operates on this effective graph.
	effectiveFilter := func(edge pkggraph.Edge) bool {
		return pkggraph.ProductionEdges(edge) && res.EdgeEnabled(edge)
	}
	effective, err := prod.Materialize(target.Root, plat, effectiveFilter)
	if err != nil {
		return nil, err
	}
	order, err := effective.TopologicalOrder(pkggraph.ProductionEdges)
	if err != nil {
		return nil, err
	}
	logger.Debug("build order fixed", "packages", len(order))

	outRoot := defaultOutDir
	if bf.Workspace.OutDir != "" {
		outRoot = bf.Workspace.OutDir
	}
	invoker := e.opts.Invoker
	if invoker == nil {
		invoker = script.ExecInvoker{}
	}
	exec := &script.Executor{
		Invoker:  invoker,
		Cache:    e.cache,
		Workers:  e.opts.Workers,
		OutRoot:  filepath.Join(baseDir, outRoot),
		ExtraEnv: extraEnv,
	}
	configs, err := exec.Run(ctx, effective, res, plat, pkggraph.ProductionEdges)
	if err != nil {
		return nil, err
	}

	plan, err := linkplan.Build(ctx, effective, configs, plat, pkggraph.ProductionEdges)
	if err != nil {
		return nil, err
	}

	composer := testunit.NewComposer(declared, plat)
	for pkg, cfg := range configs {
		composer.SetNormal(pkg, cfg, res.ActiveFlags(pkg))
	}
	units := make(map[string]*testunit.Unit, len(target.Test))
	for _, pkg := range target.Test {
		unit, err := composer.Compose(ctx, pkg, requests)
		if err != nil {
			return nil, err
		}
		units[pkg] = unit
	}

	logger.Info("build resolved",
		"packages", len(order), "link_units", len(plan.Units), "test_units", len(units))
	return &Result{
		RunID:      runID,
		Target:     target.Name,
		Platform:   plat,
		Order:      order,
		Graph:      effective,
		Resolution: res,
		Configs:    configs,
		Plan:       plan,
		TestUnits:  units,
	}, nil
}
