// Package script runs package build scripts in dependency order and reduces
// their stdout directives into per-package build configurations. Execution is
// concurrent across independent packages; a failure skips the failing
// package's dependents while unrelated subtrees keep running, and every root
// cause is reported.
package script

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/vk/planforge/internal/ctxlog"
	"github.com/vk/planforge/internal/directive"
	"github.com/vk/planforge/internal/features"
	"github.com/vk/planforge/internal/pkggraph"
	"github.com/vk/planforge/internal/platform"
)

const defaultWorkers = 4

// Executor drives build scripts over a materialized graph.
type Executor struct {
	Invoker Invoker
	// Cache is optional; nil disables result reuse.
	Cache *Cache
	// Workers caps concurrent script runs. Zero means defaultWorkers.
	Workers int
	// OutRoot is the base directory under which each package gets its OUT_DIR.
	OutRoot string
	// ExtraEnv entries are added to every script's environment. Contract
	// variables take precedence on key collision.
	ExtraEnv []string
}

// runNode tracks one package's execution state. depCount and skipOnce follow
// the usual countdown pattern: a node is scheduled when its last provider
// finishes, and marked failed at most once.
type runNode struct {
	name       string
	depCount   atomic.Int32
	dependents []*runNode
	skipOnce   sync.Once
	err        error
	cfg        *directive.Config
}

// skipped marks a node failed because a provider failed. A symptom, filtered
// out of the final report.
type skipped struct{ provider string }

func (s skipped) Error() string {
	return fmt.Sprintf("skipped due to upstream failure of %q", s.provider)
}

// Run executes every package's build script, providers before consumers, and
// returns the per-package configs. Packages without scripts get an empty
// config. On failure the partial config map is still returned alongside the
// joined root-cause errors.
func (e *Executor) Run(ctx context.Context, g *pkggraph.Graph, res *features.Resolution, target platform.Platform, filter pkggraph.EdgeFilter) (map[string]*directive.Config, error) {
	log := ctxlog.FromContext(ctx)

	// Cycles surface before any script runs.
	if _, err := g.TopologicalOrder(filter); err != nil {
		return nil, err
	}

	nodes := make(map[string]*runNode, len(g.Packages()))
	for _, name := range g.Packages() {
		nodes[name] = &runNode{name: name}
	}
	for _, name := range g.Packages() {
		n := nodes[name]
		for _, provider := range providerNames(g, name, filter) {
			n.depCount.Add(1)
			nodes[provider].dependents = append(nodes[provider].dependents, n)
		}
	}

	ready := make(chan *runNode, len(nodes))
	var wg sync.WaitGroup
	wg.Add(len(nodes))
	for _, name := range g.Packages() {
		if nodes[name].depCount.Load() == 0 {
			ready <- nodes[name]
		}
	}

	workers := e.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	log.Debug("starting script executor", "packages", len(nodes), "workers", workers)
	for i := 0; i < workers; i++ {
		go e.worker(ctx, g, res, target, filter, nodes, ready, &wg)
	}
	wg.Wait()
	close(ready)

	configs := make(map[string]*directive.Config, len(nodes))
	var errs []error
	for _, name := range g.Packages() {
		n := nodes[name]
		if n.err == nil {
			configs[name] = n.cfg
			continue
		}
		var skip skipped
		if errors.As(n.err, &skip) || errors.Is(n.err, context.Canceled) {
			// Symptoms, not causes.
			continue
		}
		errs = append(errs, n.err)
	}
	// Per-node cancellations are symptoms; the cancellation itself is a cause.
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return configs, errors.Join(errs...)
}

func (e *Executor) worker(ctx context.Context, g *pkggraph.Graph, res *features.Resolution, target platform.Platform, filter pkggraph.EdgeFilter, nodes map[string]*runNode, ready chan *runNode, wg *sync.WaitGroup) {
	log := ctxlog.FromContext(ctx)
	for n := range ready {
		if ctx.Err() != nil {
			n.skipOnce.Do(func() {
				n.err = ctx.Err()
				wg.Done()
			})
			// The node never ran, so its dependents' counts will never reach
			// zero on their own. Drain them or wg.Wait blocks forever.
			e.skipDependents(ctx, n, wg)
			continue
		}

		cfg, err := e.runPackage(ctx, g, n.name, res, target, filter, nodes)
		if err != nil {
			log.Error("build script failed", "package", n.name, "error", err)
			n.skipOnce.Do(func() {
				n.err = err
				wg.Done()
			})
			e.skipDependents(ctx, n, wg)
			continue
		}

		n.cfg = cfg
		for _, dep := range n.dependents {
			if dep.depCount.Add(-1) == 0 {
				ready <- dep
			}
		}
		wg.Done()
	}
}

// skipDependents recursively fails everything downstream of a failed node.
// Unrelated subtrees are untouched and keep executing.
func (e *Executor) skipDependents(ctx context.Context, n *runNode, wg *sync.WaitGroup) {
	log := ctxlog.FromContext(ctx)
	for _, dep := range n.dependents {
		dep.skipOnce.Do(func() {
			log.Warn("skipping package, provider failed", "package", dep.name, "provider", n.name)
			dep.err = skipped{provider: n.name}
			wg.Done()
			e.skipDependents(ctx, dep, wg)
		})
	}
}

// runPackage executes one package's script, or returns its cached or empty
// config.
func (e *Executor) runPackage(ctx context.Context, g *pkggraph.Graph, name string, res *features.Resolution, target platform.Platform, filter pkggraph.EdgeFilter, nodes map[string]*runNode) (*directive.Config, error) {
	log := ctxlog.FromContext(ctx)
	desc, _ := g.Package(name)
	if desc.Script == nil {
		return directive.NewConfig(), nil
	}

	for _, flag := range desc.Script.RequiresFeatures {
		if !desc.HasFeature(flag) {
			return nil, &PreconditionUnmetError{Package: name, Flag: flag}
		}
		if !res.Active(name, flag) {
			return nil, &PreconditionUnmetError{Package: name, Flag: flag, Declared: true}
		}
	}

	active := res.ActiveFlags(name)
	if cfg, ok := e.Cache.Lookup(name, desc.Dir, active, target); ok {
		log.Debug("build script result reused", "package", name)
		return cfg, nil
	}

	var providers []providerOutput
	for _, provider := range providerNames(g, name, filter) {
		// Providers finished before this node was scheduled.
		providers = append(providers, providerOutput{name: provider, cfg: nodes[provider].cfg})
	}

	inv := Invocation{
		Package: name,
		Dir:     desc.Dir,
		Path:    filepath.Join(desc.Dir, desc.Script.Path),
		Env: append(append([]string(nil), e.ExtraEnv...),
			buildEnv(desc, filepath.Join(e.OutRoot, name, "out"), active, target, providers)...),
	}
	log.Debug("running build script", "package", name, "path", inv.Path)
	result, err := e.Invoker.Invoke(ctx, inv)
	if err != nil {
		return nil, &FailedError{Package: name, Cause: err}
	}
	if result.ExitCode != 0 {
		return nil, &FailedError{Package: name, ExitCode: result.ExitCode, Stderr: result.Stderr}
	}

	directives, err := directive.ParseOutput(result.Stdout)
	if err != nil {
		return nil, &FailedError{Package: name, Cause: err}
	}
	cfg := directive.NewConfig()
	cfg.ApplyAll(directives)
	e.Cache.Store(name, desc.Dir, active, target, cfg)
	return cfg, nil
}

// providerNames returns the distinct providers of a package over edges
// passing the filter, in declaration order.
func providerNames(g *pkggraph.Graph, name string, filter pkggraph.EdgeFilter) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range g.Dependencies(name, filter) {
		if !seen[e.Provider] {
			seen[e.Provider] = true
			out = append(out, e.Provider)
		}
	}
	return out
}
