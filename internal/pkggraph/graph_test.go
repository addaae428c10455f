package pkggraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/planforge/internal/descriptor"
	"github.com/vk/planforge/internal/platform"
)

func mustAdd(t *testing.T, g *Graph, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, g.AddPackage(&descriptor.Descriptor{Name: name, Path: "example.com/" + name}))
	}
}

func edge(consumer, provider string, kind descriptor.DepKind) Edge {
	return Edge{Consumer: consumer, Provider: provider, Kind: kind, Predicate: platform.Always}
}

func TestAddPackage(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", "b")

	err := g.AddPackage(&descriptor.Descriptor{Name: "a"})
	var dup *DuplicatePackageError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Name)
}

func TestAddEdge(t *testing.T) {
	t.Run("unknown endpoints", func(t *testing.T) {
		g := New()
		mustAdd(t, g, "a")

		var unknown *UnknownPackageError
		err := g.AddEdge(edge("a", "missing", descriptor.KindNormal))
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "missing", unknown.Name)

		err = g.AddEdge(edge("missing", "a", descriptor.KindNormal))
		require.ErrorAs(t, err, &unknown)
	})

	t.Run("cycle among normal edges rejected", func(t *testing.T) {
		g := New()
		mustAdd(t, g, "a", "b", "c")
		require.NoError(t, g.AddEdge(edge("a", "b", descriptor.KindNormal)))
		require.NoError(t, g.AddEdge(edge("b", "c", descriptor.KindBuild)))

		var cyc *CycleError
		err := g.AddEdge(edge("c", "a", descriptor.KindNormal))
		require.ErrorAs(t, err, &cyc)
		assert.Contains(t, cyc.Members, "a")

		// Self edge is the smallest cycle.
		err = g.AddEdge(edge("a", "a", descriptor.KindNormal))
		require.ErrorAs(t, err, &cyc)
	})

	t.Run("dev edges exempt from cycle check", func(t *testing.T) {
		g := New()
		mustAdd(t, g, "a", "b")
		require.NoError(t, g.AddEdge(edge("a", "b", descriptor.KindNormal)))
		// b dev-depends on a: common for test helpers, legal.
		require.NoError(t, g.AddEdge(edge("b", "a", descriptor.KindDev)))
	})
}

func TestTopologicalOrder(t *testing.T) {
	t.Run("providers precede consumers", func(t *testing.T) {
		g := New()
		mustAdd(t, g, "app", "mid", "leaf")
		require.NoError(t, g.AddEdge(edge("app", "mid", descriptor.KindNormal)))
		require.NoError(t, g.AddEdge(edge("mid", "leaf", descriptor.KindNormal)))
		require.NoError(t, g.AddEdge(edge("app", "leaf", descriptor.KindNormal)))

		order, err := g.TopologicalOrder(ProductionEdges)
		require.NoError(t, err)
		assert.Equal(t, []string{"leaf", "mid", "app"}, order)
	})

	t.Run("ties broken by declaration order", func(t *testing.T) {
		g := New()
		mustAdd(t, g, "z", "y", "x")
		order, err := g.TopologicalOrder(ProductionEdges)
		require.NoError(t, err)
		assert.Equal(t, []string{"z", "y", "x"}, order)
	})

	t.Run("dev cycle surfaces only under test filter", func(t *testing.T) {
		g := New()
		mustAdd(t, g, "a", "b")
		require.NoError(t, g.AddEdge(edge("a", "b", descriptor.KindNormal)))
		require.NoError(t, g.AddEdge(edge("b", "a", descriptor.KindDev)))

		_, err := g.TopologicalOrder(ProductionEdges)
		require.NoError(t, err)

		var cyc *CycleError
		_, err = g.TopologicalOrder(TestEdges("b"))
		require.ErrorAs(t, err, &cyc)
	})

	t.Run("dev edges of other packages excluded from test filter", func(t *testing.T) {
		g := New()
		mustAdd(t, g, "a", "b", "helper")
		require.NoError(t, g.AddEdge(edge("a", "b", descriptor.KindNormal)))
		require.NoError(t, g.AddEdge(edge("b", "helper", descriptor.KindDev)))

		// Testing "a": b's dev edge must not participate.
		order, err := g.TopologicalOrder(TestEdges("a"))
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "helper"}, order)

		deps := g.Dependencies("b", TestEdges("a"))
		assert.Empty(t, deps)
	})
}

func TestMaterialize(t *testing.T) {
	target := platform.Platform{OS: "windows", Family: "windows", Arch: "amd64"}
	unixOnly := platform.MustParsePredicate("cfg(unix)")

	g := New()
	mustAdd(t, g, "app", "portable", "unixlib")
	require.NoError(t, g.AddEdge(edge("app", "portable", descriptor.KindNormal)))
	require.NoError(t, g.AddEdge(Edge{
		Consumer: "app", Provider: "unixlib",
		Kind: descriptor.KindNormal, Predicate: unixOnly,
	}))

	t.Run("gated provider excluded on non-matching platform", func(t *testing.T) {
		sub, err := g.Materialize("app", target, ProductionEdges)
		require.NoError(t, err)
		assert.Equal(t, []string{"app", "portable"}, sub.Packages())
		_, ok := sub.Package("unixlib")
		assert.False(t, ok)
	})

	t.Run("gated provider included on matching platform", func(t *testing.T) {
		sub, err := g.Materialize("app", platform.Platform{OS: "linux", Family: "unix"}, ProductionEdges)
		require.NoError(t, err)
		assert.Equal(t, []string{"app", "portable", "unixlib"}, sub.Packages())
	})

	t.Run("unknown root", func(t *testing.T) {
		var unknown *UnknownPackageError
		_, err := g.Materialize("missing", target, ProductionEdges)
		require.ErrorAs(t, err, &unknown)
	})
}
