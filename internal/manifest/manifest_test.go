package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/planforge/internal/descriptor"
	"github.com/vk/planforge/internal/pkggraph"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const zbindManifest = `
[package]
name = "zbind"
path = "example.com/zbind"
artifact = "library"

[package.script]
path = "build.sh"
requires-features = ["bindgen"]

[dependencies]
corelib = "1.2"
zlib = { optional = true, default-features = false, features = ["small"] }
epoll-shim = { cfg = 'target_family = "unix"' }

[dev-dependencies]
mock = { features = ["strict"] }

[build-dependencies]
codegen = {}

[features]
default = ["std"]
std = []
bindgen = []
compress = ["dep:zlib", "std"]

[[exports]]
symbol = "deflate_wrap"
convention = "C"

[[imports]]
symbol = "deflate"
lib = "z"

[[imports]]
symbol = "AudioUnitRender"
framework = "AudioToolbox"
cfg = 'target_os = "darwin"'
`

func TestLoad(t *testing.T) {
	t.Run("full document", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "zbind")
		desc, err := Load(writeManifest(t, dir, zbindManifest))
		require.NoError(t, err)

		assert.Equal(t, "zbind", desc.Name)
		assert.Equal(t, "example.com/zbind", desc.Path)
		assert.Equal(t, dir, desc.Dir)
		assert.Equal(t, descriptor.ArtifactLibrary, desc.Artifact)

		require.NotNil(t, desc.Script)
		assert.Equal(t, "build.sh", desc.Script.Path)
		assert.Equal(t, []string{"bindgen"}, desc.Script.RequiresFeatures)

		wantDeps := []descriptor.Dependency{
			{Package: "corelib", Kind: descriptor.KindNormal, DefaultFeatures: true},
			{Package: "epoll-shim", Kind: descriptor.KindNormal, DefaultFeatures: true, Predicate: `target_family = "unix"`},
			{Package: "zlib", Kind: descriptor.KindNormal, Optional: true, Features: []string{"small"}},
			{Package: "mock", Kind: descriptor.KindDev, DefaultFeatures: true, Features: []string{"strict"}},
			{Package: "codegen", Kind: descriptor.KindBuild, DefaultFeatures: true},
		}
		assert.Empty(t, cmp.Diff(wantDeps, desc.Dependencies))

		require.Len(t, desc.Features, 4)
		assert.True(t, desc.HasFeature("default"))
		var def descriptor.Feature
		for _, f := range desc.Features {
			if f.Name == "default" {
				def = f
			}
			assert.Equal(t, f.Name == "default", f.Default)
		}
		assert.Equal(t, []string{"std"}, def.Implies)

		require.Len(t, desc.Exports, 1)
		assert.Equal(t, descriptor.Export{Symbol: "deflate_wrap", Convention: "C"}, desc.Exports[0])
		require.Len(t, desc.Imports, 2)
		assert.Equal(t, "z", desc.Imports[0].Lib)
		assert.Equal(t, "AudioToolbox", desc.Imports[1].Framework)
		assert.Equal(t, `target_os = "darwin"`, desc.Imports[1].FrameworkPredicate)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := Load(writeManifest(t, t.TempDir(), "[package]\nartifact = \"binary\"\n"))
		require.ErrorContains(t, err, "package.name")
	})

	t.Run("invalid module path", func(t *testing.T) {
		_, err := Load(writeManifest(t, t.TempDir(), "[package]\nname = \"x\"\npath = \"Not A Path\"\n"))
		require.ErrorContains(t, err, "package.path")
	})

	t.Run("unknown artifact kind", func(t *testing.T) {
		_, err := Load(writeManifest(t, t.TempDir(), "[package]\nname = \"x\"\nartifact = \"plugin\"\n"))
		require.ErrorContains(t, err, "unknown kind")
	})

	t.Run("malformed dependency predicate", func(t *testing.T) {
		_, err := Load(writeManifest(t, t.TempDir(),
			"[package]\nname = \"x\"\n[dependencies]\ny = { cfg = 'any(' }\n"))
		require.Error(t, err)
	})
}

func TestLoadTree(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "app"), "[package]\nname = \"app\"\nartifact = \"binary\"\n[dependencies]\nlib = {}\n")
	writeManifest(t, filepath.Join(root, "lib"), "[package]\nname = \"lib\"\n")

	descs, err := LoadTree(root)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, "app", descs[0].Name, "lexical walk order")
	assert.Equal(t, "lib", descs[1].Name)
}

func TestBuildGraph(t *testing.T) {
	t.Run("edges carry declaration details", func(t *testing.T) {
		descs := []*descriptor.Descriptor{
			{Name: "app", Dependencies: []descriptor.Dependency{
				{Package: "lib", Kind: descriptor.KindNormal, DefaultFeatures: true},
				{Package: "posix", Kind: descriptor.KindNormal, Predicate: `target_family = "unix"`},
			}},
			{Name: "lib"},
			{Name: "posix"},
		}
		g, err := BuildGraph(descs)
		require.NoError(t, err)
		edges := g.Dependencies("app", pkggraph.AllEdges)
		require.Len(t, edges, 2)
		assert.True(t, edges[0].DefaultFeatures)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := BuildGraph([]*descriptor.Descriptor{
			{Name: "app", Dependencies: []descriptor.Dependency{{Package: "ghost"}}},
		})
		var unknown *pkggraph.UnknownPackageError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "ghost", unknown.Name)
	})

	t.Run("cycle rejected", func(t *testing.T) {
		_, err := BuildGraph([]*descriptor.Descriptor{
			{Name: "a", Dependencies: []descriptor.Dependency{{Package: "b"}}},
			{Name: "b", Dependencies: []descriptor.Dependency{{Package: "a"}}},
		})
		var cyc *pkggraph.CycleError
		require.ErrorAs(t, err, &cyc)
	})
}
