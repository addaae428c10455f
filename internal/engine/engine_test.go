package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/planforge/internal/features"
	"github.com/vk/planforge/internal/linkplan"
	"github.com/vk/planforge/internal/script"
	"github.com/vk/planforge/internal/testunit"
	"github.com/vk/planforge/internal/testutil"
)

// workspace returns a complete multi-package workspace: an app binary over a
// core library, an optional compression binding enabled by a feature, a
// windows-only dependency that must vanish on linux, and a dev-only mock.
func workspace(target string) map[string]string {
	return map[string]string{
		"build.hcl": target,
		"packages/app/Package.toml": `
[package]
name = "app"
artifact = "binary"

[dependencies]
corelib = {}
zbind = { optional = true }
winhelper = { cfg = 'target_os = "windows"' }

[features]
compress = ["dep:zbind"]

[[imports]]
symbol = "core_init"
convention = "C"
`,
		"packages/corelib/Package.toml": `
[package]
name = "corelib"

[package.script]
path = "probe.sh"

[dev-dependencies]
mock = {}

[[exports]]
symbol = "core_init"
convention = "C"
`,
		"packages/zbind/Package.toml": `
[package]
name = "zbind"

[package.script]
path = "build.sh"

[[imports]]
symbol = "deflate"
lib = "z"
`,
		"packages/winhelper/Package.toml": `
[package]
name = "winhelper"
`,
		"packages/mock/Package.toml": `
[package]
name = "mock"
`,
	}
}

const releaseTarget = `
workspace {
  packages = "packages"
}

target "release" {
  root     = "app"
  features = ["app/compress"]
  test     = ["corelib"]

  env = {
    PKG_CONFIG_PATH = "/opt/pc"
  }

  platform {
    os   = "linux"
    arch = "x86_64"
  }
}
`

func TestResolveWorkspace(t *testing.T) {
	invoker := &testutil.ScriptInvoker{Results: map[string]script.Result{
		"corelib": {Stdout: "cargo:rustc-cfg=has_atomics\n"},
		"zbind":   {Stdout: "cargo:rustc-link-lib=z\ncargo:rustc-link-search=/opt/zlib/lib\n"},
	}}
	h := testutil.RunResolveTest(t, workspace(releaseTarget), invoker)
	require.NoError(t, h.Err)
	res := h.Result

	// Providers come first, the gated dependency is gone entirely.
	assert.Equal(t, "app", res.Order[len(res.Order)-1])
	assert.Contains(t, res.Order, "zbind", "feature enabled the optional dependency")
	assert.NotContains(t, res.Order, "winhelper")
	assert.NotContains(t, res.Order, "mock", "dev deps are invisible to the production build")

	// The target's extra env reached the scripts.
	require.NotEmpty(t, invoker.Calls)
	assert.Contains(t, invoker.Calls[0].Env, "PKG_CONFIG_PATH=/opt/pc")

	// Script directives landed on the emitting packages only.
	assert.True(t, res.Configs["corelib"].HasCfg("has_atomics"))
	assert.False(t, res.Configs["app"].HasCfg("has_atomics"), "cfg flags do not leak to dependents")

	// Symbols: app's import binds to the sibling, zbind's to the external lib.
	appUnit := res.Plan.Unit("app")
	require.NotNil(t, appUnit)
	require.Len(t, appUnit.Bindings, 1)
	assert.Equal(t, linkplan.Binding{
		Symbol: "core_init", Source: linkplan.SourceSibling, Provider: "corelib", Convention: "C",
	}, appUnit.Bindings[0])

	zbindUnit := res.Plan.Unit("zbind")
	require.NotNil(t, zbindUnit)
	assert.Equal(t, linkplan.SourceLibrary, zbindUnit.Bindings[0].Source)
	assert.Equal(t, []string{"/opt/zlib/lib"}, res.Plan.SearchPaths)

	// The requested test unit overlays without touching the normal config.
	unit, ok := res.TestUnits["corelib"]
	require.True(t, ok)
	assert.Equal(t, testunit.PurposeTest, unit.Purpose)
	assert.True(t, unit.Config.HasCfg("test"))
	assert.True(t, unit.Config.HasCfg("has_atomics"))
	assert.Contains(t, unit.Graph.Packages(), "mock")
	assert.False(t, res.Configs["corelib"].HasCfg("test"))
}

func TestOptionalDependencyStaysInert(t *testing.T) {
	noFeatures := `
workspace {
  packages = "packages"
}

target "minimal" {
  root = "app"

  platform {
    os   = "linux"
    arch = "x86_64"
  }
}
`
	invoker := &testutil.ScriptInvoker{Results: map[string]script.Result{}}
	h := testutil.RunResolveTest(t, workspace(noFeatures), invoker)
	require.NoError(t, h.Err)

	assert.NotContains(t, h.Result.Order, "zbind")
	assert.Zero(t, invoker.CallCount("zbind"), "inert optional dependency never runs its script")
}

func TestBuildScriptFailureAbortsSubtree(t *testing.T) {
	invoker := &testutil.ScriptInvoker{Results: map[string]script.Result{
		"corelib": {ExitCode: 2, Stderr: "missing header"},
	}}
	h := testutil.RunResolveTest(t, workspace(releaseTarget), invoker)

	var failed *script.FailedError
	require.ErrorAs(t, h.Err, &failed)
	assert.Equal(t, "corelib", failed.Package)
	assert.Nil(t, h.Result)
}

func TestUnknownFlagRequest(t *testing.T) {
	badTarget := `
workspace {
  packages = "packages"
}

target "bad" {
  root     = "app"
  features = ["app/nonexistent"]
}
`
	h := testutil.RunResolveTest(t, workspace(badTarget), nil)
	var unknown *features.UnknownFlagError
	require.ErrorAs(t, h.Err, &unknown)
	assert.Equal(t, "nonexistent", unknown.Flag)
}

func TestGatedProviderMakesSymbolUnresolvable(t *testing.T) {
	files := map[string]string{
		"build.hcl": `
workspace {
  packages = "packages"
}

target "linux" {
  root = "app"

  platform {
    os   = "linux"
    arch = "x86_64"
  }
}
`,
		"packages/app/Package.toml": `
[package]
name = "app"
artifact = "binary"

[dependencies]
winlib = { cfg = 'target_os = "windows"' }

[[imports]]
symbol = "win_only"
`,
		"packages/winlib/Package.toml": `
[package]
name = "winlib"

[[exports]]
symbol = "win_only"
`,
	}
	h := testutil.RunResolveTest(t, files, nil)
	var unresolved *linkplan.UnresolvedSymbolError
	require.ErrorAs(t, h.Err, &unresolved)
	assert.Equal(t, "win_only", unresolved.Symbol)
	assert.Equal(t, "app", unresolved.Importer)
}
