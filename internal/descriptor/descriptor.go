// Package descriptor defines the in-memory model of a package descriptor:
// identity, declared dependencies, feature flags, exported and imported FFI
// symbols, artifact kind, and an optional build script reference. Descriptors
// are produced by a loader (see internal/manifest) and consumed by the core
// engine; the engine never parses descriptor documents itself.
package descriptor

// DepKind classifies a dependency edge.
type DepKind int

const (
	// KindNormal dependencies are part of the production build.
	KindNormal DepKind = iota
	// KindDev dependencies are visible only to the declaring package's own
	// test configuration.
	KindDev
	// KindBuild dependencies must be resolved and executed before the
	// consumer's own build script runs.
	KindBuild
)

func (k DepKind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindDev:
		return "dev"
	case KindBuild:
		return "build"
	}
	return "unknown"
}

// ArtifactKind describes what a package produces, which decides how
// downstream linking treats it.
type ArtifactKind int

const (
	// ArtifactLibrary is a statically linked sibling compilation unit.
	ArtifactLibrary ArtifactKind = iota
	// ArtifactDylib is a dynamic library.
	ArtifactDylib
	// ArtifactBinary is an executable; it exports nothing.
	ArtifactBinary
	// ArtifactFramework is a unit linked as a platform framework.
	ArtifactFramework
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactLibrary:
		return "library"
	case ArtifactDylib:
		return "dylib"
	case ArtifactBinary:
		return "binary"
	case ArtifactFramework:
		return "framework"
	}
	return "unknown"
}

// Dependency is a declared dependency of a package.
type Dependency struct {
	// Package is the provider's name.
	Package string
	// Kind selects the build in which this edge participates.
	Kind DepKind
	// Predicate is an optional cfg() expression gating the edge to matching
	// target platforms. Empty means always.
	Predicate string
	// Features are the provider's flags this consumer requests.
	Features []string
	// DefaultFeatures requests the provider's "default" feature set. On by
	// default, mirroring how manifests are written.
	DefaultFeatures bool
	// Optional dependencies are inert until some feature enables them with a
	// "dep:name" implication.
	Optional bool
}

// Feature is a declared feature flag and its implications.
type Feature struct {
	Name string
	// Default marks the flag active whenever the package's defaults are
	// requested (always for the root package, and per consuming edge
	// otherwise).
	Default bool
	// Implies lists what activating this flag pulls in: another flag of the
	// same package ("flag"), a dependency's flag ("dep/flag"), a deferred
	// dependency flag ("dep?/flag"), or an optional dependency ("dep:name").
	Implies []string
}

// Export is a symbol this package makes available across the FFI boundary.
type Export struct {
	Symbol string
	// Convention is the calling convention tag, e.g. "C".
	Convention string
	// Mangled reports whether the symbol keeps its language-level mangling;
	// false means it is exported with unmangled "C" linkage.
	Mangled bool
}

// Import is a symbol this package needs some other unit to provide.
type Import struct {
	Symbol string
	// Convention is the expected calling convention tag.
	Convention string
	// Lib optionally names an external library expected to provide the
	// symbol. External libraries are opaque: the planner trusts the name and
	// does not check symbols against them.
	Lib string
	// Framework optionally names a platform framework expected to provide
	// the symbol, gated by FrameworkPredicate.
	Framework string
	// FrameworkPredicate is a cfg() expression; on non-matching platforms
	// the framework is invisible to resolution.
	FrameworkPredicate string
}

// BuildScript references a package's build-time program.
type BuildScript struct {
	// Path to the program, relative to the package directory.
	Path string
	// RequiresFeatures are flags of the owning package the script assumes
	// active. The executor verifies each is declared and resolved active
	// before invoking; a flag that is not even declared is a structural
	// impossibility and fails fast.
	RequiresFeatures []string
}

// Descriptor is the already-parsed declaration of one package.
type Descriptor struct {
	// Name is the unique package identity within a build.
	Name string
	// Path is the package's path (validated module-path syntax).
	Path string
	// Dir is the package's directory on disk, used to resolve the build
	// script and rerun triggers. May be empty for synthetic packages.
	Dir string

	Dependencies []Dependency
	Features     []Feature
	Artifact     ArtifactKind
	Exports      []Export
	Imports      []Import
	Script       *BuildScript
}

// FeatureNames returns the declared flag names in declaration order.
func (d *Descriptor) FeatureNames() []string {
	names := make([]string, len(d.Features))
	for i, f := range d.Features {
		names[i] = f.Name
	}
	return names
}

// HasFeature reports whether the package declares the named flag.
func (d *Descriptor) HasFeature(name string) bool {
	for _, f := range d.Features {
		if f.Name == name {
			return true
		}
	}
	return false
}

// FindDependency returns the declared dependency on the named provider, or
// nil if there is none.
func (d *Descriptor) FindDependency(provider string) *Dependency {
	for i := range d.Dependencies {
		if d.Dependencies[i].Package == provider {
			return &d.Dependencies[i]
		}
	}
	return nil
}
