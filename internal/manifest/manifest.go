// Package manifest loads Package.toml descriptor documents into the
// in-memory model. The document is cargo-shaped: a [package] table,
// [dependencies]/[dev-dependencies]/[build-dependencies] sections whose
// values are either a bare version string or an inline table, a [features]
// map from flag name to its implication list, and [[exports]]/[[imports]]
// arrays for the FFI surface.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/module"

	"github.com/vk/planforge/internal/descriptor"
	"github.com/vk/planforge/internal/fsutil"
	"github.com/vk/planforge/internal/platform"
)

// FileName is the descriptor document each package directory carries.
const FileName = "Package.toml"

type file struct {
	Package struct {
		Name     string      `toml:"name"`
		Path     string      `toml:"path"`
		Artifact string      `toml:"artifact"`
		Script   *scriptDecl `toml:"script"`
	} `toml:"package"`
	Dependencies      map[string]toml.Primitive `toml:"dependencies"`
	DevDependencies   map[string]toml.Primitive `toml:"dev-dependencies"`
	BuildDependencies map[string]toml.Primitive `toml:"build-dependencies"`
	Features          map[string][]string       `toml:"features"`
	Exports           []exportDecl              `toml:"exports"`
	Imports           []importDecl              `toml:"imports"`
}

type scriptDecl struct {
	Path             string   `toml:"path"`
	RequiresFeatures []string `toml:"requires-features"`
}

type depDecl struct {
	Optional        bool     `toml:"optional"`
	DefaultFeatures *bool    `toml:"default-features"`
	Features        []string `toml:"features"`
	Cfg             string   `toml:"cfg"`
}

type exportDecl struct {
	Symbol     string `toml:"symbol"`
	Convention string `toml:"convention"`
	Mangled    bool   `toml:"mangled"`
}

type importDecl struct {
	Symbol     string `toml:"symbol"`
	Convention string `toml:"convention"`
	Lib        string `toml:"lib"`
	Framework  string `toml:"framework"`
	Cfg        string `toml:"cfg"`
}

// Load parses one descriptor document.
func Load(path string) (*descriptor.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	desc, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	desc.Dir = filepath.Dir(path)
	return desc, nil
}

// LoadDir loads the descriptor of the package rooted at dir.
func LoadDir(dir string) (*descriptor.Descriptor, error) {
	return Load(filepath.Join(dir, FileName))
}

// LoadTree walks root and loads every descriptor document found, in lexical
// directory order.
func LoadTree(root string) ([]*descriptor.Descriptor, error) {
	paths, err := fsutil.FindFilesByName(root, FileName)
	if err != nil {
		return nil, err
	}
	descs := make([]*descriptor.Descriptor, 0, len(paths))
	for _, path := range paths {
		desc, err := Load(path)
		if err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

func parse(data []byte) (*descriptor.Descriptor, error) {
	var f file
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, err
	}

	if f.Package.Name == "" {
		return nil, fmt.Errorf("package.name is required")
	}
	if f.Package.Path != "" {
		if err := module.CheckPath(f.Package.Path); err != nil {
			return nil, fmt.Errorf("package.path: %w", err)
		}
	}
	artifact, err := parseArtifact(f.Package.Artifact)
	if err != nil {
		return nil, err
	}

	desc := &descriptor.Descriptor{
		Name:     f.Package.Name,
		Path:     f.Package.Path,
		Artifact: artifact,
	}

	if f.Package.Script != nil {
		if f.Package.Script.Path == "" {
			return nil, fmt.Errorf("package.script.path is required")
		}
		desc.Script = &descriptor.BuildScript{
			Path:             f.Package.Script.Path,
			RequiresFeatures: f.Package.Script.RequiresFeatures,
		}
	}

	for _, section := range []struct {
		kind descriptor.DepKind
		deps map[string]toml.Primitive
	}{
		{descriptor.KindNormal, f.Dependencies},
		{descriptor.KindDev, f.DevDependencies},
		{descriptor.KindBuild, f.BuildDependencies},
	} {
		deps, err := parseDeps(md, section.kind, section.deps)
		if err != nil {
			return nil, err
		}
		desc.Dependencies = append(desc.Dependencies, deps...)
	}

	desc.Features, err = parseFeatures(f.Features)
	if err != nil {
		return nil, err
	}

	for _, e := range f.Exports {
		if e.Symbol == "" {
			return nil, fmt.Errorf("exports: symbol is required")
		}
		desc.Exports = append(desc.Exports, descriptor.Export{
			Symbol:     e.Symbol,
			Convention: e.Convention,
			Mangled:    e.Mangled,
		})
	}
	for _, i := range f.Imports {
		if i.Symbol == "" {
			return nil, fmt.Errorf("imports: symbol is required")
		}
		if i.Cfg != "" {
			if _, err := platform.ParsePredicate(i.Cfg); err != nil {
				return nil, fmt.Errorf("imports %q: %w", i.Symbol, err)
			}
		}
		desc.Imports = append(desc.Imports, descriptor.Import{
			Symbol:             i.Symbol,
			Convention:         i.Convention,
			Lib:                i.Lib,
			Framework:          i.Framework,
			FrameworkPredicate: i.Cfg,
		})
	}
	return desc, nil
}

// parseDeps decodes one dependency section. Map order is unspecified, so
// entries are sorted by provider name for determinism.
func parseDeps(md toml.MetaData, kind descriptor.DepKind, section map[string]toml.Primitive) ([]descriptor.Dependency, error) {
	names := make([]string, 0, len(section))
	for name := range section {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []descriptor.Dependency
	for _, name := range names {
		dep := descriptor.Dependency{Package: name, Kind: kind, DefaultFeatures: true}

		// A bare string is a version requirement with all defaults; anything
		// richer is an inline table.
		var version string
		if err := md.PrimitiveDecode(section[name], &version); err != nil {
			var decl depDecl
			if err := md.PrimitiveDecode(section[name], &decl); err != nil {
				return nil, fmt.Errorf("dependency %q: %w", name, err)
			}
			dep.Optional = decl.Optional
			dep.Features = decl.Features
			dep.Predicate = decl.Cfg
			if decl.DefaultFeatures != nil {
				dep.DefaultFeatures = *decl.DefaultFeatures
			}
			if decl.Cfg != "" {
				if _, err := platform.ParsePredicate(decl.Cfg); err != nil {
					return nil, fmt.Errorf("dependency %q: %w", name, err)
				}
			}
		}
		out = append(out, dep)
	}
	return out, nil
}

// parseFeatures translates the [features] table. The "default" entry is
// itself a flag, active whenever defaults are requested; its list members
// are ordinary implications, so they may name flags or "dep:" enablers.
func parseFeatures(section map[string][]string) ([]descriptor.Feature, error) {
	names := make([]string, 0, len(section))
	for name := range section {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []descriptor.Feature
	for _, name := range names {
		out = append(out, descriptor.Feature{
			Name:    name,
			Default: name == "default",
			Implies: section[name],
		})
	}
	return out, nil
}

func parseArtifact(s string) (descriptor.ArtifactKind, error) {
	switch s {
	case "", "library":
		return descriptor.ArtifactLibrary, nil
	case "dylib":
		return descriptor.ArtifactDylib, nil
	case "binary":
		return descriptor.ArtifactBinary, nil
	case "framework":
		return descriptor.ArtifactFramework, nil
	}
	return 0, fmt.Errorf("package.artifact: unknown kind %q", s)
}
