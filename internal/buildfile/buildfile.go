// Package buildfile loads the HCL build target file: which package is the
// root of a build, which feature flags the invoker requests, which platform
// to materialize for, and which packages get test units composed. The file
// selects and parameterizes a build; package declarations themselves live in
// each package's own descriptor document.
package buildfile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/planforge/internal/ctxlog"
	"github.com/vk/planforge/internal/features"
	"github.com/vk/planforge/internal/platform"
)

// File is the decoded top-level structure of a build file.
type File struct {
	Workspace *Workspace `hcl:"workspace,block"`
	Targets   []*Target  `hcl:"target,block"`
}

// Workspace locates the package tree and the build output root.
type Workspace struct {
	// Packages is the directory walked for descriptor documents.
	Packages string `hcl:"packages"`
	// OutDir is the base for per-package OUT_DIR directories.
	OutDir string `hcl:"out_dir,optional"`
}

// Target is one named build configuration.
type Target struct {
	Name string `hcl:"name,label"`
	// Root is the package the build starts from.
	Root string `hcl:"root"`
	// Features are "package/flag" activation requests.
	Features []string `hcl:"features,optional"`
	// Test lists packages whose test units the build composes.
	Test []string `hcl:"test,optional"`
	// Env holds extra environment entries handed to every build script.
	// Values are converted to strings, so numbers and bools are fine.
	Env map[string]cty.Value `hcl:"env,optional"`

	Platform *PlatformBlock `hcl:"platform,block"`
}

// PlatformBlock overrides the host platform per field.
type PlatformBlock struct {
	OS     string `hcl:"os,optional"`
	Family string `hcl:"family,optional"`
	Arch   string `hcl:"arch,optional"`
}

// Load parses and decodes one build file.
func Load(ctx context.Context, path string) (*File, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse build file %s: %w", path, diags)
	}

	var f File
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode build file %s: %w", path, diags)
	}

	seen := make(map[string]bool)
	for _, t := range f.Targets {
		if t.Root == "" {
			return nil, fmt.Errorf("%s: target %q has no root package", path, t.Name)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("%s: duplicate target %q", path, t.Name)
		}
		seen[t.Name] = true
	}

	logger.Debug("build file loaded", "path", path, "targets", len(f.Targets))
	return &f, nil
}

// Target returns the named target, or the only target when name is empty.
func (f *File) Target(name string) (*Target, error) {
	if name == "" {
		if len(f.Targets) == 1 {
			return f.Targets[0], nil
		}
		return nil, fmt.Errorf("build file defines %d targets, name one", len(f.Targets))
	}
	for _, t := range f.Targets {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no target named %q", name)
}

// Requests translates the target's "package/flag" entries.
func (t *Target) Requests() ([]features.Request, error) {
	var out []features.Request
	for _, raw := range t.Features {
		pkg, flag, ok := strings.Cut(raw, "/")
		if !ok || pkg == "" || flag == "" {
			return nil, fmt.Errorf("target %q: feature request %q is not package/flag", t.Name, raw)
		}
		out = append(out, features.Request{Package: pkg, Flag: flag})
	}
	return out, nil
}

// ExtraEnv renders the target's env entries as KEY=VALUE strings, sorted by
// key.
func (t *Target) ExtraEnv() ([]string, error) {
	keys := make([]string, 0, len(t.Env))
	for k := range t.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := convert.Convert(t.Env[k], cty.String)
		if err != nil {
			return nil, fmt.Errorf("target %q: env %q: %w", t.Name, k, err)
		}
		out = append(out, k+"="+v.AsString())
	}
	return out, nil
}

// ResolvePlatform applies the platform block over the host platform.
func (t *Target) ResolvePlatform() platform.Platform {
	p := platform.Platform{}
	if t.Platform != nil {
		p = platform.Platform{OS: t.Platform.OS, Family: t.Platform.Family, Arch: t.Platform.Arch}
	}
	return p.Normalize()
}
