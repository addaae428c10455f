// Package platform models the build target platform and the cfg() predicate
// language used to gate dependencies, frameworks, and symbol visibility to
// matching platforms. Gating is applied once, when the resolvable subgraph is
// materialized for a target, never as scattered runtime conditionals.
package platform

import "runtime"

// Platform identifies a build target.
type Platform struct {
	// OS is the target operating system, e.g. "linux", "darwin", "windows".
	OS string
	// Family groups operating systems, e.g. "unix" or "windows".
	Family string
	// Arch is the CPU architecture, e.g. "amd64".
	Arch string
}

// Host returns the platform of the running process.
func Host() Platform {
	return Platform{
		OS:     runtime.GOOS,
		Family: familyOf(runtime.GOOS),
		Arch:   runtime.GOARCH,
	}
}

func familyOf(os string) string {
	if os == "windows" {
		return "windows"
	}
	return "unix"
}

// Normalize fills derivable fields left empty by configuration.
func (p Platform) Normalize() Platform {
	host := Host()
	if p.OS == "" {
		p.OS = host.OS
	}
	if p.Family == "" {
		p.Family = familyOf(p.OS)
	}
	if p.Arch == "" {
		p.Arch = host.Arch
	}
	return p
}

func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// lookup resolves a bare cfg identifier or key to its value on this
// platform. Bare identifiers like "unix" and "windows" match the family.
func (p Platform) lookup(ident string) (value string, ok bool) {
	switch ident {
	case "target_os":
		return p.OS, true
	case "target_family":
		return p.Family, true
	case "target_arch":
		return p.Arch, true
	case "unix", "windows":
		return ident, p.Family == ident
	}
	return "", false
}
