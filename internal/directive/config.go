package directive

import (
	"fmt"
	"sort"
)

// CfgFlag is one configuration flag for a compile unit. Value is empty for
// bare flags.
type CfgFlag struct {
	Key   string
	Value string
}

func (f CfgFlag) String() string {
	if f.Value == "" {
		return f.Key
	}
	return fmt.Sprintf("%s=%q", f.Key, f.Value)
}

// Config is the build configuration of a single compile unit. Directives of
// the same kind accumulate in emission order, except env entries and valued
// cfg flags, which are last-write-wins per key. A Config is owned by exactly
// one package and purpose; overlays are built with Clone, never by mutating
// a shared value.
type Config struct {
	// CfgFlags are the unit's active configuration flags.
	CfgFlags []CfgFlag
	// LinkLibs are library names required at link time, in order, duplicates
	// preserved.
	LinkLibs []string
	// LinkSearch are link search paths, in order.
	LinkSearch []string
	// Env are build-time constants.
	Env map[string]string
	// RerunPaths are filesystem rebuild triggers. Empty means the package
	// reruns on every change.
	RerunPaths []string
	// Passthrough are uninterpreted directive lines handed to the toolchain.
	Passthrough []string
}

// NewConfig returns an empty Config.
func NewConfig() *Config {
	return &Config{Env: make(map[string]string)}
}

// Apply reduces one directive onto the config.
func (c *Config) Apply(d Directive) {
	switch d.Kind {
	case KindRerunIfChanged:
		c.RerunPaths = append(c.RerunPaths, d.Value)
	case KindCfg:
		c.setCfg(d.Key, d.Value)
	case KindLinkLib:
		c.LinkLibs = append(c.LinkLibs, d.Value)
	case KindLinkSearch:
		c.LinkSearch = append(c.LinkSearch, d.Value)
	case KindEnv:
		c.Env[d.Key] = d.Value
	case KindPassthrough:
		c.Passthrough = append(c.Passthrough, d.Raw)
	}
}

// ApplyAll reduces directives in emission order.
func (c *Config) ApplyAll(ds []Directive) {
	for _, d := range ds {
		c.Apply(d)
	}
}

// SetCfg adds a bare configuration flag if not already present.
func (c *Config) SetCfg(key string) {
	c.setCfg(key, "")
}

func (c *Config) setCfg(key, value string) {
	for i, f := range c.CfgFlags {
		if f.Key != key {
			continue
		}
		if value != "" || f.Value != "" {
			// Valued flags are last-write-wins per key.
			c.CfgFlags[i].Value = value
			return
		}
		// Bare flag already set.
		return
	}
	c.CfgFlags = append(c.CfgFlags, CfgFlag{Key: key, Value: value})
}

// HasCfg reports whether the flag key is set, regardless of value.
func (c *Config) HasCfg(key string) bool {
	for _, f := range c.CfgFlags {
		if f.Key == key {
			return true
		}
	}
	return false
}

// RerunAlways reports whether the package must rerun its script on every
// change, the default when no rerun-if-changed directive was emitted.
func (c *Config) RerunAlways() bool {
	return len(c.RerunPaths) == 0
}

// EnvKeys returns the env constant keys, sorted, for deterministic rendering.
func (c *Config) EnvKeys() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy. Overlays (e.g. a test configuration
// layered over the normal one) start from a clone so the original is never
// mutated.
func (c *Config) Clone() *Config {
	out := &Config{
		CfgFlags:    append([]CfgFlag(nil), c.CfgFlags...),
		LinkLibs:    append([]string(nil), c.LinkLibs...),
		LinkSearch:  append([]string(nil), c.LinkSearch...),
		RerunPaths:  append([]string(nil), c.RerunPaths...),
		Passthrough: append([]string(nil), c.Passthrough...),
		Env:         make(map[string]string, len(c.Env)),
	}
	for k, v := range c.Env {
		out.Env[k] = v
	}
	return out
}
