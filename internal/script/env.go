package script

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/vk/planforge/internal/descriptor"
	"github.com/vk/planforge/internal/directive"
	"github.com/vk/planforge/internal/platform"
)

// providerOutput is what one direct provider contributes to a consumer's
// script environment.
type providerOutput struct {
	name string
	cfg  *directive.Config
}

// buildEnv assembles the full script environment. Scripts do not inherit the
// engine's environment; everything they may depend on is spelled out:
//
//	CARGO_FEATURE_<FLAG>=1   one per active flag
//	TARGET_OS, TARGET_FAMILY, TARGET_ARCH
//	OUT_DIR, PKG_NAME, PKG_PATH
//	DEP_<PROVIDER>_SEARCH    provider's link search paths
//	DEP_<PROVIDER>_CFG       provider's cfg flags
func buildEnv(desc *descriptor.Descriptor, outDir string, active []string, target platform.Platform, providers []providerOutput) []string {
	env := []string{
		"TARGET_OS=" + target.OS,
		"TARGET_FAMILY=" + target.Family,
		"TARGET_ARCH=" + target.Arch,
		"OUT_DIR=" + outDir,
		"PKG_NAME=" + desc.Name,
		"PKG_PATH=" + desc.Path,
	}

	flags := append([]string(nil), active...)
	sort.Strings(flags)
	for _, f := range flags {
		env = append(env, "CARGO_FEATURE_"+envToken(f)+"=1")
	}

	for _, p := range providers {
		token := envToken(p.name)
		if len(p.cfg.LinkSearch) > 0 {
			env = append(env, fmt.Sprintf("DEP_%s_SEARCH=%s", token,
				strings.Join(p.cfg.LinkSearch, string(os.PathListSeparator))))
		}
		if len(p.cfg.CfgFlags) > 0 {
			rendered := make([]string, len(p.cfg.CfgFlags))
			for i, f := range p.cfg.CfgFlags {
				rendered[i] = f.String()
			}
			env = append(env, fmt.Sprintf("DEP_%s_CFG=%s", token, strings.Join(rendered, " ")))
		}
	}
	return env
}

// envToken uppercases a name and flattens anything outside [A-Z0-9] to an
// underscore, matching how feature flags and package names are conventionally
// spelled in environment keys.
func envToken(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
