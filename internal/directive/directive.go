// Package directive defines the line-oriented protocol a build script speaks
// on its standard output, and the per-package build configuration the parsed
// directives are reduced onto. Parsing never mutates build state directly:
// lines become tagged variants first, then an explicit reducer applies them
// to a Config value.
package directive

import (
	"fmt"
	"strings"
)

// Kind tags a parsed directive.
type Kind int

const (
	// KindRerunIfChanged registers a filesystem rebuild trigger.
	KindRerunIfChanged Kind = iota
	// KindCfg adds a configuration flag, optionally with a value, visible
	// only to the emitting package's own compile unit.
	KindCfg
	// KindLinkLib appends a library name to the package's link requirements.
	KindLinkLib
	// KindLinkSearch appends a path to the package's link search paths.
	KindLinkSearch
	// KindEnv sets a build-time constant, last-write-wins per key.
	KindEnv
	// KindPassthrough carries an unrecognized namespace verbatim to the
	// underlying toolchain invocation.
	KindPassthrough
)

func (k Kind) String() string {
	switch k {
	case KindRerunIfChanged:
		return "rerun-if-changed"
	case KindCfg:
		return "cfg"
	case KindLinkLib:
		return "link-lib"
	case KindLinkSearch:
		return "link-search"
	case KindEnv:
		return "env"
	case KindPassthrough:
		return "passthrough"
	}
	return "unknown"
}

// Directive is one parsed instruction. Key/Value are populated per kind:
// cfg uses both (Value may be empty), env uses both, the rest use Value.
type Directive struct {
	Kind  Kind
	Key   string
	Value string
	// Raw preserves the original line for passthrough directives.
	Raw string
}

// namespace is the instruction prefix the executor interprets. Anything else
// with valid shape is passed through.
const namespace = "cargo"

// MalformedError reports a recognized directive whose payload is unusable,
// e.g. a cfg flag with an empty key. Fatal for the emitting package.
type MalformedError struct {
	Line   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed directive %q: %s", e.Line, e.Reason)
}

// Parse inspects one stdout line. Lines that do not match the
// <namespace>:<key>[=<value>] grammar are ordinary diagnostics: ok is false
// and no error is returned. Recognized directives with broken payloads
// return a MalformedError.
func Parse(line string) (d Directive, ok bool, err error) {
	ns, rest, found := strings.Cut(line, ":")
	if !found || !isIdent(ns) {
		return Directive{}, false, nil
	}
	key, value, hasValue := strings.Cut(rest, "=")
	if !isIdent(key) {
		return Directive{}, false, nil
	}
	if ns != namespace {
		return Directive{Kind: KindPassthrough, Raw: line}, true, nil
	}

	switch key {
	case "rerun-if-changed":
		if !hasValue || value == "" {
			return Directive{}, false, &MalformedError{Line: line, Reason: "missing path"}
		}
		return Directive{Kind: KindRerunIfChanged, Value: value}, true, nil
	case "rustc-cfg":
		flag, flagValue, _ := strings.Cut(value, "=")
		flagValue = strings.Trim(flagValue, `"`)
		if !hasValue || flag == "" {
			return Directive{}, false, &MalformedError{Line: line, Reason: "empty cfg key"}
		}
		return Directive{Kind: KindCfg, Key: flag, Value: flagValue}, true, nil
	case "rustc-link-lib":
		if !hasValue || value == "" {
			return Directive{}, false, &MalformedError{Line: line, Reason: "missing library name"}
		}
		return Directive{Kind: KindLinkLib, Value: value}, true, nil
	case "rustc-link-search":
		if !hasValue || value == "" {
			return Directive{}, false, &MalformedError{Line: line, Reason: "missing search path"}
		}
		return Directive{Kind: KindLinkSearch, Value: value}, true, nil
	case "rustc-env":
		envKey, envValue, split := strings.Cut(value, "=")
		if !hasValue || !split || envKey == "" {
			return Directive{}, false, &MalformedError{Line: line, Reason: "expected KEY=VALUE"}
		}
		return Directive{Kind: KindEnv, Key: envKey, Value: envValue}, true, nil
	default:
		// Recognized namespace, unrecognized key: not interpreted, handed to
		// the toolchain verbatim.
		return Directive{Kind: KindPassthrough, Raw: line}, true, nil
	}
}

// ParseOutput parses a whole stdout capture, returning the directives in
// emission order. The first malformed directive aborts.
func ParseOutput(output string) ([]Directive, error) {
	var out []Directive
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		d, ok, err := Parse(line)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// isIdent reports whether s is a plausible namespace or key token. Directive
// prefixes never contain spaces; anything else is diagnostic output.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
