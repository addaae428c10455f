package linkplan

import (
	"fmt"
	"strings"
)

// AmbiguousSymbolError reports an imported symbol matching more than one
// sibling package export. The planner never guesses.
type AmbiguousSymbolError struct {
	Symbol    string
	Importer  string
	Exporters []string
}

func (e *AmbiguousSymbolError) Error() string {
	return fmt.Sprintf("symbol %q imported by %q is exported by multiple packages: %s",
		e.Symbol, e.Importer, strings.Join(e.Exporters, ", "))
}

// UnresolvedSymbolError reports an imported symbol with no reachable
// exporter, library, or framework.
type UnresolvedSymbolError struct {
	Symbol   string
	Importer string
}

func (e *UnresolvedSymbolError) Error() string {
	return fmt.Sprintf("symbol %q imported by %q does not resolve to any reachable unit", e.Symbol, e.Importer)
}
