package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vk/planforge/internal/engine"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Resolve the build and print the link plan",
	Long: `Plan runs the full resolution pipeline: feature unification, build
scripts in dependency order, and symbol resolution. It prints the resulting
link plan, providers before consumers.`,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	res, err := a.Run(cmd.Context())
	if err != nil {
		return err
	}
	renderPlan(cmd, res)
	return nil
}

func renderPlan(cmd *cobra.Command, res *engine.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "target %s (%s)\n", res.Target, res.Platform)
	for _, unit := range res.Plan.Units {
		fmt.Fprintf(out, "%s [%s]\n", unit.Package, unit.Artifact)
		for _, flag := range res.Resolution.ActiveFlags(unit.Package) {
			fmt.Fprintf(out, "  feature %s\n", flag)
		}
		for _, b := range unit.Bindings {
			note := ""
			if b.ConventionMismatch {
				note = " (convention mismatch)"
			}
			fmt.Fprintf(out, "  symbol %s <- %s %s%s\n", b.Symbol, b.Source, b.Provider, note)
		}
		for _, lib := range unit.LinkLibs {
			fmt.Fprintf(out, "  lib %s\n", lib)
		}
		for _, fw := range unit.Frameworks {
			fmt.Fprintf(out, "  framework %s\n", fw)
		}
		if cfg := res.Configs[unit.Package]; cfg != nil {
			for _, raw := range cfg.Passthrough {
				fmt.Fprintf(out, "  passthrough %s\n", raw)
			}
		}
	}
	if len(res.Plan.SearchPaths) > 0 {
		fmt.Fprintf(out, "search paths: %s\n", strings.Join(res.Plan.SearchPaths, " "))
	}
}
