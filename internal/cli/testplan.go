package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var testPlanCmd = &cobra.Command{
	Use:   "test-plan",
	Short: "Print the composed test units of the target",
	Long: `Test-plan resolves the build and prints each test unit the target
requests: the package's test-scoped flags, its dev-dependency scope, and the
configuration overlay layered on top of the normal build.`,
	RunE: runTestPlan,
}

func runTestPlan(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	res, err := a.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(res.TestUnits) == 0 {
		fmt.Fprintln(out, "target requests no test units")
		return nil
	}

	names := make([]string, 0, len(res.TestUnits))
	for name := range res.TestUnits {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		unit := res.TestUnits[name]
		fmt.Fprintf(out, "%s (purpose=%s)\n", unit.Package, unit.Purpose)
		if len(unit.ActiveFlags) > 0 {
			fmt.Fprintf(out, "  features %s\n", strings.Join(unit.ActiveFlags, ", "))
		}
		fmt.Fprintf(out, "  scope %s\n", strings.Join(unit.Graph.Packages(), ", "))
		for _, flag := range unit.Config.CfgFlags {
			fmt.Fprintf(out, "  cfg %s\n", flag)
		}
	}
	return nil
}
