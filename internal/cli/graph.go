package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vk/planforge/internal/pkggraph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the effective package graph in build order",
	RunE:  runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	res, err := a.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range res.Order {
		edges := res.Graph.Dependencies(name, pkggraph.ProductionEdges)
		if len(edges) == 0 {
			fmt.Fprintln(out, name)
			continue
		}
		providers := make([]string, len(edges))
		for i, e := range edges {
			providers[i] = e.Provider
			if e.Kind.String() != "normal" {
				providers[i] += " (" + e.Kind.String() + ")"
			}
		}
		fmt.Fprintf(out, "%s -> %s\n", name, strings.Join(providers, ", "))
	}
	return nil
}
