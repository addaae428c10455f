// Package cli defines the planforge command tree. Commands share one App
// built from flags plus an optional planforge.toml; each subcommand renders a
// different view of the same resolution result.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vk/planforge/internal/app"
)

var (
	cfgFile   string
	buildFile string
	target    string
	logLevel  string
	logFormat string
	workers   int
	cacheSize int
)

var rootCmd = &cobra.Command{
	Use:   "planforge",
	Short: "Native package build planner",
	Long: `planforge resolves a workspace of package descriptors into a build:
a dependency-ordered package graph, unified feature flags, build script
directives, and a link plan with every FFI symbol bound to its provider.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", app.ConfigFileName, "path to the settings file")
	rootCmd.PersistentFlags().StringVarP(&buildFile, "build-file", "f", "", "path to the build target file")
	rootCmd.PersistentFlags().StringVarP(&target, "target", "t", "", "target to resolve (default: the only one)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "logging level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log output format: text or json")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "concurrent build script workers")
	rootCmd.PersistentFlags().IntVar(&cacheSize, "cache-size", 0, "script result cache entries (0 disables)")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(testPlanCmd)
}

// newApp merges the settings file with flag overrides and builds the App.
// Logs go to stderr so command output stays parseable.
func newApp() (*app.App, error) {
	cfg, err := app.LoadConfigFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfgFile, err)
	}
	if buildFile != "" {
		cfg.BuildFile = buildFile
	}
	if target != "" {
		cfg.Target = target
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if cacheSize > 0 {
		cfg.CacheSize = cacheSize
	}
	if cfg.BuildFile == "" {
		cfg.BuildFile = "build.hcl"
	}
	validated, err := app.NewConfig(cfg)
	if err != nil {
		return nil, err
	}
	return app.NewApp(os.Stderr, validated, nil)
}
