// Package main provides the entry point for the wasmprov CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/wasmprov/cmd/wasmprov/commands"
	"github.com/Sumatoshi-tech/wasmprov/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wasmprov",
		Short: "wasmprov - WebAssembly module provenance classifier",
		Long: `wasmprov reads the import and export tables of WebAssembly modules and
guesses which toolchain produced each one.

Commands:
  classify  Classify every module under a directory
  inspect   Show one module's symbols and the rule that matched
  rules     List the classification rules in priority order`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewClassifyCommand())
	rootCmd.AddCommand(commands.NewInspectCommand())
	rootCmd.AddCommand(commands.NewRulesCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "wasmprov %s\n", version.String())
		},
	}
}
