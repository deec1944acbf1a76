// Package main provides the colvar command line driver.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "v0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:   "colvar",
	Short: "Collective-variable evaluation engine",
	Long: "colvar evaluates graphs of collective variables over molecular\n" +
		"configurations: vectorized CVs, sparse adjacency matrices and the\n" +
		"backward force pass, driven from a YAML description.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("colvar %s\n", version)
	},
}

func main() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
