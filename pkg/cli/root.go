// Package cli implements the icuts command-line interface: offline catalog
// inspection and direct measurement loading against local databases.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		catalogPath string
		output      string
	)

	rootCmd := &cobra.Command{
		Use:           "icuts",
		Short:         "ICU time-series catalog CLI",
		Long:          "Command-line interface for inspecting clinical concept catalogs and loading measurements from ICU databases.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Precedence: flag > env > default
			if !cmd.Flags().Changed("catalog") {
				if v := os.Getenv("CATALOG_PATH"); v != "" {
					catalogPath = v
				}
			}
			if output != "table" && output != "json" {
				return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&catalogPath, "catalog", "c", "concepts.yaml", "Path to the concept catalog (JSON or YAML)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd(&catalogPath))
	rootCmd.AddCommand(newConceptsCmd(&catalogPath, &output))
	rootCmd.AddCommand(newDescribeCmd(&catalogPath, &output))
	rootCmd.AddCommand(newExportCmd(&catalogPath))
	rootCmd.AddCommand(newResolveCmd(&catalogPath, &output))
	rootCmd.AddCommand(newReverseCmd(&catalogPath, &output))
	rootCmd.AddCommand(newLoadCmd(&catalogPath, &output))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "icuts %s (%s)\n", version, commit)
		},
	}
}
