package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"icuts/internal/catalog"
	"icuts/internal/resolve"
)

func newResolveCmd(catalogPath, output *string) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "resolve <concept>...",
		Short: "Resolve concepts to physical locations in one database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.LoadFile(*catalogPath)
			if err != nil {
				return err
			}
			results, err := resolve.New(cat).Resolve(args, database)
			if err != nil {
				return err
			}

			if *output == "json" {
				out := make([]map[string]any, len(results))
				for i, res := range results {
					locs := make([]map[string]any, len(res.Locations))
					for j, l := range res.Locations {
						codes := make([]any, len(l.Codes))
						for k, c := range l.Codes {
							codes[k] = c.Arg()
						}
						locs[j] = map[string]any{"schema": l.Schema, "table": l.Table, "codes": codes}
					}
					out[i] = map[string]any{
						"concept":   res.Concept,
						"supported": !res.Unsupported(),
						"locations": locs,
					}
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "CONCEPT\tTABLE\tCODES")
			for _, res := range results {
				if res.Unsupported() {
					fmt.Fprintf(tw, "%s\t(unsupported in %s)\t\n", res.Concept, database)
					continue
				}
				for _, l := range res.Locations {
					codes := make([]string, len(l.Codes))
					for i, c := range l.Codes {
						codes[i] = c.String()
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", res.Concept, l.QualifiedTable(), strings.Join(codes, ","))
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "", "Target database name")
	_ = cmd.MarkFlagRequired("database")
	return cmd
}

func newReverseCmd(catalogPath, output *string) *cobra.Command {
	var (
		database string
		schema   string
		table    string
	)

	cmd := &cobra.Command{
		Use:   "reverse <code>",
		Short: "Map a physical item code back to its concept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.LoadFile(*catalogPath)
			if err != nil {
				return err
			}
			concept, err := cat.ReverseLookup(database, schema, table, args[0])
			if err != nil {
				return err
			}

			if *output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"code":    args[0],
					"concept": concept.Identifier,
					"label":   concept.Label,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", args[0], concept.Identifier, concept.Label)
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name")
	cmd.Flags().StringVarP(&schema, "schema", "s", "main", "Schema name")
	cmd.Flags().StringVarP(&table, "table", "t", "", "Table name")
	_ = cmd.MarkFlagRequired("database")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}
