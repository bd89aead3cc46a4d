package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"icuts/internal/catalog"
	"icuts/internal/domain"
)

func newValidateCmd(catalogPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a concept catalog document",
		Long:  "Parses and validates the catalog document, reporting every problem found.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := catalog.LoadFile(*catalogPath)
			if err != nil {
				var malformed *domain.MalformedCatalogError
				if errors.As(err, &malformed) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Catalog has %d problem(s):\n", len(malformed.Problems))
					for _, p := range malformed.Problems {
						fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", p)
					}
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog is valid: %d concepts across %d database(s).\n",
				cat.Len(), len(cat.Databases()))
			return nil
		},
	}
}

func newConceptsCmd(catalogPath, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "concepts",
		Short: "List all concepts in the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := catalog.LoadFile(*catalogPath)
			if err != nil {
				return err
			}
			concepts := cat.Concepts()

			if *output == "json" {
				out := make([]map[string]any, len(concepts))
				for i, c := range concepts {
					out[i] = map[string]any{
						"id":    c.Identifier,
						"label": c.Label,
						"units": c.Units,
						"tags":  c.Tags,
					}
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tLABEL\tUNITS\tTAGS")
			for _, c := range concepts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Identifier, c.Label, c.Units, strings.Join(c.Tags, ","))
			}
			return tw.Flush()
		},
	}
}

func newDescribeCmd(catalogPath, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <concept>",
		Short: "Show a concept and every physical location bound to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.LoadFile(*catalogPath)
			if err != nil {
				return err
			}
			concept, err := cat.Concept(args[0])
			if err != nil {
				return err
			}

			var locations []domain.Location
			for _, db := range cat.Databases() {
				locs, err := cat.LocationsFor(concept.Identifier, db)
				if err != nil {
					return err
				}
				locations = append(locations, locs...)
			}

			if *output == "json" {
				locs := make([]map[string]any, len(locations))
				for i, l := range locations {
					codes := make([]any, len(l.Codes))
					for j, c := range l.Codes {
						codes[j] = c.Arg()
					}
					locs[i] = map[string]any{
						"database": l.Database,
						"schema":   l.Schema,
						"table":    l.Table,
						"codes":    codes,
					}
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"id":          concept.Identifier,
					"label":       concept.Label,
					"specimen":    concept.Specimen,
					"units":       concept.Units,
					"description": concept.Description,
					"tags":        concept.Tags,
					"locations":   locs,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Concept:  %s\n", concept.Identifier)
			if concept.Label != "" {
				fmt.Fprintf(out, "Label:    %s\n", concept.Label)
			}
			if concept.Specimen != "" {
				fmt.Fprintf(out, "Specimen: %s\n", concept.Specimen)
			}
			if concept.Units != "" {
				fmt.Fprintf(out, "Units:    %s\n", concept.Units)
			}
			if concept.Description != "" {
				fmt.Fprintf(out, "About:    %s\n", concept.Description)
			}

			tw := newTable(out)
			fmt.Fprintln(tw, "DATABASE\tTABLE\tCODES")
			for _, l := range locations {
				codes := make([]string, len(l.Codes))
				for i, c := range l.Codes {
					codes[i] = c.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Database, l.QualifiedTable(), strings.Join(codes, ","))
			}
			return tw.Flush()
		},
	}
}

func newExportCmd(catalogPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Re-serialize the catalog in its canonical JSON form",
		Long:  "Loads the catalog and prints the canonical JSON interchange form, preserving concept and location order.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := catalog.LoadFile(*catalogPath)
			if err != nil {
				return err
			}
			data, err := cat.MarshalJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
