package cli

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"icuts/internal/adapter"
	"icuts/internal/catalog"
	"icuts/internal/config"
	internaldb "icuts/internal/db"
	"icuts/internal/domain"
	"icuts/internal/service/load"
)

// cliTimeLayouts are the timestamp formats accepted for --start/--end.
var cliTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func newLoadCmd(catalogPath, output *string) *cobra.Command {
	var (
		database string
		driver   string
		dsn      string
		entities []int64
		all      bool
		start    string
		end      string

		entityColumn string
		timeColumn   string
		codeColumn   string
		valueColumn  string
		unitColumn   string
	)

	cmd := &cobra.Command{
		Use:   "load <concept>...",
		Short: "Load measurements for concepts from a local database",
		Long:  "Resolves the given concepts, queries the database directly, and prints the normalized measurement rows.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.LoadFile(*catalogPath)
			if err != nil {
				return err
			}

			dbCfg := config.DatabaseConfig{
				Name:         database,
				Driver:       driver,
				DSN:          dsn,
				EntityColumn: entityColumn,
				TimeColumn:   timeColumn,
				CodeColumn:   codeColumn,
				ValueColumn:  valueColumn,
				UnitColumn:   unitColumn,
			}

			var pool *sql.DB
			switch driver {
			case "duckdb":
				pool, err = internaldb.OpenDuckDB(dsn, 0)
			case "sqlite3":
				pool, err = internaldb.OpenSQLite(dsn, 0)
			default:
				return fmt.Errorf("unsupported driver %q: use 'sqlite3' or 'duckdb'", driver)
			}
			if err != nil {
				return err
			}
			defer pool.Close() //nolint:errcheck

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			registry := adapter.NewRegistry()
			if err := registry.Register(dbCfg.Profile(), adapter.NewSQL(database, pool)); err != nil {
				return err
			}

			req := domain.LoadRequest{
				Concepts: args,
				Database: database,
			}
			if all {
				req.Scope = domain.AllEntities()
			} else {
				req.Scope = domain.Entities(entities...)
			}
			if start != "" || end != "" {
				window := &domain.TimeWindow{}
				if window.Start, err = parseCLITime(start); err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				if window.End, err = parseCLITime(end); err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				req.Window = window
			}

			result, err := load.NewService(cat, registry, logger).Load(cmd.Context(), req)
			if err != nil {
				return err
			}

			if *output == "json" {
				rows := make([]map[string]any, len(result.Rows))
				for i, r := range result.Rows {
					rows[i] = map[string]any{
						"entity_id":    r.EntityID,
						"concept":      r.Concept,
						"timestamp":    r.Timestamp,
						"value":        r.Value,
						"value_text":   r.ValueText,
						"unit":         r.Unit,
						"source_table": r.SourceTable,
					}
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"rows":        rows,
					"unsupported": result.Unsupported,
				})
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ENTITY\tCONCEPT\tTIME\tVALUE\tUNIT\tSOURCE")
			for _, r := range result.Rows {
				value := fmt.Sprintf("%g", r.Value)
				if r.ValueText != "" {
					value = r.ValueText
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					r.EntityID, r.Concept, r.Timestamp.Format("2006-01-02 15:04:05"), value, r.Unit, r.SourceTable)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, c := range result.Unsupported {
				fmt.Fprintf(cmd.ErrOrStderr(), "note: concept %q is not available in database %q\n", c, database)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name as it appears in the catalog")
	cmd.Flags().StringVar(&driver, "driver", "sqlite3", "Database driver (sqlite3, duckdb)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database file path / DSN")
	cmd.Flags().Int64SliceVarP(&entities, "entity", "e", nil, "Entity IDs to load (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "Load every entity in the database")
	cmd.Flags().StringVar(&start, "start", "", "Window start (inclusive)")
	cmd.Flags().StringVar(&end, "end", "", "Window end (exclusive)")
	cmd.Flags().StringVar(&entityColumn, "entity-column", "", "Entity ID column override")
	cmd.Flags().StringVar(&timeColumn, "time-column", "", "Timestamp column override")
	cmd.Flags().StringVar(&codeColumn, "code-column", "", "Item code column override")
	cmd.Flags().StringVar(&valueColumn, "value-column", "", "Value column override")
	cmd.Flags().StringVar(&unitColumn, "unit-column", "", "Unit column override")
	_ = cmd.MarkFlagRequired("database")
	_ = cmd.MarkFlagRequired("dsn")
	return cmd
}

func parseCLITime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("both --start and --end are required when windowing")
	}
	for _, layout := range cliTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}
