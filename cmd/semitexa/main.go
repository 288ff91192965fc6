// Package main is the semitexa command-line surface: a thin presentation
// layer over collector -> introspector -> comparator -> syncengine,
// grounded on the teacher's cmd/smf/main.go cobra wiring (flag structs,
// RunE closures, a subcommand per phase of the pipeline).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/semitexa/semitexa-orm/internal/collector"
	"github.com/semitexa/semitexa-orm/internal/comparator"
	"github.com/semitexa/semitexa-orm/internal/config"
	introspectmysql "github.com/semitexa/semitexa-orm/internal/introspect/mysql"
	"github.com/semitexa/semitexa-orm/internal/metadata"
	"github.com/semitexa/semitexa-orm/internal/poolsql"
	"github.com/semitexa/semitexa-orm/internal/registry"
	"github.com/semitexa/semitexa-orm/internal/syncengine"
	"github.com/semitexa/semitexa-orm/internal/txnmgr"
	"github.com/semitexa/semitexa-orm/internal/upsert"
)

type syncFlags struct {
	dryRun           bool
	allowDestructive bool
	outFile          string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "semitexa",
		Short: "Attribute-driven MySQL schema sync and ORM",
	}

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(diffCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// session bundles everything a command needs: the resolved config, a
// connected *sql.DB, the declared schema and a reader for the live state,
// built once per invocation.
type session struct {
	cfg    *config.Config
	db     *sql.DB
	pool   *poolsql.Pool
	caps   *poolsql.Capabilities
	schema *metadata.Schema
	reader *introspectmysql.Reader
}

func connect(ctx context.Context) (*session, error) {
	cfg, err := config.Load("semitexa.toml")
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	caps, err := poolsql.DetectCapabilities(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := collector.Collect(registry.All()...)

	return &session{
		cfg:    cfg,
		db:     db,
		pool:   poolsql.NewPool(db, cfg.PoolSize),
		caps:   caps,
		schema: schema,
		reader: introspectmysql.NewReader(db, cfg.IgnoreTables),
	}, nil
}

func (s *session) close() {
	_ = s.pool.Close()
	_ = s.db.Close()
}

func (s *session) buildDiff(ctx context.Context) (*comparator.SchemaDiff, error) {
	liveState, err := s.reader.Read(ctx)
	if err != nil {
		return nil, err
	}
	return comparator.Compare(s.schema, liveState), nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print server capabilities and schema validation state",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()
			sess, err := connect(ctx)
			if err != nil {
				return err
			}
			defer sess.close()

			fmt.Printf("server version: %s\n", sess.caps.Version)
			fmt.Printf("pool size: %d\n", sess.cfg.PoolSize)
			fmt.Printf("supports atomic DDL: %t\n", sess.caps.SupportsAtomicDDL)
			fmt.Printf("declared tables: %d\n", len(sess.schema.Tables))

			columns, indexes := 0, 0
			for _, t := range sess.schema.Tables {
				columns += len(t.Columns)
				indexes += len(t.Indexes)
			}
			fmt.Printf("declared columns: %d, indexes: %d\n", columns, indexes)

			if len(sess.schema.Errors) > 0 {
				fmt.Println("validation errors:")
				for _, e := range sess.schema.Errors {
					fmt.Printf("  - %s\n", e)
				}
				return fmt.Errorf("schema has %d validation error(s)", len(sess.schema.Errors))
			}
			if len(sess.schema.Warnings) > 0 {
				fmt.Println("validation warnings:")
				for _, w := range sess.schema.Warnings {
					fmt.Printf("  - %s\n", w)
				}
			}

			diff, err := sess.buildDiff(ctx)
			if err != nil {
				return err
			}
			plan := syncengine.Build(diff, metadata.DeprecationSentinel)
			fmt.Printf("sync-pending operations: %d\n", len(plan.Steps))
			return nil
		},
	}
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Print the operations a sync would perform",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()
			sess, err := connect(ctx)
			if err != nil {
				return err
			}
			defer sess.close()

			if err := reportSchemaErrors(sess.schema); err != nil {
				return err
			}

			diff, err := sess.buildDiff(ctx)
			if err != nil {
				return err
			}
			plan := syncengine.Build(diff, metadata.DeprecationSentinel)
			if len(plan.Steps) == 0 {
				fmt.Println("schema is in sync; nothing to do")
				return nil
			}
			for i, step := range plan.Steps {
				risk := "safe"
				if step.Kind.Destructive() {
					risk = "destructive"
				}
				fmt.Printf("%d. [%s] %s\n   %s\n", i+1, risk, step.Kind, step.SQL)
				if step.Note != "" {
					fmt.Printf("   note: %s\n", step.Note)
				}
			}
			return nil
		},
	}
}

func reportSchemaErrors(schema *metadata.Schema) error {
	if !schema.Valid() {
		for _, e := range schema.Errors {
			fmt.Printf("error: %s\n", e)
		}
		return fmt.Errorf("schema has %d validation error(s); aborting before database contact", len(schema.Errors))
	}
	return nil
}

func syncCmd() *cobra.Command {
	flags := &syncFlags{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Apply the declared schema against the live database",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()
			sess, err := connect(ctx)
			if err != nil {
				return err
			}
			defer sess.close()

			if err := reportSchemaErrors(sess.schema); err != nil {
				return err
			}

			diff, err := sess.buildDiff(ctx)
			if err != nil {
				return err
			}
			plan := syncengine.Build(diff, metadata.DeprecationSentinel)

			adapter := &poolsql.PoolAdapter{Pool: sess.pool}
			txnMgr := txnmgr.NewManager(sess.pool)

			historyRoot := "."
			result, err := syncengine.Run(ctx, plan, adapter, txnMgr, sess.caps, syncengine.Options{
				DryRun:           flags.dryRun,
				AllowDestructive: flags.allowDestructive,
				HistoryRoot:      historyRoot,
			})
			if err != nil {
				return err
			}

			if flags.outFile != "" && result.HistorySQLPath != "" {
				content, readErr := os.ReadFile(result.HistorySQLPath)
				if readErr != nil {
					return readErr
				}
				if err := os.WriteFile(flags.outFile, content, 0o644); err != nil {
					return err
				}
			}

			fmt.Printf("statements run: %d (transactional: %t, executed: %t)\n",
				result.StatementsRun, result.Transactional, result.Executed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Write the audit trail without touching the database")
	cmd.Flags().BoolVar(&flags.allowDestructive, "allow-destructive", false, "Permit destructive operations in this run")
	cmd.Flags().StringVarP(&flags.outFile, "output", "o", "", "Also write the generated SQL script to this file")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert every resource's declared defaults",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			sess, err := connect(ctx)
			if err != nil {
				return err
			}
			defer sess.close()

			if err := reportSchemaErrors(sess.schema); err != nil {
				return err
			}

			adapter := &poolsql.PoolAdapter{Pool: sess.pool}
			results, err := upsert.RunSeeds(ctx, adapter, registry.All())
			if err != nil {
				return err
			}

			for _, r := range results {
				fmt.Printf("%s: inserted=%d updated=%d unchanged=%d\n",
					r.Table, r.Counts.Inserted, r.Counts.Updated, r.Counts.Unchanged)
			}
			return nil
		},
	}
}
