// cmd/migrate/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"librarysync/internal/platform/config"
	"librarysync/internal/platform/database"
)

func main() {
	config.LoadEnvFiles(".env")
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		schema string
		dsn    string
	)

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply the embedded schema migrations of the authority or lending database",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&schema, "schema", "", "migration set to use: authority or lending (required)")
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "database URL (defaults to AUTHORITY_DB_URL or LENDING_DB_URL)")
	_ = root.MarkPersistentFlagRequired("schema")

	for _, command := range []struct{ name, short string }{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the most recent migration"},
		{"status", "Print the applied state of every migration"},
	} {
		name := command.name
		root.AddCommand(&cobra.Command{
			Use:   name,
			Short: command.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := database.ParseSchema(schema)
				if err != nil {
					return err
				}
				url := dsn
				if url == "" {
					url = defaultDSN(s)
				}
				return migrate(cmd.Context(), s, url, name, cmd)
			},
		})
	}
	return root
}

func defaultDSN(s database.Schema) string {
	if s == database.AuthoritySchema {
		return os.Getenv("AUTHORITY_DB_URL")
	}
	return os.Getenv("LENDING_DB_URL")
}

func migrate(ctx context.Context, schema database.Schema, dsn, command string, cmd *cobra.Command) error {
	if dsn == "" || dsn == config.MemoryDatabaseURL {
		return fmt.Errorf("no database URL for schema %s", schema)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db.DB, schema, command); err != nil {
		return err
	}
	cmd.Printf("%s %s on %s: done\n", schema, command, database.RedactDSN(dsn))
	return nil
}
