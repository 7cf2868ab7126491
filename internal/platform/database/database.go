// Package database opens PostgreSQL connections and applies the embedded
// schema migrations for each service.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/authority/*.sql migrations/lending/*.sql
var migrations embed.FS

// Schema names one service's migration set.
type Schema string

const (
	AuthoritySchema Schema = "authority"
	LendingSchema   Schema = "lending"
)

// ParseSchema validates a schema name given on the command line.
func ParseSchema(s string) (Schema, error) {
	switch Schema(s) {
	case AuthoritySchema, LendingSchema:
		return Schema(s), nil
	}
	return "", fmt.Errorf("unknown schema %q (want %s or %s)", s, AuthoritySchema, LendingSchema)
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database (%s): %w", RedactDSN(dsn), err)
	}
	return db, nil
}

// Migrate runs a goose command ("up", "down" or "status") for the schema.
func Migrate(db *sql.DB, schema Schema, command string) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	dir := "migrations/" + string(schema)

	var err error
	switch command {
	case "up":
		err = goose.Up(db, dir)
	case "down":
		err = goose.Down(db, dir)
	case "status":
		err = goose.Status(db, dir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("migrate %s %s: %w", schema, command, err)
	}
	return nil
}

// RedactDSN hides the credentials of a connection URL for logging.
func RedactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
