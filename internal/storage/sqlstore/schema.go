package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Open connects and pings. SQLite gets a single connection so that writers
// never race for the database lock.
func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	driver := string(d)
	if d != MySQL && d != SQLite {
		return nil, fmt.Errorf("unknown sql dialect %q", d)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if d == SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded schema for d. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	script, err := schemaFS.ReadFile("schema/" + string(d) + ".sql")
	if err != nil {
		return fmt.Errorf("schema for %s: %w", d, err)
	}
	for _, stmt := range splitStatements(string(script)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", d, err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
