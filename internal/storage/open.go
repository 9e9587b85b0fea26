// Package storage picks the store implementation named by configuration.
package storage

import (
	"context"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"mealsfly_review/internal/domain"
	"mealsfly_review/internal/storage/memory"
	"mealsfly_review/internal/storage/sqlstore"
)

// Open returns the store for driver (mysql, sqlite or memory) with its schema
// applied, plus a close func.
func Open(ctx context.Context, driver, mysqlDSN, sqlitePath string) (domain.Store, func() error, error) {
	var (
		d   sqlstore.Dialect
		dsn string
	)
	switch driver {
	case "memory":
		return memory.New(), func() error { return nil }, nil
	case "mysql":
		d, dsn = sqlstore.MySQL, mysqlDSN
	case "sqlite":
		d, dsn = sqlstore.SQLite, sqliteDSN(sqlitePath)
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}
	db, err := sqlstore.Open(ctx, d, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := sqlstore.Migrate(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return sqlstore.New(db, d), db.Close, nil
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
