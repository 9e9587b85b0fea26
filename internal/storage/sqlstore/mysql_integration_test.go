//go:build integration || !unit

package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"mealsfly_review/internal/domain"
	"mealsfly_review/internal/storage/sqlstore"
	"mealsfly_review/internal/storage/storetest"
)

// startMySQL runs an isolated MySQL and returns a migrated connection.
// Set SKIP_DOCKER=1 where no docker daemon is reachable.
func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv("SKIP_DOCKER") != "" {
		t.Skip("SKIP_DOCKER set")
	}
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=mealsfly",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "mealsfly")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := sqlstore.Migrate(context.Background(), db, sqlstore.MySQL); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func resetTables(t *testing.T, db *sql.DB) {
	t.Helper()
	for _, tbl := range []string{"admin_actions", "tasks", "restaurants", "users"} {
		if _, err := db.Exec("DELETE FROM " + tbl); err != nil {
			t.Fatalf("reset %s: %v", tbl, err)
		}
	}
}

func TestRepo_MySQL_Contract(t *testing.T) {
	db := startMySQL(t)
	storetest.Run(t, func(t *testing.T) domain.Store {
		resetTables(t, db)
		return sqlstore.New(db, sqlstore.MySQL)
	})
}
