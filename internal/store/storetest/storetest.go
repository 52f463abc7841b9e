// Package storetest opens throwaway category stores for tests. SQLite
// stores live in the test's temp dir and need no external services;
// PostgreSQL stores are skipped when no server is reachable.
package storetest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"

	"showcase/internal/database"
	"showcase/internal/store"
)

// SQLite returns a migrated store backed by a fresh SQLite file.
func SQLite(t testing.TB) (*store.CategoryStore, *sql.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "categories.db")
	db, err := database.Connect(database.SQLite, database.SQLiteDSN(path))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db, database.SQLite); err != nil {
		db.Close()
		t.Fatalf("migrate sqlite: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return store.NewCategoryStore(db, database.SQLite), db
}

// Postgres returns a migrated store on the test PostgreSQL database with
// both category tables emptied. The test is skipped if PostgreSQL is not
// available.
func Postgres(t testing.TB) (*store.CategoryStore, *sql.DB) {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "showcase")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "showcase")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable&connect_timeout=2"

	db, err := database.Connect(database.Postgres, dsn)
	if err != nil {
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}
	if err := database.Migrate(db, database.Postgres); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	goose.SetBaseFS(nil)

	clean := func() {
		db.Exec("DELETE FROM category_meta")
		db.Exec("DELETE FROM categories")
	}
	clean()
	t.Cleanup(func() {
		clean()
		db.Close()
	})
	return store.NewCategoryStore(db, database.Postgres), db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
