// Package database handles connection management and migration execution
// using goose. Two backends are supported: PostgreSQL (pgx stdlib driver)
// for production and SQLite (modernc.org/sqlite) for single-node installs
// and hermetic tests. Both share the same SQL through Rebind.
package database

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var embedMigrations embed.FS

// Dialect identifies the SQL backend.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect validates a STORE_DRIVER value.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(s)); d {
	case Postgres, SQLite:
		return d, nil
	}
	return "", fmt.Errorf("unknown store driver %q", s)
}

// driverName returns the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	if d == SQLite {
		return "sqlite"
	}
	return "pgx"
}

// gooseDialect returns the goose dialect name.
func (d Dialect) gooseDialect() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "postgres"
}

// Rebind rewrites '?' placeholders into the dialect's native form.
// PostgreSQL needs $1..$n; SQLite accepts '?' as-is. Queries in this
// repository never contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// SQLiteDSN builds a modernc.org/sqlite DSN for the given file path with
// foreign keys on, a busy timeout, and IMMEDIATE transactions so that a
// write transaction takes the database write lock up front.
func SQLiteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Connect opens a connection pool for the dialect using the provided DSN.
// It verifies the connection with a ping before returning.
func Connect(d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("database open: %w", err)
	}

	if d == SQLite {
		// SQLite has a single writer; one connection avoids SQLITE_BUSY
		// between pooled connections.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}

	slog.Info("database connected", "driver", string(d))
	return db, nil
}

// Migrate runs all pending goose migrations for the dialect from the
// embedded SQL files.
func Migrate(db *sql.DB, d Dialect) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(d.gooseDialect()); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations/"+string(d)); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	slog.Info("database migrations applied", "driver", string(d))
	return nil
}
