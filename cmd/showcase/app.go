// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"showcase/internal/config"
	"showcase/internal/database"
	"showcase/internal/logging"
	"showcase/internal/store"
)

// app holds the resources every command needs.
type app struct {
	cfg     *config.Config
	dialect database.Dialect
	db      *sql.DB
	store   *store.CategoryStore
	logs    io.Closer
}

// bootstrap loads configuration, sets up logging, connects to the category
// store and applies pending migrations.
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logs, err := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("set up logging: %w", err)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"store", cfg.StoreDriver,
		"rate_limit_backend", cfg.RateLimitBackend,
	)

	dialect, err := database.ParseDialect(cfg.StoreDriver)
	if err != nil {
		logs.Close()
		return nil, err
	}
	dsn := cfg.DSN()
	if dialect == database.SQLite {
		dsn = database.SQLiteDSN(cfg.SQLitePath)
	}

	db, err := database.Connect(dialect, dsn)
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("connect to %s: %w", dialect, err)
	}
	if err := database.Migrate(db, dialect); err != nil {
		db.Close()
		logs.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &app{
		cfg:     cfg,
		dialect: dialect,
		db:      db,
		store:   store.NewCategoryStore(db, dialect),
		logs:    logs,
	}, nil
}

// Close releases the database and the log file.
func (a *app) Close() error {
	err := a.db.Close()
	a.logs.Close()
	return err
}
