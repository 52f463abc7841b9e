// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{{"serve"}, {"migrate"}, {"tree", "verify"}, {"tree", "rebuild"}} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil {
			t.Errorf("%v: %v", path, err)
			continue
		}
		if cmd.Name() != path[len(path)-1] {
			t.Errorf("%v resolved to %q", path, cmd.Name())
		}
	}
}

// useSQLite points the commands at a throwaway SQLite file.
func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "testing")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("LOG_LEVEL", "error")
}

func TestMigrateVerifyAndRebuild(t *testing.T) {
	useSQLite(t)

	for _, args := range [][]string{{"migrate"}, {"tree", "verify"}, {"tree", "rebuild"}} {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		switch args[len(args)-1] {
		case "verify":
			if !strings.Contains(out.String(), "tree ok: 0 categories") {
				t.Errorf("verify output: %q", out.String())
			}
		case "rebuild":
			if !strings.Contains(out.String(), "0 rows fixed") {
				t.Errorf("rebuild output: %q", out.String())
			}
		}
	}
}
