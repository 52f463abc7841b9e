// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"showcase/internal/nestedset"
)

var (
	rootCmd = &cobra.Command{
		Use:           "showcase",
		Short:         "Product category tree service",
		Long:          "Serves a nested-set category tree over a JSON REST API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE:  runMigrate,
	}

	treeCmd = &cobra.Command{
		Use:   "tree",
		Short: "Inspect and repair the category tree",
	}

	treeVerifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Check every nested-set invariant; exits non-zero on violations",
		RunE:  runTreeVerify,
	}

	treeRebuildCmd = &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute bounds and depths from parent links",
		RunE:  runTreeRebuild,
	}
)

func init() {
	treeCmd.AddCommand(treeVerifyCmd, treeRebuildCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, treeCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("migrations applied", "driver", a.dialect)
	return nil
}

func runTreeVerify(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	nodes, err := a.store.All(cmd.Context())
	if err != nil {
		return fmt.Errorf("load tree: %w", err)
	}
	violations := nestedset.Verify(nodes)
	for _, v := range violations {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
	if len(violations) > 0 {
		return fmt.Errorf("tree has %d violations; run `showcase tree rebuild`", len(violations))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tree ok: %d categories\n", len(nodes))
	return nil
}

func runTreeRebuild(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	fixed, err := nestedset.New(a.store, a.cfg.MutationTimeout).Rebuild(cmd.Context())
	if err != nil {
		return fmt.Errorf("rebuild tree: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tree rebuilt: %d rows fixed\n", fixed)
	return nil
}
