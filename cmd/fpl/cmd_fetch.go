// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Refresh the FPL API snapshots",
		Long: `Downloads bootstrap-static, fixtures and every element summary and
stores them as snapshots. Snapshots younger than the configured freshness
are kept unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.offline {
				return errors.New("fetch cannot run with --offline")
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			src, err := a.source(store, force)
			if err != nil {
				return err
			}
			start := time.Now()
			payloads, err := src.Load(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("snapshots ready",
				slog.String("dir", a.cfg.Data.SnapshotDir()),
				slog.Int("teams", len(payloads.Bootstrap.Teams)),
				slog.Int("players", len(payloads.Bootstrap.Elements)),
				slog.Int("fixtures", len(payloads.Fixtures)),
				slog.Duration("elapsed", time.Since(start)),
			)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d teams, %d players, %d fixtures in %s\n",
				len(payloads.Bootstrap.Teams), len(payloads.Bootstrap.Elements), len(payloads.Fixtures), a.cfg.Data.SnapshotDir())
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "refetch even fresh snapshots")
	return cmd
}
