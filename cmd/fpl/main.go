// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command fpl forecasts Fantasy Premier League gameweeks.
//
// Usage:
//
//	fpl fetch                       # refresh the API snapshots
//	fpl predict --horizon 3         # rank players over the next three gameweeks
//	fpl score --next 10             # score a pick of gameweek 10 with hindsight
//	fpl backtest                    # replay the season against two baselines
//	fpl serve                       # HTTP API on :8080
//
// The configuration file is named by --config or $FPL_CONFIG; without one
// the built-in defaults apply.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Error: close log: %v\n", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
