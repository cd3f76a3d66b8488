// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianFPL/services/forecast/registry"
)

// Remote fetches raw resources. *Fetcher implements it.
type Remote interface {
	Bootstrap(ctx context.Context) ([]byte, error)
	Fixtures(ctx context.Context) ([]byte, error)
	ElementSummaries(ctx context.Context, ids []int) (map[int]json.RawMessage, error)
}

// Source reads resources from snapshots and refreshes stale ones.
type Source struct {
	// Store holds the snapshots. Required.
	Store SnapshotStore

	// Remote refreshes stale snapshots. Nil works offline: the latest
	// snapshot is used whatever its age.
	Remote Remote

	// Freshness is the age below which a snapshot is used as is.
	Freshness time.Duration

	// Now returns the current time. Nil uses time.Now.
	Now func() time.Time

	// Logger. Nil uses slog.Default().
	Logger *slog.Logger
}

func (s *Source) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Source) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// get returns the latest snapshot of resource, fetching and storing a new
// one when it is missing or stale.
func (s *Source) get(ctx context.Context, resource string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	now := s.now()
	snap, err := s.Store.Latest(ctx, resource)
	switch {
	case err == nil && (s.Remote == nil || snap.Fresh(now, s.Freshness)):
		s.logger().Debug("using snapshot",
			slog.String("resource", resource),
			slog.Time("taken_at", snap.TakenAt))
		return snap.Body, nil
	case err != nil && !errors.Is(err, ErrNoSnapshot):
		return nil, err
	case s.Remote == nil:
		return nil, err
	}

	s.logger().Info("fetching resource", slog.String("resource", resource))
	body, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", resource, err)
	}
	if err := s.Store.Write(ctx, Snapshot{Resource: resource, TakenAt: now, Body: body}); err != nil {
		return nil, err
	}
	return body, nil
}

// Load returns every decoded resource.
//
// Description:
//
//	Reads bootstrap-static/ first, because its player list names the
//	element summaries to fetch. The element summaries of all players are
//	stored as one snapshot keyed by player ID.
//
// Outputs:
//
//	Payloads - Decoded resources.
//	error - ErrNoSnapshot when offline without snapshots, a fetch error,
//	        or a decode error.
func (s *Source) Load(ctx context.Context) (Payloads, error) {
	if s.Store == nil {
		return Payloads{}, errors.New("snapshot store is required")
	}
	var p Payloads

	body, err := s.get(ctx, ResourceBootstrap, func(ctx context.Context) ([]byte, error) {
		return s.Remote.Bootstrap(ctx)
	})
	if err != nil {
		return Payloads{}, err
	}
	if err := json.Unmarshal(body, &p.Bootstrap); err != nil {
		return Payloads{}, fmt.Errorf("decode %s: %w", ResourceBootstrap, err)
	}

	body, err = s.get(ctx, ResourceFixtures, func(ctx context.Context) ([]byte, error) {
		return s.Remote.Fixtures(ctx)
	})
	if err != nil {
		return Payloads{}, err
	}
	if err := json.Unmarshal(body, &p.Fixtures); err != nil {
		return Payloads{}, fmt.Errorf("decode %s: %w", ResourceFixtures, err)
	}

	body, err = s.get(ctx, ResourceElements, func(ctx context.Context) ([]byte, error) {
		bodies, err := s.Remote.ElementSummaries(ctx, p.Bootstrap.ElementIDs())
		if err != nil {
			return nil, err
		}
		return json.Marshal(bodies)
	})
	if err != nil {
		return Payloads{}, err
	}
	if err := json.Unmarshal(body, &p.Elements); err != nil {
		return Payloads{}, fmt.Errorf("decode %s: %w", ResourceElements, err)
	}
	return p, nil
}

// Bootstrap loads every resource from src into reg and freezes it.
//
// Inputs:
//
//	ctx - Context for cancellation of fetches.
//	src - Snapshot source.
//	reg - Empty registry.
//
// Outputs:
//
//	error - Non-nil if loading or conversion failed. reg is not frozen
//	        then and must be discarded.
//
// Example:
//
//	reg := registry.New()
//	err := loader.Bootstrap(ctx, &loader.Source{Store: store}, reg)
func Bootstrap(ctx context.Context, src *Source, reg *registry.Registry) error {
	start := time.Now()
	p, err := src.Load(ctx)
	if err != nil {
		return err
	}
	if err := Populate(reg, p); err != nil {
		return err
	}
	reg.Freeze()
	src.logger().Info("registry bootstrapped",
		slog.Int("teams", reg.Teams.Len()),
		slog.Int("fixtures", reg.Fixtures.Len()),
		slog.Int("players", reg.Players.Len()),
		slog.Int("player_fixtures", reg.PlayerFixtures.Len()),
		slog.Int("next_gameweek", reg.NextGameweek()),
		slog.Duration("took", time.Since(start)))
	return nil
}
