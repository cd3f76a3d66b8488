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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/registry"
	"github.com/AleutianAI/AleutianFPL/services/forecast/store"
)

func TestDecimal_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Decimal
	}{
		{`"0.35"`, 0.35},
		{`0.35`, 0.35},
		{`null`, 0},
		{`""`, 0},
		{`"12"`, 12},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Decimal
			require.NoError(t, json.Unmarshal([]byte(tt.in), &d))
			assert.InDelta(t, float64(tt.want), float64(d), 1e-12)
		})
	}

	var d Decimal
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &d))
}

func TestToPlayer_CostInTenths(t *testing.T) {
	p, err := ToPlayer(ElementPayload{ID: 3, WebName: "Saka", ElementType: 3, Team: 1, NowCost: 101})
	require.NoError(t, err)
	assert.InDelta(t, 10.1, p.NowCost, 1e-12)
	assert.Equal(t, model.MID, p.Type)
}

func TestToFixture_Unscheduled(t *testing.T) {
	_, ok, err := ToFixture(FixturePayload{ID: 9, TeamH: 1, TeamA: 2, TeamHDifficulty: 3, TeamADifficulty: 3})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ToFutureFixture(5, FutureFixturePayload{ID: 9})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConversion_Invalid(t *testing.T) {
	tests := map[string]func() error{
		"event out of season": func() error {
			_, err := ToGameweek(EventPayload{ID: 39, DeadlineTime: "2025-05-25T15:00:00Z"})
			return err
		},
		"event deadline": func() error {
			_, err := ToGameweek(EventPayload{ID: 1, DeadlineTime: "Friday"})
			return err
		},
		"team without name": func() error {
			_, err := ToTeam(TeamPayload{ID: 1})
			return err
		},
		"unknown element type": func() error {
			_, err := ToPlayer(ElementPayload{ID: 1, WebName: "X", ElementType: 6, Team: 1})
			return err
		},
		"difficulty": func() error {
			_, _, err := ToFixture(FixturePayload{ID: 1, Event: intPtr(1), TeamH: 1, TeamA: 2, TeamHDifficulty: 6, TeamADifficulty: 2})
			return err
		},
		"team plays itself": func() error {
			_, _, err := ToFixture(FixturePayload{ID: 1, Event: intPtr(1), TeamH: 1, TeamA: 1, TeamHDifficulty: 2, TeamADifficulty: 2})
			return err
		},
		"negative score": func() error {
			_, _, err := ToFixture(FixturePayload{ID: 1, Event: intPtr(1), TeamH: 1, TeamA: 2, TeamHDifficulty: 2, TeamADifficulty: 2, TeamHScore: intPtr(-1)})
			return err
		},
		"negative minutes": func() error {
			_, err := ToPlayedFixture(HistoryPayload{Element: 1, Fixture: 1, Round: 1, Minutes: -5})
			return err
		},
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, fn(), ErrInvalidRecord)
		})
	}
}

func TestPopulate(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Populate(reg, fakeSeason()))

	assert.Equal(t, 2, reg.Teams.Len())
	assert.Equal(t, 3, reg.Fixtures.Len(), "unscheduled fixture skipped")
	assert.Equal(t, 2, reg.Players.Len())
	assert.Equal(t, 6, reg.PlayerFixtures.Len())
	assert.Equal(t, 3, reg.NextGameweek())

	g, err := reg.Gameweek(1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 8, 16, 17, 30, 0, 0, time.UTC), g.Deadline.UTC())

	pf, err := reg.PlayerFixture(1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, pf.TeamID, "away side of fixture 1")
	assert.InDelta(t, 0.64, pf.XG, 1e-12)
	require.True(t, pf.Played())
	assert.Equal(t, 8, *pf.TotalPoints)

	future, err := reg.PlayerFixture(3, 10)
	require.NoError(t, err)
	assert.False(t, future.Played())
	assert.Equal(t, 1, future.TeamID)

	f, err := reg.Fixture(1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f.CleanSheet(model.Away))
}

func TestPopulate_Duplicate(t *testing.T) {
	p := fakeSeason()
	p.Bootstrap.Teams = append(p.Bootstrap.Teams, p.Bootstrap.Teams[0])
	err := Populate(registry.New(), p)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestPopulate_InvalidRow(t *testing.T) {
	p := fakeSeason()
	p.Fixtures[0].TeamHDifficulty = 0
	err := Populate(registry.New(), p)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

// --- Source and Bootstrap ---

func TestBootstrap_FetchesAndSnapshots(t *testing.T) {
	api := newFakeAPI()
	stores := openStores(t)
	ctx := context.Background()

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			src := &Source{Store: s, Remote: testFetcher(t, api), Freshness: 24 * time.Hour}
			reg := registry.New()
			require.NoError(t, Bootstrap(ctx, src, reg))
			assert.True(t, reg.Players.Frozen())
			assert.ErrorIs(t, reg.AddTeam(model.Team{ID: 9, Name: "X"}), store.ErrStoreFrozen)
			assert.Equal(t, 6, reg.PlayerFixtures.Len())

			for _, r := range []string{ResourceBootstrap, ResourceFixtures, ResourceElements} {
				_, err := s.Latest(ctx, r)
				assert.NoError(t, err, r)
			}
		})
	}
	assert.Equal(t, 2, api.count("bootstrap-static/"), "once per store")
	assert.Equal(t, 2, api.count("element-summary/10/"))
}

func TestSource_UsesFreshSnapshots(t *testing.T) {
	api := newFakeAPI()
	ctx := context.Background()
	s, err := NewFileSnapshotStore(t.TempDir())
	require.NoError(t, err)

	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	src := &Source{Store: s, Remote: testFetcher(t, api), Freshness: 24 * time.Hour, Now: func() time.Time { return now }}
	_, err = src.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, api.count("fixtures/"))

	now = now.Add(23 * time.Hour)
	_, err = src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, api.count("fixtures/"), "fresh snapshot reused")

	now = now.Add(2 * time.Hour)
	_, err = src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, api.count("fixtures/"), "stale snapshot refreshed")
}

func TestSource_Offline(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileSnapshotStore(t.TempDir())
	require.NoError(t, err)

	offline := &Source{Store: s, Freshness: time.Nanosecond}
	_, err = offline.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	online := &Source{Store: s, Remote: testFetcher(t, newFakeAPI()), Freshness: time.Hour}
	_, err = online.Load(ctx)
	require.NoError(t, err)

	p, err := offline.Load(ctx)
	require.NoError(t, err, "stale snapshots are used without a remote")
	assert.Len(t, p.Elements, 2)
}

func TestSource_FetchFailure(t *testing.T) {
	api := newFakeAPI()
	api.p.Bootstrap.Elements = append(api.p.Bootstrap.Elements,
		ElementPayload{ID: 30, WebName: "Ghost", ElementType: 2, Team: 1})
	s, err := NewFileSnapshotStore(t.TempDir())
	require.NoError(t, err)

	src := &Source{Store: s, Remote: testFetcher(t, api), Freshness: time.Hour}
	err = Bootstrap(context.Background(), src, registry.New())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)

	_, err = s.Latest(context.Background(), ResourceElements)
	assert.ErrorIs(t, err, ErrNoSnapshot, "failed fetch leaves no snapshot")
}
