// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/registry"
	"github.com/AleutianAI/AleutianFPL/services/forecast/registry/registrytest"
	"github.com/AleutianAI/AleutianFPL/services/forecast/store"
)

func TestRegistry_Lookups(t *testing.T) {
	reg := registrytest.New(t, registrytest.Options{})

	team, err := reg.Team(2)
	require.NoError(t, err)
	assert.Equal(t, "Team 2", team.Name)

	_, err = reg.Team(99)
	assert.ErrorIs(t, err, store.ErrNotFound)

	fixtures, err := reg.FixturesByGameweek(1)
	require.NoError(t, err)
	assert.Len(t, fixtures, 2)

	tfs, err := reg.TeamFixturesByTeam(1)
	require.NoError(t, err)
	assert.Len(t, tfs, 6, "one fixture per gameweek")

	players, err := reg.PlayersByTeam(3)
	require.NoError(t, err)
	assert.Len(t, players, 4)

	defenders, err := reg.PlayersByType(model.DEF)
	require.NoError(t, err)
	assert.Len(t, defenders, 4)

	f := fixtures[0]
	pfs, err := reg.PlayerFixturesByFixture(f.ID)
	require.NoError(t, err)
	assert.Len(t, pfs, 8)

	home, err := reg.PlayerFixturesByFixtureAndTeam(f.ID, f.Home.TeamID)
	require.NoError(t, err)
	assert.Len(t, home, 4)
	for _, pf := range home {
		assert.True(t, pf.WasHome)
		assert.Equal(t, f.Home.TeamID, pf.TeamID)
	}

	pf, err := reg.PlayerFixture(f.ID, home[0].PlayerID)
	require.NoError(t, err)
	assert.Equal(t, home[0], pf)

	byPlayer, err := reg.PlayerFixturesByPlayer(registrytest.PlayerID(1, model.FWD))
	require.NoError(t, err)
	require.Len(t, byPlayer, 6)
	for i, pf := range byPlayer {
		assert.Equal(t, i+1, pf.Gameweek, "insertion order follows gameweeks")
	}

	byGW, err := reg.PlayerFixturesByGameweek(3)
	require.NoError(t, err)
	assert.Len(t, byGW, 16)

	byTeamGW, err := reg.PlayerFixturesByTeamAndGameweek(1, 3)
	require.NoError(t, err)
	assert.Len(t, byTeamGW, 4)
}

func TestRegistry_DoubleGameweek(t *testing.T) {
	reg := registrytest.New(t, registrytest.Options{DoubleGameweek: 2})

	fixtures, err := reg.FixturesByGameweek(2)
	require.NoError(t, err)
	assert.Len(t, fixtures, 3)

	pfs, err := reg.PlayerFixturesByTeamAndGameweek(1, 2)
	require.NoError(t, err)
	assert.Len(t, pfs, 8, "two fixtures worth of records")
}

func TestRegistry_TeamFixtureTotals(t *testing.T) {
	reg := registrytest.New(t, registrytest.Options{})

	fixtures, err := reg.FixturesByGameweek(1)
	require.NoError(t, err)
	f := fixtures[0]

	totals, err := reg.TeamFixtureTotals(f.ID, f.Home.TeamID)
	require.NoError(t, err)

	pfs, err := reg.PlayerFixturesByFixtureAndTeam(f.ID, f.Home.TeamID)
	require.NoError(t, err)
	var xg, points float64
	for _, pf := range pfs {
		xg += pf.XG
		points += float64(*pf.TotalPoints)
	}
	assert.InDelta(t, xg, totals.XG, 1e-9)
	assert.InDelta(t, points, totals.Points, 1e-9)
	assert.Positive(t, totals.DefensiveContribution)
}

func TestRegistry_AddFixture(t *testing.T) {
	reg := registry.New()
	f := registrytest.Fixture(1, 1, 1, 2, false)

	require.NoError(t, reg.AddFixture(f))
	assert.ErrorIs(t, reg.AddFixture(f), store.ErrDuplicateKey)
	assert.Equal(t, 2, reg.TeamFixtures.Len(), "duplicate must not add team fixtures")

	self := registrytest.Fixture(2, 1, 3, 3, false)
	assert.Error(t, reg.AddFixture(self))
	assert.Equal(t, 1, reg.Fixtures.Len())

	tf, err := reg.TeamFixture(1, 2)
	require.NoError(t, err)
	assert.Equal(t, f.Away, tf)
}

func TestRegistry_AddFixtureSidesTakeFixtureID(t *testing.T) {
	reg := registry.New()
	first := registrytest.Fixture(1, 1, 1, 2, false)
	first.Home.FixtureID, first.Away.FixtureID = 0, 0
	second := registrytest.Fixture(2, 1, 3, 2, false)
	second.Home.FixtureID, second.Away.FixtureID = 7, 7

	require.NoError(t, reg.AddFixture(first))
	require.NoError(t, reg.AddFixture(second))
	assert.Equal(t, 4, reg.TeamFixtures.Len())

	tfs, err := reg.TeamFixturesByTeam(3)
	require.NoError(t, err)
	require.Len(t, tfs, 1)
	assert.Equal(t, 2, tfs[0].FixtureID)

	stored, err := reg.Fixture(2)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Home.FixtureID)
	assert.Equal(t, 2, stored.Away.FixtureID)
}

func TestRegistry_PlayerFixturesByPlayerAndGameweek(t *testing.T) {
	reg := registrytest.New(t, registrytest.Options{})

	all, err := reg.PlayerFixturesByPlayer(11)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	gw := all[0].Gameweek

	pfs, err := reg.PlayerFixturesByPlayerAndGameweek(11, gw)
	require.NoError(t, err)
	require.NotEmpty(t, pfs)
	for _, pf := range pfs {
		assert.Equal(t, 11, pf.PlayerID)
		assert.Equal(t, gw, pf.Gameweek)
	}

	pfs, err = reg.PlayerFixtures.GetList(registry.IndexPlayerGameweek, registry.PlayerGameweek{PlayerID: 11, Gameweek: 99})
	require.NoError(t, err)
	assert.Empty(t, pfs)
}

func TestRegistry_AddPlayerFixtureFillsTeam(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddFixture(registrytest.Fixture(7, 1, 3, 4, false)))

	require.NoError(t, reg.AddPlayerFixture(model.PlayerFixture{PlayerID: 41, FixtureID: 7, Gameweek: 1, WasHome: false}))
	pf, err := reg.PlayerFixture(7, 41)
	require.NoError(t, err)
	assert.Equal(t, 4, pf.TeamID)

	err = reg.AddPlayerFixture(model.PlayerFixture{PlayerID: 41, FixtureID: 8, Gameweek: 1})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = reg.AddPlayerFixture(model.PlayerFixture{PlayerID: 41, FixtureID: 7, Gameweek: 1})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestRegistry_FreezeAndStats(t *testing.T) {
	reg := registrytest.New(t, registrytest.Options{})

	assert.ErrorIs(t, reg.AddTeam(registrytest.Team(9)), store.ErrStoreFrozen)

	stats := reg.Stats()
	require.Len(t, stats, 6)
	for _, s := range stats {
		assert.True(t, s.Frozen, s.Name)
	}
	assert.Equal(t, "player_fixtures", stats[5].Name)
	assert.Equal(t, 6*2*8, stats[5].Records)
}

func TestRegistry_NextGameweek(t *testing.T) {
	reg := registrytest.New(t, registrytest.Options{Gameweeks: 6, Played: 4})
	assert.Equal(t, 5, reg.NextGameweek())
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, reg.GameweekIDs())

	done := registrytest.New(t, registrytest.Options{Gameweeks: 3, Played: 3})
	assert.Equal(t, 4, done.NextGameweek())

	assert.Equal(t, 1, registry.New().NextGameweek())
}

func TestRegistry_DynamicIndexNames(t *testing.T) {
	reg := registrytest.New(t, registrytest.Options{})

	f, err := reg.Fixtures.GetOne(registry.IndexFixtureID, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Gameweek)

	pfs, err := reg.PlayerFixtures.GetList(registry.IndexFixtureTeam, registry.FixtureTeam{FixtureID: 100, TeamID: f.Home.TeamID})
	require.NoError(t, err)
	assert.Len(t, pfs, 4)

	_, err = reg.Players.GetList("web_name", "P11")
	assert.ErrorIs(t, err, store.ErrUnsupportedIndex)
}
