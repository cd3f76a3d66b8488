// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry holds every FPL record store of one season.
//
// A Registry is constructed once, populated during bootstrap and frozen.
// It is passed explicitly to every component that reads records; there is
// no package-level state. Each query method is served by a declared index.
package registry

import (
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/store"
)

// Index names. They are also accepted by the stores' GetOne and GetList.
const (
	IndexTeamID         = "team_id"
	IndexGameweek       = "gameweek"
	IndexFixtureID      = "fixture_id"
	IndexFixtureTeam    = "fixture_id,team_id"
	IndexPlayerID       = "player_id"
	IndexPlayerType     = "player_type"
	IndexFixturePlayer  = "fixture_id,player_id"
	IndexTeamGameweek   = "team_id,gameweek"
	IndexPlayerGameweek = "player_id,gameweek"
)

// FixtureTeam is the compound key (fixture_id, team_id).
type FixtureTeam struct {
	FixtureID int
	TeamID    int
}

// TeamGameweek is the compound key (team_id, gameweek).
type TeamGameweek struct {
	TeamID   int
	Gameweek int
}

// PlayerGameweek is the compound key (player_id, gameweek).
type PlayerGameweek struct {
	PlayerID int
	Gameweek int
}

// Registry is the explicit collection of all record stores.
//
// Thread Safety:
//
//	Safe for concurrent use. Writes are expected only before Freeze.
type Registry struct {
	Teams          *store.Store[model.Team]
	Gameweeks      *store.Store[model.Gameweek]
	Fixtures       *store.Store[model.Fixture]
	TeamFixtures   *store.Store[model.TeamFixture]
	Players        *store.Store[model.Player]
	PlayerFixtures *store.Store[model.PlayerFixture]

	teamByID *store.UniqueIndex[model.Team, int]

	gameweekByID *store.UniqueIndex[model.Gameweek, int]

	fixtureByID        *store.UniqueIndex[model.Fixture, int]
	fixturesByGameweek *store.ListIndex[model.Fixture, int]

	teamFixtureByKey   *store.UniqueIndex[model.TeamFixture, FixtureTeam]
	teamFixturesByTeam *store.ListIndex[model.TeamFixture, int]

	playerByID    *store.UniqueIndex[model.Player, int]
	playersByTeam *store.ListIndex[model.Player, int]
	playersByType *store.ListIndex[model.Player, model.PlayerType]

	pfByKey            *store.UniqueIndex[model.PlayerFixture, model.PlayerFixtureKey]
	pfByFixture        *store.ListIndex[model.PlayerFixture, int]
	pfByFixtureTeam    *store.ListIndex[model.PlayerFixture, FixtureTeam]
	pfByPlayer         *store.ListIndex[model.PlayerFixture, int]
	pfByGameweek       *store.ListIndex[model.PlayerFixture, int]
	pfByTeamGameweek   *store.ListIndex[model.PlayerFixture, TeamGameweek]
	pfByPlayerGameweek *store.ListIndex[model.PlayerFixture, PlayerGameweek]
}

// New returns an empty registry with every index declared.
func New() *Registry {
	r := &Registry{
		teamByID: store.Unique(IndexTeamID, func(t model.Team) int { return t.ID }),

		gameweekByID: store.Unique(IndexGameweek, func(g model.Gameweek) int { return g.ID }),

		fixtureByID:        store.Unique(IndexFixtureID, func(f model.Fixture) int { return f.ID }),
		fixturesByGameweek: store.List(IndexGameweek, func(f model.Fixture) int { return f.Gameweek }),

		teamFixtureByKey: store.Unique(IndexFixtureTeam, func(tf model.TeamFixture) FixtureTeam {
			return FixtureTeam{FixtureID: tf.FixtureID, TeamID: tf.TeamID}
		}),
		teamFixturesByTeam: store.List(IndexTeamID, func(tf model.TeamFixture) int { return tf.TeamID }),

		playerByID:    store.Unique(IndexPlayerID, func(p model.Player) int { return p.ID }),
		playersByTeam: store.List(IndexTeamID, func(p model.Player) int { return p.TeamID }),
		playersByType: store.List(IndexPlayerType, func(p model.Player) model.PlayerType { return p.Type }),

		pfByKey:     store.Unique(IndexFixturePlayer, func(pf model.PlayerFixture) model.PlayerFixtureKey { return pf.Key() }),
		pfByFixture: store.List(IndexFixtureID, func(pf model.PlayerFixture) int { return pf.FixtureID }),
		pfByFixtureTeam: store.List(IndexFixtureTeam, func(pf model.PlayerFixture) FixtureTeam {
			return FixtureTeam{FixtureID: pf.FixtureID, TeamID: pf.TeamID}
		}),
		pfByPlayer:   store.List(IndexPlayerID, func(pf model.PlayerFixture) int { return pf.PlayerID }),
		pfByGameweek: store.List(IndexGameweek, func(pf model.PlayerFixture) int { return pf.Gameweek }),
		pfByTeamGameweek: store.List(IndexTeamGameweek, func(pf model.PlayerFixture) TeamGameweek {
			return TeamGameweek{TeamID: pf.TeamID, Gameweek: pf.Gameweek}
		}),
		pfByPlayerGameweek: store.List(IndexPlayerGameweek, func(pf model.PlayerFixture) PlayerGameweek {
			return PlayerGameweek{PlayerID: pf.PlayerID, Gameweek: pf.Gameweek}
		}),
	}

	r.Teams = store.MustNew[model.Team]("teams", r.teamByID)
	r.Gameweeks = store.MustNew[model.Gameweek]("gameweeks", r.gameweekByID)
	r.Fixtures = store.MustNew[model.Fixture]("fixtures", r.fixtureByID, r.fixturesByGameweek)
	r.TeamFixtures = store.MustNew[model.TeamFixture]("team_fixtures", r.teamFixtureByKey, r.teamFixturesByTeam)
	r.Players = store.MustNew[model.Player]("players", r.playerByID, r.playersByTeam, r.playersByType)
	r.PlayerFixtures = store.MustNew[model.PlayerFixture]("player_fixtures",
		r.pfByKey, r.pfByFixture, r.pfByFixtureTeam, r.pfByPlayer, r.pfByGameweek, r.pfByTeamGameweek, r.pfByPlayerGameweek)
	return r
}

// AddTeam adds a team.
func (r *Registry) AddTeam(t model.Team) error {
	return r.Teams.Add(t)
}

// AddGameweek adds a gameweek.
func (r *Registry) AddGameweek(g model.Gameweek) error {
	return r.Gameweeks.Add(g)
}

// AddFixture adds a fixture and its two team fixtures. Both sides take
// the fixture's ID, so nothing is stored unless all three records are.
//
// Outputs:
//
//	error - store.ErrDuplicateKey if the fixture ID is taken, or an error
//	        if both sides name the same team.
func (r *Registry) AddFixture(f model.Fixture) error {
	if f.Home.TeamID == f.Away.TeamID {
		return fmt.Errorf("fixture %d: team %d plays itself", f.ID, f.Home.TeamID)
	}
	f.Home.FixtureID, f.Away.FixtureID = f.ID, f.ID
	if err := r.Fixtures.Add(f); err != nil {
		return err
	}
	// The fixture ID was free and both sides carry it, so neither
	// (fixture, team) pair can collide.
	if err := r.TeamFixtures.AddBatch([]model.TeamFixture{f.Home, f.Away}); err != nil {
		return fmt.Errorf("fixture %d: %w", f.ID, err)
	}
	return nil
}

// AddPlayer adds a player.
func (r *Registry) AddPlayer(p model.Player) error {
	return r.Players.Add(p)
}

// AddPlayerFixture adds a player fixture. TeamID is filled from the
// fixture when zero, so the fixture must be added first.
func (r *Registry) AddPlayerFixture(pf model.PlayerFixture) error {
	if pf.TeamID == 0 {
		f, err := r.Fixture(pf.FixtureID)
		if err != nil {
			return fmt.Errorf("player %d: %w", pf.PlayerID, err)
		}
		pf.TeamID = f.TeamFixture(pf.Side()).TeamID
	}
	return r.PlayerFixtures.Add(pf)
}

// Freeze ends bootstrap on every store.
func (r *Registry) Freeze() {
	r.Teams.Freeze()
	r.Gameweeks.Freeze()
	r.Fixtures.Freeze()
	r.TeamFixtures.Freeze()
	r.Players.Freeze()
	r.PlayerFixtures.Freeze()
}

// Stats returns the stats of every store.
func (r *Registry) Stats() []store.Stats {
	return []store.Stats{
		r.Teams.Stats(),
		r.Gameweeks.Stats(),
		r.Fixtures.Stats(),
		r.TeamFixtures.Stats(),
		r.Players.Stats(),
		r.PlayerFixtures.Stats(),
	}
}

// Team returns a team by ID.
func (r *Registry) Team(id int) (model.Team, error) {
	return r.teamByID.Get(id)
}

// Gameweek returns a gameweek by number.
func (r *Registry) Gameweek(id int) (model.Gameweek, error) {
	return r.gameweekByID.Get(id)
}

// Fixture returns a fixture by ID.
func (r *Registry) Fixture(id int) (model.Fixture, error) {
	return r.fixtureByID.Get(id)
}

// FixturesByGameweek returns the fixtures of a gameweek in insertion order.
func (r *Registry) FixturesByGameweek(gw int) ([]model.Fixture, error) {
	return r.fixturesByGameweek.Get(gw)
}

// TeamFixture returns one team's side of a fixture.
func (r *Registry) TeamFixture(fixtureID, teamID int) (model.TeamFixture, error) {
	return r.teamFixtureByKey.Get(FixtureTeam{FixtureID: fixtureID, TeamID: teamID})
}

// TeamFixturesByTeam returns every fixture side played by a team.
func (r *Registry) TeamFixturesByTeam(teamID int) ([]model.TeamFixture, error) {
	return r.teamFixturesByTeam.Get(teamID)
}

// Player returns a player by ID.
func (r *Registry) Player(id int) (model.Player, error) {
	return r.playerByID.Get(id)
}

// PlayersByTeam returns the players of a team.
func (r *Registry) PlayersByTeam(teamID int) ([]model.Player, error) {
	return r.playersByTeam.Get(teamID)
}

// PlayersByType returns the players of one position.
func (r *Registry) PlayersByType(t model.PlayerType) ([]model.Player, error) {
	return r.playersByType.Get(t)
}

// PlayerFixture returns one player's record for one fixture.
func (r *Registry) PlayerFixture(fixtureID, playerID int) (model.PlayerFixture, error) {
	return r.pfByKey.Get(model.PlayerFixtureKey{FixtureID: fixtureID, PlayerID: playerID})
}

// PlayerFixturesByFixture returns every player record of a fixture.
func (r *Registry) PlayerFixturesByFixture(fixtureID int) ([]model.PlayerFixture, error) {
	return r.pfByFixture.Get(fixtureID)
}

// PlayerFixturesByFixtureAndTeam returns one team's player records of a
// fixture.
func (r *Registry) PlayerFixturesByFixtureAndTeam(fixtureID, teamID int) ([]model.PlayerFixture, error) {
	return r.pfByFixtureTeam.Get(FixtureTeam{FixtureID: fixtureID, TeamID: teamID})
}

// PlayerFixturesByPlayer returns a player's records in insertion order.
func (r *Registry) PlayerFixturesByPlayer(playerID int) ([]model.PlayerFixture, error) {
	return r.pfByPlayer.Get(playerID)
}

// PlayerFixturesByGameweek returns every player record of a gameweek.
func (r *Registry) PlayerFixturesByGameweek(gw int) ([]model.PlayerFixture, error) {
	return r.pfByGameweek.Get(gw)
}

// PlayerFixturesByPlayerAndGameweek returns a player's records of one
// gameweek. Double gameweeks yield two records.
func (r *Registry) PlayerFixturesByPlayerAndGameweek(playerID, gw int) ([]model.PlayerFixture, error) {
	return r.pfByPlayerGameweek.Get(PlayerGameweek{PlayerID: playerID, Gameweek: gw})
}

// PlayerFixturesByTeamAndGameweek returns a team's player records of a
// gameweek. Double gameweeks yield records of both fixtures.
func (r *Registry) PlayerFixturesByTeamAndGameweek(teamID, gw int) ([]model.PlayerFixture, error) {
	return r.pfByTeamGameweek.Get(TeamGameweek{TeamID: teamID, Gameweek: gw})
}

// TeamTotals sums the player records of one team in one fixture.
type TeamTotals struct {
	XG                    float64
	XA                    float64
	DefensiveContribution float64
	Points                float64
}

// TeamFixtureTotals returns the summed player statistics of one side of a
// fixture.
func (r *Registry) TeamFixtureTotals(fixtureID, teamID int) (TeamTotals, error) {
	pfs, err := r.PlayerFixturesByFixtureAndTeam(fixtureID, teamID)
	if err != nil {
		return TeamTotals{}, err
	}
	var t TeamTotals
	for _, pf := range pfs {
		t.XG += pf.XG
		t.XA += pf.XA
		t.DefensiveContribution += float64(pf.DefensiveContribution)
		if pf.TotalPoints != nil {
			t.Points += float64(*pf.TotalPoints)
		}
	}
	return t, nil
}

// GameweekIDs returns every gameweek number in ascending order.
func (r *Registry) GameweekIDs() []int {
	gws := r.Gameweeks.Items()
	ids := make([]int, 0, len(gws))
	for _, g := range gws {
		ids = append(ids, g.ID)
	}
	slices.Sort(ids)
	return ids
}

// NextGameweek returns the first gameweek that is not finished. When every
// gameweek is finished it returns the one after the last.
func (r *Registry) NextGameweek() int {
	ids := r.GameweekIDs()
	for _, id := range ids {
		g, err := r.Gameweek(id)
		if err == nil && !g.Finished {
			return id
		}
	}
	if len(ids) == 0 {
		return 1
	}
	return ids[len(ids)-1] + 1
}
