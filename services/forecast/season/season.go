// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package season replays played gameweeks into running statistics.
//
// A Season is built gameweek by gameweek with Play, or in one step with
// Replay. Once returned by Replay it is never modified and may be shared
// between goroutines.
package season

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianFPL/services/forecast/aggregate"
	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/registry"
)

// Sentinel errors for season replay.
var (
	// ErrOutOfOrder is returned when a fixture is played out of gameweek order.
	ErrOutOfOrder = errors.New("fixture played out of order")

	// ErrUnknownTeam is returned when a fixture names a team the season does
	// not track.
	ErrUnknownTeam = errors.New("unknown team")

	// ErrUnknownPlayer is returned when a player record names a player the
	// season does not track.
	ErrUnknownPlayer = errors.New("unknown player")
)

// Scope selects the normalisation base of form statistics.
type Scope int

const (
	// Own normalises by the team's own difficulty profile.
	Own Scope = iota

	// League normalises by the whole league's difficulty profile.
	League
)

type entry struct {
	fixtureID  int
	side       model.Side
	difficulty int
	values     [Points + 1]float64
}

// TeamStats holds one team's statistics.
type TeamStats struct {
	TeamID int

	season  *Season
	stats   [DefensiveContribution + 1]Stats
	history map[int][]entry
}

// Stats returns the team's accumulated statistics for a team metric.
func (t *TeamStats) Stats(m Metric) Stats {
	if int(m) >= len(t.stats) {
		return Stats{}
	}
	return t.stats[m]
}

// Last sums a metric over the team's fixtures of the last n played
// gameweeks.
func (t *TeamStats) Last(m Metric, n int) aggregate.Aggregate {
	var out aggregate.Aggregate
	for _, e := range t.season.window(t.history, n) {
		out = out.Add(aggregate.New(e.values[m], 1))
	}
	return out
}

// FormNorm is Last with each fixture's value divided by the difficulty
// norm of its fixture, making form comparable across schedules. Fixtures
// whose norm is 0 contribute 0.
func (t *TeamStats) FormNorm(m Metric, n int, scope Scope) aggregate.Aggregate {
	base := t.Stats(m)
	if scope == League {
		base = t.season.League(m)
	}
	var out aggregate.Aggregate
	for _, e := range t.season.window(t.history, n) {
		v := 0.0
		if norm := base.Norm(e.difficulty); norm != 0 {
			v = e.values[m] / norm
		}
		out = out.Add(aggregate.New(v, 1))
	}
	return out
}

// PlayerStats holds one player's statistics over played fixtures.
type PlayerStats struct {
	PlayerID int
	TeamID   int

	season  *Season
	stats   [DefensiveContribution + 1]Stats
	history map[int][]entry
}

// Stats returns the player's accumulated statistics for a team metric.
func (p *PlayerStats) Stats(m Metric) Stats {
	if int(m) >= len(p.stats) {
		return Stats{}
	}
	return p.stats[m]
}

// Last sums a metric over the player's records of the last n played
// gameweeks. Count is the number of records.
func (p *PlayerStats) Last(m Metric, n int) aggregate.Aggregate {
	var out aggregate.Aggregate
	for _, e := range p.season.window(p.history, n) {
		out = out.Add(aggregate.New(e.values[m], 1))
	}
	return out
}

// Share returns the player's fraction of the team total of a metric over
// the last n gameweeks, 0 when the team total is 0.
func (p *PlayerStats) Share(m Metric, n int) float64 {
	team, ok := p.season.teams[p.TeamID]
	if !ok {
		return 0
	}
	teamTotal := team.Last(m, n).Total
	if teamTotal == 0 {
		return 0
	}
	return p.Last(m, n).Total / teamTotal
}

// Season is the running state after a number of played gameweeks.
type Season struct {
	gameweek int
	reg      *registry.Registry
	league   [DefensiveContribution + 1]Stats
	teams    map[int]*TeamStats
	players  map[int]*PlayerStats
}

// New returns a season with no gameweek played, tracking every team and
// player of the registry.
func New(reg *registry.Registry) *Season {
	s := &Season{
		reg:     reg,
		teams:   make(map[int]*TeamStats),
		players: make(map[int]*PlayerStats),
	}
	for _, t := range reg.Teams.Items() {
		s.teams[t.ID] = &TeamStats{TeamID: t.ID, season: s, history: make(map[int][]entry)}
	}
	for _, p := range reg.Players.Items() {
		s.players[p.ID] = &PlayerStats{PlayerID: p.ID, TeamID: p.TeamID, season: s, history: make(map[int][]entry)}
	}
	return s
}

// Replay plays gameweeks 1..nextGameweek-1 and returns the season.
//
// Description:
//
//	Gameweeks without fixtures still advance the season. Unfinished
//	fixtures (postponed or not yet played) are skipped. Cancellation is
//	checked between gameweeks.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	reg - Frozen registry.
//	nextGameweek - First gameweek not to play. Must be at least 1.
//
// Outputs:
//
//	*Season - Season with Gameweek() == nextGameweek-1.
//	error - Non-nil if a record is inconsistent or ctx is done.
func Replay(ctx context.Context, reg *registry.Registry, nextGameweek int) (*Season, error) {
	if nextGameweek < 1 {
		return nil, fmt.Errorf("next gameweek %d must be at least 1", nextGameweek)
	}
	s := New(reg)
	for gw := 1; gw < nextGameweek; gw++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fixtures, err := reg.FixturesByGameweek(gw)
		if err != nil {
			return nil, fmt.Errorf("gameweek %d: %w", gw, err)
		}
		if err := s.Play(fixtures); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Gameweek returns the last played gameweek, 0 before any.
func (s *Season) Gameweek() int {
	return s.gameweek
}

// League returns the league-wide statistics of a team metric.
func (s *Season) League(m Metric) Stats {
	if int(m) >= len(s.league) {
		return Stats{}
	}
	return s.league[m]
}

// Team returns a team's statistics.
func (s *Season) Team(id int) (*TeamStats, error) {
	t, ok := s.teams[id]
	if !ok {
		return nil, fmt.Errorf("team %d: %w", id, ErrUnknownTeam)
	}
	return t, nil
}

// Player returns a player's statistics.
func (s *Season) Player(id int) (*PlayerStats, error) {
	p, ok := s.players[id]
	if !ok {
		return nil, fmt.Errorf("player %d: %w", id, ErrUnknownPlayer)
	}
	return p, nil
}

// Play plays the fixtures of the next gameweek and advances the season.
//
// Every fixture must belong to gameweek Gameweek()+1. On error the season
// is left partially updated and must be discarded.
func (s *Season) Play(fixtures []model.Fixture) error {
	gw := s.gameweek + 1
	for _, f := range fixtures {
		if f.Gameweek != gw {
			return fmt.Errorf("fixture %d in gameweek %d while playing %d: %w", f.ID, f.Gameweek, gw, ErrOutOfOrder)
		}
		if !f.Finished {
			continue
		}
		if err := s.playFixture(f); err != nil {
			return fmt.Errorf("fixture %d: %w", f.ID, err)
		}
	}
	s.gameweek = gw
	return nil
}

func (s *Season) playFixture(f model.Fixture) error {
	for _, side := range model.Sides {
		tf := f.TeamFixture(side)
		if err := validDifficulty(tf.Difficulty); err != nil {
			return err
		}
		team, err := s.Team(tf.TeamID)
		if err != nil {
			return err
		}
		totals, err := s.reg.TeamFixtureTotals(f.ID, tf.TeamID)
		if err != nil {
			return err
		}

		e := entry{fixtureID: f.ID, side: side, difficulty: tf.Difficulty}
		e.values[CleanSheets] = f.CleanSheet(side)
		e.values[ExpectedGoals] = totals.XG
		e.values[ExpectedAssists] = totals.XA
		e.values[DefensiveContribution] = totals.DefensiveContribution
		e.values[Points] = totals.Points

		for _, m := range teamMetrics {
			s.league[m].add(side, tf.Difficulty, e.values[m])
			team.stats[m].add(side, tf.Difficulty, e.values[m])
		}
		team.history[f.Gameweek] = append(team.history[f.Gameweek], e)
	}

	pfs, err := s.reg.PlayerFixturesByFixture(f.ID)
	if err != nil {
		return err
	}
	for _, pf := range pfs {
		if !pf.Played() {
			continue
		}
		player, err := s.Player(pf.PlayerID)
		if err != nil {
			return err
		}
		side := pf.Side()
		difficulty := f.TeamFixture(side).Difficulty

		e := entry{fixtureID: f.ID, side: side, difficulty: difficulty}
		e.values[CleanSheets] = float64(pf.CleanSheets)
		e.values[ExpectedGoals] = pf.XG
		e.values[ExpectedAssists] = pf.XA
		e.values[DefensiveContribution] = float64(pf.DefensiveContribution)
		e.values[Minutes] = float64(pf.Minutes)
		e.values[Points] = float64(*pf.TotalPoints)

		for _, m := range teamMetrics {
			player.stats[m].add(side, difficulty, e.values[m])
		}
		player.history[f.Gameweek] = append(player.history[f.Gameweek], e)
	}
	return nil
}

// window returns the entries of the last n played gameweeks.
func (s *Season) window(history map[int][]entry, n int) []entry {
	var out []entry
	for i := 0; i < n; i++ {
		out = append(out, history[s.gameweek-i]...)
	}
	return out
}
