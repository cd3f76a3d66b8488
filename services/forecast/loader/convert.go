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
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/registry"
)

// ErrInvalidRecord is returned when a payload row fails validation.
var ErrInvalidRecord = errors.New("invalid record")

var recordValidate = validator.New()

func validateRecord(kind string, id int, row any) error {
	if err := recordValidate.Struct(row); err != nil {
		return fmt.Errorf("%w: %s %d: %v", ErrInvalidRecord, kind, id, err)
	}
	return nil
}

// ToGameweek converts a bootstrap event.
func ToGameweek(e EventPayload) (model.Gameweek, error) {
	if err := validateRecord("event", e.ID, e); err != nil {
		return model.Gameweek{}, err
	}
	deadline, err := time.Parse(time.RFC3339, e.DeadlineTime)
	if err != nil {
		return model.Gameweek{}, fmt.Errorf("%w: event %d: deadline: %v", ErrInvalidRecord, e.ID, err)
	}
	return model.Gameweek{ID: e.ID, Deadline: deadline, Finished: e.Finished}, nil
}

// ToTeam converts a bootstrap team.
func ToTeam(t TeamPayload) (model.Team, error) {
	if err := validateRecord("team", t.ID, t); err != nil {
		return model.Team{}, err
	}
	return model.Team{
		ID:                  t.ID,
		Name:                t.Name,
		StrengthOverallHome: t.StrengthOverallHome,
		StrengthOverallAway: t.StrengthOverallAway,
		StrengthAttackHome:  t.StrengthAttackHome,
		StrengthAttackAway:  t.StrengthAttackAway,
		StrengthDefenceHome: t.StrengthDefenceHome,
		StrengthDefenceAway: t.StrengthDefenceAway,
	}, nil
}

// ToPlayer converts a bootstrap element. Cost is converted from tenths.
func ToPlayer(e ElementPayload) (model.Player, error) {
	if err := validateRecord("element", e.ID, e); err != nil {
		return model.Player{}, err
	}
	return model.Player{
		ID:         e.ID,
		WebName:    e.WebName,
		FirstName:  e.FirstName,
		SecondName: e.SecondName,
		Type:       model.PlayerType(e.ElementType),
		TeamID:     e.Team,
		NowCost:    float64(e.NowCost) / 10,
		Status:     e.Status,
	}, nil
}

// ToFixture converts a fixtures row. The second result is false for a
// fixture without a gameweek.
func ToFixture(f FixturePayload) (model.Fixture, bool, error) {
	if err := validateRecord("fixture", f.ID, f); err != nil {
		return model.Fixture{}, false, err
	}
	if f.Event == nil {
		return model.Fixture{}, false, nil
	}
	return model.Fixture{
		ID:       f.ID,
		Gameweek: *f.Event,
		Finished: f.Finished,
		Home: model.TeamFixture{
			FixtureID:  f.ID,
			TeamID:     f.TeamH,
			Difficulty: f.TeamHDifficulty,
			Score:      f.TeamHScore,
		},
		Away: model.TeamFixture{
			FixtureID:  f.ID,
			TeamID:     f.TeamA,
			Difficulty: f.TeamADifficulty,
			Score:      f.TeamAScore,
		},
	}, true, nil
}

// ToPlayedFixture converts a history row.
func ToPlayedFixture(h HistoryPayload) (model.PlayerFixture, error) {
	if err := validateRecord("history of element", h.Element, h); err != nil {
		return model.PlayerFixture{}, err
	}
	return model.PlayerFixture{
		PlayerID:              h.Element,
		FixtureID:             h.Fixture,
		Gameweek:              h.Round,
		WasHome:               h.WasHome,
		TotalPoints:           model.IntPtr(h.TotalPoints),
		Minutes:               h.Minutes,
		Goals:                 h.GoalsScored,
		Assists:               h.Assists,
		CleanSheets:           h.CleanSheets,
		DefensiveContribution: h.DefensiveContribution,
		XG:                    float64(h.ExpectedGoals),
		XA:                    float64(h.ExpectedAssists),
		XGI:                   float64(h.ExpectedGoalInvolvements),
		XGC:                   float64(h.ExpectedGoalsConceded),
		Value:                 h.Value,
		Starts:                h.Starts,
	}, nil
}

// ToFutureFixture converts an upcoming fixture of playerID. The second
// result is false for a fixture without a gameweek.
func ToFutureFixture(playerID int, f FutureFixturePayload) (model.PlayerFixture, bool, error) {
	if err := validateRecord("fixture of element", playerID, f); err != nil {
		return model.PlayerFixture{}, false, err
	}
	if f.Event == nil {
		return model.PlayerFixture{}, false, nil
	}
	return model.PlayerFixture{
		PlayerID:  playerID,
		FixtureID: f.ID,
		Gameweek:  *f.Event,
		WasHome:   f.IsHome,
	}, true, nil
}

// Populate adds every record of p to reg. Fixtures come before player
// fixtures so their team can be resolved. Player fixtures of skipped
// fixtures are skipped too.
//
// Outputs:
//
//	error - ErrInvalidRecord for a malformed row, or a store error for a
//	        duplicate or dangling record. The registry is left partially
//	        populated on error.
func Populate(reg *registry.Registry, p Payloads) error {
	for _, e := range p.Bootstrap.Events {
		g, err := ToGameweek(e)
		if err != nil {
			return err
		}
		if err := reg.AddGameweek(g); err != nil {
			return fmt.Errorf("gameweek %d: %w", g.ID, err)
		}
	}
	for _, t := range p.Bootstrap.Teams {
		team, err := ToTeam(t)
		if err != nil {
			return err
		}
		if err := reg.AddTeam(team); err != nil {
			return fmt.Errorf("team %d: %w", team.ID, err)
		}
	}

	scheduled := make(map[int]bool, len(p.Fixtures))
	for _, row := range p.Fixtures {
		f, ok, err := ToFixture(row)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := reg.AddFixture(f); err != nil {
			return fmt.Errorf("fixture %d: %w", f.ID, err)
		}
		scheduled[f.ID] = true
	}

	for _, e := range p.Bootstrap.Elements {
		player, err := ToPlayer(e)
		if err != nil {
			return err
		}
		if err := reg.AddPlayer(player); err != nil {
			return fmt.Errorf("player %d: %w", player.ID, err)
		}
	}

	ids := make([]int, 0, len(p.Elements))
	for id := range p.Elements {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		summary := p.Elements[id]
		for _, h := range summary.History {
			pf, err := ToPlayedFixture(h)
			if err != nil {
				return err
			}
			if !scheduled[pf.FixtureID] {
				continue
			}
			if err := reg.AddPlayerFixture(pf); err != nil {
				return fmt.Errorf("player %d fixture %d: %w", id, pf.FixtureID, err)
			}
		}
		for _, row := range summary.Fixtures {
			pf, ok, err := ToFutureFixture(id, row)
			if err != nil {
				return err
			}
			if !ok || !scheduled[pf.FixtureID] {
				continue
			}
			if err := reg.AddPlayerFixture(pf); err != nil {
				return fmt.Errorf("player %d fixture %d: %w", id, pf.FixtureID, err)
			}
		}
	}
	return nil
}
