// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package forecast

import (
	"fmt"
	"math"

	"github.com/AleutianAI/AleutianFPL/services/forecast/aggregate"
	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/season"
)

// FullMatchMinutes is the appearance length at which a player is credited
// with the whole team clean sheet.
const FullMatchMinutes = 60.0

// PlayerModel predicts one metric for one player in one fixture.
type PlayerModel interface {
	Predict(pf model.PlayerFixture, f model.Fixture) (aggregate.Aggregate, error)
}

// PlayerCleanSheetModel credits the team clean sheet probability in
// proportion to the player's recent minutes, capped at FullMatchMinutes.
type PlayerCleanSheetModel struct {
	season  *season.Season
	team    TeamModel
	history int
}

// NewPlayerCleanSheetModel returns a player clean sheet model using the
// last history gameweeks of minutes.
func NewPlayerCleanSheetModel(s *season.Season, team TeamModel, history int) *PlayerCleanSheetModel {
	return &PlayerCleanSheetModel{season: s, team: team, history: history}
}

// Predict returns the player's clean sheet probability.
func (m *PlayerCleanSheetModel) Predict(pf model.PlayerFixture, f model.Fixture) (aggregate.Aggregate, error) {
	team, err := m.team.Predict(f, pf.Side())
	if err != nil {
		return aggregate.Aggregate{}, err
	}
	player, err := m.season.Player(pf.PlayerID)
	if err != nil {
		return aggregate.Aggregate{}, err
	}
	share := math.Min(1, player.Last(season.Minutes, m.history).P()/FullMatchMinutes)
	return aggregate.New(team.P()*share, 1), nil
}

// PlayerFormModel scales the player's recent per-appearance mean of a
// metric by the team model's difficulty scale.
type PlayerFormModel struct {
	season  *season.Season
	team    TeamModel
	history int
}

// NewPlayerFormModel returns a player form model for the team model's
// metric.
func NewPlayerFormModel(s *season.Season, team TeamModel, history int) *PlayerFormModel {
	return &PlayerFormModel{season: s, team: team, history: history}
}

// Predict returns the player's expected metric as a single sample.
func (m *PlayerFormModel) Predict(pf model.PlayerFixture, f model.Fixture) (aggregate.Aggregate, error) {
	scale, err := m.team.Scale(f, pf.Side())
	if err != nil {
		return aggregate.Aggregate{}, err
	}
	player, err := m.season.Player(pf.PlayerID)
	if err != nil {
		return aggregate.Aggregate{}, err
	}
	return aggregate.New(player.Last(m.team.Metric(), m.history).P()*scale, 1), nil
}

// PlayerShareModel gives the player their recent share of the team
// prediction.
type PlayerShareModel struct {
	season  *season.Season
	team    TeamModel
	history int
}

// NewPlayerShareModel returns a share model for the team model's metric.
func NewPlayerShareModel(s *season.Season, team TeamModel, history int) *PlayerShareModel {
	return &PlayerShareModel{season: s, team: team, history: history}
}

// Predict returns the player's share of the team prediction.
func (m *PlayerShareModel) Predict(pf model.PlayerFixture, f model.Fixture) (aggregate.Aggregate, error) {
	team, err := m.team.Predict(f, pf.Side())
	if err != nil {
		return aggregate.Aggregate{}, err
	}
	player, err := m.season.Player(pf.PlayerID)
	if err != nil {
		return aggregate.Aggregate{}, err
	}
	share := player.Share(m.team.Metric(), m.history)
	return aggregate.New(team.Total*share, team.Count), nil
}

// Models is the full model set used for one gameweek prediction.
type Models struct {
	CleanSheet TeamModel
	XG         TeamModel
	XA         TeamModel
	DC         TeamModel

	PlayerCleanSheet PlayerModel
	PlayerXG         PlayerModel
	PlayerXA         PlayerModel
	PlayerDC         PlayerModel
}

// Variant selects the player models for xG and xA.
type Variant string

const (
	// VariantForm uses PlayerFormModel for xG and xA.
	VariantForm Variant = "form"

	// VariantShare uses PlayerShareModel for xG and xA.
	VariantShare Variant = "share"
)

// NewModels builds the model set over s.
//
// Inputs:
//
//	s - Replayed season. Not modified.
//	history - Gameweeks of player history used by the player models. Must
//	          be positive.
//	variant - Player model variant for xG and xA.
//
// Outputs:
//
//	Models - The model set.
//	error - Non-nil if history is not positive or variant is unknown.
func NewModels(s *season.Season, history int, variant Variant) (Models, error) {
	if history < 1 {
		return Models{}, fmt.Errorf("history %d must be positive", history)
	}
	m := Models{
		CleanSheet: NewCleanSheetModel(s),
		XG:         NewFormModel(s, season.ExpectedGoals),
		XA:         NewFormModel(s, season.ExpectedAssists),
		DC:         NewFormModel(s, season.DefensiveContribution),
	}
	m.PlayerCleanSheet = NewPlayerCleanSheetModel(s, m.CleanSheet, history)
	m.PlayerDC = NewPlayerFormModel(s, m.DC, history)
	switch variant {
	case VariantForm, "":
		m.PlayerXG = NewPlayerFormModel(s, m.XG, history)
		m.PlayerXA = NewPlayerFormModel(s, m.XA, history)
	case VariantShare:
		m.PlayerXG = NewPlayerShareModel(s, m.XG, history)
		m.PlayerXA = NewPlayerShareModel(s, m.XA, history)
	default:
		return Models{}, fmt.Errorf("unknown model variant %q", variant)
	}
	return m, nil
}
