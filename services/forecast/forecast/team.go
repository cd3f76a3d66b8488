// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package forecast predicts fixture outcomes from a replayed season.
//
// Team models predict one metric for one side of a fixture. Player models
// combine a player's recent form with the team model of the same metric.
// Every model reads a *season.Season and never modifies it.
package forecast

import (
	"math"

	"github.com/AleutianAI/AleutianFPL/services/forecast/aggregate"
	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/season"
)

const (
	// FormWindow is the number of gameweeks of team form.
	FormWindow = 3

	// MinScaleSamples is the number of team fixtures at a difficulty needed
	// before the team's own difficulty profile replaces the league's.
	MinScaleSamples = 3

	cleanSheetDifficultyWeight = 0.6
	cleanSheetTeamWeight       = 0.4
)

// TeamModel predicts one metric for one side of a fixture.
type TeamModel interface {
	// Metric returns the predicted metric.
	Metric() season.Metric

	// Predict returns the expected value of the metric for the side.
	Predict(f model.Fixture, side model.Side) (aggregate.Aggregate, error)

	// Scale returns the difficulty multiplier applied to the side's form.
	Scale(f model.Fixture, side model.Side) (float64, error)
}

// CleanSheetModel blends the league clean sheet rate at the fixture's
// difficulty with the team's own record.
//
// Description:
//
//	prediction = 0.6 * league(difficulty)
//	           + 0.4 * blend(team side record, team overall record)
//
//	The team blend weighs the side record by its sample count and the
//	overall record by the remainder of a season.
type CleanSheetModel struct {
	season *season.Season
}

// NewCleanSheetModel returns a clean sheet model over s.
func NewCleanSheetModel(s *season.Season) *CleanSheetModel {
	return &CleanSheetModel{season: s}
}

// Metric returns season.CleanSheets.
func (m *CleanSheetModel) Metric() season.Metric {
	return season.CleanSheets
}

// Predict returns the clean sheet probability of the side.
func (m *CleanSheetModel) Predict(f model.Fixture, side model.Side) (aggregate.Aggregate, error) {
	tf := f.TeamFixture(side)
	team, err := m.season.Team(tf.TeamID)
	if err != nil {
		return aggregate.Aggregate{}, err
	}
	stats := team.Stats(season.CleanSheets)
	sideAgg := stats.Side(side)
	rest := math.Max(0, aggregate.MaxSampleWeight-sideAgg.Count)

	teamBlend := aggregate.WeightedAverage(
		aggregate.W(sideAgg, sideAgg.Count),
		aggregate.W(stats.Total(), rest),
	)
	return aggregate.WeightedAverage(
		aggregate.W(m.season.League(season.CleanSheets).Difficulty(tf.Difficulty), cleanSheetDifficultyWeight),
		aggregate.W(teamBlend, cleanSheetTeamWeight),
	), nil
}

// Scale returns 1: the difficulty is already part of the prediction.
func (m *CleanSheetModel) Scale(model.Fixture, model.Side) (float64, error) {
	return 1, nil
}

// FormModel predicts an attacking or defensive volume metric (xG, xA, DC)
// from the team's difficulty-normalised recent form.
//
// Description:
//
//	prediction = mean normalised form over FormWindow gameweeks * scale
//
//	scale is the team's own difficulty norm when it has at least
//	MinScaleSamples fixtures at the difficulty, the league norm otherwise.
type FormModel struct {
	season *season.Season
	metric season.Metric
}

// NewFormModel returns a form model of metric over s.
func NewFormModel(s *season.Season, metric season.Metric) *FormModel {
	return &FormModel{season: s, metric: metric}
}

// Metric returns the predicted metric.
func (m *FormModel) Metric() season.Metric {
	return m.metric
}

// Scale returns the difficulty multiplier of the side.
func (m *FormModel) Scale(f model.Fixture, side model.Side) (float64, error) {
	tf := f.TeamFixture(side)
	team, err := m.season.Team(tf.TeamID)
	if err != nil {
		return 0, err
	}
	own := team.Stats(m.metric)
	if own.Difficulty(tf.Difficulty).Count >= MinScaleSamples {
		return own.Norm(tf.Difficulty), nil
	}
	return m.season.League(m.metric).Norm(tf.Difficulty), nil
}

// Predict returns the expected metric of the side as a single sample.
func (m *FormModel) Predict(f model.Fixture, side model.Side) (aggregate.Aggregate, error) {
	tf := f.TeamFixture(side)
	team, err := m.season.Team(tf.TeamID)
	if err != nil {
		return aggregate.Aggregate{}, err
	}
	scale, err := m.Scale(f, side)
	if err != nil {
		return aggregate.Aggregate{}, err
	}
	form := team.FormNorm(m.metric, FormWindow, season.Own)
	return aggregate.New(form.P()*scale, 1), nil
}
