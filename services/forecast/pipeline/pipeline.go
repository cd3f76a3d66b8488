// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline wires the memoized forecast graph.
//
// # Graph
//
//	season(next_gameweek)
//	  └─ gameweek_prediction(next_gameweek, target_gameweek, min_history_gws, model_variant)
//	       └─ gameweek_predictions(next_gameweek, [target_gameweeks], min_history_gws, model_variant)
//	            └─ score(next_gameweek, sorted [target_gameweeks], min_history_gws, squad_size, model_variant)
//
// Each node calls its dependency with the subset of parameters the
// dependency is keyed on, so sibling requests share upstream work.
//
// # Target order
//
// Predict keeps the caller's target order, and its key is order
// significant. Score does not depend on order: targets are sorted before
// the key is built and before predictions are requested, so [6, 5] and
// [5, 6] share one score entry and one predictions entry.
package pipeline

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianFPL/services/forecast/forecast"
	"github.com/AleutianAI/AleutianFPL/services/forecast/memo"
	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/prediction"
	"github.com/AleutianAI/AleutianFPL/services/forecast/registry"
	"github.com/AleutianAI/AleutianFPL/services/forecast/season"
)

// Node names as reported by CacheInfo.
const (
	NodeSeason              = "season"
	NodeGameweekPrediction  = "gameweek_prediction"
	NodeGameweekPredictions = "gameweek_predictions"
	NodeScore               = "score"
)

var configValidate = validator.New()

// Config holds the pipeline defaults.
type Config struct {
	// MinHistory is the default number of gameweeks of player history.
	MinHistory int `validate:"min=1,max=38"`

	// SquadSize is the default number of players scored.
	SquadSize int `validate:"min=1"`

	// Variant selects the player xG and xA models.
	Variant forecast.Variant `validate:"oneof=form share"`

	// MaxEntries bounds every node cache. Zero is unbounded.
	MaxEntries int `validate:"min=0"`
}

// DefaultConfig returns the defaults: 5 gameweeks of history, a squad of
// 11, form models, unbounded caches.
func DefaultConfig() Config {
	return Config{
		MinHistory: 5,
		SquadSize:  11,
		Variant:    forecast.VariantForm,
	}
}

// Pipeline is the memoized forecast graph over one registry.
//
// Thread Safety:
//
//	Safe for concurrent use. The registry must be frozen.
type Pipeline struct {
	reg *registry.Registry
	cfg Config

	season      *memo.Node[SeasonParams, *season.Season]
	gameweek    *memo.Node[GameweekParams, *prediction.GameweekPrediction]
	predictions *memo.Node[PredictionsParams, *prediction.GameweekPredictions]
	score       *memo.Node[ScoreParams, int]

	nodes *memo.Group
}

// New builds the graph over reg.
//
// Inputs:
//
//	reg - Frozen registry. Must not be nil.
//	cfg - Pipeline defaults, validated.
//
// Outputs:
//
//	*Pipeline - The pipeline with empty caches.
//	error - Non-nil if cfg is invalid.
func New(reg *registry.Registry, cfg Config) (*Pipeline, error) {
	if reg == nil {
		return nil, fmt.Errorf("pipeline: registry is required")
	}
	if err := configValidate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("pipeline: invalid config: %w", err)
	}

	p := &Pipeline{reg: reg, cfg: cfg, nodes: memo.NewGroup()}
	opts := []memo.Option{memo.WithMaxEntries(cfg.MaxEntries)}

	var err error
	if p.season, err = memo.New[SeasonParams, *season.Season](NodeSeason, p.computeSeason, opts...); err != nil {
		return nil, err
	}
	if p.gameweek, err = memo.New[GameweekParams, *prediction.GameweekPrediction](NodeGameweekPrediction, p.computeGameweek, opts...); err != nil {
		return nil, err
	}
	if p.predictions, err = memo.New[PredictionsParams, *prediction.GameweekPredictions](NodeGameweekPredictions, p.computePredictions, opts...); err != nil {
		return nil, err
	}
	if p.score, err = memo.New[ScoreParams, int](NodeScore, p.computeScore, opts...); err != nil {
		return nil, err
	}
	if err := p.nodes.Register(p.season, p.gameweek, p.predictions, p.score); err != nil {
		return nil, err
	}
	return p, nil
}

// Registry returns the registry the pipeline reads.
func (p *Pipeline) Registry() *registry.Registry {
	return p.reg
}

// Config returns the pipeline defaults.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Predict returns predictions for the requested gameweeks in request
// order.
//
// Outputs:
//
//	*prediction.GameweekPredictions - Shared, read-only result.
//	error - ErrInvalidParams for a bad request, *memo.ComputationError if
//	        a computation failed.
func (p *Pipeline) Predict(ctx context.Context, req PredictRequest) (*prediction.GameweekPredictions, error) {
	params, err := req.resolve(p.reg, p.cfg)
	if err != nil {
		return nil, err
	}
	return p.predictions.Get(ctx, params)
}

// Score returns the summed actual points of the top SquadSize players by
// predicted points. Every target gameweek must be played: an unfinished
// one fails with prediction.ErrNoActualPoints even if the picked players
// have points from the others.
func (p *Pipeline) Score(ctx context.Context, req ScoreRequest) (int, error) {
	params, err := req.resolve(p.reg, p.cfg)
	if err != nil {
		return 0, err
	}
	return p.score.Get(ctx, params)
}

// Season returns the replayed season before nextGameweek.
func (p *Pipeline) Season(ctx context.Context, nextGameweek int) (*season.Season, error) {
	if err := checkNext(p.reg, nextGameweek); err != nil {
		return nil, err
	}
	return p.season.Get(ctx, SeasonParams{NextGameweek: nextGameweek})
}

// ClearCache clears every node of the graph.
func (p *Pipeline) ClearCache() {
	p.nodes.ClearAll()
}

// CacheInfo returns the cache size of every node by name.
func (p *Pipeline) CacheInfo() map[string]int {
	return p.nodes.Sizes()
}

// CacheStats returns per-node statistics in graph order.
func (p *Pipeline) CacheStats() []memo.Stats {
	return p.nodes.Stats()
}

func (p *Pipeline) computeSeason(ctx context.Context, params SeasonParams) (*season.Season, error) {
	return season.Replay(ctx, p.reg, params.NextGameweek)
}

func (p *Pipeline) computeGameweek(ctx context.Context, params GameweekParams) (*prediction.GameweekPrediction, error) {
	s, err := p.season.Get(ctx, SeasonParams{NextGameweek: params.NextGameweek})
	if err != nil {
		return nil, err
	}
	models, err := forecast.NewModels(s, params.MinHistory, params.Variant)
	if err != nil {
		return nil, err
	}

	fixtures, err := p.reg.FixturesByGameweek(params.TargetGameweek)
	if err != nil {
		return nil, err
	}
	out := prediction.NewGameweekPrediction(params.TargetGameweek)
	for _, f := range fixtures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.predictFixture(models, f, out); err != nil {
			return nil, fmt.Errorf("fixture %d: %w", f.ID, err)
		}
	}
	return out, nil
}

func (p *Pipeline) predictFixture(models forecast.Models, f model.Fixture, out *prediction.GameweekPrediction) error {
	for _, side := range model.Sides {
		cs, err := models.CleanSheet.Predict(f, side)
		if err != nil {
			return err
		}
		out.AddTeam(prediction.TeamFixturePrediction{
			Fixture:    f.TeamFixture(side),
			OpponentID: f.Opponent(side).TeamID,
			Side:       side,
			CleanSheet: cs,
		})
	}

	pfs, err := p.reg.PlayerFixturesByFixture(f.ID)
	if err != nil {
		return err
	}
	for _, pf := range pfs {
		fp := prediction.PlayerFixturePrediction{Fixture: pf}
		if fp.CleanSheet, err = models.PlayerCleanSheet.Predict(pf, f); err != nil {
			return err
		}
		if fp.XG, err = models.PlayerXG.Predict(pf, f); err != nil {
			return err
		}
		if fp.XA, err = models.PlayerXA.Predict(pf, f); err != nil {
			return err
		}
		if fp.DC, err = models.PlayerDC.Predict(pf, f); err != nil {
			return err
		}
		out.AddPlayer(fp)
	}
	return nil
}

func (p *Pipeline) computePredictions(ctx context.Context, params PredictionsParams) (*prediction.GameweekPredictions, error) {
	gws := make([]*prediction.GameweekPrediction, 0, len(params.TargetGameweeks))
	for _, target := range params.TargetGameweeks {
		gw, err := p.gameweek.Get(ctx, GameweekParams{
			NextGameweek:   params.NextGameweek,
			TargetGameweek: target,
			MinHistory:     params.MinHistory,
			Variant:        params.Variant,
		})
		if err != nil {
			return nil, err
		}
		gws = append(gws, gw)
	}
	return prediction.Combine(p.reg, gws)
}

func (p *Pipeline) computeScore(ctx context.Context, params ScoreParams) (int, error) {
	for _, gw := range params.TargetGameweeks {
		g, err := p.reg.Gameweek(gw)
		if err != nil {
			return 0, err
		}
		if !g.Finished {
			return 0, fmt.Errorf("gameweek %d: %w", gw, prediction.ErrNoActualPoints)
		}
	}
	preds, err := p.predictions.Get(ctx, PredictionsParams{
		NextGameweek:    params.NextGameweek,
		TargetGameweeks: params.TargetGameweeks,
		MinHistory:      params.MinHistory,
		Variant:         params.Variant,
	})
	if err != nil {
		return 0, err
	}
	return prediction.SumActualPoints(preds.Top(prediction.ByPoints, params.SquadSize))
}
