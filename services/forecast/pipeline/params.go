// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianFPL/services/forecast/forecast"
	"github.com/AleutianAI/AleutianFPL/services/forecast/memo"
	"github.com/AleutianAI/AleutianFPL/services/forecast/registry"
	"github.com/AleutianAI/AleutianFPL/services/forecast/store"
)

// ErrInvalidParams is returned when a request fails validation.
var ErrInvalidParams = errors.New("invalid parameters")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}

// lastGameweek returns the registry's highest gameweek, or 0 if it has none.
func lastGameweek(reg *registry.Registry) int {
	ids := reg.GameweekIDs()
	if len(ids) == 0 {
		return 0
	}
	return ids[len(ids)-1]
}

// checkNext rejects a next gameweek outside [1, last+1].
func checkNext(reg *registry.Registry, next int) error {
	last := lastGameweek(reg)
	if next < 1 || next > last+1 {
		return invalid("next gameweek %d is outside 1..%d", next, last+1)
	}
	return nil
}

// SeasonParams keys the season node.
type SeasonParams struct {
	NextGameweek int
}

// CacheKey implements memo.Params.
func (p SeasonParams) CacheKey() (memo.Key, error) {
	return memo.NewKey().Int("next_gameweek", p.NextGameweek).Build()
}

// GameweekParams keys the gameweek_prediction node.
type GameweekParams struct {
	NextGameweek   int
	TargetGameweek int
	MinHistory     int
	Variant        forecast.Variant
}

// CacheKey implements memo.Params.
func (p GameweekParams) CacheKey() (memo.Key, error) {
	return memo.NewKey().
		Int("next_gameweek", p.NextGameweek).
		Int("target_gameweek", p.TargetGameweek).
		Int("min_history_gws", p.MinHistory).
		String("model_variant", string(p.Variant)).
		Build()
}

// PredictionsParams keys the gameweek_predictions node. Target order is
// significant: results keep it.
type PredictionsParams struct {
	NextGameweek    int
	TargetGameweeks []int
	MinHistory      int
	Variant         forecast.Variant
}

// CacheKey implements memo.Params.
func (p PredictionsParams) CacheKey() (memo.Key, error) {
	return memo.NewKey().
		Int("next_gameweek", p.NextGameweek).
		Ints("target_gameweeks", p.TargetGameweeks).
		Int("min_history_gws", p.MinHistory).
		String("model_variant", string(p.Variant)).
		Build()
}

// ScoreParams keys the score node. A score does not depend on target
// order, so targets are keyed sorted.
type ScoreParams struct {
	NextGameweek    int
	TargetGameweeks []int
	MinHistory      int
	SquadSize       int
	Variant         forecast.Variant
}

// CacheKey implements memo.Params.
func (p ScoreParams) CacheKey() (memo.Key, error) {
	return memo.NewKey().
		Int("next_gameweek", p.NextGameweek).
		SortedInts("target_gameweeks", p.TargetGameweeks).
		Int("min_history_gws", p.MinHistory).
		Int("squad_size", p.SquadSize).
		String("model_variant", string(p.Variant)).
		Build()
}

// PredictRequest selects the gameweeks to predict. Zero fields take their
// defaults.
type PredictRequest struct {
	// NextGameweek is the first unplayed gameweek of the season state.
	// Default: the registry's next gameweek.
	NextGameweek int `json:"next_gameweek" form:"next_gameweek"`

	// TargetGameweek is the first predicted gameweek. Default: NextGameweek.
	TargetGameweek int `json:"target_gameweek" form:"target_gameweek"`

	// Horizon is the number of consecutive gameweeks predicted from
	// TargetGameweek. Default 1.
	Horizon int `json:"horizon" form:"horizon"`

	// TargetGameweeks lists the predicted gameweeks explicitly and
	// overrides TargetGameweek and Horizon. Order is kept.
	TargetGameweeks []int `json:"target_gameweeks" form:"target_gameweeks"`

	// MinHistory is the number of gameweeks of player history. Default:
	// the pipeline configuration.
	MinHistory int `json:"min_history_gws" form:"min_history_gws"`
}

// ScoreRequest is a PredictRequest plus the squad size.
type ScoreRequest struct {
	PredictRequest

	// SquadSize is the number of top predicted players scored. Default:
	// the pipeline configuration.
	SquadSize int `json:"squad_size" form:"squad_size"`
}

// resolve fills defaults and validates against the registry. Every target
// must be a known gameweek; a missing one is reported as store.ErrNotFound.
func (r PredictRequest) resolve(reg *registry.Registry, cfg Config) (PredictionsParams, error) {
	next := r.NextGameweek
	if next < 0 {
		return PredictionsParams{}, invalid("next gameweek %d is negative", next)
	}
	if next == 0 {
		next = reg.NextGameweek()
	}
	if err := checkNext(reg, next); err != nil {
		return PredictionsParams{}, err
	}

	minHistory := r.MinHistory
	if minHistory < 0 {
		return PredictionsParams{}, invalid("min history %d is negative", minHistory)
	}
	if minHistory == 0 {
		minHistory = cfg.MinHistory
	}

	var targets []int
	if r.TargetGameweeks != nil {
		if len(r.TargetGameweeks) == 0 {
			return PredictionsParams{}, invalid("target gameweeks are empty")
		}
		targets = slices.Clone(r.TargetGameweeks)
	} else {
		start := r.TargetGameweek
		if start < 0 {
			return PredictionsParams{}, invalid("target gameweek %d is negative", start)
		}
		if start == 0 {
			start = next
		}
		horizon := r.Horizon
		if horizon < 0 {
			return PredictionsParams{}, invalid("horizon %d is negative", horizon)
		}
		if horizon == 0 {
			horizon = 1
		}
		if last := lastGameweek(reg); start > last || horizon > last-start+1 {
			return PredictionsParams{}, fmt.Errorf("horizon %d from gameweek %d passes gameweek %d: %w",
				horizon, start, last, store.ErrNotFound)
		}
		for gw := start; gw < start+horizon; gw++ {
			targets = append(targets, gw)
		}
	}

	seen := make(map[int]struct{}, len(targets))
	for _, gw := range targets {
		if gw < next {
			return PredictionsParams{}, invalid("target gameweek %d is before next gameweek %d", gw, next)
		}
		if _, dup := seen[gw]; dup {
			return PredictionsParams{}, invalid("target gameweek %d is repeated", gw)
		}
		seen[gw] = struct{}{}
		if _, err := reg.Gameweek(gw); err != nil {
			return PredictionsParams{}, fmt.Errorf("target gameweek %d: %w", gw, err)
		}
	}

	return PredictionsParams{
		NextGameweek:    next,
		TargetGameweeks: targets,
		MinHistory:      minHistory,
		Variant:         cfg.Variant,
	}, nil
}

func (r ScoreRequest) resolve(reg *registry.Registry, cfg Config) (ScoreParams, error) {
	p, err := r.PredictRequest.resolve(reg, cfg)
	if err != nil {
		return ScoreParams{}, err
	}
	squad := r.SquadSize
	if squad < 0 {
		return ScoreParams{}, invalid("squad size %d is negative", squad)
	}
	if squad == 0 {
		squad = cfg.SquadSize
	}
	targets := slices.Clone(p.TargetGameweeks)
	slices.Sort(targets)
	return ScoreParams{
		NextGameweek:    p.NextGameweek,
		TargetGameweeks: targets,
		MinHistory:      p.MinHistory,
		SquadSize:       squad,
		Variant:         p.Variant,
	}, nil
}
