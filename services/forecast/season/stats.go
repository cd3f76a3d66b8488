// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package season

import (
	"fmt"

	"github.com/AleutianAI/AleutianFPL/services/forecast/aggregate"
	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
)

// Difficulty bounds of the FPL fixture difficulty rating.
const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// Metric is a per-fixture statistic tracked by the season.
type Metric int

const (
	CleanSheets Metric = iota
	ExpectedGoals
	ExpectedAssists
	DefensiveContribution
	Minutes
	Points
)

// teamMetrics are tracked per fixture side. Minutes and points are tracked
// for players only.
var teamMetrics = []Metric{CleanSheets, ExpectedGoals, ExpectedAssists, DefensiveContribution}

// String returns the metric name.
func (m Metric) String() string {
	switch m {
	case CleanSheets:
		return "clean_sheets"
	case ExpectedGoals:
		return "xg"
	case ExpectedAssists:
		return "xa"
	case DefensiveContribution:
		return "dc"
	case Minutes:
		return "minutes"
	case Points:
		return "points"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// Stats accumulates one metric by fixture side and by difficulty.
type Stats struct {
	byDifficulty [MaxDifficulty + 1]aggregate.Aggregate
	bySide       [2]aggregate.Aggregate
}

func (s *Stats) add(side model.Side, difficulty int, value float64) {
	sample := aggregate.New(value, 1)
	s.bySide[side] = s.bySide[side].Add(sample)
	s.byDifficulty[difficulty] = s.byDifficulty[difficulty].Add(sample)
}

// Side returns the aggregate of one side.
func (s Stats) Side(side model.Side) aggregate.Aggregate {
	return s.bySide[side]
}

// Difficulty returns the aggregate of fixtures with the given difficulty.
// Out of range difficulties yield an empty aggregate.
func (s Stats) Difficulty(difficulty int) aggregate.Aggregate {
	if difficulty < MinDifficulty || difficulty > MaxDifficulty {
		return aggregate.Aggregate{}
	}
	return s.byDifficulty[difficulty]
}

// Total returns the aggregate over both sides.
func (s Stats) Total() aggregate.Aggregate {
	return s.bySide[model.Home].Add(s.bySide[model.Away])
}

// Norm returns the mean at a difficulty relative to the overall mean, 0
// when the overall mean is 0.
func (s Stats) Norm(difficulty int) float64 {
	total := s.Total().P()
	if total == 0 {
		return 0
	}
	return s.Difficulty(difficulty).P() / total
}

func validDifficulty(d int) error {
	if d < MinDifficulty || d > MaxDifficulty {
		return fmt.Errorf("difficulty %d outside [%d, %d]", d, MinDifficulty, MaxDifficulty)
	}
	return nil
}
