// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loader turns the public FPL API into a populated registry.
//
// Raw responses are kept as snapshots so a run can be repeated offline.
// Bootstrap reads the latest snapshot of every resource, fetching a new
// one when it is older than the configured freshness, converts the
// payloads into model records and freezes the registry.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Resource names, also used as snapshot names.
const (
	ResourceBootstrap = "bootstrap"
	ResourceFixtures  = "fixtures"
	ResourceElements  = "elements"
)

// Decimal is a number the API encodes either as a JSON number or as a
// quoted string, such as "0.35" for expected goals.
type Decimal float64

// UnmarshalJSON accepts 0.35, "0.35" and null.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*d = 0
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("decimal %q: %w", data, err)
	}
	*d = Decimal(v)
	return nil
}

// MarshalJSON writes a quoted string, as the API does.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatFloat(float64(d), 'f', -1, 64))
}

// BootstrapPayload is the body of bootstrap-static/.
type BootstrapPayload struct {
	Events   []EventPayload   `json:"events"`
	Teams    []TeamPayload    `json:"teams"`
	Elements []ElementPayload `json:"elements"`
}

// ElementIDs returns the player IDs in payload order.
func (b BootstrapPayload) ElementIDs() []int {
	ids := make([]int, 0, len(b.Elements))
	for _, e := range b.Elements {
		ids = append(ids, e.ID)
	}
	return ids
}

// EventPayload is one gameweek of bootstrap-static/.
type EventPayload struct {
	ID           int    `json:"id" validate:"min=1,max=38"`
	DeadlineTime string `json:"deadline_time" validate:"required"`
	Finished     bool   `json:"finished"`
}

// TeamPayload is one club of bootstrap-static/.
type TeamPayload struct {
	ID                  int    `json:"id" validate:"min=1"`
	Name                string `json:"name" validate:"required"`
	StrengthOverallHome int    `json:"strength_overall_home"`
	StrengthOverallAway int    `json:"strength_overall_away"`
	StrengthAttackHome  int    `json:"strength_attack_home"`
	StrengthAttackAway  int    `json:"strength_attack_away"`
	StrengthDefenceHome int    `json:"strength_defence_home"`
	StrengthDefenceAway int    `json:"strength_defence_away"`
}

// ElementPayload is one player of bootstrap-static/. NowCost is in tenths.
type ElementPayload struct {
	ID                       int    `json:"id" validate:"min=1"`
	FirstName                string `json:"first_name"`
	SecondName               string `json:"second_name"`
	WebName                  string `json:"web_name" validate:"required"`
	ElementType              int    `json:"element_type" validate:"min=1,max=5"`
	Team                     int    `json:"team" validate:"min=1"`
	NowCost                  int    `json:"now_cost" validate:"min=0"`
	Status                   string `json:"status"`
	ChanceOfPlayingNextRound *int   `json:"chance_of_playing_next_round"`
	ChanceOfPlayingThisRound *int   `json:"chance_of_playing_this_round"`
	News                     string `json:"news"`
}

// FixturePayload is one row of fixtures/. Event is null for fixtures that
// are not scheduled yet.
type FixturePayload struct {
	ID              int  `json:"id" validate:"min=1"`
	Event           *int `json:"event" validate:"omitempty,min=1,max=38"`
	Finished        bool `json:"finished"`
	TeamH           int  `json:"team_h" validate:"min=1"`
	TeamA           int  `json:"team_a" validate:"min=1,nefield=TeamH"`
	TeamHDifficulty int  `json:"team_h_difficulty" validate:"min=1,max=5"`
	TeamADifficulty int  `json:"team_a_difficulty" validate:"min=1,max=5"`
	TeamHScore      *int `json:"team_h_score" validate:"omitempty,min=0"`
	TeamAScore      *int `json:"team_a_score" validate:"omitempty,min=0"`
}

// ElementSummaryPayload is the body of element-summary/{id}/.
type ElementSummaryPayload struct {
	Fixtures []FutureFixturePayload `json:"fixtures"`
	History  []HistoryPayload       `json:"history"`
}

// FutureFixturePayload is an upcoming fixture of one player.
type FutureFixturePayload struct {
	ID     int  `json:"id" validate:"min=1"`
	Event  *int `json:"event" validate:"omitempty,min=1,max=38"`
	IsHome bool `json:"is_home"`
}

// HistoryPayload is a played fixture of one player.
type HistoryPayload struct {
	Element                  int     `json:"element" validate:"min=1"`
	Fixture                  int     `json:"fixture" validate:"min=1"`
	Round                    int     `json:"round" validate:"min=1,max=38"`
	WasHome                  bool    `json:"was_home"`
	TotalPoints              int     `json:"total_points"`
	Minutes                  int     `json:"minutes" validate:"min=0"`
	GoalsScored              int     `json:"goals_scored" validate:"min=0"`
	Assists                  int     `json:"assists" validate:"min=0"`
	CleanSheets              int     `json:"clean_sheets" validate:"min=0"`
	DefensiveContribution    int     `json:"defensive_contribution" validate:"min=0"`
	ExpectedGoals            Decimal `json:"expected_goals" validate:"min=0"`
	ExpectedAssists          Decimal `json:"expected_assists" validate:"min=0"`
	ExpectedGoalInvolvements Decimal `json:"expected_goal_involvements" validate:"min=0"`
	ExpectedGoalsConceded    Decimal `json:"expected_goals_conceded" validate:"min=0"`
	Value                    int     `json:"value" validate:"min=0"`
	Starts                   int     `json:"starts" validate:"min=0"`
}

// Payloads holds every decoded resource of one season.
type Payloads struct {
	Bootstrap BootstrapPayload
	Fixtures  []FixturePayload
	Elements  map[int]ElementSummaryPayload
}
