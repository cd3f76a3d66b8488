// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"time"

	"github.com/AleutianAI/AleutianFPL/services/forecast/memo"
	"github.com/AleutianAI/AleutianFPL/services/forecast/pipeline"
	"github.com/AleutianAI/AleutianFPL/services/forecast/prediction"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string    `json:"status"`
	NextGameweek int       `json:"next_gameweek"`
	Generation   uint64    `json:"generation"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// PredictQuery is the query of GET /predict.
type PredictQuery struct {
	pipeline.PredictRequest

	// Position filters players, e.g. "MID".
	Position string `form:"position"`

	// Rank orders players. Default "points".
	Rank string `form:"rank"`

	// Limit caps the player list. Zero returns every player.
	Limit int `form:"limit" binding:"min=0"`
}

// PredictResponse is the body of GET /predict.
type PredictResponse struct {
	Gameweeks []int                    `json:"gameweeks"`
	Rank      string                   `json:"rank"`
	Players   []prediction.PlayerTotal `json:"players"`
	Teams     []prediction.TeamTotal   `json:"teams"`
}

// ScoreResponse is the body of GET /score.
type ScoreResponse struct {
	Score int `json:"score"`
}

// CacheResponse is the body of GET /cache and POST /cache/clear.
type CacheResponse struct {
	Sizes map[string]int `json:"sizes"`
	Stats []memo.Stats   `json:"stats"`
}
