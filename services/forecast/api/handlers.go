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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/pipeline"
	"github.com/AleutianAI/AleutianFPL/services/forecast/prediction"
	"github.com/AleutianAI/AleutianFPL/services/forecast/store"
)

// Handlers serves the forecast routes.
type Handlers struct {
	holder *Holder
	logger *slog.Logger
}

// NewHandlers returns handlers reading holder. A nil logger uses
// slog.Default().
func NewHandlers(holder *Holder, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{holder: holder, logger: logger}
}

// HandleHealth handles GET /v1/forecast/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	g := h.holder.Current()
	c.JSON(http.StatusOK, HealthResponse{
		Status:       "ok",
		NextGameweek: g.Pipeline.Registry().NextGameweek(),
		Generation:   g.Number,
		LoadedAt:     g.LoadedAt,
	})
}

// HandlePredict handles GET /v1/forecast/predict.
//
// Description:
//
//	Predicts the requested gameweeks and returns player totals ranked
//	and optionally filtered by position, plus team clean sheet totals.
//
// Query Parameters:
//
//	next_gameweek, target_gameweek, horizon, min_history_gws: see
//	pipeline.PredictRequest (optional)
//	target_gameweeks: repeated, overrides target_gameweek and horizon
//	position: GKP, DEF, MID or FWD (optional)
//	rank: points, points_per_cost, clean_sheet, xg, xa or dc (optional)
//	limit: maximum number of players (optional)
//
// Response:
//
//	200 OK: PredictResponse
//	400 Bad Request: invalid parameters
func (h *Handlers) HandlePredict(c *gin.Context) {
	logger := h.requestLogger(c, "HandlePredict")

	var q PredictQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, logger, badRequest(err))
		return
	}
	by := prediction.ByPoints
	if q.Rank != "" {
		var err error
		if by, err = prediction.ParseRanking(q.Rank); err != nil {
			h.fail(c, logger, badRequest(err))
			return
		}
	}
	var position model.PlayerType
	if q.Position != "" {
		var err error
		if position, err = model.ParsePlayerType(q.Position); err != nil {
			h.fail(c, logger, badRequest(err))
			return
		}
	}

	preds, err := h.holder.Current().Pipeline.Predict(c.Request.Context(), q.PredictRequest)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	view := preds
	if position != 0 {
		view = preds.ForType(position)
	}
	players := view.Rank(by)
	if q.Limit > 0 && q.Limit < len(players) {
		players = players[:q.Limit]
	}
	c.JSON(http.StatusOK, PredictResponse{
		Gameweeks: preds.Gameweeks(),
		Rank:      by.String(),
		Players:   players,
		Teams:     preds.Teams(),
	})
}

// HandleScore handles GET /v1/forecast/score.
//
// Query Parameters:
//
//	the predict parameters plus squad_size (optional)
//
// Response:
//
//	200 OK: ScoreResponse
//	400 Bad Request: invalid parameters
//	422 Unprocessable Entity: a target gameweek is not played
func (h *Handlers) HandleScore(c *gin.Context) {
	logger := h.requestLogger(c, "HandleScore")

	var req pipeline.ScoreRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.fail(c, logger, badRequest(err))
		return
	}
	score, err := h.holder.Current().Pipeline.Score(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ScoreResponse{Score: score})
}

// HandleCache handles GET /v1/forecast/cache.
func (h *Handlers) HandleCache(c *gin.Context) {
	p := h.holder.Current().Pipeline
	c.JSON(http.StatusOK, CacheResponse{Sizes: p.CacheInfo(), Stats: p.CacheStats()})
}

// HandleClearCache handles POST /v1/forecast/cache/clear.
func (h *Handlers) HandleClearCache(c *gin.Context) {
	logger := h.requestLogger(c, "HandleClearCache")
	p := h.holder.Current().Pipeline
	p.ClearCache()
	logger.Info("cache cleared")
	c.JSON(http.StatusOK, CacheResponse{Sizes: p.CacheInfo(), Stats: p.CacheStats()})
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return h.logger.With(slog.String("request_id", c.GetString(requestIDKey)), slog.String("handler", handler))
}

func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
	} else {
		logger.Warn("request rejected", slog.String("code", code), slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

type bindError struct{ err error }

func (e bindError) Error() string { return e.err.Error() }
func (e bindError) Unwrap() error { return e.err }

func badRequest(err error) error { return bindError{err: err} }

// statusFor maps an error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	var be bindError
	switch {
	case errors.As(err, &be), errors.Is(err, pipeline.ErrInvalidParams):
		return http.StatusBadRequest, "INVALID_PARAMS"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, prediction.ErrNoActualPoints):
		return http.StatusUnprocessableEntity, "NOT_PLAYED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
