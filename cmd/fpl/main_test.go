// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianFPL/services/forecast/api"
	"github.com/AleutianAI/AleutianFPL/services/forecast/loader"
	"github.com/AleutianAI/AleutianFPL/services/forecast/pipeline"
)

func intPtr(v int) *int { return &v }

// season is three gameweeks of two teams, the first two played.
func season() loader.Payloads {
	return loader.Payloads{
		Bootstrap: loader.BootstrapPayload{
			Events: []loader.EventPayload{
				{ID: 1, DeadlineTime: "2024-08-16T17:30:00Z", Finished: true},
				{ID: 2, DeadlineTime: "2024-08-24T10:00:00Z", Finished: true},
				{ID: 3, DeadlineTime: "2024-08-31T10:00:00Z"},
			},
			Teams: []loader.TeamPayload{
				{ID: 1, Name: "Arsenal", StrengthOverallHome: 1300},
				{ID: 2, Name: "Brentford", StrengthOverallHome: 1100},
			},
			Elements: []loader.ElementPayload{
				{ID: 10, WebName: "Raya", ElementType: 1, Team: 1, NowCost: 55, Status: "a"},
				{ID: 20, WebName: "Wissa", ElementType: 4, Team: 2, NowCost: 62, Status: "a"},
			},
		},
		Fixtures: []loader.FixturePayload{
			{ID: 1, Event: intPtr(1), Finished: true, TeamH: 1, TeamA: 2, TeamHDifficulty: 2, TeamADifficulty: 4,
				TeamHScore: intPtr(0), TeamAScore: intPtr(1)},
			{ID: 2, Event: intPtr(2), Finished: true, TeamH: 2, TeamA: 1, TeamHDifficulty: 4, TeamADifficulty: 2,
				TeamHScore: intPtr(2), TeamAScore: intPtr(2)},
			{ID: 3, Event: intPtr(3), TeamH: 1, TeamA: 2, TeamHDifficulty: 2, TeamADifficulty: 4},
		},
		Elements: map[int]loader.ElementSummaryPayload{
			10: {
				History: []loader.HistoryPayload{
					{Element: 10, Fixture: 1, Round: 1, WasHome: true, TotalPoints: 2, Minutes: 90, Value: 55},
					{Element: 10, Fixture: 2, Round: 2, WasHome: false, TotalPoints: 1, Minutes: 90, Value: 55},
				},
				Fixtures: []loader.FutureFixturePayload{{ID: 3, Event: intPtr(3), IsHome: true}},
			},
			20: {
				History: []loader.HistoryPayload{
					{Element: 20, Fixture: 1, Round: 1, WasHome: false, TotalPoints: 8, Minutes: 90,
						GoalsScored: 1, ExpectedGoals: 0.64, Value: 62},
					{Element: 20, Fixture: 2, Round: 2, WasHome: true, TotalPoints: 2, Minutes: 75,
						ExpectedGoals: 0.21, ExpectedAssists: 0.1, Value: 62},
				},
				Fixtures: []loader.FutureFixturePayload{{ID: 3, Event: intPtr(3), IsHome: false}},
			},
		},
	}
}

// fplServer serves season() under /api/ and counts requests.
func fplServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	p := season()
	var calls atomic.Int64
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/api/bootstrap-static/", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		reply(w, p.Bootstrap)
	})
	mux.HandleFunc("/api/fixtures/", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		reply(w, p.Fixtures)
	})
	mux.HandleFunc("/api/element-summary/{id}/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var id int
		if _, err := fmt.Sscan(r.PathValue("id"), &id); err == nil {
			if s, ok := p.Elements[id]; ok {
				reply(w, s)
				return
			}
		}
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

// writeConfig writes a configuration pointing at a temporary data
// directory and returns its path.
func writeConfig(t *testing.T, backend, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fpl.yaml")
	cfg := fmt.Sprintf(`data:
  dir: %s
  season: test
  backend: %s
fetch:
  base_url: %s
  requests_per_second: 1000
  retries: 0
pipeline:
  min_history_gws: 1
server:
  reload_debounce: 10ms
telemetry:
  metric_exporter: none
`, filepath.Join(dir, "data"), backend, baseURL)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{}
	t.Cleanup(func() { _ = a.close() })
	cmd := newRootCmd(a)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEndToEnd(t *testing.T) {
	for _, backend := range []string{"file", "badger"} {
		t.Run(backend, func(t *testing.T) {
			srv, calls := fplServer(t)
			cfg := writeConfig(t, backend, srv.URL+"/api/")

			out, err := run(t, "--config", cfg, "fetch")
			require.NoError(t, err)
			assert.Contains(t, out, "2 teams, 2 players, 3 fixtures")
			assert.Equal(t, int64(4), calls.Load())

			out, err = run(t, "--config", cfg, "--offline", "predict", "--json")
			require.NoError(t, err)
			var preds struct {
				Gameweeks []int           `json:"gameweeks"`
				Rank      string          `json:"rank"`
				Players   []json.RawMessage `json:"players"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &preds))
			assert.Equal(t, []int{3}, preds.Gameweeks)
			assert.Equal(t, "points", preds.Rank)
			assert.Len(t, preds.Players, 2)

			out, err = run(t, "--config", cfg, "--offline", "score", "--next", "2", "--json")
			require.NoError(t, err)
			assert.JSONEq(t, `{"score": 3}`, out)

			out, err = run(t, "--config", cfg, "--offline", "backtest", "--json")
			require.NoError(t, err)
			var report pipeline.BacktestReport
			require.NoError(t, json.Unmarshal([]byte(out), &report))
			require.Len(t, report.Gameweeks, 1)
			assert.Equal(t, 2, report.Gameweeks[0].Gameweek)

			assert.Equal(t, int64(4), calls.Load(), "offline runs never call the API")
		})
	}
}

func TestFetch_FreshSnapshotsAreKept(t *testing.T) {
	srv, calls := fplServer(t)
	cfg := writeConfig(t, "file", srv.URL+"/api/")

	_, err := run(t, "--config", cfg, "fetch")
	require.NoError(t, err)
	_, err = run(t, "--config", cfg, "fetch")
	require.NoError(t, err)
	assert.Equal(t, int64(4), calls.Load())

	_, err = run(t, "--config", cfg, "fetch", "--force")
	require.NoError(t, err)
	assert.Equal(t, int64(8), calls.Load())
}

func TestFetch_Offline(t *testing.T) {
	_, err := run(t, "--config", writeConfig(t, "file", "http://127.0.0.1:1/api/"), "--offline", "fetch")
	assert.ErrorContains(t, err, "--offline")
}

func TestPredict_Table(t *testing.T) {
	srv, _ := fplServer(t)
	cfg := writeConfig(t, "file", srv.URL+"/api/")

	out, err := run(t, "--config", cfg, "predict", "--position", "FWD", "--rank", "xg")
	require.NoError(t, err)
	assert.Contains(t, out, "Gameweeks [3] by xg")
	assert.Contains(t, out, "Wissa")
	assert.NotContains(t, out, "Raya")

	_, err = run(t, "--config", cfg, "predict", "--rank", "luck")
	assert.ErrorContains(t, err, "unknown ranking")
	_, err = run(t, "--config", cfg, "predict", "--position", "SUB")
	assert.Error(t, err)
	_, err = run(t, "--config", cfg, "--offline", "predict", "--next", "3", "--targets", "2")
	assert.ErrorIs(t, err, pipeline.ErrInvalidParams)
}

func TestScore_Unplayed(t *testing.T) {
	srv, _ := fplServer(t)
	cfg := writeConfig(t, "file", srv.URL+"/api/")

	out, err := run(t, "--config", cfg, "score", "--next", "2", "--horizon", "2")
	assert.Error(t, err, "gameweek 3 is not played")
	assert.Empty(t, out)
}

func TestBacktest_Table(t *testing.T) {
	srv, _ := fplServer(t)
	cfg := writeConfig(t, "file", srv.URL+"/api/")

	out, err := run(t, "--config", cfg, "backtest", "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "Mean points per gameweek")
	assert.Contains(t, out, pipeline.NodeGameweekPredictions)
}

func readCSV(t *testing.T, data string) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestDump_FDR(t *testing.T) {
	srv, _ := fplServer(t)
	cfg := writeConfig(t, "file", srv.URL+"/api/")

	out, err := run(t, "--config", cfg, "dump", "fdr")
	require.NoError(t, err)
	rows := readCSV(t, out)
	require.Len(t, rows, 7, "header plus two rows per fixture")
	assert.Equal(t, fdrHeader, rows[0])
	assert.Equal(t, []string{"1", "Arsenal", "H", "2", "Brentford", "0:1"}, rows[1])
	assert.Equal(t, []string{"1", "Brentford", "A", "4", "Arsenal", "0:1"}, rows[2])
	assert.Equal(t, []string{"3", "Arsenal", "H", "2", "Brentford", ""}, rows[5], "unplayed")

	out, err = run(t, "--config", cfg, "--offline", "dump", "fdr", "--first", "2", "--last", "2")
	require.NoError(t, err)
	rows = readCSV(t, out)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2", "Brentford", "H", "4", "Arsenal", "2:2"}, rows[1])

	_, err = run(t, "--config", cfg, "--offline", "dump", "fdr", "--first", "3", "--last", "2")
	assert.ErrorContains(t, err, "invalid gameweek range")
}

func TestDump_PlayersToFile(t *testing.T) {
	srv, _ := fplServer(t)
	cfg := writeConfig(t, "badger", srv.URL+"/api/")
	path := filepath.Join(t.TempDir(), "players.csv")

	out, err := run(t, "--config", cfg, "dump", "players", "-o", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows := readCSV(t, string(data))
	require.Len(t, rows, 3)
	assert.Equal(t, playersHeader, rows[0])

	raya, wissa := rows[1], rows[2]
	assert.Equal(t, []string{"10", "Raya", "GKP", "Arsenal", "5.5", "a", "3", "180"},
		[]string{raya[0], raya[2], raya[3], raya[4], raya[5], raya[6], raya[7], raya[8]})
	assert.Equal(t, []string{"20", "Wissa", "FWD", "Brentford", "6.2", "10", "165", "1", "0.85"},
		[]string{wissa[0], wissa[2], wissa[3], wissa[4], wissa[5], wissa[7], wissa[8], wissa[10], wissa[14]})
}

func TestConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "fpl.yaml")

	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	_, err = run(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	out, err = run(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "min_history_gws: 5")

	out, err = run(t, "--config", path, "--base-url", "http://localhost:9999/api/", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "base_url: http://localhost:9999/api/")

	_, err = run(t, "--config", path, "--base-url", "not a url", "config", "show")
	assert.Error(t, err)
	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "config", "show")
	assert.ErrorContains(t, err, "read config")
}

func TestLogFlags(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "--log-dir", dir, "--log-level", "debug", "config", "show")
	require.NoError(t, err)
	matches, err := filepath.Glob(filepath.Join(dir, "fpl_*.log"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	_, err = run(t, "--log-format", "xml", "config", "show")
	assert.ErrorContains(t, err, "format")
	_, err = run(t, "--log-level", "loud", "config", "show")
	assert.ErrorContains(t, err, "level")
}

func TestServe(t *testing.T) {
	srv, _ := fplServer(t)
	a := &app{configPath: writeConfig(t, "file", srv.URL+"/api/"), logLevel: "error"}
	require.NoError(t, a.init(io.Discard))
	t.Cleanup(func() { _ = a.close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/v1/forecast/health"
	var health api.HealthResponse
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&health) == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 3, health.NextGameweek)
	assert.Equal(t, uint64(1), health.Generation)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
