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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	// ErrUnexpectedStatus is returned for a non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrResponseTooLarge is returned when a body exceeds MaxBodyBytes.
	ErrResponseTooLarge = errors.New("response too large")
)

// DefaultBaseURL is the public FPL API.
const DefaultBaseURL = "https://fantasy.premierleague.com/api/"

// DefaultMaxBodyBytes bounds a single response body.
const DefaultMaxBodyBytes = 32 << 20

// HTTPClient is the subset of *http.Client the fetcher uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetcherConfig configures a Fetcher. Zero fields take defaults.
type FetcherConfig struct {
	// BaseURL is the API root. Default: DefaultBaseURL.
	BaseURL string

	// RequestsPerSecond paces every request. Default 2.
	RequestsPerSecond float64

	// Retries is the number of retries after the first attempt. Default 3.
	Retries int

	// InitialBackoff is the first retry delay. Default 500ms.
	InitialBackoff time.Duration

	// Workers bounds the concurrent element-summary requests. Default 4.
	Workers int

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodyBytes bounds a response body. Default: DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

func (c FetcherConfig) withDefaults() FetcherConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	if c.Retries < 0 {
		c.Retries = 0
	} else if c.Retries == 0 {
		c.Retries = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.UserAgent == "" {
		c.UserAgent = "AleutianFPL/1.0"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// Fetcher downloads raw FPL API resources.
//
// Thread Safety:
//
//	Safe for concurrent use. All requests share one rate limiter.
type Fetcher struct {
	client  HTTPClient
	cfg     FetcherConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewFetcher returns a fetcher using client.
//
// Inputs:
//
//	client - HTTP client. Must not be nil.
//	cfg - Fetch settings, defaults applied to zero fields.
//	logger - Logger. Nil uses slog.Default().
func NewFetcher(client HTTPClient, cfg FetcherConfig, logger *slog.Logger) (*Fetcher, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Fetcher{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger,
	}, nil
}

// Bootstrap fetches bootstrap-static/.
func (f *Fetcher) Bootstrap(ctx context.Context) ([]byte, error) {
	return f.get(ctx, "bootstrap-static/")
}

// Fixtures fetches fixtures/.
func (f *Fetcher) Fixtures(ctx context.Context) ([]byte, error) {
	return f.get(ctx, "fixtures/")
}

// ElementSummary fetches element-summary/{id}/.
func (f *Fetcher) ElementSummary(ctx context.Context, id int) ([]byte, error) {
	return f.get(ctx, fmt.Sprintf("element-summary/%d/", id))
}

// ElementSummaries fetches the summaries of every player in ids with at
// most Workers requests in flight.
//
// Outputs:
//
//	map[int]json.RawMessage - Body per player ID.
//	error - The first failure. Outstanding requests are cancelled.
func (f *Fetcher) ElementSummaries(ctx context.Context, ids []int) (map[int]json.RawMessage, error) {
	var mu sync.Mutex
	out := make(map[int]json.RawMessage, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	for _, id := range ids {
		g.Go(func() error {
			body, err := f.ElementSummary(gctx, id)
			if err != nil {
				return fmt.Errorf("element %d: %w", id, err)
			}
			mu.Lock()
			out[id] = body
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	f.logger.Info("fetched element summaries", slog.Int("count", len(out)))
	return out, nil
}

// get performs a paced GET with retries. Client errors other than 429 are
// not retried.
func (f *Fetcher) get(ctx context.Context, path string) ([]byte, error) {
	url := f.cfg.BaseURL + path
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.cfg.InitialBackoff

	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		return f.do(ctx, url)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(f.cfg.Retries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			f.logger.Warn("retrying request",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", next),
				slog.String("error", err.Error()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	f.logger.Debug("fetched", slog.String("url", url), slog.Int("bytes", len(body)))
	return body, nil
}

func (f *Fetcher) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, backoff.Permanent(fmt.Errorf("%w: over %d bytes", ErrResponseTooLarge, f.cfg.MaxBodyBytes))
	}
	if !json.Valid(body) {
		return nil, backoff.Permanent(errors.New("response is not JSON"))
	}
	return body, nil
}
