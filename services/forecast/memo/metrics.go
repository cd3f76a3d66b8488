// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memo

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for memo operations.
var (
	tracer = otel.Tracer("aleutian.forecast.memo")
	meter  = otel.Meter("aleutian.forecast.memo")
)

// Metrics for memo operations.
var (
	memoHits        metric.Int64Counter
	memoMisses      metric.Int64Counter
	memoShared      metric.Int64Counter
	memoEvictions   metric.Int64Counter
	memoComputes    metric.Int64Counter
	computeDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		memoHits, err = meter.Int64Counter(
			"memo_hits_total",
			metric.WithDescription("Total number of memo cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		memoMisses, err = meter.Int64Counter(
			"memo_misses_total",
			metric.WithDescription("Total number of memo cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		memoShared, err = meter.Int64Counter(
			"memo_shared_total",
			metric.WithDescription("Total number of calls that joined an in-flight computation"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		memoEvictions, err = meter.Int64Counter(
			"memo_evictions_total",
			metric.WithDescription("Total number of entries evicted from bounded memo caches"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		memoComputes, err = meter.Int64Counter(
			"memo_computes_total",
			metric.WithDescription("Total number of compute function invocations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		computeDuration, err = meter.Float64Histogram(
			"memo_compute_duration_seconds",
			metric.WithDescription("Duration of compute function invocations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordLookup(ctx context.Context, node string, hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("node", node))
	if hit {
		memoHits.Add(ctx, 1, attrs)
		return
	}
	memoMisses.Add(ctx, 1, attrs)
}

func recordShared(ctx context.Context, node string) {
	if err := initMetrics(); err != nil {
		return
	}
	memoShared.Add(ctx, 1, metric.WithAttributes(attribute.String("node", node)))
}

func recordEviction(ctx context.Context, node string) {
	if err := initMetrics(); err != nil {
		return
	}
	memoEvictions.Add(ctx, 1, metric.WithAttributes(attribute.String("node", node)))
}

// recordCompute records one compute invocation and its outcome.
func recordCompute(ctx context.Context, node string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("node", node),
		attribute.Bool("success", success),
	)
	memoComputes.Add(ctx, 1, attrs)
	computeDuration.Record(ctx, duration.Seconds(), attrs)
}

// startComputeSpan creates a span around one compute invocation.
func startComputeSpan(ctx context.Context, node string, key Key) (context.Context, trace.Span) {
	return tracer.Start(ctx, "memo."+node+".compute",
		trace.WithAttributes(
			attribute.String("memo.node", node),
			attribute.String("memo.key", key.String()),
		),
	)
}

func setComputeSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
