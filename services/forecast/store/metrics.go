// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("aleutian.forecast.store")

// Metrics for store operations.
var (
	operationLatency metric.Float64Histogram
	operationTotal   metric.Int64Counter
	storeSize        metric.Int64Gauge

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		operationLatency, err = meter.Float64Histogram(
			"store_operation_duration_seconds",
			metric.WithDescription("Duration of store operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		operationTotal, err = meter.Int64Counter(
			"store_operation_total",
			metric.WithDescription("Total number of store operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		storeSize, err = meter.Int64Gauge(
			"store_records",
			metric.WithDescription("Current number of records in a store"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordOperation records latency and count for one store operation.
func recordOperation(ctx context.Context, storeName, operation string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("store", storeName),
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	)

	operationLatency.Record(ctx, duration.Seconds(), attrs)
	operationTotal.Add(ctx, 1, attrs)
}

// recordSize records the current record count of a store.
func recordSize(ctx context.Context, storeName string, size int) {
	if err := initMetrics(); err != nil {
		return
	}
	storeSize.Record(ctx, int64(size), metric.WithAttributes(attribute.String("store", storeName)))
}
