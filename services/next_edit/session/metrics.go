// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for session operations.
var (
	tracer = otel.Tracer("nextedit.session")
	meter  = otel.Meter("nextedit.session")
)

// Metrics for the review loop.
var (
	sessionsStarted metric.Int64Counter
	sessionsEnded   metric.Int64Counter
	editsApplied    metric.Int64Counter
	editsSkipped    metric.Int64Counter
	undosTotal      metric.Int64Counter
	redosTotal      metric.Int64Counter
	reviewDuration  metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		sessionsStarted, err = meter.Int64Counter(
			"nextedit_sessions_started_total",
			metric.WithDescription("Total review sessions started"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		sessionsEnded, err = meter.Int64Counter(
			"nextedit_sessions_ended_total",
			metric.WithDescription("Total review sessions ended by terminal status"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		editsApplied, err = meter.Int64Counter(
			"nextedit_edits_applied_total",
			metric.WithDescription("Total edits applied by action type"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		editsSkipped, err = meter.Int64Counter(
			"nextedit_edits_skipped_total",
			metric.WithDescription("Total edits skipped by the reviewer"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		undosTotal, err = meter.Int64Counter(
			"nextedit_undos_total",
			metric.WithDescription("Total undo operations by level"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		redosTotal, err = meter.Int64Counter(
			"nextedit_redos_total",
			metric.WithDescription("Total redo operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		reviewDuration, err = meter.Float64Histogram(
			"nextedit_session_duration_seconds",
			metric.WithDescription("Session wall time from start to terminal status"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}
