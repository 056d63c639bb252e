package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/rollcall"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Session metrics
	SessionsOpenedTotal        metric.Int64Counter
	SessionsConflictTotal      metric.Int64Counter
	SessionsClosedTotal        metric.Int64Counter
	SessionsForceClosedTotal   metric.Int64Counter
	SessionOpenConflictRetries metric.Int64Counter

	// Attendance metrics
	PresenceRecordedTotal  metric.Int64Counter
	PresenceDuplicateTotal metric.Int64Counter
	PresenceRejectedTotal  metric.Int64Counter

	// Report metrics
	ReportDuration metric.Float64Histogram
	RosterLookups  metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Session metrics
	m.SessionsOpenedTotal, _ = meter.Int64Counter(
		"rollcall.sessions.opened.total",
		metric.WithDescription("Total number of attendance sessions opened"),
		metric.WithUnit("{session}"),
	)

	m.SessionsConflictTotal, _ = meter.Int64Counter(
		"rollcall.sessions.conflict.total",
		metric.WithDescription("Total number of opens rejected because the instructor already had an active session"),
		metric.WithUnit("{session}"),
	)

	m.SessionsClosedTotal, _ = meter.Int64Counter(
		"rollcall.sessions.closed.total",
		metric.WithDescription("Total number of sessions moved to a terminal status"),
		metric.WithUnit("{session}"),
	)

	m.SessionsForceClosedTotal, _ = meter.Int64Counter(
		"rollcall.sessions.force_closed.total",
		metric.WithDescription("Total number of sessions completed by force close"),
		metric.WithUnit("{session}"),
	)

	m.SessionOpenConflictRetries, _ = meter.Int64Counter(
		"rollcall.sessions.open.conflict_retries.total",
		metric.WithDescription("Total number of opens retried after the blocking session vanished"),
		metric.WithUnit("{retry}"),
	)

	// Attendance metrics
	m.PresenceRecordedTotal, _ = meter.Int64Counter(
		"rollcall.presence.recorded.total",
		metric.WithDescription("Total number of presence records created"),
		metric.WithUnit("{record}"),
	)

	m.PresenceDuplicateTotal, _ = meter.Int64Counter(
		"rollcall.presence.duplicate.total",
		metric.WithDescription("Total number of presence events that matched an existing record"),
		metric.WithUnit("{record}"),
	)

	m.PresenceRejectedTotal, _ = meter.Int64Counter(
		"rollcall.presence.rejected.total",
		metric.WithDescription("Total number of presence events rejected for inactive sessions"),
		metric.WithUnit("{record}"),
	)

	// Report metrics
	m.ReportDuration, _ = meter.Float64Histogram(
		"rollcall.reports.duration",
		metric.WithDescription("Duration of report computations"),
		metric.WithUnit("ms"),
	)

	m.RosterLookups, _ = meter.Int64Counter(
		"rollcall.rosters.lookups.total",
		metric.WithDescription("Total number of roster lookups"),
		metric.WithUnit("{lookup}"),
	)

	return m
}
