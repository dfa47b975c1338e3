package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

const syncScopeName = "github.com/tbd-tracker/tbd/syncer"

// SyncMetrics holds the instruments the sync orchestrator records into.
// NewSyncMetrics returns working instruments only when telemetry is enabled;
// otherwise every instrument is a no-op and recording costs nothing.
type SyncMetrics struct {
	runs      metric.Int64Counter
	dur       metric.Float64Histogram
	conflicts metric.Int64Counter
	attic     metric.Int64Counter
}

// NewSyncMetrics builds the sync instrument set.
func NewSyncMetrics() *SyncMetrics {
	var m metric.Meter
	if Enabled() {
		m = Meter(syncScopeName)
	} else {
		m = metricnoop.NewMeterProvider().Meter(syncScopeName)
	}

	runs, _ := m.Int64Counter("tbd.sync.runs",
		metric.WithDescription("Sync invocations by outcome"),
	)
	dur, _ := m.Float64Histogram("tbd.sync.duration",
		metric.WithDescription("End-to-end sync duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	conflicts, _ := m.Int64Counter("tbd.sync.conflicts_resolved",
		metric.WithDescription("Fields resolved by the conflict resolver"),
	)
	attic, _ := m.Int64Counter("tbd.sync.attic_entries",
		metric.WithDescription("Attic entries written during conflict resolution"),
	)
	return &SyncMetrics{runs: runs, dur: dur, conflicts: conflicts, attic: attic}
}

// RecordRun records one completed (or failed) sync invocation.
func (s *SyncMetrics) RecordRun(ctx context.Context, start time.Time, err error, conflicts, atticEntries int) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	s.runs.Add(ctx, 1, attrs)
	s.dur.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if conflicts > 0 {
		s.conflicts.Add(ctx, int64(conflicts))
	}
	if atticEntries > 0 {
		s.attic.Add(ctx, int64(atticEntries))
	}
}
