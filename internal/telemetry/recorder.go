package telemetry

import (
	"context"
	"log/slog"
)

// Recorder wraps a Store so query.Engine can record outcomes without
// caring whether telemetry is configured at all: a nil Recorder, or one
// wrapping a nil Store, is a no-op.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder wraps store. A nil store yields a Recorder whose Record is a
// no-op, so callers never need a nil check of their own.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, logger: slog.Default()}
}

// Record persists rec, logging (never propagating) any storage failure —
// telemetry must never turn a successful query into a failed one.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Record(ctx, rec); err != nil {
		r.logger.Warn("telemetry: failed to record query log row",
			slog.String("package", rec.Package), slog.String("error", err.Error()))
	}
}
