package history

import (
	"context"
	"log/slog"
	"time"

	"spool/internal/logging"
)

// Recorder writes download attempts from the scheduler into the store. A
// recording failure is logged and swallowed; history is advisory and must
// never fail a download.
type Recorder struct {
	store  *Store
	runID  string
	logger *slog.Logger
}

// NewRecorder binds a store to the current run.
func NewRecorder(store *Store, runID string, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		runID:  runID,
		logger: logging.NewComponentLogger(logger, "history"),
	}
}

// Record stores one attempt.
func (r *Recorder) Record(ctx context.Context, id string, start time.Time, duration time.Duration, fetchErr error) {
	attempt := Attempt{
		RunID:     r.runID,
		Item:      id,
		StartedAt: start,
		Duration:  duration,
		Outcome:   OutcomeSuccess,
	}
	if fetchErr != nil {
		attempt.Outcome = OutcomeFailure
		attempt.Detail = fetchErr.Error()
	}

	if _, err := r.store.Add(ctx, attempt); err != nil {
		r.logger.Warn("failed to record download attempt",
			logging.String(logging.FieldItem, id),
			logging.Error(err),
		)
	}
}
