package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/playlist"
)

// Store is the reconciliation surface the engine drives.
type Store interface {
	Refresh(ctx context.Context) (playlist.RefreshSummary, error)
	NextPending() (string, bool, error)
	MarkFetched(id string) error
}

// Fetcher performs a single item download.
type Fetcher interface {
	FetchOne(ctx context.Context, id string) error
}

// Recorder observes completed download attempts. Implementations must not
// block the tick for long; recording failures are logged and ignored.
type Recorder interface {
	Record(ctx context.Context, id string, start time.Time, duration time.Duration, fetchErr error)
}

// TickResult identifies how a tick ended.
type TickResult int

const (
	TickSkippedBusy TickResult = iota
	TickSkippedRate
	TickCaughtUp
	TickDownloaded
	TickFetchFailed
	TickStoreFailed
)

func (r TickResult) String() string {
	switch r {
	case TickSkippedBusy:
		return "skipped_busy"
	case TickSkippedRate:
		return "skipped_rate"
	case TickCaughtUp:
		return "caught_up"
	case TickDownloaded:
		return "downloaded"
	case TickFetchFailed:
		return "fetch_failed"
	case TickStoreFailed:
		return "store_failed"
	default:
		return fmt.Sprintf("tick_result(%d)", int(r))
	}
}

// State carries the in-memory counters for one engine instance. It is
// created at process start and discarded at process end.
type State struct {
	Ticks       int64
	SkippedBusy int64
	SkippedRate int64
	Downloads   int64
	LastSuccess time.Time
}

// Option configures optional engine behavior.
type Option func(*Engine)

// WithClock substitutes the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRecorder wires a download attempt recorder.
func WithRecorder(rec Recorder) Option {
	return func(e *Engine) {
		e.recorder = rec
	}
}

// Engine drives the polling loop: each tick moves at most one item through
// the store and fetcher, guarded against overlapping dispatches and spaced
// by the configured minimum download interval.
type Engine struct {
	store        Store
	fetcher      Fetcher
	logger       *slog.Logger
	pollInterval time.Duration
	minSpacing   time.Duration
	recorder     Recorder
	now          func() time.Time

	// busy is the single-flight guard. It protects against a dispatch that
	// outlives the next tick's wake time, not parallel callers: ticks fire
	// from one goroutine.
	busy atomic.Bool

	mu    sync.RWMutex
	state State
}

// New constructs an engine from configuration.
func New(cfg *config.Config, store Store, fetcher Fetcher, logger *slog.Logger, opts ...Option) *Engine {
	engine := &Engine{
		store:        store,
		fetcher:      fetcher,
		logger:       logging.NewComponentLogger(logger, "scheduler"),
		pollInterval: time.Duration(cfg.Scheduler.PollInterval) * time.Second,
		minSpacing:   time.Duration(cfg.Scheduler.MinDownloadSpacingHours) * time.Hour,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Run executes the polling loop until ctx is canceled. The first tick fires
// immediately; later ticks follow the configured interval. Cancellation is
// observed between ticks: an in-flight dispatch finishes (or hits the
// adapter's own timeout) before Run returns, so a download is never aborted
// halfway by shutdown.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("scheduler started",
		logging.Duration("poll_interval", e.pollInterval),
		logging.Duration("min_spacing", e.minSpacing),
	)

	// Detached from cancellation so shutdown drains the current dispatch.
	tickCtx := context.WithoutCancel(ctx)

	e.Tick(tickCtx)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			state := e.Snapshot()
			e.logger.Info("scheduler stopped",
				logging.Int64("ticks", state.Ticks),
				logging.Int64("downloads", state.Downloads),
				logging.Int64("skipped_busy", state.SkippedBusy),
				logging.Int64("skipped_rate", state.SkippedRate),
			)
			return nil
		case <-ticker.C:
			e.Tick(tickCtx)
		}
	}
}

// Tick runs one pass of the state machine: guard check, rate check, then at
// most one dispatch. Any dispatch error is absorbed here; the loop never
// dies because of a failed tick.
func (e *Engine) Tick(ctx context.Context) TickResult {
	tick := e.beginTick()

	if !e.busy.CompareAndSwap(false, true) {
		skipped := e.bumpSkippedBusy()
		e.logger.Warn("tick skipped, previous dispatch still running",
			logging.Int64(logging.FieldTick, tick),
			logging.Int64("total_skipped", skipped),
		)
		return TickSkippedBusy
	}
	defer e.busy.Store(false)

	if e.minSpacing > 0 {
		last := e.lastSuccess()
		if !last.IsZero() {
			elapsed := e.now().Sub(last)
			if elapsed < e.minSpacing {
				e.bumpSkippedRate()
				e.logger.Info("tick skipped, minimum download spacing not reached",
					logging.Int64(logging.FieldTick, tick),
					logging.Duration("elapsed", elapsed),
					logging.Duration("required", e.minSpacing),
				)
				return TickSkippedRate
			}
		}
	}

	start := e.now()
	result := e.dispatch(ctx, tick)
	e.logger.Debug("tick finished",
		logging.Int64(logging.FieldTick, tick),
		logging.String("result", result.String()),
		logging.Duration(logging.FieldDuration, e.now().Sub(start)),
	)
	return result
}

func (e *Engine) dispatch(ctx context.Context, tick int64) TickResult {
	id, ok, err := e.store.NextPending()
	if err != nil {
		e.logger.Error("failed to read pending queue",
			logging.Int64(logging.FieldTick, tick),
			logging.Error(err),
		)
		return TickStoreFailed
	}

	if !ok {
		summary, err := e.store.Refresh(ctx)
		if err != nil {
			e.logger.Error("playlist refresh failed",
				logging.Int64(logging.FieldTick, tick),
				logging.Error(err),
			)
			return TickStoreFailed
		}
		id, ok, err = e.store.NextPending()
		if err != nil {
			e.logger.Error("failed to read pending queue after refresh",
				logging.Int64(logging.FieldTick, tick),
				logging.Error(err),
			)
			return TickStoreFailed
		}
		if !ok {
			e.logger.Info("caught up, no pending items",
				logging.Int64(logging.FieldTick, tick),
				logging.Int("playlist_total", summary.Total),
			)
			return TickCaughtUp
		}
	}

	e.logger.Info("dispatching download",
		logging.Int64(logging.FieldTick, tick),
		logging.String(logging.FieldItem, id),
	)

	start := e.now()
	fetchErr := e.fetcher.FetchOne(ctx, id)
	duration := e.now().Sub(start)

	if e.recorder != nil {
		e.recorder.Record(ctx, id, start, duration, fetchErr)
	}

	if fetchErr != nil {
		e.logger.Warn("download failed, item stays queued",
			logging.Int64(logging.FieldTick, tick),
			logging.String(logging.FieldItem, id),
			logging.Duration(logging.FieldDuration, duration),
			logging.Error(fetchErr),
		)
		return TickFetchFailed
	}

	if err := e.store.MarkFetched(id); err != nil {
		// The download itself succeeded; the item is re-attempted next tick
		// and the fetch tool's own archive makes that a no-op.
		e.logger.Error("failed to record fetched item",
			logging.Int64(logging.FieldTick, tick),
			logging.String(logging.FieldItem, id),
			logging.Error(err),
		)
		return TickStoreFailed
	}

	e.recordSuccess()
	e.logger.Info("download complete",
		logging.Int64(logging.FieldTick, tick),
		logging.String(logging.FieldItem, id),
		logging.Duration(logging.FieldDuration, duration),
	)
	return TickDownloaded
}

// Snapshot returns a copy of the current counters.
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) beginTick() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Ticks++
	return e.state.Ticks
}

func (e *Engine) bumpSkippedBusy() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.SkippedBusy++
	return e.state.SkippedBusy
}

func (e *Engine) bumpSkippedRate() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.SkippedRate++
	return e.state.SkippedRate
}

func (e *Engine) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Downloads++
	e.state.LastSuccess = e.now()
}

func (e *Engine) lastSuccess() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.LastSuccess
}
