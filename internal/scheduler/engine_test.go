package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"testing"

	"spool/internal/config"
	"spool/internal/playlist"
)

type fakeStore struct {
	mu           sync.Mutex
	queue        []string
	refreshQueue []string
	refreshErr   error
	nextErr      error
	markErr      error
	refreshCalls int
	marked       []string
}

func (s *fakeStore) Refresh(ctx context.Context) (playlist.RefreshSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++
	if s.refreshErr != nil {
		return playlist.RefreshSummary{}, s.refreshErr
	}
	s.queue = append([]string(nil), s.refreshQueue...)
	return playlist.RefreshSummary{Total: len(s.refreshQueue), Pending: len(s.queue)}, nil
}

func (s *fakeStore) NextPending() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextErr != nil {
		return "", false, s.nextErr
	}
	if len(s.queue) == 0 {
		return "", false, nil
	}
	return s.queue[0], true, nil
}

func (s *fakeStore) MarkFetched(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.marked = append(s.marked, id)
	for i, candidate := range s.queue {
		if candidate == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	return nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	err     error
	fetched []string
	block   chan struct{}
}

func (f *fakeFetcher) FetchOne(ctx context.Context, id string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, id)
	return f.err
}

type recordedAttempt struct {
	id       string
	duration time.Duration
	err      error
}

type fakeRecorder struct {
	mu       sync.Mutex
	attempts []recordedAttempt
}

func (r *fakeRecorder) Record(ctx context.Context, id string, start time.Time, duration time.Duration, fetchErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, recordedAttempt{id: id, duration: duration, err: fetchErr})
}

func testEngine(t *testing.T, store Store, fetcher Fetcher, opts ...Option) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Scheduler.PollInterval = 1
	cfg.Scheduler.MinDownloadSpacingHours = 0
	return New(&cfg, store, fetcher, nil, opts...)
}

func TestTickDownloadsHeadOfQueue(t *testing.T) {
	store := &fakeStore{queue: []string{"A", "B"}}
	fetcher := &fakeFetcher{}
	engine := testEngine(t, store, fetcher)

	if result := engine.Tick(context.Background()); result != TickDownloaded {
		t.Fatalf("tick result = %v, want downloaded", result)
	}
	if len(fetcher.fetched) != 1 || fetcher.fetched[0] != "A" {
		t.Errorf("fetched = %v, want [A]", fetcher.fetched)
	}
	if len(store.marked) != 1 || store.marked[0] != "A" {
		t.Errorf("marked = %v, want [A]", store.marked)
	}

	state := engine.Snapshot()
	if state.Downloads != 1 || state.Ticks != 1 {
		t.Errorf("state = %+v, want 1 download over 1 tick", state)
	}
	if state.LastSuccess.IsZero() {
		t.Error("last success timestamp not recorded")
	}
}

func TestTickOneItemPerTick(t *testing.T) {
	store := &fakeStore{queue: []string{"A", "B", "C"}}
	fetcher := &fakeFetcher{}
	engine := testEngine(t, store, fetcher)

	engine.Tick(context.Background())
	if len(fetcher.fetched) != 1 {
		t.Errorf("one tick fetched %d items, want 1", len(fetcher.fetched))
	}

	engine.Tick(context.Background())
	if len(fetcher.fetched) != 2 || fetcher.fetched[1] != "B" {
		t.Errorf("fetched = %v, want [A B]", fetcher.fetched)
	}
}

func TestTickRefreshesWhenQueueEmpty(t *testing.T) {
	store := &fakeStore{refreshQueue: []string{"NEW"}}
	fetcher := &fakeFetcher{}
	engine := testEngine(t, store, fetcher)

	if result := engine.Tick(context.Background()); result != TickDownloaded {
		t.Fatalf("tick result = %v, want downloaded after refresh", result)
	}
	if store.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want 1", store.refreshCalls)
	}
	if len(fetcher.fetched) != 1 || fetcher.fetched[0] != "NEW" {
		t.Errorf("fetched = %v, want [NEW]", fetcher.fetched)
	}
}

func TestTickCaughtUpWhenNothingPending(t *testing.T) {
	store := &fakeStore{}
	fetcher := &fakeFetcher{}
	engine := testEngine(t, store, fetcher)

	if result := engine.Tick(context.Background()); result != TickCaughtUp {
		t.Fatalf("tick result = %v, want caught up", result)
	}
	if len(fetcher.fetched) != 0 {
		t.Errorf("no fetch expected, got %v", fetcher.fetched)
	}
}

func TestTickRefreshFailureLeavesQueueForNextTick(t *testing.T) {
	store := &fakeStore{refreshErr: errors.New("listing timeout")}
	fetcher := &fakeFetcher{}
	engine := testEngine(t, store, fetcher)

	if result := engine.Tick(context.Background()); result != TickStoreFailed {
		t.Fatalf("tick result = %v, want store failed", result)
	}

	// Next tick retries the refresh.
	store.refreshErr = nil
	store.refreshQueue = []string{"A"}
	if result := engine.Tick(context.Background()); result != TickDownloaded {
		t.Fatalf("retry tick result = %v, want downloaded", result)
	}
}

func TestTickFetchFailureKeepsItemQueued(t *testing.T) {
	store := &fakeStore{queue: []string{"A"}}
	fetcher := &fakeFetcher{err: errors.New("exit status 1")}
	engine := testEngine(t, store, fetcher)

	if result := engine.Tick(context.Background()); result != TickFetchFailed {
		t.Fatalf("tick result = %v, want fetch failed", result)
	}
	if len(store.marked) != 0 {
		t.Errorf("failed fetch must not mark item, marked = %v", store.marked)
	}
	if id, ok, _ := store.NextPending(); !ok || id != "A" {
		t.Errorf("head = %q ok=%v, want A still queued", id, ok)
	}

	// The same head item is retried on the next tick.
	fetcher.err = nil
	engine.Tick(context.Background())
	if len(fetcher.fetched) != 2 || fetcher.fetched[1] != "A" {
		t.Errorf("fetched = %v, want A retried", fetcher.fetched)
	}
}

func TestTickMarkFetchedFailure(t *testing.T) {
	store := &fakeStore{queue: []string{"A"}, markErr: errors.New("disk full")}
	fetcher := &fakeFetcher{}
	engine := testEngine(t, store, fetcher)

	if result := engine.Tick(context.Background()); result != TickStoreFailed {
		t.Fatalf("tick result = %v, want store failed", result)
	}
	if state := engine.Snapshot(); state.Downloads != 0 {
		t.Errorf("downloads = %d, want 0 when archive write fails", state.Downloads)
	}
}

func TestRateLimiting(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now

	cfg := config.Default()
	cfg.Scheduler.PollInterval = 1
	cfg.Scheduler.MinDownloadSpacingHours = 1

	store := &fakeStore{queue: []string{"A", "B"}}
	fetcher := &fakeFetcher{}
	engine := New(&cfg, store, fetcher, nil, WithClock(func() time.Time { return *clock }))

	// First download establishes the last-success timestamp.
	if result := engine.Tick(context.Background()); result != TickDownloaded {
		t.Fatalf("first tick = %v, want downloaded", result)
	}

	// 30 minutes later: skipped.
	now = now.Add(30 * time.Minute)
	if result := engine.Tick(context.Background()); result != TickSkippedRate {
		t.Fatalf("tick at +30m = %v, want skipped_rate", result)
	}
	if state := engine.Snapshot(); state.SkippedRate != 1 {
		t.Errorf("skipped_rate = %d, want 1", state.SkippedRate)
	}
	if len(fetcher.fetched) != 1 {
		t.Errorf("rate-limited tick must not dispatch, fetched = %v", fetcher.fetched)
	}

	// 61 minutes after the success: dispatches.
	now = now.Add(31 * time.Minute)
	if result := engine.Tick(context.Background()); result != TickDownloaded {
		t.Fatalf("tick at +61m = %v, want downloaded", result)
	}
}

func TestZeroSpacingDisablesRateLimit(t *testing.T) {
	store := &fakeStore{queue: []string{"A", "B"}}
	fetcher := &fakeFetcher{}
	engine := testEngine(t, store, fetcher)

	engine.Tick(context.Background())
	engine.Tick(context.Background())
	if len(fetcher.fetched) != 2 {
		t.Errorf("back-to-back ticks fetched %d items, want 2", len(fetcher.fetched))
	}
}

func TestSingleFlightGuard(t *testing.T) {
	store := &fakeStore{queue: []string{"A"}}
	fetcher := &fakeFetcher{block: make(chan struct{})}
	engine := testEngine(t, store, fetcher)

	done := make(chan TickResult, 1)
	go func() {
		done <- engine.Tick(context.Background())
	}()

	// Wait until the first tick holds the guard.
	deadline := time.After(2 * time.Second)
	for {
		if engine.busy.Load() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first tick never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if result := engine.Tick(context.Background()); result != TickSkippedBusy {
		t.Fatalf("concurrent tick = %v, want skipped_busy", result)
	}
	if state := engine.Snapshot(); state.SkippedBusy != 1 {
		t.Errorf("skipped_busy = %d, want 1", state.SkippedBusy)
	}
	if len(store.marked) != 0 {
		t.Errorf("busy-skipped tick must not mutate the store, marked = %v", store.marked)
	}

	close(fetcher.block)
	if result := <-done; result != TickDownloaded {
		t.Errorf("blocked tick result = %v, want downloaded", result)
	}

	// Guard is released; the next tick dispatches again.
	store.mu.Lock()
	store.queue = []string{"B"}
	store.mu.Unlock()
	if result := engine.Tick(context.Background()); result != TickDownloaded {
		t.Errorf("post-release tick = %v, want downloaded", result)
	}
}

func TestRecorderSeesSuccessAndFailure(t *testing.T) {
	store := &fakeStore{queue: []string{"A", "B"}}
	fetchErr := errors.New("exit status 1")
	fetcher := &fakeFetcher{err: fetchErr}
	recorder := &fakeRecorder{}
	engine := testEngine(t, store, fetcher, WithRecorder(recorder))

	engine.Tick(context.Background())
	fetcher.err = nil
	engine.Tick(context.Background())

	if len(recorder.attempts) != 2 {
		t.Fatalf("recorded %d attempts, want 2", len(recorder.attempts))
	}
	if recorder.attempts[0].id != "A" || !errors.Is(recorder.attempts[0].err, fetchErr) {
		t.Errorf("first attempt = %+v, want failed A", recorder.attempts[0])
	}
	if recorder.attempts[1].id != "A" || recorder.attempts[1].err != nil {
		t.Errorf("second attempt = %+v, want successful A", recorder.attempts[1])
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	fetcher := &fakeFetcher{}
	engine := testEngine(t, store, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- engine.Run(ctx)
	}()

	// The initial tick fires before the first interval elapses.
	deadline := time.After(2 * time.Second)
	for {
		if engine.Snapshot().Ticks >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("initial tick never fired")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil on graceful stop", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
