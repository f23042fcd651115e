package daemon

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"spool/internal/config"
	"spool/internal/fileutil"
	"spool/internal/logging"
	"spool/internal/testsupport"
)

// fakeExecutor simulates yt-dlp: playlist listings print the configured ids,
// downloads record the requested item.
type fakeExecutor struct {
	mu       sync.Mutex
	ids      []string
	listErr  error
	fetchErr error
	fetched  []string
	subs     []string
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case slices.Contains(args, "--flat-playlist"):
		if f.listErr != nil {
			return f.listErr
		}
		for _, id := range f.ids {
			onStdout(id)
		}
		return nil
	case slices.Contains(args, "--skip-download"):
		f.subs = append(f.subs, args[len(args)-1])
		return nil
	default:
		if f.fetchErr != nil {
			return f.fetchErr
		}
		f.fetched = append(f.fetched, args[len(args)-1])
		return nil
	}
}

func (f *fakeExecutor) fetchedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

func newTestDaemon(t *testing.T, cfg *config.Config, exec *fakeExecutor) *Daemon {
	t.Helper()
	d, err := New(cfg, logging.NewNop(), Options{RunID: "test-run", Executor: exec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestStatusFreshState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg, &fakeExecutor{})

	status, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Error("fresh daemon reports running")
	}
	if status.Playlist.Total != 0 || status.Playlist.Pending != 0 {
		t.Errorf("playlist status = %+v, want zeros", status.Playlist)
	}
	if status.History != nil {
		t.Error("history summary present without history enabled")
	}
}

func TestRefresh(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg, &fakeExecutor{ids: []string{"A", "B"}})

	summary, err := d.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if summary.Total != 2 || summary.Pending != 2 {
		t.Errorf("summary = %+v, want 2/2", summary)
	}

	status, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Playlist.Pending != 2 {
		t.Errorf("pending = %d, want 2", status.Playlist.Pending)
	}
}

func TestRunDownloadsAndRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	exec := &fakeExecutor{ids: []string{"A"}}
	d := newTestDaemon(t, cfg, exec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for exec.fetchedCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("item never downloaded")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	archive, err := fileutil.ReadLines(cfg.ArchiveFilePath())
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if len(archive) != 1 || archive[0] != "youtube A" {
		t.Errorf("archive = %v, want [youtube A]", archive)
	}

	status, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.History == nil || status.History.Successes != 1 {
		t.Errorf("history summary = %+v, want one success", status.History)
	}
	if status.Scheduler.Downloads != 1 {
		t.Errorf("downloads = %d, want 1", status.Scheduler.Downloads)
	}
}

func TestRunSecondInstanceRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newTestDaemon(t, cfg, &fakeExecutor{})
	second := newTestDaemon(t, cfg, &fakeExecutor{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- first.Run(ctx)
	}()

	// Ticks only start once the lock is held.
	deadline := time.After(5 * time.Second)
	for first.engine.Snapshot().Ticks == 0 {
		select {
		case <-deadline:
			t.Fatal("first daemon never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := second.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("first Run: %v", err)
	}
}
