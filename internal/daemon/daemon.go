package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"spool/internal/config"
	"spool/internal/history"
	"spool/internal/logging"
	"spool/internal/playlist"
	"spool/internal/scheduler"
	"spool/internal/subtitles"
	"spool/internal/ytdlp"
)

// ErrAlreadyRunning is returned when another daemon instance holds the lock.
var ErrAlreadyRunning = errors.New("another spool instance is already running")

// Daemon wires the playlist store, download adapter, and scheduler together
// and enforces single-instance execution via a lock file.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *ytdlp.Client
	store   *playlist.Store
	engine  *scheduler.Engine
	history *history.Store
	syncer  *subtitles.Syncer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Playlist     playlist.Status
	Scheduler    scheduler.State
	History      *history.Summary
	LockFilePath string
}

// Options tunes construction.
type Options struct {
	// RunID tags history rows and log lines for this daemon run.
	RunID string
	// Executor substitutes the subprocess runner (used in tests).
	Executor ytdlp.Executor
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	var clientOpts []ytdlp.Option
	if opts.Executor != nil {
		clientOpts = append(clientOpts, ytdlp.WithExecutor(opts.Executor))
	}
	client, err := ytdlp.New(cfg, logger, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("build yt-dlp client: %w", err)
	}

	store := playlist.NewStore(cfg, client, logger)

	var syncer *subtitles.Syncer
	if cfg.SubtitleSync.Enabled {
		syncer = subtitles.New(cfg, logger)
	}

	var engineOpts []scheduler.Option
	var historyStore *history.Store
	if cfg.History.Enabled {
		historyStore, err = history.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		engineOpts = append(engineOpts,
			scheduler.WithRecorder(history.NewRecorder(historyStore, opts.RunID, logger)))
	}

	pipeline := newPipeline(client, syncer, logger)
	engine := scheduler.New(cfg, store, pipeline, logger, engineOpts...)

	lockPath := LockPath(cfg)
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		client:   client,
		store:    store,
		engine:   engine,
		history:  historyStore,
		syncer:   syncer,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Run acquires the instance lock and drives the scheduler until ctx is
// canceled. A subtitle sync pass runs first so files downloaded while the
// daemon was stopped get picked up.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", d.lockPath, err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release instance lock", logging.Error(err))
		}
	}()

	d.logger.Info("spool daemon started", logging.String("lock", d.lockPath))

	if d.syncer != nil {
		if _, err := d.syncer.SyncAll(); err != nil {
			d.logger.Warn("startup subtitle sync failed", logging.Error(err))
		}
	}

	err = d.engine.Run(ctx)
	d.logger.Info("spool daemon stopped")
	return err
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Refresh re-reconciles the playlist against the archive once.
func (d *Daemon) Refresh(ctx context.Context) (playlist.RefreshSummary, error) {
	return d.store.Refresh(ctx)
}

// Status reports current reconciliation and scheduler state.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	playlistStatus, err := d.store.Status()
	if err != nil {
		return Status{}, fmt.Errorf("read playlist status: %w", err)
	}

	status := Status{
		Running:      d.running.Load(),
		Playlist:     playlistStatus,
		Scheduler:    d.engine.Snapshot(),
		LockFilePath: d.lockPath,
	}
	if d.history != nil {
		summary, err := d.history.Summarize(ctx)
		if err != nil {
			return Status{}, fmt.Errorf("summarize history: %w", err)
		}
		status.History = &summary
	}
	return status, nil
}

// LockFilePath returns the single-instance lock location.
func (d *Daemon) LockFilePath() string {
	return d.lockPath
}

// LockPath returns the single-instance lock location for cfg.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "spool.lock")
}
