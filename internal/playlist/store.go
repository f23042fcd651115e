package playlist

import (
	"context"
	"fmt"
	"log/slog"

	"spool/internal/config"
	"spool/internal/logging"
)

// Lister enumerates the item ids currently in the upstream playlist, in
// playlist order.
type Lister interface {
	ListPlaylist(ctx context.Context) ([]string, error)
}

// RefreshSummary reports the outcome of a cache refresh.
type RefreshSummary struct {
	Total   int
	Pending int
}

// Status summarizes the persisted reconciliation state.
type Status struct {
	Total   int `json:"total"`
	Fetched int `json:"fetched"`
	Pending int `json:"pending"`
}

// Store reconciles the upstream playlist against the download archive and
// maintains the pending queue. All three structures persist as plain text
// files; every write replaces the whole file so concurrent readers never
// observe a torn update.
//
// The store holds no in-memory state: each operation reads the files it
// needs, which keeps a separately running status command coherent with the
// daemon.
type Store struct {
	cachePath   string
	archivePath string
	queuePath   string
	lister      Lister
	logger      *slog.Logger
}

// NewStore constructs a reconciliation store over the configured state files.
func NewStore(cfg *config.Config, lister Lister, logger *slog.Logger) *Store {
	return &Store{
		cachePath:   cfg.CacheFilePath(),
		archivePath: cfg.ArchiveFilePath(),
		queuePath:   cfg.QueueFilePath(),
		lister:      lister,
		logger:      logging.NewComponentLogger(logger, "playlist"),
	}
}

// Refresh fetches the full upstream item list, replaces the playlist cache,
// and rebuilds the pending queue as the order-preserving difference between
// the cache and the download archive.
//
// The refresh is all-or-nothing: if the listing fails or any file cannot be
// written, the previously persisted state is left untouched and the error
// surfaces to the caller for retry on a later tick.
func (s *Store) Refresh(ctx context.Context) (RefreshSummary, error) {
	ids, err := s.lister.ListPlaylist(ctx)
	if err != nil {
		return RefreshSummary{}, fmt.Errorf("list playlist: %w", err)
	}
	ids = dedupe(ids)

	fetched, err := s.loadArchive()
	if err != nil {
		return RefreshSummary{}, fmt.Errorf("load archive: %w", err)
	}

	pending := difference(ids, fetched)

	if err := s.saveSnapshot(ids); err != nil {
		return RefreshSummary{}, fmt.Errorf("save playlist cache: %w", err)
	}
	if err := s.saveQueue(pending); err != nil {
		return RefreshSummary{}, fmt.Errorf("save queue: %w", err)
	}

	s.logger.Info("playlist cache refreshed",
		logging.Int("total", len(ids)),
		logging.Int("pending", len(pending)),
	)
	return RefreshSummary{Total: len(ids), Pending: len(pending)}, nil
}

// NextPending returns the head of the pending queue without mutating it.
// The second return value is false when the queue is empty.
func (s *Store) NextPending() (string, bool, error) {
	queue, err := s.loadQueue()
	if err != nil {
		return "", false, fmt.Errorf("load queue: %w", err)
	}
	if len(queue) == 0 {
		return "", false, nil
	}
	return queue[0], true, nil
}

// Pending returns the full pending queue in download order.
func (s *Store) Pending() ([]string, error) {
	queue, err := s.loadQueue()
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	return queue, nil
}

// MarkFetched records id in the download archive and removes its first
// occurrence from the pending queue. Marking an already-archived id is a
// no-op for the archive. The archive is written before the queue, so a
// crash between the two writes can only cause a single wasteful
// re-download, never a lost item.
func (s *Store) MarkFetched(id string) error {
	fetched, err := s.loadArchive()
	if err != nil {
		return fmt.Errorf("load archive: %w", err)
	}
	if _, ok := fetched[id]; !ok {
		if err := s.appendArchive(id); err != nil {
			return fmt.Errorf("record %s in archive: %w", id, err)
		}
	}

	queue, err := s.loadQueue()
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	trimmed := removeFirst(queue, id)
	if len(trimmed) == len(queue) {
		return nil
	}
	if err := s.saveQueue(trimmed); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}

	s.logger.Debug("item archived",
		logging.String(logging.FieldItem, id),
		logging.Int("remaining", len(trimmed)),
	)
	return nil
}

// Status reports the persisted totals for observability.
func (s *Store) Status() (Status, error) {
	snapshot, err := s.loadSnapshot()
	if err != nil {
		return Status{}, fmt.Errorf("load playlist cache: %w", err)
	}
	fetched, err := s.loadArchive()
	if err != nil {
		return Status{}, fmt.Errorf("load archive: %w", err)
	}
	queue, err := s.loadQueue()
	if err != nil {
		return Status{}, fmt.Errorf("load queue: %w", err)
	}
	return Status{Total: len(snapshot), Fetched: len(fetched), Pending: len(queue)}, nil
}

// difference returns the members of ids absent from fetched, preserving the
// order of ids.
func difference(ids []string, fetched map[string]struct{}) []string {
	pending := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := fetched[id]; ok {
			continue
		}
		pending = append(pending, id)
	}
	return pending
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func removeFirst(queue []string, id string) []string {
	for i, candidate := range queue {
		if candidate == id {
			out := make([]string, 0, len(queue)-1)
			out = append(out, queue[:i]...)
			return append(out, queue[i+1:]...)
		}
	}
	return queue
}
