package subtitles

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"spool/internal/config"
	"spool/internal/fileutil"
	"spool/internal/logging"
)

// Result reports one sync pass.
type Result struct {
	Synced  int
	Skipped int
}

// Syncer copies subtitle files out of the download tree into a flat sync
// folder, renaming .vtt to .txt so plain-text viewers pick them up. Synced
// source names are tracked in an archive file; a file is re-copied when its
// destination disappears.
type Syncer struct {
	downloadDir string
	syncDir     string
	archivePath string
	logger      *slog.Logger
}

// New builds a syncer from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Syncer {
	return &Syncer{
		downloadDir: cfg.Paths.DownloadDir,
		syncDir:     cfg.SubtitleSync.SyncDir,
		archivePath: cfg.SubtitleArchivePath(),
		logger:      logging.NewComponentLogger(logger, "subtitles"),
	}
}

// SyncAll walks the download tree and copies every subtitle file that is not
// yet recorded as synced. Individual copy failures are logged and skipped so
// one bad file never blocks the rest.
func (s *Syncer) SyncAll() (Result, error) {
	sources, err := s.findSubtitleFiles()
	if err != nil {
		return Result{}, err
	}
	if len(sources) == 0 {
		return Result{}, nil
	}

	synced, err := s.loadArchive()
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(s.syncDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create sync dir: %w", err)
	}

	var result Result
	for _, source := range sources {
		copied, err := s.syncFile(source, synced)
		if err != nil {
			s.logger.Warn("failed to sync subtitle",
				logging.String("file", filepath.Base(source)),
				logging.Error(err),
			)
			continue
		}
		if copied {
			result.Synced++
		} else {
			result.Skipped++
		}
	}

	if result.Synced > 0 {
		if err := s.saveArchive(synced); err != nil {
			return result, err
		}
		s.logger.Info("subtitle sync complete",
			logging.Int("synced", result.Synced),
			logging.Int("skipped", result.Skipped),
		)
	}
	return result, nil
}

// SyncOne copies a single subtitle file, typically right after a download.
// It returns false when the file was already synced.
func (s *Syncer) SyncOne(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".vtt") {
		return false, fmt.Errorf("not a subtitle file: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		return false, fmt.Errorf("stat subtitle: %w", err)
	}

	synced, err := s.loadArchive()
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(s.syncDir, 0o755); err != nil {
		return false, fmt.Errorf("create sync dir: %w", err)
	}

	copied, err := s.syncFile(path, synced)
	if err != nil {
		return false, err
	}
	if copied {
		if err := s.saveArchive(synced); err != nil {
			return false, err
		}
	}
	return copied, nil
}

// syncFile copies source into the sync dir when needed and records it in the
// in-memory set. It reports whether a copy happened.
func (s *Syncer) syncFile(source string, synced map[string]struct{}) (bool, error) {
	name := filepath.Base(source)
	destName := strings.TrimSuffix(name, filepath.Ext(name)) + ".txt"
	dest := filepath.Join(s.syncDir, destName)

	if _, ok := synced[name]; ok {
		if _, err := os.Stat(dest); err == nil {
			return false, nil
		}
		s.logger.Info("destination missing, resyncing subtitle",
			logging.String("file", name),
		)
	}

	if err := fileutil.CopyFile(source, dest); err != nil {
		return false, err
	}
	synced[name] = struct{}{}
	s.logger.Info("synced subtitle",
		logging.String("file", name),
		logging.String("dest", destName),
	)
	return true, nil
}

func (s *Syncer) findSubtitleFiles() ([]string, error) {
	if _, err := os.Stat(s.downloadDir); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("download directory does not exist",
				logging.String("dir", s.downloadDir),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("stat download dir: %w", err)
	}

	var files []string
	err := filepath.WalkDir(s.downloadDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ".vtt") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan download dir: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func (s *Syncer) loadArchive() (map[string]struct{}, error) {
	lines, err := fileutil.ReadLines(s.archivePath)
	if err != nil {
		return nil, fmt.Errorf("read subtitle archive: %w", err)
	}
	synced := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		synced[line] = struct{}{}
	}
	return synced, nil
}

func (s *Syncer) saveArchive(synced map[string]struct{}) error {
	names := make([]string, 0, len(synced))
	for name := range synced {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := fileutil.WriteLines(s.archivePath, names); err != nil {
		return fmt.Errorf("write subtitle archive: %w", err)
	}
	return nil
}
