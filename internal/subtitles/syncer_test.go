package subtitles

import (
	"os"
	"path/filepath"
	"testing"

	"spool/internal/config"
	"spool/internal/fileutil"
	"spool/internal/logging"
)

func testSyncer(t *testing.T) (*Syncer, *config.Config) {
	t.Helper()
	cfg := config.Default()
	root := t.TempDir()
	cfg.Paths.DownloadDir = filepath.Join(root, "downloads")
	cfg.Paths.StateDir = filepath.Join(root, "state")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.SubtitleSync.Enabled = true
	cfg.SubtitleSync.SyncDir = filepath.Join(root, "synced")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return New(&cfg, logging.NewNop()), &cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestSyncAllCopiesAsTxt(t *testing.T) {
	syncer, cfg := testSyncer(t)
	writeFile(t, filepath.Join(cfg.Paths.DownloadDir, "Talk [abc].en.vtt"), "WEBVTT\n\nhello\n")
	writeFile(t, filepath.Join(cfg.Paths.DownloadDir, "nested", "Other [def].en.vtt"), "WEBVTT\n")
	writeFile(t, filepath.Join(cfg.Paths.DownloadDir, "Talk [abc].mkv"), "video")

	result, err := syncer.SyncAll()
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if result.Synced != 2 || result.Skipped != 0 {
		t.Errorf("result = %+v, want 2 synced", result)
	}

	data, err := os.ReadFile(filepath.Join(cfg.SubtitleSync.SyncDir, "Talk [abc].en.txt"))
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(data) != "WEBVTT\n\nhello\n" {
		t.Errorf("dest content = %q", data)
	}
	if _, err := os.Stat(filepath.Join(cfg.SubtitleSync.SyncDir, "Other [def].en.txt")); err != nil {
		t.Errorf("nested file not synced: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.SubtitleSync.SyncDir, "Talk [abc].mkv")); err == nil {
		t.Error("non-subtitle file was copied")
	}

	archive, err := fileutil.ReadLines(cfg.SubtitleArchivePath())
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if len(archive) != 2 {
		t.Errorf("archive = %v, want two entries", archive)
	}
}

func TestSyncAllSkipsAlreadySynced(t *testing.T) {
	syncer, cfg := testSyncer(t)
	writeFile(t, filepath.Join(cfg.Paths.DownloadDir, "Talk [abc].en.vtt"), "WEBVTT\n")

	if _, err := syncer.SyncAll(); err != nil {
		t.Fatalf("first SyncAll: %v", err)
	}
	result, err := syncer.SyncAll()
	if err != nil {
		t.Fatalf("second SyncAll: %v", err)
	}
	if result.Synced != 0 || result.Skipped != 1 {
		t.Errorf("result = %+v, want 1 skipped", result)
	}
}

func TestSyncAllResyncsWhenDestinationMissing(t *testing.T) {
	syncer, cfg := testSyncer(t)
	writeFile(t, filepath.Join(cfg.Paths.DownloadDir, "Talk [abc].en.vtt"), "WEBVTT\n")

	if _, err := syncer.SyncAll(); err != nil {
		t.Fatalf("first SyncAll: %v", err)
	}
	dest := filepath.Join(cfg.SubtitleSync.SyncDir, "Talk [abc].en.txt")
	if err := os.Remove(dest); err != nil {
		t.Fatalf("remove dest: %v", err)
	}

	result, err := syncer.SyncAll()
	if err != nil {
		t.Fatalf("second SyncAll: %v", err)
	}
	if result.Synced != 1 {
		t.Errorf("result = %+v, want resync", result)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination not restored: %v", err)
	}
}

func TestSyncAllMissingDownloadDir(t *testing.T) {
	syncer, cfg := testSyncer(t)
	if err := os.RemoveAll(cfg.Paths.DownloadDir); err != nil {
		t.Fatalf("remove download dir: %v", err)
	}

	result, err := syncer.SyncAll()
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if result.Synced != 0 || result.Skipped != 0 {
		t.Errorf("result = %+v, want nothing", result)
	}
}

func TestSyncOne(t *testing.T) {
	syncer, cfg := testSyncer(t)
	source := filepath.Join(cfg.Paths.DownloadDir, "Talk [abc].en.vtt")
	writeFile(t, source, "WEBVTT\n")

	copied, err := syncer.SyncOne(source)
	if err != nil {
		t.Fatalf("SyncOne: %v", err)
	}
	if !copied {
		t.Error("expected copy on first sync")
	}

	copied, err = syncer.SyncOne(source)
	if err != nil {
		t.Fatalf("second SyncOne: %v", err)
	}
	if copied {
		t.Error("expected skip on second sync")
	}
}

func TestSyncOneRejectsNonSubtitle(t *testing.T) {
	syncer, cfg := testSyncer(t)
	source := filepath.Join(cfg.Paths.DownloadDir, "Talk [abc].mkv")
	writeFile(t, source, "video")

	if _, err := syncer.SyncOne(source); err == nil {
		t.Fatal("expected error for non-subtitle file")
	}
}
