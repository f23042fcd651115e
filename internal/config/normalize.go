package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizePlaylist(); err != nil {
		return err
	}
	c.normalizeYtDlp()
	if err := c.normalizeSubtitleSync(); err != nil {
		return err
	}
	c.normalizeHistory()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePlaylist() error {
	c.Playlist.URL = strings.TrimSpace(c.Playlist.URL)
	if c.Playlist.URL == "" {
		if value, ok := os.LookupEnv("SPOOL_PLAYLIST_URL"); ok {
			c.Playlist.URL = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Playlist.CacheFile) == "" {
		c.Playlist.CacheFile = defaultCacheFile
	}
	if strings.TrimSpace(c.Playlist.ArchiveFile) == "" {
		c.Playlist.ArchiveFile = defaultArchiveFile
	}
	if strings.TrimSpace(c.Playlist.QueueFile) == "" {
		c.Playlist.QueueFile = defaultQueueFile
	}
	return nil
}

func (c *Config) normalizeYtDlp() {
	c.YtDlp.Binary = strings.TrimSpace(c.YtDlp.Binary)
	if c.YtDlp.Binary == "" {
		c.YtDlp.Binary = defaultYtDlpBinary
	}
	c.YtDlp.CookiesFromBrowser = strings.ToLower(strings.TrimSpace(c.YtDlp.CookiesFromBrowser))
	c.YtDlp.CookiesPath = strings.TrimSpace(c.YtDlp.CookiesPath)
	c.YtDlp.ExtractorArgs = strings.TrimSpace(c.YtDlp.ExtractorArgs)
	if c.YtDlp.ListTimeout <= 0 {
		c.YtDlp.ListTimeout = defaultListTimeout
	}
	if c.YtDlp.FetchTimeout <= 0 {
		c.YtDlp.FetchTimeout = defaultFetchTimeout
	}

	langs := make([]string, 0, len(c.YtDlp.SubLangs))
	seen := make(map[string]struct{}, len(c.YtDlp.SubLangs))
	for _, lang := range c.YtDlp.SubLangs {
		normalized := strings.ToLower(strings.TrimSpace(lang))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		langs = append(langs, normalized)
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	c.YtDlp.SubLangs = langs
}

func (c *Config) normalizeSubtitleSync() error {
	var err error
	c.SubtitleSync.SyncDir = strings.TrimSpace(c.SubtitleSync.SyncDir)
	if c.SubtitleSync.SyncDir != "" {
		if c.SubtitleSync.SyncDir, err = expandPath(c.SubtitleSync.SyncDir); err != nil {
			return fmt.Errorf("subtitle_sync.sync_dir: %w", err)
		}
	}
	if strings.TrimSpace(c.SubtitleSync.ArchiveFile) == "" {
		c.SubtitleSync.ArchiveFile = defaultSubtitleArchive
	}
	return nil
}

func (c *Config) normalizeHistory() {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = defaultHistoryDB
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
