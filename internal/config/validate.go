package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlaylist(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateYtDlp(); err != nil {
		return err
	}
	if err := c.validateSubtitleSync(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePlaylist() error {
	if c.Playlist.URL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/spool/config.toml"
		}
		return fmt.Errorf("playlist.url is required. Set SPOOL_PLAYLIST_URL env var or edit %s (create with 'spool config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.PollInterval <= 0 {
		return errors.New("scheduler.poll_interval must be positive")
	}
	if c.Scheduler.MinDownloadSpacingHours < 0 {
		return errors.New("scheduler.min_download_spacing_hours must not be negative")
	}
	return nil
}

func (c *Config) validateYtDlp() error {
	if c.YtDlp.Binary == "" {
		return errors.New("ytdlp.binary must be set")
	}
	if c.YtDlp.CookiesPath != "" && c.YtDlp.CookiesFromBrowser == "" {
		return errors.New("ytdlp.cookies_path requires ytdlp.cookies_from_browser")
	}
	for _, lang := range c.YtDlp.SubLangs {
		if _, err := language.Parse(lang); err != nil {
			return fmt.Errorf("ytdlp.sub_langs: invalid language tag %q: %w", lang, err)
		}
	}
	return nil
}

func (c *Config) validateSubtitleSync() error {
	if !c.SubtitleSync.Enabled {
		return nil
	}
	if strings.TrimSpace(c.SubtitleSync.SyncDir) == "" {
		return errors.New("subtitle_sync.sync_dir must be set when subtitle_sync.enabled is true")
	}
	return nil
}
