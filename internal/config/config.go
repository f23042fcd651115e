package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
}

// Playlist contains the watched playlist and the files that persist its
// reconciliation state. Relative file names are resolved under StateDir.
type Playlist struct {
	URL         string `toml:"url"`
	CacheFile   string `toml:"cache_file"`
	ArchiveFile string `toml:"archive_file"`
	QueueFile   string `toml:"queue_file"`
}

// YtDlp contains configuration for the external yt-dlp tool.
type YtDlp struct {
	Binary             string   `toml:"binary"`
	Format             string   `toml:"format"`
	OutputTemplate     string   `toml:"output_template"`
	CookiesFromBrowser string   `toml:"cookies_from_browser"`
	CookiesPath        string   `toml:"cookies_path"`
	ExtractorArgs      string   `toml:"extractor_args"`
	SubLangs           []string `toml:"sub_langs"`
	WriteSubs          bool     `toml:"write_subs"`
	WriteAutoSubs      bool     `toml:"write_auto_subs"`
	EmbedSubs          bool     `toml:"embed_subs"`
	MergeOutputFormat  string   `toml:"merge_output_format"`
	ListTimeout        int      `toml:"list_timeout"`
	FetchTimeout       int      `toml:"fetch_timeout"`
}

// Scheduler contains polling loop timing.
type Scheduler struct {
	PollInterval            int `toml:"poll_interval"`
	MinDownloadSpacingHours int `toml:"min_download_spacing_hours"`
}

// SubtitleSync contains configuration for copying subtitle files into a
// cloud-synced folder.
type SubtitleSync struct {
	Enabled     bool   `toml:"enabled"`
	SyncDir     string `toml:"sync_dir"`
	ArchiveFile string `toml:"archive_file"`
}

// History contains configuration for the download attempt history database.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for spool.
type Config struct {
	Paths        Paths        `toml:"paths"`
	Playlist     Playlist     `toml:"playlist"`
	YtDlp        YtDlp        `toml:"ytdlp"`
	Scheduler    Scheduler    `toml:"scheduler"`
	SubtitleSync SubtitleSync `toml:"subtitle_sync"`
	History      History      `toml:"history"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/spool/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("spool.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DownloadDir, c.Paths.StateDir, c.Paths.LogDir}
	if c.SubtitleSync.Enabled && strings.TrimSpace(c.SubtitleSync.SyncDir) != "" {
		dirs = append(dirs, c.SubtitleSync.SyncDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CacheFilePath returns the absolute path of the playlist cache file.
func (c *Config) CacheFilePath() string {
	return c.statePath(c.Playlist.CacheFile)
}

// ArchiveFilePath returns the absolute path of the download archive file.
func (c *Config) ArchiveFilePath() string {
	return c.statePath(c.Playlist.ArchiveFile)
}

// QueueFilePath returns the absolute path of the pending queue file.
func (c *Config) QueueFilePath() string {
	return c.statePath(c.Playlist.QueueFile)
}

// SubtitleArchivePath returns the absolute path of the subtitle sync archive.
func (c *Config) SubtitleArchivePath() string {
	return c.statePath(c.SubtitleSync.ArchiveFile)
}

// HistoryPath returns the absolute path of the history database.
func (c *Config) HistoryPath() string {
	return c.statePath(c.History.Path)
}

func (c *Config) statePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.StateDir, name)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
