package config

const (
	defaultDownloadDir     = "~/downloads/spool"
	defaultStateDir        = "~/.local/share/spool/state"
	defaultLogDir          = "~/.local/share/spool/logs"
	defaultCacheFile       = "playlist_cache.txt"
	defaultArchiveFile     = "download_archive.txt"
	defaultQueueFile       = "download_queue.txt"
	defaultYtDlpBinary     = "yt-dlp"
	defaultFormat          = "bestvideo*+bestaudio/best"
	defaultOutputTemplate  = "%(upload_date)s - %(title)s [%(id)s].%(ext)s"
	defaultMergeFormat     = "mkv"
	defaultListTimeout     = 60
	defaultFetchTimeout    = 1800
	defaultPollInterval    = 60
	defaultSpacingHours    = 0
	defaultSubtitleArchive = "subtitle_sync_archive.txt"
	defaultHistoryDB       = "history.db"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultRetentionDays   = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
		},
		Playlist: Playlist{
			CacheFile:   defaultCacheFile,
			ArchiveFile: defaultArchiveFile,
			QueueFile:   defaultQueueFile,
		},
		YtDlp: YtDlp{
			Binary:            defaultYtDlpBinary,
			Format:            defaultFormat,
			OutputTemplate:    defaultOutputTemplate,
			SubLangs:          []string{"en"},
			WriteSubs:         true,
			WriteAutoSubs:     true,
			MergeOutputFormat: defaultMergeFormat,
			ListTimeout:       defaultListTimeout,
			FetchTimeout:      defaultFetchTimeout,
		},
		Scheduler: Scheduler{
			PollInterval:            defaultPollInterval,
			MinDownloadSpacingHours: defaultSpacingHours,
		},
		SubtitleSync: SubtitleSync{
			ArchiveFile: defaultSubtitleArchive,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryDB,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
	}
}
