package ytdlp

import (
	"strings"

	"spool/internal/config"
)

// options captures the slice of configuration the command builders need.
type options struct {
	binary             string
	playlistURL        string
	downloadDir        string
	archiveFile        string
	format             string
	outputTemplate     string
	cookiesFromBrowser string
	cookiesPath        string
	extractorArgs      string
	subLangs           []string
	writeSubs          bool
	writeAutoSubs      bool
	embedSubs          bool
	mergeOutputFormat  string
}

func optionsFromConfig(cfg *config.Config) options {
	return options{
		binary:             cfg.YtDlp.Binary,
		playlistURL:        cfg.Playlist.URL,
		downloadDir:        cfg.Paths.DownloadDir,
		archiveFile:        cfg.ArchiveFilePath(),
		format:             cfg.YtDlp.Format,
		outputTemplate:     cfg.YtDlp.OutputTemplate,
		cookiesFromBrowser: cfg.YtDlp.CookiesFromBrowser,
		cookiesPath:        cfg.YtDlp.CookiesPath,
		extractorArgs:      cfg.YtDlp.ExtractorArgs,
		subLangs:           cfg.YtDlp.SubLangs,
		writeSubs:          cfg.YtDlp.WriteSubs,
		writeAutoSubs:      cfg.YtDlp.WriteAutoSubs,
		embedSubs:          cfg.YtDlp.EmbedSubs,
		mergeOutputFormat:  cfg.YtDlp.MergeOutputFormat,
	}
}

// itemURL turns an item id into the watch URL yt-dlp expects.
func itemURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// baseArgs holds the authentication and extractor flags shared by every
// invocation.
func baseArgs(o options) []string {
	var args []string
	if o.cookiesFromBrowser != "" {
		spec := o.cookiesFromBrowser
		if o.cookiesPath != "" {
			spec += ":" + o.cookiesPath
		}
		args = append(args, "--cookies-from-browser", spec)
	}
	if o.extractorArgs != "" {
		args = append(args, "--extractor-args", o.extractorArgs)
	}
	return args
}

func listArgs(o options) []string {
	args := baseArgs(o)
	args = append(args, "--flat-playlist", "--get-id", o.playlistURL)
	return args
}

func fetchArgs(o options, id string) []string {
	args := []string{
		"--download-archive", o.archiveFile,
		"--paths", o.downloadDir,
	}
	args = append(args, baseArgs(o)...)
	if o.format != "" {
		args = append(args, "--format", o.format)
	}
	if o.outputTemplate != "" {
		args = append(args, "--output", o.outputTemplate)
	}
	if o.writeSubs {
		args = append(args, "--write-subs")
	}
	if o.writeAutoSubs {
		args = append(args, "--write-auto-subs")
	}
	if len(o.subLangs) > 0 {
		args = append(args, "--sub-langs", strings.Join(o.subLangs, ","))
	}
	if o.embedSubs {
		args = append(args, "--embed-subs")
	}
	if o.mergeOutputFormat != "" {
		args = append(args, "--merge-output-format", o.mergeOutputFormat)
	}
	args = append(args, itemURL(id))
	return args
}

func subtitleArgs(o options, id string) []string {
	args := []string{
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--convert-subs", "srt",
		"--paths", o.downloadDir,
	}
	if len(o.subLangs) > 0 {
		args = append(args, "--sub-langs", strings.Join(o.subLangs, ","))
	}
	args = append(args, baseArgs(o)...)
	if o.outputTemplate != "" {
		args = append(args, "--output", o.outputTemplate)
	}
	args = append(args, itemURL(id))
	return args
}
