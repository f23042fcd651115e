package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"spool/internal/config"
)

// Requirement defines an external binary spool relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

// Requirements lists the binaries for the configured setup. yt-dlp does the
// actual downloading; ffmpeg is only needed when merging separate audio and
// video streams or converting subtitles.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.YtDlp.Binary,
			Description: "Lists playlists and downloads items",
		},
		{
			Name:        "FFmpeg",
			Command:     "ffmpeg",
			Description: "Merges streams and converts subtitles",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Found binaries are probed for their version string.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		status.Version = probeVersion(ctx, resolved)
		results = append(results, status)
	}
	return results
}

// probeVersion runs "<binary> --version" and returns the first line of
// output. Both yt-dlp and ffmpeg answer this; a failed probe is not an
// availability problem, so errors collapse to an empty string.
func probeVersion(ctx context.Context, binary string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "--version")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return ""
	}
	line, _, _ := strings.Cut(out.String(), "\n")
	return strings.TrimSpace(line)
}
