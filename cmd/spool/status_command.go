package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"spool/internal/daemon"
	"spool/internal/history"
	"spool/internal/logging"
	"spool/internal/playlist"
)

type statusReport struct {
	Running     bool             `json:"running"`
	Playlist    playlist.Status  `json:"playlist"`
	NextPending []string         `json:"next_pending,omitempty"`
	History     *history.Summary `json:"history,omitempty"`
	Files       statusFiles      `json:"files"`
}

type statusFiles struct {
	Cache   string `json:"cache"`
	Archive string `json:"archive"`
	Queue   string `json:"queue"`
	Lock    string `json:"lock"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show reconciliation state and daemon liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store := playlist.NewStore(cfg, nil, logging.NewNop())
			playlistStatus, err := store.Status()
			if err != nil {
				return fmt.Errorf("read playlist state: %w", err)
			}

			pending, err := store.Pending()
			if err != nil {
				return fmt.Errorf("read queue: %w", err)
			}

			report := statusReport{
				Running:     daemonRunning(daemon.LockPath(cfg)),
				Playlist:    playlistStatus,
				NextPending: pending[:min(len(pending), 5)],
				Files: statusFiles{
					Cache:   cfg.CacheFilePath(),
					Archive: cfg.ArchiveFilePath(),
					Queue:   cfg.QueueFilePath(),
					Lock:    daemon.LockPath(cfg),
				},
			}

			if cfg.History.Enabled {
				historyStore, err := history.Open(cfg)
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer historyStore.Close()
				summary, err := historyStore.Summarize(cmd.Context())
				if err != nil {
					return fmt.Errorf("summarize history: %w", err)
				}
				report.History = &summary
			}

			if jsonOutput {
				return writeJSON(cmd, report)
			}
			printStatusReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit status as JSON")
	return cmd
}

// daemonRunning probes the instance lock: if it cannot be acquired, a daemon
// holds it.
func daemonRunning(lockPath string) bool {
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}

func printStatusReport(out io.Writer, report statusReport) {
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	runningKind := statusWarn
	runningMsg := "not running"
	if report.Running {
		runningKind = statusOK
		runningMsg = "running"
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", runningKind, runningMsg, colorize))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Playlist", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Items", statusInfo, fmt.Sprintf("%d", report.Playlist.Total), colorize))
	fmt.Fprintln(out, renderStatusLine("Fetched", statusInfo, fmt.Sprintf("%d", report.Playlist.Fetched), colorize))
	pendingKind := statusOK
	if report.Playlist.Pending > 0 {
		pendingKind = statusInfo
	}
	fmt.Fprintln(out, renderStatusLine("Pending", pendingKind, fmt.Sprintf("%d", report.Playlist.Pending), colorize))
	if len(report.NextPending) > 0 {
		fmt.Fprintln(out, renderStatusLine("Next up", statusInfo, strings.Join(report.NextPending, ", "), colorize))
	}
	fmt.Fprintln(out)

	if report.History != nil {
		for _, line := range renderSectionHeader("History", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, renderStatusLine("Attempts", statusInfo, fmt.Sprintf("%d", report.History.Attempts), colorize))
		fmt.Fprintln(out, renderStatusLine("Successes", statusInfo, fmt.Sprintf("%d", report.History.Successes), colorize))
		failureKind := statusOK
		if report.History.Failures > 0 {
			failureKind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine("Failures", failureKind, fmt.Sprintf("%d", report.History.Failures), colorize))
		if !report.History.LastSuccess.IsZero() {
			fmt.Fprintln(out, renderStatusLine("Last success", statusInfo,
				report.History.LastSuccess.Local().Format(time.RFC3339), colorize))
		}
		fmt.Fprintln(out)
	}

	for _, line := range renderSectionHeader("Files", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Cache", statusInfo, report.Files.Cache, colorize))
	fmt.Fprintln(out, renderStatusLine("Archive", statusInfo, report.Files.Archive, colorize))
	fmt.Fprintln(out, renderStatusLine("Queue", statusInfo, report.Files.Queue, colorize))
	fmt.Fprintln(out, renderStatusLine("Lock", statusInfo, report.Files.Lock, colorize))
}
