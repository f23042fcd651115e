package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"spool/internal/logging"
	"spool/internal/playlist"
	"spool/internal/ytdlp"
)

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reconcile the playlist against the download archive once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			client, err := ytdlp.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("build yt-dlp client: %w", err)
			}
			store := playlist.NewStore(cfg, client, logger)
			out := cmd.OutOrStdout()

			before, err := store.Status()
			if err != nil {
				return fmt.Errorf("read playlist state: %w", err)
			}
			fmt.Fprintf(out, "Before: %d items, %d fetched, %d pending\n",
				before.Total, before.Fetched, before.Pending)

			summary, err := store.Refresh(cmd.Context())
			if err != nil {
				return fmt.Errorf("refresh playlist: %w", err)
			}
			fmt.Fprintf(out, "After:  %d items, %d pending download\n", summary.Total, summary.Pending)

			pending, err := store.Pending()
			if err != nil {
				return fmt.Errorf("read queue: %w", err)
			}
			if len(pending) > 0 {
				limit := min(len(pending), 5)
				fmt.Fprintf(out, "Next up: %s\n", strings.Join(pending[:limit], ", "))
			}
			return nil
		},
	}
}
