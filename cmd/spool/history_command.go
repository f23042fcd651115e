package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spool/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent download attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("history is disabled; set history.enabled = true in the config")
			}

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			attempts, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}

			if jsonOutput {
				return writeJSON(cmd, attempts)
			}

			out := cmd.OutOrStdout()
			if len(attempts) == 0 {
				fmt.Fprintln(out, "No download attempts recorded")
				return nil
			}

			rows := make([][]string, 0, len(attempts))
			for _, attempt := range attempts {
				detail := attempt.Detail
				if len(detail) > 60 {
					detail = detail[:57] + "..."
				}
				rows = append(rows, []string{
					attempt.StartedAt.Local().Format(time.DateTime),
					attempt.Item,
					attempt.Outcome,
					attempt.Duration.Round(time.Second).String(),
					detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"When", "Item", "Outcome", "Duration", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of attempts to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit attempts as JSON")
	return cmd
}
