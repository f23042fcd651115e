package daemon

import (
	"context"
	"log/slog"

	"spool/internal/logging"
	"spool/internal/subtitles"
	"spool/internal/ytdlp"
)

// pipeline is the scheduler's fetcher: it downloads one item, then runs the
// best-effort follow-ups. Only the download result decides whether the item
// counts as fetched; subtitle problems are logged and dropped.
type pipeline struct {
	client *ytdlp.Client
	syncer *subtitles.Syncer
	logger *slog.Logger
}

func newPipeline(client *ytdlp.Client, syncer *subtitles.Syncer, logger *slog.Logger) *pipeline {
	return &pipeline{
		client: client,
		syncer: syncer,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

func (p *pipeline) FetchOne(ctx context.Context, id string) error {
	if err := p.client.FetchOne(ctx, id); err != nil {
		return err
	}

	if err := p.client.FetchSubtitles(ctx, id); err != nil {
		p.logger.Warn("subtitle fetch failed",
			logging.String(logging.FieldItem, id),
			logging.Error(err),
		)
	}

	if p.syncer != nil {
		if _, err := p.syncer.SyncAll(); err != nil {
			p.logger.Warn("subtitle sync failed",
				logging.String(logging.FieldItem, id),
				logging.Error(err),
			)
		}
	}
	return nil
}
