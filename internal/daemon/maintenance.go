package daemon

import (
	"context"
	"time"

	"shelfscan/internal/logging"
)

const historyPruneInterval = time.Hour

func (d *Daemon) pruneLoop(ctx context.Context) {
	defer d.wg.Done()
	d.pruneHistory(ctx)

	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pruneHistory(ctx)
		}
	}
}

// pruneHistory deletes scan history older than the configured retention.
func (d *Daemon) pruneHistory(ctx context.Context) int64 {
	retention := d.cfg.HistoryRetention()
	if d.deps.Store == nil || retention <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-retention)
	removed, err := d.deps.Store.PruneHistory(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(d.logger, "scan history prune failed", "history_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check inventory database access"),
				logging.String(logging.FieldImpact, "old scan history is kept until the next attempt"),
			)
		}
		return 0
	}
	if removed > 0 {
		d.logger.Info("scan history pruned",
			logging.String(logging.FieldEventType, "history_pruned"),
			logging.Int64("removed", removed),
			logging.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
		)
	}
	return removed
}
