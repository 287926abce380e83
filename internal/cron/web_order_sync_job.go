package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/cafepos-backend/internal/weborders"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

type webOrderSyncer interface {
	Sync(ctx context.Context) (weborders.SyncResult, error)
}

type WebOrderSyncJobParams struct {
	Logger *logger.Logger
	Syncer webOrderSyncer
}

// NewWebOrderSyncJob pulls the remote web order feed and imports pending orders.
func NewWebOrderSyncJob(params WebOrderSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("web order syncer required")
	}
	return &webOrderSyncJob{logg: params.Logger, syncer: params.Syncer}, nil
}

type webOrderSyncJob struct {
	logg   *logger.Logger
	syncer webOrderSyncer
}

func (j *webOrderSyncJob) Name() string { return "web-order-sync" }

func (j *webOrderSyncJob) Run(ctx context.Context) error {
	result, err := j.syncer.Sync(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"fetched":     result.Fetched,
		"imported":    result.Import.Imported,
		"caught_up":   result.Import.CaughtUp,
		"skipped":     result.Import.Skipped,
		"failed_rows": result.Import.FailedRows,
	})
	if err != nil {
		return fmt.Errorf("web order sync: %w", err)
	}
	j.logg.Info(logCtx, "cron.web_order_sync.complete")
	return nil
}
