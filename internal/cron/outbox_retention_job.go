package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

const (
	defaultOutboxRetention   = 30 * 24 * time.Hour
	defaultOutboxMaxAttempts = 10
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxRetentionRepo
	Retention  time.Duration
	// MaxAttempts matches the relay's limit; rows at it are parked.
	MaxAttempts int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountParked(ctx context.Context, maxAttempts int) (int64, error)
}

// NewOutboxRetentionJob prunes published order, delivery and web order events
// past the retention window. Parked rows are never pruned; the job reports
// how many are waiting so a stuck event does not go unnoticed.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Repository == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	j := &outboxRetentionJob{
		logg:        params.Logger,
		repo:        params.Repository,
		retention:   params.Retention,
		maxAttempts: params.MaxAttempts,
		now:         time.Now,
	}
	if j.retention <= 0 {
		j.retention = defaultOutboxRetention
	}
	if j.maxAttempts <= 0 {
		j.maxAttempts = defaultOutboxMaxAttempts
	}
	return j, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	repo        outboxRetentionRepo
	retention   time.Duration
	maxAttempts int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	parked, err := j.repo.CountParked(ctx, j.maxAttempts)
	if err != nil {
		return fmt.Errorf("count parked outbox rows: %w", err)
	}

	ctx = j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
		"rows_parked":  parked,
	})
	if parked > 0 {
		j.logg.Warn(ctx, "cron.outbox_retention.parked_rows")
	}
	j.logg.Info(ctx, "cron.outbox_retention.complete")
	return nil
}
