package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox/registry"
)

type outcome string

const (
	outcomePublished outcome = "published"
	outcomeRetry     outcome = "retry"
	outcomeParked    outcome = "parked"
)

// drain handles one locked batch. It reports whether any rows were found;
// the error is only set when the ledger itself could not be written.
func (r *Relay) drain(ctx context.Context) (bool, error) {
	started := time.Now()
	found := false
	err := r.store.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.ledger.FetchUnpublishedForPublish(tx, r.batch, r.maxAttempts)
		if err != nil {
			return err
		}
		found = len(rows) > 0
		for _, row := range rows {
			if err := r.dispatch(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if found {
		r.metrics.ObserveDrain(time.Since(started))
	}
	return found, err
}

func (r *Relay) dispatch(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return r.settle(ctx, tx, row, nil, outcomeParked, err)
	}

	sendErr := r.send(ctx, row, resolved)
	var permanent registry.NonRetryableError
	switch {
	case sendErr == nil:
		return r.settle(ctx, tx, row, resolved, outcomePublished, nil)
	case errors.As(sendErr, &permanent):
		return r.settle(ctx, tx, row, resolved, outcomeParked, sendErr)
	case row.AttemptCount+1 >= r.maxAttempts:
		return r.settle(ctx, tx, row, resolved, outcomeParked, fmt.Errorf("max publish attempts reached: %w", sendErr))
	default:
		return r.settle(ctx, tx, row, resolved, outcomeRetry, sendErr)
	}
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, resolved *registry.ResolvedEvent, out outcome, cause error) error {
	fields := rowFields(row, resolved)
	fields["outcome"] = string(out)
	logCtx := r.logg.WithFields(ctx, fields)
	if cause != nil {
		logCtx = r.logg.WithField(logCtx, "error", cause.Error())
	}

	var markErr error
	switch out {
	case outcomePublished:
		markErr = r.ledger.MarkPublishedTx(tx, row.ID)
		r.logg.Info(logCtx, "outbox.published")
	case outcomeRetry:
		markErr = r.ledger.MarkFailedTx(tx, row.ID, cause)
		r.logg.Warn(logCtx, "outbox.publish.failed")
	case outcomeParked:
		markErr = r.ledger.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts)
		r.logg.Warn(logCtx, "outbox.event.parked")
	}
	if markErr != nil {
		return fmt.Errorf("mark %s %s: %w", out, row.ID, markErr)
	}
	r.metrics.IncDispatched(string(row.AggregateType), string(row.EventType), string(out))
	return nil
}

func rowFields(row models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID,
		"attempt_count":  row.AttemptCount,
	}
	if resolved == nil {
		return fields
	}
	fields["topic"] = resolved.Descriptor.Topic
	if key := orderKey(row, resolved); key != "" {
		fields["order_id"] = key
	}
	if resolved.Envelope.EventID != "" {
		fields["event_id"] = resolved.Envelope.EventID
	}
	return fields
}
