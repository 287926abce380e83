package deliveries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafepos-backend/internal/notifier"
	"github.com/angelmondragon/cafepos-backend/internal/orders"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderStore is the part of the order service deliveries depend on.
type OrderStore interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	UpdateStatusWithTag(ctx context.Context, id string, status enums.OrderStatus, tag *string) (*models.Order, error)
}

// Service tracks delivery records for delivery orders.
type Service interface {
	CreateFromOrder(ctx context.Context, orderID string) (*models.Delivery, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	List(ctx context.Context, filter ListFilter) ([]models.Delivery, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) (*models.Delivery, error)
	CancelForOrder(ctx context.Context, orderID string) (int, error)
}

type Deps struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Orders   OrderStore
	Notifier notifier.Publisher
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	orders   OrderStore
	notifier notifier.Publisher
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{
		repo:     deps.Repo,
		tx:       deps.Tx,
		outbox:   deps.Outbox,
		orders:   deps.Orders,
		notifier: deps.Notifier,
		logg:     deps.Logger,
		now:      deps.Now,
	}, nil
}

// CreateFromOrder opens a delivery for a delivery-type order. It returns nil
// without error when the order is missing or is not a delivery. Each call
// opens a new record.
func (s *service) CreateFromOrder(ctx context.Context, orderID string) (*models.Delivery, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if order.FulfillmentType != enums.FulfillmentDelivery {
		return nil, nil
	}

	now := s.now().UTC()
	delivery := &models.Delivery{
		ID:           uuid.New(),
		OrderID:      order.ID,
		Status:       enums.DeliveryStatusPreparing,
		Customer:     order.Customer,
		ItemsSummary: summarize(order.Items),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, delivery); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert delivery")
		}
		return s.emit(ctx, tx, enums.EventDeliveryCreated, delivery.ID, payloads.DeliveryCreatedEvent{
			DeliveryID: delivery.ID.String(),
			OrderID:    delivery.OrderID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithDeliveryID(s.logg.WithOrderID(ctx, order.ID), delivery.ID.String()), "delivery.created")
	s.notifier.Publish(ctx, notifier.NewDeliveryCreated(snapshot(delivery)))
	return delivery, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	delivery, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return delivery, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Delivery, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status").
			WithDetails(map[string]string{"status": "is not a known delivery status"})
	}
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list deliveries")
	}
	return list, nil
}

// UpdateStatus stores the delivery change, then mirrors it onto the order,
// walking the order forward through any statuses it has not reached yet.
// When the order rejects the change the delivery keeps its new state and the
// updated delivery is returned together with the propagation error.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) (*models.Delivery, error) {
	if !update.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status").
			WithDetails(map[string]string{"status": "is not a known delivery status"})
	}

	var (
		delivery *models.Delivery
		from     enums.DeliveryStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err)
		}
		from = current.Status
		if isTerminal(from) && from != update.Status {
			return pkgerrors.IllegalTransition("delivery", string(from), string(update.Status))
		}

		if err := repo.Update(ctx, id, buildUpdates(update, s.now().UTC())); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update delivery")
		}
		delivery, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload delivery")
		}
		return s.emit(ctx, tx, enums.EventDeliveryStatusChanged, id, payloads.DeliveryStatusChangedEvent{
			DeliveryID: id.String(),
			OrderID:    delivery.OrderID,
			From:       from,
			To:         update.Status,
			Driver:     delivery.Driver,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithDeliveryID(s.logg.WithOrderID(ctx, delivery.OrderID), id.String())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{"from": string(from), "to": string(update.Status)}), "delivery.status_changed")
	s.notifier.Publish(ctx, notifier.NewDeliveryStatusChanged(snapshot(delivery), notifier.StatusChange{
		From: string(from),
		To:   string(update.Status),
	}))

	if err := s.propagate(ctx, delivery); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "delivery.propagation_failed")
		return delivery, err
	}
	return delivery, nil
}

func (s *service) propagate(ctx context.Context, delivery *models.Delivery) error {
	status, tag, err := ToOrderStatus(delivery.Status)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "map delivery status")
	}
	if _, err := orders.Advance(ctx, s.orders, delivery.OrderID, status, tag); err != nil {
		return fmt.Errorf("propagate %s to order %s: %w", delivery.Status, delivery.OrderID, err)
	}
	return nil
}

// CancelForOrder cancels every open delivery of an order without touching
// the order itself.
func (s *service) CancelForOrder(ctx context.Context, orderID string) (int, error) {
	var cancelled []models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		open, err := repo.ListOpenByOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list open deliveries")
		}
		now := s.now().UTC()
		for i := range open {
			d := open[i]
			if err := repo.Update(ctx, d.ID, map[string]any{"status": enums.DeliveryStatusCancelled, "updated_at": now}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel delivery")
			}
			if err := s.emit(ctx, tx, enums.EventDeliveryStatusChanged, d.ID, payloads.DeliveryStatusChangedEvent{
				DeliveryID: d.ID.String(),
				OrderID:    orderID,
				From:       d.Status,
				To:         enums.DeliveryStatusCancelled,
				Driver:     d.Driver,
			}); err != nil {
				return err
			}
			cancelled = append(cancelled, d)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i := range cancelled {
		from := cancelled[i].Status
		cancelled[i].Status = enums.DeliveryStatusCancelled
		s.notifier.Publish(ctx, notifier.NewDeliveryStatusChanged(snapshot(&cancelled[i]), notifier.StatusChange{
			From: string(from),
			To:   string(enums.DeliveryStatusCancelled),
		}))
	}
	if len(cancelled) > 0 {
		s.logg.Info(s.logg.WithField(s.logg.WithOrderID(ctx, orderID), "cancelled", len(cancelled)), "delivery.cascade_cancelled")
	}
	return len(cancelled), nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, id uuid.UUID, data any) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateDelivery,
		AggregateID:   id.String(),
		Data:          data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit "+string(eventType))
	}
	return nil
}

func buildUpdates(update StatusUpdate, now time.Time) map[string]any {
	updates := map[string]any{
		"status":     update.Status,
		"updated_at": now,
	}
	if update.Driver != nil {
		driver := strings.TrimSpace(*update.Driver)
		if driver == "" {
			updates["driver"] = nil
		} else {
			updates["driver"] = driver
		}
	}
	if update.EstimatedMinutes != nil {
		updates["estimated_minutes"] = *update.EstimatedMinutes
	}
	if update.DistanceKm != nil {
		updates["distance_km"] = *update.DistanceKm
	}
	return updates
}

func summarize(items []models.OrderLineItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
	}
	return strings.Join(parts, ", ")
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("delivery", err)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery")
}
