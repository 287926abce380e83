package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafepos-backend/internal/notifier"
	"github.com/angelmondragon/cafepos-backend/pkg/db"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/cafepos-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type transitionRecorder interface {
	IncTransition(from, to string)
}

// Service is the canonical order store.
type Service interface {
	Create(ctx context.Context, draft Draft) (*models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context) ([]models.Order, error)
	ListPage(ctx context.Context, params pagination.Params) (*OrderList, error)
	Exists(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status enums.OrderStatus) (*models.Order, error)
	UpdateStatusWithTag(ctx context.Context, id string, status enums.OrderStatus, tag *string) (*models.Order, error)
	UpdateItems(ctx context.Context, id string, items []LineItemInput) (*models.Order, error)
	Delete(ctx context.Context, id string) error
}

// Deps groups the collaborators of the order service.
type Deps struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Sequencer Sequencer
	Notifier  notifier.Publisher
	Metrics   transitionRecorder
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	sequencer Sequencer
	notifier  notifier.Publisher
	metrics   transitionRecorder
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Sequencer == nil {
		return nil, fmt.Errorf("sequencer required")
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
		repo:      deps.Repo,
		tx:        deps.Tx,
		outbox:    deps.Outbox,
		sequencer: deps.Sequencer,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		now:       deps.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, draft Draft) (*models.Order, error) {
	if details := validateDraft(draft); len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order").WithDetails(details)
	}

	id := strings.TrimSpace(draft.ID)
	if id == "" {
		id = uuid.NewString()
	}
	source := strings.TrimSpace(draft.Source)
	if source == "" {
		source = SourceLocal
	}
	now := s.now().UTC()
	items, total := buildItems(id, draft.LineItems, now)

	order := &models.Order{
		ID:              id,
		FulfillmentType: draft.FulfillmentType,
		Status:          enums.OrderStatusPending,
		Source:          source,
		Customer: models.Customer{
			Name:    strings.TrimSpace(draft.Customer.Name),
			Phone:   trimmed(draft.Customer.Phone),
			Address: trimmed(draft.Customer.Address),
		},
		Total:     total,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		seq, err := s.sequencer.Next(ctx, tx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assign sequence number")
		}
		order.SequenceNumber = seq

		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert order")
		}

		return s.emit(ctx, tx, enums.EventOrderCreated, order.ID, payloads.OrderCreatedEvent{
			OrderID:         order.ID,
			SequenceNumber:  order.SequenceNumber,
			FulfillmentType: order.FulfillmentType,
			Status:          order.Status,
			Source:          order.Source,
			Total:           money(order.Total),
			ItemCount:       len(order.Items),
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID)
	s.logg.Info(s.logg.WithField(logCtx, "sequence_number", order.SequenceNumber), "order.created")
	s.notifier.Publish(ctx, notifier.NewOrderEvent(notifier.OrderCreated, Snapshot(order)))
	return order, nil
}

func (s *service) Get(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context) ([]models.Order, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return orders, nil
}

func (s *service) ListPage(ctx context.Context, params pagination.Params) (*OrderList, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	orders, next, err := s.repo.ListPage(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return &OrderList{Orders: FromModels(orders), NextCursor: next}, nil
}

func (s *service) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := s.repo.Exists(ctx, id)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check order")
	}
	return ok, nil
}

// UpdateStatus moves an order along its lifecycle. Asking for the current
// status succeeds without touching the row.
func (s *service) UpdateStatus(ctx context.Context, id string, status enums.OrderStatus) (*models.Order, error) {
	return s.updateStatus(ctx, id, status, nil, false)
}

// UpdateStatusWithTag is UpdateStatus plus a sub-status label. A matching
// status with a different tag only rewrites the tag.
func (s *service) UpdateStatusWithTag(ctx context.Context, id string, status enums.OrderStatus, tag *string) (*models.Order, error) {
	return s.updateStatus(ctx, id, status, trimmed(tag), true)
}

func (s *service) updateStatus(ctx context.Context, id string, to enums.OrderStatus, tag *string, tagged bool) (*models.Order, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]string{"status": fmt.Sprintf("must be one of %s", joinStatuses())})
	}

	var (
		order   *models.Order
		from    enums.OrderStatus
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		order = current
		from = current.Status

		if from == to {
			if !tagged || sameTag(current.StatusTag, tag) {
				return nil
			}
		} else if !CanTransition(from, to) {
			return pkgerrors.IllegalTransition("order", string(from), string(to))
		}

		if err := repo.UpdateStatus(ctx, id, to, tag, s.now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if err := s.emit(ctx, tx, enums.EventOrderStatusChanged, id, payloads.OrderStatusChangedEvent{
			OrderID: id,
			From:    from,
			To:      to,
			Tag:     tag,
		}); err != nil {
			return err
		}
		changed = true

		order, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return order, nil
	}

	if from != to && s.metrics != nil {
		s.metrics.IncTransition(string(from), string(to))
	}
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, id), map[string]any{"from": string(from), "to": string(to)})
	s.logg.Info(logCtx, "order.status_changed")

	change := notifier.StatusChange{From: string(from), To: string(to)}
	if tag != nil {
		change.Tag = *tag
	}
	s.notifier.Publish(ctx, notifier.NewOrderStatusChanged(Snapshot(order), change))
	return order, nil
}

// UpdateItems replaces the items of an order that is still pending.
func (s *service) UpdateItems(ctx context.Context, id string, input []LineItemInput) (*models.Order, error) {
	if details := validateItems(input); len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid line items").WithDetails(details)
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		if current.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeConflict, "items can only change while the order is pending")
		}

		now := s.now().UTC()
		items, total := buildItems(id, input, now)
		if err := repo.ReplaceItems(ctx, id, items, total, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replace order items")
		}
		if err := s.emit(ctx, tx, enums.EventOrderItemsUpdated, id, payloads.OrderItemsUpdatedEvent{
			OrderID:   id,
			Total:     money(total),
			ItemCount: len(items),
		}); err != nil {
			return err
		}

		order, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, id), "order.items_updated")
	s.notifier.Publish(ctx, notifier.NewOrderEvent(notifier.OrderUpdated, Snapshot(order)))
	return order, nil
}

// Delete hides the order from listings. Its sequence number stays taken.
func (s *service) Delete(ctx context.Context, id string) error {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		order = current
		if err := repo.SoftDelete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete order")
		}
		return s.emit(ctx, tx, enums.EventOrderDeleted, id, payloads.OrderDeletedEvent{
			OrderID: id,
			Status:  current.Status,
		})
	})
	if err != nil {
		return err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, id), "order.deleted")
	s.notifier.Publish(ctx, notifier.NewOrderEvent(notifier.OrderDeleted, Snapshot(order)))
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, id string, data any) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   id,
		Data:          data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit "+string(eventType))
	}
	return nil
}

func validateDraft(draft Draft) map[string]string {
	details := map[string]string{}
	if !draft.FulfillmentType.IsValid() {
		details["fulfillmentType"] = "must be one of local, delivery, pickup"
	}
	if strings.TrimSpace(draft.Customer.Name) == "" {
		details["customer.name"] = "is required"
	}
	if draft.FulfillmentType == enums.FulfillmentDelivery && trimmed(draft.Customer.Address) == nil {
		details["customer.address"] = "is required for delivery orders"
	}
	for field, msg := range validateItems(draft.LineItems) {
		details[field] = msg
	}
	return details
}

func validateItems(items []LineItemInput) map[string]string {
	details := map[string]string{}
	if len(items) == 0 {
		details["lineItems"] = "must contain at least one item"
		return details
	}
	for i, item := range items {
		prefix := fmt.Sprintf("lineItems[%d]", i)
		if strings.TrimSpace(item.Name) == "" {
			details[prefix+".name"] = "is required"
		}
		if item.Quantity <= 0 {
			details[prefix+".quantity"] = "must be greater than 0"
		}
		switch {
		case !item.UnitPrice.IsPositive():
			details[prefix+".unitPrice"] = "must be greater than 0"
		case !item.UnitPrice.Equal(item.UnitPrice.Round(2)):
			details[prefix+".unitPrice"] = "must have at most 2 decimal places"
		}
	}
	return details
}

func buildItems(orderID string, input []LineItemInput, now time.Time) ([]models.OrderLineItem, decimal.Decimal) {
	total := decimal.Zero
	items := make([]models.OrderLineItem, 0, len(input))
	for i, item := range input {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(lineTotal)
		items = append(items, models.OrderLineItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			Position:  i,
			Name:      strings.TrimSpace(item.Name),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: lineTotal,
			Notes:     trimmed(item.Notes),
			CreatedAt: now,
		})
	}
	return items, total
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("order", err)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func sameTag(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func joinStatuses() string {
	statuses := enums.OrderStatuses()
	parts := make([]string, len(statuses))
	for i, status := range statuses {
		parts[i] = string(status)
	}
	return strings.Join(parts, ", ")
}
