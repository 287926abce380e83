package weborders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
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

const sourceWeb = "web"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderStore is the slice of the order service the adapter drives.
type OrderStore interface {
	Create(ctx context.Context, draft orders.Draft) (*models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	Exists(ctx context.Context, id string) (bool, error)
	UpdateStatusWithTag(ctx context.Context, id string, status enums.OrderStatus, tag *string) (*models.Order, error)
}

type importRecorder interface {
	AddImported(n int)
	AddImportFailures(n int)
}

// Service translates between queued web orders and canonical orders.
type Service interface {
	Intake(ctx context.Context, input IntakeInput) (*models.WebOrder, error)
	Get(ctx context.Context, id string) (*models.WebOrder, error)
	List(ctx context.Context) ([]models.WebOrder, error)
	ImportPending(ctx context.Context) (ImportResult, error)
	ProjectStatusToWeb(ctx context.Context, orderID string, status enums.OrderStatus) error
}

type Deps struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Orders   OrderStore
	Notifier notifier.Publisher
	Metrics  importRecorder
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	orders   OrderStore
	notifier notifier.Publisher
	metrics  importRecorder
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("web orders repository required")
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
		metrics:  deps.Metrics,
		logg:     deps.Logger,
		now:      deps.Now,
	}, nil
}

// Intake queues a web order, replacing status and payload when the id is
// already known.
func (s *service) Intake(ctx context.Context, input IntakeInput) (*models.WebOrder, error) {
	order, err := s.buildWebOrder(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store web order")
	}
	stored, err := s.repo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload web order")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"web_order_id": stored.ID, "web_status": string(stored.Status)})
	s.logg.Info(logCtx, "weborders.intake")
	return stored, nil
}

func (s *service) Get(ctx context.Context, id string) (*models.WebOrder, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("web order", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load web order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context) ([]models.WebOrder, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list web orders")
	}
	return list, nil
}

// ImportPending creates canonical orders for web orders not seen before and
// pushes the external status onto orders, walking them forward through the
// statuses in between. Per-order failures are collected; the import count is
// returned either way.
func (s *service) ImportPending(ctx context.Context) (ImportResult, error) {
	var result ImportResult
	queued, err := s.repo.List(ctx)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list web orders")
	}

	var errs error
	for i := range queued {
		web := &queued[i]
		outcome, err := s.reconcile(ctx, web)
		if err != nil {
			result.FailedRows++
			errs = multierr.Append(errs, fmt.Errorf("web order %s: %w", web.ID, err))
		}
		switch {
		case outcome == outcomeImported:
			result.Imported++
		case outcome == outcomeCaughtUp:
			result.CaughtUp++
		case err == nil:
			result.Skipped++
		}
	}

	if s.metrics != nil {
		s.metrics.AddImported(result.Imported)
		s.metrics.AddImportFailures(result.FailedRows)
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"imported":  result.Imported,
		"caught_up": result.CaughtUp,
		"skipped":   result.Skipped,
		"failed":    result.FailedRows,
	})
	s.logg.Info(logCtx, "weborders.import.complete")
	return result, errs
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeImported
	outcomeCaughtUp
)

func (s *service) reconcile(ctx context.Context, web *models.WebOrder) (outcome, error) {
	logCtx := s.logg.WithFields(ctx, map[string]any{"web_order_id": web.ID, "web_status": string(web.Status)})

	exists, err := s.orders.Exists(ctx, web.ID)
	if err != nil {
		return outcomeSkipped, err
	}
	if !exists {
		return s.importOne(logCtx, web)
	}

	current, err := s.orders.Get(ctx, web.ID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			// deleted locally; never resurrected
			return outcomeSkipped, nil
		}
		return outcomeSkipped, err
	}
	moved, err := s.catchUp(logCtx, web, current)
	if err != nil || !moved {
		return outcomeSkipped, err
	}
	return outcomeCaughtUp, nil
}

// catchUp moves the order to the mapped web status. Targets behind the
// order or past a terminal status are logged and left alone.
func (s *service) catchUp(ctx context.Context, web *models.WebOrder, current *models.Order) (bool, error) {
	want, err := ToCanonical(web.Status)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "map web status")
	}
	if current.Status == want {
		return false, nil
	}
	if _, err := orders.Advance(ctx, s.orders, web.ID, want, nil); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeIllegalTransition) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_status":  string(current.Status),
				"mapped_status": string(want),
			}), "weborders.catchup.rejected")
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *service) importOne(ctx context.Context, web *models.WebOrder) (outcome, error) {
	draft := orders.Draft{
		ID:              web.ID,
		Source:          sourceWeb,
		FulfillmentType: enums.FulfillmentDelivery,
		Customer: orders.CustomerInput{
			Name:    web.Customer.Name,
			Phone:   web.Customer.Phone,
			Address: web.Customer.Address,
		},
		LineItems: make([]orders.LineItemInput, 0, len(web.Items)),
	}
	for _, item := range web.Items {
		draft.LineItems = append(draft.LineItems, orders.LineItemInput{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Notes:     item.Notes,
		})
	}

	order, err := s.orders.Create(ctx, draft)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			// another worker imported it first
			return outcomeSkipped, nil
		}
		return outcomeSkipped, err
	}

	now := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).MarkImported(ctx, web.ID, now); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWebOrderImported,
			AggregateType: enums.AggregateWebOrder,
			AggregateID:   web.ID,
			Data: payloads.WebOrderImportedEvent{
				WebOrderID: web.ID,
				OrderID:    order.ID,
				Total:      order.Total.StringFixed(2),
			},
		})
	})
	if err != nil {
		return outcomeImported, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark web order imported")
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID), "weborders.imported")
	s.notifier.Publish(ctx, notifier.NewWebOrderEvent(notifier.WebOrderImported, notifier.WebOrderRef{
		ID:     web.ID,
		Status: string(web.Status),
	}))
	if _, err := s.catchUp(ctx, web, order); err != nil {
		return outcomeImported, err
	}
	return outcomeImported, nil
}

// ProjectStatusToWeb writes the mapped status onto the web order with the
// same id. Orders that did not come from the web channel are ignored.
func (s *service) ProjectStatusToWeb(ctx context.Context, orderID string, status enums.OrderStatus) error {
	mapped, err := ToWeb(status)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "map order status")
	}

	web, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load web order")
	}
	if web.Status == mapped {
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, orderID, mapped, s.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "project web status")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"web_order_id": orderID, "from": string(web.Status), "to": string(mapped)})
	s.logg.Info(logCtx, "weborders.projected")
	s.notifier.Publish(ctx, notifier.NewWebOrderEvent(notifier.WebOrderProjected, notifier.WebOrderRef{
		ID:     orderID,
		Status: string(mapped),
	}))
	return nil
}

func (s *service) buildWebOrder(input IntakeInput) (*models.WebOrder, error) {
	details := map[string]string{}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		details["id"] = "is required"
	}
	status := enums.WebOrderStatusPending
	if raw := strings.TrimSpace(input.Status); raw != "" {
		parsed, err := enums.ParseWebOrderStatus(raw)
		if err != nil {
			details["status"] = "is not a known web order status"
		}
		status = parsed
	}
	if strings.TrimSpace(input.Customer.Name) == "" {
		details["customer.name"] = "is required"
	}
	if len(input.Items) == 0 {
		details["items"] = "must contain at least one item"
	}

	total := decimal.Zero
	items := make([]models.WebOrderItem, 0, len(input.Items))
	for i, item := range input.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.Name) == "" {
			details[prefix+".name"] = "is required"
		}
		if item.Quantity <= 0 {
			details[prefix+".quantity"] = "must be greater than 0"
		}
		if !item.UnitPrice.IsPositive() {
			details[prefix+".unitPrice"] = "must be greater than 0"
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		items = append(items, models.WebOrderItem{
			Name:      strings.TrimSpace(item.Name),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Notes:     item.Notes,
		})
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid web order").WithDetails(details)
	}

	channel := strings.TrimSpace(input.Channel)
	if channel == "" {
		channel = sourceWeb
	}
	now := s.now().UTC()
	return &models.WebOrder{
		ID:      id,
		Status:  status,
		Channel: channel,
		Customer: models.Customer{
			Name:    strings.TrimSpace(input.Customer.Name),
			Phone:   input.Customer.Phone,
			Address: input.Customer.Address,
		},
		Items:     items,
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
