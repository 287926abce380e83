package weborders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cafepos-backend/internal/notifier"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
)

func TestIntakeUpserts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	stored, err := h.svc.Intake(ctx, webInput("W-1", ""))
	require.NoError(t, err)
	assert.Equal(t, enums.WebOrderStatusPending, stored.Status)
	assert.Equal(t, "11.00", stored.Total.StringFixed(2))
	assert.Equal(t, "web", stored.Channel)

	update := webInput("W-1", "accepted")
	update.Items[0].Quantity = 3
	stored, err = h.svc.Intake(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, enums.WebOrderStatusAccepted, stored.Status)
	assert.Equal(t, "16.50", stored.Total.StringFixed(2))
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 3, stored.Items[0].Quantity)

	list, err := h.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestIntakeValidation(t *testing.T) {
	h := newHarness(t)
	in := webInput("", "teleported")
	in.Items = nil
	_, err := h.svc.Intake(context.Background(), in)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Contains(t, details, "id")
	assert.Contains(t, details, "status")
	assert.Contains(t, details, "items")

	_, err = h.svc.Get(context.Background(), "missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestImportPendingCreatesDeliveryOrdersOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Intake(ctx, webInput("W-1", "web-pending"))
	require.NoError(t, err)
	_, err = h.svc.Intake(ctx, webInput("W-2", "accepted"))
	require.NoError(t, err)

	result, err := h.svc.ImportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	order, err := h.orders.Get(ctx, "W-2")
	require.NoError(t, err)
	assert.Equal(t, enums.FulfillmentDelivery, order.FulfillmentType)
	assert.Equal(t, enums.OrderStatusPreparing, order.Status, "accepted catches up right after the import")
	assert.Equal(t, "web", order.Source)
	assert.Equal(t, "11.00", order.Total.StringFixed(2))
	require.NotNil(t, order.Customer.Address)

	web, err := h.svc.Get(ctx, "W-1")
	require.NoError(t, err)
	assert.NotNil(t, web.ImportedAt)

	again, err := h.svc.ImportPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Imported)
	assert.Zero(t, again.CaughtUp)
	assert.Equal(t, 2, again.Skipped)

	list, err := h.orders.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, h.events.count(notifier.WebOrderImported))
}

func TestImportPendingExternalStatusWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Intake(ctx, webInput("W-1", "web-pending"))
	require.NoError(t, err)
	_, err = h.svc.ImportPending(ctx)
	require.NoError(t, err)

	_, err = h.svc.Intake(ctx, webInput("W-1", "cancelled"))
	require.NoError(t, err)
	result, err := h.svc.ImportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CaughtUp)

	order, err := h.orders.Get(ctx, "W-1")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
}

func TestImportPendingCatchesUpAlongForwardPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Intake(ctx, webInput("W-ready", "ready"))
	require.NoError(t, err)
	_, err = h.svc.Intake(ctx, webInput("W-done", "delivered"))
	require.NoError(t, err)

	result, err := h.svc.ImportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	ready, err := h.orders.Get(ctx, "W-ready")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReady, ready.Status)
	done, err := h.orders.Get(ctx, "W-done")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, done.Status)
	assert.Equal(t, 5, h.events.count(notifier.OrderStatusChanged))

	again, err := h.svc.ImportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Skipped: 2}, again)
}

func TestImportPendingCatchesUpExistingOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Intake(ctx, webInput("W-1", "web-pending"))
	require.NoError(t, err)
	_, err = h.svc.ImportPending(ctx)
	require.NoError(t, err)

	_, err = h.svc.Intake(ctx, webInput("W-1", "delivered"))
	require.NoError(t, err)
	result, err := h.svc.ImportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CaughtUp)

	order, err := h.orders.Get(ctx, "W-1")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, order.Status)
}

func TestImportPendingSkipsIllegalCatchUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Intake(ctx, webInput("W-1", "web-pending"))
	require.NoError(t, err)
	_, err = h.svc.ImportPending(ctx)
	require.NoError(t, err)

	_, err = h.orders.UpdateStatus(ctx, "W-1", enums.OrderStatusPreparing)
	require.NoError(t, err)
	_, err = h.orders.UpdateStatus(ctx, "W-1", enums.OrderStatusReady)
	require.NoError(t, err)

	result, err := h.svc.ImportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)

	order, err := h.orders.Get(ctx, "W-1")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReady, order.Status)
}

func TestImportPendingCollectsFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	noAddress := webInput("W-bad", "web-pending")
	noAddress.Customer.Address = nil
	_, err := h.svc.Intake(ctx, noAddress)
	require.NoError(t, err)
	_, err = h.svc.Intake(ctx, webInput("W-good", "web-pending"))
	require.NoError(t, err)

	result, err := h.svc.ImportPending(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "W-bad")
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.FailedRows)

	exists, err := h.orders.Exists(ctx, "W-bad")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestImportPendingDoesNotResurrectDeletedOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Intake(ctx, webInput("W-1", "web-pending"))
	require.NoError(t, err)
	_, err = h.svc.ImportPending(ctx)
	require.NoError(t, err)
	require.NoError(t, h.orders.Delete(ctx, "W-1"))

	result, err := h.svc.ImportPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Imported)
	assert.Equal(t, 1, result.Skipped)

	_, err = h.orders.Get(ctx, "W-1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestProjectStatusToWeb(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.ProjectStatusToWeb(ctx, "not-a-web-order", enums.OrderStatusReady))
	assert.Zero(t, h.events.count(notifier.WebOrderProjected))

	_, err := h.svc.Intake(ctx, webInput("W-1", "web-pending"))
	require.NoError(t, err)
	require.NoError(t, h.svc.ProjectStatusToWeb(ctx, "W-1", enums.OrderStatusPreparing))

	web, err := h.svc.Get(ctx, "W-1")
	require.NoError(t, err)
	assert.Equal(t, enums.WebOrderStatusPreparing, web.Status)
	assert.NotNil(t, web.ProjectedAt)
	assert.Equal(t, 1, h.events.count(notifier.WebOrderProjected))

	require.NoError(t, h.svc.ProjectStatusToWeb(ctx, "W-1", enums.OrderStatusPreparing))
	assert.Equal(t, 1, h.events.count(notifier.WebOrderProjected))

	err = h.svc.ProjectStatusToWeb(ctx, "W-1", "paid")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRoundTripThroughProjection(t *testing.T) {
	paths := map[enums.OrderStatus][]enums.OrderStatus{
		enums.OrderStatusPending:   nil,
		enums.OrderStatusPreparing: {enums.OrderStatusPreparing},
		enums.OrderStatusReady:     {enums.OrderStatusPreparing, enums.OrderStatusReady},
		enums.OrderStatusDelivered: {enums.OrderStatusPreparing, enums.OrderStatusReady, enums.OrderStatusDelivered},
		enums.OrderStatusCancelled: {enums.OrderStatusCancelled},
	}
	for target, path := range paths {
		t.Run(string(target), func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			_, err := h.svc.Intake(ctx, webInput("W-rt", "web-pending"))
			require.NoError(t, err)
			_, err = h.svc.ImportPending(ctx)
			require.NoError(t, err)
			for _, step := range path {
				_, err := h.orders.UpdateStatus(ctx, "W-rt", step)
				require.NoError(t, err)
			}

			require.NoError(t, h.svc.ProjectStatusToWeb(ctx, "W-rt", target))
			_, err = h.svc.ImportPending(ctx)
			require.NoError(t, err)

			order, err := h.orders.Get(ctx, "W-rt")
			require.NoError(t, err)
			assert.Equal(t, target, order.Status)
		})
	}
}

func TestOutForDeliveryIsLostAfterProjection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	unsubscribe := RegisterProjection(h.bus, h.svc, nil)
	defer unsubscribe()

	_, err := h.svc.Intake(ctx, webInput("W-ofd", "out-for-delivery"))
	require.NoError(t, err)
	result, err := h.svc.ImportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	order, err := h.orders.Get(ctx, "W-ofd")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReady, order.Status)

	web, err := h.svc.Get(ctx, "W-ofd")
	require.NoError(t, err)
	assert.Equal(t, enums.WebOrderStatusReady, web.Status, "projection overwrote out-for-delivery")

	again, err := h.svc.ImportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Skipped)

	web, err = h.svc.Get(ctx, "W-ofd")
	require.NoError(t, err)
	assert.NotEqual(t, enums.WebOrderStatusOutForDelivery, web.Status)
	order, err = h.orders.Get(ctx, "W-ofd")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReady, order.Status)
	assert.Nil(t, order.StatusTag)
}

func TestProjectionSubscriberFollowsOrderChanges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	unsubscribe := RegisterProjection(h.bus, h.svc, nil)
	defer unsubscribe()

	_, err := h.svc.Intake(ctx, webInput("W-1", "web-pending"))
	require.NoError(t, err)
	_, err = h.svc.ImportPending(ctx)
	require.NoError(t, err)

	_, err = h.orders.UpdateStatus(ctx, "W-1", enums.OrderStatusPreparing)
	require.NoError(t, err)

	var web models.WebOrder
	require.NoError(t, h.conn.Where("id = ?", "W-1").First(&web).Error)
	assert.Equal(t, enums.WebOrderStatusPreparing, web.Status)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(Deps{})
	assert.Error(t, err)
}

func TestProjectionIgnoresRelayedChanges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	unsubscribe := RegisterProjection(h.bus, h.svc, nil)
	defer unsubscribe()

	_, err := h.svc.Intake(ctx, webInput("W-1", "web-pending"))
	require.NoError(t, err)

	relayed := notifier.NewOrderStatusChanged(notifier.OrderSnapshot{ID: "W-1", Total: "11.00"}, notifier.StatusChange{
		From: string(enums.OrderStatusPending),
		To:   string(enums.OrderStatusPreparing),
	})
	relayed.Origin = "other-instance"
	require.True(t, h.bus.Deliver(ctx, relayed))

	web, err := h.svc.Get(ctx, "W-1")
	require.NoError(t, err)
	assert.Equal(t, enums.WebOrderStatusPending, web.Status)
	assert.Zero(t, h.events.count(notifier.WebOrderProjected))
}
