package deliveries

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/cafepos-backend/api/responses"
	"github.com/angelmondragon/cafepos-backend/api/validators"
	internaldeliveries "github.com/angelmondragon/cafepos-backend/internal/deliveries"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

// statusResponse carries the stored delivery. OrderSyncError is set when the
// delivery changed but its order refused the mirrored status.
type statusResponse struct {
	internaldeliveries.DeliveryDTO
	OrderSyncError *responses.APIError `json:"orderSyncError,omitempty"`
}

// Create opens a delivery for a delivery order.
func Create(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}

		var body internaldeliveries.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.CreateFromOrder(r.Context(), body.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if delivery == nil {
			// missing orders and pickup/local orders look the same from here
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "delivery order not found").
				WithDetails(map[string]string{"orderId": body.OrderID}))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internaldeliveries.FromModel(delivery))
	}
}

// List filters by ?orderId= and ?status= when given.
func List(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}

		query := r.URL.Query()
		filter := internaldeliveries.ListFilter{
			OrderID: validators.QueryText(r, "orderId", 64),
		}
		if raw := strings.TrimSpace(query.Get("status")); raw != "" {
			status, err := enums.ParseDeliveryStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filter.Status = &status
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internaldeliveries.FromModels(list))
	}
}

func Detail(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}
		id, err := validators.PathUUID(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		delivery, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internaldeliveries.FromModel(delivery))
	}
}

func UpdateStatus(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}
		id, err := validators.PathUUID(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body internaldeliveries.StatusUpdate
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithDeliveryID(ctx, id.String())
		}
		delivery, err := svc.UpdateStatus(ctx, id, body)
		if delivery == nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := statusResponse{DeliveryDTO: internaldeliveries.FromModel(delivery)}
		if err != nil {
			typed := pkgerrors.As(err)
			if typed == nil {
				typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sync order status")
			}
			out.OrderSyncError = &responses.APIError{Code: string(typed.Code()), Message: typed.Message()}
			if logg != nil {
				logg.Warn(logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "delivery.order_sync_rejected")
			}
		}
		responses.WriteSuccess(w, out)
	}
}
