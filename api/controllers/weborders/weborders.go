package weborders

import (
	"context"
	"net/http"

	"go.uber.org/multierr"

	"github.com/angelmondragon/cafepos-backend/api/responses"
	"github.com/angelmondragon/cafepos-backend/api/validators"
	internalweborders "github.com/angelmondragon/cafepos-backend/internal/weborders"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

// Syncer runs one pull-and-import pass against the upstream feed.
type Syncer interface {
	Sync(ctx context.Context) (internalweborders.SyncResult, error)
}

type importResponse struct {
	internalweborders.ImportResult
	Failures []string `json:"failures,omitempty"`
}

type syncResponse struct {
	Fetched  int                            `json:"fetched"`
	Import   internalweborders.ImportResult `json:"import"`
	Failures []string                       `json:"failures,omitempty"`
}

// Intake queues an order pushed by the online channel.
func Intake(svc internalweborders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "web orders service unavailable"))
			return
		}

		var body internalweborders.IntakeInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Intake(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, internalweborders.FromModel(order))
	}
}

func List(svc internalweborders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "web orders service unavailable"))
			return
		}
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]internalweborders.WebOrderDTO, 0, len(list))
		for i := range list {
			out = append(out, internalweborders.FromModel(&list[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func Detail(svc internalweborders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "web orders service unavailable"))
			return
		}
		id, err := validators.PathParam(r, "webOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalweborders.FromModel(order))
	}
}

// Import reconciles the queued web orders into the order store. Per-order
// failures are reported alongside the counts rather than failing the call.
func Import(svc internalweborders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "web orders service unavailable"))
			return
		}
		result, err := svc.ImportPending(r.Context())
		if err != nil && result.FailedRows == 0 {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, importResponse{ImportResult: result, Failures: failureMessages(err)})
	}
}

// Sync pulls the upstream feed and imports what it returned.
func Sync(syncer Syncer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if syncer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "web order feed not configured"))
			return
		}
		result, err := syncer.Sync(r.Context())
		if err != nil && result.Import.FailedRows == 0 {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, syncResponse{
			Fetched:  result.Fetched,
			Import:   result.Import,
			Failures: failureMessages(err),
		})
	}
}

func failureMessages(err error) []string {
	if err == nil {
		return nil
	}
	errs := multierr.Errors(err)
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
