package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/cafepos-backend/api/responses"
	"github.com/angelmondragon/cafepos-backend/api/validators"
	"github.com/angelmondragon/cafepos-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

// AuthLogin exchanges till credentials for an access token. Token answers
// are never cached.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return staffCall(svc, logg, http.StatusOK, func(ctx context.Context, body auth.LoginRequest) (*auth.LoginResponse, error) {
		res, err := svc.Login(ctx, body)
		if err == nil && res != nil && logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"staff_id": res.Staff.ID.String(), "role": string(res.Staff.Role)})
			logg.Info(ctx, "auth.login")
		}
		return res, err
	})
}

// CreateStaff registers a till account. Routed behind the manager role.
func CreateStaff(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return staffCall(svc, logg, http.StatusCreated, func(ctx context.Context, body auth.CreateStaffRequest) (*auth.StaffDTO, error) {
		return svc.CreateStaff(ctx, body)
	})
}

func staffCall[Req, Res any](svc auth.Service, logg *logger.Logger, status int, call func(context.Context, Req) (Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}
		var body Req
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := call(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccessStatus(w, status, res)
	}
}
