package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/cafepos-backend/api/responses"
	pkgAuth "github.com/angelmondragon/cafepos-backend/pkg/auth"
	"github.com/angelmondragon/cafepos-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox"
)

// Auth validates a bearer token and seeds the request context with the claims.
// The staff member also becomes the actor on any outbox event the request emits.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(bindStaff(r.Context(), logg, Staff{ID: claims.StaffID, Role: claims.Role})))
		})
	}
}

// bindStaff makes s the request's staff member, the actor on its outbox
// events and a field on its log lines.
func bindStaff(ctx context.Context, logg *logger.Logger, s Staff) context.Context {
	ctx = WithStaff(ctx, s)
	ctx = outbox.WithActor(ctx, outbox.ActorRef{StaffID: s.ID.String(), Role: string(s.Role)})
	if logg != nil {
		ctx = logg.WithStaffID(ctx, s.ID.String())
		ctx = logg.WithField(ctx, "staff_role", string(s.Role))
	}
	return ctx
}
