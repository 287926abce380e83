package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/cafepos-backend/api/responses"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/security"
)

const channelKeyHeader = "X-Channel-Key"

// ChannelKey guards the public web-order intake with a shared secret. An
// empty expected key closes the endpoint.
func ChannelKey(expected string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "web order intake disabled"))
				return
			}
			provided := strings.TrimSpace(r.Header.Get(channelKeyHeader))
			if provided == "" || !security.SecretsEqual(expected, provided) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid channel key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
