package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
)

// QueryInt reads an integer query parameter within [min, max]. A missing
// value yields fallback.
func QueryInt(r *http.Request, key string, fallback, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a whole number").
			WithDetails(map[string]string{key: "must be a whole number"})
	case value < min || value > max:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" out of range").
			WithDetails(map[string]string{key: "must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max)})
	}
	return value, nil
}

// QueryText reads a trimmed query parameter cut to at most maxRunes runes.
func QueryText(r *http.Request, key string, maxRunes int) string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if maxRunes > 0 {
		if runes := []rune(value); len(runes) > maxRunes {
			value = string(runes[:maxRunes])
		}
	}
	return value
}
