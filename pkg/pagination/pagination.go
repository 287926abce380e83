package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is what a list endpoint received from the caller.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points just past the last order of a page. Orders are listed newest
// first; Sequence orders rows created in the same instant.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	Sequence  int64     `json:"s"`
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// EncodeCursor returns an opaque URL-safe token for c.
func EncodeCursor(c Cursor) string {
	c.CreatedAt = c.CreatedAt.UTC()
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a token from EncodeCursor. A blank token means the
// first page and yields nil.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if c.CreatedAt.IsZero() || c.Sequence <= 0 {
		return nil, errors.New("cursor is missing its position")
	}
	return &c, nil
}

// Trim cuts rows fetched with limit+1 down to limit and returns the token for
// the next page, or "" when rows was the last page.
func Trim[T any](rows []T, limit int, at func(T) Cursor) ([]T, string) {
	if len(rows) <= limit {
		return rows, ""
	}
	return rows[:limit], EncodeCursor(at(rows[limit-1]))
}
