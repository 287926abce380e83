package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base carries the gorm handle shared by the order, web order and delivery
// repositories. Inside a transaction the handle is the tx itself.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the handle scoped to ctx. A nil ctx yields the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Locked is DB for a read that is followed by a write in the same
// transaction. Postgres holds the selected rows until commit; SQLite already
// serialises writers and gets the plain handle.
func (b Base) Locked(ctx context.Context) *gorm.DB {
	db := b.DB(ctx)
	if db.Dialector == nil || db.Dialector.Name() != "postgres" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}
