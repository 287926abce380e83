package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	"github.com/angelmondragon/cafepos-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindForUpdate(ctx context.Context, id string) (*models.Order, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]models.Order, error)
	ListPage(ctx context.Context, params pagination.Params) ([]models.Order, string, error)
	UpdateStatus(ctx context.Context, id string, status enums.OrderStatus, tag *string, at time.Time) error
	ReplaceItems(ctx context.Context, id string, items []models.OrderLineItem, total decimal.Decimal, at time.Time) error
	SoftDelete(ctx context.Context, id string) error
}

// Sequencer hands out order sequence numbers. Implementations backed by the
// database draw from tx so a rolled back create leaves the counter alone.
type Sequencer interface {
	Next(ctx context.Context, tx *gorm.DB) (int64, error)
}
