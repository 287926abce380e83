package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafepos-backend/internal/repo"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	"github.com/angelmondragon/cafepos-backend/pkg/pagination"
)

type repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	return findOrder(r.DB(ctx), id)
}

// FindForUpdate loads the order and holds it until the transaction ends.
func (r *repository) FindForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return findOrder(r.Locked(ctx), id)
}

func findOrder(db *gorm.DB, id string) (*models.Order, error) {
	var order models.Order
	err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Exists includes soft-deleted rows; a deleted id is never reissued.
func (r *repository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Unscoped().
		Model(&models.Order{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) List(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Order("sequence_number DESC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) ListPage(ctx context.Context, params pagination.Params) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	limit := pagination.NormalizeLimit(params.Limit)

	q := r.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Order("sequence_number DESC").
		Limit(limit + 1)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND sequence_number < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.Sequence)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Trim(orders, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, Sequence: o.SequenceNumber}
	})
	return page, next, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status enums.OrderStatus, tag *string, at time.Time) error {
	return r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"status_tag": tag,
			"updated_at": at,
		}).Error
}

func (r *repository) ReplaceItems(ctx context.Context, id string, items []models.OrderLineItem, total decimal.Decimal, at time.Time) error {
	db := r.DB(ctx)
	if err := db.Where("order_id = ?", id).Delete(&models.OrderLineItem{}).Error; err != nil {
		return err
	}
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
			return err
		}
	}
	return db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total":      total,
			"updated_at": at,
		}).Error
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.Order{}).Error
}
