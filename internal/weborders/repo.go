package weborders

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cafepos-backend/internal/repo"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

// Repository persists queued web orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, order *models.WebOrder) error
	FindByID(ctx context.Context, id string) (*models.WebOrder, error)
	List(ctx context.Context) ([]models.WebOrder, error)
	UpdateStatus(ctx context.Context, id string, status enums.WebOrderStatus, at time.Time) error
	MarkImported(ctx context.Context, id string, at time.Time) error
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

// Upsert inserts the web order or refreshes its status and payload.
func (r *repository) Upsert(ctx context.Context, order *models.WebOrder) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status",
				"customer_name",
				"customer_phone",
				"customer_address",
				"items",
				"total",
				"updated_at",
			}),
		}).
		Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.WebOrder, error) {
	var order models.WebOrder
	if err := r.DB(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context) ([]models.WebOrder, error) {
	var orders []models.WebOrder
	err := r.DB(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status enums.WebOrderStatus, at time.Time) error {
	return r.DB(ctx).
		Model(&models.WebOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       status,
			"projected_at": at,
			"updated_at":   at,
		}).Error
}

func (r *repository) MarkImported(ctx context.Context, id string, at time.Time) error {
	return r.DB(ctx).
		Model(&models.WebOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"imported_at": at,
			"updated_at":  at,
		}).Error
}
