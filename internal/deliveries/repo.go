package deliveries

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafepos-backend/internal/repo"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

// ListFilter narrows List results.
type ListFilter struct {
	OrderID string
	Status  *enums.DeliveryStatus
}

// Repository persists delivery records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, delivery *models.Delivery) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	List(ctx context.Context, filter ListFilter) ([]models.Delivery, error)
	ListOpenByOrder(ctx context.Context, orderID string) ([]models.Delivery, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
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

func (r *repository) Create(ctx context.Context, delivery *models.Delivery) error {
	return r.DB(ctx).Create(delivery).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.DB(ctx).Where("id = ?", id).First(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

// FindForUpdate loads the delivery and holds it until the transaction ends.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.Locked(ctx).Where("id = ?", id).First(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Delivery, error) {
	q := r.DB(ctx).Order("created_at DESC")
	if filter.OrderID != "" {
		q = q.Where("order_id = ?", filter.OrderID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	var out []models.Delivery
	err := q.Find(&out).Error
	return out, err
}

func (r *repository) ListOpenByOrder(ctx context.Context, orderID string) ([]models.Delivery, error) {
	var out []models.Delivery
	err := r.DB(ctx).
		Where("order_id = ?", orderID).
		Where("status NOT IN ?", []enums.DeliveryStatus{enums.DeliveryStatusDelivered, enums.DeliveryStatusCancelled}).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.DB(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", id).
		Updates(updates).Error
}
