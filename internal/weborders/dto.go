package weborders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
)

// IntakeItem is one item submitted by the external channel.
type IntakeItem struct {
	Name      string          `json:"name" validate:"required,max=120"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice" validate:"money"`
	Notes     *string         `json:"notes,omitempty" validate:"omitempty,max=280"`
}

// IntakeInput is a web order as submitted or fetched from the feed.
type IntakeInput struct {
	ID       string      `json:"id" validate:"required,max=64"`
	Status   string      `json:"status,omitempty"`
	Channel  string      `json:"channel,omitempty" validate:"omitempty,max=40"`
	Customer struct {
		Name    string  `json:"name" validate:"required,max=120"`
		Phone   *string `json:"phone,omitempty" validate:"omitempty,max=40"`
		Address *string `json:"address,omitempty" validate:"omitempty,max=255"`
	} `json:"customer"`
	Items []IntakeItem `json:"items" validate:"required,min=1,dive"`
}

// WebOrderDTO is the API shape of a queued web order.
type WebOrderDTO struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	Channel     string         `json:"channel"`
	Customer    map[string]any `json:"customer"`
	Items       []IntakeItem   `json:"items"`
	Total       string         `json:"total"`
	ImportedAt  *time.Time     `json:"importedAt,omitempty"`
	ProjectedAt *time.Time     `json:"projectedAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// ImportResult summarises one import pass.
type ImportResult struct {
	Imported   int `json:"imported"`
	CaughtUp   int `json:"caughtUp"`
	Skipped    int `json:"skipped"`
	FailedRows int `json:"failed"`
}

// SyncResult summarises a feed sync.
type SyncResult struct {
	Fetched int          `json:"fetched"`
	Import  ImportResult `json:"import"`
}

func FromModel(order *models.WebOrder) WebOrderDTO {
	customer := map[string]any{"name": order.Customer.Name}
	if order.Customer.Phone != nil {
		customer["phone"] = *order.Customer.Phone
	}
	if order.Customer.Address != nil {
		customer["address"] = *order.Customer.Address
	}
	items := make([]IntakeItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, IntakeItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Notes:     item.Notes,
		})
	}
	return WebOrderDTO{
		ID:          order.ID,
		Status:      string(order.Status),
		Channel:     order.Channel,
		Customer:    customer,
		Items:       items,
		Total:       order.Total.StringFixed(2),
		ImportedAt:  order.ImportedAt,
		ProjectedAt: order.ProjectedAt,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}
