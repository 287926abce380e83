package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderEventRow mirrors the order_events BigQuery schema. One row is written
// per outbox event; the typed columns are filled when the event carries them.
type OrderEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	AggregateType string             `bigquery:"aggregate_type"`
	AggregateID   string             `bigquery:"aggregate_id"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	OrderID       *string            `bigquery:"order_id"`
	DeliveryID    *string            `bigquery:"delivery_id"`
	WebOrderID    *string            `bigquery:"web_order_id"`
	Source        *string            `bigquery:"source"`
	Fulfillment   *string            `bigquery:"fulfillment_type"`
	FromStatus    *string            `bigquery:"from_status"`
	ToStatus      *string            `bigquery:"to_status"`
	StatusTag     *string            `bigquery:"status_tag"`
	Total         *string            `bigquery:"total"`
	ItemCount     *int64             `bigquery:"item_count"`
	ActorStaffID  *string            `bigquery:"actor_staff_id"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

// Save implements bigquery.ValueSaver. The event id doubles as the insert id
// so BigQuery drops a row redelivered by Pub/Sub.
func (r *OrderEventRow) Save() (map[string]cbigquery.Value, string, error) {
	row := map[string]cbigquery.Value{
		"event_id":       r.EventID,
		"event_type":     r.EventType,
		"aggregate_type": r.AggregateType,
		"aggregate_id":   r.AggregateID,
		"occurred_at":    r.OccurredAt,
	}
	for col, v := range map[string]*string{
		"order_id":         r.OrderID,
		"delivery_id":      r.DeliveryID,
		"web_order_id":     r.WebOrderID,
		"source":           r.Source,
		"fulfillment_type": r.Fulfillment,
		"from_status":      r.FromStatus,
		"to_status":        r.ToStatus,
		"status_tag":       r.StatusTag,
		"total":            r.Total,
		"actor_staff_id":   r.ActorStaffID,
	} {
		if v != nil {
			row[col] = *v
		}
	}
	if r.ItemCount != nil {
		row["item_count"] = *r.ItemCount
	}
	if r.Payload.Valid {
		row["payload"] = r.Payload.JSONVal
	}
	return row, r.EventID, nil
}
