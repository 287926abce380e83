package types

import (
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderEventRowSaveUsesEventIDAsInsertID(t *testing.T) {
	order, total := "ord-1", "11.00"
	count := int64(2)
	row := &OrderEventRow{
		EventID:       "evt-1",
		EventType:     "order_created",
		AggregateType: "order",
		AggregateID:   "ord-1",
		OccurredAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		OrderID:       &order,
		Total:         &total,
		ItemCount:     &count,
		Payload:       cbigquery.NullJSON{JSONVal: `{"order_id":"ord-1"}`, Valid: true},
	}

	values, insertID, err := row.Save()
	require.NoError(t, err)
	assert.Equal(t, "evt-1", insertID)
	assert.Equal(t, "ord-1", values["order_id"])
	assert.Equal(t, "11.00", values["total"])
	assert.Equal(t, int64(2), values["item_count"])
	assert.Equal(t, `{"order_id":"ord-1"}`, values["payload"])
	assert.NotContains(t, values, "delivery_id")
}

var _ cbigquery.ValueSaver = (*OrderEventRow)(nil)
