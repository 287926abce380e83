package writer

import (
	cbigquery "cloud.google.com/go/bigquery"

	pkgbigquery "github.com/angelmondragon/cafepos-backend/pkg/bigquery"
)

// OrderEventsTable is the sink for types.OrderEventRow, partitioned by day on
// occurred_at.
func OrderEventsTable(name string) pkgbigquery.TableSpec {
	nullable := func(name string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: t}
	}
	required := func(name string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: t, Required: true}
	}
	return pkgbigquery.TableSpec{
		Name: name,
		Schema: cbigquery.Schema{
			required("event_id", cbigquery.StringFieldType),
			required("event_type", cbigquery.StringFieldType),
			required("aggregate_type", cbigquery.StringFieldType),
			required("aggregate_id", cbigquery.StringFieldType),
			required("occurred_at", cbigquery.TimestampFieldType),
			nullable("order_id", cbigquery.StringFieldType),
			nullable("delivery_id", cbigquery.StringFieldType),
			nullable("web_order_id", cbigquery.StringFieldType),
			nullable("source", cbigquery.StringFieldType),
			nullable("fulfillment_type", cbigquery.StringFieldType),
			nullable("from_status", cbigquery.StringFieldType),
			nullable("to_status", cbigquery.StringFieldType),
			nullable("status_tag", cbigquery.StringFieldType),
			nullable("total", cbigquery.NumericFieldType),
			nullable("item_count", cbigquery.IntegerFieldType),
			nullable("actor_staff_id", cbigquery.StringFieldType),
			nullable("payload", cbigquery.JSONFieldType),
		},
		PartitionField: "occurred_at",
	}
}
