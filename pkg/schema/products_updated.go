package schema

import (
	"time"

	"github.com/hamba/avro/v2"
)

const ProductsUpdatedSchemaTextV1 = `{
	"type": "record",
	"namespace": "pmp",
	"name": "products_updated",
	"fields" : [
		{"name": "action", "type": "string"},
		{"name": "experience_id", "type": "string"},
		{"name": "added", "type": "int"},
		{"name": "removed", "type": "int"},
		{"name": "occurred_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

type ProductsUpdatedV1 struct {
	Action       string    `avro:"action"`
	ExperienceID string    `avro:"experience_id"`
	Added        int       `avro:"added"`
	Removed      int       `avro:"removed"`
	OccurredAt   time.Time `avro:"occurred_at"`
}

func ProductsUpdatedV1Avro() avro.Schema {
	return avro.MustParse(ProductsUpdatedSchemaTextV1)
}
