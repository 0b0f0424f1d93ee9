package schema

import (
	"testing"
	"time"

	"github.com/hamba/avro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductsUpdatedV1(t *testing.T) {
	vMarshal := ProductsUpdatedV1{
		Action:       "Products-Updated",
		ExperienceID: "exp-1",
		Added:        3,
		Removed:      1,
		OccurredAt:   time.Date(2024, 3, 1, 12, 30, 45, 500_000_000, time.UTC),
	}

	var s avro.Schema
	require.NotPanics(t, func() {
		s = ProductsUpdatedV1Avro()
	})

	encode := AvroEncodeFn(s)
	decode := AvroDecodeFn(s)

	data, err := encode(vMarshal)
	require.NoError(t, err)

	var vUnmarshal ProductsUpdatedV1
	require.NoError(t, decode(data, &vUnmarshal))

	assert.Equal(t, vMarshal.Action, vUnmarshal.Action)
	assert.Equal(t, vMarshal.ExperienceID, vUnmarshal.ExperienceID)
	assert.Equal(t, vMarshal.Added, vUnmarshal.Added)
	assert.Equal(t, vMarshal.Removed, vUnmarshal.Removed)
	assert.True(t, vMarshal.OccurredAt.Equal(vUnmarshal.OccurredAt))
}
