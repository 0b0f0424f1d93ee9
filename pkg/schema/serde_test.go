package schema_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/niksmo/pmp-sync/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/sr"
)

type MockSchemaIdentifier struct {
	mock.Mock
}

func (c *MockSchemaIdentifier) DetermineID(
	ctx context.Context, subject string, avroSchemaText string,
) (id int, err error) {
	args := c.Called(ctx, subject, avroSchemaText)
	return args.Int(0), args.Error(1)
}

type MockSchemaCreator struct {
	mock.Mock
}

func (c *MockSchemaCreator) CreateSchema(
	ctx context.Context, subject string, s sr.Schema,
) (sr.SubjectSchema, error) {
	args := c.Called(ctx, subject, s)
	return args.Get(0).(sr.SubjectSchema), args.Error(1)
}

const subject = "pmp-products-updated-value"

func TestSerdeProductsUpdatedV1(t *testing.T) {
	t.Run("NoOpts", func(t *testing.T) {
		_, err := schema.NewSerdeProductsUpdatedV1(t.Context())
		require.Error(t, err)
		assert.ErrorIs(t, err, schema.ErrTooFewOpts)
	})

	t.Run("OneOpt", func(t *testing.T) {
		_, err := schema.NewSerdeProductsUpdatedV1(
			t.Context(),
			schema.SchemaIdentifierOpt(new(MockSchemaIdentifier)),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, schema.ErrTooFewOpts)
	})

	t.Run("EmptySubject", func(t *testing.T) {
		_, err := schema.NewSerdeProductsUpdatedV1(
			t.Context(),
			schema.SubjectOpt(""),
			schema.SchemaIdentifierOpt(new(MockSchemaIdentifier)),
		)
		require.Error(t, err)
	})

	t.Run("IdentifierError", func(t *testing.T) {
		errRegistry := errors.New("registry is down")
		si := new(MockSchemaIdentifier)
		si.On(
			"DetermineID", t.Context(), subject, schema.ProductsUpdatedSchemaTextV1,
		).Return(0, errRegistry)

		_, err := schema.NewSerdeProductsUpdatedV1(
			t.Context(),
			schema.SubjectOpt(subject),
			schema.SchemaIdentifierOpt(si),
		)
		require.ErrorIs(t, err, errRegistry)
	})

	t.Run("EncodeDecode", func(t *testing.T) {
		si := new(MockSchemaIdentifier)
		si.On(
			"DetermineID", t.Context(), subject, schema.ProductsUpdatedSchemaTextV1,
		).Return(7, nil)

		serde, err := schema.NewSerdeProductsUpdatedV1(
			t.Context(),
			schema.SubjectOpt(subject),
			schema.SchemaIdentifierOpt(si),
		)
		require.NoError(t, err)

		v1 := schema.ProductsUpdatedV1{
			Action:       "Products-Updated",
			ExperienceID: "exp-1",
			Added:        2,
			Removed:      5,
			OccurredAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		}

		data, err := serde.Encode(v1)
		require.NoError(t, err)
		// magic byte and big endian schema ID
		assert.Equal(t, []byte{0, 0, 0, 0, 7}, data[:5])

		var v2 schema.ProductsUpdatedV1
		require.NoError(t, serde.Decode(data, &v2))
		assert.Equal(t, v1.ExperienceID, v2.ExperienceID)
		assert.Equal(t, v1.Added, v2.Added)
		assert.Equal(t, v1.Removed, v2.Removed)
		assert.True(t, v1.OccurredAt.Equal(v2.OccurredAt))
	})
}

func TestRegistryIdentifier(t *testing.T) {
	t.Run("CreatesAvroSchema", func(t *testing.T) {
		cl := new(MockSchemaCreator)
		cl.On("CreateSchema", t.Context(), subject, sr.Schema{
			Schema: schema.ProductsUpdatedSchemaTextV1,
			Type:   sr.TypeAvro,
		}).Return(sr.SubjectSchema{ID: 3}, nil)

		id, err := schema.NewRegistryIdentifier(cl).DetermineID(
			t.Context(), subject, schema.ProductsUpdatedSchemaTextV1,
		)
		require.NoError(t, err)
		assert.Equal(t, 3, id)
		cl.AssertExpectations(t)
	})

	t.Run("Error", func(t *testing.T) {
		errRegistry := errors.New("registry is down")
		cl := new(MockSchemaCreator)
		cl.On("CreateSchema", mock.Anything, subject, mock.Anything).
			Return(sr.SubjectSchema{}, errRegistry)

		_, err := schema.NewRegistryIdentifier(cl).DetermineID(
			t.Context(), subject, schema.ProductsUpdatedSchemaTextV1,
		)
		require.ErrorIs(t, err, errRegistry)
	})
}
