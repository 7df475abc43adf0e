package zilliz

import (
	"context"
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawmate/billpipe/internal/storage/models"
)

// fakeMilvus implements only the calls the mirror makes; anything else
// panics through the nil embedded interface.
type fakeMilvus struct {
	client.Client

	has       bool
	created   *entity.Schema
	indexed   string
	loaded    bool
	upserted  [][]entity.Column
	upsertErr error
}

func (f *fakeMilvus) HasCollection(ctx context.Context, name string) (bool, error) {
	return f.has, nil
}

func (f *fakeMilvus) CreateCollection(ctx context.Context, schema *entity.Schema, shards int32, opts ...client.CreateCollectionOption) error {
	f.created = schema
	return nil
}

func (f *fakeMilvus) CreateIndex(ctx context.Context, coll, field string, idx entity.Index, async bool, opts ...client.IndexOption) error {
	f.indexed = field
	return nil
}

func (f *fakeMilvus) LoadCollection(ctx context.Context, coll string, async bool, opts ...client.LoadCollectionOption) error {
	f.loaded = true
	return nil
}

func (f *fakeMilvus) Upsert(ctx context.Context, coll, partition string, columns ...entity.Column) (entity.Column, error) {
	f.upserted = append(f.upserted, columns)
	return nil, f.upsertErr
}

func testBill() models.Bill {
	return models.Bill{
		APIID:      "PRC_1",
		BillNumber: 2200001,
		BillTitle:  "도로교통법 일부개정법률안",
		Committee:  "행정안전위원회",
		BillDate:   "2024-06-01",
		Embedding:  []float32{0.6, 0.8, 0},
	}
}

func TestEnsureCollection_CreatesOnce(t *testing.T) {
	fake := &fakeMilvus{}
	z := NewClientFromMilvus(fake, "bills", 3)

	require.NoError(t, z.EnsureCollection(context.Background()))
	require.NotNil(t, fake.created)
	assert.Equal(t, "bills", fake.created.CollectionName)
	assert.Equal(t, fieldEmbedding, fake.indexed)
	assert.True(t, fake.loaded)
	assert.Len(t, fake.created.Fields, 4)

	fake = &fakeMilvus{has: true}
	z = NewClientFromMilvus(fake, "bills", 3)
	require.NoError(t, z.EnsureCollection(context.Background()))
	assert.Nil(t, fake.created)
}

func TestPublishBill(t *testing.T) {
	fake := &fakeMilvus{}
	z := NewClientFromMilvus(fake, "bills", 3)

	require.NoError(t, z.PublishBill(context.Background(), testBill()))
	require.Len(t, fake.upserted, 1)

	cols := fake.upserted[0]
	require.Len(t, cols, 4)
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{fieldAPIID, fieldEmbedding, fieldBillNumber, fieldTitle}, names)
	id, err := cols[0].(*entity.ColumnVarChar).ValueByIdx(0)
	require.NoError(t, err)
	assert.Equal(t, "PRC_1", id)
	assert.Equal(t, 1, cols[1].Len())
}

func TestPublishBill_DimensionMismatch(t *testing.T) {
	fake := &fakeMilvus{}
	z := NewClientFromMilvus(fake, "bills", 1536)

	err := z.PublishBill(context.Background(), testBill())
	assert.Error(t, err)
	assert.Empty(t, fake.upserted)
}

func TestPublishBill_WrapsUpsertError(t *testing.T) {
	fake := &fakeMilvus{upsertErr: errors.New("collection not loaded")}
	z := NewClientFromMilvus(fake, "bills", 3)

	err := z.PublishBill(context.Background(), testBill())
	assert.ErrorContains(t, err, "failed to upsert bill vector")
}
