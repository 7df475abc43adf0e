// Package zilliz mirrors bill embeddings into a Milvus/Zilliz collection so
// similarity search can run outside the relational store. Only fields fixed
// at insert time are mirrored; progress lives in SQLite and the graph.
package zilliz

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/storage/models"
	"github.com/lawmate/billpipe/pkg/logger"
)

const (
	fieldAPIID      = "api_id"
	fieldEmbedding  = "embedding"
	fieldBillNumber = "bill_number"
	fieldTitle      = "bill_title"

	maxTitleRunes = 1000
)

type Options struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address: opts.Endpoint,
		APIKey:  opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Zilliz/Milvus client initialized",
		zap.String("endpoint", opts.Endpoint),
		zap.String("collection", opts.CollectionName),
	)

	return NewClientFromMilvus(c, opts.CollectionName, opts.VectorDim), nil
}

// NewClientFromMilvus wraps an existing SDK client.
func NewClientFromMilvus(c client.Client, collectionName string, vectorDim int) *Client {
	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}
}

func (z *Client) Close() error {
	return z.client.Close()
}

func (z *Client) Name() string {
	return "zilliz"
}

// EnsureCollection creates, indexes and loads the bills collection when it
// does not exist yet.
func (z *Client) EnsureCollection(ctx context.Context) error {
	has, err := z.client.HasCollection(ctx, z.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", z.collectionName))
		return nil
	}

	if err := z.client.CreateCollection(ctx, z.schema(), entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Vectors are unit length, so inner product ranks like cosine.
	idx, err := entity.NewIndexAUTOINDEX(entity.IP)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := z.client.CreateIndex(ctx, z.collectionName, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := z.client.LoadCollection(ctx, z.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", z.collectionName))
	return nil
}

func (z *Client) schema() *entity.Schema {
	return &entity.Schema{
		CollectionName: z.collectionName,
		Description:    "Bill embeddings",
		Fields: []*entity.Field{
			{
				Name:       fieldAPIID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldEmbedding,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", z.vectorDim),
				},
			},
			{
				Name:     fieldBillNumber,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldTitle,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
		},
	}
}

// PublishBill upserts one bill keyed by api_id, so republishing is
// harmless.
func (z *Client) PublishBill(ctx context.Context, bill models.Bill) error {
	columns, err := z.billColumns(bill)
	if err != nil {
		return err
	}

	if _, err := z.client.Upsert(ctx, z.collectionName, "", columns...); err != nil {
		return fmt.Errorf("failed to upsert bill vector: %w", err)
	}

	logger.Debug("Bill vector mirrored", zap.String("api_id", bill.APIID))
	return nil
}

func (z *Client) billColumns(bill models.Bill) ([]entity.Column, error) {
	if len(bill.Embedding) != z.vectorDim {
		return nil, fmt.Errorf("bill %s embedding has dimension %d, want %d", bill.APIID, len(bill.Embedding), z.vectorDim)
	}

	title := []rune(bill.BillTitle)
	if len(title) > maxTitleRunes {
		title = title[:maxTitleRunes]
	}

	return []entity.Column{
		entity.NewColumnVarChar(fieldAPIID, []string{bill.APIID}),
		entity.NewColumnFloatVector(fieldEmbedding, z.vectorDim, [][]float32{bill.Embedding}),
		entity.NewColumnInt64(fieldBillNumber, []int64{bill.BillNumber}),
		entity.NewColumnVarChar(fieldTitle, []string{string(title)}),
	}, nil
}
