package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lawmate/billpipe/pkg/logger"
)

const embeddingPrefix = "billpipe:embedding:"

type Options struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
	// Model and Dim scope keys, so vectors from another embedding
	// configuration are never served.
	Model    string
	Dim      int
}

// Client caches normalized embeddings by the SHA-256 of their input text.
type Client struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr), zap.Duration("ttl", opts.TTL))

	return &Client{client: client, ttl: opts.TTL, namespace: keyNamespace(opts.Model, opts.Dim)}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) SetEmbedding(ctx context.Context, text string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	key := embeddingKey(c.namespace, text)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("key", key))
	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, text string) ([]float32, bool, error) {
	key := embeddingKey(c.namespace, text)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("Embedding cache hit", zap.String("key", key))
	return embedding, true, nil
}

func keyNamespace(model string, dim int) string {
	return fmt.Sprintf("%s:%d:", model, dim)
}

func embeddingKey(namespace, text string) string {
	sum := sha256.Sum256([]byte(text))
	return embeddingPrefix + namespace + hex.EncodeToString(sum[:])
}
