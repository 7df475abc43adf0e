package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/metrics"
	"github.com/lawmate/billpipe/pkg/circuitbreaker"
	"github.com/lawmate/billpipe/pkg/logger"
)

var ErrEmptyResponse = errors.New("empty response from provider")

type Options struct {
	APIKey           string
	BaseURL          string
	Model            string
	EmbeddingModel   string
	EmbeddingDim     int
	Timeout          time.Duration
	EmbeddingTimeout time.Duration
}

// Client talks to an OpenAI-compatible API. Calls are guarded by a circuit
// breaker and are never retried: a failed call is reported to the caller,
// which falls back to its failure path.
type Client struct {
	client *openai.Client
	opts   Options
	cb     *circuitbreaker.CircuitBreaker
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.EmbeddingTimeout <= 0 {
		opts.EmbeddingTimeout = 15 * time.Second
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          60 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Logger:           logger.GetLogger(),
	})

	logger.Info("LLM client initialized",
		zap.String("model", opts.Model),
		zap.String("embedding_model", opts.EmbeddingModel),
		zap.Int("embedding_dim", opts.EmbeddingDim),
	)

	return &Client{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
		cb:     cb,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model:       c.opts.Model,
				Messages:    messages,
				Temperature: req.Temperature,
				MaxTokens:   req.MaxTokens,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to create completion: %w", err)
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return ErrEmptyResponse
		}

		metrics.LLMTokensUsed.WithLabelValues(c.opts.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(c.opts.Model, "completion").Add(float64(resp.Usage.CompletionTokens))

		logger.Debug("LLM completion generated",
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)

		result = &CompletionResponse{
			Content: resp.Choices[0].Message.Content,
			Usage: Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GenerateEmbedding returns the raw provider vector for text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.EmbeddingTimeout)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.client.CreateEmbeddings(
			ctx,
			openai.EmbeddingRequest{
				Input:      []string{text},
				Model:      openai.EmbeddingModel(c.opts.EmbeddingModel),
				Dimensions: c.opts.EmbeddingDim,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to generate embedding: %w", err)
		}
		if len(resp.Data) == 0 {
			return ErrEmptyResponse
		}

		metrics.LLMTokensUsed.WithLabelValues(c.opts.EmbeddingModel, "embedding").Add(float64(resp.Usage.PromptTokens))

		embedding = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.opts.EmbeddingDim > 0 && len(embedding) != c.opts.EmbeddingDim {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(embedding), c.opts.EmbeddingDim)
	}

	return embedding, nil
}

func (c *Client) BreakerState() circuitbreaker.State {
	return c.cb.State()
}
