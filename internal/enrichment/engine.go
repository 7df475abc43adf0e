// Package enrichment turns bill text into a plain-language summary, an
// impact analysis, a glossary and a unit-length embedding.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/detail"
	"github.com/lawmate/billpipe/internal/llm"
	"github.com/lawmate/billpipe/internal/metrics"
	"github.com/lawmate/billpipe/pkg/logger"
)

var ErrEmptyEmbedding = errors.New("provider returned an empty embedding")

// normEpsilon replaces a zero norm so a degenerate vector still divides.
const normEpsilon = 1e-10

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingCache stores normalized vectors by input text. Implementations
// must treat a miss as (nil, false, nil).
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, text string, vec []float32) error
}

type Settings struct {
	Temperature         float32
	SummaryMaxTokens    int
	PredictionMaxTokens int
	TermMaxTokens       int
	// EmbeddingDim, when set, rejects cached vectors of another length.
	EmbeddingDim        int
}

func DefaultSettings() Settings {
	return Settings{
		Temperature:         0.5,
		SummaryMaxTokens:    800,
		PredictionMaxTokens: 800,
		TermMaxTokens:       500,
	}
}

type Engine struct {
	completer Completer
	embedder  Embedder
	cache     EmbeddingCache
	settings  Settings
}

func NewEngine(completer Completer, embedder Embedder, settings Settings) *Engine {
	return &Engine{
		completer: completer,
		embedder:  embedder,
		settings:  settings,
	}
}

// WithCache returns the engine using cache for embeddings. A nil cache is
// ignored.
func (e *Engine) WithCache(cache EmbeddingCache) *Engine {
	e.cache = cache
	return e
}

// Summarize runs the three generation prompts over content. Unusable content
// short-circuits to the Unavailable sentinels without calling the provider.
// When a call fails, that part and every later part become failure
// sentinels; parts already generated are kept.
func (e *Engine) Summarize(ctx context.Context, content detail.Content) Summary {
	if !content.Usable() {
		return Unavailable()
	}

	out := Failed()
	for _, p := range []Part{PartSummary, PartPrediction, PartTerm} {
		text, err := e.generate(ctx, p, content.Text)
		if err != nil {
			metrics.EnrichmentFailures.WithLabelValues(p.String()).Inc()
			logger.Warn("Enrichment request failed", zap.String("part", p.String()), zap.Error(err))
			return out
		}
		out.set(p, Field{Text: text, Outcome: Generated})
	}

	return out
}

func (e *Engine) generate(ctx context.Context, p Part, text string) (string, error) {
	prompt, maxTokens := e.promptFor(p)

	resp, err := e.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompt,
		UserPrompt:   text,
		Temperature:  e.settings.Temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return "", err
	}

	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", llm.ErrEmptyResponse
	}
	return out, nil
}

func (e *Engine) promptFor(p Part) (string, int) {
	switch p {
	case PartSummary:
		return summaryPrompt, e.settings.SummaryMaxTokens
	case PartPrediction:
		return predictionPrompt, e.settings.PredictionMaxTokens
	default:
		return termPrompt, e.settings.TermMaxTokens
	}
}

// Embed requests one embedding for text and returns it scaled to unit
// length.
func (e *Engine) Embed(ctx context.Context, text string) (Vector, error) {
	if e.cache != nil {
		cached, ok, err := e.cache.GetEmbedding(ctx, text)
		switch {
		case err != nil:
			logger.Warn("Embedding cache read failed", zap.Error(err))
		case ok && e.settings.EmbeddingDim > 0 && len(cached) != e.settings.EmbeddingDim:
			metrics.CacheMisses.Inc()
			logger.Warn("Cached embedding has wrong dimension",
				zap.Int("got", len(cached)),
				zap.Int("want", e.settings.EmbeddingDim),
			)
		case ok:
			metrics.CacheHits.Inc()
			return Vector(cached), nil
		default:
			metrics.CacheMisses.Inc()
		}
	}

	raw, err := e.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		metrics.EnrichmentFailures.WithLabelValues("embedding").Inc()
		return nil, fmt.Errorf("failed to embed: %w", err)
	}
	if len(raw) == 0 {
		metrics.EnrichmentFailures.WithLabelValues("embedding").Inc()
		return nil, ErrEmptyEmbedding
	}

	vec := Normalize(raw)

	if e.cache != nil {
		if err := e.cache.SetEmbedding(ctx, text, vec); err != nil {
			logger.Warn("Embedding cache write failed", zap.Error(err))
		}
	}

	return vec, nil
}

// EmbeddingInput builds the text a bill is embedded from. The title is
// repeated three times to weight it; existing indexed vectors depend on
// this exact layout.
func EmbeddingInput(title, summary, detailText string) string {
	return title + "\n" + title + "\n" + title + "\n" + summary + "\n" + detailText
}

// Vector is a unit-length embedding.
type Vector []float32

// Normalize divides raw by its L2 norm.
func Normalize(raw []float32) Vector {
	var sum float64
	for _, x := range raw {
		sum += float64(x) * float64(x)
	}

	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = normEpsilon
	}

	out := make(Vector, len(raw))
	for i, x := range raw {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Literal renders the vector as "[v1,v2,...]" with six decimals per
// component, the form the store's string_to_vector accepts.
func (v Vector) Literal() string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)

	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', 6, 64))
	}
	b.WriteByte(']')

	return b.String()
}

// Norm is the L2 norm.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
