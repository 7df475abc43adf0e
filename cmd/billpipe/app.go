package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/api/handlers"
	"github.com/lawmate/billpipe/internal/assembly"
	"github.com/lawmate/billpipe/internal/cache/redis"
	"github.com/lawmate/billpipe/internal/enrichment"
	"github.com/lawmate/billpipe/internal/ingestion"
	"github.com/lawmate/billpipe/internal/kg/neo4j"
	"github.com/lawmate/billpipe/internal/linksync"
	"github.com/lawmate/billpipe/internal/llm"
	"github.com/lawmate/billpipe/internal/metrics"
	"github.com/lawmate/billpipe/internal/notify"
	"github.com/lawmate/billpipe/internal/proposer"
	"github.com/lawmate/billpipe/internal/storage/sqlite"
	"github.com/lawmate/billpipe/internal/vector/zilliz"
	"github.com/lawmate/billpipe/pkg/circuitbreaker"
	"github.com/lawmate/billpipe/pkg/config"
	appLogger "github.com/lawmate/billpipe/pkg/logger"
)

// app holds the wired pipeline for one process.
type app struct {
	cfg       *config.Config
	store     *sqlite.Client
	source    *assembly.Client
	directory *proposer.Directory
	orch      *ingestion.Orchestrator
	links     *linksync.Synchronizer
	checks    map[string]handlers.Check
	closers   []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	metrics.Init()

	a := &app{
		cfg:    cfg,
		checks: make(map[string]handlers.Check),
	}

	store, err := sqlite.NewClient(cfg.SQLite.Path, cfg.LLM.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite client: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, func() { store.Close() })
	a.checks["sqlite"] = store.Ping

	if err := store.InitSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	a.source = assembly.NewClient(assembly.Options{
		BaseURL:           cfg.Source.BaseURL,
		APIKey:            cfg.Source.APIKey,
		BillEndpoint:      cfg.Source.BillEndpoint,
		ProposerEndpoint:  cfg.Source.ProposerEndpoint,
		Age:               cfg.Source.Age,
		Timeout:           cfg.Source.Timeout(),
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
	})

	a.directory = proposer.NewDirectory(store, a.source, cfg.Ingest.FallbackProposer)
	a.links = linksync.NewSynchronizer(store, cfg.Status.LinkTemplate)

	llmClient := llm.NewClient(llm.Options{
		APIKey:           cfg.LLM.APIKey,
		BaseURL:          cfg.LLM.BaseURL,
		Model:            cfg.LLM.Model,
		EmbeddingModel:   cfg.LLM.EmbeddingModel,
		EmbeddingDim:     cfg.LLM.EmbeddingDim,
		Timeout:          time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		EmbeddingTimeout: time.Duration(cfg.LLM.EmbeddingTimeoutSec) * time.Second,
	})

	a.checks["llm"] = func(ctx context.Context) error {
		if llmClient.BreakerState() == circuitbreaker.StateOpen {
			return circuitbreaker.ErrCircuitOpen
		}
		return nil
	}

	engine := enrichment.NewEngine(llmClient, llmClient, enrichment.Settings{
		Temperature:         cfg.LLM.Temperature,
		SummaryMaxTokens:    cfg.LLM.SummaryMaxTokens,
		PredictionMaxTokens: cfg.LLM.PredictionMaxTokens,
		TermMaxTokens:       cfg.LLM.TermMaxTokens,
		EmbeddingDim:        cfg.LLM.EmbeddingDim,
	})

	if cfg.Redis.Enabled {
		cache, err := redis.NewClient(ctx, redis.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.EmbeddingTTL(),
			Model:    cfg.LLM.EmbeddingModel,
			Dim:      cfg.LLM.EmbeddingDim,
		})
		if err != nil {
			appLogger.Warn("Embedding cache disabled", zap.Error(err))
		} else {
			engine.WithCache(cache)
			a.closers = append(a.closers, func() { cache.Close() })
			a.checks["redis"] = cache.Ping
		}
	}

	a.orch = ingestion.NewOrchestrator(a.source, store, a.directory, engine, ingestion.Options{
		BackfillSize:     cfg.Ingest.BackfillSize,
		RefreshSize:      cfg.Ingest.RefreshSize,
		DefaultCommittee: cfg.Ingest.DefaultCommittee,
		DefaultStatus:    cfg.Ingest.DefaultStatus,
		DefaultDate:      cfg.Ingest.DefaultDate,
	})

	if cfg.Zilliz.Enabled {
		mirror, err := zilliz.NewClient(ctx, zilliz.Options{
			Endpoint:       cfg.Zilliz.Endpoint,
			APIKey:         cfg.Zilliz.APIKey,
			CollectionName: cfg.Zilliz.CollectionName,
			VectorDim:      cfg.Zilliz.VectorDim,
		})
		if err != nil {
			appLogger.Warn("Vector mirror disabled", zap.Error(err))
		} else if err := mirror.EnsureCollection(ctx); err != nil {
			appLogger.Warn("Vector mirror disabled", zap.Error(err))
			mirror.Close()
		} else {
			a.orch.WithSinks(mirror)
			a.closers = append(a.closers, func() { mirror.Close() })
		}
	}

	if cfg.Neo4j.Enabled {
		graph, err := neo4j.NewClient(ctx, neo4j.Options{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
		if err != nil {
			appLogger.Warn("Graph mirror disabled", zap.Error(err))
		} else {
			if err := graph.EnsureConstraints(ctx); err != nil {
				appLogger.Warn("Failed to create graph constraints", zap.Error(err))
			}
			a.orch.WithSinks(graph)
			a.closers = append(a.closers, func() { graph.Close(context.Background()) })
		}
	}

	if n := notify.NewRecommendNotifier(cfg.Notify.RecommendURL, time.Duration(cfg.Notify.TimeoutSec)*time.Second); n != nil {
		a.orch.WithNotifier(n)
	}

	return a, nil
}

// Close releases clients in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Backfill, Refresh and TryRun run a cycle and then bring status links up to date,
// so the scheduler keeps bill_statuses in step with bills.
func (a *app) Backfill(ctx context.Context) (ingestion.Report, error) {
	report, err := a.orch.Backfill(ctx)
	a.syncLinksAfter(ctx, report)
	return report, err
}

func (a *app) Refresh(ctx context.Context) (ingestion.Report, error) {
	report, err := a.orch.Refresh(ctx)
	a.syncLinksAfter(ctx, report)
	return report, err
}

func (a *app) TryRun(ctx context.Context, pageSize int) (ingestion.Report, error) {
	report, err := a.orch.TryRun(ctx, pageSize)
	a.syncLinksAfter(ctx, report)
	return report, err
}

func (a *app) syncLinksAfter(ctx context.Context, report ingestion.Report) {
	if report.Inserted == 0 || ctx.Err() != nil {
		return
	}
	if _, err := a.links.Sync(ctx); err != nil {
		appLogger.Error("Status link sync failed", zap.String("run_id", report.RunID), zap.Error(err))
	}
}
