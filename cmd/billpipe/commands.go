package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/api/handlers"
	"github.com/lawmate/billpipe/internal/ingestion"
	"github.com/lawmate/billpipe/internal/metrics"
	"github.com/lawmate/billpipe/internal/middleware/ratelimit"
	"github.com/lawmate/billpipe/internal/scheduler"
	appLogger "github.com/lawmate/billpipe/pkg/logger"
)

var (
	noServer     bool
	refreshSize  int
	proposerSize int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Backfill, then poll for new bills until interrupted",
	Long: `Runs one backfill cycle, then a refresh cycle every ingest.intervalSec.
The ops HTTP server (health, metrics, manual triggers) runs alongside
unless disabled.`,
	RunE: runPipeline,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run one backfill cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			report, err := a.Backfill(ctx)
			cmd.Println(report.String())
			return err
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			var (
				report ingestion.Report
				err    error
			)
			if refreshSize > 0 {
				report, err = a.orch.Run(ctx, refreshSize)
				a.syncLinksAfter(ctx, report)
			} else {
				report, err = a.Refresh(ctx)
			}
			cmd.Println(report.String())
			return err
		})
	},
}

var syncLinksCmd = &cobra.Command{
	Use:   "sync-links",
	Short: "Create or refresh the status link of every stored bill",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			result, err := a.links.Sync(ctx)
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			cmd.Printf("Status links: %d created, %d updated\n", result.Created, result.Updated)
			return nil
		})
	},
}

var loadProposersCmd = &cobra.Command{
	Use:   "load-proposers",
	Short: "Load the legislator roster into the proposer directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			size := proposerSize
			if size <= 0 {
				size = a.cfg.Ingest.ProposerBatchSize
			}
			result, err := a.directory.LoadRoster(ctx, size)
			if err != nil {
				return fmt.Errorf("load failed: %w", err)
			}
			cmd.Printf("Legislators: %d fetched, %d inserted, %d skipped\n", result.Fetched, result.Inserted, result.Skipped)
			return nil
		})
	},
}

func init() {
	runCmd.Flags().BoolVar(&noServer, "no-server", false, "do not start the ops HTTP server")
	refreshCmd.Flags().IntVar(&refreshSize, "size", 0, "page size (default: ingest.refreshSize)")
	loadProposersCmd.Flags().IntVar(&proposerSize, "size", 0, "roster page size (default: ingest.proposerBatchSize)")

	rootCmd.AddCommand(runCmd, backfillCmd, refreshCmd, syncLinksCmd, loadProposersCmd)
}

// withApp loads config, wires the pipeline and runs fn under a context that
// is cancelled on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		appLogger.Info("Starting bill pipeline",
			zap.Int("backfill_size", a.cfg.Ingest.BackfillSize),
			zap.Int("refresh_size", a.cfg.Ingest.RefreshSize),
			zap.Duration("interval", a.cfg.Ingest.Interval()),
		)

		if a.cfg.Server.Enabled && !noServer {
			server, limiter := newServer(a)
			defer limiter.Stop()

			addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
			appLogger.Info("Ops server starting", zap.String("address", addr))

			go func() {
				if err := server.Listen(addr); err != nil {
					appLogger.Error("Ops server stopped", zap.Error(err))
				}
			}()
			defer func() {
				appLogger.Info("Ops server shutting down")
				if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
					appLogger.Warn("Ops server shutdown failed", zap.Error(err))
				}
			}()
		}

		sched := scheduler.New(a, scheduler.IntervalTrigger{Interval: a.cfg.Ingest.Interval()})
		err := sched.Run(ctx)
		if errors.Is(err, context.Canceled) {
			appLogger.Info("Bill pipeline stopped")
			return nil
		}
		return err
	})
}

func newServer(a *app) (*fiber.App, *ratelimit.RateLimiter) {
	server := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(a.cfg.Server.WriteTimeout) * time.Second,
		DisableStartupMessage: true,
	})

	server.Use(recover.New())
	server.Use(fiberlogger.New())

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: a.cfg.Server.TriggerPerMin,
		Logger:               appLogger.GetLogger(),
	})

	handlers.Register(server,
		handlers.NewIngestHandler(a, a.links, a.cfg.Ingest.RefreshSize),
		handlers.NewBillHandler(a.store),
		handlers.NewHealthHandler(a.checks),
		limiter.Middleware(),
	)
	server.Get("/metrics", metrics.MetricsHandler())

	return server, limiter
}
