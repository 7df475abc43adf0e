// Package ingestion runs polling cycles: fetch a page of bills, update the
// ones already stored, and enrich and insert the new ones.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/assembly"
	"github.com/lawmate/billpipe/internal/detail"
	"github.com/lawmate/billpipe/internal/enrichment"
	"github.com/lawmate/billpipe/internal/metrics"
	"github.com/lawmate/billpipe/internal/storage/models"
	"github.com/lawmate/billpipe/pkg/logger"
)

var ErrCycleInProgress = errors.New("ingestion cycle already in progress")

const (
	KindBackfill = "backfill"
	KindRefresh  = "refresh"
	KindManual   = "manual"
)

type Source interface {
	FetchBills(ctx context.Context, pageSize int) []assembly.BillRow
	FetchDetail(ctx context.Context, url string) detail.Page
}

type Store interface {
	BillExists(ctx context.Context, apiID string) (bool, error)
	InsertBill(ctx context.Context, bill *models.Bill, embeddingLiteral string) (int64, error)
	UpdateBillProgress(ctx context.Context, apiID string, progress models.BillProgress) (bool, error)
}

type Resolver interface {
	Resolve(ctx context.Context, raw string) (int64, string, error)
}

type Enricher interface {
	Summarize(ctx context.Context, content detail.Content) enrichment.Summary
	Embed(ctx context.Context, text string) (enrichment.Vector, error)
}

// Sink receives every newly inserted bill. Sinks are mirrors: their errors
// are logged and never fail the row.
type Sink interface {
	Name() string
	PublishBill(ctx context.Context, bill models.Bill) error
}

// ProgressSink is a Sink that also mirrors progress changes of bills it
// already holds.
type ProgressSink interface {
	Sink
	PublishProgress(ctx context.Context, apiID string, progress models.BillProgress) error
}

type Notifier interface {
	RefreshRecommendations(ctx context.Context) error
}

type Options struct {
	BackfillSize     int
	RefreshSize      int
	DefaultCommittee string
	DefaultStatus    string
	DefaultDate      string
}

func DefaultOptions() Options {
	return Options{
		BackfillSize:     200,
		RefreshSize:      10,
		DefaultCommittee: "미정",
		DefaultStatus:    "미정",
		DefaultDate:      "2000-01-01",
	}
}

// Report summarizes one cycle.
type Report struct {
	RunID    string
	Kind     string
	Fetched  int
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
	Duration time.Duration
}

type Orchestrator struct {
	source   Source
	store    Store
	resolver Resolver
	enricher Enricher
	sinks    []Sink
	notifier Notifier
	opts     Options

	mu sync.Mutex
}

func NewOrchestrator(source Source, store Store, resolver Resolver, enricher Enricher, opts Options) *Orchestrator {
	defaults := DefaultOptions()
	if opts.BackfillSize <= 0 {
		opts.BackfillSize = defaults.BackfillSize
	}
	if opts.RefreshSize <= 0 {
		opts.RefreshSize = defaults.RefreshSize
	}
	if opts.DefaultCommittee == "" {
		opts.DefaultCommittee = defaults.DefaultCommittee
	}
	if opts.DefaultStatus == "" {
		opts.DefaultStatus = defaults.DefaultStatus
	}
	if opts.DefaultDate == "" {
		opts.DefaultDate = defaults.DefaultDate
	}

	return &Orchestrator{
		source:   source,
		store:    store,
		resolver: resolver,
		enricher: enricher,
		opts:     opts,
	}
}

// WithSinks adds mirror sinks. Nil entries are dropped.
func (o *Orchestrator) WithSinks(sinks ...Sink) *Orchestrator {
	for _, s := range sinks {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
	return o
}

func (o *Orchestrator) WithNotifier(n Notifier) *Orchestrator {
	o.notifier = n
	return o
}

// Backfill runs one cycle over the large initial page.
func (o *Orchestrator) Backfill(ctx context.Context) (Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cycle(ctx, KindBackfill, o.opts.BackfillSize)
}

// Refresh runs one cycle over the small polling page.
func (o *Orchestrator) Refresh(ctx context.Context) (Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cycle(ctx, KindRefresh, o.opts.RefreshSize)
}

// Run processes one page of pageSize rows, waiting for any cycle already
// running.
func (o *Orchestrator) Run(ctx context.Context, pageSize int) (Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cycle(ctx, KindManual, pageSize)
}

// TryRun is Run that returns ErrCycleInProgress instead of waiting.
func (o *Orchestrator) TryRun(ctx context.Context, pageSize int) (Report, error) {
	if !o.mu.TryLock() {
		return Report{}, ErrCycleInProgress
	}
	defer o.mu.Unlock()
	return o.cycle(ctx, KindManual, pageSize)
}

type outcome int

const (
	outcomeInserted outcome = iota
	outcomeUpdated
	outcomeSkipped
	outcomeFailed
)

func (oc outcome) String() string {
	switch oc {
	case outcomeInserted:
		return "inserted"
	case outcomeUpdated:
		return "updated"
	case outcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

func (o *Orchestrator) cycle(ctx context.Context, kind string, pageSize int) (Report, error) {
	start := time.Now()
	report := Report{RunID: uuid.NewString(), Kind: kind}
	log := logger.With(zap.String("run_id", report.RunID), zap.String("kind", kind))

	log.Info("Ingestion cycle started", zap.Int("page_size", pageSize))

	rows := o.source.FetchBills(ctx, pageSize)
	report.Fetched = len(rows)
	if len(rows) == 0 {
		log.Warn("No bills fetched")
	}

	var cycleErr error
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			cycleErr = err
			break
		}

		oc := o.processRow(ctx, log, row)
		metrics.BillsTotal.WithLabelValues(oc.String()).Inc()

		switch oc {
		case outcomeInserted:
			report.Inserted++
		case outcomeUpdated:
			report.Updated++
		case outcomeSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}

	if report.Inserted > 0 && o.notifier != nil && cycleErr == nil {
		if err := o.notifier.RefreshRecommendations(ctx); err != nil {
			log.Warn("Recommendation refresh failed", zap.Error(err))
		}
	}

	report.Duration = time.Since(start)
	metrics.CycleDuration.WithLabelValues(kind).Observe(report.Duration.Seconds())
	metrics.LastCycleTimestamp.WithLabelValues(kind).SetToCurrentTime()

	log.Info("Ingestion cycle finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)

	return report, cycleErr
}

func (o *Orchestrator) processRow(ctx context.Context, log *zap.Logger, row assembly.BillRow) outcome {
	apiID := strings.TrimSpace(row.BillID)
	log = log.With(zap.String("api_id", apiID), zap.String("bill_number", row.BillNo))

	if apiID == "" {
		log.Warn("Bill row has no BILL_ID")
		return outcomeFailed
	}

	number, err := strconv.ParseInt(strings.TrimSpace(row.BillNo), 10, 64)
	if err != nil {
		log.Warn("Bill row has invalid BILL_NO", zap.Error(err))
		return outcomeFailed
	}

	proposerID, proposerName, err := o.resolver.Resolve(ctx, row.Proposer)
	if err != nil {
		log.Error("Failed to resolve proposer", zap.Error(err))
		return outcomeFailed
	}

	progress := models.BillProgress{
		Committee:  orDefault(row.Committee, o.opts.DefaultCommittee),
		BillStatus: orDefault(row.ProcResult, o.opts.DefaultStatus),
		BillDate:   orDefault(row.ProposeDT, o.opts.DefaultDate),
	}

	exists, err := o.store.BillExists(ctx, apiID)
	if err != nil {
		log.Error("Failed to check bill", zap.Error(err))
		return outcomeFailed
	}

	if exists {
		matched, err := o.store.UpdateBillProgress(ctx, apiID, progress)
		if err != nil {
			log.Error("Failed to update bill progress", zap.Error(err))
			return outcomeFailed
		}
		if !matched {
			log.Warn("Bill vanished before progress update")
			return outcomeFailed
		}
		log.Debug("Existing bill progress updated", zap.String("status", progress.BillStatus))
		o.publishProgress(ctx, log, apiID, progress)
		return outcomeUpdated
	}

	title := strings.TrimSpace(row.BillName)

	content := detail.FromPage(o.source.FetchDetail(ctx, row.DetailLink))
	if !content.Usable() {
		reason := content.Failure.Label()
		if content.Failure == detail.OK {
			reason = detail.ContentMissing.Label()
		}
		metrics.BillsSkipped.WithLabelValues(reason).Inc()
		log.Info("New bill skipped: no usable detail", zap.String("reason", content.String()))
		return outcomeSkipped
	}

	summary := o.enricher.Summarize(ctx, content)
	if summary.Degraded() {
		metrics.BillsSkipped.WithLabelValues("summary").Inc()
		log.Warn("New bill skipped: summary incomplete")
		return outcomeSkipped
	}

	summaryText, predictionText, termText := summary.Texts()

	vec, err := o.enricher.Embed(ctx, enrichment.EmbeddingInput(title, summaryText, content.Text))
	if err != nil {
		metrics.BillsSkipped.WithLabelValues("embedding").Inc()
		log.Warn("New bill skipped: embedding failed", zap.Error(err))
		return outcomeSkipped
	}

	bill := models.Bill{
		APIID:        apiID,
		BillNumber:   number,
		BillTitle:    title,
		BillProposer: proposerName,
		ProposerID:   proposerID,
		Committee:    progress.Committee,
		BillStatus:   progress.BillStatus,
		BillDate:     progress.BillDate,
		Detail:       &content.Text,
		Summary:      &summaryText,
		Prediction:   &predictionText,
		Term:         &termText,
		Embedding:    vec,
	}

	if _, err := o.store.InsertBill(ctx, &bill, vec.Literal()); err != nil {
		log.Error("Failed to insert bill", zap.Error(err))
		return outcomeFailed
	}

	log.Info("New bill inserted", zap.Int64("bill_id", bill.ID), zap.String("title", title))
	o.publish(ctx, log, bill)

	return outcomeInserted
}

func (o *Orchestrator) publish(ctx context.Context, log *zap.Logger, bill models.Bill) {
	for _, sink := range o.sinks {
		if err := sink.PublishBill(ctx, bill); err != nil {
			metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			log.Warn("Sink publish failed", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}
}

func (o *Orchestrator) publishProgress(ctx context.Context, log *zap.Logger, apiID string, progress models.BillProgress) {
	for _, sink := range o.sinks {
		ps, ok := sink.(ProgressSink)
		if !ok {
			continue
		}
		if err := ps.PublishProgress(ctx, apiID, progress); err != nil {
			metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			log.Warn("Sink progress publish failed", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}

// String renders the report for CLI output.
func (r Report) String() string {
	return fmt.Sprintf("run %s (%s): fetched=%d inserted=%d updated=%d skipped=%d failed=%d in %s",
		r.RunID, r.Kind, r.Fetched, r.Inserted, r.Updated, r.Skipped, r.Failed, r.Duration.Round(time.Millisecond))
}
