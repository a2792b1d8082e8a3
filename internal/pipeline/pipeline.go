// Package pipeline runs the daily legislative monitoring job: fetch
// matching bills, summarize each one, build alerts, and emit them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/legiswatch/internal/alert"
	"github.com/ppiankov/legiswatch/internal/cache"
	"github.com/ppiankov/legiswatch/internal/logging"
	"github.com/ppiankov/legiswatch/internal/metrics"
	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/ppiankov/legiswatch/internal/sink"
	"github.com/ppiankov/legiswatch/internal/telemetry"
	"github.com/ppiankov/legiswatch/internal/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// emitGrace bounds emission and the metrics push once the run is cancelled
const emitGrace = 10 * time.Second

// BillSource lists the bills a run looks at
type BillSource interface {
	FetchAll(ctx context.Context, keywords []string, since time.Time) ([]model.BillRecord, error)
}

// Enricher replaces a bill's abstract with its full text
type Enricher interface {
	Enrich(ctx context.Context, bill model.BillRecord) (model.BillRecord, error)
}

// Summarizer produces the structured summary of one bill
type Summarizer interface {
	Summarize(ctx context.Context, bill model.BillRecord) (model.SummaryResult, error)
}

// Deps are the components a DailyPipeline drives. Enricher, Seen and
// Limiter are optional.
type Deps struct {
	Source     BillSource
	Enricher   Enricher
	Summarizer Summarizer
	Sink       sink.Sink
	Seen       *cache.SeenStore

	// Limiter paces summarization against the host of LimitKey
	Limiter  *worker.Limiter
	LimitKey string

	Logger *slog.Logger
	Now    func() time.Time
}

// RunResult is the outcome of one run
type RunResult struct {
	Report *model.RunReport
	Alerts []model.ComplianceAlert // Emitted alerts in bill-key order
}

// DailyPipeline orchestrates one scheduled run
type DailyPipeline struct {
	config *model.Config
	deps   Deps
	batch  *worker.BatchProcessor
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex // one run at a time
	state State
}

// New creates a pipeline. cfg supplies keywords, the lookback window, the
// worker count, and the metrics destination.
func New(cfg *model.Config, deps Deps) *DailyPipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	processor := &billProcessor{
		enricher:   deps.Enricher,
		summarizer: deps.Summarizer,
		seen:       deps.Seen,
		logger:     logger,
	}
	batch := worker.NewBatchProcessor(processor, cfg.Concurrency.Workers, 0, 0).
		WithLimiter(deps.Limiter, deps.LimitKey)

	return &DailyPipeline{
		config: cfg,
		deps:   deps,
		batch:  batch,
		logger: logger,
		now:    now,
		state:  StateIdle,
	}
}

// State returns the state the last run ended in
func (p *DailyPipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close releases the sink. The file sink writes its output here.
func (p *DailyPipeline) Close() error {
	if p.deps.Sink == nil {
		return nil
	}
	return p.deps.Sink.Close()
}

// Run executes one daily run. Per-bill failures are recorded in the report
// and never abort the run. A fetch-stage error (model.IsFatal) moves the
// run to Failed and is returned alongside the report. Cancellation emits
// the alerts already built and reports status partial.
func (p *DailyPipeline) Run(ctx context.Context) (*RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateIdle
	started := p.now().UTC()
	keywords := p.config.CleanKeywords()
	since := p.config.Since(started)

	report := &model.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Status:    model.RunComplete,
		Since:     since.Format(model.DateLayout),
		Keywords:  keywords,
	}
	result := &RunResult{Report: report, Alerts: []model.ComplianceAlert{}}
	logger := p.logger.With("run_id", report.RunID)

	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", report.RunID),
		attribute.String("run.since", report.Since),
		attribute.StringSlice("run.keywords", keywords),
	))
	defer span.End()

	logger.Info("run started", "since", report.Since, "keywords", strings.Join(keywords, ","))

	// Fetching
	p.transition(logger, StateFetching)
	bills, err := p.fetch(ctx, keywords, since)
	if err != nil {
		if ctx.Err() != nil {
			report.Status = model.RunPartial
		} else {
			report.Status = model.RunFailed
		}
		report.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		p.transition(logger, StateFailed)
		p.finish(ctx, logger, report)
		return result, err
	}
	report.Fetched = len(bills)
	span.SetAttributes(attribute.Int("run.fetched", len(bills)))

	// Summarizing
	p.transition(logger, StateSummarizing)
	processed := p.summarize(ctx, logger, bills, report)

	// Building
	p.transition(logger, StateBuilding)
	alerts := p.build(processed, report)

	// Emitting
	p.transition(logger, StateEmitting)
	result.Alerts = p.emit(ctx, logger, alerts, report)

	if ctx.Err() != nil {
		report.Status = model.RunPartial
	}
	p.transition(logger, StateDone)
	p.finish(ctx, logger, report)

	span.SetAttributes(
		attribute.Int("run.alerts", report.Succeeded),
		attribute.Int("run.failed", report.Failed),
		attribute.String("run.status", string(report.Status)),
	)
	return result, nil
}

// fetch collects the bill sequence and drops repeated keys, returning the
// bills in key order
func (p *DailyPipeline) fetch(ctx context.Context, keywords []string, since time.Time) ([]model.BillRecord, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.fetch")
	defer span.End()

	bills, err := p.deps.Source.FetchAll(ctx, keywords, since)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch bills: %w", err)
	}

	seen := make(map[string]bool, len(bills))
	unique := make([]model.BillRecord, 0, len(bills))
	for _, b := range bills {
		if seen[b.Key()] {
			continue
		}
		seen[b.Key()] = true
		unique = append(unique, b)
	}
	slices.SortFunc(unique, func(a, b model.BillRecord) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return unique, nil
}

// summarized is a bill that made it through the worker pool
type summarized struct {
	bill    model.BillRecord
	summary model.SummaryResult
}

// summarize runs the per-bill stage and returns the successes in key order
func (p *DailyPipeline) summarize(ctx context.Context, logger *slog.Logger, bills []model.BillRecord, report *model.RunReport) []summarized {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.summarize",
		trace.WithAttributes(attribute.Int("bills", len(bills))))
	defer span.End()

	results := p.batch.ProcessBills(ctx, bills)

	var (
		out       []summarized
		cancelled int
	)
	for _, r := range results {
		switch {
		case r.Error == nil:
			out = append(out, summarized{bill: r.Bill, summary: r.Summary})
		case errors.Is(r.Error, errAlreadyAlerted):
			logger.Debug("bill already alerted, skipping", "bill", r.Bill.Key())
			report.Skipped++
		case r.Cancelled:
			cancelled++
		default:
			report.AddFailure(r.Bill.Key(), "summarize", r.Error)
		}
	}
	report.Unprocessed = len(bills) - len(results) + cancelled

	slices.SortFunc(out, func(a, b summarized) int {
		return strings.Compare(a.bill.Key(), b.bill.Key())
	})
	return out
}

// build turns summaries into alerts with a single generation time
func (p *DailyPipeline) build(processed []summarized, report *model.RunReport) []model.ComplianceAlert {
	now := p.now().UTC()
	alerts := make([]model.ComplianceAlert, 0, len(processed))
	for _, s := range processed {
		a, err := alert.Build(s.bill, s.summary, now)
		if err != nil {
			report.AddFailure(s.bill.Key(), "build", err)
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts
}

// emit hands alerts to the sink in order. A sink error is recorded against
// its bill and emission continues.
func (p *DailyPipeline) emit(ctx context.Context, logger *slog.Logger, alerts []model.ComplianceAlert, report *model.RunReport) []model.ComplianceAlert {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), emitGrace)
		defer cancel()
	}

	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.emit",
		trace.WithAttributes(attribute.Int("alerts", len(alerts))))
	defer span.End()

	emitted := make([]model.ComplianceAlert, 0, len(alerts))
	for _, a := range alerts {
		if err := p.deps.Sink.Emit(ctx, a); err != nil {
			if !errors.Is(err, model.ErrSink) {
				err = fmt.Errorf("%w: %w", model.ErrSink, err)
			}
			logger.Warn("alert emit failed", "bill", a.BillKey, "error", err)
			report.AddFailure(a.BillKey, "emit", err)
			continue
		}

		emitted = append(emitted, a)
		report.Succeeded++
		report.CountSeverity(a.Severity)

		if p.deps.Seen != nil {
			if err := p.deps.Seen.Mark(a); err != nil {
				logger.Warn("failed to record alerted bill", "bill", a.BillKey, "error", err)
			}
		}
	}
	return emitted
}

// finish stamps the report, logs the summary line and pushes metrics
func (p *DailyPipeline) finish(ctx context.Context, logger *slog.Logger, report *model.RunReport) {
	report.FinishedAt = p.now().UTC()
	report.FinalState = string(p.state)
	slices.SortStableFunc(report.Failures, func(a, b model.BillFailure) int {
		return strings.Compare(a.BillKey, b.BillKey)
	})

	level := slog.LevelInfo
	if report.Status != model.RunComplete {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, report.SummaryLine())

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitGrace)
	defer cancel()
	if err := metrics.Push(pushCtx, p.config.Metrics.PushgatewayURL, p.config.Metrics.Job, report); err != nil {
		logger.Warn("metrics push failed", "error", err)
	}
}

// transition moves the run to the next state. Edges are fixed by the code
// above, so an invalid one is logged rather than returned.
func (p *DailyPipeline) transition(logger *slog.Logger, to State) {
	if err := validateTransition(p.state, to); err != nil {
		logger.Error("state machine violation", "error", err)
	}
	logger.Debug("state transition", "from", p.state, "to", to)
	p.state = to
}
