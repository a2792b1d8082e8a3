package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ppiankov/legiswatch/internal/cache"
	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/ppiankov/legiswatch/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// errAlreadyAlerted marks a bill version suppressed by the seen store
var errAlreadyAlerted = errors.New("already alerted")

// billProcessor is the per-bill stage run on the worker pool: optional
// source document enrichment, the seen-store check, then summarization
type billProcessor struct {
	enricher   Enricher
	summarizer Summarizer
	seen       *cache.SeenStore
	logger     *slog.Logger
}

func (p *billProcessor) Process(ctx context.Context, bill model.BillRecord) (model.BillRecord, model.SummaryResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "bill.process",
		trace.WithAttributes(attribute.String("bill.key", bill.Key())))
	defer span.End()

	if p.enricher != nil {
		enriched, err := p.enricher.Enrich(ctx, bill)
		if err != nil {
			span.RecordError(err)
			return bill, model.SummaryResult{}, err
		}
		bill = enriched
	}

	if p.seen != nil && p.seen.Seen(bill) {
		span.SetAttributes(attribute.Bool("bill.skipped", true))
		return bill, model.SummaryResult{}, errAlreadyAlerted
	}

	summary, err := p.summarizer.Summarize(ctx, bill)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, model.Reason(err))
		if ctx.Err() == nil {
			p.logger.Warn("bill summarization failed", "bill", bill.Key(), "reason", model.Reason(err), "error", err)
		}
		return bill, model.SummaryResult{}, err
	}

	span.SetAttributes(attribute.String("bill.severity", string(summary.Severity)))
	return bill, summary, nil
}
