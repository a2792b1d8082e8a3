package worker

import (
	"context"

	"github.com/ppiankov/legiswatch/internal/model"
)

// BillProcessor turns one bill into a summary. It may return an enriched
// copy of the bill (e.g. with the source document text).
type BillProcessor interface {
	Process(ctx context.Context, bill model.BillRecord) (model.BillRecord, model.SummaryResult, error)
}

// BillJob is one bill queued on the pool
type BillJob struct {
	Bill      model.BillRecord
	Processor BillProcessor
	Limiter   *Limiter
	LimitKey  string // URL whose host is paced before each job
}

// Execute runs the processor for the job's bill
func (j *BillJob) Execute(ctx context.Context) Result {
	if err := j.Limiter.Wait(ctx, j.LimitKey); err != nil {
		return &BillResult{Bill: j.Bill, Error: err, Cancelled: ctx.Err() != nil}
	}

	bill, summary, err := j.Processor.Process(ctx, j.Bill)
	if err != nil {
		return &BillResult{Bill: j.Bill, Error: err, Cancelled: ctx.Err() != nil}
	}

	return &BillResult{Bill: bill, Summary: summary}
}

// BillResult is the outcome of one BillJob
type BillResult struct {
	Bill      model.BillRecord
	Summary   model.SummaryResult
	Error     error
	Cancelled bool // Abandoned because the run was cancelled, not a bill failure
}

// GetError returns the error from the bill result
func (r *BillResult) GetError() error {
	return r.Error
}

// BatchProcessor summarizes many bills on a bounded pool, pacing calls
// against the LLM endpoint
type BatchProcessor struct {
	processor   BillProcessor
	concurrency int
	limiter     *Limiter
	limitKey    string
}

// NewBatchProcessor creates a batch processor. requestsPerSecond <= 0
// disables pacing.
func NewBatchProcessor(processor BillProcessor, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	var limiter *Limiter
	if requestsPerSecond > 0 {
		limiter = NewLimiter(requestsPerSecond, burst)
	}
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
		limiter:     limiter,
	}
}

// WithLimiter paces jobs on a shared limiter keyed by limitKey's host
func (b *BatchProcessor) WithLimiter(limiter *Limiter, limitKey string) *BatchProcessor {
	b.limiter = limiter
	b.limitKey = limitKey
	return b
}

// ProcessBills processes bills concurrently. Results arrive in completion
// order. When ctx is cancelled, bills that never started have no result and
// bills abandoned mid-flight are marked Cancelled.
func (b *BatchProcessor) ProcessBills(ctx context.Context, bills []model.BillRecord) []*BillResult {
	if len(bills) == 0 {
		return []*BillResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, bill := range bills {
		job := &BillJob{
			Bill:      bill,
			Processor: b.processor,
			Limiter:   b.limiter,
			LimitKey:  b.limitKey,
		}
		if !pool.Submit(job) {
			break
		}
	}

	results := pool.Wait()

	billResults := make([]*BillResult, len(results))
	for i, result := range results {
		billResults[i] = result.(*BillResult)
	}

	return billResults
}
