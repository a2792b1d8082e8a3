package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/legiswatch/internal/model"
)

// MockProcessor implements BillProcessor
type MockProcessor struct {
	FailIdentifier string
	Delay          time.Duration
	calls          atomic.Int32
}

func (m *MockProcessor) Process(ctx context.Context, bill model.BillRecord) (model.BillRecord, model.SummaryResult, error) {
	m.calls.Add(1)
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return bill, model.SummaryResult{}, ctx.Err()
		}
	}
	if bill.Identifier == m.FailIdentifier {
		return bill, model.SummaryResult{}, fmt.Errorf("%w: model returned prose", model.ErrSummarization)
	}
	return bill.WithText(bill.Text + " (full)"), model.SummaryResult{
		Summary:        "summary of " + bill.Identifier,
		Deadline:       model.Unspecified,
		ActionRequired: "review",
		Severity:       model.SeverityLow,
	}, nil
}

func testBills(n int) []model.BillRecord {
	bills := make([]model.BillRecord, n)
	for i := range bills {
		bills[i] = model.BillRecord{Jurisdiction: "CA", Identifier: fmt.Sprintf("HB %d", i+1), Title: "t", Text: "crypto"}
	}
	return bills
}

func TestBatchProcessor_ProcessBills(t *testing.T) {
	processor := NewBatchProcessor(&MockProcessor{}, 2, 0, 0)

	results := processor.ProcessBills(context.Background(), testBills(3))

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for _, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Bill.Key(), res.Error)
		}
		if res.Summary.Summary != "summary of "+res.Bill.Identifier {
			t.Errorf("summary not attributed to its bill: %+v", res)
		}
		if res.Bill.Text != "crypto (full)" {
			t.Errorf("expected enriched bill to be returned, got %q", res.Bill.Text)
		}
	}
}

func TestBatchProcessor_PartialFailure(t *testing.T) {
	processor := NewBatchProcessor(&MockProcessor{FailIdentifier: "HB 3"}, 2, 0, 0)

	results := processor.ProcessBills(context.Background(), testBills(5))
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}

	failed := 0
	for _, res := range results {
		if res.Error != nil {
			failed++
			if res.Bill.Identifier != "HB 3" {
				t.Errorf("unexpected failing bill %s", res.Bill.Identifier)
			}
			if !errors.Is(res.GetError(), model.ErrSummarization) {
				t.Errorf("expected summarization error, got %v", res.Error)
			}
			if res.Cancelled {
				t.Error("failure must not be marked cancelled")
			}
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failure, got %d", failed)
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockProcessor{}, 2, 0, 0)

	results := processor.ProcessBills(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	mock := &MockProcessor{Delay: 50 * time.Millisecond}
	processor := NewBatchProcessor(mock, 1, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 75*time.Millisecond)
	defer cancel()

	results := processor.ProcessBills(ctx, testBills(10))

	if len(results) >= 10 {
		t.Fatalf("expected cancellation to leave bills unprocessed, got %d results", len(results))
	}

	completed, cancelled := 0, 0
	for _, res := range results {
		switch {
		case res.Error == nil:
			completed++
		case res.Cancelled:
			cancelled++
		default:
			t.Errorf("unexpected failure: %v", res.Error)
		}
	}
	if completed == 0 {
		t.Error("expected results collected before cancellation to be kept")
	}
}

func TestBatchProcessor_Paced(t *testing.T) {
	mock := &MockProcessor{}
	limiter := NewLimiter(0, 1)
	if err := limiter.SetHostRate("http://llm.local/v1", 20, 1); err != nil {
		t.Fatal(err)
	}
	processor := NewBatchProcessor(mock, 4, 0, 0).WithLimiter(limiter, "http://llm.local/v1")

	start := time.Now()
	results := processor.ProcessBills(context.Background(), testBills(3))
	elapsed := time.Since(start)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	// Burst 1 at 20 rps: the third call waits roughly 100ms.
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected pacing to delay the batch, took %v", elapsed)
	}
}

func TestBillResult_GetError(t *testing.T) {
	r1 := &BillResult{Error: nil}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("summarize failed")
	r2 := &BillResult{Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}
