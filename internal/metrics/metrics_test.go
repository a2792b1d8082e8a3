package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func sampleReport() *model.RunReport {
	started := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	r := &model.RunReport{
		RunID:      "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Status:     model.RunComplete,
		Fetched:    5,
		Succeeded:  4,
	}
	r.AddFailure("CA-HB3", "summarize", model.ErrSummarization)
	r.CountSeverity(model.SeverityHigh)
	return r
}

func TestRunCollector_Empty(t *testing.T) {
	c := NewRunCollector()
	if n := testutil.CollectAndCount(c); n != 0 {
		t.Errorf("expected no metrics before a run is recorded, got %d", n)
	}
}

func TestRunCollector_Collect(t *testing.T) {
	c := NewRunCollector()
	c.Record(sampleReport())

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	expected := `
# HELP legiswatch_run_failures Per-bill failures in the last run, by reason
# TYPE legiswatch_run_failures gauge
legiswatch_run_failures{reason="summarization"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "legiswatch_run_failures"); err != nil {
		t.Error(err)
	}

	expectedDuration := `
# HELP legiswatch_run_duration_seconds Wall time of the last run
# TYPE legiswatch_run_duration_seconds gauge
legiswatch_run_duration_seconds 90
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expectedDuration), "legiswatch_run_duration_seconds"); err != nil {
		t.Error(err)
	}
}

func TestPush_NoURL(t *testing.T) {
	if err := Push(context.Background(), "", "legiswatch", sampleReport()); err != nil {
		t.Errorf("expected no-op without URL, got %v", err)
	}
}

func TestPush_Gateway(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := Push(context.Background(), server.URL, "legiswatch", sampleReport()); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if gotPath != "/metrics/job/legiswatch" {
		t.Errorf("unexpected push path %q", gotPath)
	}
	if gotBody == "" {
		t.Error("expected metrics body")
	}
}

func TestPush_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if err := Push(context.Background(), server.URL, "legiswatch", sampleReport()); err == nil {
		t.Error("expected error from failing gateway")
	}
}
