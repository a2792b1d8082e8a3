// Package metrics exports run results to Prometheus. A daily batch job has
// nothing to scrape, so results are pushed to a Pushgateway at run end.
package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	billsDesc = prometheus.NewDesc(
		"legiswatch_run_bills",
		"Bills seen by the last run, by outcome",
		[]string{"outcome"},
		nil,
	)
	failuresDesc = prometheus.NewDesc(
		"legiswatch_run_failures",
		"Per-bill failures in the last run, by reason",
		[]string{"reason"},
		nil,
	)
	alertsDesc = prometheus.NewDesc(
		"legiswatch_run_alerts",
		"Alerts emitted by the last run, by severity",
		[]string{"severity"},
		nil,
	)
	durationDesc = prometheus.NewDesc(
		"legiswatch_run_duration_seconds",
		"Wall time of the last run",
		nil,
		nil,
	)
	lastRunDesc = prometheus.NewDesc(
		"legiswatch_run_last_completion_timestamp_seconds",
		"Unix time the last run finished, by status",
		[]string{"status"},
		nil,
	)
)

// RunCollector is a Prometheus collector that reports the most recently
// recorded run report on each collection.
type RunCollector struct {
	mu     sync.RWMutex
	report *model.RunReport
}

// NewRunCollector creates an empty collector
func NewRunCollector() *RunCollector {
	return &RunCollector{}
}

// Record replaces the report the collector exposes
func (c *RunCollector) Record(report *model.RunReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report = report
}

// Describe sends the metric descriptors to the channel.
func (c *RunCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- billsDesc
	ch <- failuresDesc
	ch <- alertsDesc
	ch <- durationDesc
	ch <- lastRunDesc
}

// Collect emits gauges derived from the recorded report.
func (c *RunCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	r := c.report
	c.mu.RUnlock()
	if r == nil {
		return
	}

	outcomes := map[string]int{
		"fetched":     r.Fetched,
		"succeeded":   r.Succeeded,
		"failed":      r.Failed,
		"skipped":     r.Skipped,
		"unprocessed": r.Unprocessed,
	}
	for outcome, n := range outcomes {
		ch <- prometheus.MustNewConstMetric(billsDesc, prometheus.GaugeValue, float64(n), outcome)
	}

	for reason, n := range r.FailureReasons() {
		ch <- prometheus.MustNewConstMetric(failuresDesc, prometheus.GaugeValue, float64(n), reason)
	}

	for _, sev := range model.Severities {
		ch <- prometheus.MustNewConstMetric(alertsDesc, prometheus.GaugeValue, float64(r.Severities[sev]), string(sev))
	}
	ch <- prometheus.MustNewConstMetric(alertsDesc, prometheus.GaugeValue, float64(r.Severities[model.SeverityUnspecified]), string(model.SeverityUnspecified))

	if !r.FinishedAt.IsZero() {
		ch <- prometheus.MustNewConstMetric(durationDesc, prometheus.GaugeValue, r.FinishedAt.Sub(r.StartedAt).Seconds())
		ch <- prometheus.MustNewConstMetric(lastRunDesc, prometheus.GaugeValue, float64(r.FinishedAt.Unix()), string(r.Status))
	}
}

// Push records the report and pushes it to the Pushgateway at url under job.
// An empty url is a no-op.
func Push(ctx context.Context, url, job string, report *model.RunReport) error {
	if url == "" {
		return nil
	}

	c := NewRunCollector()
	c.Record(report)

	if err := push.New(url, job).Collector(c).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
