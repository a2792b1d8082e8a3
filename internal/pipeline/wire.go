package pipeline

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/ppiankov/legiswatch/internal/cache"
	"github.com/ppiankov/legiswatch/internal/document"
	"github.com/ppiankov/legiswatch/internal/llm"
	"github.com/ppiankov/legiswatch/internal/logging"
	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/ppiankov/legiswatch/internal/openstates"
	"github.com/ppiankov/legiswatch/internal/sink"
	"github.com/ppiankov/legiswatch/internal/worker"
)

// NewFromConfig builds a pipeline wired to the real OpenStates API, LLM
// provider and configured sink. Alerts for the console sink go to stdout.
//
// One limiter paces every outbound host: the API at
// RateLimiting.APIRequestsPerSecond, the LLM endpoint at
// RateLimiting.RequestsPerSecond, and document hosts at the same default
// rate, slowed further by robots.txt crawl delays.
func NewFromConfig(cfg *model.Config, logger *slog.Logger, stdout io.Writer) (*DailyPipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	llmConfig := llm.ConfigFromModel(cfg)
	llmURL := llm.EndpointURL(llmConfig)

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	if err := limiter.SetHostRate(cfg.OpenStates.Endpoint, cfg.RateLimiting.APIRequestsPerSecond, 1); err != nil {
		return nil, fmt.Errorf("%w: openstates endpoint: %w", model.ErrValidation, err)
	}
	if err := limiter.SetHostRate(llmURL, cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize); err != nil {
		return nil, fmt.Errorf("%w: llm endpoint: %w", model.ErrValidation, err)
	}

	httpClient := document.NewHTTPClient(cfg.HTTP)

	provider, err := llm.NewProvider(llmConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrValidation, err)
	}
	summarizer := llm.NewSummarizer(provider, llmConfig, cache.New(cfg.Cache), logger)

	out, err := sink.New(cfg.Sink, sink.Options{Stdout: stdout, HTTPClient: httpClient})
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Source:     openstates.NewFetcher(cfg, httpClient, limiter, logger),
		Summarizer: summarizer,
		Sink:       out,
		Seen:       cache.NewSeenStoreFromConfig(cfg.Dedup),
		Limiter:    limiter,
		LimitKey:   llmURL,
		Logger:     logger,
	}
	if cfg.Pipeline.FetchDocuments {
		deps.Enricher = document.NewFetcher(cfg.HTTP, httpClient, limiter, logger)
	}

	logger.Debug("pipeline configured",
		"provider", provider.Name(),
		"model", summarizer.Model(),
		"sink", cfg.Sink.Type,
		"workers", cfg.Concurrency.Workers,
		"fetch_documents", cfg.Pipeline.FetchDocuments,
		"dedup", cfg.Dedup.Enabled,
	)

	return New(cfg, deps), nil
}
