package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/ppiankov/legiswatch/internal/cache"
	"github.com/ppiankov/legiswatch/internal/logging"
	"github.com/ppiankov/legiswatch/internal/model"
)

// summaryTTL is how long a cached summary stays valid on disk. The key
// includes the content hash and prompt settings, so an amended bill or a
// changed prompt always misses.
const summaryTTL = 30 * 24 * time.Hour

// Summarizer turns bill text into a structured SummaryResult
type Summarizer struct {
	provider Provider
	config   Config
	cache    cache.Cache
	logger   *slog.Logger
}

// NewSummarizer wraps a provider. c may be nil to disable caching.
func NewSummarizer(provider Provider, config Config, c cache.Cache, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = logging.Discard()
	}
	if config.MaxTextChars == 0 {
		config.MaxTextChars = DefaultMaxTextChars
	}
	return &Summarizer{
		provider: provider,
		config:   config,
		cache:    c,
		logger:   logger,
	}
}

// ProviderName returns the name of the configured provider
func (s *Summarizer) ProviderName() string {
	return s.provider.Name()
}

// Model returns the configured model name
func (s *Summarizer) Model() string {
	return s.config.Model
}

// Summarize sends one request for bill and parses the reply. Every field of
// the result is either a value or model.Unspecified.
//
// Errors: model.ErrValidation for empty text, model.ErrModelTimeout when the
// response budget is exceeded, model.ErrSummarization otherwise.
func (s *Summarizer) Summarize(ctx context.Context, bill model.BillRecord) (model.SummaryResult, error) {
	if strings.TrimSpace(bill.Text) == "" {
		return model.SummaryResult{}, fmt.Errorf("%w: bill %s has no text", model.ErrValidation, bill.Key())
	}

	key := cache.SummaryKey(s.config.Model, PromptVersion, s.config.MaxTextChars, bill.ContentHash())
	var cached model.SummaryResult
	if s.cache != nil && cache.GetJSON(s.cache, key, &cached) && cached.Complete() {
		s.logger.Debug("summary cache hit", "bill", bill.Key())
		return cached, nil
	}

	text := Truncate(bill.Text, s.config.MaxTextChars)
	if len(text) < len(bill.Text) {
		s.logger.Debug("bill text truncated", "bill", bill.Key(), "chars", s.config.MaxTextChars)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.timeout())
	defer cancel()

	start := time.Now()
	resp, err := s.provider.Complete(callCtx, CompletionRequest{
		System:      SystemPrompt,
		Prompt:      BuildPrompt(bill, text),
		Model:       s.config.Model,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		JSONMode:    s.config.JSONMode,
	})
	if err != nil {
		if ctx.Err() == nil && (callCtx.Err() == context.DeadlineExceeded || isTimeout(err)) {
			return model.SummaryResult{}, fmt.Errorf("%w: %s after %s", model.ErrModelTimeout, bill.Key(), s.config.timeout())
		}
		return model.SummaryResult{}, fmt.Errorf("%w: %s: %w", model.ErrSummarization, bill.Key(), err)
	}

	result, err := ParseSummary(resp.Content)
	if err != nil {
		return model.SummaryResult{}, fmt.Errorf("%s: %w", bill.Key(), err)
	}

	s.logger.Debug("bill summarized",
		"bill", bill.Key(),
		"provider", s.provider.Name(),
		"model", resp.Model,
		"tokens", resp.TokensUsed,
		"severity", result.Severity,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if s.cache != nil {
		if err := cache.SetJSON(s.cache, key, result, summaryTTL); err != nil {
			s.logger.Warn("failed to cache summary", "bill", bill.Key(), "error", err)
		}
	}

	return result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
