// Package document downloads a bill's source document and extracts its text.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/legiswatch/internal/logging"
	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/ppiankov/legiswatch/internal/util"
	"github.com/ppiankov/legiswatch/internal/worker"
)

var (
	// ErrDisallowed is returned when robots.txt forbids the fetch
	ErrDisallowed = errors.New("disallowed by robots.txt")

	// ErrUnsupportedContent is returned for documents with no extractable text (PDF, images)
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// Document is a fetched source document
type Document struct {
	URL         string
	FinalURL    string
	ContentType string
	Text        string
}

// Fetcher fetches bill source documents
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *RobotsChecker
	limiter    *worker.Limiter
	logger     *slog.Logger

	delayMu sync.Mutex
	delays  map[string]bool // hosts whose crawl-delay was applied to the limiter
}

// NewFetcher creates a document fetcher from the HTTP configuration.
// limiter may be nil.
func NewFetcher(cfg model.HTTPConfig, httpClient *http.Client, limiter *worker.Limiter, logger *slog.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 5_000_000
	}

	f := &Fetcher{
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		limiter:    limiter,
		logger:     logger,
		delays:     make(map[string]bool),
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsChecker(httpClient, cfg.UserAgent)
	}
	return f
}

// NewHTTPClient builds the outbound client for API and document requests:
// configured timeout and proxies, at most three redirects
func NewHTTPClient(cfg model.HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return errors.New("stopped after 3 redirects")
			}
			return nil
		},
	}
}

// Fetch retrieves a document and extracts its visible text
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	if f.robots != nil {
		allowed, delay := f.robots.CanFetch(ctx, rawURL)
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
		}
		f.applyCrawlDelay(rawURL, delay)
	}

	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	body := io.LimitReader(resp.Body, f.maxBytes)

	var text string
	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml" || strings.HasSuffix(mediaType, "xml"):
		text, err = ExtractText(body)
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
	case strings.HasPrefix(mediaType, "text/"):
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		text = tidy(string(raw))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, mediaType)
	}

	return &Document{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		ContentType: contentType,
		Text:        text,
	}, nil
}

// Enrich replaces the bill's abstract with its source document text. When
// the bill has no source, or the document cannot be fetched or is empty,
// the bill is returned unchanged. Only cancellation is returned as an error.
func (f *Fetcher) Enrich(ctx context.Context, bill model.BillRecord) (model.BillRecord, error) {
	if bill.SourceURL == "" {
		f.logger.Debug("no source document", "bill", bill.Key())
		return bill, nil
	}

	doc, err := f.Fetch(ctx, bill.SourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return bill, ctx.Err()
		}
		f.logger.Warn("source document unavailable, using abstract", "bill", bill.Key(), "url", bill.SourceURL, "error", err)
		return bill, nil
	}

	if strings.TrimSpace(doc.Text) == "" {
		f.logger.Warn("source document has no text, using abstract", "bill", bill.Key(), "url", bill.SourceURL)
		return bill, nil
	}

	return bill.WithText(doc.Text), nil
}

// applyCrawlDelay paces a host at its robots.txt crawl-delay, once per host
func (f *Fetcher) applyCrawlDelay(rawURL string, delay time.Duration) {
	if delay <= 0 || f.limiter == nil {
		return
	}

	f.delayMu.Lock()
	defer f.delayMu.Unlock()

	host, err := hostOf(rawURL)
	if err != nil || f.delays[host] {
		return
	}
	f.delays[host] = true

	if err := f.limiter.SetHostRate(rawURL, 1/delay.Seconds(), 1); err != nil {
		f.logger.Debug("crawl delay not applied", "url", rawURL, "error", err)
	}
}
