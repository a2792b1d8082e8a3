package openstates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/legiswatch/internal/logging"
	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/ppiankov/legiswatch/internal/worker"
)

// Fetcher queries OpenStates for bills matching keywords within a date window
type Fetcher struct {
	client        *Client
	jurisdictions []string
	pageSize      int
	maxPages      int
	serverSearch  bool
	ranker        *SourceRanker
	now           func() time.Time
	logger        *slog.Logger
}

// NewFetcher creates a fetcher from the run configuration. limiter paces
// requests to the API host and may be nil.
func NewFetcher(cfg *model.Config, httpClient *http.Client, limiter *worker.Limiter, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = logging.Discard()
	}

	pageSize := cfg.OpenStates.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return &Fetcher{
		client:        NewClient(httpClient, cfg.OpenStates.Endpoint, cfg.OpenStates.APIKey, cfg.HTTP.UserAgent, limiter),
		jurisdictions: cfg.Pipeline.Jurisdictions,
		pageSize:      pageSize,
		maxPages:      cfg.OpenStates.MaxPages,
		serverSearch:  cfg.OpenStates.ServerSearch,
		ranker:        NewSourceRanker(),
		now:           time.Now,
		logger:        logger,
	}
}

// query is one paginated listing
type query struct {
	jurisdiction string
	keyword      string // sent as searchQuery; empty lists everything
}

// Fetch returns the bills whose last action is on or after since and that
// match at least one keyword. The sequence is lazy: requests are issued as
// it is ranged over, and every range starts over from the first page.
// Bills returned by several queries are yielded once.
//
// Invalid input yields a single model.ErrValidation before any request.
// Any other error is yielded once and ends the sequence.
func (f *Fetcher) Fetch(ctx context.Context, keywords []string, since time.Time) iter.Seq2[model.BillRecord, error] {
	return func(yield func(model.BillRecord, error) bool) {
		clean, err := f.validate(keywords, since)
		if err != nil {
			yield(model.BillRecord{}, err)
			return
		}

		sinceDay := model.Day(since)
		seen := make(map[string]bool)

		for _, q := range f.queries(clean) {
			err := f.paginate(ctx, q, sinceDay, func(bill model.BillRecord) bool {
				// Undated bills cannot be shown to fall in the window.
				if bill.LastActionDate.IsZero() || bill.LastActionDate.Before(sinceDay) {
					return true
				}
				if q.keyword == "" && !MatchesKeyword(bill, clean) {
					return true
				}
				if seen[bill.Key()] {
					return true
				}
				seen[bill.Key()] = true
				return yield(bill, nil)
			})
			if errors.Is(err, errStop) {
				return
			}
			if err != nil {
				yield(model.BillRecord{}, err)
				return
			}
		}
	}
}

// FetchAll collects the whole sequence
func (f *Fetcher) FetchAll(ctx context.Context, keywords []string, since time.Time) ([]model.BillRecord, error) {
	var bills []model.BillRecord
	for bill, err := range f.Fetch(ctx, keywords, since) {
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, nil
}

func (f *Fetcher) validate(keywords []string, since time.Time) ([]string, error) {
	var clean []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("%w: at least one keyword is required", model.ErrValidation)
	}
	if since.IsZero() {
		return nil, fmt.Errorf("%w: since date is required", model.ErrValidation)
	}
	if model.Day(since).After(model.Day(f.now())) {
		return nil, fmt.Errorf("%w: since %s is in the future", model.ErrValidation, since.Format(model.DateLayout))
	}
	return clean, nil
}

func (f *Fetcher) queries(keywords []string) []query {
	jurisdictions := f.jurisdictions
	if len(jurisdictions) == 0 {
		jurisdictions = []string{""}
	}

	var out []query
	for _, j := range jurisdictions {
		if !f.serverSearch {
			out = append(out, query{jurisdiction: j})
			continue
		}
		for _, k := range keywords {
			out = append(out, query{jurisdiction: j, keyword: k})
		}
	}
	return out
}

// errStop signals that the consumer stopped ranging
var errStop = errors.New("stop")

// paginate walks one query's pages, passing each bill to emit
func (f *Fetcher) paginate(ctx context.Context, q query, since time.Time, emit func(model.BillRecord) bool) error {
	after := ""
	for page := 1; f.maxPages <= 0 || page <= f.maxPages; page++ {
		vars := map[string]any{
			"first":       f.pageSize,
			"actionSince": since.Format(model.DateLayout),
		}
		if q.jurisdiction != "" {
			vars["jurisdiction"] = q.jurisdiction
		}
		if q.keyword != "" {
			vars["searchQuery"] = q.keyword
		}
		if after != "" {
			vars["after"] = after
		}

		raw, err := f.client.Execute(ctx, BillsQuery, vars)
		if err != nil {
			return err
		}

		var data billsData
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("%w: decode bills: %w", model.ErrFetch, err)
		}

		f.logger.Debug("fetched bills page",
			"jurisdiction", JurisdictionCode(q.jurisdiction),
			"keyword", q.keyword,
			"page", page,
			"bills", len(data.Bills.Edges),
		)

		for _, edge := range data.Bills.Edges {
			if !emit(edge.Node.toRecord(q.jurisdiction, f.ranker)) {
				return errStop
			}
		}

		info := data.Bills.PageInfo
		if !info.HasNextPage || info.EndCursor == "" || info.EndCursor == after {
			return nil
		}
		after = info.EndCursor
	}

	f.logger.Debug("page limit reached", "jurisdiction", JurisdictionCode(q.jurisdiction), "keyword", q.keyword, "max_pages", f.maxPages)
	return nil
}

// MatchesKeyword reports whether any keyword occurs in the bill's title or
// text, case-insensitively
func MatchesKeyword(bill model.BillRecord, keywords []string) bool {
	haystack := strings.ToLower(bill.Title + "\n" + bill.Text)
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" && strings.Contains(haystack, k) {
			return true
		}
	}
	return false
}
