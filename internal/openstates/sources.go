package openstates

import (
	"cmp"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// Tier ranks how authoritative a document host is for bill text
type Tier int

const (
	TierOfficial   Tier = iota + 1 // Legislature or other government site
	TierAggregator                 // Bill-tracking services republishing the text
	TierOther
)

// aggregatorDomains republish bill text; used when no official copy exists
var aggregatorDomains = []string{
	"legiscan.com", "openstates.org", "govtrack.us", "ballotpedia.org", "fastdemocracy.com",
}

// stateHostPattern matches legislatures still on state.<xx>.us hosts
// ("alison.legislature.state.al.us", "www.legis.state.ak.us")
var stateHostPattern = regexp.MustCompile(`(^|\.)state\.[a-z]{2}\.us$`)

// SourceRanker picks the document a bill's text is fetched from
type SourceRanker struct {
	official   map[string]bool
	aggregator map[string]bool
}

// NewSourceRanker creates a ranker. extraOfficial adds hosts (and their
// subdomains) to the official tier.
func NewSourceRanker(extraOfficial ...string) *SourceRanker {
	r := &SourceRanker{
		official:   make(map[string]bool),
		aggregator: make(map[string]bool),
	}
	for _, d := range extraOfficial {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			r.official[d] = true
		}
	}
	for _, d := range aggregatorDomains {
		r.aggregator[d] = true
	}
	return r
}

// Classify assigns rawURL's host to a tier
func (r *SourceRanker) Classify(rawURL string) Tier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return TierOther
	}
	host := strings.ToLower(parsed.Hostname())

	switch {
	case matchesDomain(host, r.official):
		return TierOfficial
	case strings.HasSuffix(host, ".gov") || strings.Contains(host, ".gov."):
		return TierOfficial
	case stateHostPattern.MatchString(host):
		return TierOfficial
	case matchesDomain(host, r.aggregator):
		return TierAggregator
	}
	return TierOther
}

// matchesDomain reports whether host is one of domains or a subdomain of one
func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for d := range domains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// candidate is a document that may carry a bill's text
type candidate struct {
	url       string
	mediaType string
}

// mediaRank prefers formats the document fetcher can extract text from
func mediaRank(mediaType string) int {
	mt := strings.ToLower(mediaType)
	switch {
	case strings.Contains(mt, "html"), strings.HasPrefix(mt, "text/"):
		return 0
	case mt == "":
		return 1
	case strings.Contains(mt, "pdf"):
		return 3
	}
	return 2
}

// Best returns the candidate URL with the highest tier, then the most
// extractable media type, keeping input order among equals. Empty when
// there are no candidates.
func (r *SourceRanker) Best(candidates []candidate) string {
	valid := slices.DeleteFunc(slices.Clone(candidates), func(c candidate) bool {
		return strings.TrimSpace(c.url) == ""
	})
	if len(valid) == 0 {
		return ""
	}

	slices.SortStableFunc(valid, func(a, b candidate) int {
		if c := cmp.Compare(r.Classify(a.url), r.Classify(b.url)); c != 0 {
			return c
		}
		return cmp.Compare(mediaRank(a.mediaType), mediaRank(b.mediaType))
	})
	return valid[0].url
}
