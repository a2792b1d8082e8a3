package openstates

import (
	"strings"
	"time"

	"github.com/ppiankov/legiswatch/internal/model"
)

// BillsQuery lists bills for one jurisdiction, optionally filtered by a
// full-text search and a last-action date
const BillsQuery = `
query Bills($jurisdiction: String, $searchQuery: String, $actionSince: String, $first: Int, $after: String) {
  bills(jurisdiction: $jurisdiction, searchQuery: $searchQuery, actionSince: $actionSince, first: $first, after: $after) {
    edges {
      node {
        id
        identifier
        title
        updatedAt
        openstatesUrl
        legislativeSession {
          jurisdiction {
            id
            name
          }
        }
        abstracts {
          abstract
        }
        sources {
          url
        }
        versions {
          date
          links {
            url
            mediaType
          }
        }
        actions {
          date
        }
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}
`

type billsData struct {
	Bills struct {
		Edges []struct {
			Node billNode `json:"node"`
		} `json:"edges"`
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
	} `json:"bills"`
}

type billNode struct {
	ID                 string `json:"id"`
	Identifier         string `json:"identifier"`
	Title              string `json:"title"`
	UpdatedAt          string `json:"updatedAt"`
	OpenStatesURL      string `json:"openstatesUrl"`
	LegislativeSession struct {
		Jurisdiction struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"jurisdiction"`
	} `json:"legislativeSession"`
	Abstracts []struct {
		Abstract string `json:"abstract"`
	} `json:"abstracts"`
	Sources []struct {
		URL string `json:"url"`
	} `json:"sources"`
	Actions []struct {
		Date string `json:"date"`
	} `json:"actions"`
	Versions []struct {
		Date  string `json:"date"`
		Links []struct {
			URL       string `json:"url"`
			MediaType string `json:"mediaType"`
		} `json:"links"`
	} `json:"versions"`
}

// toRecord normalizes an API node. requested is the jurisdiction id the
// query was scoped to, used when the node omits its session.
func (n billNode) toRecord(requested string, ranker *SourceRanker) model.BillRecord {
	jurisdiction := JurisdictionCode(n.LegislativeSession.Jurisdiction.ID)
	if jurisdiction == "" {
		jurisdiction = JurisdictionCode(requested)
	}
	if jurisdiction == "" {
		jurisdiction = n.LegislativeSession.Jurisdiction.Name
	}

	var abstracts []string
	for _, a := range n.Abstracts {
		if s := strings.TrimSpace(a.Abstract); s != "" {
			abstracts = append(abstracts, s)
		}
	}
	text := strings.Join(abstracts, "\n\n")
	if text == "" {
		text = strings.TrimSpace(n.Title)
	}

	source := ranker.Best(n.documentCandidates())

	return model.BillRecord{
		ID:             n.ID,
		Jurisdiction:   jurisdiction,
		Identifier:     strings.TrimSpace(n.Identifier),
		Title:          strings.TrimSpace(n.Title),
		Text:           text,
		LastActionDate: n.lastActionDate(),
		SourceURL:      source,
		OpenStatesURL:  n.OpenStatesURL,
	}
}

// documentCandidates lists the links of the latest text version, then the
// bill's sources
func (n billNode) documentCandidates() []candidate {
	var out []candidate

	latest := -1
	for i, v := range n.Versions {
		if latest < 0 || v.Date >= n.Versions[latest].Date {
			latest = i
		}
	}
	if latest >= 0 {
		for _, l := range n.Versions[latest].Links {
			out = append(out, candidate{url: l.URL, mediaType: l.MediaType})
		}
	}

	for _, s := range n.Sources {
		out = append(out, candidate{url: s.URL})
	}
	return out
}

// lastActionDate is the latest action date, falling back to updatedAt
func (n billNode) lastActionDate() time.Time {
	var latest time.Time
	for _, a := range n.Actions {
		if t, err := model.ParseDate(a.Date); err == nil && t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() {
		if t, err := model.ParseDate(n.UpdatedAt); err == nil {
			latest = t
		}
	}
	return latest
}

// JurisdictionCode returns the upper-case state code of an OCD jurisdiction
// id ("ocd-jurisdiction/country:us/state:ca/government" -> "CA"). Anything
// else is returned trimmed and unchanged; the empty string stays empty.
func JurisdictionCode(id string) string {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, "ocd-jurisdiction/") {
		return id
	}
	for _, part := range strings.Split(id, "/") {
		for _, prefix := range []string{"state:", "territory:", "district:"} {
			if code, ok := strings.CutPrefix(part, prefix); ok {
				return strings.ToUpper(code)
			}
		}
	}
	return id
}
