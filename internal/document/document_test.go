package document

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/ppiankov/legiswatch/internal/worker"
)

const billPage = `<!doctype html>
<html>
<head><title>AB 12</title><script>var tracking = 1;</script></head>
<body>
  <nav>Home | Bills | Members</nav>
  <header>California Legislative Information</header>
  <main>
    <h1>AB 12 Digital financial assets</h1>
    <p>Existing law prohibits a person from engaging   in digital financial asset business activity.</p>
    <p>This bill would require licensees to comply by <b>July 1, 2025</b>.</p>
    <style>.x{color:red}</style>
  </main>
  <footer>Copyright</footer>
</body>
</html>`

func testConfig(respectRobots bool) model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:       5 * time.Second,
		UserAgent:     "Legiswatch/1.0 (+https://github.com/ppiankov/legiswatch)",
		RespectRobots: respectRobots,
	}
}

func newSite(t *testing.T, robots string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		if robots == "" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(robots))
	})
	mux.HandleFunc("/bill.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(billPage))
	})
	mux.HandleFunc("/bill.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("  SECTION 1.  \n\n  Licensees shall register.  \n"))
	})
	mux.HandleFunc("/bill.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	})
	mux.HandleFunc("/empty.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><script>x()</script></body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractText(t *testing.T) {
	text, err := ExtractText(strings.NewReader(billPage))
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}

	want := "AB 12 Digital financial assets\n" +
		"Existing law prohibits a person from engaging in digital financial asset business activity.\n" +
		"This bill would require licensees to comply by July 1, 2025 ."
	if text != want {
		t.Errorf("unexpected text:\n%q\nwant:\n%q", text, want)
	}

	for _, hidden := range []string{"tracking", "Home | Bills", "Copyright", "color:red", "Legislative Information"} {
		if strings.Contains(text, hidden) {
			t.Errorf("text contains hidden content %q", hidden)
		}
	}
}

func TestExtractText_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"role main", `<div><div role="main"><p>Body</p></div><p>Sidebar</p></div>`, "Body"},
		{"article", `<body><article><p>Story</p></article><aside>Ad</aside></body>`, "Story"},
		{"whole document", `<body><p>One</p><p>Two</p></body>`, "One\nTwo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractText(strings.NewReader(tt.html))
			if err != nil {
				t.Fatalf("ExtractText failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetcher_Fetch(t *testing.T) {
	srv := newSite(t, "")
	f := NewFetcher(testConfig(true), srv.Client(), nil, nil)

	doc, err := f.Fetch(context.Background(), srv.URL+"/bill.html")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.HasPrefix(doc.Text, "AB 12 Digital financial assets") {
		t.Errorf("unexpected text: %q", doc.Text)
	}
	if doc.FinalURL != srv.URL+"/bill.html" {
		t.Errorf("unexpected final URL: %s", doc.FinalURL)
	}

	doc, err = f.Fetch(context.Background(), srv.URL+"/bill.txt")
	if err != nil {
		t.Fatalf("Fetch text failed: %v", err)
	}
	if doc.Text != "SECTION 1.\nLicensees shall register." {
		t.Errorf("unexpected plain text: %q", doc.Text)
	}
}

func TestFetcher_Fetch_Errors(t *testing.T) {
	srv := newSite(t, "User-agent: *\nDisallow: /private/\n")
	f := NewFetcher(testConfig(true), srv.Client(), nil, nil)

	if _, err := f.Fetch(context.Background(), srv.URL+"/bill.pdf"); !errors.Is(err, ErrUnsupportedContent) {
		t.Errorf("expected ErrUnsupportedContent, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 error, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/private/bill.html"); !errors.Is(err, ErrDisallowed) {
		t.Errorf("expected ErrDisallowed, got %v", err)
	}
}

func TestFetcher_IgnoresRobotsWhenDisabled(t *testing.T) {
	var robotsHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		robotsHits.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
	})
	mux.HandleFunc("/bill.html", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>ok</p>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(testConfig(false), srv.Client(), nil, nil)
	if _, err := f.Fetch(context.Background(), srv.URL+"/bill.html"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if robotsHits.Load() != 0 {
		t.Errorf("robots.txt fetched %d times with robots checking disabled", robotsHits.Load())
	}
}

func TestRobotsChecker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("User-agent: Legiswatch\nDisallow: /drafts/\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n"))
	}))
	defer srv.Close()

	rc := NewRobotsChecker(srv.Client(), "Legiswatch/1.0 (+https://github.com/ppiankov/legiswatch)")

	allowed, delay := rc.CanFetch(context.Background(), srv.URL+"/bills/ab12")
	if !allowed {
		t.Error("expected /bills/ab12 to be allowed for our agent")
	}
	if delay != 2*time.Second {
		t.Errorf("expected 2s crawl delay, got %v", delay)
	}

	if allowed, _ := rc.CanFetch(context.Background(), srv.URL+"/drafts/ab12"); allowed {
		t.Error("expected /drafts/ to be disallowed")
	}
	if hits.Load() != 1 {
		t.Errorf("expected robots.txt to be cached, fetched %d times", hits.Load())
	}

	if allowed, _ := rc.CanFetch(context.Background(), "::not a url"); allowed {
		t.Error("expected invalid URL to be disallowed")
	}
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rc := NewRobotsChecker(&http.Client{Timeout: time.Second}, "Legiswatch/1.0")
	if allowed, _ := rc.CanFetch(context.Background(), url+"/bill"); !allowed {
		t.Error("expected unreachable robots.txt to allow the fetch")
	}
}

func TestFetcher_AppliesCrawlDelay(t *testing.T) {
	srv := newSite(t, "User-agent: *\nCrawl-delay: 1\n")
	limiter := worker.NewLimiter(0, 0)
	f := NewFetcher(testConfig(true), srv.Client(), limiter, nil)

	if _, err := f.Fetch(context.Background(), srv.URL+"/bill.html"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if limiter.Allow(srv.URL + "/bill.txt") {
		t.Error("expected the crawl delay to pace the second request to the host")
	}
}

func TestFetcher_Enrich(t *testing.T) {
	srv := newSite(t, "")
	f := NewFetcher(testConfig(true), srv.Client(), nil, nil)

	bill := model.BillRecord{
		Jurisdiction: "CA",
		Identifier:   "AB 12",
		Title:        "Digital financial assets",
		Text:         "Abstract only.",
	}

	t.Run("replaces abstract", func(t *testing.T) {
		b := bill
		b.SourceURL = srv.URL + "/bill.html"
		got, err := f.Enrich(context.Background(), b)
		if err != nil {
			t.Fatalf("Enrich failed: %v", err)
		}
		if !strings.Contains(got.Text, "July 1, 2025") {
			t.Errorf("expected document text, got %q", got.Text)
		}
		if b.Text != "Abstract only." {
			t.Error("Enrich mutated its input")
		}
	})

	for _, path := range []string{"", "/bill.pdf", "/missing", "/empty.html"} {
		t.Run("falls back "+path, func(t *testing.T) {
			b := bill
			if path != "" {
				b.SourceURL = srv.URL + path
			}
			got, err := f.Enrich(context.Background(), b)
			if err != nil {
				t.Fatalf("Enrich failed: %v", err)
			}
			if got.Text != "Abstract only." {
				t.Errorf("expected abstract fallback, got %q", got.Text)
			}
		})
	}

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		b := bill
		b.SourceURL = srv.URL + "/bill.html"
		if _, err := f.Enrich(ctx, b); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
