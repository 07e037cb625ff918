package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ArticlesRewriter/internal/config"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/scanner"
)

const listingHTML = `
<html><body>
<div class="td-module-container td-category-pos-image">
  <span class="entry-thumb" data-img-url="/wp-content/one.jpg"></span>
  <h3 class="entry-title"><a href="/movie-news/first-look/">First Look Released</a></h3>
  <span class="td-post-author-name"><a href="/author/a">Ravi</a></span>
  <time class="entry-date" datetime="2025-11-08T10:00:00+05:30">Nov 8</time>
</div>
<div class="td-module-container td-category-pos-image">
  <h3 class="entry-title"><a>No link here</a></h3>
</div>
<div class="td-module-container td-category-pos-image">
  <h3 class="entry-title"><a href="https://cdn.example.com/movie-news/trailer/">Trailer Out</a></h3>
  <time class="entry-date" datetime="2025-11-07T09:00:00+05:30">Nov 7</time>
</div>
<div class="td-module-container td-category-pos-image">
  <h3 class="entry-title"><a href="/movie-news/box-office/">Box Office</a></h3>
</div>
</body></html>`

func serveHTML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTDCategoryScannerScan(t *testing.T) {
	t.Parallel()

	server := serveHTML(t, listingHTML)
	sc := NewTDCategoryScanner(server.Client())

	items, err := sc.Scan(context.Background(), scanner.Request{
		SiteName: "tracktollywood",
		ListURL:  server.URL + "/category/movie-news/",
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	first := items[0]
	if first.Link != server.URL+"/movie-news/first-look/" {
		t.Fatalf("relative link not resolved: %s", first.Link)
	}
	if first.Title != "First Look Released" || first.Author != "Ravi" {
		t.Fatalf("unexpected card: %+v", first)
	}
	if first.PublishedAt != "2025-11-08T10:00:00+05:30" {
		t.Fatalf("unexpected date: %s", first.PublishedAt)
	}
	if first.ThumbnailURL != server.URL+"/wp-content/one.jpg" {
		t.Fatalf("unexpected thumbnail: %s", first.ThumbnailURL)
	}
	if first.Site != "tracktollywood" {
		t.Fatalf("unexpected site: %s", first.Site)
	}
	if items[1].Link != "https://cdn.example.com/movie-news/trailer/" {
		t.Fatalf("absolute link rewritten: %s", items[1].Link)
	}
}

func TestTDCategoryScannerLimit(t *testing.T) {
	t.Parallel()

	server := serveHTML(t, listingHTML)
	sc := NewTDCategoryScanner(server.Client())

	items, err := sc.Scan(context.Background(), scanner.Request{ListURL: server.URL, Limit: 2})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 2 || items[1].Title != "Trailer Out" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestTDCategoryScannerHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewTDCategoryScanner(server.Client()).Scan(context.Background(), scanner.Request{SiteName: "s", ListURL: server.URL})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}

	if _, err := NewTDCategoryScanner(nil).Scan(context.Background(), scanner.Request{SiteName: "s"}); err == nil {
		t.Fatal("expected error for missing listing url")
	}
}

func TestFeedScannerScan(t *testing.T) {
	t.Parallel()

	rss := `<?xml version="1.0"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Movie News</title>
  <item>
    <title>Teaser drops</title>
    <link>https://example.org/teaser</link>
    <dc:creator>Priya</dc:creator>
    <pubDate>Sat, 08 Nov 2025 10:00:00 GMT</pubDate>
    <enclosure url="https://example.org/teaser.jpg" type="image/jpeg" length="10"/>
  </item>
  <item><title>No link</title></item>
  <item>
    <title>Song launch</title>
    <link>https://example.org/song</link>
  </item>
  <item>
    <title>Third</title>
    <link>https://example.org/third</link>
  </item>
</channel>
</rss>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	defer server.Close()

	items, err := NewFeedScanner(server.Client()).Scan(context.Background(), scanner.Request{
		SiteName: "feed-site",
		ListURL:  server.URL,
		Limit:    2,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0]
	if first.Link != "https://example.org/teaser" || first.Author != "Priya" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.PublishedAt != "2025-11-08T10:00:00Z" {
		t.Fatalf("unexpected date: %s", first.PublishedAt)
	}
	if first.ThumbnailURL != "https://example.org/teaser.jpg" {
		t.Fatalf("unexpected thumbnail: %s", first.ThumbnailURL)
	}
	if items[1].Title != "Song launch" || items[1].Site != "feed-site" {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestContentFetcherParagraphsAndImage(t *testing.T) {
	t.Parallel()

	page := `<html><head>
<meta name="twitter:image" content="/img/twitter.jpg">
</head><body>
<div class="td-post-featured-image"><img src="/img/featured.jpg"></div>
<div class="td-post-content">
  <p>First paragraph.</p>
  <p>   </p>
  <p>Second paragraph.</p>
  <img src="/img/inline.jpg">
</div>
</body></html>`
	server := serveHTML(t, page)

	content, err := NewContentFetcher(server.Client(), nil).FetchContent(context.Background(), server.URL+"/story/")
	if err != nil {
		t.Fatalf("FetchContent error: %v", err)
	}
	if content.Text != "First paragraph.\n\nSecond paragraph." {
		t.Fatalf("unexpected text: %q", content.Text)
	}
	if content.ImageURL != server.URL+"/img/twitter.jpg" {
		t.Fatalf("unexpected image: %s", content.ImageURL)
	}
}

func TestContentFetcherImagePreference(t *testing.T) {
	t.Parallel()

	page := `<html><head><meta property="og:image" content="https://img.example.com/og.jpg"></head>
<body><div class="td-post-featured-image"><img src="/f.jpg"></div><div class="td-post-content"><p>x</p></div></body></html>`
	server := serveHTML(t, page)

	content, err := NewContentFetcher(server.Client(), nil).FetchContent(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchContent error: %v", err)
	}
	if content.ImageURL != "https://img.example.com/og.jpg" {
		t.Fatalf("og:image should win, got %s", content.ImageURL)
	}
}

func TestContentFetcherReadabilityFallback(t *testing.T) {
	t.Parallel()

	sentence := "The production house confirmed the release schedule for the festival weekend after months of speculation. "
	page := "<html><head><title>Story</title></head><body><article><h1>Story</h1><p>" +
		strings.Repeat(sentence, 8) + "</p><p>" + strings.Repeat(sentence, 8) +
		"</p></article></body></html>"
	server := serveHTML(t, page)

	content, err := NewContentFetcher(server.Client(), nil).FetchContent(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchContent error: %v", err)
	}
	if !strings.Contains(content.Text, "confirmed the release schedule") {
		t.Fatalf("readability fallback produced %q", content.Text)
	}
	if content.ImageURL != "" {
		t.Fatalf("expected no image, got %s", content.ImageURL)
	}
}

type stubScanner struct {
	name  string
	items []domain.SourceItem
	err   error
	reqs  []scanner.Request
}

func (s *stubScanner) Name() string { return s.name }

func (s *stubScanner) Scan(_ context.Context, req scanner.Request) ([]domain.SourceItem, error) {
	s.reqs = append(s.reqs, req)
	return s.items, s.err
}

func TestStrategySourceFetchListing(t *testing.T) {
	t.Parallel()

	td := &stubScanner{name: "tdcategory", items: []domain.SourceItem{
		{Link: "https://a/1"}, {Link: "https://a/2"},
	}}
	feed := &stubScanner{name: "feed", items: []domain.SourceItem{
		{Link: "https://a/2"}, {Link: "https://b/1"}, {Link: "https://b/2"},
	}}
	sites := []config.SiteConfig{
		{Name: "first", Scanner: "tdcategory", ListURL: "https://a/", FetchTimeout: time.Second},
		{Name: "second", Scanner: "feed", ListURL: "https://b/feed"},
		{Name: "third", Scanner: "tdcategory", ListURL: "https://c/"},
	}
	src := NewStrategySource(scanner.NewRegistry(td, feed), sites, nil)

	items, err := src.FetchListing(context.Background(), 3)
	if err != nil {
		t.Fatalf("FetchListing error: %v", err)
	}

	want := []string{"https://a/1", "https://a/2", "https://b/1"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %+v", len(want), items)
	}
	for i, link := range want {
		if items[i].Link != link {
			t.Fatalf("item %d: want %s got %s", i, link, items[i].Link)
		}
	}
	if items[2].Site != "second" {
		t.Fatalf("site not stamped: %+v", items[2])
	}
	if len(td.reqs) != 1 || td.reqs[0].Limit != 3 || td.reqs[0].FetchTimeout != time.Second {
		t.Fatalf("unexpected td requests: %+v", td.reqs)
	}
	if len(feed.reqs) != 1 || feed.reqs[0].Limit != 1 {
		t.Fatalf("unexpected feed requests: %+v", feed.reqs)
	}
}

func TestStrategySourceErrors(t *testing.T) {
	t.Parallel()

	sites := []config.SiteConfig{{Name: "x", Scanner: "missing"}}
	if _, err := NewStrategySource(scanner.NewRegistry(), sites, nil).FetchListing(context.Background(), 0); err == nil {
		t.Fatal("expected unresolved scanner error")
	}

	boom := errors.New("boom")
	failing := &stubScanner{name: "feed", err: boom}
	sites = []config.SiteConfig{{Name: "x", Scanner: "feed"}}
	_, err := NewStrategySource(scanner.NewRegistry(failing), sites, nil).FetchListing(context.Background(), 0)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped scan error, got %v", err)
	}
}
