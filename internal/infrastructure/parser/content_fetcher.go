package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"ArticlesRewriter/internal/ports"
)

const paragraphSelector = ".td-post-content p"

// imageSelectors are tried in order; the first non-empty attribute wins.
var imageSelectors = []struct {
	selector string
	attr     string
}{
	{`meta[property="og:image"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{".td-post-featured-image img", "src"},
	{".td-post-content img", "src"},
}

// ContentFetcher loads article pages and extracts their body text and best image.
type ContentFetcher struct {
	client *http.Client
	logger *slog.Logger
}

var _ ports.ContentFetcher = (*ContentFetcher)(nil)

// NewContentFetcher wires an HTTP client; nil gets a 30s default.
func NewContentFetcher(client *http.Client, logger *slog.Logger) *ContentFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentFetcher{client: newHTTPClient(client), logger: logger}
}

// FetchContent returns the article paragraphs joined by blank lines. When the
// theme selectors find nothing it falls back to readability extraction.
func (f *ContentFetcher) FetchContent(ctx context.Context, link string) (ports.PageContent, error) {
	doc, err := fetchDocument(ctx, f.client, link)
	if err != nil {
		return ports.PageContent{}, fmt.Errorf("fetch content: %w", err)
	}

	text := paragraphText(doc)
	if text == "" {
		text = f.readabilityText(doc, link)
	}

	return ports.PageContent{Text: text, ImageURL: bestImage(doc)}, nil
}

func paragraphText(doc *goquery.Document) string {
	var chunks []string
	doc.Find(paragraphSelector).Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			chunks = append(chunks, t)
		}
	})
	return strings.Join(chunks, "\n\n")
}

func (f *ContentFetcher) readabilityText(doc *goquery.Document, link string) string {
	html, err := doc.Html()
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(html), doc.Url)
	if err != nil {
		f.logger.Debug("readability fallback failed", "link", link, "error", err)
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func bestImage(doc *goquery.Document) string {
	for _, candidate := range imageSelectors {
		if v := attr(doc.Find(candidate.selector).First(), candidate.attr); v != "" {
			return resolveURL(doc.Url, v)
		}
	}
	return ""
}
