package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/scanner"
)

// TDCategoryName is the registry key of the tagDiv category page strategy.
const TDCategoryName = "tdcategory"

const (
	cardSelector   = ".td-module-container.td-category-pos-image"
	titleSelector  = "h3.entry-title a"
	authorSelector = ".td-post-author-name a"
	dateSelector   = "time.entry-date"
	thumbSelector  = "span.entry-thumb"
)

// TDCategoryScanner reads a tagDiv (Newspaper theme) category listing page.
type TDCategoryScanner struct {
	client *http.Client
}

// NewTDCategoryScanner wires an HTTP client; nil gets a 30s default.
func NewTDCategoryScanner(client *http.Client) *TDCategoryScanner {
	return &TDCategoryScanner{client: newHTTPClient(client)}
}

// Name identifies the strategy inside the registry.
func (s *TDCategoryScanner) Name() string {
	return TDCategoryName
}

// Scan fetches the listing page and returns its cards in document order.
func (s *TDCategoryScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.SourceItem, error) {
	if req.ListURL == "" {
		return nil, fmt.Errorf("no listing url provided for site %s", req.SiteName)
	}
	if req.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.FetchTimeout)
		defer cancel()
	}

	doc, err := fetchDocument(ctx, s.client, req.ListURL)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", req.SiteName, err)
	}

	return extractCards(doc, req.SiteName, req.Limit), nil
}

func extractCards(doc *goquery.Document, siteName string, limit int) []domain.SourceItem {
	items := make([]domain.SourceItem, 0)
	doc.Find(cardSelector).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		item := parseCard(doc, card)
		if item.Link == "" {
			return true
		}
		item.Site = siteName
		items = append(items, item)
		return limit <= 0 || len(items) < limit
	})
	return items
}

func parseCard(doc *goquery.Document, card *goquery.Selection) domain.SourceItem {
	anchor := card.Find(titleSelector).First()
	return domain.SourceItem{
		Title:        strings.TrimSpace(anchor.Text()),
		Link:         resolveURL(doc.Url, attr(anchor, "href")),
		Author:       strings.TrimSpace(card.Find(authorSelector).First().Text()),
		PublishedAt:  attr(card.Find(dateSelector).First(), "datetime"),
		ThumbnailURL: resolveURL(doc.Url, attr(card.Find(thumbSelector).First(), "data-img-url")),
	}
}
