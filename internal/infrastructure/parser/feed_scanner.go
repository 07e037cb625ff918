package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/scanner"
)

// FeedName is the registry key of the RSS/Atom strategy.
const FeedName = "feed"

// FeedScanner reads an RSS or Atom feed as a listing.
type FeedScanner struct {
	client *http.Client
}

// NewFeedScanner wires an HTTP client; nil gets a 30s default.
func NewFeedScanner(client *http.Client) *FeedScanner {
	return &FeedScanner{client: newHTTPClient(client)}
}

// Name identifies the strategy inside the registry.
func (s *FeedScanner) Name() string {
	return FeedName
}

// Scan returns feed entries in feed order. Entries without a usable link are skipped.
func (s *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.SourceItem, error) {
	if req.ListURL == "" {
		return nil, fmt.Errorf("no feed url provided for site %s", req.SiteName)
	}
	if req.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.FetchTimeout)
		defer cancel()
	}

	fp := gofeed.NewParser()
	fp.Client = s.client
	fp.UserAgent = userAgent

	feed, err := fp.ParseURLWithContext(req.ListURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("site %s: parse feed: %w", req.SiteName, err)
	}

	items := make([]domain.SourceItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		link := feedLink(entry)
		if link == "" {
			continue
		}
		items = append(items, domain.SourceItem{
			Title:        strings.TrimSpace(entry.Title),
			Link:         link,
			Author:       feedAuthor(entry),
			PublishedAt:  feedPublished(entry),
			ThumbnailURL: feedImage(entry),
			Site:         req.SiteName,
		})
		if req.Limit > 0 && len(items) >= req.Limit {
			break
		}
	}
	return items, nil
}

func feedLink(entry *gofeed.Item) string {
	if link := strings.TrimSpace(entry.Link); link != "" {
		return link
	}
	if strings.HasPrefix(entry.GUID, "http") {
		return entry.GUID
	}
	return ""
}

func feedAuthor(entry *gofeed.Item) string {
	if entry.Author != nil {
		return strings.TrimSpace(entry.Author.Name)
	}
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		return strings.TrimSpace(entry.Authors[0].Name)
	}
	return ""
}

func feedPublished(entry *gofeed.Item) string {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC().Format(time.RFC3339)
	}
	return strings.TrimSpace(entry.Published)
}

func feedImage(entry *gofeed.Item) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}
