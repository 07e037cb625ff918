package ports

import (
	"context"
	"time"

	"ArticlesRewriter/internal/domain"
)

// ListingSource pulls candidate items from configured listing pages, in document order.
type ListingSource interface {
	FetchListing(ctx context.Context, limit int) ([]domain.SourceItem, error)
}

// PageContent is the readable body of an article page and its best image.
type PageContent struct {
	Text     string
	ImageURL string
}

// ContentFetcher loads the full body of one article link.
type ContentFetcher interface {
	FetchContent(ctx context.Context, link string) (PageContent, error)
}

// RewriteRequest is one generation call. ExtraInstructions carries the
// expand/condense amendments added between attempts.
type RewriteRequest struct {
	Topic             string
	SourceText        string
	Keywords          []string
	MetaDescription   string
	MinWords          int
	MaxWords          int
	HardCap           int
	ExtraInstructions string
}

// RewriteResult is a raw generation before word-range enforcement.
type RewriteResult struct {
	Markdown         string
	PromptUsed       string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Truncated        bool
}

// Rewriter produces Markdown drafts from source text.
type Rewriter interface {
	Rewrite(ctx context.Context, req RewriteRequest) (RewriteResult, error)
}

// RewriterFactory builds a Rewriter for the credential stored in AppConfig.
type RewriterFactory interface {
	NewRewriter(ctx context.Context, cfg domain.AppConfig) (Rewriter, error)
}

// HumanizeResult is what the humanizer reports for one transform.
type HumanizeResult struct {
	InputText              string
	HumanizedText          string
	InputWordCount         int
	InputSentenceCount     int
	OutputWordCount        int
	OutputSentenceCount    int
	ReadabilityImprovement float64
	Settings               *domain.HumanizeSettings
}

// Humanizer rewrites generated text to read less mechanically.
type Humanizer interface {
	Humanize(ctx context.Context, text string) (HumanizeResult, error)
}

// Detector scores AI-likelihood on a 0-100 scale. Failures yield 0.
type Detector interface {
	Score(ctx context.Context, text string) float64
}

// UploadResult locates an image on the CDN.
type UploadResult struct {
	URL      string
	PublicID string
}

// ImageUploader copies a remote image to the CDN. Empty input yields an empty result.
type ImageUploader interface {
	Upload(ctx context.Context, source string) (UploadResult, error)
}

// ArticleRepository stores originals keyed by link.
type ArticleRepository interface {
	ArticleExists(ctx context.Context, link string) (bool, error)
	// CreateArticle inserts when link is absent. It reports false and leaves the
	// stored document untouched when link already exists.
	CreateArticle(ctx context.Context, article *domain.Article) (bool, error)
	GetArticle(ctx context.Context, id string) (domain.Article, error)
	ListArticles(ctx context.Context, page domain.Page) ([]domain.Article, error)
}

// RewriteRepository keeps one live rewrite per article.
type RewriteRepository interface {
	// UpsertRewrite replaces the record for rec.ArticleID in place, keeping its id and createdAt.
	UpsertRewrite(ctx context.Context, rec domain.RewriteRecord) (domain.RewriteRecord, error)
	GetRewrite(ctx context.Context, id string) (domain.RewriteRecord, error)
	ListRewrites(ctx context.Context, filter domain.RewriteFilter) ([]domain.RewriteRecord, error)
}

// HumanizeRepository keeps one humanized copy per (articleId, rewriteId).
type HumanizeRepository interface {
	UpsertHumanize(ctx context.Context, rec domain.HumanizeRecord) (domain.HumanizeRecord, error)
	GetHumanize(ctx context.Context, id string) (domain.HumanizeRecord, error)
	ListHumanized(ctx context.Context, page domain.Page) ([]domain.HumanizeRecord, error)
}

// ConfigRepository persists the AppConfig singleton.
type ConfigRepository interface {
	// GetAppConfig returns the zero value when nothing was saved yet.
	GetAppConfig(ctx context.Context) (domain.AppConfig, error)
	// SaveAppConfig stores cfg with the next version number.
	SaveAppConfig(ctx context.Context, cfg domain.AppConfig) (domain.AppConfig, error)
}

// Repository is the full storage surface of one backend.
type Repository interface {
	ArticleRepository
	RewriteRepository
	HumanizeRepository
	ConfigRepository
	Close(ctx context.Context) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Notifier delivers short operator alerts.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Metrics records pipeline activity.
type Metrics interface {
	ItemOutcome(outcome string)
	RewriteAttempts(attempts int)
	ExternalCall(service, result string)
	RunFinished(reason, result string, elapsed time.Duration)
	SetRunning(running bool)
	SetCircuitOpen(open bool)
}
