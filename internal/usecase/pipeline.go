package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/markdown"
	"ArticlesRewriter/internal/ports"
	"ArticlesRewriter/internal/retry"
)

// Store is the storage surface the pipeline writes to.
type Store interface {
	ports.ArticleRepository
	ports.RewriteRepository
	ports.HumanizeRepository
}

// PipelineSettings tunes pacing and rewrite thresholds.
type PipelineSettings struct {
	ItemDelay        time.Duration
	RewriteThreshold int
	WordRange        WordRange
	Keywords         []string
	MetaDescription  string
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source    ports.ListingSource
	Content   ports.ContentFetcher
	Uploader  ports.ImageUploader
	Humanizer ports.Humanizer
	Detector  ports.Detector
	Store     Store
	Breaker   *Breaker
	Metrics   ports.Metrics
	Logger    *slog.Logger
	Settings  PipelineSettings
	Sleep     retry.SleepFunc
	Clock     func() time.Time
}

// RunOptions parameterises one pass over the listing.
type RunOptions struct {
	MaxItems int
	// Rewriter is nil for scrape-only runs.
	Rewriter        ports.Rewriter
	Keywords        []string
	MetaDescription string
	// Drain, once closed, stops the run before the next item starts.
	Drain <-chan struct{}
}

// RunResult counts what happened to the items of one run.
type RunResult struct {
	Inserted      int  `json:"inserted"`
	Skipped       int  `json:"skipped"`
	Rewritten     int  `json:"rewritten"`
	Humanized     int  `json:"humanized"`
	Failed        int  `json:"failed"`
	CircuitOpened bool `json:"circuitOpened"`
	Interrupted   bool `json:"interrupted"`
}

// Pipeline implements the scrape, rewrite and humanize workflow.
type Pipeline struct {
	source    ports.ListingSource
	content   ports.ContentFetcher
	uploader  ports.ImageUploader
	humanizer ports.Humanizer
	detector  ports.Detector
	store     Store
	breaker   *Breaker
	metrics   ports.Metrics
	logger    *slog.Logger
	settings  PipelineSettings
	enforcer  *WordRangeEnforcer
	sleep     retry.SleepFunc
	now       func() time.Time
	handlers  map[ItemState]stageHandler
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:    deps.Source,
		content:   deps.Content,
		uploader:  deps.Uploader,
		humanizer: deps.Humanizer,
		detector:  deps.Detector,
		store:     deps.Store,
		breaker:   deps.Breaker,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		settings:  deps.Settings,
		sleep:     deps.Sleep,
		now:       deps.Clock,
	}
	if p.breaker == nil {
		p.breaker = NewBreaker(nil)
	}
	if p.metrics == nil {
		p.metrics = nopMetrics{}
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.sleep == nil {
		p.sleep = retry.Sleep
	}
	if p.now == nil {
		p.now = time.Now
	}
	p.enforcer = NewWordRangeEnforcer(p.settings.WordRange, p.sleep, p.logger)
	p.handlers = map[ItemState]stageHandler{
		StateFetched:       p.loadContent,
		StateContentLoaded: p.persistArticle,
		StatePersisted:     p.route,
		StateRewriting:     p.rewrite,
		StateRewritten:     p.humanize,
	}
	return p
}

// Run processes listing items in order. A listing failure or a missing store
// is a run-level error; everything else is contained per item.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	var result RunResult
	if p.source == nil || p.store == nil {
		return result, errors.New("pipeline: listing source and store are required")
	}

	items, err := p.source.FetchListing(ctx, opts.MaxItems)
	if err != nil {
		return result, fmt.Errorf("fetch listing: %w", err)
	}
	if opts.MaxItems > 0 && len(items) > opts.MaxItems {
		items = items[:opts.MaxItems]
	}

	drainCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Drain != nil {
		go func() {
			select {
			case <-opts.Drain:
				cancel()
			case <-drainCtx.Done():
			}
		}()
	}

	p.logger.Info("run started", "items", len(items), "rewrite", opts.Rewriter != nil)

	for i, item := range items {
		if opts.Rewriter != nil && p.breaker.IsOpen() {
			result.CircuitOpened = true
			p.logger.Warn("circuit open, stopping run", "remaining", len(items)-i)
			break
		}
		if drainCtx.Err() != nil {
			result.Interrupted = true
			p.logger.Warn("run interrupted", "remaining", len(items)-i)
			break
		}

		it := &itemRun{item: item, opts: &opts}
		final := p.process(ctx, it)
		p.tally(&result, it, final)

		if it.circuit {
			result.CircuitOpened = true
			break
		}
		if i < len(items)-1 {
			if err := p.sleep(drainCtx, p.settings.ItemDelay); err != nil {
				result.Interrupted = true
				break
			}
		}
	}

	p.logger.Info("run finished",
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"rewritten", result.Rewritten,
		"humanized", result.Humanized,
		"failed", result.Failed,
	)
	return result, nil
}

// process drives one item through the state machine until it rests.
func (p *Pipeline) process(ctx context.Context, it *itemRun) ItemState {
	state := StateFetched
	for !state.Terminal() {
		handler, ok := p.handlers[state]
		if !ok {
			return state
		}
		next, err := handler(ctx, it)
		if err != nil {
			it.err = err
			p.logger.Error("item failed",
				"stage", state,
				"rests_at", next,
				"title", it.item.Title,
				"link", it.item.Link,
				"error", err,
			)
			return next
		}
		it.visit(next)
		state = next
	}
	return state
}

func (p *Pipeline) tally(result *RunResult, it *itemRun, final ItemState) {
	if final == StateSkipped {
		result.Skipped++
		p.metrics.ItemOutcome("skipped")
		return
	}
	if it.reached(StatePersisted) {
		result.Inserted++
		p.metrics.ItemOutcome("inserted")
	}
	if it.reached(StateRewritten) {
		result.Rewritten++
		p.metrics.ItemOutcome("rewritten")
	}
	if it.humanized {
		result.Humanized++
		p.metrics.ItemOutcome("humanized")
	}
	if it.err != nil {
		result.Failed++
		p.metrics.ItemOutcome("failed")
	}
}

// loadContent: Fetched -> Skipped when the link is known, else ContentLoaded.
// A failed content fetch degrades to an empty body.
func (p *Pipeline) loadContent(ctx context.Context, it *itemRun) (ItemState, error) {
	if strings.TrimSpace(it.item.Link) == "" {
		return StateSkipped, nil
	}
	exists, err := p.store.ArticleExists(ctx, it.item.Link)
	if err != nil {
		return StateFetched, fmt.Errorf("check existing: %w", err)
	}
	if exists {
		p.logger.Debug("already stored", "link", it.item.Link)
		return StateSkipped, nil
	}

	if p.content != nil {
		page, err := p.content.FetchContent(ctx, it.item.Link)
		if err != nil {
			p.metrics.ExternalCall("content", "error")
			p.logger.Warn("content fetch failed", "link", it.item.Link, "error", err)
		} else {
			p.metrics.ExternalCall("content", "ok")
			it.content = page
		}
	}
	return StateContentLoaded, nil
}

// persistArticle: ContentLoaded -> Persisted, uploading the best image first.
func (p *Pipeline) persistArticle(ctx context.Context, it *itemRun) (ItemState, error) {
	image := it.content.ImageURL
	if image == "" {
		image = it.item.ThumbnailURL
	}

	var upload ports.UploadResult
	if p.uploader != nil && image != "" {
		res, err := p.uploader.Upload(ctx, image)
		if err != nil {
			p.metrics.ExternalCall("cdn", "error")
			p.logger.Warn("image upload failed", "link", it.item.Link, "image", image, "error", err)
		} else {
			p.metrics.ExternalCall("cdn", "ok")
			upload = res
		}
	}

	now := p.now().UTC()
	it.article = domain.Article{
		Title:            it.item.Title,
		Link:             it.item.Link,
		Author:           it.item.Author,
		PublishedAt:      it.item.PublishedAt,
		ThumbnailURL:     it.item.ThumbnailURL,
		SourceImageURL:   image,
		CDNImageURL:      upload.URL,
		CDNImagePublicID: upload.PublicID,
		RawContent:       it.content.Text,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := p.store.CreateArticle(ctx, &it.article)
	if err != nil {
		return StateContentLoaded, fmt.Errorf("create article: %w", err)
	}
	if !created {
		return StateSkipped, nil
	}
	return StatePersisted, nil
}

// route: Persisted -> Rewriting for short articles, else Done.
func (p *Pipeline) route(_ context.Context, it *itemRun) (ItemState, error) {
	if it.opts.Rewriter == nil {
		return StateDone, nil
	}
	words := markdown.CountWords(it.article.RawContent)
	if words == 0 {
		p.logger.Info("no content to rewrite", "link", it.article.Link)
		return StateDone, nil
	}
	if words >= p.settings.RewriteThreshold {
		p.logger.Debug("long enough, keeping original", "link", it.article.Link, "words", words)
		return StateDone, nil
	}
	return StateRewriting, nil
}

// rewrite: Rewriting -> Rewritten. Failures leave the item at Persisted and
// credential or quota failures open the breaker.
func (p *Pipeline) rewrite(ctx context.Context, it *itemRun) (ItemState, error) {
	keywords := it.opts.Keywords
	if len(keywords) == 0 {
		keywords = p.settings.Keywords
	}
	meta := it.opts.MetaDescription
	if meta == "" {
		meta = p.settings.MetaDescription
	}

	draft, err := p.enforcer.Enforce(ctx, it.opts.Rewriter, ports.RewriteRequest{
		Topic:           it.article.Title,
		SourceText:      it.article.RawContent,
		Keywords:        keywords,
		MetaDescription: meta,
	})
	p.metrics.RewriteAttempts(draft.Attempts)
	if err != nil {
		p.metrics.ExternalCall("generative", "error")
		if apperr.IsAuthOrQuota(err) {
			p.breaker.Trip(err.Error(), p.now())
			it.circuit = true
		}
		return StatePersisted, fmt.Errorf("rewrite: %w", err)
	}
	p.metrics.ExternalCall("generative", "ok")

	header := markdown.ParseHeader(draft.Markdown)
	if len(header.Keywords) > 0 {
		keywords = header.Keywords
	}
	if header.MetaDescription != "" {
		meta = header.MetaDescription
	}
	title := markdown.ExtractTitle(draft.Markdown)
	if title == "" {
		title = it.article.Title
	}

	rec := domain.RewriteRecord{
		ArticleID:        it.article.ID,
		SourceTitle:      it.article.Title,
		SourceLink:       it.article.Link,
		SourceAuthor:     it.article.Author,
		SourceDate:       it.article.PublishedAt,
		Title:            title,
		BodyMarkdown:     draft.Markdown,
		GeneratorModel:   draft.Model,
		PromptUsed:       draft.PromptUsed,
		TargetKeywords:   keywords,
		MetaDescription:  meta,
		WordCount:        draft.WordCount,
		Attempts:         draft.Attempts,
		PromptTokens:     draft.PromptTokens,
		CompletionTokens: draft.CompletionTokens,
		TotalTokens:      draft.TotalTokens,
		Status:           draft.Status,
		CDNImageURL:      it.article.CDNImageURL,
		CDNImagePublicID: it.article.CDNImagePublicID,
		UpdatedAt:        p.now().UTC(),
	}
	rec.AIScore = p.score(ctx, markdown.SplitFrontMatter(draft.Markdown).Body)

	saved, err := p.store.UpsertRewrite(ctx, rec)
	if err != nil {
		return StatePersisted, fmt.Errorf("save rewrite: %w", err)
	}
	it.rewrite = saved
	p.logger.Info("rewrite stored", "link", it.article.Link, "words", saved.WordCount, "status", saved.Status, "attempts", draft.Attempts)
	return StateRewritten, nil
}

// humanize: Rewritten -> Done. Failures keep the rewrite and rest at Rewritten.
func (p *Pipeline) humanize(ctx context.Context, it *itemRun) (ItemState, error) {
	if p.humanizer == nil {
		return StateDone, nil
	}

	body := markdown.SplitFrontMatter(it.rewrite.BodyMarkdown).Body
	res, err := p.humanizer.Humanize(ctx, body)
	if err != nil {
		p.metrics.ExternalCall("humanizer", "error")
		return StateRewritten, fmt.Errorf("humanize: %w", err)
	}
	p.metrics.ExternalCall("humanizer", "ok")

	input := res.InputText
	if input == "" {
		input = body
	}
	rec := domain.HumanizeRecord{
		ArticleID:              it.article.ID,
		RewriteID:              it.rewrite.ID,
		SourceTitle:            it.rewrite.Title,
		SourceLink:             it.article.Link,
		InputText:              input,
		InputWordCount:         res.InputWordCount,
		InputSentenceCount:     res.InputSentenceCount,
		HumanizedText:          res.HumanizedText,
		OutputWordCount:        res.OutputWordCount,
		OutputSentenceCount:    res.OutputSentenceCount,
		ReadabilityImprovement: res.ReadabilityImprovement,
		SettingsUsed:           res.Settings,
		CDNImageURL:            it.article.CDNImageURL,
		CDNImagePublicID:       it.article.CDNImagePublicID,
		UpdatedAt:              p.now().UTC(),
	}
	rec.AIScore = p.score(ctx, res.HumanizedText)

	if _, err := p.store.UpsertHumanize(ctx, rec); err != nil {
		return StateRewritten, fmt.Errorf("save humanized: %w", err)
	}
	it.humanized = true
	return StateDone, nil
}

func (p *Pipeline) score(ctx context.Context, text string) float64 {
	if p.detector == nil {
		return 0
	}
	return p.detector.Score(ctx, text)
}

type nopMetrics struct{}

func (nopMetrics) ItemOutcome(string) {}
func (nopMetrics) RewriteAttempts(int) {}
func (nopMetrics) ExternalCall(string, string) {}
func (nopMetrics) RunFinished(string, string, time.Duration) {}
func (nopMetrics) SetRunning(bool) {}
func (nopMetrics) SetCircuitOpen(bool) {}
