package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/ports"
)

// MemoryRepository keeps everything in process memory. Listings are newest first.
type MemoryRepository struct {
	mu sync.RWMutex

	articles      map[string]domain.Article
	articleByLink map[string]string
	articleOrder  []string

	rewrites         map[string]domain.RewriteRecord
	rewriteByArticle map[string]string
	rewriteOrder     []string

	humanized     map[string]domain.HumanizeRecord
	humanizeByKey map[string]string
	humanizeOrder []string

	config domain.AppConfig

	now func() time.Time
}

var _ ports.Repository = (*MemoryRepository)(nil)

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		articles:         map[string]domain.Article{},
		articleByLink:    map[string]string{},
		rewrites:         map[string]domain.RewriteRecord{},
		rewriteByArticle: map[string]string{},
		humanized:        map[string]domain.HumanizeRecord{},
		humanizeByKey:    map[string]string{},
		now:              time.Now,
	}
}

func (r *MemoryRepository) ArticleExists(_ context.Context, link string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.articleByLink[link]
	return ok, nil
}

func (r *MemoryRepository) CreateArticle(_ context.Context, article *domain.Article) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.articleByLink[article.Link]; ok {
		return false, nil
	}
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	if article.UpdatedAt.IsZero() {
		article.UpdatedAt = now
	}

	r.articles[article.ID] = *article
	r.articleByLink[article.Link] = article.ID
	r.articleOrder = append(r.articleOrder, article.ID)
	return true, nil
}

func (r *MemoryRepository) GetArticle(_ context.Context, id string) (domain.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.articles[id]
	if !ok {
		return domain.Article{}, apperr.ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepository) ListArticles(_ context.Context, page domain.Page) ([]domain.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Article, 0)
	for _, id := range newestFirst(r.articleOrder, page) {
		out = append(out, r.articles[id])
	}
	return out, nil
}

func (r *MemoryRepository) UpsertRewrite(_ context.Context, rec domain.RewriteRecord) (domain.RewriteRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	rec.UpdatedAt = now
	if id, ok := r.rewriteByArticle[rec.ArticleID]; ok {
		prev := r.rewrites[id]
		rec.ID, rec.CreatedAt = prev.ID, prev.CreatedAt
		r.rewrites[id] = rec
		return rec, nil
	}

	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	r.rewrites[rec.ID] = rec
	r.rewriteByArticle[rec.ArticleID] = rec.ID
	r.rewriteOrder = append(r.rewriteOrder, rec.ID)
	return rec, nil
}

func (r *MemoryRepository) GetRewrite(_ context.Context, id string) (domain.RewriteRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.rewrites[id]
	if !ok {
		return domain.RewriteRecord{}, apperr.ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepository) ListRewrites(_ context.Context, filter domain.RewriteFilter) ([]domain.RewriteRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.rewriteOrder
	if filter.Status != "" {
		ids = nil
		for _, id := range r.rewriteOrder {
			if r.rewrites[id].Status == filter.Status {
				ids = append(ids, id)
			}
		}
	}

	out := make([]domain.RewriteRecord, 0)
	for _, id := range newestFirst(ids, filter.Page) {
		out = append(out, r.rewrites[id])
	}
	return out, nil
}

func (r *MemoryRepository) UpsertHumanize(_ context.Context, rec domain.HumanizeRecord) (domain.HumanizeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	rec.UpdatedAt = now
	key := rec.ArticleID + "|" + rec.RewriteID
	if id, ok := r.humanizeByKey[key]; ok {
		prev := r.humanized[id]
		rec.ID, rec.CreatedAt = prev.ID, prev.CreatedAt
		r.humanized[id] = rec
		return rec, nil
	}

	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	r.humanized[rec.ID] = rec
	r.humanizeByKey[key] = rec.ID
	r.humanizeOrder = append(r.humanizeOrder, rec.ID)
	return rec, nil
}

func (r *MemoryRepository) GetHumanize(_ context.Context, id string) (domain.HumanizeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.humanized[id]
	if !ok {
		return domain.HumanizeRecord{}, apperr.ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepository) ListHumanized(_ context.Context, page domain.Page) ([]domain.HumanizeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.HumanizeRecord, 0)
	for _, id := range newestFirst(r.humanizeOrder, page) {
		out = append(out, r.humanized[id])
	}
	return out, nil
}

func (r *MemoryRepository) GetAppConfig(_ context.Context) (domain.AppConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config, nil
}

func (r *MemoryRepository) SaveAppConfig(_ context.Context, cfg domain.AppConfig) (domain.AppConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.Version = r.config.Version + 1
	cfg.UpdatedAt = r.now().UTC()
	r.config = cfg
	return cfg, nil
}

func (r *MemoryRepository) Close(context.Context) error {
	return nil
}

// newestFirst walks ids in reverse insertion order and applies the page window.
func newestFirst(ids []string, page domain.Page) []string {
	out := make([]string, 0, len(ids))
	skipped := 0
	for i := len(ids) - 1; i >= 0; i-- {
		if skipped < page.Offset {
			skipped++
			continue
		}
		if page.Limit > 0 && len(out) >= page.Limit {
			break
		}
		out = append(out, ids[i])
	}
	return out
}
