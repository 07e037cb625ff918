package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    id                  UUID PRIMARY KEY,
    title               TEXT NOT NULL DEFAULT '',
    link                TEXT NOT NULL UNIQUE,
    author              TEXT NOT NULL DEFAULT '',
    published_at        TEXT NOT NULL DEFAULT '',
    thumbnail_url       TEXT NOT NULL DEFAULT '',
    source_image_url    TEXT NOT NULL DEFAULT '',
    cdn_image_url       TEXT NOT NULL DEFAULT '',
    cdn_image_public_id TEXT NOT NULL DEFAULT '',
    raw_content         TEXT NOT NULL DEFAULT '',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS articles_created_at_idx ON articles (created_at DESC);

CREATE TABLE IF NOT EXISTS rewrite_articles (
    id                  UUID PRIMARY KEY,
    article_id          UUID NOT NULL UNIQUE REFERENCES articles(id) ON DELETE CASCADE,
    source_title        TEXT NOT NULL DEFAULT '',
    source_link         TEXT NOT NULL DEFAULT '',
    source_author       TEXT NOT NULL DEFAULT '',
    source_date         TEXT NOT NULL DEFAULT '',
    title               TEXT NOT NULL DEFAULT '',
    body_markdown       TEXT NOT NULL DEFAULT '',
    generator_model     TEXT NOT NULL DEFAULT '',
    prompt_used         TEXT NOT NULL DEFAULT '',
    target_keywords     TEXT[] NOT NULL DEFAULT '{}',
    meta_description    TEXT NOT NULL DEFAULT '',
    word_count          INTEGER NOT NULL DEFAULT 0,
    attempts            INTEGER NOT NULL DEFAULT 0,
    prompt_tokens       INTEGER NOT NULL DEFAULT 0,
    completion_tokens   INTEGER NOT NULL DEFAULT 0,
    total_tokens        INTEGER NOT NULL DEFAULT 0,
    ai_score            DOUBLE PRECISION NOT NULL DEFAULT 0,
    status              TEXT NOT NULL DEFAULT 'pending',
    cdn_image_url       TEXT NOT NULL DEFAULT '',
    cdn_image_public_id TEXT NOT NULL DEFAULT '',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS rewrite_articles_status_idx ON rewrite_articles (status, created_at DESC);

CREATE TABLE IF NOT EXISTS humanized_articles (
    id                      UUID PRIMARY KEY,
    article_id              UUID NOT NULL,
    rewrite_id              UUID NOT NULL,
    source_title            TEXT NOT NULL DEFAULT '',
    source_link             TEXT NOT NULL DEFAULT '',
    input_text              TEXT NOT NULL DEFAULT '',
    input_word_count        INTEGER NOT NULL DEFAULT 0,
    input_sentence_count    INTEGER NOT NULL DEFAULT 0,
    humanized_text          TEXT NOT NULL DEFAULT '',
    output_word_count       INTEGER NOT NULL DEFAULT 0,
    output_sentence_count   INTEGER NOT NULL DEFAULT 0,
    readability_improvement DOUBLE PRECISION NOT NULL DEFAULT 0,
    settings_used           JSONB,
    ai_score                DOUBLE PRECISION NOT NULL DEFAULT 0,
    cdn_image_url           TEXT NOT NULL DEFAULT '',
    cdn_image_public_id     TEXT NOT NULL DEFAULT '',
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (article_id, rewrite_id)
);

CREATE TABLE IF NOT EXISTS app_config (
    id                 SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    generative_api_key TEXT NOT NULL DEFAULT '',
    generative_model   TEXT NOT NULL DEFAULT '',
    version            INTEGER NOT NULL DEFAULT 0,
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	articleColumns = []string{
		"id", "title", "link", "author", "published_at", "thumbnail_url", "source_image_url",
		"cdn_image_url", "cdn_image_public_id", "raw_content", "created_at", "updated_at",
	}
	rewriteColumns = []string{
		"id", "article_id", "source_title", "source_link", "source_author", "source_date", "title",
		"body_markdown", "generator_model", "prompt_used", "target_keywords", "meta_description",
		"word_count", "attempts", "prompt_tokens", "completion_tokens", "total_tokens", "ai_score",
		"status", "cdn_image_url", "cdn_image_public_id", "created_at", "updated_at",
	}
	humanizeColumns = []string{
		"id", "article_id", "rewrite_id", "source_title", "source_link", "input_text",
		"input_word_count", "input_sentence_count", "humanized_text", "output_word_count",
		"output_sentence_count", "readability_improvement", "settings_used", "ai_score",
		"cdn_image_url", "cdn_image_public_id", "created_at", "updated_at",
	}
)

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresRepository persists articles, rewrites and humanized copies into Postgres.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.Repository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// EnsureSchema creates tables and indexes when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ArticleExists reports whether an article with link is stored.
func (r *PostgresRepository) ArticleExists(ctx context.Context, link string) (bool, error) {
	query, args, err := psql.Select("1").From("articles").Where(sq.Eq{"link": link}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query article exists: %w", err)
	}
	return true, nil
}

// CreateArticle inserts article unless its link is already stored.
func (r *PostgresRepository) CreateArticle(ctx context.Context, article *domain.Article) (bool, error) {
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

	query, args, err := psql.Insert("articles").
		Columns(articleColumns...).
		Values(article.ID, article.Title, article.Link, article.Author, article.PublishedAt,
			article.ThumbnailURL, article.SourceImageURL, article.CDNImageURL, article.CDNImagePublicID,
			article.RawContent, article.CreatedAt, article.UpdatedAt).
		Suffix("ON CONFLICT (link) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert article: %w", err)
	}

	var id string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	return true, nil
}

// GetArticle loads one article by id.
func (r *PostgresRepository) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Article{}, apperr.ErrNotFound
	}
	query, args, err := psql.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build get article: %w", err)
	}

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, apperr.ErrNotFound
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("get article: %w", err)
	}
	return article, nil
}

// ListArticles returns a page of articles, newest first.
func (r *PostgresRepository) ListArticles(ctx context.Context, page domain.Page) ([]domain.Article, error) {
	builder := paginate(psql.Select(articleColumns...).From("articles").OrderBy("created_at DESC"), page)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list articles: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Article, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// UpsertRewrite replaces the rewrite of rec.ArticleID in place.
func (r *PostgresRepository) UpsertRewrite(ctx context.Context, rec domain.RewriteRecord) (domain.RewriteRecord, error) {
	now := r.now().UTC()
	rec.ID = uuid.NewString()
	rec.CreatedAt, rec.UpdatedAt = now, now
	if rec.TargetKeywords == nil {
		rec.TargetKeywords = []string{}
	}

	query, args, err := psql.Insert("rewrite_articles").
		Columns(rewriteColumns...).
		Values(rec.ID, rec.ArticleID, rec.SourceTitle, rec.SourceLink, rec.SourceAuthor, rec.SourceDate,
			rec.Title, rec.BodyMarkdown, rec.GeneratorModel, rec.PromptUsed, pq.Array(rec.TargetKeywords),
			rec.MetaDescription, rec.WordCount, rec.Attempts, rec.PromptTokens, rec.CompletionTokens,
			rec.TotalTokens, rec.AIScore, string(rec.Status), rec.CDNImageURL, rec.CDNImagePublicID,
			rec.CreatedAt, rec.UpdatedAt).
		Suffix(`ON CONFLICT (article_id) DO UPDATE SET
            source_title = EXCLUDED.source_title,
            source_link = EXCLUDED.source_link,
            source_author = EXCLUDED.source_author,
            source_date = EXCLUDED.source_date,
            title = EXCLUDED.title,
            body_markdown = EXCLUDED.body_markdown,
            generator_model = EXCLUDED.generator_model,
            prompt_used = EXCLUDED.prompt_used,
            target_keywords = EXCLUDED.target_keywords,
            meta_description = EXCLUDED.meta_description,
            word_count = EXCLUDED.word_count,
            attempts = EXCLUDED.attempts,
            prompt_tokens = EXCLUDED.prompt_tokens,
            completion_tokens = EXCLUDED.completion_tokens,
            total_tokens = EXCLUDED.total_tokens,
            ai_score = EXCLUDED.ai_score,
            status = EXCLUDED.status,
            cdn_image_url = EXCLUDED.cdn_image_url,
            cdn_image_public_id = EXCLUDED.cdn_image_public_id,
            updated_at = EXCLUDED.updated_at
            RETURNING id, created_at, updated_at`).
		ToSql()
	if err != nil {
		return domain.RewriteRecord{}, fmt.Errorf("build upsert rewrite: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.RewriteRecord{}, fmt.Errorf("upsert rewrite: %w", err)
	}
	return rec, nil
}

// GetRewrite loads one rewrite by id.
func (r *PostgresRepository) GetRewrite(ctx context.Context, id string) (domain.RewriteRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.RewriteRecord{}, apperr.ErrNotFound
	}
	query, args, err := psql.Select(rewriteColumns...).From("rewrite_articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.RewriteRecord{}, fmt.Errorf("build get rewrite: %w", err)
	}

	rec, err := scanRewrite(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RewriteRecord{}, apperr.ErrNotFound
	}
	if err != nil {
		return domain.RewriteRecord{}, fmt.Errorf("get rewrite: %w", err)
	}
	return rec, nil
}

// ListRewrites returns rewrites newest first, optionally narrowed by status.
func (r *PostgresRepository) ListRewrites(ctx context.Context, filter domain.RewriteFilter) ([]domain.RewriteRecord, error) {
	builder := psql.Select(rewriteColumns...).From("rewrite_articles").OrderBy("created_at DESC")
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	query, args, err := paginate(builder, filter.Page).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list rewrites: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rewrites: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RewriteRecord, 0)
	for rows.Next() {
		rec, err := scanRewrite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rewrite: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// UpsertHumanize replaces the humanized copy for (ArticleID, RewriteID).
func (r *PostgresRepository) UpsertHumanize(ctx context.Context, rec domain.HumanizeRecord) (domain.HumanizeRecord, error) {
	now := r.now().UTC()
	rec.ID = uuid.NewString()
	rec.CreatedAt, rec.UpdatedAt = now, now

	var settings []byte
	if rec.SettingsUsed != nil {
		raw, err := json.Marshal(rec.SettingsUsed)
		if err != nil {
			return domain.HumanizeRecord{}, fmt.Errorf("marshal humanize settings: %w", err)
		}
		settings = raw
	}

	query, args, err := psql.Insert("humanized_articles").
		Columns(humanizeColumns...).
		Values(rec.ID, rec.ArticleID, rec.RewriteID, rec.SourceTitle, rec.SourceLink, rec.InputText,
			rec.InputWordCount, rec.InputSentenceCount, rec.HumanizedText, rec.OutputWordCount,
			rec.OutputSentenceCount, rec.ReadabilityImprovement, settings, rec.AIScore,
			rec.CDNImageURL, rec.CDNImagePublicID, rec.CreatedAt, rec.UpdatedAt).
		Suffix(`ON CONFLICT (article_id, rewrite_id) DO UPDATE SET
            source_title = EXCLUDED.source_title,
            source_link = EXCLUDED.source_link,
            input_text = EXCLUDED.input_text,
            input_word_count = EXCLUDED.input_word_count,
            input_sentence_count = EXCLUDED.input_sentence_count,
            humanized_text = EXCLUDED.humanized_text,
            output_word_count = EXCLUDED.output_word_count,
            output_sentence_count = EXCLUDED.output_sentence_count,
            readability_improvement = EXCLUDED.readability_improvement,
            settings_used = EXCLUDED.settings_used,
            ai_score = EXCLUDED.ai_score,
            cdn_image_url = EXCLUDED.cdn_image_url,
            cdn_image_public_id = EXCLUDED.cdn_image_public_id,
            updated_at = EXCLUDED.updated_at
            RETURNING id, created_at, updated_at`).
		ToSql()
	if err != nil {
		return domain.HumanizeRecord{}, fmt.Errorf("build upsert humanize: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.HumanizeRecord{}, fmt.Errorf("upsert humanize: %w", err)
	}
	return rec, nil
}

// GetHumanize loads one humanized copy by id.
func (r *PostgresRepository) GetHumanize(ctx context.Context, id string) (domain.HumanizeRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.HumanizeRecord{}, apperr.ErrNotFound
	}
	query, args, err := psql.Select(humanizeColumns...).From("humanized_articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.HumanizeRecord{}, fmt.Errorf("build get humanize: %w", err)
	}

	rec, err := scanHumanize(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.HumanizeRecord{}, apperr.ErrNotFound
	}
	if err != nil {
		return domain.HumanizeRecord{}, fmt.Errorf("get humanize: %w", err)
	}
	return rec, nil
}

// ListHumanized returns humanized copies newest first.
func (r *PostgresRepository) ListHumanized(ctx context.Context, page domain.Page) ([]domain.HumanizeRecord, error) {
	builder := paginate(psql.Select(humanizeColumns...).From("humanized_articles").OrderBy("created_at DESC"), page)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list humanized: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list humanized: %w", err)
	}
	defer rows.Close()

	out := make([]domain.HumanizeRecord, 0)
	for rows.Next() {
		rec, err := scanHumanize(rows)
		if err != nil {
			return nil, fmt.Errorf("scan humanized: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// GetAppConfig returns the stored singleton or the zero value.
func (r *PostgresRepository) GetAppConfig(ctx context.Context) (domain.AppConfig, error) {
	query, args, err := psql.Select("generative_api_key", "generative_model", "version", "updated_at").
		From("app_config").Where(sq.Eq{"id": 1}).ToSql()
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("build get app config: %w", err)
	}

	var cfg domain.AppConfig
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&cfg.GenerativeAPIKey, &cfg.GenerativeModel, &cfg.Version, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AppConfig{}, nil
	}
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("get app config: %w", err)
	}
	return cfg, nil
}

// SaveAppConfig writes the singleton and bumps its version.
func (r *PostgresRepository) SaveAppConfig(ctx context.Context, cfg domain.AppConfig) (domain.AppConfig, error) {
	query, args, err := psql.Insert("app_config").
		Columns("id", "generative_api_key", "generative_model", "version", "updated_at").
		Values(1, cfg.GenerativeAPIKey, cfg.GenerativeModel, 1, r.now().UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
            generative_api_key = EXCLUDED.generative_api_key,
            generative_model = EXCLUDED.generative_model,
            version = app_config.version + 1,
            updated_at = EXCLUDED.updated_at
            RETURNING version, updated_at`).
		ToSql()
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("build save app config: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&cfg.Version, &cfg.UpdatedAt); err != nil {
		return domain.AppConfig{}, fmt.Errorf("save app config: %w", err)
	}
	return cfg, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close(context.Context) error {
	return r.db.Close()
}

func paginate(b sq.SelectBuilder, page domain.Page) sq.SelectBuilder {
	if page.Limit > 0 {
		b = b.Limit(uint64(page.Limit))
	}
	if page.Offset > 0 {
		b = b.Offset(uint64(page.Offset))
	}
	return b
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var a domain.Article
	err := row.Scan(&a.ID, &a.Title, &a.Link, &a.Author, &a.PublishedAt, &a.ThumbnailURL,
		&a.SourceImageURL, &a.CDNImageURL, &a.CDNImagePublicID, &a.RawContent, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func scanRewrite(row rowScanner) (domain.RewriteRecord, error) {
	var (
		rec    domain.RewriteRecord
		status string
	)
	err := row.Scan(&rec.ID, &rec.ArticleID, &rec.SourceTitle, &rec.SourceLink, &rec.SourceAuthor,
		&rec.SourceDate, &rec.Title, &rec.BodyMarkdown, &rec.GeneratorModel, &rec.PromptUsed,
		pq.Array(&rec.TargetKeywords), &rec.MetaDescription, &rec.WordCount, &rec.Attempts,
		&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &rec.AIScore, &status,
		&rec.CDNImageURL, &rec.CDNImagePublicID, &rec.CreatedAt, &rec.UpdatedAt)
	rec.Status = domain.RewriteStatus(status)
	return rec, err
}

func scanHumanize(row rowScanner) (domain.HumanizeRecord, error) {
	var (
		rec      domain.HumanizeRecord
		settings []byte
	)
	err := row.Scan(&rec.ID, &rec.ArticleID, &rec.RewriteID, &rec.SourceTitle, &rec.SourceLink,
		&rec.InputText, &rec.InputWordCount, &rec.InputSentenceCount, &rec.HumanizedText,
		&rec.OutputWordCount, &rec.OutputSentenceCount, &rec.ReadabilityImprovement, &settings,
		&rec.AIScore, &rec.CDNImageURL, &rec.CDNImagePublicID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return rec, err
	}
	if len(settings) > 0 {
		var s domain.HumanizeSettings
		if err := json.Unmarshal(settings, &s); err != nil {
			return rec, fmt.Errorf("decode humanize settings: %w", err)
		}
		rec.SettingsUsed = &s
	}
	return rec, nil
}
