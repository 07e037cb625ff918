package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/ports"
)

const (
	articlesCollection  = "articles"
	rewritesCollection  = "rewritearticles"
	humanizeCollection  = "humanizearticles"
	appConfigCollection = "appconfigs"
	appConfigID         = "app"
)

// MongoRepository stores every record as a document, one collection per kind.
type MongoRepository struct {
	client    *mongo.Client
	articles  *mongo.Collection
	rewrites  *mongo.Collection
	humanized *mongo.Collection
	appConfig *mongo.Collection
	now       func() time.Time
}

var _ ports.Repository = (*MongoRepository)(nil)

// NewMongoRepository connects to uri and binds the named database.
func NewMongoRepository(ctx context.Context, uri, database string) (*MongoRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return newMongoRepository(client, client.Database(database)), nil
}

func newMongoRepository(client *mongo.Client, db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		client:    client,
		articles:  db.Collection(articlesCollection),
		rewrites:  db.Collection(rewritesCollection),
		humanized: db.Collection(humanizeCollection),
		appConfig: db.Collection(appConfigCollection),
		now:       time.Now,
	}
}

// EnsureIndexes creates the unique natural-key indexes.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{r.articles, mongo.IndexModel{Keys: bson.D{{Key: "link", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{r.articles, mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: -1}}}},
		{r.rewrites, mongo.IndexModel{Keys: bson.D{{Key: "articleId", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{r.rewrites, mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}}},
		{r.humanized, mongo.IndexModel{Keys: bson.D{{Key: "articleId", Value: 1}, {Key: "rewriteId", Value: 1}}, Options: options.Index().SetUnique(true)}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

func (r *MongoRepository) ArticleExists(ctx context.Context, link string) (bool, error) {
	n, err := r.articles.CountDocuments(ctx, bson.M{"link": link}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count articles: %w", err)
	}
	return n > 0, nil
}

// CreateArticle relies on $setOnInsert so an existing document is never modified.
func (r *MongoRepository) CreateArticle(ctx context.Context, article *domain.Article) (bool, error) {
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

	res, err := r.articles.UpdateOne(ctx,
		bson.M{"link": article.Link},
		bson.M{"$setOnInsert": article},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

func (r *MongoRepository) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	var a domain.Article
	if err := findOne(ctx, r.articles, id, &a); err != nil {
		return domain.Article{}, err
	}
	return a, nil
}

func (r *MongoRepository) ListArticles(ctx context.Context, page domain.Page) ([]domain.Article, error) {
	out := make([]domain.Article, 0)
	if err := findPage(ctx, r.articles, bson.M{}, page, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) UpsertRewrite(ctx context.Context, rec domain.RewriteRecord) (domain.RewriteRecord, error) {
	now := r.now().UTC()
	rec.UpdatedAt = now

	var saved domain.RewriteRecord
	err := r.upsert(ctx, r.rewrites, bson.M{"articleId": rec.ArticleID}, rec, now, &saved)
	if err != nil {
		return domain.RewriteRecord{}, fmt.Errorf("upsert rewrite: %w", err)
	}
	return saved, nil
}

func (r *MongoRepository) GetRewrite(ctx context.Context, id string) (domain.RewriteRecord, error) {
	var rec domain.RewriteRecord
	if err := findOne(ctx, r.rewrites, id, &rec); err != nil {
		return domain.RewriteRecord{}, err
	}
	return rec, nil
}

func (r *MongoRepository) ListRewrites(ctx context.Context, filter domain.RewriteFilter) ([]domain.RewriteRecord, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	out := make([]domain.RewriteRecord, 0)
	if err := findPage(ctx, r.rewrites, query, filter.Page, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) UpsertHumanize(ctx context.Context, rec domain.HumanizeRecord) (domain.HumanizeRecord, error) {
	now := r.now().UTC()
	rec.UpdatedAt = now

	var saved domain.HumanizeRecord
	key := bson.M{"articleId": rec.ArticleID, "rewriteId": rec.RewriteID}
	if err := r.upsert(ctx, r.humanized, key, rec, now, &saved); err != nil {
		return domain.HumanizeRecord{}, fmt.Errorf("upsert humanize: %w", err)
	}
	return saved, nil
}

func (r *MongoRepository) GetHumanize(ctx context.Context, id string) (domain.HumanizeRecord, error) {
	var rec domain.HumanizeRecord
	if err := findOne(ctx, r.humanized, id, &rec); err != nil {
		return domain.HumanizeRecord{}, err
	}
	return rec, nil
}

func (r *MongoRepository) ListHumanized(ctx context.Context, page domain.Page) ([]domain.HumanizeRecord, error) {
	out := make([]domain.HumanizeRecord, 0)
	if err := findPage(ctx, r.humanized, bson.M{}, page, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) GetAppConfig(ctx context.Context) (domain.AppConfig, error) {
	var cfg domain.AppConfig
	err := r.appConfig.FindOne(ctx, bson.M{"_id": appConfigID}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.AppConfig{}, nil
	}
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("get app config: %w", err)
	}
	return cfg, nil
}

func (r *MongoRepository) SaveAppConfig(ctx context.Context, cfg domain.AppConfig) (domain.AppConfig, error) {
	update := bson.M{
		"$set": bson.M{
			"generativeApiKey": cfg.GenerativeAPIKey,
			"generativeModel":  cfg.GenerativeModel,
			"updatedAt":        r.now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved domain.AppConfig
	if err := r.appConfig.FindOneAndUpdate(ctx, bson.M{"_id": appConfigID}, update, opts).Decode(&saved); err != nil {
		return domain.AppConfig{}, fmt.Errorf("save app config: %w", err)
	}
	return saved, nil
}

func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// upsert overwrites every field of doc on the document matched by key, keeping
// its _id and createdAt, and decodes the stored result into out.
func (r *MongoRepository) upsert(ctx context.Context, coll *mongo.Collection, key bson.M, doc any, now time.Time, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	delete(fields, "_id")
	delete(fields, "createdAt")

	update := bson.M{
		"$set":         fields,
		"$setOnInsert": bson.M{"_id": uuid.NewString(), "createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	return coll.FindOneAndUpdate(ctx, key, update, opts).Decode(out)
}

func findOne(ctx context.Context, coll *mongo.Collection, id string, out any) error {
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	return nil
}

func findPage(ctx context.Context, coll *mongo.Collection, filter bson.M, page domain.Page, out any) error {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	if page.Offset > 0 {
		opts.SetSkip(int64(page.Offset))
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return nil
}
