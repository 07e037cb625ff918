package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/domain"
)

func TestMemoryCreateArticleIsFirstWriteWins(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first := domain.Article{Title: "first", Link: "https://a/1", RawContent: "original"}
	created, err := repo.CreateArticle(ctx, &first)
	if err != nil || !created {
		t.Fatalf("CreateArticle() = %v, %v", created, err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("expected id and createdAt to be assigned, got %+v", first)
	}

	dup := domain.Article{Title: "second", Link: "https://a/1", RawContent: "changed"}
	created, err = repo.CreateArticle(ctx, &dup)
	if err != nil || created {
		t.Fatalf("duplicate CreateArticle() = %v, %v", created, err)
	}

	got, err := repo.GetArticle(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if got.RawContent != "original" {
		t.Errorf("stored article was modified: %q", got.RawContent)
	}

	exists, _ := repo.ArticleExists(ctx, "https://a/1")
	if !exists {
		t.Error("ArticleExists() = false")
	}
	if _, err := repo.GetArticle(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetArticle(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryListArticlesNewestFirstWithPaging(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	for _, link := range []string{"a", "b", "c", "d"} {
		a := domain.Article{Link: link}
		if _, err := repo.CreateArticle(ctx, &a); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		page domain.Page
		want []string
	}{
		{name: "all", page: domain.Page{}, want: []string{"d", "c", "b", "a"}},
		{name: "first page", page: domain.Page{Limit: 2}, want: []string{"d", "c"}},
		{name: "second page", page: domain.Page{Limit: 2, Offset: 2}, want: []string{"b", "a"}},
		{name: "past the end", page: domain.Page{Limit: 2, Offset: 10}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListArticles(ctx, tt.page)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d articles, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Link != tt.want[i] {
					t.Errorf("item %d = %q, want %q", i, got[i].Link, tt.want[i])
				}
			}
		})
	}
}

func TestMemoryUpsertRewriteKeepsIdentity(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	clock := time.Date(2025, 11, 8, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	first, err := repo.UpsertRewrite(ctx, domain.RewriteRecord{ArticleID: "art-1", Title: "v1", Status: domain.RewriteUnder})
	if err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(time.Hour)
	second, err := repo.UpsertRewrite(ctx, domain.RewriteRecord{ArticleID: "art-1", Title: "v2", Status: domain.RewriteFull})
	if err != nil {
		t.Fatal(err)
	}

	if second.ID != first.ID {
		t.Errorf("id changed from %s to %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("createdAt changed to %v", second.CreatedAt)
	}
	if !second.UpdatedAt.Equal(clock) {
		t.Errorf("updatedAt = %v, want %v", second.UpdatedAt, clock)
	}

	all, _ := repo.ListRewrites(ctx, domain.RewriteFilter{})
	if len(all) != 1 || all[0].Title != "v2" {
		t.Fatalf("ListRewrites() = %+v", all)
	}
	under, _ := repo.ListRewrites(ctx, domain.RewriteFilter{Status: domain.RewriteUnder})
	if len(under) != 0 {
		t.Errorf("status filter returned %d records", len(under))
	}
}

func TestMemoryUpsertHumanizeKeyedByArticleAndRewrite(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a, _ := repo.UpsertHumanize(ctx, domain.HumanizeRecord{ArticleID: "a", RewriteID: "r1", HumanizedText: "one"})
	b, _ := repo.UpsertHumanize(ctx, domain.HumanizeRecord{ArticleID: "a", RewriteID: "r1", HumanizedText: "two"})
	c, _ := repo.UpsertHumanize(ctx, domain.HumanizeRecord{ArticleID: "a", RewriteID: "r2", HumanizedText: "three"})

	if a.ID != b.ID {
		t.Error("same key produced a new record")
	}
	if c.ID == a.ID {
		t.Error("different rewrite reused the record")
	}
	got, err := repo.GetHumanize(ctx, a.ID)
	if err != nil || got.HumanizedText != "two" {
		t.Errorf("GetHumanize() = %+v, %v", got, err)
	}
	list, _ := repo.ListHumanized(ctx, domain.Page{})
	if len(list) != 2 {
		t.Errorf("ListHumanized() returned %d", len(list))
	}
}

func TestMemoryAppConfigVersions(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	cfg, err := repo.GetAppConfig(ctx)
	if err != nil || cfg.Version != 0 {
		t.Fatalf("GetAppConfig() = %+v, %v", cfg, err)
	}
	for want := 1; want <= 3; want++ {
		saved, err := repo.SaveAppConfig(ctx, domain.AppConfig{GenerativeAPIKey: "k", GenerativeModel: "m"})
		if err != nil {
			t.Fatal(err)
		}
		if saved.Version != want {
			t.Errorf("version = %d, want %d", saved.Version, want)
		}
	}
}
