package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/russross/blackfriday/v2"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/markdown"
)

func (h *Handler) listArticles(c *gin.Context) {
	page, err := pageFromQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}
	rows, err := h.store.ListArticles(c.Request.Context(), page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) latestArticles(c *gin.Context) {
	limit, err := latestLimit(c)
	if err != nil {
		writeError(c, err)
		return
	}
	rows, err := h.store.ListArticles(c.Request.Context(), domain.Page{Limit: limit})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) getArticle(c *gin.Context) {
	article, err := h.store.GetArticle(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (h *Handler) listRewrites(c *gin.Context) {
	page, err := pageFromQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}
	status := domain.RewriteStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		writeError(c, apperr.NewValidation("status must be one of full, under, over, pending"))
		return
	}
	rows, err := h.store.ListRewrites(c.Request.Context(), domain.RewriteFilter{Status: status, Page: page})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) latestRewrites(c *gin.Context) {
	limit, err := latestLimit(c)
	if err != nil {
		writeError(c, err)
		return
	}
	rows, err := h.store.ListRewrites(c.Request.Context(), domain.RewriteFilter{Page: domain.Page{Limit: limit}})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type sourceSummary struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Author string `json:"author"`
	Date   string `json:"date"`
}

type rewriteDetail struct {
	domain.RewriteRecord
	HTML   string        `json:"html"`
	Source sourceSummary `json:"source"`
}

// getRewrite adds the source article summary, falls back to the article's
// CDN image and renders the body to HTML.
func (h *Handler) getRewrite(c *gin.Context) {
	ctx := c.Request.Context()
	rec, err := h.store.GetRewrite(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	var article domain.Article
	if rec.ArticleID != "" {
		article, err = h.store.GetArticle(ctx, rec.ArticleID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			writeError(c, err)
			return
		}
	}

	if rec.CDNImageURL == "" {
		rec.CDNImageURL = article.CDNImageURL
	}
	if rec.CDNImagePublicID == "" {
		rec.CDNImagePublicID = article.CDNImagePublicID
	}

	body := markdown.SplitFrontMatter(rec.BodyMarkdown).Body
	c.JSON(http.StatusOK, rewriteDetail{
		RewriteRecord: rec,
		HTML:          string(blackfriday.Run([]byte(body))),
		Source: sourceSummary{
			Title:  firstNonEmpty(rec.SourceTitle, article.Title),
			Link:   firstNonEmpty(rec.SourceLink, article.Link),
			Author: firstNonEmpty(rec.SourceAuthor, article.Author),
			Date:   firstNonEmpty(rec.SourceDate, article.PublishedAt),
		},
	})
}

func (h *Handler) listHumanized(c *gin.Context) {
	page, err := pageFromQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}
	rows, err := h.store.ListHumanized(c.Request.Context(), page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) latestHumanized(c *gin.Context) {
	limit, err := latestLimit(c)
	if err != nil {
		writeError(c, err)
		return
	}
	rows, err := h.store.ListHumanized(c.Request.Context(), domain.Page{Limit: limit})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) getHumanized(c *gin.Context) {
	rec, err := h.store.GetHumanize(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func latestLimit(c *gin.Context) (int, error) {
	limit, err := positiveQuery(c, "limit", defaultLimit)
	if err != nil {
		return 0, err
	}
	return min(limit, maxLimit), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
