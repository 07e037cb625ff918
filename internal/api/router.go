// Package api serves the admin dashboard: run triggers, status, config and
// read access to stored articles.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/usecase"
)

// RunController triggers runs and reports their state.
type RunController interface {
	Trigger(ctx context.Context, req usecase.TriggerRequest) (usecase.RunReport, error)
	Status() usecase.Status
}

// SettingsController reads and writes the generative credential.
type SettingsController interface {
	Current(ctx context.Context) (domain.AppConfig, error)
	Update(ctx context.Context, apiKey, model string) (domain.AppConfig, error)
}

// ReadStore is the read side of the repository.
type ReadStore interface {
	GetArticle(ctx context.Context, id string) (domain.Article, error)
	ListArticles(ctx context.Context, page domain.Page) ([]domain.Article, error)
	GetRewrite(ctx context.Context, id string) (domain.RewriteRecord, error)
	ListRewrites(ctx context.Context, filter domain.RewriteFilter) ([]domain.RewriteRecord, error)
	GetHumanize(ctx context.Context, id string) (domain.HumanizeRecord, error)
	ListHumanized(ctx context.Context, page domain.Page) ([]domain.HumanizeRecord, error)
}

// Deps wires the router.
type Deps struct {
	Runner      RunController
	Settings    SettingsController
	Store       ReadStore
	Metrics     http.Handler
	CORSOrigins []string
	Logger      *slog.Logger
}

// Handler groups the route handlers.
type Handler struct {
	runner   RunController
	settings SettingsController
	store    ReadStore
	logger   *slog.Logger
}

// NewRouter builds the gin engine with every admin route.
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{runner: deps.Runner, settings: deps.Settings, store: deps.Store, logger: logger}

	router := gin.New()
	router.Use(recoveryMiddleware(logger), loggerMiddleware(logger), corsMiddleware(deps.CORSOrigins))

	router.GET("/health", h.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	apiGroup := router.Group("/api")

	scrape := apiGroup.Group("/scrape")
	scrape.GET("/run", h.runScrape)
	scrape.POST("/run", h.runScrape)
	scrape.GET("/status", h.scrapeStatus)

	apiGroup.GET("/config", h.getConfig)
	apiGroup.POST("/config", h.updateConfig)

	articles := apiGroup.Group("/articles")
	articles.GET("", h.listArticles)
	articles.GET("/latest", h.latestArticles)
	articles.GET("/:id", h.getArticle)

	rewrites := apiGroup.Group("/rewritearticles")
	rewrites.GET("", h.listRewrites)
	rewrites.GET("/latest", h.latestRewrites)
	rewrites.GET("/:id", h.getRewrite)

	humanized := apiGroup.Group("/humanizearticles")
	humanized.GET("", h.listHumanized)
	humanized.GET("/latest", h.latestHumanized)
	humanized.GET("/:id", h.getHumanized)

	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
