package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/domain"
)

type configView struct {
	HasKey    bool       `json:"hasKey"`
	Model     string     `json:"model"`
	Version   int        `json:"version"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

func newConfigView(cfg domain.AppConfig) configView {
	view := configView{HasKey: cfg.GenerativeAPIKey != "", Model: cfg.GenerativeModel, Version: cfg.Version}
	if !cfg.UpdatedAt.IsZero() {
		updated := cfg.UpdatedAt
		view.UpdatedAt = &updated
	}
	return view
}

type configRequest struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
}

// getConfig never returns the key itself.
func (h *Handler) getConfig(c *gin.Context) {
	cfg, err := h.settings.Current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newConfigView(cfg))
}

func (h *Handler) updateConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.NewValidationWrap("invalid config request", err))
		return
	}
	saved, err := h.settings.Update(c.Request.Context(), req.APIKey, req.Model)
	if err != nil {
		writeError(c, err)
		return
	}
	h.logger.Info("generative config updated", "model", saved.GenerativeModel, "version", saved.Version)
	c.JSON(http.StatusOK, gin.H{"message": "saved", "config": newConfigView(saved)})
}
