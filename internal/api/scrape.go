package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/markdown"
	"ArticlesRewriter/internal/usecase"
)

// keywordList accepts either a JSON array or a comma-separated string.
type keywordList []string

func (k *keywordList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*k = out
		return nil
	}
	var csv string
	if err := json.Unmarshal(data, &csv); err != nil {
		return errors.New("keywords must be a string or an array of strings")
	}
	*k = markdown.SplitKeywords(csv)
	return nil
}

type runRequest struct {
	MaxItems        int         `json:"maxItems"`
	Keywords        keywordList `json:"keywords"`
	MetaDescription string      `json:"metaDescription"`
}

// runScrape triggers a manual run and answers with its report once finished.
func (h *Handler) runScrape(c *gin.Context) {
	var body runRequest
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			writeError(c, apperr.NewValidationWrap("invalid run request", err))
			return
		}
	}
	if c.Query("maxItems") != "" {
		n, err := positiveQuery(c, "maxItems", 0)
		if err != nil {
			writeError(c, err)
			return
		}
		body.MaxItems = n
	}
	if body.MaxItems < 0 {
		writeError(c, apperr.NewValidation("maxItems must be a positive integer"))
		return
	}

	report, err := h.runner.Trigger(c.Request.Context(), usecase.TriggerRequest{
		Reason:          usecase.ReasonManual,
		MaxItems:        body.MaxItems,
		Keywords:        body.Keywords,
		MetaDescription: strings.TrimSpace(body.MetaDescription),
	})
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"skipped": true, "error": err.Error(), "status": h.runner.Status()})
	case err != nil && !errors.Is(err, usecase.ErrCircuitOpen):
		writeError(c, err)
	default:
		c.JSON(http.StatusOK, report)
	}
}

func (h *Handler) scrapeStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Status())
}
