package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/domain"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// pageFromQuery reads limit (default 50, at most 200) and a 1-based page.
func pageFromQuery(c *gin.Context) (domain.Page, error) {
	limit, err := positiveQuery(c, "limit", defaultLimit)
	if err != nil {
		return domain.Page{}, err
	}
	page, err := positiveQuery(c, "page", 1)
	if err != nil {
		return domain.Page{}, err
	}
	limit = min(limit, maxLimit)
	return domain.Page{Limit: limit, Offset: (page - 1) * limit}, nil
}

func positiveQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.NewValidation(name + " must be a positive integer")
	}
	return n, nil
}
