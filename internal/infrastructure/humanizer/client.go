package humanizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/config"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/ports"
	"ArticlesRewriter/internal/retry"
)

const (
	serviceName     = "humanizer"
	healthPath      = "/health"
	rawPath         = "/humanize/news"
	jsonPath        = "/humanize/news/json"
	truncatedMarker = "\n\n[Truncated]"
)

// fallbackSettings are sent with the structured request on the final attempt.
var fallbackSettings = domain.HumanizeSettings{
	UsePassive:          true,
	UseSynonyms:         true,
	PPassive:            0.2,
	PSynonymReplacement: 0.4,
	PAcademicTransition: 0.5,
}

// Client talks to the humanizer service: plain-text requests first, a
// structured request on the last attempt.
type Client struct {
	baseURL       string
	http          *http.Client
	healthTimeout time.Duration
	maxInputChars int
	retry         retry.Config
	logger        *slog.Logger
}

var _ ports.Humanizer = (*Client)(nil)

// NewClient creates a reusable HTTP client. sleep may be nil.
func NewClient(cfg config.HumanizerConfig, sleep retry.SleepFunc, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		http:          &http.Client{Timeout: cfg.Timeout},
		healthTimeout: cfg.HealthTimeout,
		maxInputChars: cfg.MaxInputChars,
		logger:        logger,
	}
	c.retry = retry.Config{
		MaxAttempts: cfg.Retries,
		BaseDelay:   cfg.BaseDelay,
		Sleep:       sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.logger.Warn("humanize attempt failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		},
	}
	return c
}

// response mirrors the service payload; both endpoints answer with it.
type response struct {
	OriginalText           *string                  `json:"original_text"`
	HumanizedText          string                   `json:"humanized_text"`
	InputWordCount         int                      `json:"input_word_count"`
	InputSentenceCount     int                      `json:"input_sentence_count"`
	OutputWordCount        int                      `json:"output_word_count"`
	OutputSentenceCount    int                      `json:"output_sentence_count"`
	ReadabilityImprovement float64                  `json:"readability_improvement"`
	Settings               *domain.HumanizeSettings `json:"settings"`
}

type jsonRequest struct {
	Text string `json:"text"`
	domain.HumanizeSettings
}

// Humanize warms the service up, then retries timeouts and 5xx responses
// with exponential backoff. Other failures return at once.
func (c *Client) Humanize(ctx context.Context, text string) (ports.HumanizeResult, error) {
	input := capInput(text, c.maxInputChars)

	plan := retry.Plan[response]{
		Warmup: c.warmUp,
		Primary: func(ctx context.Context) (response, error) {
			var out response
			err := c.post(ctx, rawPath, "text/plain; charset=utf-8", strings.NewReader(input), &out)
			return out, err
		},
		Fallback: func(ctx context.Context) (response, error) {
			body, err := json.Marshal(jsonRequest{Text: input, HumanizeSettings: fallbackSettings})
			if err != nil {
				return response{}, fmt.Errorf("marshal payload: %w", err)
			}
			var out response
			err = c.post(ctx, jsonPath, "application/json", bytes.NewReader(body), &out)
			return out, err
		},
	}

	resp, err := retry.Do(ctx, c.retry, plan)
	if err != nil {
		return ports.HumanizeResult{}, err
	}

	result := ports.HumanizeResult{
		InputText:              input,
		HumanizedText:          resp.HumanizedText,
		InputWordCount:         resp.InputWordCount,
		InputSentenceCount:     resp.InputSentenceCount,
		OutputWordCount:        resp.OutputWordCount,
		OutputSentenceCount:    resp.OutputSentenceCount,
		ReadabilityImprovement: resp.ReadabilityImprovement,
		Settings:               resp.Settings,
	}
	if resp.OriginalText != nil {
		result.InputText = *resp.OriginalText
	}
	return result, nil
}

// warmUp pings the health endpoint so a sleeping instance starts booting.
func (c *Client) warmUp(ctx context.Context) error {
	if c.healthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.healthTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("humanizer warm-up failed", "error", err)
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperr.NewStatus(serviceName, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// capInput keeps at most limit runes and marks the cut.
func capInput(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + truncatedMarker
}
