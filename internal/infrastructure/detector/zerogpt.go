package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/config"
	"ArticlesRewriter/internal/ports"
)

const (
	serviceName = "zerogpt"
	minChars    = 10
)

// ZeroGPT scores text with the ZeroGPT detection API.
type ZeroGPT struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *slog.Logger
}

var _ ports.Detector = (*ZeroGPT)(nil)

// NewZeroGPT builds a detector. Without an API key every score is 0.
func NewZeroGPT(cfg config.DetectorConfig, logger *slog.Logger) *ZeroGPT {
	if logger == nil {
		logger = slog.Default()
	}
	return &ZeroGPT{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

type detectResponse struct {
	Data struct {
		FakePercentage json.Number `json:"fakePercentage"`
	} `json:"data"`
}

// Score returns the fake percentage (0-100). Any failure yields 0.
func (z *ZeroGPT) Score(ctx context.Context, text string) float64 {
	if z.apiKey == "" || len(strings.TrimSpace(text)) < minChars {
		return 0
	}
	score, err := z.detect(ctx, text)
	if err != nil {
		z.logger.Debug("ai detection failed", "error", err)
		return 0
	}
	return score
}

func (z *ZeroGPT) detect(ctx context.Context, text string) (float64, error) {
	body, err := json.Marshal(map[string]string{"input_text": text})
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("ApiKey", z.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := z.http.Do(req)
	if err != nil {
		return 0, apperr.Wrap(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, apperr.NewStatus(serviceName, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if out.Data.FakePercentage == "" {
		return 0, nil
	}
	return out.Data.FakePercentage.Float64()
}
