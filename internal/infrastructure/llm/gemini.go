package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/config"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/ports"
)

const serviceName = "gemini"

// generator is the part of genai.Models the rewriter calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiRewriter implements ports.Rewriter on the Gemini generateContent API.
type GeminiRewriter struct {
	models         generator
	model          string
	timeout        time.Duration
	maxTokens      int32
	temperature    float32
	maxSourceChars int
}

var _ ports.Rewriter = (*GeminiRewriter)(nil)

// Rewrite sends one prompt and returns the raw completion with its token usage.
func (g *GeminiRewriter) Rewrite(ctx context.Context, req ports.RewriteRequest) (ports.RewriteResult, error) {
	prompt := BuildPrompt(req, g.maxSourceChars)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxTokens,
	})
	if err != nil {
		return ports.RewriteResult{}, classifyError(err)
	}

	result, err := readResponse(resp)
	if err != nil {
		return ports.RewriteResult{}, err
	}
	result.PromptUsed = prompt
	result.Model = g.model
	return result, nil
}

func readResponse(resp *genai.GenerateContentResponse) (ports.RewriteResult, error) {
	var result ports.RewriteResult
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return result, &apperr.ExternalError{Service: serviceName, Message: "response has no candidates"}
	}

	candidate := resp.Candidates[0]
	var b strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
	}
	result.Markdown = strings.TrimSpace(b.String())
	if result.Markdown == "" {
		return result, &apperr.ExternalError{Service: serviceName, Message: "empty completion"}
	}
	result.Truncated = candidate.FinishReason == genai.FinishReasonMaxTokens

	if usage := resp.UsageMetadata; usage != nil {
		result.PromptTokens = int(usage.PromptTokenCount)
		result.CompletionTokens = int(usage.CandidatesTokenCount)
		result.TotalTokens = int(usage.TotalTokenCount)
		if result.TotalTokens == 0 {
			result.TotalTokens = result.PromptTokens + result.CompletionTokens
		}
	}
	return result, nil
}

// classifyError maps SDK failures onto apperr.ExternalError so the word-range
// loop and the breaker can tell credential problems from transient ones.
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &apperr.ExternalError{Service: serviceName, StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &apperr.ExternalError{Service: serviceName, StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}
	return apperr.Wrap(serviceName, err)
}

// Factory builds Gemini rewriters for the credential stored in AppConfig.
type Factory struct {
	cfg        config.GenerativeConfig
	httpClient *http.Client
}

var _ ports.RewriterFactory = (*Factory)(nil)

// NewFactory wires request tuning from configuration.
func NewFactory(cfg config.GenerativeConfig) *Factory {
	return &Factory{cfg: cfg, httpClient: &http.Client{}}
}

// NewRewriter creates a client for cfg. It fails when cfg carries no credentials.
func (f *Factory) NewRewriter(ctx context.Context, cfg domain.AppConfig) (ports.Rewriter, error) {
	if !cfg.HasCredentials() {
		return nil, apperr.NewValidation("generative api key and model are required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.GenerativeAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: f.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return f.newRewriter(client.Models, cfg.GenerativeModel), nil
}

func (f *Factory) newRewriter(models generator, model string) *GeminiRewriter {
	return &GeminiRewriter{
		models:         models,
		model:          model,
		timeout:        f.cfg.Timeout,
		maxTokens:      int32(f.cfg.MaxOutputTokens),
		temperature:    float32(f.cfg.Temperature),
		maxSourceChars: f.cfg.MaxSourceChars,
	}
}
