package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/config"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/ports"
)

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	prompt string
	cfg    *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.cfg = model, cfg
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func testFactory() *Factory {
	return NewFactory(config.GenerativeConfig{
		Timeout:         time.Minute,
		MaxOutputTokens: 4096,
		Temperature:     0.7,
		MaxSourceChars:  50,
	})
}

func candidate(reason genai.FinishReason, parts ...string) *genai.Candidate {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.Candidate{Content: content, FinishReason: reason}
}

func TestRewriteJoinsPartsAndUsage(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{candidate(genai.FinishReasonStop, "# Title\n", "Body text.")},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 80,
		},
	}}
	rw := testFactory().newRewriter(fake, "gemini-2.0-flash")

	res, err := rw.Rewrite(context.Background(), ports.RewriteRequest{Topic: "Trailer", SourceText: "src", MinWords: 600, MaxWords: 800, HardCap: 900})
	require.NoError(t, err)

	assert.Equal(t, "# Title\nBody text.", res.Markdown)
	assert.Equal(t, 120, res.PromptTokens)
	assert.Equal(t, 80, res.CompletionTokens)
	assert.Equal(t, 200, res.TotalTokens)
	assert.False(t, res.Truncated)
	assert.Equal(t, "gemini-2.0-flash", res.Model)
	assert.Equal(t, fake.prompt, res.PromptUsed)

	assert.Equal(t, "gemini-2.0-flash", fake.model)
	require.NotNil(t, fake.cfg.Temperature)
	assert.InDelta(t, 0.7, *fake.cfg.Temperature, 0.0001)
	assert.EqualValues(t, 4096, fake.cfg.MaxOutputTokens)
}

func TestRewriteDetectsTruncation(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{candidate(genai.FinishReasonMaxTokens, "# Cut off")},
	}}
	res, err := testFactory().newRewriter(fake, "m").Rewrite(context.Background(), ports.RewriteRequest{})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
}

func TestRewriteEmptyCompletion(t *testing.T) {
	t.Parallel()

	for name, resp := range map[string]*genai.GenerateContentResponse{
		"no candidates": {},
		"blank text":    {Candidates: []*genai.Candidate{candidate(genai.FinishReasonStop, "  ", "\n")}},
	} {
		fake := &fakeModels{resp: resp}
		_, err := testFactory().newRewriter(fake, "m").Rewrite(context.Background(), ports.RewriteRequest{})

		var ext *apperr.ExternalError
		require.ErrorAs(t, err, &ext, name)
		assert.Zero(t, ext.StatusCode, name)
		assert.False(t, apperr.IsAuthOrQuota(err), name)
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	err := classifyError(genai.APIError{Code: 403, Message: "Permission denied on project"})
	assert.True(t, apperr.IsAuthOrQuota(err))
	assert.Equal(t, 403, apperr.StatusCode(err))

	err = classifyError(genai.APIError{Code: 429, Message: "You exceeded your current quota"})
	assert.True(t, apperr.IsAuthOrQuota(err))
	assert.False(t, apperr.IsRetryable(err))

	err = classifyError(genai.APIError{Code: 503, Message: "overloaded"})
	assert.True(t, apperr.IsRetryable(err))

	err = classifyError(context.DeadlineExceeded)
	assert.True(t, apperr.IsTimeout(err))
	assert.Zero(t, apperr.StatusCode(err))

	plain := errors.New("dial tcp: connection refused")
	assert.ErrorIs(t, classifyError(plain), plain)
}

func TestRewriteClassifiesSDKErrors(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{err: genai.APIError{Code: 401, Message: "API key not valid"}}
	_, err := testFactory().newRewriter(fake, "m").Rewrite(context.Background(), ports.RewriteRequest{})
	assert.True(t, apperr.IsAuthOrQuota(err))
}

func TestNewRewriterRequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := testFactory().NewRewriter(context.Background(), domain.AppConfig{GenerativeModel: "m"})
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	req := ports.RewriteRequest{
		Topic:             "Teaser release",
		SourceText:        strings.Repeat("é", 60),
		Keywords:          []string{"teaser", " ", "box office"},
		MinWords:          600,
		MaxWords:          800,
		HardCap:           900,
		ExtraInstructions: "ADDITIONAL REQUIREMENT:\nExpand to between 600 and 800 words.",
	}
	prompt := BuildPrompt(req, 50)

	assert.Contains(t, prompt, "🔑 Target Keywords:")
	assert.Contains(t, prompt, "exactly these keywords, comma-separated: teaser, box office")
	assert.Contains(t, prompt, "📝 Meta Description:")
	assert.Contains(t, prompt, "a meta description of at most 155 characters")
	assert.Contains(t, prompt, "between 600 and 800 words. Never exceed 900 words.")
	assert.Contains(t, prompt, "## Conclusion")
	assert.Contains(t, prompt, "Expand to between 600 and 800 words.")
	assert.Contains(t, prompt, "Topic: Teaser release")
	assert.True(t, strings.HasSuffix(prompt, strings.Repeat("é", 50)+truncatedSourceMarker))
}

func TestBuildPromptKeepsShortSource(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt(ports.RewriteRequest{SourceText: "  short source  ", MetaDescription: "Fixed meta"}, 10000)
	assert.True(t, strings.HasSuffix(prompt, "Source:\nshort source"))
	assert.Contains(t, prompt, "exactly this text: Fixed meta")
	assert.NotContains(t, prompt, truncatedSourceMarker)
}
