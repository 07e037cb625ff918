package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/ports"
)

// article builds a generated document whose body has exactly words words.
func article(words int) string {
	var b strings.Builder
	b.WriteString("🔑 Target Keywords: alpha, beta\n")
	b.WriteString("📝 Meta Description: a short summary\n")
	b.WriteString("---\n")
	for i := 0; i < words; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("word")
	}
	return b.String()
}

func noSleep(context.Context, time.Duration) error { return nil }

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

type scriptedRewriter struct {
	mu       sync.Mutex
	results  []ports.RewriteResult
	errs     []error
	requests []ports.RewriteRequest
}

func (s *scriptedRewriter) Rewrite(_ context.Context, req ports.RewriteRequest) (ports.RewriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return ports.RewriteResult{}, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return s.results[len(s.results)-1], nil
}

func (s *scriptedRewriter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func draftOf(words int) ports.RewriteResult {
	return ports.RewriteResult{Markdown: article(words), Model: "gemini-test", PromptUsed: "prompt", PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}
}

type staticSource struct {
	items []domain.SourceItem
	err   error
}

func (s staticSource) FetchListing(_ context.Context, limit int) ([]domain.SourceItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && len(s.items) > limit {
		return s.items[:limit], nil
	}
	return s.items, nil
}

func items(n int) []domain.SourceItem {
	out := make([]domain.SourceItem, n)
	for i := range out {
		out[i] = domain.SourceItem{
			Title:        fmt.Sprintf("Story %d", i+1),
			Link:         fmt.Sprintf("https://news.example/story-%d", i+1),
			Author:       "Desk",
			PublishedAt:  "2025-11-08",
			ThumbnailURL: fmt.Sprintf("https://news.example/thumb-%d.jpg", i+1),
		}
	}
	return out
}

type mapContent struct {
	pages map[string]ports.PageContent
	err   error
}

func (m mapContent) FetchContent(_ context.Context, link string) (ports.PageContent, error) {
	if m.err != nil {
		return ports.PageContent{}, m.err
	}
	return m.pages[link], nil
}

// shortContent returns the same short body for every link.
type shortContent struct{ text string }

func (s shortContent) FetchContent(context.Context, string) (ports.PageContent, error) {
	return ports.PageContent{Text: s.text, ImageURL: "https://img.example/hero.jpg"}, nil
}

type fakeUploader struct {
	mu      sync.Mutex
	sources []string
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, source string) (ports.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
	if f.err != nil {
		return ports.UploadResult{}, f.err
	}
	return ports.UploadResult{URL: "https://cdn.example/" + fmt.Sprint(len(f.sources)), PublicID: fmt.Sprintf("pid-%d", len(f.sources))}, nil
}

type fakeHumanizer struct {
	inputs []string
	err    error
}

func (f *fakeHumanizer) Humanize(_ context.Context, text string) (ports.HumanizeResult, error) {
	f.inputs = append(f.inputs, text)
	if f.err != nil {
		return ports.HumanizeResult{}, f.err
	}
	return ports.HumanizeResult{HumanizedText: "humanized " + text, OutputWordCount: 3, InputWordCount: 2}, nil
}

type fixedDetector float64

func (d fixedDetector) Score(context.Context, string) float64 { return float64(d) }

type fakeMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	calls    map[string]int
	runs     []string
	running  []bool
	circuit  []bool
	attempts []int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{outcomes: map[string]int{}, calls: map[string]int{}}
}

func (m *fakeMetrics) ItemOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *fakeMetrics) RewriteAttempts(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, n)
}

func (m *fakeMetrics) ExternalCall(service, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[service+"/"+result]++
}

func (m *fakeMetrics) RunFinished(reason, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, reason+"/"+result)
}

func (m *fakeMetrics) SetRunning(running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = append(m.running, running)
}

func (m *fakeMetrics) SetCircuitOpen(open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuit = append(m.circuit, open)
}
