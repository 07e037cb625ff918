package humanizer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/config"
	"ArticlesRewriter/internal/retry"
)

type recorder struct {
	mu     sync.Mutex
	paths  []string
	bodies []string
	ctypes []string
}

func (r *recorder) record(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, req.URL.Path)
	r.bodies = append(r.bodies, string(body))
	r.ctypes = append(r.ctypes, req.Header.Get("Content-Type"))
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestClient(baseURL string, maxChars int, sleeps *sleepRecorder) *Client {
	return NewClient(config.HumanizerConfig{
		BaseURL:       baseURL + "/",
		Timeout:       5 * time.Second,
		HealthTimeout: time.Second,
		Retries:       3,
		BaseDelay:     5 * time.Second,
		MaxInputChars: maxChars,
	}, sleeps.sleep, nil)
}

const okPayload = `{
  "original_text": "echoed input",
  "humanized_text": "A calmer version.",
  "input_word_count": 120,
  "input_sentence_count": 8,
  "output_word_count": 118,
  "output_sentence_count": 9,
  "readability_improvement": 4.5,
  "settings": {"use_passive": true, "use_synonyms": false, "p_passive": 0.1}
}`

func TestHumanizeRawSuccess(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		if r.URL.Path == healthPath {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(okPayload))
	}))
	defer server.Close()

	sleeps := &sleepRecorder{}
	res, err := newTestClient(server.URL, 0, sleeps).Humanize(context.Background(), "Some article body.")
	require.NoError(t, err)

	assert.Equal(t, []string{healthPath, rawPath}, rec.paths)
	assert.Equal(t, "Some article body.", rec.bodies[1])
	assert.True(t, strings.HasPrefix(rec.ctypes[1], "text/plain"))
	assert.Empty(t, sleeps.delays)

	assert.Equal(t, "echoed input", res.InputText)
	assert.Equal(t, "A calmer version.", res.HumanizedText)
	assert.Equal(t, 120, res.InputWordCount)
	assert.Equal(t, 9, res.OutputSentenceCount)
	assert.InDelta(t, 4.5, res.ReadabilityImprovement, 0.001)
	require.NotNil(t, res.Settings)
	assert.True(t, res.Settings.UsePassive)
	assert.InDelta(t, 0.1, res.Settings.PPassive, 0.001)
}

func TestHumanizeFallsBackToJSONOnLastAttempt(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		switch r.URL.Path {
		case healthPath:
			w.WriteHeader(http.StatusServiceUnavailable)
		case rawPath:
			w.WriteHeader(http.StatusInternalServerError)
		case jsonPath:
			_, _ = w.Write([]byte(`{"humanized_text": "from json"}`))
		}
	}))
	defer server.Close()

	sleeps := &sleepRecorder{}
	res, err := newTestClient(server.URL, 0, sleeps).Humanize(context.Background(), "body")
	require.NoError(t, err)

	assert.Equal(t, []string{healthPath, rawPath, rawPath, jsonPath}, rec.paths)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, sleeps.delays)
	assert.Equal(t, "from json", res.HumanizedText)
	assert.Equal(t, "body", res.InputText)
	assert.Nil(t, res.Settings)

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.bodies[3]), &sent))
	assert.Equal(t, "body", sent["text"])
	assert.Equal(t, true, sent["use_passive"])
	assert.Equal(t, true, sent["use_synonyms"])
	assert.InDelta(t, 0.2, sent["p_passive"], 0.001)
	assert.InDelta(t, 0.4, sent["p_synonym_replacement"], 0.001)
	assert.InDelta(t, 0.5, sent["p_academic_transition"], 0.001)
}

func TestHumanizeClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		if r.URL.Path == rawPath {
			http.Error(w, "text too long", http.StatusRequestEntityTooLarge)
		}
	}))
	defer server.Close()

	sleeps := &sleepRecorder{}
	_, err := newTestClient(server.URL, 0, sleeps).Humanize(context.Background(), "body")
	require.Error(t, err)

	assert.Equal(t, http.StatusRequestEntityTooLarge, apperr.StatusCode(err))
	assert.Equal(t, []string{healthPath, rawPath}, rec.paths)
	assert.Empty(t, sleeps.delays)
}

func TestHumanizeExhaustsRetries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sleeps := &sleepRecorder{}
	_, err := newTestClient(server.URL, 0, sleeps).Humanize(context.Background(), "body")
	assert.ErrorIs(t, err, retry.ErrAttemptsExhausted)
	assert.Equal(t, http.StatusBadGateway, apperr.StatusCode(err))
	assert.Len(t, sleeps.delays, 2)
}

func TestHumanizeCapsInput(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		_, _ = w.Write([]byte(`{"humanized_text": "ok"}`))
	}))
	defer server.Close()

	res, err := newTestClient(server.URL, 10, &sleepRecorder{}).Humanize(context.Background(), strings.Repeat("ab", 20))
	require.NoError(t, err)

	want := strings.Repeat("ab", 5) + truncatedMarker
	assert.Equal(t, want, rec.bodies[1])
	assert.Equal(t, want, res.InputText)
}

func TestCapInput(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", capInput("short", 10))
	assert.Equal(t, "ééé"+truncatedMarker, capInput("éééé", 3))
	assert.Equal(t, "unbounded", capInput("unbounded", 0))
}
