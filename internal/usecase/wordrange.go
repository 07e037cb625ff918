package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/markdown"
	"ArticlesRewriter/internal/ports"
	"ArticlesRewriter/internal/retry"
)

// minViableChars is the shortest response accepted as a real draft.
const minViableChars = 100

var (
	// ErrShortDraft marks a response too short to be an article.
	ErrShortDraft = errors.New("generated draft is empty or too short")
	// ErrNoViableDraft is returned when every attempt failed to produce a draft.
	ErrNoViableDraft = errors.New("no viable draft produced")
)

// WordRange is the target body length of a rewrite.
type WordRange struct {
	Min          int
	Max          int
	HardCap      int
	MaxAttempts  int
	AttemptDelay time.Duration
}

// DefaultWordRange is 600-800 words, never above 900, in three attempts.
func DefaultWordRange() WordRange {
	return WordRange{Min: 600, Max: 800, HardCap: 900, MaxAttempts: 3, AttemptDelay: 800 * time.Millisecond}
}

// Validate checks min <= max <= hardCap and a positive attempt budget.
func (w WordRange) Validate() error {
	if w.Min < 0 || w.Min > w.Max || w.Max > w.HardCap {
		return fmt.Errorf("invalid word range %d-%d with hard cap %d", w.Min, w.Max, w.HardCap)
	}
	if w.MaxAttempts < 1 {
		return fmt.Errorf("invalid attempt budget %d", w.MaxAttempts)
	}
	return nil
}

func (w WordRange) contains(n int) bool {
	return n >= w.Min && n <= w.Max
}

// Draft is the outcome of word-range enforcement.
type Draft struct {
	Markdown         string
	WordCount        int
	Status           domain.RewriteStatus
	Attempts         int
	PromptUsed       string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// WordRangeEnforcer re-runs a Rewriter until its draft lands in range.
type WordRangeEnforcer struct {
	rng    WordRange
	sleep  retry.SleepFunc
	logger *slog.Logger
}

// NewWordRangeEnforcer builds an enforcer. sleep defaults to retry.Sleep.
func NewWordRangeEnforcer(rng WordRange, sleep retry.SleepFunc, logger *slog.Logger) *WordRangeEnforcer {
	if sleep == nil {
		sleep = retry.Sleep
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WordRangeEnforcer{rng: rng, sleep: sleep, logger: logger}
}

// Enforce returns a draft whose body never exceeds the hard cap. Status is
// full only when the body lands inside [Min, Max]. Credential, quota and
// other 4xx failures are returned at once; timeouts, 5xx and short drafts
// consume an attempt.
func (e *WordRangeEnforcer) Enforce(ctx context.Context, rewriter ports.Rewriter, req ports.RewriteRequest) (Draft, error) {
	req.MinWords, req.MaxWords, req.HardCap = e.rng.Min, e.rng.Max, e.rng.HardCap
	base := req.ExtraInstructions

	var (
		draft     Draft
		viable    bool
		lastErr   error
		amendment string
		truncNote string
	)

	for attempt := 1; attempt <= e.rng.MaxAttempts; attempt++ {
		draft.Attempts = attempt
		req.ExtraInstructions = joinInstructions(base, amendment, truncNote)

		res, err := rewriter.Rewrite(ctx, req)
		if err != nil {
			if ctx.Err() != nil || apperr.IsAuthOrQuota(err) || isPermanent(err) {
				return draft, err
			}
			lastErr = err
			e.logger.Warn("rewrite attempt failed", "attempt", attempt, "error", err)
			if err := e.pause(ctx, attempt); err != nil {
				return draft, err
			}
			continue
		}

		draft.PromptTokens += res.PromptTokens
		draft.CompletionTokens += res.CompletionTokens
		draft.TotalTokens += res.TotalTokens

		text := strings.TrimSpace(res.Markdown)
		words := markdown.BodyWordCount(text)
		if len(text) < minViableChars || words == 0 {
			lastErr = fmt.Errorf("attempt %d: %w (%d chars)", attempt, ErrShortDraft, len(text))
			e.logger.Warn("rewrite attempt too short", "attempt", attempt, "chars", len(text))
			if err := e.pause(ctx, attempt); err != nil {
				return draft, err
			}
			continue
		}

		viable = true
		draft.Markdown, draft.WordCount = text, words
		draft.PromptUsed, draft.Model = res.PromptUsed, res.Model

		if e.rng.contains(words) {
			draft.Status = domain.RewriteFull
			return draft, nil
		}

		if words > e.rng.HardCap {
			draft.Markdown = markdown.HardTrimToWordCap(text, e.rng.HardCap)
			draft.WordCount = markdown.BodyWordCount(draft.Markdown)
			e.logger.Debug("draft trimmed to hard cap", "attempt", attempt, "from", words, "to", draft.WordCount)
			if e.rng.contains(draft.WordCount) {
				draft.Status = domain.RewriteFull
				return draft, nil
			}
		}

		draft.Status = e.classify(draft.WordCount)
		amendment = e.amendment(draft.WordCount)
		truncNote = ""
		if res.Truncated {
			truncNote = "The previous answer was truncated by the output limit. Deliver the complete article, untruncated, within the specified word range."
		}
		e.logger.Info("draft outside word range", "attempt", attempt, "words", draft.WordCount, "status", draft.Status)

		if err := e.pause(ctx, attempt); err != nil {
			return draft, err
		}
	}

	if !viable {
		return draft, fmt.Errorf("%w after %d attempts: %w", ErrNoViableDraft, draft.Attempts, lastErr)
	}

	if draft.WordCount > e.rng.HardCap {
		draft.Markdown = markdown.HardTrimToWordCap(draft.Markdown, e.rng.HardCap)
		draft.WordCount = markdown.BodyWordCount(draft.Markdown)
		draft.Status = e.classify(draft.WordCount)
	}
	return draft, nil
}

func (e *WordRangeEnforcer) classify(words int) domain.RewriteStatus {
	switch {
	case words < e.rng.Min:
		return domain.RewriteUnder
	case words > e.rng.Max:
		return domain.RewriteOver
	default:
		return domain.RewriteFull
	}
}

func (e *WordRangeEnforcer) amendment(words int) string {
	if words < e.rng.Min {
		return fmt.Sprintf("ADDITIONAL REQUIREMENT:\nYour previous draft was %d words. Expand to between %d and %d words. Add concise context, background, and relevant details. Keep Markdown format. HARD CAP %d words.",
			words, e.rng.Min, e.rng.Max, e.rng.HardCap)
	}
	return fmt.Sprintf("ADDITIONAL REQUIREMENT:\nYour previous draft was %d words. Condense to between %d and %d words without losing key facts. Remove repetition and filler. Keep Markdown format. HARD CAP %d words.",
		words, e.rng.Min, e.rng.Max, e.rng.HardCap)
}

// pause waits between attempts; there is no wait after the last one.
func (e *WordRangeEnforcer) pause(ctx context.Context, attempt int) error {
	if attempt >= e.rng.MaxAttempts {
		return nil
	}
	return e.sleep(ctx, e.rng.AttemptDelay)
}

func isPermanent(err error) bool {
	status := apperr.StatusCode(err)
	return status >= 400 && status < 500 && !apperr.IsRetryable(err)
}

func joinInstructions(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
