package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ArticlesRewriter/internal/ports"
)

const truncatedSourceMarker = "\n\n[Truncated due to length]"

// BuildPrompt renders the editor instruction for one rewrite request.
// Source text longer than maxSourceChars runes is cut and marked.
func BuildPrompt(req ports.RewriteRequest, maxSourceChars int) string {
	var b strings.Builder

	b.WriteString("You are a senior news editor at an entertainment publication. Rewrite the source below into an original, neutral, factual and SEO-friendly news article in Markdown.\n\n")

	b.WriteString("Output format, in this exact order:\n")
	fmt.Fprintf(&b, "1. A line starting with \"🔑 Target Keywords:\" followed by %s.\n", keywordHint(req.Keywords))
	fmt.Fprintf(&b, "2. A line starting with \"📝 Meta Description:\" followed by %s.\n", metaHint(req.MetaDescription))
	b.WriteString("3. A line containing only ---\n")
	b.WriteString("4. The article: exactly one H1 title (# ), sections under H2/H3 subheadings, target keywords in **bold** where they read naturally, and a closing \"## Conclusion\" section.\n\n")

	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- The article body after --- must be between %d and %d words. Never exceed %d words.\n", req.MinWords, req.MaxWords, req.HardCap)
	b.WriteString("- Do not invent quotes, figures or release dates that the source does not state.\n")
	b.WriteString("- Avoid clickbait, exaggeration and first-person commentary.\n")
	b.WriteString("- Return only the Markdown, with no code fences.\n")

	if extra := strings.TrimSpace(req.ExtraInstructions); extra != "" {
		b.WriteString("\n")
		b.WriteString(extra)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nTopic: %s\n---\nSource:\n%s", strings.TrimSpace(req.Topic), capSource(req.SourceText, maxSourceChars))
	return b.String()
}

func keywordHint(keywords []string) string {
	var kept []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kept = append(kept, k)
		}
	}
	if len(kept) == 0 {
		return "3 to 6 comma-separated search keywords you choose from the topic"
	}
	return "exactly these keywords, comma-separated: " + strings.Join(kept, ", ")
}

func metaHint(meta string) string {
	if meta = strings.TrimSpace(meta); meta == "" {
		return "a meta description of at most 155 characters you write"
	}
	return "exactly this text: " + meta
}

func capSource(source string, limit int) string {
	source = strings.TrimSpace(source)
	if limit <= 0 || utf8.RuneCountInString(source) <= limit {
		return source
	}
	runes := []rune(source)
	return string(runes[:limit]) + truncatedSourceMarker
}
