// Package markdown counts and trims words in generated Markdown articles.
package markdown

import (
	"regexp"
	"strings"
)

var (
	markupExpr     = regexp.MustCompile("[#>*_`~\\-!()\\[\\]]")
	whitespaceExpr = regexp.MustCompile(`\s+`)
	tokenExpr      = regexp.MustCompile(`\S+`)
	headingExpr    = regexp.MustCompile(`^#\s+(.+?)\s*$`)
)

// CountWords strips structural Markdown punctuation, collapses whitespace
// and counts the remaining space-separated tokens.
func CountWords(text string) int {
	cleaned := strings.TrimSpace(whitespaceExpr.ReplaceAllString(markupExpr.ReplaceAllString(text, " "), " "))
	if cleaned == "" {
		return 0
	}
	return len(strings.Split(cleaned, " "))
}

// BodyWordCount counts words after the keyword/meta header is removed.
func BodyWordCount(doc string) int {
	return CountWords(SplitFrontMatter(doc).Body)
}

// ExtractTitle returns the text of the first "# " heading, or "".
func ExtractTitle(doc string) string {
	for _, line := range strings.Split(doc, "\n") {
		if m := headingExpr.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
