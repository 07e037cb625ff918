package markdown

import (
	"strings"
)

const (
	separatorLine  = "---"
	keywordsPrefix = "🔑 Target Keywords:"
	metaPrefix     = "📝 Meta Description:"
	ellipsis       = "…"
)

// Document is a generated article split around its header separator.
type Document struct {
	Header string
	Body   string
}

// String reassembles the document byte-for-byte.
func (d Document) String() string {
	if d.Header == "" {
		return d.Body
	}
	return d.Header + "\n" + d.Body
}

// SplitFrontMatter puts every line up to and including the first standalone
// "---" line into Header. Without a separator the whole input is Body.
func SplitFrontMatter(doc string) Document {
	lines := strings.Split(doc, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == separatorLine {
			return Document{
				Header: strings.Join(lines[:i+1], "\n"),
				Body:   strings.Join(lines[i+1:], "\n"),
			}
		}
	}
	return Document{Body: doc}
}

// HardTrimToWordCap cuts the body so that BodyWordCount never exceeds maxWords.
// The header is never touched and the body keeps its original line layout up
// to the cut. The cut is marked with an ellipsis glued to the last kept token
// unless that would itself push the count over the cap.
func HardTrimToWordCap(doc string, maxWords int) string {
	if maxWords < 0 {
		maxWords = 0
	}
	parts := SplitFrontMatter(doc)
	if CountWords(parts.Body) <= maxWords {
		return doc
	}

	cut, total := 0, 0
	for _, loc := range tokenExpr.FindAllStringIndex(parts.Body, -1) {
		words := CountWords(parts.Body[loc[0]:loc[1]])
		if total+words > maxWords {
			break
		}
		total += words
		cut = loc[1]
	}

	trimmed := parts.Body[:cut]
	if marked := trimmed + ellipsis; CountWords(marked) <= maxWords {
		trimmed = marked
	}
	parts.Body = trimmed
	return parts.String()
}

// Header holds the parsed keyword and meta-description lines.
type Header struct {
	Keywords        []string
	MetaDescription string
}

// ParseHeader reads the keyword and meta lines out of a document header.
func ParseHeader(doc string) Header {
	var h Header
	for _, line := range strings.Split(SplitFrontMatter(doc).Header, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, keywordsPrefix):
			h.Keywords = SplitKeywords(strings.TrimPrefix(line, keywordsPrefix))
		case strings.HasPrefix(line, metaPrefix):
			h.MetaDescription = strings.TrimSpace(strings.TrimPrefix(line, metaPrefix))
		}
	}
	return h
}

// SplitKeywords splits a comma-separated list and drops blanks.
func SplitKeywords(csv string) []string {
	var out []string
	for _, k := range strings.Split(csv, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
