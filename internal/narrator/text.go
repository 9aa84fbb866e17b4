package narrator

import (
	"strings"

	"golang.org/x/net/html"
)

const thinkTag = "think"

// StripThink removes every <think> aside, markup included, and returns the
// remaining text content. Text without an aside is returned unchanged. An
// aside left open swallows the rest of the text. A stray "<" that never
// closes, as in "A100<H100", is kept as text.
func StripThink(text string) string {
	if !strings.Contains(text, "<"+thinkTag+">") {
		return text
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(text))
	depth := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// The tokenizer reports a tag cut off by the end of input as an
			// error with the partial tag still in Raw.
			if depth == 0 {
				b.WriteString(html.UnescapeString(string(z.Raw()) + string(z.Buffered())))
			}
			return b.String()
		case html.StartTagToken:
			if tok := z.Token(); tok.Data == thinkTag {
				depth++
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.Data == thinkTag && depth > 0 {
				depth--
			}
		case html.TextToken:
			if depth == 0 {
				b.WriteString(z.Token().Data)
			}
		}
	}
}

// LimitText cuts text to at most limit characters, then drops the trailing
// partial sentence. Text within the limit is returned unchanged; the result
// can be empty when the first sentence alone is too long.
func LimitText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit < 0 {
		limit = 0
	}
	segments := strings.Split(string(runes[:limit]), ". ")
	return strings.Join(segments[:len(segments)-1], ". ")
}
