package markup

import (
	"strings"

	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// ChromaHighlighter renders completed code blocks with chroma. Style is a
// chroma style name; empty means the default.
type ChromaHighlighter struct {
	Style string
}

// Highlight implements Highlighter. Unknown languages fall back to the caller's
// plain rendering.
func (h ChromaHighlighter) Highlight(code, language string) (string, bool) {
	if strings.TrimSpace(language) == "" {
		return "", false
	}
	lexer := lexers.Get(language)
	if lexer == nil {
		return "", false
	}
	style := styles.Get(h.Style)
	if style == nil {
		style = styles.Fallback
	}
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", false
	}
	formatter := html.New(html.WithClasses(false), html.PreventSurroundingPre(true))
	var b strings.Builder
	if err := formatter.Format(&b, style, it); err != nil {
		return "", false
	}
	return b.String(), true
}
