// Package markup renders raw assistant text into display HTML. It is called
// once per complete message, or repeatedly against the whole accumulated text
// while a reply is still streaming in; in streaming mode unterminated think
// blocks and code fences get distinct "still streaming" renderings instead of
// being treated as errors.
package markup

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

const (
	thinkOpen         = "<think>"
	thinkClose        = "</think>"
	thinkOpenEscaped  = "&lt;think&gt;"
	thinkCloseEscaped = "&lt;/think&gt;"
	fence             = "```"
)

// Formatter converts raw text to safe display markup. The zero value is ready
// to use; options configure optional syntax highlighting.
type Formatter struct {
	highlighter Highlighter
}

// Highlighter renders a code body (raw, unescaped) to HTML for a language.
// Returning ok=false falls back to plain escaped output.
type Highlighter interface {
	Highlight(code, language string) (html string, ok bool)
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithHighlighter enables syntax highlighting of completed code blocks.
func WithHighlighter(h Highlighter) Option {
	return func(f *Formatter) { f.highlighter = h }
}

// New returns a Formatter.
func New(opts ...Option) *Formatter {
	f := &Formatter{}
	for _, o := range opts {
		o(f)
	}
	return f
}

var (
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
	boldRe       = regexp.MustCompile(`\*\*([^*]+?)\*\*`)
	italicRe     = regexp.MustCompile(`\*([^*\n]+?)\*`)
)

// Format renders text to HTML. The pipeline order is load-bearing: think
// blocks come out before escaping so their tags are recognized in both literal
// and entity-escaped spellings; fences come out before inline substitutions so
// emphasis markers inside code bodies are left alone; placeholders are
// restored last.
func (f *Formatter) Format(text string, streaming bool) string {
	var thinks []thinkBlock
	text = extractThinkBlocks(text, streaming, &thinks)

	text = html.EscapeString(text)

	var codes []codeBlock
	text = extractCodeBlocks(text, streaming, &codes)

	text = inlineCodeRe.ReplaceAllString(text, "<code>$1</code>")
	text = boldRe.ReplaceAllString(text, "<strong>$1</strong>")
	text = italicRe.ReplaceAllString(text, "<em>$1</em>")

	text = strings.ReplaceAll(text, "\n", "<br>")

	for i, cb := range codes {
		text = strings.Replace(text, codePlaceholder(i), f.renderCodeBlock(cb), 1)
	}
	for i, tb := range thinks {
		ph := thinkPlaceholder(i, tb.streaming)
		text = strings.Replace(text, ph, renderThinkBlock(tb), 1)
	}
	return text
}

type thinkBlock struct {
	content   string
	streaming bool
}

func thinkPlaceholder(n int, streaming bool) string {
	if streaming {
		return fmt.Sprintf("__THINK_BLOCK_STREAMING_%d__", n)
	}
	return fmt.Sprintf("__THINK_BLOCK_%d__", n)
}

// findThinkTag returns the earliest index of either spelling of the tag and
// the matched length, or -1.
func findThinkTag(s string, from int, literal, escaped string) (idx, length int) {
	li := strings.Index(s[from:], literal)
	ei := strings.Index(s[from:], escaped)
	switch {
	case li < 0 && ei < 0:
		return -1, 0
	case ei < 0 || (li >= 0 && li <= ei):
		return from + li, len(literal)
	default:
		return from + ei, len(escaped)
	}
}

// extractThinkBlocks replaces every closed <think>...</think> span (literal or
// entity-escaped) with an opaque placeholder, storing the decoded inner text.
// Only after all closed blocks are out does streaming mode look for a dangling
// opener, so a closed block is never mistaken for an unterminated one.
func extractThinkBlocks(text string, streaming bool, out *[]thinkBlock) string {
	var b strings.Builder
	pos := 0
	for {
		open, openLen := findThinkTag(text, pos, thinkOpen, thinkOpenEscaped)
		if open < 0 {
			break
		}
		close_, closeLen := findThinkTag(text, open+openLen, thinkClose, thinkCloseEscaped)
		if close_ < 0 {
			break
		}
		inner := decodeEntities(text[open+openLen : close_])
		b.WriteString(text[pos:open])
		b.WriteString(thinkPlaceholder(len(*out), false))
		*out = append(*out, thinkBlock{content: inner})
		pos = close_ + closeLen
	}
	b.WriteString(text[pos:])
	text = b.String()

	if streaming {
		if open, openLen := findThinkTag(text, 0, thinkOpen, thinkOpenEscaped); open >= 0 {
			inner := decodeEntities(text[open+openLen:])
			ph := thinkPlaceholder(len(*out), true)
			*out = append(*out, thinkBlock{content: inner, streaming: true})
			text = text[:open] + ph
		}
	}
	return text
}

func decodeEntities(s string) string {
	return html.UnescapeString(s)
}

type codeBlock struct {
	language  string
	code      string // HTML-escaped body
	streaming bool
}

func codePlaceholder(n int) string {
	return fmt.Sprintf("__CODE_BLOCK_%d__", n)
}

// extractCodeBlocks runs after escaping, so bodies stay HTML-safe. A fence
// opener may carry a language identifier up to the first newline. Final mode
// ignores an unterminated fence; streaming mode turns it into a distinct
// still-streaming block.
func extractCodeBlocks(text string, streaming bool, out *[]codeBlock) string {
	var b strings.Builder
	pos := 0
	for {
		open := strings.Index(text[pos:], fence)
		if open < 0 {
			break
		}
		open += pos
		rest := text[open+len(fence):]
		lang := ""
		bodyStart := open + len(fence)
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			candidate := strings.TrimSpace(rest[:nl])
			if candidate != "" && !strings.Contains(candidate, " ") {
				lang = candidate
			}
			if lang != "" || candidate == "" {
				bodyStart = open + len(fence) + nl + 1
			}
		}
		close_ := strings.Index(text[bodyStart:], fence)
		if close_ < 0 {
			if streaming {
				body := text[bodyStart:]
				ph := codePlaceholder(len(*out))
				*out = append(*out, codeBlock{language: lang, code: trimBlankEdges(body), streaming: true})
				return b.String() + text[pos:open] + ph
			}
			break
		}
		body := text[bodyStart : bodyStart+close_]
		b.WriteString(text[pos:open])
		b.WriteString(codePlaceholder(len(*out)))
		*out = append(*out, codeBlock{language: lang, code: trimBlankEdges(body)})
		pos = bodyStart + close_ + len(fence)
	}
	b.WriteString(text[pos:])
	return b.String()
}

// trimBlankEdges strips leading and trailing blank lines from a code body,
// leaving inner blank lines and indentation intact.
func trimBlankEdges(s string) string {
	lines := strings.Split(s, "\n")
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

func (f *Formatter) renderCodeBlock(cb codeBlock) string {
	langClass := ""
	langBadge := ""
	if cb.language != "" {
		langClass = fmt.Sprintf(` class="language-%s"`, cb.language)
		langBadge = fmt.Sprintf(`<span class="code-lang">%s</span>`, cb.language)
	}
	if cb.streaming {
		return fmt.Sprintf(
			`<div class="code-block code-block-streaming">%s<pre><code%s>%s</code></pre></div>`,
			langBadge, langClass, cb.code)
	}
	body := cb.code
	if f.highlighter != nil {
		if h, ok := f.highlighter.Highlight(html.UnescapeString(cb.code), cb.language); ok {
			body = h
		}
	}
	return fmt.Sprintf(
		`<div class="code-block">%s<button class="copy-code-btn" data-code="%s">Copy</button><pre><code%s>%s</code></pre></div>`,
		langBadge, cb.code, langClass, body)
}

// thinkPreviewLen bounds the collapsed preview of a think block.
const thinkPreviewLen = 80

func renderThinkBlock(tb thinkBlock) string {
	if tb.streaming {
		return `<div class="think-block think-block-streaming"><div class="think-header think-pulsing">Thinking</div></div>`
	}
	escaped := html.EscapeString(tb.content)
	preview := tb.content
	if runes := []rune(preview); len(runes) > thinkPreviewLen {
		preview = string(runes[:thinkPreviewLen]) + "…"
	}
	return fmt.Sprintf(
		`<details class="think-block"><summary class="think-header">Thought process<span class="think-preview">%s</span></summary><div class="think-content">%s</div></details>`,
		html.EscapeString(preview), strings.ReplaceAll(escaped, "\n", "<br>"))
}
