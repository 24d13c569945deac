// Package argcodec translates between a flat llama-server argument string and
// a structured per-setting state, driven by a catalog of setting definitions.
// Both directions are total functions: any input string parses, any state
// serializes, and unknown tokens survive the round trip untouched.
package argcodec

import "strings"

// Tokenize splits an argument string into tokens. Spaces separate tokens
// outside quotes; a single or double quote opens a quoted span closed only by
// the same character, with the quote characters themselves stripped. An
// unterminated quote consumes the rest of the input as part of the current
// token. No escape sequences are recognized.
func Tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ' ':
			if cur.Len() > 0 {
				toks = append(toks, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		toks = append(toks, cur.String())
	}
	return toks
}

// Join renders tokens back into a single argument string, double-quoting any
// token containing a space. Byte-identical quoting with the source string is
// not guaranteed, only semantic equivalence.
func Join(toks []string) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		switch {
		case strings.ContainsRune(t, ' ') && !strings.ContainsRune(t, '"'):
			parts[i] = `"` + t + `"`
		case strings.ContainsRune(t, ' '):
			parts[i] = `'` + t + `'`
		default:
			parts[i] = t
		}
	}
	return strings.Join(parts, " ")
}
