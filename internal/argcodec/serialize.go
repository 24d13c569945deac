package argcodec

import (
	"strings"

	"llamadeskd/internal/catalog"
)

// occurrence marks where a setting appears in a token slice and how many
// tokens it spans (two when a detached value token follows).
type occurrence struct {
	idx  int
	span int
}

// findOccurrences locates every appearance of def's canonical argument or any
// alias, in bare or equals form. For value-bearing kinds a following token
// that does not start with '-' is counted as the occurrence's value token.
func findOccurrences(toks []string, def *catalog.SettingDefinition) []occurrence {
	names := make(map[string]bool, 1+len(def.Aliases))
	for _, t := range def.Tokens() {
		names[t] = true
	}
	var occs []occurrence
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		equalsForm := false
		if !names[tok] {
			eq := strings.IndexByte(tok, '=')
			if eq < 0 || !names[tok[:eq]] {
				continue
			}
			equalsForm = true
		}
		occ := occurrence{idx: i, span: 1}
		if !equalsForm && def.Kind().TakesValue() && i+1 < len(toks) && !strings.HasPrefix(toks[i+1], "-") {
			occ.span = 2
			i++
		}
		occs = append(occs, occ)
	}
	return occs
}

// applyDefinition rewrites toks for one setting: when replacement is non-nil
// the first occurrence is replaced in place (or the replacement appended when
// the setting is absent) and duplicates are deleted; when replacement is nil
// every occurrence is removed.
func applyDefinition(toks []string, def *catalog.SettingDefinition, replacement []string) []string {
	occs := findOccurrences(toks, def)
	if len(occs) == 0 {
		if replacement != nil {
			return append(toks, replacement...)
		}
		return toks
	}
	drop := make(map[int]bool)
	for _, occ := range occs {
		for s := 0; s < occ.span; s++ {
			drop[occ.idx+s] = true
		}
	}
	out := make([]string, 0, len(toks))
	for i, t := range toks {
		if i == occs[0].idx && replacement != nil {
			out = append(out, replacement...)
		}
		if drop[i] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Serialize merges a settings state into an existing argument string. Tokens
// the catalog does not recognize keep their original relative order; catalog
// settings are replaced in place at their first occurrence (canonical or
// alias, always re-emitted under the canonical argument) or appended in
// catalog declaration order. Enabled value-bearing settings with an explicit
// empty value serialize to nothing, same as disabled; an enabled setting that
// never received a value falls back to the catalog default.
func Serialize(st *State, cat *catalog.Catalog, existing string) string {
	toks := Tokenize(existing)
	for _, def := range cat.Definitions() {
		d := def
		entry, tracked := st.Get(d.ID)
		if !tracked || !entry.Enabled {
			toks = applyDefinition(toks, &d, nil)
			continue
		}
		if !d.Kind().TakesValue() {
			toks = applyDefinition(toks, &d, []string{d.Argument})
			continue
		}
		value := strings.TrimSpace(entry.Value)
		if entry.HasValue && value == "" {
			// Explicitly emptied: equivalent to disabled.
			toks = applyDefinition(toks, &d, nil)
			continue
		}
		if !entry.HasValue {
			value = strings.TrimSpace(d.DefaultString())
			if value == "" {
				toks = applyDefinition(toks, &d, nil)
				continue
			}
		}
		toks = applyDefinition(toks, &d, []string{d.Argument, value})
	}
	return Join(toks)
}
