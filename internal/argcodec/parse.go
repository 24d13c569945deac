package argcodec

import (
	"strings"

	"llamadeskd/internal/catalog"
)

// Parse builds a structured settings state from an argument string. Tokens are
// resolved against the catalog's canonical arguments and aliases, with an
// equals-form fallback ("-c=4096"). Value-bearing settings consume the next
// token as their value when it does not itself look like a flag. Tokens
// matching no definition are dropped from the state; round-tripping them is
// the serializer's job, which merges against the original string.
func Parse(argString string, cat *catalog.Catalog) *State {
	st := NewState()
	toks := Tokenize(argString)
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		def, ok := cat.Lookup(tok)
		value := ""
		hasValue := false
		if !ok {
			if eq := strings.IndexByte(tok, '='); eq >= 0 {
				if d, found := cat.Lookup(tok[:eq]); found {
					def, ok = d, true
					value = tok[eq+1:]
					hasValue = true
				}
			}
		}
		if !ok {
			continue
		}
		if !def.Kind().TakesValue() {
			// Flags carry no value; equals-form payloads are discarded.
			st.Set(def.ID, Entry{Enabled: true})
			continue
		}
		if !hasValue && i+1 < len(toks) && !strings.HasPrefix(toks[i+1], "-") {
			value = toks[i+1]
			hasValue = true
			i++
		}
		st.Set(def.ID, Entry{Enabled: true, Value: value, HasValue: hasValue})
	}
	return st
}
