package argcodec

import "llamadeskd/pkg/types"

// Entry is the working state of one setting.
type Entry struct {
	Enabled bool
	// Value is the explicit value for value-bearing kinds. HasValue
	// distinguishes "never set" (serialization falls back to the catalog
	// default) from "explicitly set to empty" (serialization removes the
	// setting entirely).
	Value    string
	HasValue bool
}

// State maps setting ids to their working entries. It is created empty or by
// Parse, mutated by UI events, and serialized back on every mutation.
type State struct {
	m map[string]Entry
}

// NewState returns an empty settings state.
func NewState() *State {
	return &State{m: make(map[string]Entry)}
}

// Get returns the entry for id.
func (s *State) Get(id string) (Entry, bool) {
	e, ok := s.m[id]
	return e, ok
}

// Set stores an entry verbatim.
func (s *State) Set(id string, e Entry) {
	s.m[id] = e
}

// Enable marks a setting enabled, keeping any prior value.
func (s *State) Enable(id string) {
	e := s.m[id]
	e.Enabled = true
	s.m[id] = e
}

// Disable marks a setting disabled, keeping any prior value.
func (s *State) Disable(id string) {
	e := s.m[id]
	e.Enabled = false
	s.m[id] = e
}

// SetValue stores an explicit value and enables the setting.
func (s *State) SetValue(id, value string) {
	s.m[id] = Entry{Enabled: true, Value: value, HasValue: true}
}

// Len reports the number of tracked settings.
func (s *State) Len() int { return len(s.m) }

// Equal reports whether two states agree on presence and values.
func (s *State) Equal(o *State) bool {
	if len(s.m) != len(o.m) {
		return false
	}
	for id, e := range s.m {
		oe, ok := o.m[id]
		if !ok || oe != e {
			return false
		}
	}
	return true
}

// Wire converts the state to its API representation.
func (s *State) Wire() map[string]types.SettingState {
	out := make(map[string]types.SettingState, len(s.m))
	for id, e := range s.m {
		out[id] = types.SettingState{Enabled: e.Enabled, Value: e.Value}
	}
	return out
}

// FromWire builds a state from the API representation. Every supplied value is
// treated as explicit, including empty strings.
func FromWire(w map[string]types.SettingState) *State {
	s := NewState()
	for id, st := range w {
		s.m[id] = Entry{Enabled: st.Enabled, Value: st.Value, HasValue: st.Value != "" || st.Enabled}
	}
	return s
}
