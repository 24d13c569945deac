// Package catalog holds the declarative description of launch settings: which
// command-line flags exist, what kind of value they carry, and which alias
// spellings are accepted on parse.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind classifies how a setting behaves on the command line.
type Kind string

const (
	// KindFlag is a boolean switch represented solely by token presence.
	KindFlag Kind = "flag"
	// KindToggle is semantically boolean; same wire behavior as KindFlag.
	KindToggle Kind = "toggle"
	// KindSlider is a bounded numeric value.
	KindSlider Kind = "slider"
	// KindSelect is an enumerated string value.
	KindSelect Kind = "select"
	// KindNumber is a free numeric value with optional bounds.
	KindNumber Kind = "number"
)

// TakesValue reports whether the setting consumes a value token.
func (k Kind) TakesValue() bool {
	return k != KindFlag && k != KindToggle
}

// Option is one choice of a select setting.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// SettingDefinition is a single immutable catalog entry.
type SettingDefinition struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Type        Kind   `json:"type" yaml:"type"`
	// IsFlag forces flag behavior regardless of the declared type. Kept for
	// compatibility with the UI catalog document schema.
	IsFlag   bool     `json:"isFlag,omitempty" yaml:"isFlag,omitempty"`
	Argument string   `json:"argument" yaml:"argument"`
	Aliases  []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Default  any      `json:"default,omitempty" yaml:"default,omitempty"`
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Step     *float64 `json:"step,omitempty" yaml:"step,omitempty"`
	Options  []Option `json:"options,omitempty" yaml:"options,omitempty"`
}

// Kind returns the effective kind, honoring the isFlag override.
func (d *SettingDefinition) Kind() Kind {
	if d.IsFlag {
		return KindFlag
	}
	return d.Type
}

// Tokens returns the canonical argument followed by every alias.
func (d *SettingDefinition) Tokens() []string {
	out := make([]string, 0, 1+len(d.Aliases))
	out = append(out, d.Argument)
	out = append(out, d.Aliases...)
	return out
}

// DefaultString renders the default value as it would appear on the command line.
func (d *SettingDefinition) DefaultString() string {
	if d.Default == nil {
		return ""
	}
	switch v := d.Default.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return trimFloat(v)
	case float32:
		return trimFloat(float64(v))
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprint(v)
	}
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}

// Catalog is an ordered set of setting definitions with a token index.
type Catalog struct {
	defs  []SettingDefinition
	index map[string]*SettingDefinition
}

// New builds a catalog from definitions, validating uniqueness of ids and of
// argument/alias tokens across the whole set. Duplicate tokens are rejected
// rather than letting the last-indexed definition win.
func New(defs []SettingDefinition) (*Catalog, error) {
	c := &Catalog{defs: defs, index: make(map[string]*SettingDefinition)}
	ids := make(map[string]bool, len(defs))
	for i := range c.defs {
		d := &c.defs[i]
		if strings.TrimSpace(d.ID) == "" {
			return nil, fmt.Errorf("catalog: definition %d has empty id", i)
		}
		if strings.TrimSpace(d.Argument) == "" {
			return nil, fmt.Errorf("catalog: setting %q has empty argument", d.ID)
		}
		if ids[d.ID] {
			return nil, fmt.Errorf("catalog: duplicate id %q", d.ID)
		}
		ids[d.ID] = true
		for _, tok := range d.Tokens() {
			if prev, ok := c.index[tok]; ok {
				return nil, fmt.Errorf("catalog: token %q claimed by both %q and %q", tok, prev.ID, d.ID)
			}
			c.index[tok] = d
		}
		if d.Kind() == KindSelect && len(d.Options) == 0 {
			return nil, fmt.Errorf("catalog: select setting %q has no options", d.ID)
		}
		if d.Min != nil && d.Max != nil && *d.Min > *d.Max {
			return nil, fmt.Errorf("catalog: setting %q has min > max", d.ID)
		}
	}
	return c, nil
}

// Definitions returns the entries in declaration order.
func (c *Catalog) Definitions() []SettingDefinition { return c.defs }

// Lookup resolves an argument or alias token to its definition.
func (c *Catalog) Lookup(token string) (*SettingDefinition, bool) {
	d, ok := c.index[token]
	return d, ok
}

// ByID returns the definition with the given id.
func (c *Catalog) ByID(id string) (*SettingDefinition, bool) {
	for i := range c.defs {
		if c.defs[i].ID == id {
			return &c.defs[i], true
		}
	}
	return nil, false
}

// Load reads a catalog document based on its extension.
// Supports: .yaml/.yml, .json
func Load(path string) (*Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("empty catalog path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs []SettingDefinition
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &defs); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(b, &defs); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported catalog extension: %s", ext)
	}
	return New(defs)
}
