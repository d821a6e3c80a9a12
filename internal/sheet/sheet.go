// Package sheet implements the property sheet interpreter: loading a
// language's src/definitions.json into match rules, and a stateful
// cursor over a parsed syntax tree that exposes each visited node's
// resolved property bag. This is the adapter between an arbitrary
// tree-sitter grammar and the generic scope walker in internal/walker.
package sheet

import (
	"encoding/json"
	"fmt"
	"os"
)

// Properties is a node's resolved string->string property bag.
type Properties map[string]string

// Has reports whether key is present, regardless of value.
func (p Properties) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Is reports whether key is present and equal to value.
func (p Properties) Is(key, value string) bool {
	v, ok := p[key]
	return ok && v == value
}

// rule is one entry of definitions.json: a node-type (and optional
// field-name) pattern paired with the properties it contributes.
type rule struct {
	Type       string            `json:"type"`
	Field      string            `json:"field,omitempty"`
	Properties map[string]string `json:"properties"`
}

// Sheet is a compiled property sheet for one language.
type Sheet struct {
	rules []rule
}

// Load parses a definitions.json file into a Sheet.
func Load(path string) (*Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading property sheet %s: %w", path, err)
	}
	return Parse(data)
}

// Parse compiles raw definitions.json content into a Sheet.
func Parse(data []byte) (*Sheet, error) {
	var rules []rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing property sheet: %w", err)
	}
	return &Sheet{rules: rules}, nil
}

// Match returns the property bag for a node of the given tree-sitter
// type, occupying the given field name within its parent (empty if
// the node is not held in a named field). Rules are applied in file
// order and merged key-by-key, so a later rule for the same type
// overrides an earlier one's value for a shared key — the same
// cascade semantics spec.md §4.C relies on for module-part=name
// ("first occurrence wins; later occurrences overwrite" is a property
// of the walker, not the sheet; the sheet itself returns the bag merged
// in rule order, so a later rule wins on a shared key whether or not it
// names a field).
func (s *Sheet) Match(nodeType, field string) Properties {
	props := Properties{}
	for _, r := range s.rules {
		if r.Type != nodeType {
			continue
		}
		if r.Field != "" && r.Field != field {
			continue
		}
		for k, v := range r.Properties {
			props[k] = v
		}
	}
	return props
}
