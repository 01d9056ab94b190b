package macro

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// TokenTable maps placeholder strings (already delimiter-wrapped, e.g.
// "@NAME@") to replacement values. Iteration order is insertion order,
// which for the global table is macro-definition order; substitution
// behavior for chained tokens depends on it.
type TokenTable struct {
	names  []string
	values map[string]string
}

func NewTokenTable() *TokenTable {
	return &TokenTable{values: make(map[string]string)}
}

// Set records a replacement, overwriting any previous value for the same
// placeholder but keeping its original position in the order.
func (t *TokenTable) Set(name, value string) {
	if _, ok := t.values[name]; !ok {
		t.names = append(t.names, name)
	}
	t.values[name] = value
}

func (t *TokenTable) Get(name string) (string, bool) {
	v, ok := t.values[name]
	return v, ok
}

func (t *TokenTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Names returns the placeholders in table order.
func (t *TokenTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// replaceAll applies every replacement to s by repeated literal
// substitution, in table order. Overlapping placeholders are not
// special-cased: an earlier token may consume characters a later token's
// placeholder needed.
func (t *TokenTable) replaceAll(s string) string {
	for _, name := range t.names {
		if strings.Contains(s, name) {
			s = strings.ReplaceAll(s, name, t.values[name])
		}
	}
	return s
}

// expandNestedTokens resolves token values that reference other tokens.
// A single pass over all pairs suffices: each token's turn rewrites every
// value, so acyclic chains propagate fully regardless of table order, and
// a reference cycle surfaces as a self-containing value mid-pass. A token
// whose value contains its own placeholder is a configuration error.
func expandNestedTokens(tokens *TokenTable) error {
	for _, name := range tokens.names {
		if strings.Contains(tokens.values[name], name) {
			return fmt.Errorf("%w: token %q cannot contain itself", ErrSelfReferentialToken, name)
		}
	}
	for _, name := range tokens.names {
		for _, current := range tokens.names {
			value := tokens.values[current]
			if !strings.Contains(value, name) {
				continue
			}
			if name == current {
				return fmt.Errorf("%w: token %q cannot contain itself", ErrSelfReferentialToken, name)
			}
			tokens.values[current] = strings.ReplaceAll(value, name, tokens.values[name])
		}
	}
	return nil
}

// expandTokensForEl rewrites el's text content and attribute values, and
// recursively those of every descendant, with the table's replacements.
// Only the character data leading the first child is rewritten, matching
// the placeholder conventions of the document format.
func expandTokensForEl(el *etree.Element, tokens *TokenTable) {
	if tokens.Len() == 0 {
		return
	}
	if text := el.Text(); text != "" {
		if replaced := tokens.replaceAll(text); replaced != text {
			el.SetText(replaced)
		}
	}
	for i := range el.Attr {
		if replaced := tokens.replaceAll(el.Attr[i].Value); replaced != el.Attr[i].Value {
			el.Attr[i].Value = replaced
		}
	}
	for _, child := range el.ChildElements() {
		expandTokensForEl(child, tokens)
	}
}
