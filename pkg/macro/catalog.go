package macro

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Reserved tags and attributes of the document format.
const (
	TagMacros = "macros"
	TagMacro  = "macro"
	TagImport = "import"
	TagExpand = "expand"
	TagYield  = "yield"

	AttrName  = "name"
	AttrType  = "type"
	AttrMacro = "macro"

	// Macro kinds.
	TypeToken    = "token"
	TypeXML      = "xml"
	TypeTemplate = "template"

	// Parameter declaration attributes on xml macros.
	attrTokens     = "tokens"
	attrTokenPfx   = "token_"
	attrTokenQuote = "token_quote"

	// DefaultTokenQuote is the placeholder delimiter unless a macro
	// overrides it with token_quote.
	DefaultTokenQuote = "@"
)

// shorthandTags are the kind-specific shorthand forms, in the order the
// catalog normalizes them. The order matters: it decides both
// last-writer-wins merging and the global token table order.
var shorthandTags = []string{TypeTemplate, TypeXML, TypeToken}

// macrosEl returns the document's macro container, or nil. At most one
// container is honored; the first wins.
func macrosEl(root *etree.Element) *etree.Element {
	return root.SelectElement(TagMacros)
}

// macroElementsOfType returns the container's direct <macro> children whose
// type matches kind, in document order. The container must already be
// normalized (shorthand tags rewritten, missing types defaulted).
func macroElementsOfType(root *etree.Element, kind string) []*etree.Element {
	container := macrosEl(root)
	if container == nil {
		return nil
	}
	var out []*etree.Element
	for _, el := range container.SelectElements(TagMacro) {
		if el.SelectAttrValue(AttrType, "") == kind {
			out = append(out, el)
		}
	}
	return out
}

// tokenTable builds the global token table from token-kind macros. Token
// macro names are the placeholder strings themselves (e.g. "@VERSION@");
// values are the elements' text content. Later definitions of the same
// name overwrite earlier ones.
func tokenTable(root *etree.Element) *TokenTable {
	tokens := NewTokenTable()
	for _, el := range macroElementsOfType(root, TypeToken) {
		tokens.Set(el.SelectAttrValue(AttrName, ""), el.Text())
	}
	return tokens
}

// xmlMacros builds the name-to-definition catalog of xml-kind macros.
// Later definitions overwrite earlier ones with the same name.
func xmlMacros(root *etree.Element) map[string]*XMLMacroDef {
	defs := make(map[string]*XMLMacroDef)
	for _, el := range macroElementsOfType(root, TypeXML) {
		defs[el.SelectAttrValue(AttrName, "")] = newXMLMacroDef(el)
	}
	return defs
}

// normalizeEmbedded collects the container's directly defined macros,
// rewriting shorthand forms in place: a <macro> child without a type gets
// type="xml"; <template>, <xml> and <token> children get the matching type
// attribute and are retagged <macro>. Returns explicit macros first in
// document order, then shorthands grouped by tag.
func normalizeEmbedded(container *etree.Element) []*etree.Element {
	var out []*etree.Element
	for _, el := range container.SelectElements(TagMacro) {
		if el.SelectAttr(AttrType) == nil {
			el.CreateAttr(AttrType, TypeXML)
		}
		out = append(out, el)
	}
	for _, tag := range shorthandTags {
		for _, el := range container.SelectElements(tag) {
			el.CreateAttr(AttrType, tag)
			el.Tag = TagMacro
			out = append(out, el)
		}
	}
	return out
}

// param is one declared macro parameter: the placeholder delimiter, the
// default value, and whether a caller must supply it.
type param struct {
	name     string
	quote    string
	value    string
	required bool
}

// XMLMacroDef is an xml-kind macro: its template element plus the
// parameter table parsed from its attributes. Required parameters come
// from the comma-separated tokens attribute; optional ones from token_NAME
// attributes whose values are the defaults. token_quote overrides the
// placeholder delimiter for the whole macro.
type XMLMacroDef struct {
	Element *etree.Element
	params  []param
}

func newXMLMacroDef(el *etree.Element) *XMLMacroDef {
	quote := el.SelectAttrValue(attrTokenQuote, DefaultTokenQuote)
	def := &XMLMacroDef{Element: el}
	for _, attr := range el.Attr {
		switch {
		case attr.Key == attrTokens:
			for _, name := range strings.Split(attr.Value, ",") {
				def.params = append(def.params, param{name: name, quote: quote, required: true})
			}
		case attr.Key == attrTokenQuote:
			// Delimiter override, not a parameter.
		case strings.HasPrefix(attr.Key, attrTokenPfx):
			def.params = append(def.params, param{
				name:  strings.TrimPrefix(attr.Key, attrTokenPfx),
				quote: quote,
				value: attr.Value,
			})
		}
	}
	return def
}

// macroTokens builds the per-expansion token table for one placeholder:
// each parameter takes the placeholder's attribute of the same name if
// present, else its default. A required parameter with no supplied
// attribute is an error. Placeholder strings are the delimiter-wrapped,
// uppercased parameter names.
func (d *XMLMacroDef) macroTokens(expandEl *etree.Element) (*TokenTable, error) {
	tokens := NewTokenTable()
	for _, p := range d.params {
		value := p.value
		if attr := expandEl.SelectAttr(p.name); attr != nil {
			value = attr.Value
		} else if p.required {
			return nil, fmt.Errorf("%w: [%s]", ErrMissingRequiredParam, p.name)
		}
		tokens.Set(p.quote+strings.ToUpper(p.name)+p.quote, value)
	}
	return tokens, nil
}
