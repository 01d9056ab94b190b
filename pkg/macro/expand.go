package macro

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// Guards against cyclic macro references. The macro graph of a well-formed
// document is acyclic; either limit being hit means a macro reaches itself,
// directly (depth) or via placeholders re-surfacing in spliced output
// (budget).
const (
	MaxExpandDepth = 64
	maxExpansions  = 65536
)

// expander performs macro expansion over one document with a fixed catalog
// and global token table.
type expander struct {
	macros    map[string]*XMLMacroDef
	tokens    *TokenTable
	remaining int
}

// expandMacrosIn repeatedly locates the first <expand> placeholder in each
// element, depth-first in document order, and replaces it until none
// remain.
func expandMacrosIn(elements []*etree.Element, macros map[string]*XMLMacroDef, tokens *TokenTable) error {
	if len(macros) == 0 && tokens.Len() == 0 {
		return nil
	}
	e := &expander{macros: macros, tokens: tokens, remaining: maxExpansions}
	return e.expandAll(elements, 0)
}

func (e *expander) expandAll(elements []*etree.Element, depth int) error {
	for _, element := range elements {
		for {
			expandEl := findFirst(element, TagExpand)
			if expandEl == nil {
				break
			}
			if err := e.expandOne(expandEl, depth); err != nil {
				return err
			}
		}
	}
	return nil
}

// expandOne replaces one placeholder with an instantiated copy of the
// macro it names.
func (e *expander) expandOne(expandEl *etree.Element, depth int) error {
	if depth >= MaxExpandDepth || e.remaining <= 0 {
		return fmt.Errorf("%w: expansion of macro %q did not terminate",
			ErrMacroDepthExceeded, expandEl.SelectAttrValue(AttrMacro, ""))
	}
	e.remaining--

	nameAttr := expandEl.SelectAttr(AttrMacro)
	if nameAttr == nil {
		return ErrMissingMacroName
	}
	def, ok := e.macros[nameAttr.Value]
	if !ok {
		return fmt.Errorf("%w: no macro named %q found, known macros are %s",
			ErrUnknownMacro, nameAttr.Value, strings.Join(knownNames(e.macros), ", "))
	}

	// Copy, never move: the same macro may be expanded many times and each
	// instance must be structurally independent.
	expanded := def.Element.Copy()
	expandYields(expanded, expandEl)

	// Macros may reference other macros inside their own bodies.
	if err := e.expandAll(expanded.ChildElements(), depth+1); err != nil {
		return err
	}

	macroTokens, err := def.macroTokens(expandEl)
	if err != nil {
		return err
	}
	if macroTokens.Len() > 0 {
		for _, child := range expanded.ChildElements() {
			expandTokensForEl(child, macroTokens)
		}
	}

	replaceElement(expandEl, expanded.ChildElements())
	return nil
}

// expandYields replaces every <yield/> below macroEl with deep copies of
// the placeholder's children, each occurrence in place among its siblings
// and each copy independent of the others.
func expandYields(macroEl, expandEl *etree.Element) {
	yields := findAll(macroEl, TagYield)
	children := expandEl.ChildElements()
	for _, yieldEl := range yields {
		replaceElement(yieldEl, children)
	}
}

func knownNames(macros map[string]*XMLMacroDef) []string {
	names := make([]string, 0, len(macros))
	for name := range macros {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stripMacroDefinitions removes every remaining macro-definition element
// except template-kind ones, which carry payload for the downstream
// templating engine and must survive.
func stripMacroDefinitions(root *etree.Element) {
	for _, el := range findAll(root, TagMacro) {
		if el.SelectAttrValue(AttrType, "") != TypeTemplate {
			if parent := el.Parent(); parent != nil {
				parent.RemoveChild(el)
			}
		}
	}
}
