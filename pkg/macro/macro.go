package macro

import (
	"fmt"

	"github.com/beevik/etree"
)

// LoadWithReferences parses the document at path and performs full macro
// preprocessing: import resolution, token expansion, recursive macro
// expansion and finalization. It returns the mutated tree and the
// transitive list of imported macro file paths, in depth-first declaration
// order, for the caller's dependency bookkeeping.
func LoadWithReferences(path string) (*etree.Document, []string, error) {
	doc, err := RawTree(path)
	if err != nil {
		return nil, nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, nil, fmt.Errorf("parse %s: document has no root element", path)
	}

	macroPaths, err := preprocess(root, path)
	if err != nil {
		return nil, nil, err
	}
	return doc, macroPaths, nil
}

// preprocess runs the full pipeline on a parsed root: import resolution,
// token table construction, macro expansion, definition stripping, global
// token rewrite.
func preprocess(root *etree.Element, path string) ([]string, error) {
	macroPaths, err := importMacros(root, path)
	if err != nil {
		return nil, err
	}

	tokens := tokenTable(root)
	if err := expandNestedTokens(tokens); err != nil {
		return nil, err
	}

	if err := expandMacrosIn([]*etree.Element{root}, xmlMacros(root), tokens); err != nil {
		return nil, err
	}

	stripMacroDefinitions(root)
	expandTokensForEl(root, tokens)
	return macroPaths, nil
}

// Load is LoadWithReferences without the import-path bookkeeping.
func Load(path string) (*etree.Document, error) {
	doc, _, err := LoadWithReferences(path)
	return doc, err
}

// RawTree parses the document at path without any macro or token
// processing. Whitespace is preserved; comments are stripped.
func RawTree(path string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	stripComments(&doc.Element)
	return doc, nil
}

// TemplateMacroParams scans root's macro container for template-kind
// macros and returns their payloads by name, for direct use by the
// downstream templating engine. The tree is not mutated.
func TemplateMacroParams(root *etree.Element) map[string]string {
	params := make(map[string]string)
	for _, el := range macroElementsOfType(root, TypeTemplate) {
		params[el.SelectAttrValue(AttrName, "")] = el.Text()
	}
	return params
}
