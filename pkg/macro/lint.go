package macro

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// IssueKind classifies a lint finding.
type IssueKind string

const (
	IssueMissingMacroAttr IssueKind = "missing_macro_attribute"
	IssueUndefinedMacro   IssueKind = "undefined_macro"
	IssueMissingParam     IssueKind = "missing_required_parameter"
	IssueDuplicateMacro   IssueKind = "duplicate_macro"
	IssueUnusedMacro      IssueKind = "unused_macro"
)

// Issue is one static finding about a document's macro usage.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Macro   string    `json:"macro,omitempty"`
	Message string    `json:"message"`
}

// Lint statically checks a tree's macro usage without expanding anything.
// The tree is not mutated. For findings about imported macros to be
// accurate, imports should already be merged into the container (as
// LoadWithReferences does); on a tree with unresolved imports the
// undefined-macro check is skipped.
func Lint(root *etree.Element) []Issue {
	var issues []Issue

	type defInfo struct {
		def   *XMLMacroDef
		kind  string
		count int
	}
	defs := make(map[string]*defInfo)
	var order []string

	if container := macrosEl(root); container != nil {
		for _, el := range container.ChildElements() {
			name := el.SelectAttrValue(AttrName, "")
			kind := ""
			switch el.Tag {
			case TagMacro:
				kind = el.SelectAttrValue(AttrType, TypeXML)
			case TypeXML, TypeToken, TypeTemplate:
				kind = el.Tag
			default:
				continue
			}
			if existing, ok := defs[name]; ok {
				existing.count++
				continue
			}
			info := &defInfo{kind: kind, count: 1}
			if kind == TypeXML {
				info.def = newXMLMacroDef(el)
			}
			defs[name] = info
			order = append(order, name)
		}
	}

	for _, name := range order {
		if info := defs[name]; info.count > 1 {
			issues = append(issues, Issue{
				Kind:    IssueDuplicateMacro,
				Macro:   name,
				Message: fmt.Sprintf("macro %q is defined %d times; the last definition wins", name, info.count),
			})
		}
	}

	hasImports := len(ImportedMacroPaths(root)) > 0
	used := make(map[string]bool)

	for _, expandEl := range findAll(root, TagExpand) {
		nameAttr := expandEl.SelectAttr(AttrMacro)
		if nameAttr == nil {
			issues = append(issues, Issue{
				Kind:    IssueMissingMacroAttr,
				Message: "expand element has no macro attribute",
			})
			continue
		}
		name := nameAttr.Value
		used[name] = true

		info, ok := defs[name]
		if !ok {
			if !hasImports {
				issues = append(issues, Issue{
					Kind:    IssueUndefinedMacro,
					Macro:   name,
					Message: fmt.Sprintf("no macro named %q is defined", name),
				})
			}
			continue
		}
		if info.def == nil {
			continue
		}
		var missing []string
		for _, p := range info.def.params {
			if p.required && expandEl.SelectAttr(p.name) == nil {
				missing = append(missing, p.name)
			}
		}
		if len(missing) > 0 {
			issues = append(issues, Issue{
				Kind:    IssueMissingParam,
				Macro:   name,
				Message: fmt.Sprintf("expansion of %q is missing required parameters: %s", name, strings.Join(missing, ", ")),
			})
		}
	}

	for _, name := range order {
		info := defs[name]
		if info.kind == TypeXML && !used[name] {
			issues = append(issues, Issue{
				Kind:    IssueUnusedMacro,
				Macro:   name,
				Message: fmt.Sprintf("xml macro %q is never expanded", name),
			})
		}
	}

	return issues
}
