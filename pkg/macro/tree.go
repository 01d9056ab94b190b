package macro

import (
	"github.com/beevik/etree"
)

// findFirst returns the first descendant of el with the given tag in
// depth-first document order, or nil. The element itself is never a match.
func findFirst(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
		if found := findFirst(child, tag); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every descendant of el with the given tag in depth-first
// document order. The element itself is never included.
func findAll(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			out = append(out, child)
		}
		out = append(out, findAll(child, tag)...)
	}
	return out
}

// childIndex finds el's position among its parent's child tokens by
// identity scan. Returns -1 if el has no parent or is not found.
func childIndex(parent, el *etree.Element) int {
	if parent == nil {
		return -1
	}
	for i, tok := range parent.Child {
		if child, ok := tok.(*etree.Element); ok && child == el {
			return i
		}
	}
	return -1
}

// replaceElement splices deep copies of targets into query's parent at
// query's position, preserving order, then removes query.
func replaceElement(query *etree.Element, targets []*etree.Element) {
	parent := query.Parent()
	idx := childIndex(parent, query)
	if idx < 0 {
		return
	}
	for _, target := range targets {
		idx++
		parent.InsertChildAt(idx, target.Copy())
	}
	parent.RemoveChild(query)
}

// setChildren replaces all of el's children with newChildren. Elements that
// belong to another tree are reparented.
func setChildren(el *etree.Element, newChildren []*etree.Element) {
	for i := len(el.Child) - 1; i >= 0; i-- {
		el.RemoveChildAt(i)
	}
	for _, child := range newChildren {
		el.AddChild(child)
	}
}

// stripComments removes comment nodes from el and every descendant.
func stripComments(el *etree.Element) {
	for i := len(el.Child) - 1; i >= 0; i-- {
		switch child := el.Child[i].(type) {
		case *etree.Comment:
			el.RemoveChildAt(i)
		case *etree.Element:
			stripComments(child)
		}
	}
}
