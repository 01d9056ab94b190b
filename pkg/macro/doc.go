// Package macro preprocesses tool-definition XML documents.
//
// A document may carry a single <macros> container holding named macro
// definitions and <import> declarations pointing at shared macro files.
// Elsewhere in the document, <expand macro="name"> placeholders instantiate
// xml macros, <yield/> markers inside a macro body splice in the
// placeholder's children, and @TOKEN@ placeholders in text and attribute
// values are replaced by token macro values. Load and LoadWithReferences
// resolve all of it eagerly and return a fully expanded tree.
//
// The package mutates the tree it parses and owns it for the duration of
// one call. It does no logging; every failure is returned as an error.
package macro
