package macro

import "errors"

// Every error is fatal to the current preprocessing call; nothing is
// recovered locally. Callers can discriminate with errors.Is.
var (
	// ErrSelfReferentialToken indicates a token whose value contains its
	// own placeholder.
	ErrSelfReferentialToken = errors.New("self-referential token")

	// ErrMissingMacroName indicates an <expand> element without a macro
	// attribute.
	ErrMissingMacroName = errors.New("expand element has no macro attribute")

	// ErrUnknownMacro indicates an <expand> element naming a macro the
	// catalog does not contain.
	ErrUnknownMacro = errors.New("unknown macro")

	// ErrMissingRequiredParam indicates an expansion that supplies no
	// value for a required macro parameter.
	ErrMissingRequiredParam = errors.New("missing required macro parameter")

	// ErrCyclicImport indicates an import chain that revisits a file
	// already being loaded.
	ErrCyclicImport = errors.New("cyclic macro import")

	// ErrMacroDepthExceeded indicates macro expansion deeper than
	// MaxExpandDepth, which for any finite macro graph means a cycle.
	ErrMacroDepthExceeded = errors.New("cyclic macro reference")
)
