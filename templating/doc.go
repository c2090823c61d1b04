// Package templating compiles text templates into programs of a small
// Python-flavoured directive language and renders them against caller
// bindings.
//
// Templates mix literal text with three directive kinds, by default
// "{{ expr }}", "{% statement %}" and "{# comment #}". A statement body
// starting with ":" closes the innermost block; "{% :else %}" closes one
// block and opens the next. A "-" right after an opening marker or right
// before a closing marker trims whitespace from the neighbouring literal.
// A backslash before any marker makes it literal text.
//
// The Engine type holds configuration (delimiters, encoding, cache) and
// compiles templates from text or files. Expand reads a template file,
// renders it and writes the result, mirroring the command line tool.
package templating
