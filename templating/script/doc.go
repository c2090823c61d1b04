// Package script implements the small statement and expression language
// that template directives are written in. Programs are indentation
// structured: a line ending with ":" opens a block whose body is indented
// one level deeper.
//
// Parse turns program text into a statement tree; an Interpreter executes
// the tree against a single mutable scope. Values are plain Go values
// (nil, bool, int64, float64, string, []any, *Dict, Func) with reflection
// fallback for anything else a caller puts in scope.
package script
