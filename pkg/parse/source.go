// Package parse implements the makefile parser.
//
// Parsing is line-oriented: the parser splits the input into logical lines
// (honoring backslash continuations), classifies each line as a directive,
// rule, assignment or recipe command, and builds statements containing lazy
// value trees. Value trees are not evaluated here; the eval package expands
// them against a variable environment.
package parse

import (
	"os"

	"src.kati.dev/pkg/diag"
)

// Source describes a piece of makefile source.
type Source struct {
	// The name of the makefile as it should appear in diagnostics.
	Name string
	// The full content.
	Code string
}

// FileSource returns a Source by reading the named file.
func FileSource(name string) (Source, error) {
	code, err := os.ReadFile(name)
	if err != nil {
		return Source{}, err
	}
	return Source{Name: name, Code: string(code)}, nil
}

// Config keeps configuration options for parsing.
type Config struct {
	// The function table. The parser consults it to decide whether $(name …)
	// is a function call and how many comma-separated arguments it takes.
	Funcs map[string]FuncProto
	// Initial line number, 1 if zero. Used by $(eval) to keep locations
	// pointing into the makefile that produced the text.
	StartLine int
}

// FuncProto describes the call shape of a builtin function.
type FuncProto struct {
	// Maximum number of comma-separated arguments; once reached, commas stop
	// being separators. 0 means variadic.
	Arity int
	// Minimum number of arguments; fewer is an evaluation error.
	MinArity int
	// Strip leading whitespace of every argument at parse time.
	TrimSpace bool
	// Strip trailing whitespace of the first argument at parse time.
	TrimRightFirst bool
}

// locOf is a helper to build a location.
func locOf(name string, line int) diag.Location {
	return diag.Location{File: name, Line: line}
}
