// Package diag contains building blocks for file:line diagnostics: source
// locations, located errors and utilities for presenting them.
package diag

import "fmt"

// Location identifies a line in a makefile. It is attached to every statement,
// every recorded rule and every located error.
type Location struct {
	File string
	Line int
}

// String returns the conventional file:line form used in messages. A zero
// Location renders as "<unknown>".
func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Loc returns the Location itself. Structs can embed Location to satisfy the
// [Locator] interface.
func (l Location) Loc() Location { return l }

// Locator wraps the Loc method.
type Locator interface {
	// Loc returns the location associated with the value.
	Loc() Location
}
