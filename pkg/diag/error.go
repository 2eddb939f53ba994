package diag

import "fmt"

// Error is an error with a type (like "parse error") and a location.
type Error struct {
	Type    string
	Message string
	Location
}

// Errorf returns an *Error with the message built from the format string.
func Errorf(typ string, loc Location, format string, args ...interface{}) *Error {
	return &Error{Type: typ, Message: fmt.Sprintf(format, args...), Location: loc}
}

// Error returns a plain text representation of the error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Location, e.Type, e.Message)
}

// Show shows the error.
func (e *Error) Show(indent string) string {
	return e.Location.String() + ": " + bold(e.Message)
}
