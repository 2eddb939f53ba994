package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Can be changed for testing.
var stderr io.Writer = os.Stderr

// Overridden in tests; consulted once per message so that tests can flip it.
var useColor = func() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd())
}

// Shower wraps the Show method.
type Shower interface {
	// Show takes an indentation string and shows.
	Show(indent string) string
}

// ShowError shows an error. It uses the Show method if the error implements
// Shower, and uses Complain to print the error message otherwise.
func ShowError(err error) {
	ShowErrorTo(stderr, err)
}

// ShowErrorTo is ShowError with an explicit destination.
func ShowErrorTo(w io.Writer, err error) {
	if shower, ok := err.(Shower); ok {
		fmt.Fprintln(w, shower.Show(""))
	} else {
		fmt.Fprintln(w, bold(err.Error()))
	}
}

// Complain prints a message to stderr in bold and red, adding a trailing
// newline. The styling is dropped when stderr is not a terminal or NO_COLOR
// is set.
func Complain(msg string) {
	fmt.Fprintln(stderr, bold(msg))
}

// Complainf is like Complain, but accepts a format string and arguments.
func Complainf(format string, args ...interface{}) {
	Complain(fmt.Sprintf(format, args...))
}

// WarnLoc prints a non-fatal located warning, in the file:line: message form.
func WarnLoc(loc Location, format string, args ...interface{}) {
	fmt.Fprintf(stderr, "%s: %s\n", loc, fmt.Sprintf(format, args...))
}

func bold(msg string) string {
	if !useColor() {
		return msg
	}
	return "\033[31;1m" + msg + "\033[m"
}
