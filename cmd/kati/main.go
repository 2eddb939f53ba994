// Command kati evaluates makefiles and runs, or describes, the build they
// define.
package main

import (
	"os"

	"src.kati.dev/pkg/build"
	"src.kati.dev/pkg/prog"
)

func main() {
	os.Exit(prog.Run(
		[3]*os.File{os.Stdin, os.Stdout, os.Stderr}, os.Args,
		prog.Composite(build.Realpath{}, build.Program{}),
	))
}
