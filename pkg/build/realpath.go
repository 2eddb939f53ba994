package build

import (
	"fmt"
	"os"
	"path/filepath"

	"src.kati.dev/pkg/prog"
)

// Realpath is the --realpath sub-mode: it prints the canonical form of each
// argument and exits.
type Realpath struct{}

// Run implements prog.Program.
func (Realpath) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if !f.Realpath {
		return prog.ErrNotSuitable
	}
	for _, arg := range args {
		path, err := filepath.EvalSymlinks(arg)
		if err != nil {
			fmt.Fprintf(fds[2], "%s: %s\n", arg, err)
			continue
		}
		path, err = filepath.Abs(path)
		if err != nil {
			fmt.Fprintf(fds[2], "%s: %s\n", arg, err)
			continue
		}
		fmt.Fprintln(fds[1], path)
	}
	return nil
}
