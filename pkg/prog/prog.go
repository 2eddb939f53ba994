// Package prog provides the entry point. Its subprograms live in their own
// packages and are tried in order until one accepts the invocation.
package prog

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"src.kati.dev/pkg/buildinfo"
	"src.kati.dev/pkg/logutil"
)

// Flags keeps parsed command-line flags.
type Flags struct {
	Makefiles stringsFlag
	Chdir     string
	Jobs      int
	DryRun    bool
	Silent    bool

	Ninja         bool
	Regen         bool
	GenAllTargets bool

	SyntaxCheckOnly bool
	ParseOnly       bool
	NoBuiltinRules  bool

	WerrorOverridingCommands bool
	EnableDebug              bool
	Log                      string

	Realpath bool
	Version  bool
}

// stringsFlag collects a repeatable string flag.
type stringsFlag []string

func (s *stringsFlag) String() string { return strings.Join(*s, " ") }

func (s *stringsFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func newFlagSet(f *Flags) *flag.FlagSet {
	fs := flag.NewFlagSet("kati", flag.ContinueOnError)
	// Error and usage will be printed explicitly.
	fs.SetOutput(io.Discard)

	fs.Var(&f.Makefiles, "f", "use FILE as a makefile")
	fs.Var(&f.Makefiles, "file", "use FILE as a makefile")
	fs.StringVar(&f.Chdir, "C", "", "change to DIR before doing anything")
	fs.IntVar(&f.Jobs, "j", 0, "number of parallel jobs")
	fs.BoolVar(&f.DryRun, "n", false, "print commands without running them")
	fs.BoolVar(&f.Silent, "s", false, "silent mode: do not echo commands")

	fs.BoolVar(&f.Ninja, "ninja", false, "emit a build description instead of executing")
	fs.BoolVar(&f.Regen, "regen", false, "accepted for compatibility; regeneration is not supported")
	fs.BoolVar(&f.GenAllTargets, "gen_all_targets", false, "generate all targets, not just the default goal")

	fs.BoolVar(&f.SyntaxCheckOnly, "syntax_check_only", false, "check makefile syntax and exit")
	fs.BoolVar(&f.ParseOnly, "parse_only", false, "parse makefiles and exit without evaluating")
	fs.BoolVar(&f.NoBuiltinRules, "no_builtin_rules", false, "disable builtin variables and suffix rules")

	fs.BoolVar(&f.WerrorOverridingCommands, "werror_overriding_commands", false,
		"fail, instead of warning, when a target's commands are redefined")
	fs.BoolVar(&f.EnableDebug, "enable_debug", false, "write debug logs to stderr")
	fs.StringVar(&f.Log, "log", "", "a file to write debug logs to")

	fs.BoolVar(&f.Realpath, "realpath", false, "print the canonical form of each argument and exit")
	fs.BoolVar(&f.Version, "version", false, "show version and quit")
	return fs
}

func usage(out io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(out, "Usage: kati [flags] [NAME=VALUE...] [targets...]")
	fmt.Fprintln(out, "Supported flags:")
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// Run parses command-line flags and runs the first applicable subprogram.
// It returns the exit status of the program.
func Run(fds [3]*os.File, args []string, p Program) int {
	f := &Flags{}
	fs := newFlagSet(f)
	err := fs.Parse(args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			usage(fds[1], fs)
			return 0
		}
		fmt.Fprintln(fds[2], err)
		usage(fds[2], fs)
		return 2
	}

	if f.EnableDebug {
		logutil.SetOutput(fds[2])
	} else if f.Log != "" {
		if err := logutil.SetOutputFile(f.Log); err != nil {
			fmt.Fprintln(fds[2], err)
		}
	}

	if f.Version {
		fmt.Fprintln(fds[1], "kati "+buildinfo.Version)
		return 0
	}

	err = p.Run(fds, f, fs.Args())
	if err == nil {
		return 0
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(fds[2], msg)
	}
	switch err := err.(type) {
	case badUsageError:
		usage(fds[2], fs)
		return 2
	case exitError:
		return err.exit
	}
	return 1
}

// Composite returns a Program that tries each of the given programs,
// terminating at the first one that doesn't return ErrNotSuitable.
func Composite(programs ...Program) Program {
	return compositeProgram(programs)
}

type compositeProgram []Program

func (cp compositeProgram) Run(fds [3]*os.File, f *Flags, args []string) error {
	for _, p := range cp {
		err := p.Run(fds, f, args)
		if err != ErrNotSuitable {
			return err
		}
	}
	// If we have reached here, all subprograms have returned ErrNotSuitable.
	return ErrNotSuitable
}

// ErrNotSuitable is a special error that may be returned by Program.Run, to
// signify that this Program should not be run. It is useful when a Program
// is used in Composite.
var ErrNotSuitable = errors.New("internal error: no suitable subprogram")

// BadUsage returns a special error that may be returned by Program.Run. It
// causes the main function to print out a message, the usage information and
// exit with 2.
func BadUsage(msg string) error { return badUsageError{msg} }

type badUsageError struct{ msg string }

func (e badUsageError) Error() string { return e.msg }

// Exit returns a special error that may be returned by Program.Run. It
// causes the main function to exit with the given code without printing any
// error messages. Exit(0) returns nil.
func Exit(exit int) error {
	if exit == 0 {
		return nil
	}
	return exitError{exit}
}

type exitError struct{ exit int }

func (e exitError) Error() string { return "" }

// Program represents a subprogram.
type Program interface {
	// Run runs the subprogram.
	Run(fds [3]*os.File, f *Flags, args []string) error
}
