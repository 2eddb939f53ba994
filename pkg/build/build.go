// Package build is the default subprogram: it evaluates the makefiles,
// constructs the dependency graph and either executes it or hands it to the
// build-description generator.
package build

import (
	"fmt"
	"os"
	"strings"

	"src.kati.dev/pkg/config"
	"src.kati.dev/pkg/dep"
	"src.kati.dev/pkg/diag"
	"src.kati.dev/pkg/eval"
	"src.kati.dev/pkg/exec"
	"src.kati.dev/pkg/fsutil"
	"src.kati.dev/pkg/logutil"
	"src.kati.dev/pkg/ninja"
	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/prog"
	"src.kati.dev/pkg/strutil"
)

var logger = logutil.GetLogger("[build] ")

// The makefile names tried when no -f is given, most specific first.
var defaultMakefiles = []string{"GNUmakefile", "makefile", "Makefile"}

// Program is the default subprogram.
type Program struct {
	// Overrides the generator used for --ninja. Nil means none is linked in.
	Generator ninja.Generator
}

// Run implements prog.Program.
func (p Program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		diag.Complainf("ignoring rc file: %s", err)
	}
	if f.Jobs == 0 {
		f.Jobs = cfg.Jobs
	}
	if !f.Silent {
		f.Silent = cfg.Silent
	}
	if !f.WerrorOverridingCommands {
		f.WerrorOverridingCommands = cfg.WerrorOverridingCommands
	}

	if f.Chdir != "" {
		if err := os.Chdir(f.Chdir); err != nil {
			return prog.BadUsage(err.Error())
		}
	}

	makefiles := []string(f.Makefiles)
	if len(makefiles) == 0 {
		for _, name := range defaultMakefiles {
			if fsutil.Exists(name) {
				makefiles = []string{name}
				break
			}
		}
		if len(makefiles) == 0 {
			return fmt.Errorf("*** No targets specified and no makefile found.")
		}
	}

	if f.ParseOnly || f.SyntaxCheckOnly {
		return checkSyntax(fds, makefiles, f.SyntaxCheckOnly)
	}

	clvars, targets := splitCommandLine(args)

	ev := eval.NewEvaler(eval.Options{
		Shell:          cfg.Shell,
		NoBuiltinRules: f.NoBuiltinRules,
	})
	for _, kv := range clvars {
		name, value, _ := strings.Cut(kv, "=")
		ev.AssignCommandLine(strutil.TrimSpace(name), value)
	}
	ev.SetSimpleVar("MAKECMDGOALS", strutil.JoinWords(targets), eval.OriginFile)

	for _, mk := range makefiles {
		if err := ev.EvalFile(mk); err != nil {
			diag.ShowErrorTo(fds[2], err)
			return prog.Exit(1)
		}
	}

	builder, err := dep.NewBuilder(ev, dep.Options{
		ErrOverridingCommands: f.WerrorOverridingCommands,
		NoBuiltinRules:        f.NoBuiltinRules,
	})
	if err != nil {
		diag.ShowErrorTo(fds[2], err)
		return prog.Exit(1)
	}
	if f.GenAllTargets && len(targets) == 0 {
		targets = builder.AllTargets()
	}
	nodes, err := builder.Build(targets)
	if err != nil {
		diag.ShowErrorTo(fds[2], err)
		return prog.Exit(1)
	}

	if f.Ninja {
		if f.Regen {
			diag.Complainf("--regen is not supported; ignored")
		}
		gen := p.Generator
		if gen == nil {
			gen = ninja.Unavailable{}
		}
		if err := gen.Generate(ev, nodes); err != nil {
			diag.ShowErrorTo(fds[2], err)
			return prog.Exit(1)
		}
		return nil
	}

	logger.Printf("executing %d root(s)", len(nodes))
	ex := exec.NewExecutor(ev, exec.Options{
		NumJobs: f.Jobs,
		DryRun:  f.DryRun,
		Silent:  f.Silent,
		Output:  fds[1],
	})
	if err := ex.Exec(nodes); err != nil {
		diag.ShowErrorTo(fds[2], err)
		return prog.Exit(1)
	}
	return nil
}

// splitCommandLine separates NAME=VALUE bindings from target names.
func splitCommandLine(args []string) (clvars, targets []string) {
	for _, arg := range args {
		if i := strings.IndexByte(arg, '='); i > 0 {
			clvars = append(clvars, arg)
		} else {
			targets = append(targets, arg)
		}
	}
	return clvars, targets
}

// checkSyntax parses the makefiles without evaluating them. In syntax-check
// mode every parse error is reported and any error makes the run fail;
// parse-only mode swallows the statements and succeeds.
func checkSyntax(fds [3]*os.File, makefiles []string, report bool) error {
	nerr := 0
	for _, mk := range makefiles {
		src, err := parse.FileSource(mk)
		if err != nil {
			fmt.Fprintf(fds[2], "%s: No such file or directory\n", mk)
			nerr++
			continue
		}
		stmts := parse.Parse(src, parse.Config{Funcs: eval.FuncProtos()})
		for _, e := range collectErrors(stmts) {
			nerr++
			if report {
				fmt.Fprintf(fds[2], "%s: %s\n", e.Location, e.Msg)
			}
		}
	}
	if report && nerr > 0 {
		return prog.Exit(1)
	}
	return nil
}

func collectErrors(stmts []parse.Stmt) []*parse.ErrorStmt {
	var errs []*parse.ErrorStmt
	for _, st := range stmts {
		switch st := st.(type) {
		case *parse.ErrorStmt:
			errs = append(errs, st)
		case *parse.IfStmt:
			errs = append(errs, collectErrors(st.TrueStmts)...)
			errs = append(errs, collectErrors(st.FalseStmts)...)
		}
	}
	return errs
}
