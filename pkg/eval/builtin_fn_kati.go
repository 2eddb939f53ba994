package eval

import (
	"src.kati.dev/pkg/diag"
	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/strutil"
)

// Extension functions in the KATI_ namespace.

func init() {
	addBuiltinFuncs(map[string]builtinFunc{
		"KATI_deprecated_var":    {parse.FuncProto{Arity: 2, MinArity: 1}, fnDeprecatedVar},
		"KATI_obsolete_var":      {parse.FuncProto{Arity: 2, MinArity: 1}, fnObsoleteVar},
		"KATI_deprecate_export":  {fixedArity(1), fnDeprecateExport},
		"KATI_obsolete_export":   {fixedArity(1), fnObsoleteExport},
		"KATI_profile_makefile":  {parse.FuncProto{MinArity: 1}, fnProfileMakefile},
		"KATI_variable_location": {fixedArity(1), fnVariableLocation},
		"KATI_extra_file_deps":   {parse.FuncProto{MinArity: 1}, fnExtraFileDeps},
		"KATI_shell_no_rerun":    {fixedArity(1), fnShellNoRerun},
		"KATI_foreach_sep":       {fixedArity(4), fnForeachSep},
		"KATI_file_no_rerun":     {parse.FuncProto{Arity: 2, MinArity: 1}, fnFileNoRerun},
		"KATI_visibility_prefix": {fixedArity(2), fnVisibilityPrefix},
	})
}

// markedVar returns the binding for name, materializing an empty one so that
// markings on still-undefined variables take effect on later reads.
func (ev *Evaler) markedVar(name string) Var {
	v := ev.PeekVar(name)
	if !v.IsDefined() {
		v = NewSimpleVar("", OriginFile, ev.loc)
		ev.vars[name] = v
	}
	return v
}

func markVars(ev *Evaler, args []parse.Value, mark func(*varBase)) (string, error) {
	names, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	message := ""
	if len(args) > 1 {
		message, err = ev.Value(args[1])
		if err != nil {
			return "", err
		}
	}
	for _, name := range strutil.SplitSpace(names) {
		b := ev.markedVar(name).base()
		b.message = message
		mark(b)
	}
	return "", nil
}

func fnDeprecatedVar(ev *Evaler, args []parse.Value) (string, error) {
	return markVars(ev, args, func(b *varBase) { b.deprecated = true })
}

func fnObsoleteVar(ev *Evaler, args []parse.Value) (string, error) {
	return markVars(ev, args, func(b *varBase) { b.obsolete = true })
}

func fnDeprecateExport(ev *Evaler, args []parse.Value) (string, error) {
	msg, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	ev.exportMarked = true
	ev.exportMessage = msg
	return "", nil
}

func fnObsoleteExport(ev *Evaler, args []parse.Value) (string, error) {
	if _, err := fnDeprecateExport(ev, args); err != nil {
		return "", err
	}
	ev.exportError = true
	return "", nil
}

func fnProfileMakefile(ev *Evaler, args []parse.Value) (string, error) {
	if _, err := ev.evalArgs(args); err != nil {
		return "", err
	}
	ev.warnOnce("KATI_profile_makefile", "*** makefile profiling is not supported, ignored.")
	return "", nil
}

func fnVariableLocation(ev *Evaler, args []parse.Value) (string, error) {
	names, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	ww := strutil.NewWordWriter()
	for _, name := range strutil.SplitSpace(names) {
		loc := diag.Location{File: "<unknown>"}
		if v := ev.PeekVar(name); v.IsDefined() {
			loc = v.base().loc
		}
		ww.Write(loc.String())
	}
	return ww.String(), nil
}

func fnExtraFileDeps(ev *Evaler, args []parse.Value) (string, error) {
	files, err := ev.evalArgs(args)
	if err != nil {
		return "", err
	}
	for _, arg := range files {
		for _, file := range strutil.SplitSpace(arg) {
			ev.extraDeps = append(ev.extraDeps, file)
		}
	}
	return "", nil
}

func fnShellNoRerun(ev *Evaler, args []parse.Value) (string, error) {
	cmdline, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	// Same as $(shell), except excluded from re-run tracking by the
	// regeneration collaborator.
	return ev.runShell(cmdline)
}

func fnForeachSep(ev *Evaler, args []parse.Value) (string, error) {
	name, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	sep, err := ev.Value(args[1])
	if err != nil {
		return "", err
	}
	list, err := ev.Value(args[2])
	if err != nil {
		return "", err
	}
	return ev.foreach(name, list, args[3], sep)
}

func fnFileNoRerun(ev *Evaler, args []parse.Value) (string, error) {
	spec, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	spec = strutil.TrimSpace(spec)
	if spec == "" {
		return "", ev.errorf("*** Missing filename")
	}
	return ev.fileOp(spec, args)
}

func fnVisibilityPrefix(ev *Evaler, args []parse.Value) (string, error) {
	name, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	prefixes, err := ev.Value(args[1])
	if err != nil {
		return "", err
	}
	name = strutil.TrimSpace(name)
	want := strutil.SplitSpace(prefixes)
	b := ev.markedVar(name).base()
	if len(b.visibility) > 0 && !sameStrings(b.visibility, want) {
		return "", ev.errorf("*** Visibility prefix conflict on variable: %s", name)
	}
	b.visibility = want
	return "", nil
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
