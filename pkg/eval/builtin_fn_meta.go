package eval

import (
	"os"
	"os/exec"
	"strconv"
	"strings"

	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/strutil"
)

// Variable and evaluation metafunctions.

func init() {
	addBuiltinFuncs(map[string]builtinFunc{
		"value":   {fixedArity(1), fnValue},
		"origin":  {fixedArity(1), fnOrigin},
		"flavor":  {fixedArity(1), fnFlavor},
		"eval":    {fixedArity(1), fnEval},
		"shell":   {fixedArity(1), fnShell},
		"call":    {parse.FuncProto{MinArity: 1}, fnCall},
		"foreach": {fixedArity(3), fnForeach},
	})
}

func fnValue(ev *Evaler, args []parse.Value) (string, error) {
	name, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	return ev.PeekVar(name).String(), nil
}

func fnOrigin(ev *Evaler, args []parse.Value) (string, error) {
	name, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	return ev.PeekVar(name).Origin().String(), nil
}

func fnFlavor(ev *Evaler, args []parse.Value) (string, error) {
	name, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	return ev.PeekVar(name).Flavor(), nil
}

func fnEval(ev *Evaler, args []parse.Value) (string, error) {
	text, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	if ev.avoidIO() {
		return "", ev.errorf("*** $(eval) is not supported in rules while emitting a build description.")
	}
	stmts := parse.Parse(
		parse.Source{Name: ev.loc.File, Code: text},
		parse.Config{Funcs: FuncProtos(), StartLine: ev.loc.Line},
	)
	savedLoc := ev.loc
	defer func() { ev.loc = savedLoc }()
	return "", ev.ExecStmts(stmts)
}

func fnShell(ev *Evaler, args []parse.Value) (string, error) {
	cmdline, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	return ev.runShell(cmdline)
}

// runShell implements $(shell) and $(KATI_shell_no_rerun). In avoid-I/O mode
// the command is deferred as a shell substitution instead of being run here.
func (ev *Evaler) runShell(cmdline string) (string, error) {
	if ev.avoidIO() {
		if ev.evalDepth > 1 {
			return "", ev.errorf("*** $(shell) in a recipe cannot be nested in a rule context.")
		}
		return "$(" + cmdline + ")", nil
	}
	cmd := exec.Command(ev.Shell(), "-c", cmdline)
	cmd.Env = ev.CommandEnv()
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		logger.Printf("$(shell %s): %v", cmdline, err)
	}
	return formatCommandOutput(string(out)), nil
}

// formatCommandOutput mimics shell command substitution: trailing newlines
// are dropped and inner newlines become spaces.
func formatCommandOutput(out string) string {
	out = strings.TrimRight(out, "\n")
	return strings.ReplaceAll(out, "\n", " ")
}

const maxCallDepth = 1000

func fnCall(ev *Evaler, args []parse.Value) (string, error) {
	name, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	name = strutil.TrimSpace(name)
	fn, err := ev.LookupVar(name)
	if err != nil {
		return "", err
	}
	if !fn.IsDefined() {
		return "", nil
	}
	scope := make(Vars, len(args))
	scope["0"] = NewSimpleVar(name, OriginAutomatic, ev.loc)
	for i, arg := range args[1:] {
		val, err := ev.Value(arg)
		if err != nil {
			return "", err
		}
		scope[strconv.Itoa(i+1)] = NewSimpleVar(val, OriginAutomatic, ev.loc)
	}

	if ev.callDepth >= maxCallDepth {
		return "", ev.errorf("*** call nesting too deep while expanding %q.", name)
	}
	ev.callDepth++
	// User functions may recurse through $(call); mask the self-reference
	// guard for the duration of the call.
	savedExpanding := ev.expanding
	ev.expanding = make(map[string]bool)
	defer func() {
		ev.expanding = savedExpanding
		ev.callDepth--
	}()

	var result string
	err = ev.WithScope(scope, func() error {
		var err error
		result, err = fn.Eval(ev)
		return err
	})
	return result, err
}

func fnForeach(ev *Evaler, args []parse.Value) (string, error) {
	name, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	list, err := ev.Value(args[1])
	if err != nil {
		return "", err
	}
	return ev.foreach(name, list, args[2], " ")
}

func (ev *Evaler) foreach(name, list string, body parse.Value, sep string) (string, error) {
	var results []string
	scope := make(Vars, 1)
	err := ev.WithScope(scope, func() error {
		for ws := strutil.NewWordScanner(list); ws.Scan(); {
			scope[name] = NewSimpleVar(ws.Word(), OriginAutomatic, ev.loc)
			s, err := ev.Value(body)
			if err != nil {
				return err
			}
			results = append(results, s)
		}
		return nil
	})
	return strings.Join(results, sep), err
}
