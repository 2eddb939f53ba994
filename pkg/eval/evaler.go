// Package eval executes parsed makefile statements: it maintains the
// variable environment, expands lazy values, dispatches builtin functions
// and records rules for the dependency builder.
package eval

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"src.kati.dev/pkg/diag"
	"src.kati.dev/pkg/env"
	"src.kati.dev/pkg/fsutil"
	"src.kati.dev/pkg/glob"
	"src.kati.dev/pkg/logutil"
	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/strutil"
)

var logger = logutil.GetLogger("[eval] ")

// Error is an evaluation failure, located at the statement that raised it.
type Error struct {
	diag.Location
	Msg string
}

// Error returns the conventional file:line: message form.
func (e *Error) Error() string { return e.Location.String() + ": " + e.Msg }

// Show implements diag.Shower.
func (e *Error) Show(string) string { return e.Error() }

// Options configures an Evaler.
type Options struct {
	// Fallback shell for $(shell) and recipes when the SHELL variable is
	// empty. Defaults to $SHELL, then /bin/sh.
	Shell string
	// Suppress the builtin default variables (CC and friends).
	NoBuiltinRules bool
	// Start in deferred-I/O mode (see SetAvoidIO): $(shell), $(info), … are
	// deferred instead of executed by every expansion until it is switched off.
	AvoidIO bool
}

// Evaler holds all mutable state of an evaluation: the variable environment,
// the accumulated rules and target-specific variables, and the location
// currently being executed.
type Evaler struct {
	opts Options

	vars   Vars
	scopes []Vars

	rules    []*Rule
	ruleVars map[string]Vars
	lastRule *Rule

	exports       map[string]bool
	exportAll     *bool
	exportMarked  bool
	exportMessage string
	exportError   bool

	loc       diag.Location
	evalDepth int
	callDepth int
	avoidIOOn bool

	expanding  map[string]bool
	includes   []string
	warnedOnce map[string]bool
	extraDeps  []string
	delayedOut []string
}

// NewEvaler returns an Evaler with the environment imported and the builtin
// default variables installed.
func NewEvaler(opts Options) *Evaler {
	ev := &Evaler{
		opts:       opts,
		vars:       make(Vars),
		ruleVars:   make(map[string]Vars),
		exports:    make(map[string]bool),
		expanding:  make(map[string]bool),
		warnedOnce: make(map[string]bool),
		avoidIOOn:  opts.AvoidIO,
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			ev.vars[k] = NewSimpleVar(v, OriginEnvironment, diag.Location{})
		}
	}
	if ev.opts.Shell == "" {
		ev.opts.Shell = os.Getenv(env.SHELL)
	}
	if ev.opts.Shell == "" {
		ev.opts.Shell = "/bin/sh"
	}
	ev.vars["SHELL"] = NewSimpleVar(ev.opts.Shell, OriginDefault, diag.Location{})
	if !opts.NoBuiltinRules {
		for name, value := range map[string]string{
			"CC": "cc", "CXX": "g++", "AR": "ar", "MAKE": "make",
		} {
			ev.vars[name] = NewSimpleVar(value, OriginDefault, diag.Location{})
		}
	}
	ev.vars["CURDIR"] = NewSimpleVar(fsutil.Getwd(), OriginFile, diag.Location{})
	ev.vars["MAKEFILE_LIST"] = NewSimpleVar("", OriginFile, diag.Location{})
	return ev
}

// Loc returns the location of the statement currently being evaluated.
func (ev *Evaler) Loc() diag.Location { return ev.loc }

// avoidIO reports whether I/O during expansion must be deferred.
func (ev *Evaler) avoidIO() bool { return ev.avoidIOOn }

// SetAvoidIO switches deferred-I/O mode on or off. The build-description
// emitter enables it around recipe expansion.
func (ev *Evaler) SetAvoidIO(on bool) { ev.avoidIOOn = on }

// Rules returns the rules recorded so far, in declaration order.
func (ev *Evaler) Rules() []*Rule { return ev.rules }

// RuleVars returns the target-specific variables of target, or nil.
func (ev *Evaler) RuleVars(target string) Vars { return ev.ruleVars[target] }

// AllRuleVars returns the full target-specific variable table, keyed by
// target name.
func (ev *Evaler) AllRuleVars() map[string]Vars { return ev.ruleVars }

// DelayedOutputs returns the I/O queued while expanding recipes in avoid-I/O
// mode.
func (ev *Evaler) DelayedOutputs() []string { return ev.delayedOut }

// ExtraFileDeps returns the files registered via $(KATI_extra_file_deps).
func (ev *Evaler) ExtraFileDeps() []string { return ev.extraDeps }

func (ev *Evaler) errorf(format string, args ...interface{}) error {
	return &Error{ev.loc, fmt.Sprintf(format, args...)}
}

func (ev *Evaler) warnOnce(key, format string, args ...interface{}) {
	if ev.warnedOnce[key] {
		return
	}
	ev.warnedOnce[key] = true
	diag.WarnLoc(ev.loc, format, args...)
}

// WithScope pushes vars as the innermost lookup scope, runs fn and pops the
// scope again on every path out of fn.
func (ev *Evaler) WithScope(vars Vars, fn func() error) error {
	ev.scopes = append(ev.scopes, vars)
	defer func() { ev.scopes = ev.scopes[:len(ev.scopes)-1] }()
	return fn()
}

// PeekVar looks name up without firing deprecation or visibility checks.
func (ev *Evaler) PeekVar(name string) Var {
	for i := len(ev.scopes) - 1; i >= 0; i-- {
		if v, ok := ev.scopes[i][name]; ok {
			return v
		}
	}
	return ev.vars.Lookup(name)
}

// LookupVar looks name up and records the use: deprecated variables warn,
// obsolete variables fail, and visibility prefixes are enforced against the
// makefile doing the read.
func (ev *Evaler) LookupVar(name string) (Var, error) {
	v := ev.PeekVar(name)
	if !v.IsDefined() {
		return v, nil
	}
	b := v.base()
	if !visibilityOK(v, ev.loc.File) {
		return nil, ev.errorf("*** %s is not visible from %s", name, ev.loc.File)
	}
	if b.obsolete {
		return nil, ev.errorf("*** %s is obsolete%s.", name, messageSuffix(b))
	}
	if b.deprecated {
		diag.WarnLoc(ev.loc, "%s has been deprecated%s.", name, messageSuffix(b))
	}
	return v, nil
}

func messageSuffix(b *varBase) string {
	if b.message == "" {
		return ""
	}
	return ". " + b.message
}

// SetSimpleVar installs a simple variable in the global scope, bypassing the
// readonly check. It is for engine-set names like MAKECMDGOALS.
func (ev *Evaler) SetSimpleVar(name, value string, org Origin) {
	ev.vars[name] = NewSimpleVar(value, org, diag.Location{})
}

// AssignCommandLine binds a NAME=VALUE command-line argument as a recursive
// variable with command-line origin.
func (ev *Evaler) AssignCommandLine(name, value string) {
	expr := parse.ParseExpr(value, parse.Config{Funcs: FuncProtos()})
	ev.vars[name] = NewRecursiveVar(expr, value, OriginCommandLine, diag.Location{})
}

// ExecStmts executes statements in order, stopping at the first error.
func (ev *Evaler) ExecStmts(stmts []parse.Stmt) error {
	for _, st := range stmts {
		if err := ev.execStmt(st); err != nil {
			return err
		}
	}
	return nil
}

func (ev *Evaler) execStmt(st parse.Stmt) error {
	ev.loc = st.Loc()
	switch st := st.(type) {
	case *parse.AssignStmt:
		return ev.evalAssign(st)
	case *parse.RuleStmt:
		return ev.evalRuleStmt(st)
	case *parse.CommandStmt:
		return ev.evalCommand(st)
	case *parse.IfStmt:
		return ev.evalIf(st)
	case *parse.IncludeStmt:
		return ev.evalInclude(st)
	case *parse.ExportStmt:
		return ev.evalExport(st)
	case *parse.ErrorStmt:
		return &Error{st.Location, st.Msg}
	}
	return ev.errorf("internal error: unknown statement %T", st)
}

func (ev *Evaler) evalAssign(st *parse.AssignStmt) error {
	ev.lastRule = nil
	name, err := ev.Value(st.Lhs)
	if err != nil {
		return err
	}
	name = strutil.TrimSpace(name)
	if name == "" {
		return ev.errorf("*** empty variable name.")
	}
	if name == ".KATI_READONLY" {
		return ev.markReadonlyList(st.Rhs)
	}
	if err := ev.assignInto(ev.vars, name, st.Rhs, st.OrigRhs, st.Op, st.Directive, st.IsFinal); err != nil {
		return err
	}
	if st.Directive&parse.DirExport != 0 {
		ev.exports[name] = true
	}
	return nil
}

func (ev *Evaler) markReadonlyList(rhs parse.Value) error {
	s, err := ev.Value(rhs)
	if err != nil {
		return err
	}
	for _, name := range strutil.SplitSpace(s) {
		v := ev.PeekVar(name)
		if !v.IsDefined() {
			return ev.errorf("*** unknown variable: %s", name)
		}
		markReadonly(v)
	}
	return nil
}

// assignInto performs one assignment in the given frame. seeding of += from
// the global scope only applies to target-specific frames, which pass
// through parseTargetSpecificVar.
func (ev *Evaler) assignInto(vars Vars, name string, rhs parse.Value, origRhs string,
	op parse.AssignOp, dir parse.AssignDirective, isFinal bool) error {

	existing := vars.Lookup(name)
	if existing.IsDefined() {
		b := existing.base()
		if b.readonly {
			return ev.errorf("*** cannot assign to readonly variable: %s", name)
		}
		if b.final && !isFinal {
			// A $= binding wins over any later plain assignment.
			return nil
		}
		org := existing.Origin()
		if (org == OriginCommandLine || org == OriginOverride) && dir&parse.DirOverride == 0 {
			return nil
		}
	}

	org := OriginFile
	if dir&parse.DirOverride != 0 {
		org = OriginOverride
	}

	var newVar Var
	switch op {
	case parse.OpSet:
		newVar = NewRecursiveVar(rhs, origRhs, org, ev.loc)
	case parse.OpSimple:
		s, err := ev.Value(rhs)
		if err != nil {
			return err
		}
		newVar = NewSimpleVar(s, org, ev.loc)
	case parse.OpAppend:
		switch old := existing.(type) {
		case *RecursiveVar:
			old.append(rhs, origRhs)
			old.base().loc = ev.loc
			return nil
		case *SimpleVar:
			s, err := ev.Value(rhs)
			if err != nil {
				return err
			}
			old.value += " " + s
			old.base().loc = ev.loc
			return nil
		default:
			s, err := ev.Value(rhs)
			if err != nil {
				return err
			}
			newVar = NewSimpleVar(s, org, ev.loc)
		}
	case parse.OpCondSet:
		if existing.IsDefined() && existing.String() != "" {
			return nil
		}
		newVar = NewRecursiveVar(rhs, origRhs, org, ev.loc)
	}
	if isFinal {
		newVar.base().final = true
	}
	if vars.Assign(name, newVar) {
		return ev.errorf("*** cannot assign to readonly variable: %s", name)
	}
	return nil
}

func (ev *Evaler) evalRuleStmt(st *parse.RuleStmt) error {
	lhs, err := ev.Value(st.Lhs)
	if err != nil {
		return err
	}
	if st.Sep == parse.SepEq || st.Sep == parse.SepFinalEq {
		ev.lastRule = nil
		return ev.parseTargetSpecificVar(lhs, st.Sep == parse.SepFinalEq, st.Rhs, st.OrigRhs)
	}
	rule, err := ev.parseRuleLine(lhs, st.Location)
	if err != nil {
		return err
	}
	if rule == nil {
		ev.lastRule = nil
		return nil
	}
	if st.Sep == parse.SepSemicolon {
		rule.Cmds = append(rule.Cmds, st.Rhs)
		rule.CmdLineno = st.Line
	}
	logger.Printf("rule %q at %s", rule.Outputs, rule.Location)
	ev.rules = append(ev.rules, rule)
	ev.lastRule = rule
	return nil
}

func (ev *Evaler) evalCommand(st *parse.CommandStmt) error {
	if ev.lastRule == nil {
		return ev.errorf("*** commands commence before first target.")
	}
	rule := ev.lastRule
	rule.Cmds = append(rule.Cmds, st.Expr)
	if rule.CmdLineno == 0 {
		rule.CmdLineno = st.Line
	}
	return nil
}

func (ev *Evaler) evalIf(st *parse.IfStmt) error {
	var istrue bool
	switch st.Op {
	case parse.CondIfdef, parse.CondIfndef:
		name, err := ev.Value(st.Lhs)
		if err != nil {
			return err
		}
		name = strutil.TrimRightSpace(name)
		if strings.ContainsAny(name, " \t") {
			return ev.errorf("*** invalid syntax in conditional.")
		}
		defined := ev.PeekVar(name).String() != ""
		istrue = defined == (st.Op == parse.CondIfdef)
	case parse.CondIfeq, parse.CondIfneq:
		lhs, err := ev.Value(st.Lhs)
		if err != nil {
			return err
		}
		rhs, err := ev.Value(st.Rhs)
		if err != nil {
			return err
		}
		istrue = (lhs == rhs) == (st.Op == parse.CondIfeq)
	}
	if istrue {
		return ev.ExecStmts(st.TrueStmts)
	}
	return ev.ExecStmts(st.FalseStmts)
}

func (ev *Evaler) evalInclude(st *parse.IncludeStmt) error {
	ev.lastRule = nil
	pats, err := ev.Value(st.Expr)
	if err != nil {
		return err
	}
	baseDir := filepath.Dir(st.File)
	for _, pat := range strutil.SplitSpace(pats) {
		resolved := pat
		if !filepath.IsAbs(pat) && baseDir != "." && baseDir != "" {
			resolved = filepath.Join(baseDir, pat)
		}
		var files []string
		if glob.HasMeta(resolved) {
			glob.Glob(resolved, func(name string) bool {
				files = append(files, name)
				return true
			})
		} else if fsutil.Exists(resolved) {
			files = []string{resolved}
		}
		if len(files) == 0 {
			if st.ShouldExist {
				return ev.errorf("%s: No such file or directory", pat)
			}
			continue
		}
		for _, file := range files {
			if err := ev.EvalFile(file); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvalFile parses and executes one makefile in the current environment. It
// is both the top-level entry point and the include implementation.
func (ev *Evaler) EvalFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, active := range ev.includes {
		if active == abs {
			return ev.errorf("*** include loop detected: %s", path)
		}
	}
	src, err := parse.FileSource(path)
	if err != nil {
		return ev.errorf("%s: No such file or directory", path)
	}
	logger.Printf("reading %s", path)
	ev.appendMakefileList(path)
	stmts := parse.Parse(src, parse.Config{Funcs: FuncProtos()})

	ev.includes = append(ev.includes, abs)
	savedLoc := ev.loc
	defer func() {
		ev.includes = ev.includes[:len(ev.includes)-1]
		ev.loc = savedLoc
	}()
	return ev.ExecStmts(stmts)
}

func (ev *Evaler) appendMakefileList(path string) {
	if v, ok := ev.vars["MAKEFILE_LIST"].(*SimpleVar); ok {
		v.value += " " + path
		return
	}
	ev.vars["MAKEFILE_LIST"] = NewSimpleVar(" "+path, OriginFile, diag.Location{})
}

func (ev *Evaler) evalExport(st *parse.ExportStmt) error {
	ev.lastRule = nil
	if st.IsExport && ev.exportMarked {
		if ev.exportError {
			return ev.errorf("*** `export' is obsolete%s.", exportSuffix(ev.exportMessage))
		}
		diag.WarnLoc(ev.loc, "`export' has been deprecated%s.", exportSuffix(ev.exportMessage))
	}
	s, err := ev.Value(st.Expr)
	if err != nil {
		return err
	}
	words := strutil.SplitSpace(s)
	if len(words) == 0 {
		all := st.IsExport
		ev.exportAll = &all
		return nil
	}
	for _, w := range words {
		name := w
		if i := strings.IndexByte(w, '='); i > 0 {
			name = w[:i]
		}
		ev.exports[name] = st.IsExport
	}
	return nil
}

func exportSuffix(msg string) string {
	if msg == "" {
		return ""
	}
	return ". " + msg
}

// Shell returns the shell recipes and $(shell) run under: the SHELL variable
// if set, otherwise the configured fallback.
func (ev *Evaler) Shell() string {
	if v := ev.PeekVar("SHELL"); v.IsDefined() {
		if s, err := v.Eval(ev); err == nil && s != "" {
			return s
		}
	}
	return ev.opts.Shell
}

// CommandEnv builds the environment for subprocesses: the inherited
// environment plus every exported variable, minus unexported names.
func (ev *Evaler) CommandEnv() []string {
	environ := make(map[string]string)
	var order []string
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			if _, seen := environ[k]; !seen {
				order = append(order, k)
			}
			environ[k] = v
		}
	}
	set := func(name string) {
		v := ev.PeekVar(name)
		if !v.IsDefined() {
			return
		}
		s, err := v.Eval(ev)
		if err != nil {
			logger.Printf("export %s: %v", name, err)
			return
		}
		if _, seen := environ[name]; !seen {
			order = append(order, name)
		}
		environ[name] = s
	}
	if ev.exportAll != nil && *ev.exportAll {
		for name, v := range ev.vars {
			switch v.Origin() {
			case OriginFile, OriginOverride, OriginCommandLine:
				if on, explicit := ev.exports[name]; !explicit || on {
					set(name)
				}
			}
		}
	}
	for name, on := range ev.exports {
		if on {
			set(name)
		} else {
			delete(environ, name)
		}
	}
	out := make([]string, 0, len(environ))
	for _, k := range order {
		if v, ok := environ[k]; ok {
			out = append(out, k+"="+v)
		}
	}
	return out
}
