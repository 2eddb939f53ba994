package eval

import (
	"src.kati.dev/pkg/diag"
	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/strutil"
)

// Origin says where a variable binding came from. It is reported by
// $(origin) and decides whether makefile assignments may clobber it.
type Origin int

// Values for Origin.
const (
	OriginUndefined Origin = iota
	OriginDefault
	OriginEnvironment
	OriginEnvironmentOverride
	OriginFile
	OriginCommandLine
	OriginOverride
	OriginAutomatic
)

func (o Origin) String() string {
	switch o {
	case OriginDefault:
		return "default"
	case OriginEnvironment:
		return "environment"
	case OriginEnvironmentOverride:
		return "environment override"
	case OriginFile:
		return "file"
	case OriginCommandLine:
		return "command line"
	case OriginOverride:
		return "override"
	case OriginAutomatic:
		return "automatic"
	}
	return "undefined"
}

// Var is a variable binding. The concrete types differ in when their payload
// is expanded.
type Var interface {
	// Eval returns the value of the variable, expanding it if needed.
	Eval(ev *Evaler) (string, error)
	// String returns the definition text, which is what $(value) prints.
	String() string
	// Flavor is the answer of $(flavor).
	Flavor() string
	Origin() Origin
	IsDefined() bool
	base() *varBase
}

// varBase carries the bookkeeping shared by all defined variables.
type varBase struct {
	loc diag.Location
	org Origin

	readonly bool
	final    bool
	// Deprecated variables warn on every read; obsolete ones fail.
	deprecated bool
	obsolete   bool
	// Message shown by the deprecation warning or obsoletion error.
	message string
	// When non-empty, only makefiles under one of these prefixes may read
	// the variable.
	visibility []string
}

func (b *varBase) base() *varBase     { return b }
func (b *varBase) Loc() diag.Location { return b.loc }

// SimpleVar holds a fully expanded string (the := flavor).
type SimpleVar struct {
	varBase
	value string
}

// NewSimpleVar returns a simple variable with the given value and origin.
func NewSimpleVar(value string, org Origin, loc diag.Location) *SimpleVar {
	return &SimpleVar{varBase: varBase{org: org, loc: loc}, value: value}
}

func (v *SimpleVar) Eval(*Evaler) (string, error) { return v.value, nil }
func (v *SimpleVar) String() string               { return v.value }
func (v *SimpleVar) Flavor() string               { return "simple" }
func (v *SimpleVar) Origin() Origin               { return v.org }
func (v *SimpleVar) IsDefined() bool              { return true }

// RecursiveVar holds an unexpanded value tree that is re-expanded on every
// read (the = flavor).
type RecursiveVar struct {
	varBase
	expr parse.Value
	orig string
}

// NewRecursiveVar returns a recursive variable holding expr. orig is the
// source text of the right-hand side, kept verbatim for $(value).
func NewRecursiveVar(expr parse.Value, orig string, org Origin, loc diag.Location) *RecursiveVar {
	return &RecursiveVar{varBase: varBase{org: org, loc: loc}, expr: expr, orig: orig}
}

func (v *RecursiveVar) Eval(ev *Evaler) (string, error) { return ev.Value(v.expr) }
func (v *RecursiveVar) String() string                  { return v.orig }
func (v *RecursiveVar) Flavor() string                  { return "recursive" }
func (v *RecursiveVar) Origin() Origin                  { return v.org }
func (v *RecursiveVar) IsDefined() bool                 { return true }

// append extends the variable with another unexpanded value, the way +=
// treats recursive variables.
func (v *RecursiveVar) append(rhs parse.Value, orig string) {
	v.expr = parse.Expr{v.expr, parse.Literal(" "), rhs}
	v.orig += " " + orig
}

// AutomaticVar computes its value by calling fn on every read. The executor's
// automatic variables ($@, $< and friends) are simple variables instead.
type AutomaticVar struct {
	varBase
	fn func() string
}

// NewAutomaticVar returns an automatic variable backed by fn.
func NewAutomaticVar(fn func() string) *AutomaticVar {
	return &AutomaticVar{varBase: varBase{org: OriginAutomatic}, fn: fn}
}

func (v *AutomaticVar) Eval(*Evaler) (string, error) { return v.fn(), nil }
func (v *AutomaticVar) String() string               { return v.fn() }
func (v *AutomaticVar) Flavor() string               { return "undefined" }
func (v *AutomaticVar) Origin() Origin               { return OriginAutomatic }
func (v *AutomaticVar) IsDefined() bool              { return true }

// undefinedVar is the sentinel returned by lookups of absent names.
type undefinedVar struct{ varBase }

// Undefined is the shared undefined-variable sentinel.
var Undefined Var = &undefinedVar{}

func (*undefinedVar) Eval(*Evaler) (string, error) { return "", nil }
func (*undefinedVar) String() string               { return "" }
func (*undefinedVar) Flavor() string               { return "undefined" }
func (*undefinedVar) Origin() Origin               { return OriginUndefined }
func (*undefinedVar) IsDefined() bool              { return false }

// Vars maps variable names to bindings; it is one scope frame.
type Vars map[string]Var

// Lookup returns the binding for name, or the Undefined sentinel.
func (vs Vars) Lookup(name string) Var {
	if v, ok := vs[name]; ok {
		return v
	}
	return Undefined
}

// Assign binds name unless the existing binding is readonly. It reports
// whether the binding was rejected.
func (vs Vars) Assign(name string, v Var) (readonly bool) {
	if old, ok := vs[name]; ok && old.base().readonly {
		return true
	}
	vs[name] = v
	return false
}

// Merge copies all bindings of other into vs.
func (vs Vars) Merge(other Vars) {
	for name, v := range other {
		vs[name] = v
	}
}

// markers used by .KATI_READONLY and the KATI_* marking functions.

func markReadonly(v Var) {
	if v.IsDefined() {
		v.base().readonly = true
	}
}

func visibilityOK(v Var, file string) bool {
	prefixes := v.base().visibility
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strutil.HasPathPrefix(file, p) {
			return true
		}
	}
	return false
}
