package parse

import (
	"strings"

	"src.kati.dev/pkg/diag"
)

// Value is a lazy expression tree. Evaluation lives in the eval package;
// here values only know how to print themselves back as makefile text, which
// is what $(value) and error messages need.
type Value interface {
	// String returns the value as makefile source text.
	String() string
	value()
}

// Literal is a run of plain text.
type Literal string

// Expr is the concatenation of child values. The parser only produces Expr
// nodes with two or more children.
type Expr []Value

// SymRef is a variable reference with a fixed name: $x or $(name).
type SymRef struct {
	Name string
}

// VarRef is a variable reference whose name needs expansion: $($(x)y).
type VarRef struct {
	Name Value
}

// VarSubst is a substitution reference: $(VAR:pat=subst).
type VarSubst struct {
	Name  Value
	Pat   Value
	Subst Value
}

// FuncCall is a call of a builtin function: $(name arg,arg…).
type FuncCall struct {
	diag.Location
	Name  string
	Args  []Value
	Proto FuncProto
}

func (Literal) value()   {}
func (Expr) value()      {}
func (SymRef) value()    {}
func (VarRef) value()    {}
func (VarSubst) value()  {}
func (*FuncCall) value() {}

func (v Literal) String() string { return string(v) }

func (v Expr) String() string {
	var sb strings.Builder
	for _, child := range v {
		sb.WriteString(child.String())
	}
	return sb.String()
}

func (v SymRef) String() string {
	if len(v.Name) == 1 {
		return "$" + v.Name
	}
	return "$(" + v.Name + ")"
}

func (v VarRef) String() string {
	return "$(" + v.Name.String() + ")"
}

func (v VarSubst) String() string {
	return "$(" + v.Name.String() + ":" + v.Pat.String() + "=" + v.Subst.String() + ")"
}

func (v *FuncCall) String() string {
	var sb strings.Builder
	sb.WriteString("$(")
	sb.WriteString(v.Name)
	for i, arg := range v.Args {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteByte(',')
		}
		sb.WriteString(arg.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// compactExpr flattens the degenerate cases of an expression list: no
// children become an empty literal and a single child is returned as itself.
func compactExpr(children []Value) Value {
	switch len(children) {
	case 0:
		return Literal("")
	case 1:
		return children[0]
	}
	return Expr(children)
}

// IsLiteral reports whether v is a literal, the only leaf whose evaluation
// is its stored text.
func IsLiteral(v Value) bool {
	_, ok := v.(Literal)
	return ok
}
