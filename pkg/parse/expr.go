package parse

import (
	"strings"

	"src.kati.dev/pkg/strutil"
)

// exprOpt selects the context an expression is parsed in. The contexts differ
// in how # and backslashes are treated.
type exprOpt int

const (
	// A left-hand side, prerequisite list or directive argument.
	optNormal exprOpt = iota
	// The body of a define; newlines are data and # is not a comment.
	optDefine
	// A recipe line; nothing is stripped.
	optCommand
	// The inside of a $(…); terminators decide where to stop.
	optFunc
)

// ParseExpr parses s as a single value, using the function table of cfg. It
// is the entry point used by the eval package for text produced at run time.
func ParseExpr(s string, cfg Config) Value {
	ps := &parser{cfg: cfg}
	v, _ := ps.parseExpr(s, "", optNormal)
	return v
}

// parseExpr parses a value from s, stopping at any byte of terms found at
// paren depth zero, or at end of input. It returns the value and the number
// of bytes consumed.
func (ps *parser) parseExpr(s string, terms string, opt exprOpt) (Value, int) {
	var children []Value
	var lit strings.Builder
	flushLit := func() {
		if lit.Len() > 0 {
			children = append(children, Literal(lit.String()))
			lit.Reset()
		}
	}

	depth := 0
	i := 0
loop:
	for i < len(s) {
		b := s[i]
		if depth == 0 && terms != "" && strings.IndexByte(terms, b) >= 0 {
			break
		}
		switch b {
		case '$':
			if i+1 == len(s) {
				lit.WriteByte('$')
				i++
				break loop
			}
			flushLit()
			v, next := ps.parseDollar(s, i)
			children = append(children, v)
			i = next
		case '(', '{':
			depth++
			lit.WriteByte(b)
			i++
		case ')', '}':
			if depth > 0 {
				depth--
			}
			lit.WriteByte(b)
			i++
		case '#':
			if depth == 0 && opt == optNormal {
				// A comment consumes the rest of the input.
				i = len(s)
				break loop
			}
			lit.WriteByte(b)
			i++
		case '\\':
			if i+1 < len(s) && s[i+1] == '#' && opt != optCommand {
				lit.WriteByte('#')
				i += 2
			} else {
				lit.WriteByte('\\')
				i++
			}
		default:
			lit.WriteByte(b)
			i++
		}
	}
	flushLit()
	return compactExpr(children), i
}

// parseDollar parses the $-construct starting at s[i] ('$') and returns the
// value along with the index just past it.
func (ps *parser) parseDollar(s string, i int) (Value, int) {
	c := s[i+1]
	switch c {
	case '$':
		return Literal("$"), i + 2
	case '(', '{':
		cp := byte(')')
		if c == '{' {
			cp = '}'
		}
		body := i + 2
		name, n := ps.parseExpr(s[body:], string(cp)+": \t", optFunc)
		j := body + n
		if j >= len(s) {
			ps.errorf("*** unterminated variable reference.")
			return Literal(s[i:]), len(s)
		}
		switch s[j] {
		case cp:
			return symOrVarRef(name), j + 1
		case ' ', '\t':
			if lit, ok := name.(Literal); ok {
				if proto, ok := ps.cfg.Funcs[string(lit)]; ok {
					return ps.parseFunc(string(lit), proto, s, j+1, cp, i)
				}
			}
			// Not a function; the whole body is a variable name with
			// embedded whitespace.
			return ps.reparseRef(s, body, cp, i)
		case ':':
			pat, n2 := ps.parseExpr(s[j+1:], string(cp)+"=", optFunc)
			k := j + 1 + n2
			if k < len(s) && s[k] == '=' {
				subst, n3 := ps.parseExpr(s[k+1:], string(cp), optFunc)
				m := k + 1 + n3
				if m >= len(s) {
					ps.errorf("*** unterminated variable reference.")
					return Literal(s[i:]), len(s)
				}
				return VarSubst{Name: name, Pat: pat, Subst: subst}, m + 1
			}
			// No = before the close; the colon and pattern are part of the
			// variable name.
			return ps.reparseRef(s, body, cp, i)
		}
		ps.errorf("*** unterminated variable reference.")
		return Literal(s[i:]), len(s)
	default:
		return SymRef{Name: s[i+1 : i+2]}, i + 2
	}
}

// reparseRef re-parses a $(…) body from scratch with only the close byte as
// terminator and wraps the result as a variable reference.
func (ps *parser) reparseRef(s string, body int, cp byte, start int) (Value, int) {
	name, n := ps.parseExpr(s[body:], string(cp), optFunc)
	j := body + n
	if j >= len(s) || s[j] != cp {
		ps.errorf("*** unterminated variable reference.")
		return Literal(s[start:]), len(s)
	}
	return symOrVarRef(name), j + 1
}

func symOrVarRef(name Value) Value {
	if lit, ok := name.(Literal); ok {
		return SymRef{Name: string(lit)}
	}
	return VarRef{Name: name}
}

// parseFunc parses the arguments of $(name arg,…) starting right after the
// whitespace that follows the function name.
func (ps *parser) parseFunc(name string, proto FuncProto, s string, i int, cp byte, start int) (Value, int) {
	fc := &FuncCall{
		Location: locOf(ps.name, ps.lineno),
		Name:     name,
		Proto:    proto,
	}
	for {
		if len(fc.Args) == 0 || proto.TrimSpace {
			for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
				i++
			}
		}
		terms := string(cp) + ","
		if proto.Arity > 0 && len(fc.Args)+1 >= proto.Arity {
			// The final argument swallows any further commas.
			terms = string(cp)
		}
		arg, n := ps.parseExpr(s[i:], terms, optFunc)
		if len(fc.Args) == 0 && proto.TrimRightFirst {
			arg = trimLiteralRight(arg)
		}
		fc.Args = append(fc.Args, arg)
		i += n
		if i >= len(s) {
			ps.errorf("*** unterminated call to function '%s': missing '%c'.", name, cp)
			return fc, len(s)
		}
		if s[i] == cp {
			return fc, i + 1
		}
		i++ // skip the comma
	}
}

// trimLiteralRight removes trailing ASCII whitespace from the last literal
// of a value, if the value ends in one.
func trimLiteralRight(v Value) Value {
	switch v := v.(type) {
	case Literal:
		return Literal(strutil.TrimRightSpace(string(v)))
	case Expr:
		if len(v) > 0 {
			if lit, ok := v[len(v)-1].(Literal); ok {
				trimmed := strutil.TrimRightSpace(string(lit))
				if trimmed == "" {
					return compactExpr(v[:len(v)-1])
				}
				out := append(Expr{}, v...)
				out[len(out)-1] = Literal(trimmed)
				return out
			}
		}
	}
	return v
}
