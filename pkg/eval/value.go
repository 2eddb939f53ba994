package eval

import (
	"strings"

	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/pattern"
	"src.kati.dev/pkg/strutil"
)

// Value expands a lazy value tree to a string.
func (ev *Evaler) Value(v parse.Value) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case parse.Literal:
		return string(v), nil
	case parse.Expr:
		var sb strings.Builder
		for _, child := range v {
			s, err := ev.Value(child)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
		return sb.String(), nil
	case parse.SymRef:
		return ev.expandVar(v.Name)
	case parse.VarRef:
		name, err := ev.Value(v.Name)
		if err != nil {
			return "", err
		}
		return ev.expandVar(name)
	case parse.VarSubst:
		return ev.evalVarSubst(v)
	case *parse.FuncCall:
		return ev.callFunc(v)
	}
	return "", ev.errorf("internal error: unknown value %T", v)
}

// expandVar looks up name and evaluates its binding. Recursive variables are
// guarded against expanding themselves.
func (ev *Evaler) expandVar(name string) (string, error) {
	v, err := ev.LookupVar(name)
	if err != nil {
		return "", err
	}
	if _, recursive := v.(*RecursiveVar); recursive {
		if ev.expanding[name] {
			return "", ev.errorf("*** Recursive variable %q references itself (eventually).", name)
		}
		ev.expanding[name] = true
		defer delete(ev.expanding, name)
	}
	ev.evalDepth++
	defer func() { ev.evalDepth-- }()
	return v.Eval(ev)
}

func (ev *Evaler) evalVarSubst(v parse.VarSubst) (string, error) {
	name, err := ev.Value(v.Name)
	if err != nil {
		return "", err
	}
	value, err := ev.expandVar(name)
	if err != nil {
		return "", err
	}
	pat, err := ev.Value(v.Pat)
	if err != nil {
		return "", err
	}
	subst, err := ev.Value(v.Subst)
	if err != nil {
		return "", err
	}
	p := pattern.New(pat)
	ww := strutil.NewWordWriter()
	for ws := strutil.NewWordScanner(value); ws.Scan(); {
		if s := p.SubstRef(subst, ws.Word()); s != "" {
			ww.Write(s)
		}
	}
	return ww.String(), nil
}

func (ev *Evaler) callFunc(fc *parse.FuncCall) (string, error) {
	impl, ok := funcTable[fc.Name]
	if !ok {
		return "", ev.errorf("*** unknown function: %s", fc.Name)
	}
	if len(fc.Args) < impl.MinArity {
		return "", ev.errorf("*** insufficient number of arguments (%d) to function `%s'.",
			len(fc.Args), fc.Name)
	}
	ev.evalDepth++
	defer func() { ev.evalDepth-- }()
	return impl.fn(ev, fc.Args)
}

// evalArgs expands every argument of a function call.
func (ev *Evaler) evalArgs(args []parse.Value) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		s, err := ev.Value(arg)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
