package eval

import "src.kati.dev/pkg/parse"

// Conditional functions. These evaluate their arguments lazily: $(if) only
// expands the branch it selects, and $(and)/$(or) stop at the deciding
// argument.

func init() {
	addBuiltinFuncs(map[string]builtinFunc{
		"if":  {parse.FuncProto{Arity: 3, MinArity: 2, TrimRightFirst: true}, fnIf},
		"and": {parse.FuncProto{MinArity: 1, TrimSpace: true}, fnAnd},
		"or":  {parse.FuncProto{MinArity: 1, TrimSpace: true}, fnOr},
	})
}

func fnIf(ev *Evaler, args []parse.Value) (string, error) {
	cond, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	if cond != "" {
		return ev.Value(args[1])
	}
	if len(args) > 2 {
		return ev.Value(args[2])
	}
	return "", nil
}

func fnAnd(ev *Evaler, args []parse.Value) (string, error) {
	var last string
	for _, arg := range args {
		s, err := ev.Value(arg)
		if err != nil {
			return "", err
		}
		if s == "" {
			return "", nil
		}
		last = s
	}
	return last, nil
}

func fnOr(ev *Evaler, args []parse.Value) (string, error) {
	for _, arg := range args {
		s, err := ev.Value(arg)
		if err != nil {
			return "", err
		}
		if s != "" {
			return s, nil
		}
	}
	return "", nil
}
