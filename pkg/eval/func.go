package eval

import "src.kati.dev/pkg/parse"

// builtinFunc couples a function's call shape with its implementation. The
// registry is a closed set; every entry is registered from an init function
// in one of the builtin_fn_*.go files.
type builtinFunc struct {
	parse.FuncProto
	fn func(ev *Evaler, args []parse.Value) (string, error)
}

var funcTable = map[string]builtinFunc{}

func addBuiltinFuncs(fns map[string]builtinFunc) {
	for name, f := range fns {
		if _, ok := funcTable[name]; ok {
			panic("duplicate builtin function: " + name)
		}
		funcTable[name] = f
	}
}

// FuncProtos returns the call shapes of all builtin functions, in the form
// the parser consumes.
func FuncProtos() map[string]parse.FuncProto {
	protos := make(map[string]parse.FuncProto, len(funcTable))
	for name, f := range funcTable {
		protos[name] = f.FuncProto
	}
	return protos
}

// fixedArity is the common shape: n required comma-separated arguments.
func fixedArity(n int) parse.FuncProto {
	return parse.FuncProto{Arity: n, MinArity: n}
}
