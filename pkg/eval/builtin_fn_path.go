package eval

import (
	"path/filepath"
	"sort"
	"strings"

	"src.kati.dev/pkg/fsutil"
	"src.kati.dev/pkg/glob"
	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/strutil"
)

// Filename operations. All of them work word-wise.

func init() {
	addBuiltinFuncs(map[string]builtinFunc{
		"dir":       {fixedArity(1), fnDir},
		"notdir":    {fixedArity(1), fnNotdir},
		"suffix":    {fixedArity(1), fnSuffix},
		"basename":  {fixedArity(1), fnBasename},
		"addsuffix": {fixedArity(2), fnAddsuffix},
		"addprefix": {fixedArity(2), fnAddprefix},
		"realpath":  {fixedArity(1), fnRealpath},
		"abspath":   {fixedArity(1), fnAbspath},
		"wildcard":  {fixedArity(1), fnWildcard},
	})
}

func mapWords(ev *Evaler, arg parse.Value, f func(string) string) (string, error) {
	text, err := ev.Value(arg)
	if err != nil {
		return "", err
	}
	ww := strutil.NewWordWriter()
	for ws := strutil.NewWordScanner(text); ws.Scan(); {
		if w := f(ws.Word()); w != "" {
			ww.Write(w)
		}
	}
	return ww.String(), nil
}

func fnDir(ev *Evaler, args []parse.Value) (string, error) {
	return mapWords(ev, args[0], func(w string) string {
		i := strings.LastIndexByte(w, '/')
		if i < 0 {
			return "./"
		}
		return w[:i+1]
	})
}

func fnNotdir(ev *Evaler, args []parse.Value) (string, error) {
	return mapWords(ev, args[0], func(w string) string {
		if w == "/" {
			return ""
		}
		return w[strings.LastIndexByte(w, '/')+1:]
	})
}

func fnSuffix(ev *Evaler, args []parse.Value) (string, error) {
	return mapWords(ev, args[0], func(w string) string {
		i := strings.LastIndexByte(w, '.')
		if i <= strings.LastIndexByte(w, '/') {
			return ""
		}
		return w[i:]
	})
}

func fnBasename(ev *Evaler, args []parse.Value) (string, error) {
	return mapWords(ev, args[0], func(w string) string {
		i := strings.LastIndexByte(w, '.')
		if i <= strings.LastIndexByte(w, '/') {
			return w
		}
		return w[:i]
	})
}

func fnAddsuffix(ev *Evaler, args []parse.Value) (string, error) {
	suf, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	return mapWords(ev, args[1], func(w string) string { return w + suf })
}

func fnAddprefix(ev *Evaler, args []parse.Value) (string, error) {
	pre, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	return mapWords(ev, args[1], func(w string) string { return pre + w })
}

func fnRealpath(ev *Evaler, args []parse.Value) (string, error) {
	return mapWords(ev, args[0], func(w string) string {
		resolved, err := filepath.EvalSymlinks(w)
		if err != nil {
			return ""
		}
		abs, err := filepath.Abs(resolved)
		if err != nil {
			return ""
		}
		return abs
	})
}

func fnAbspath(ev *Evaler, args []parse.Value) (string, error) {
	return mapWords(ev, args[0], func(w string) string {
		if !filepath.IsAbs(w) {
			w = filepath.Join(fsutil.Getwd(), w)
		}
		return filepath.Clean(w)
	})
}

func fnWildcard(ev *Evaler, args []parse.Value) (string, error) {
	pats, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	ww := strutil.NewWordWriter()
	for ws := strutil.NewWordScanner(pats); ws.Scan(); {
		var names []string
		glob.Glob(ws.Word(), func(name string) bool {
			names = append(names, name)
			return true
		})
		sort.Strings(names)
		for _, name := range names {
			ww.Write(name)
		}
	}
	return ww.String(), nil
}
