package eval

import (
	"sort"
	"strings"

	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/pattern"
	"src.kati.dev/pkg/strutil"
)

// String operations.

func init() {
	addBuiltinFuncs(map[string]builtinFunc{
		"patsubst":   {fixedArity(3), fnPatsubst},
		"strip":      {fixedArity(1), fnStrip},
		"subst":      {fixedArity(3), fnSubst},
		"findstring": {fixedArity(2), fnFindstring},
		"filter":     {fixedArity(2), fnFilter},
		"filter-out": {fixedArity(2), fnFilterOut},
		"sort":       {fixedArity(1), fnSort},
	})
}

func fnPatsubst(ev *Evaler, args []parse.Value) (string, error) {
	a, err := ev.evalArgs(args)
	if err != nil {
		return "", err
	}
	pat := pattern.New(a[0])
	ww := strutil.NewWordWriter()
	for ws := strutil.NewWordScanner(a[2]); ws.Scan(); {
		if s := pat.Subst(a[1], ws.Word()); s != "" {
			ww.Write(s)
		}
	}
	return ww.String(), nil
}

func fnStrip(ev *Evaler, args []parse.Value) (string, error) {
	text, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	return strutil.JoinWords(strutil.SplitSpace(text)), nil
}

func fnSubst(ev *Evaler, args []parse.Value) (string, error) {
	a, err := ev.evalArgs(args)
	if err != nil {
		return "", err
	}
	if a[0] == "" {
		// An empty "from" appends "to", which is what the original tools do.
		return a[2] + a[1], nil
	}
	return strings.ReplaceAll(a[2], a[0], a[1]), nil
}

func fnFindstring(ev *Evaler, args []parse.Value) (string, error) {
	a, err := ev.evalArgs(args)
	if err != nil {
		return "", err
	}
	if strings.Contains(a[1], a[0]) {
		return a[0], nil
	}
	return "", nil
}

func fnFilter(ev *Evaler, args []parse.Value) (string, error) {
	return filterWords(ev, args, true)
}

func fnFilterOut(ev *Evaler, args []parse.Value) (string, error) {
	return filterWords(ev, args, false)
}

func filterWords(ev *Evaler, args []parse.Value, keepMatch bool) (string, error) {
	a, err := ev.evalArgs(args)
	if err != nil {
		return "", err
	}
	var pats []pattern.Pattern
	for _, p := range strutil.SplitSpace(a[0]) {
		pats = append(pats, pattern.New(p))
	}
	ww := strutil.NewWordWriter()
	for ws := strutil.NewWordScanner(a[1]); ws.Scan(); {
		matched := false
		for _, pat := range pats {
			if pat.Match(ws.Word()) {
				matched = true
				break
			}
		}
		if matched == keepMatch {
			ww.Write(ws.Word())
		}
	}
	return ww.String(), nil
}

func fnSort(ev *Evaler, args []parse.Value) (string, error) {
	text, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	words := strutil.SplitSpace(text)
	sort.Strings(words)
	ww := strutil.NewWordWriter()
	var last string
	for i, w := range words {
		if i == 0 || w != last {
			ww.Write(w)
		}
		last = w
	}
	return ww.String(), nil
}
