package eval

import (
	"strconv"

	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/strutil"
)

// Word-list operations.

func init() {
	addBuiltinFuncs(map[string]builtinFunc{
		"word":      {fixedArity(2), fnWord},
		"wordlist":  {fixedArity(3), fnWordlist},
		"words":     {fixedArity(1), fnWords},
		"firstword": {fixedArity(1), fnFirstword},
		"lastword":  {fixedArity(1), fnLastword},
		"join":      {fixedArity(2), fnJoin},
	})
}

func fnWord(ev *Evaler, args []parse.Value) (string, error) {
	a, err := ev.evalArgs(args)
	if err != nil {
		return "", err
	}
	index := strutil.TrimSpace(a[0])
	n, ok := strutil.ParseUint(index)
	if !ok {
		return "", ev.errorf("*** non-numeric first argument to `word' function: '%s'.", index)
	}
	if n == 0 {
		return "", ev.errorf("*** first argument to `word' function must be greater than 0.")
	}
	for ws := strutil.NewWordScanner(a[1]); ws.Scan(); {
		n--
		if n == 0 {
			return ws.Word(), nil
		}
	}
	return "", nil
}

func fnWordlist(ev *Evaler, args []parse.Value) (string, error) {
	a, err := ev.evalArgs(args)
	if err != nil {
		return "", err
	}
	start, ok := strutil.ParseUint(strutil.TrimSpace(a[0]))
	if !ok {
		return "", ev.errorf("*** non-numeric first argument to `wordlist' function: '%s'.",
			strutil.TrimSpace(a[0]))
	}
	end, ok := strutil.ParseUint(strutil.TrimSpace(a[1]))
	if !ok {
		return "", ev.errorf("*** non-numeric second argument to `wordlist' function: '%s'.",
			strutil.TrimSpace(a[1]))
	}
	if start == 0 || end == 0 {
		return "", ev.errorf("*** invalid first argument to `wordlist' function: %s", a[0])
	}
	ww := strutil.NewWordWriter()
	i := 0
	for ws := strutil.NewWordScanner(a[2]); ws.Scan(); {
		i++
		if start <= i && i <= end {
			ww.Write(ws.Word())
		}
	}
	return ww.String(), nil
}

func fnWords(ev *Evaler, args []parse.Value) (string, error) {
	text, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	n := 0
	for ws := strutil.NewWordScanner(text); ws.Scan(); {
		n++
	}
	return strconv.Itoa(n), nil
}

func fnFirstword(ev *Evaler, args []parse.Value) (string, error) {
	text, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	ws := strutil.NewWordScanner(text)
	if ws.Scan() {
		return ws.Word(), nil
	}
	return "", nil
}

func fnLastword(ev *Evaler, args []parse.Value) (string, error) {
	text, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	last := ""
	for ws := strutil.NewWordScanner(text); ws.Scan(); {
		last = ws.Word()
	}
	return last, nil
}

func fnJoin(ev *Evaler, args []parse.Value) (string, error) {
	a, err := ev.evalArgs(args)
	if err != nil {
		return "", err
	}
	ws1 := strutil.NewWordScanner(a[0])
	ws2 := strutil.NewWordScanner(a[1])
	ww := strutil.NewWordWriter()
	for {
		ok1 := ws1.Scan()
		ok2 := ws2.Scan()
		if !ok1 && !ok2 {
			return ww.String(), nil
		}
		ww.Write(ws1.Word() + ws2.Word())
	}
}
