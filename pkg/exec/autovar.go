package exec

import (
	"strings"

	"src.kati.dev/pkg/dep"
	"src.kati.dev/pkg/diag"
	"src.kati.dev/pkg/eval"
	"src.kati.dev/pkg/fsutil"
	"src.kati.dev/pkg/strutil"
)

// autoVars builds the automatic-variable scope for one target. Values are
// computed when the scope is built, which is right before the node's recipe
// is expanded, so the dependency lists are final.
func (ex *Executor) autoVars(n *dep.DepNode) eval.Vars {
	vars := make(eval.Vars)
	set := func(name, value string) {
		vars[name] = eval.NewSimpleVar(value, eval.OriginAutomatic, diag.Location{})
		vars[name+"D"] = eval.NewSimpleVar(dirWords(value), eval.OriginAutomatic, diag.Location{})
		vars[name+"F"] = eval.NewSimpleVar(fileWords(value), eval.OriginAutomatic, diag.Location{})
	}

	first := ""
	if len(n.ActualInputs) > 0 {
		first = n.ActualInputs[0]
	}
	var uniq []string
	seen := make(map[string]bool)
	for _, in := range n.ActualInputs {
		if !seen[in] {
			seen[in] = true
			uniq = append(uniq, in)
		}
	}

	set("@", n.Output)
	set("<", first)
	set("^", strutil.JoinWords(uniq))
	set("+", strutil.JoinWords(n.ActualInputs))
	set("*", n.Stem)
	set("?", strutil.JoinWords(ex.newerInputs(n)))
	return vars
}

// newerInputs returns the prerequisites whose mtime is newer than the
// output, which is everything when the output does not exist yet.
func (ex *Executor) newerInputs(n *dep.DepNode) []string {
	outTs, ok := fsutil.Mtime(n.Output)
	if !ok {
		return n.ActualInputs
	}
	var newer []string
	for _, in := range n.ActualInputs {
		ts, ok := fsutil.Mtime(in)
		if !ok || ts.After(outTs) {
			newer = append(newer, in)
		}
	}
	return newer
}

// dirWords maps each word to its directory part without the trailing slash,
// which is how $(@D) differs from $(dir $@).
func dirWords(s string) string {
	ww := strutil.NewWordWriter()
	for ws := strutil.NewWordScanner(s); ws.Scan(); {
		w := ws.Word()
		i := strings.LastIndexByte(w, '/')
		switch {
		case i < 0:
			ww.Write(".")
		case i == 0:
			ww.Write("/")
		default:
			ww.Write(w[:i])
		}
	}
	return ww.String()
}

func fileWords(s string) string {
	ww := strutil.NewWordWriter()
	for ws := strutil.NewWordScanner(s); ws.Scan(); {
		w := ws.Word()
		ww.Write(w[strings.LastIndexByte(w, '/')+1:])
	}
	return ww.String()
}
