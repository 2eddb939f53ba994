package eval

import (
	"fmt"
	"io"
	"os"
	"strings"

	"src.kati.dev/pkg/diag"
	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/strutil"
)

// Output and file functions.

// Where $(info) writes; tests reroute it.
var infoWriter io.Writer = os.Stdout

func init() {
	addBuiltinFuncs(map[string]builtinFunc{
		"info":    {fixedArity(1), fnInfo},
		"warning": {fixedArity(1), fnWarning},
		"error":   {fixedArity(1), fnError},
		"file":    {parse.FuncProto{Arity: 2, MinArity: 1}, fnFile},
	})
}

func fnInfo(ev *Evaler, args []parse.Value) (string, error) {
	msg, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	if ev.avoidIO() {
		ev.delayedOut = append(ev.delayedOut, "echo "+shellQuote(msg))
		return "", nil
	}
	fmt.Fprintln(infoWriter, msg)
	return "", nil
}

func fnWarning(ev *Evaler, args []parse.Value) (string, error) {
	msg, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	if ev.avoidIO() {
		ev.delayedOut = append(ev.delayedOut,
			"echo "+shellQuote(fmt.Sprintf("%s: %s", ev.loc, msg))+" 1>&2")
		return "", nil
	}
	diag.WarnLoc(ev.loc, "%s", msg)
	return "", nil
}

func fnError(ev *Evaler, args []parse.Value) (string, error) {
	msg, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	if ev.avoidIO() {
		ev.delayedOut = append(ev.delayedOut,
			"echo "+shellQuote(fmt.Sprintf("%s: *** %s.", ev.loc, msg))+" 1>&2 && false")
		return "", nil
	}
	return "", ev.errorf("*** %s.", msg)
}

func fnFile(ev *Evaler, args []parse.Value) (string, error) {
	spec, err := ev.Value(args[0])
	if err != nil {
		return "", err
	}
	spec = strutil.TrimSpace(spec)
	if spec == "" {
		return "", ev.errorf("*** Missing filename")
	}
	return ev.fileOp(spec, args)
}

// fileOp implements $(file) and $(KATI_file_no_rerun).
func (ev *Evaler) fileOp(spec string, args []parse.Value) (string, error) {
	if ev.avoidIO() {
		return "", ev.errorf("*** $(file ...) is not supported in rules while emitting a build description.")
	}
	switch spec[0] {
	case '<':
		name := strutil.TrimLeftSpace(spec[1:])
		if name == "" {
			return "", ev.errorf("*** Missing filename")
		}
		if len(args) > 1 {
			return "", ev.errorf("*** invalid argument")
		}
		content, err := os.ReadFile(name)
		if err != nil {
			if os.IsNotExist(err) {
				return "", nil
			}
			return "", ev.errorf("*** open %s: %s.", name, err)
		}
		return strings.TrimRight(string(content), "\n"), nil
	case '>':
		appendTo := false
		name := spec[1:]
		if strings.HasPrefix(name, ">") {
			appendTo = true
			name = name[1:]
		}
		name = strutil.TrimLeftSpace(name)
		if name == "" {
			return "", ev.errorf("*** Missing filename")
		}
		text := ""
		if len(args) > 1 {
			var err error
			text, err = ev.Value(args[1])
			if err != nil {
				return "", err
			}
			if !strings.HasSuffix(text, "\n") {
				text += "\n"
			}
		}
		flags := os.O_WRONLY | os.O_CREATE
		if appendTo {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(name, flags, 0666)
		if err != nil {
			return "", ev.errorf("*** open %s: %s.", name, err)
		}
		_, werr := f.WriteString(text)
		cerr := f.Close()
		if werr != nil {
			return "", ev.errorf("*** write %s: %s.", name, werr)
		}
		if cerr != nil {
			return "", ev.errorf("*** close %s: %s.", name, cerr)
		}
		return "", nil
	}
	return "", ev.errorf("*** Invalid file operation: %s.  Stop.", spec)
}

// shellQuote wraps s in single quotes for the deferred-output commands.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
