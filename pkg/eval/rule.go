package eval

import (
	"strings"

	"src.kati.dev/pkg/diag"
	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/pattern"
	"src.kati.dev/pkg/strutil"
)

// Rule is one evaluated rule line. Rules accumulate on the Evaler in
// declaration order; the dep package merges them per target.
type Rule struct {
	diag.Location

	Outputs         []string
	OutputPatterns  []pattern.Pattern
	Inputs          []string
	OrderOnlyInputs []string
	// Recipe lines, still unexpanded; automatic variables get their values
	// when the executor expands these per target.
	Cmds          []parse.Value
	IsDoubleColon bool
	// Set when the rule was desugared from a .X.Y suffix rule.
	IsSuffixRule bool
	CmdLineno    int
}

// parseRuleLine splits an expanded rule line "targets : prereqs | order-only"
// into a Rule. An empty line yields nil. A line without a colon is a
// missing-separator error.
func (ev *Evaler) parseRuleLine(line string, loc diag.Location) (*Rule, error) {
	line = strutil.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	sep := strutil.IndexOutsideParen(line, ":")
	if sep < 0 {
		return nil, ev.errorf("*** missing separator.")
	}
	rule := &Rule{Location: loc}
	rest := line[sep+1:]
	if strings.HasPrefix(rest, ":") {
		rule.IsDoubleColon = true
		rest = rest[1:]
	}

	for _, tok := range strutil.SplitSpace(line[:sep]) {
		if strings.IndexByte(tok, '%') >= 0 {
			rule.OutputPatterns = append(rule.OutputPatterns, pattern.New(tok))
		} else {
			rule.Outputs = append(rule.Outputs, tok)
		}
	}
	if len(rule.Outputs) == 0 && len(rule.OutputPatterns) == 0 {
		return nil, ev.errorf("*** missing target.")
	}
	if len(rule.Outputs) > 0 && len(rule.OutputPatterns) > 0 {
		return nil, ev.errorf("*** mixed implicit and normal rules: deprecated syntax")
	}

	inputs := rest
	orderOnly := ""
	if i := strutil.IndexOutsideParen(rest, "|"); i >= 0 {
		inputs, orderOnly = rest[:i], rest[i+1:]
	}
	rule.Inputs = strutil.SplitSpace(inputs)
	rule.OrderOnlyInputs = strutil.SplitSpace(orderOnly)
	return rule, nil
}

// parseTargetSpecificVar handles "target: VAR op" left-hand sides of rule
// lines whose separator was = or $=.
func (ev *Evaler) parseTargetSpecificVar(line string, isFinal bool, rhs parse.Value, origRhs string) error {
	sep := strutil.IndexOutsideParen(line, ":")
	if sep < 0 {
		return ev.errorf("*** missing separator.")
	}
	targets := strutil.SplitSpace(line[:sep])
	if len(targets) == 0 {
		return ev.errorf("*** missing target.")
	}
	after := strutil.TrimSpace(line[sep+1:])
	op := parse.OpSet
	switch {
	case strings.HasSuffix(after, ":"):
		op, after = parse.OpSimple, after[:len(after)-1]
	case strings.HasSuffix(after, "+"):
		op, after = parse.OpAppend, after[:len(after)-1]
	case strings.HasSuffix(after, "?"):
		op, after = parse.OpCondSet, after[:len(after)-1]
	}
	name := strutil.TrimSpace(after)
	if name == "" {
		return ev.errorf("*** empty variable name.")
	}
	for _, target := range targets {
		vars := ev.ruleVars[target]
		if vars == nil {
			vars = make(Vars)
			ev.ruleVars[target] = vars
		}
		// "target: V += x" appends to the global value without touching it;
		// seed the target frame with a copy first.
		if op == parse.OpAppend && !vars.Lookup(name).IsDefined() {
			if global := ev.PeekVar(name); global.IsDefined() {
				vars[name] = cloneVar(global)
			}
		}
		if err := ev.assignInto(vars, name, rhs, origRhs, op, parse.DirNone, isFinal); err != nil {
			return err
		}
	}
	return nil
}

func cloneVar(v Var) Var {
	switch v := v.(type) {
	case *SimpleVar:
		c := *v
		return &c
	case *RecursiveVar:
		c := *v
		return &c
	}
	return v
}
