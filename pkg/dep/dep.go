// Package dep turns the rules recorded by the evaluator into a dependency
// graph of DepNodes, resolving explicit rules, pattern rules and suffix
// rules for every requested target.
package dep

import (
	"strings"

	"src.kati.dev/pkg/diag"
	"src.kati.dev/pkg/eval"
	"src.kati.dev/pkg/fsutil"
	"src.kati.dev/pkg/logutil"
	"src.kati.dev/pkg/pattern"
	"src.kati.dev/pkg/strutil"
)

var logger = logutil.GetLogger("[dep] ")

// Error is a dependency-graph construction failure.
type Error struct {
	diag.Location
	Msg string
}

// Error returns the conventional file:line: message form.
func (e *Error) Error() string { return e.Location.String() + ": " + e.Msg }

// Show implements diag.Shower.
func (e *Error) Show(string) string { return e.Error() }

// Options configures graph construction.
type Options struct {
	// Fail on a target whose commands are redefined, instead of warning.
	ErrOverridingCommands bool
	// Leave the recognized-suffix list empty instead of seeding the
	// traditional set.
	NoBuiltinRules bool
}

// Special targets mutate build metadata instead of becoming graph nodes.
var specialTargets = map[string]bool{
	".PHONY":                 true,
	".KATI_RESTAT":           true,
	".SUFFIXES":              true,
	".KATI_DEPFILE":          true,
	".KATI_IMPLICIT_OUTPUTS": true,
	".KATI_NINJA_POOL":       true,
	".KATI_VALIDATIONS":      true,
	".KATI_TAGS":             true,
}

// The traditional suffix list, trimmed to the suffixes that still appear in
// the wild.
var defaultSuffixes = []string{
	".out", ".a", ".o", ".c", ".cc", ".C", ".cpp", ".p", ".f", ".F",
	".m", ".r", ".y", ".l", ".s", ".S", ".mod", ".sym", ".def", ".h",
	".info", ".dvi", ".tex", ".sh", ".el",
}

// Builder constructs DepNodes on demand and memoises them per target.
type Builder struct {
	ev   *eval.Evaler
	opts Options

	rules         map[string]*ruleMerger
	implicitRules *ruleTrie
	suffixes      map[string]bool
	phony         map[string]bool
	restat        map[string]bool
	firstTarget   string
	targetOrder   []string

	memo map[string]*nodeState
}

type nodeState struct {
	node       *DepNode
	processing bool
}

// NewBuilder ingests every recorded rule and prepares the merger table, the
// implicit-rule trie and the implicit-output links.
func NewBuilder(ev *eval.Evaler, opts Options) (*Builder, error) {
	b := &Builder{
		ev:            ev,
		opts:          opts,
		rules:         make(map[string]*ruleMerger),
		implicitRules: newRuleTrie(),
		suffixes:      make(map[string]bool),
		phony:         make(map[string]bool),
		restat:        make(map[string]bool),
		memo:          make(map[string]*nodeState),
	}
	if !opts.NoBuiltinRules {
		for _, s := range defaultSuffixes {
			b.suffixes[s] = true
		}
	}
	for _, r := range ev.Rules() {
		if err := b.ingest(r); err != nil {
			return nil, err
		}
	}
	if err := b.linkImplicitOutputs(); err != nil {
		return nil, err
	}
	logger.Printf("%d explicit targets, %d implicit rules",
		len(b.rules), b.implicitRules.size())
	return b, nil
}

func (b *Builder) merger(target string) *ruleMerger {
	m, ok := b.rules[target]
	if !ok {
		m = &ruleMerger{}
		b.rules[target] = m
		b.targetOrder = append(b.targetOrder, target)
	}
	return m
}

func (b *Builder) ingest(r *eval.Rule) error {
	if len(r.OutputPatterns) > 1 {
		return &Error{r.Location, "*** multiple target patterns."}
	}
	if len(r.OutputPatterns) == 1 {
		b.implicitRules.Add(r.OutputPatterns[0].String(), r)
		return nil
	}
	if len(r.Outputs) == 1 && specialTargets[r.Outputs[0]] {
		return b.ingestSpecial(r)
	}
	for _, out := range r.Outputs {
		if desugared := b.trySuffixRule(out, r); desugared {
			continue
		}
		if b.firstTarget == "" && !strings.HasPrefix(out, ".") {
			b.firstTarget = out
		}
		if err := b.merger(out).addRule(b, out, r); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) ingestSpecial(r *eval.Rule) error {
	switch r.Outputs[0] {
	case ".PHONY":
		for _, in := range r.Inputs {
			b.phony[in] = true
		}
	case ".KATI_RESTAT":
		for _, in := range r.Inputs {
			b.restat[in] = true
		}
	case ".SUFFIXES":
		if len(r.Inputs) == 0 {
			b.suffixes = make(map[string]bool)
			break
		}
		for _, in := range r.Inputs {
			b.suffixes[in] = true
		}
	default:
		// The remaining .KATI_* names act through target-scoped variables;
		// as targets they carry no meaning.
		logger.Printf("ignoring special target %s", r.Outputs[0])
	}
	return nil
}

// trySuffixRule desugars a ".X.Y" output into the pattern rule "%.Y: %.X"
// when both suffixes are recognized. Rules carrying explicit prerequisites
// are not suffix rules.
func (b *Builder) trySuffixRule(out string, r *eval.Rule) bool {
	if len(r.Inputs) > 0 || len(r.OrderOnlyInputs) > 0 {
		return false
	}
	if out == "" || out[0] != '.' {
		return false
	}
	rest := out[1:]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 || strings.IndexByte(rest[dot+1:], '.') >= 0 {
		return false
	}
	inputSuffix := "." + rest[:dot]
	outputSuffix := "." + rest[dot+1:]
	if !b.suffixes[inputSuffix] || !b.suffixes[outputSuffix] {
		return false
	}
	desugared := *r
	desugared.Outputs = nil
	desugared.OutputPatterns = []pattern.Pattern{pattern.New("%" + outputSuffix)}
	desugared.Inputs = []string{"%" + inputSuffix}
	desugared.IsSuffixRule = true
	b.implicitRules.Add("%"+outputSuffix, &desugared)
	return true
}

func (b *Builder) linkImplicitOutputs() error {
	for target, vars := range b.ev.AllRuleVars() {
		v := vars.Lookup(".KATI_IMPLICIT_OUTPUTS")
		if !v.IsDefined() {
			continue
		}
		s, err := v.Eval(b.ev)
		if err != nil {
			return err
		}
		parent := b.rules[target]
		for _, out := range strutil.SplitSpace(s) {
			if parent == nil || parent.primary == nil {
				return &Error{diag.Location{},
					"*** implicit output `" + out + "' of `" + target + "' which has no commands"}
			}
			parent.implicitOutputs = append(parent.implicitOutputs, out)
			if err := b.merger(out).setImplicitOutput(out, target, parent); err != nil {
				return err
			}
		}
	}
	return nil
}

// FirstTarget returns the default goal: the first explicit target that does
// not begin with a dot.
func (b *Builder) FirstTarget() string { return b.firstTarget }

// AllTargets returns every explicit target in declaration order.
func (b *Builder) AllTargets() []string { return b.targetOrder }

// Build materializes nodes for the requested targets, or for the default
// goal when none are given.
func (b *Builder) Build(targets []string) ([]*DepNode, error) {
	if len(targets) == 0 {
		if b.firstTarget == "" {
			return nil, &Error{diag.Location{}, "*** No targets."}
		}
		targets = []string{b.firstTarget}
	}
	var nodes []*DepNode
	for _, target := range targets {
		n, err := b.buildNode(target, "")
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func (b *Builder) buildNode(target, neededBy string) (*DepNode, error) {
	if st, ok := b.memo[target]; ok {
		if st.processing {
			diag.Complainf("Circular %s <- %s dependency dropped.", neededBy, target)
			return nil, nil
		}
		return st.node, nil
	}
	n := &DepNode{Output: target}
	st := &nodeState{node: n, processing: true}
	b.memo[target] = st

	n.IsPhony = b.phony[target]
	n.IsRestat = b.restat[target]
	n.IsDefaultTarget = target == b.firstTarget
	n.RuleVars = b.ev.RuleVars(target)

	var inputs, orderOnly []string
	merger := b.rules[target]
	havePrimary := false
	if merger != nil {
		n.HasRule = true
		n.ImplicitOutputs = merger.implicitOutputs
		for _, r := range merger.rules {
			inputs = append(inputs, r.Inputs...)
			orderOnly = append(orderOnly, r.OrderOnlyInputs...)
		}
		switch {
		case merger.isDoubleColon:
			for _, r := range merger.rules {
				n.Cmds = append(n.Cmds, r.Cmds...)
			}
			first := merger.rules[0]
			n.Location = first.Location
			n.CmdLineno = first.CmdLineno
			havePrimary = true
		case merger.parent != nil:
			if b.phony[merger.parentSym] {
				return nil, &Error{diag.Location{},
					"*** implicit output `" + target + "' on phony target `" + merger.parentSym + "'"}
			}
			p := merger.parent.primary
			n.Cmds = p.Cmds
			n.Location = p.Location
			n.CmdLineno = p.CmdLineno
			inputs = append(inputs, p.Inputs...)
			orderOnly = append(orderOnly, p.OrderOnlyInputs...)
			havePrimary = true
		case merger.primary != nil:
			p := merger.primary
			n.Cmds = p.Cmds
			n.Location = p.Location
			n.CmdLineno = p.CmdLineno
			havePrimary = true
		}
	}
	if !havePrimary {
		if r, pat, ok := b.pickRule(target); ok {
			n.HasRule = true
			n.Cmds = r.Cmds
			n.Location = r.Location
			n.CmdLineno = r.CmdLineno
			n.OutputPattern = pat.String()
			n.Stem = pat.Stem(target)
			for _, in := range r.Inputs {
				inputs = append(inputs, pattern.New(in).Expand(n.Stem))
			}
			for _, in := range r.OrderOnlyInputs {
				orderOnly = append(orderOnly, pattern.New(in).Expand(n.Stem))
			}
		}
	}
	n.ActualInputs = inputs
	n.ActualOrderOnlyInputs = orderOnly

	n.NinjaPoolVar = b.targetVar(n, ".KATI_NINJA_POOL")
	n.DepfileVar = b.targetVar(n, ".KATI_DEPFILE")
	n.TagsVar = b.targetVar(n, ".KATI_TAGS")
	n.ActualValidations = strutil.SplitSpace(b.targetVar(n, ".KATI_VALIDATIONS"))

	scope := n.RuleVars
	if scope == nil {
		scope = eval.Vars{}
	}
	err := b.ev.WithScope(scope, func() error {
		link := func(names []string, out *[]*DepNode) error {
			for _, name := range names {
				child, err := b.buildNode(name, target)
				if err != nil {
					return err
				}
				if child != nil {
					*out = append(*out, child)
				}
			}
			return nil
		}
		if err := link(inputs, &n.Deps); err != nil {
			return err
		}
		if err := link(orderOnly, &n.OrderOnlys); err != nil {
			return err
		}
		return link(n.ActualValidations, &n.Validations)
	})
	if err != nil {
		return nil, err
	}
	st.processing = false
	return n, nil
}

func (b *Builder) targetVar(n *DepNode, name string) string {
	if n.RuleVars == nil {
		return ""
	}
	v := n.RuleVars.Lookup(name)
	if !v.IsDefined() {
		return ""
	}
	s, err := v.Eval(b.ev)
	if err != nil {
		logger.Printf("%s for %s: %v", name, n.Output, err)
		return ""
	}
	return strutil.TrimSpace(s)
}

// pickRule selects the implicit rule for target: candidates come out of the
// trie in trie-encounter order (shorter prefixes first, declaration order
// within a node) and the last viable one in that order wins. A
// candidate is viable when it has commands and every substituted input
// either exists or can be made.
func (b *Builder) pickRule(target string) (*eval.Rule, pattern.Pattern, bool) {
	var cands []*eval.Rule
	b.implicitRules.Get(target, &cands)
	for i := len(cands) - 1; i >= 0; i-- {
		r := cands[i]
		pat := r.OutputPatterns[0]
		if !pat.Match(target) || len(r.Cmds) == 0 {
			continue
		}
		stem := pat.Stem(target)
		viable := true
		for _, input := range r.Inputs {
			in := pattern.New(input).Expand(stem)
			if !b.canMake(in) {
				viable = false
				break
			}
		}
		if viable {
			return r, pat, true
		}
	}
	return nil, pattern.Pattern{}, false
}

// canMake reports whether a prerequisite is satisfiable: it has a rule, is
// phony, or exists on disk.
func (b *Builder) canMake(target string) bool {
	if _, ok := b.rules[target]; ok {
		return true
	}
	if b.phony[target] {
		return true
	}
	return fsutil.Exists(target)
}
