package dep

import (
	"src.kati.dev/pkg/diag"
	"src.kati.dev/pkg/eval"
)

// ruleMerger accumulates every explicit rule for one target and keeps the
// single/double-colon and command-override invariants.
type ruleMerger struct {
	rules         []*eval.Rule
	primary       *eval.Rule
	isDoubleColon bool

	// Set when this target is an implicit output of another target; the
	// parent's primary rule supplies the commands.
	parent    *ruleMerger
	parentSym string

	implicitOutputs []string
	validations     []string
}

func (m *ruleMerger) addRule(b *Builder, target string, r *eval.Rule) error {
	if len(m.rules) > 0 && r.IsDoubleColon != m.isDoubleColon {
		return &Error{r.Location,
			"*** target file `" + target + "' has both : and :: entries."}
	}
	m.isDoubleColon = r.IsDoubleColon
	if len(r.Cmds) > 0 && !r.IsDoubleColon {
		if m.primary != nil && len(m.primary.Cmds) > 0 {
			if b.opts.ErrOverridingCommands {
				return &Error{r.Location,
					"*** overriding commands for target `" + target +
						"', previously defined at " + m.primary.Location.String()}
			}
			diag.WarnLoc(r.Location, "warning: overriding commands for target `%s'", target)
			diag.WarnLoc(m.primary.Location, "warning: ignoring old commands for target `%s'", target)
		}
		m.primary = r
	}
	m.rules = append(m.rules, r)
	return nil
}

func (m *ruleMerger) setImplicitOutput(target, parentSym string, parent *ruleMerger) error {
	if m.primary != nil && len(m.primary.Cmds) > 0 {
		return &Error{m.primary.Location,
			"*** implicit output `" + target + "' may not have commands"}
	}
	m.parent = parent
	m.parentSym = parentSym
	return nil
}
