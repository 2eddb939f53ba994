package dep

import (
	"src.kati.dev/pkg/diag"
	"src.kati.dev/pkg/eval"
	"src.kati.dev/pkg/parse"
)

// DepNode is one node of the dependency graph, keyed by its output. Each
// requested target symbol materializes at most one node per build.
type DepNode struct {
	diag.Location

	Output          string
	Cmds            []parse.Value
	CmdLineno       int
	Deps            []*DepNode
	OrderOnlys      []*DepNode
	Validations     []*DepNode
	HasRule         bool
	IsPhony         bool
	IsRestat        bool
	IsDefaultTarget bool

	ActualInputs          []string
	ActualOrderOnlyInputs []string
	ActualValidations     []string
	ImplicitOutputs       []string

	// Target-specific variables, pushed as a scope while this node's
	// recipe is expanded.
	RuleVars eval.Vars
	// The matched pattern for implicit rules, empty otherwise. The stem is
	// what $* expands to.
	OutputPattern string
	Stem          string

	NinjaPoolVar string
	DepfileVar   string
	TagsVar      string
}
