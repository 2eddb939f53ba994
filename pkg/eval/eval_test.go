package eval

import (
	"strings"
	"testing"

	"src.kati.dev/pkg/must"
	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/testutil"
)

func runSource(t *testing.T, code string) *Evaler {
	t.Helper()
	ev, err := tryRunSource(code)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	return ev
}

func tryRunSource(code string) (*Evaler, error) {
	stmts := parse.Parse(parse.Source{Name: "Makefile", Code: code},
		parse.Config{Funcs: FuncProtos()})
	ev := NewEvaler(Options{})
	return ev, ev.ExecStmts(stmts)
}

func expand(t *testing.T, ev *Evaler, expr string) string {
	t.Helper()
	v := parse.ParseExpr(expr, parse.Config{Funcs: FuncProtos()})
	s, err := ev.Value(v)
	if err != nil {
		t.Fatalf("expand %q: %v", expr, err)
	}
	return s
}

func checkExpand(t *testing.T, code, expr, want string) {
	t.Helper()
	if got := expand(t, runSource(t, code), expr); got != want {
		t.Errorf("after %q, %q expands to %q, want %q", code, expr, got, want)
	}
}

func TestAssignFlavors(t *testing.T) {
	// A recursive variable re-expands its references at use time.
	checkExpand(t, "A := foo\nB = $(A) bar\nA := baz\n", "$(B)", "baz bar")
	// A simple variable holds the expansion at assignment time.
	checkExpand(t, "A := foo\nB := $(A) bar\nA := baz\n", "$(B)", "foo bar")
	checkExpand(t, "A = a\nA += b\n", "$(A)", "a b")
	checkExpand(t, "A := a\nA += b\n", "$(A)", "a b")
	checkExpand(t, "A += b\n", "$(A)", "b")
	checkExpand(t, "A ?= a\nA ?= b\n", "$(A)", "a")
	checkExpand(t, "A :=\nA ?= b\n", "$(A)", "b")
	// Appending to a recursive variable stays unexpanded.
	checkExpand(t, "X := 1\nA = $(X)\nA += $(X)\nX := 2\n", "$(A)", "2 2")
}

func TestFinalAssign(t *testing.T) {
	checkExpand(t, "A = $= keep\nA = lost\n", "$(A)", "keep")
	checkExpand(t, "A = first\nA = $= second\nA = third\n", "$(A)", "second")
}

func TestEmptyNameFails(t *testing.T) {
	if _, err := tryRunSource("E :=\n$(E) := x\n"); err == nil {
		t.Errorf("assignment to empty name did not fail")
	}
}

func TestValueOriginFlavor(t *testing.T) {
	code := "A = $(B) c\nS := x\n"
	checkExpand(t, code, "$(value A)", "$(B) c")
	checkExpand(t, code, "$(flavor A)", "recursive")
	checkExpand(t, code, "$(flavor S)", "simple")
	checkExpand(t, code, "$(flavor N)", "undefined")
	checkExpand(t, code, "$(origin A)", "file")
	checkExpand(t, code, "$(origin N)", "undefined")
	checkExpand(t, "override O := x\n", "$(origin O)", "override")
}

func TestStringFunctions(t *testing.T) {
	checkExpand(t, "SRCS := a.c b.c c.c\n", "$(patsubst %.c,%.o,$(SRCS))", "a.o b.o c.o")
	checkExpand(t, "", "$(subst ee,EE,feet street)", "fEEt strEEt")
	checkExpand(t, "", "$(strip  a  b   c )", "a b c")
	checkExpand(t, "", "$(findstring a,a b c)", "a")
	checkExpand(t, "", "$(findstring z,a b c)", "")
	checkExpand(t, "", "$(findstring ,abc)", "")
	checkExpand(t, "", "$(filter %.c %.s,foo.c bar.o baz.s)", "foo.c baz.s")
	checkExpand(t, "", "$(filter-out %.c %.s,foo.c bar.o baz.s)", "bar.o")
	checkExpand(t, "", "$(sort d b a c b)", "a b c d")
}

func TestFilterPartition(t *testing.T) {
	// filter and filter-out partition the word list.
	ev := runSource(t, "WORDS := a.c b.o c.c d.h\n")
	in := expand(t, ev, "$(filter %.c,$(WORDS))")
	out := expand(t, ev, "$(filter-out %.c,$(WORDS))")
	if in != "a.c c.c" || out != "b.o d.h" {
		t.Errorf("filter partition broken: %q / %q", in, out)
	}
}

func TestWordFunctions(t *testing.T) {
	checkExpand(t, "", "$(word 2,a b c)", "b")
	checkExpand(t, "", "$(word 4,a b c)", "")
	checkExpand(t, "", "$(words a b c)", "3")
	checkExpand(t, "", "$(words )", "0")
	checkExpand(t, "", "$(firstword a b)", "a")
	checkExpand(t, "", "$(lastword a b)", "b")
	checkExpand(t, "", "$(wordlist 2, 3, a b c d)", "b c")
	checkExpand(t, "", "$(join a b,.c .o)", "a.c b.o")
	checkExpand(t, "", "$(join a b c,.c)", "a.c b c")

	for _, bad := range []string{"$(word 0,a)", "$(word x,a)", "$(wordlist 1,0,a b)"} {
		v := parse.ParseExpr(bad, parse.Config{Funcs: FuncProtos()})
		if _, err := NewEvaler(Options{}).Value(v); err == nil {
			t.Errorf("%s did not fail", bad)
		}
	}
}

func TestPathFunctions(t *testing.T) {
	checkExpand(t, "", "$(dir src/foo.c hacks)", "src/ ./")
	checkExpand(t, "", "$(notdir src/foo.c hacks)", "foo.c hacks")
	checkExpand(t, "", "$(suffix src/foo.c hacks a.b/c)", ".c")
	checkExpand(t, "", "$(basename src/foo.c hacks)", "src/foo hacks")
	checkExpand(t, "", "$(addsuffix .o,foo bar)", "foo.o bar.o")
	checkExpand(t, "", "$(addprefix src/,foo bar)", "src/foo src/bar")
	// addprefix and addsuffix commute.
	checkExpand(t, "X := a b\n",
		"$(addprefix p/,$(addsuffix .s,$(X)))", "p/a.s p/b.s")
	checkExpand(t, "X := a b\n",
		"$(addsuffix .s,$(addprefix p/,$(X)))", "p/a.s p/b.s")
	// basename undoes addsuffix for dot-free names.
	checkExpand(t, "Y := lib/util\n", "$(basename $(addsuffix .x,$(Y)))", "lib/util")
}

func TestLogicFunctions(t *testing.T) {
	checkExpand(t, "", "$(if a,then,else)", "then")
	checkExpand(t, "", "$(if ,then,else)", "else")
	checkExpand(t, "", "$(if ,then)", "")
	checkExpand(t, "", "$(and a,b,c)", "c")
	checkExpand(t, "", "$(and a,,c)", "")
	checkExpand(t, "", "$(or ,b,c)", "b")
	checkExpand(t, "", "$(or ,,)", "")
}

func TestCallAndForeach(t *testing.T) {
	checkExpand(t, "reverse = $(2) $(1)\n", "$(call reverse,a,b)", "b a")
	checkExpand(t, "", "$(foreach v,a b c,[$(v)])", "[a] [b] [c]")
	// The loop variable does not leak out of the foreach.
	checkExpand(t, "v := outer\n", "$(foreach v,x,$(v))$(v)", "xouter")
	checkExpand(t, "", "$(KATI_foreach_sep v,:,a b c,$(v))", "a:b:c")
	// Recursion through call terminates.
	code := "rev = $(if $(1),$(call rev,$(wordlist 2,99,$(1))) $(firstword $(1)))\n"
	ev := runSource(t, code)
	if got := strings.TrimSpace(expand(t, ev, "$(strip $(call rev,a b c))")); got != "c b a" {
		t.Errorf("recursive call: got %q, want %q", got, "c b a")
	}
}

func TestDefineAndCall(t *testing.T) {
	checkExpand(t, "define greet\nhello $(1)\nendef\n", "$(call greet,world)", "hello world")
}

func TestIfStatements(t *testing.T) {
	checkExpand(t, "ifeq (1,1)\nX := yes\nelse\nX := no\nendif\n", "$(X)", "yes")
	checkExpand(t, "ifeq (1,2)\nX := yes\nelse\nX := no\nendif\n", "$(X)", "no")
	checkExpand(t, "ifneq (1,2)\nX := yes\nendif\n", "$(X)", "yes")
	checkExpand(t, "A := 1\nifdef A\nX := yes\nelse\nX := no\nendif\n", "$(X)", "yes")
	checkExpand(t, "A :=\nifdef A\nX := yes\nelse\nX := no\nendif\n", "$(X)", "no")
	checkExpand(t, "ifndef NOPE\nX := yes\nendif\n", "$(X)", "yes")
	checkExpand(t, "A := 1\nifeq ($(A),1)\nX := yes\nendif\n", "$(X)", "yes")
	checkExpand(t,
		"A := 2\nifeq ($(A),1)\nX := one\nelse ifeq ($(A),2)\nX := two\nelse\nX := other\nendif\n",
		"$(X)", "two")
}

func TestErrorFunction(t *testing.T) {
	_, err := tryRunSource("$(error boom)\n")
	if err == nil || !strings.Contains(err.Error(), "*** boom.") {
		t.Errorf("got %v, want *** boom.", err)
	}
}

func TestSelfReference(t *testing.T) {
	_, err := tryRunSource("A = $(A)\nB := $(A)\n")
	if err == nil || !strings.Contains(err.Error(), "references itself") {
		t.Errorf("self-reference not detected: %v", err)
	}
}

func TestReadonly(t *testing.T) {
	_, err := tryRunSource("A := x\n.KATI_READONLY := A\nA := y\n")
	if err == nil || !strings.Contains(err.Error(), "readonly") {
		t.Errorf("readonly violation not detected: %v", err)
	}
	if _, err := tryRunSource(".KATI_READONLY := NOSUCH\n"); err == nil {
		t.Errorf("marking an unknown variable readonly did not fail")
	}
}

func TestObsoleteVar(t *testing.T) {
	_, err := tryRunSource("A := x\n$(KATI_obsolete_var A,use B)\nB := $(A)\n")
	if err == nil || !strings.Contains(err.Error(), "obsolete") {
		t.Errorf("obsolete read not detected: %v", err)
	}
}

func TestCommandLineOrigin(t *testing.T) {
	ev := NewEvaler(Options{})
	ev.AssignCommandLine("CONFIG", "release")
	stmts := parse.Parse(parse.Source{Name: "Makefile", Code: "CONFIG := debug\noverride WINS := 1\nWINS := 0\n"},
		parse.Config{Funcs: FuncProtos()})
	must.OK(ev.ExecStmts(stmts))
	if got := expand(t, ev, "$(CONFIG)"); got != "release" {
		t.Errorf("command-line var overridden by file: %q", got)
	}
	if got := expand(t, ev, "$(origin CONFIG)"); got != "command line" {
		t.Errorf("origin = %q", got)
	}
	if got := expand(t, ev, "$(WINS)"); got != "1" {
		t.Errorf("override var clobbered: %q", got)
	}
}

func TestSimpleValueRoundTrip(t *testing.T) {
	// := stores the expanded string exactly; reading does not re-expand.
	checkExpand(t, "D := $$(dollar)\n", "$(D)", "$(dollar)")
}

func TestRulesRecorded(t *testing.T) {
	ev := runSource(t, "all: a b | c\n\t@echo hi\n%.o: %.c\nx.o y.o: common.h\na:: one\na:: two\n")
	rules := ev.Rules()
	if len(rules) != 5 {
		t.Fatalf("got %d rules, want 5", len(rules))
	}
	r := rules[0]
	if r.Outputs[0] != "all" || r.Inputs[0] != "a" || r.Inputs[1] != "b" ||
		r.OrderOnlyInputs[0] != "c" || len(r.Cmds) != 1 {
		t.Errorf("rule 0 wrong: %+v", r)
	}
	if len(rules[1].OutputPatterns) != 1 || rules[1].OutputPatterns[0].String() != "%.o" {
		t.Errorf("pattern rule wrong: %+v", rules[1])
	}
	if len(rules[2].Outputs) != 2 {
		t.Errorf("multi-output rule wrong: %+v", rules[2])
	}
	if !rules[3].IsDoubleColon || !rules[4].IsDoubleColon {
		t.Errorf("double-colon not detected: %+v", rules[3])
	}
}

func TestTargetSpecificVar(t *testing.T) {
	ev := runSource(t, "foo: CFLAGS := -O2\nGLOBAL := g\nbar: V = $(GLOBAL)\n")
	vars := ev.RuleVars("foo")
	if vars == nil {
		t.Fatalf("no rule vars for foo")
	}
	s, err := vars.Lookup("CFLAGS").Eval(ev)
	must.OK(err)
	if s != "-O2" {
		t.Errorf("CFLAGS = %q", s)
	}
	v := ev.RuleVars("bar").Lookup("V")
	if v.Flavor() != "recursive" {
		t.Errorf("V flavor = %q", v.Flavor())
	}
}

func TestCommandsBeforeTarget(t *testing.T) {
	// A leading tab line with no rule in scope is an error at eval time.
	if _, err := tryRunSource("A := 1\n\techo hi\n"); err == nil {
		t.Errorf("command before first target not detected")
	}
}

func TestInclude(t *testing.T) {
	testutil.InTempDir(t)
	testutil.ApplyDir(testutil.Dir{
		"Makefile": "X := top\ninclude sub.mk\n",
		"sub.mk":   "Y := $(X) sub\n",
	})
	ev := NewEvaler(Options{})
	must.OK(ev.EvalFile("Makefile"))
	if got := expand(t, ev, "$(Y)"); got != "top sub" {
		t.Errorf("Y = %q", got)
	}
	if got := expand(t, ev, "$(MAKEFILE_LIST)"); got != " Makefile sub.mk" {
		t.Errorf("MAKEFILE_LIST = %q", got)
	}
}

func TestMissingInclude(t *testing.T) {
	testutil.InTempDir(t)
	testutil.ApplyDir(testutil.Dir{"Makefile": "include nope.mk\n"})
	ev := NewEvaler(Options{})
	if err := ev.EvalFile("Makefile"); err == nil {
		t.Errorf("missing include did not fail")
	}
	testutil.ApplyDir(testutil.Dir{"Makefile2": "-include nope.mk\nZ := ok\n"})
	ev = NewEvaler(Options{})
	must.OK(ev.EvalFile("Makefile2"))
	if got := expand(t, ev, "$(Z)"); got != "ok" {
		t.Errorf("Z = %q", got)
	}
}

func TestIncludeCycle(t *testing.T) {
	testutil.InTempDir(t)
	testutil.ApplyDir(testutil.Dir{
		"a.mk": "include b.mk\n",
		"b.mk": "include a.mk\n",
	})
	ev := NewEvaler(Options{})
	err := ev.EvalFile("a.mk")
	if err == nil || !strings.Contains(err.Error(), "include loop") {
		t.Errorf("include cycle not detected: %v", err)
	}
}

func TestShellFunction(t *testing.T) {
	checkExpand(t, "", "$(shell echo hello)", "hello")
	checkExpand(t, "", "$(shell echo a; echo b)", "a b")
	checkExpand(t, "EXPORTED := yes\nexport EXPORTED\n", "$(shell echo $$EXPORTED)", "yes")
}

func TestEvalFunction(t *testing.T) {
	checkExpand(t, "$(eval NEW := 42)\n", "$(NEW)", "42")
	checkExpand(t, "define rule\nA := set\nendef\n$(eval $(rule))\n", "$(A)", "set")
}

func TestFileFunction(t *testing.T) {
	testutil.InTempDir(t)
	ev := runSource(t, "$(file >out.txt,hello)\n")
	if got := must.ReadFileString("out.txt"); got != "hello\n" {
		t.Errorf("file wrote %q", got)
	}
	if got := expand(t, ev, "$(file <out.txt)"); got != "hello" {
		t.Errorf("file read %q", got)
	}
	runSource(t, "$(file >>out.txt,more)\n")
	if got := must.ReadFileString("out.txt"); got != "hello\nmore\n" {
		t.Errorf("file append wrote %q", got)
	}
}

func TestWildcardFunction(t *testing.T) {
	testutil.InTempDir(t)
	testutil.ApplyDir(testutil.Dir{"a.c": "", "b.c": "", "c.h": ""})
	checkExpand(t, "", "$(wildcard *.c)", "a.c b.c")
	checkExpand(t, "", "$(wildcard *.c *.h)", "a.c b.c c.h")
	checkExpand(t, "", "$(wildcard *.nope)", "")
}

func TestVarSubstRef(t *testing.T) {
	checkExpand(t, "SRCS := a.c b.c\n", "$(SRCS:.c=.o)", "a.o b.o")
	checkExpand(t, "SRCS := a.c b.c\n", "$(SRCS:%.c=%.o)", "a.o b.o")
	// Without an = before the close paren, the colon joins the name.
	checkExpand(t, "", "$(NOPE:foo)", "")
}

func TestVariableLocation(t *testing.T) {
	checkExpand(t, "A := x\n", "$(KATI_variable_location A)", "Makefile:1")
}

func TestVisibilityPrefix(t *testing.T) {
	_, err := tryRunSource("A := x\n$(KATI_visibility_prefix A,vendor/)\nB := $(A)\n")
	if err == nil || !strings.Contains(err.Error(), "not visible") {
		t.Errorf("visibility violation not detected: %v", err)
	}
	_, err = tryRunSource("A := x\n$(KATI_visibility_prefix A,Makefile)\nB := $(A)\n")
	if err != nil {
		t.Errorf("visible read failed: %v", err)
	}
	_, err = tryRunSource("A := x\n$(KATI_visibility_prefix A,p1)\n$(KATI_visibility_prefix A,p2)\n")
	if err == nil || !strings.Contains(err.Error(), "conflict") {
		t.Errorf("visibility conflict not detected: %v", err)
	}
}
