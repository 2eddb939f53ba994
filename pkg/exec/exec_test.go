package exec

import (
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"src.kati.dev/pkg/dep"
	"src.kati.dev/pkg/eval"
	"src.kati.dev/pkg/must"
	"src.kati.dev/pkg/parse"
	"src.kati.dev/pkg/testutil"
)

// runMake evaluates a makefile, builds the graph for targets and executes
// it, capturing standard output.
func runMake(t *testing.T, code string, opts Options, targets ...string) (string, error) {
	t.Helper()
	ev := eval.NewEvaler(eval.Options{})
	stmts := parse.Parse(parse.Source{Name: "Makefile", Code: code},
		parse.Config{Funcs: eval.FuncProtos()})
	if err := ev.ExecStmts(stmts); err != nil {
		t.Fatalf("eval: %v", err)
	}
	b, err := dep.NewBuilder(ev, dep.Options{})
	if err != nil {
		t.Fatalf("dep: %v", err)
	}
	nodes, err := b.Build(targets)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ex := NewExecutor(ev, opts)
	var sb strings.Builder
	ex.out = &sb
	err = ex.Exec(nodes)
	return sb.String(), err
}

func checkOutput(t *testing.T, code, want string, targets ...string) {
	t.Helper()
	out, err := runMake(t, code, Options{}, targets...)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRecursiveVarInRecipe(t *testing.T) {
	testutil.InTempDir(t)
	checkOutput(t, "A := foo\nB = $(A) bar\nA := baz\nall:\n\t@echo $(B)\n", "baz bar\n")
}

func TestPatsubstInRecipe(t *testing.T) {
	testutil.InTempDir(t)
	checkOutput(t,
		"SRCS := a.c b.c c.c\nOBJS := $(patsubst %.c,%.o,$(SRCS))\nall:\n\t@echo $(OBJS)\n",
		"a.o b.o c.o\n")
}

func TestCallInRecipe(t *testing.T) {
	testutil.InTempDir(t)
	checkOutput(t, "define greet\n@echo hello $(1)\nendef\nall:\n\t$(call greet,world)\n",
		"hello world\n")
}

func TestAutomaticTargetVar(t *testing.T) {
	testutil.InTempDir(t)
	checkOutput(t, "all: a b\na b:\n\t@echo $@\n", "a\nb\n")
}

func TestConditional(t *testing.T) {
	testutil.InTempDir(t)
	checkOutput(t, "ifeq (1,1)\nX := yes\nelse\nX := no\nendif\nall:\n\t@echo $(X)\n", "yes\n")
}

func TestIgnoreError(t *testing.T) {
	testutil.InTempDir(t)
	checkOutput(t, "all:\n\t-@false\n\t@echo after\n", "after\n")
}

func TestFailingCommandAborts(t *testing.T) {
	testutil.InTempDir(t)
	out, err := runMake(t, "all:\n\t@false\n\t@echo after\n", Options{})
	if err == nil {
		t.Fatalf("command failure did not abort")
	}
	if strings.Contains(out, "after") {
		t.Errorf("commands continued after failure: %q", out)
	}
	var execErr *Error
	if e, ok := err.(*Error); ok {
		execErr = e
	}
	if execErr == nil || execErr.Code != 1 {
		t.Errorf("error = %v, want exit code 1", err)
	}
}

func TestEchoAndSilent(t *testing.T) {
	testutil.InTempDir(t)
	checkOutput(t, "all:\n\techo visible\n", "echo visible\nvisible\n")
	out, err := runMake(t, "all:\n\techo visible\n", Options{Silent: true})
	must.OK(err)
	if out != "visible\n" {
		t.Errorf("silent output = %q", out)
	}
}

func TestDryRun(t *testing.T) {
	testutil.InTempDir(t)
	out, err := runMake(t, "all:\n\t@echo hi\n\ttouch made\n", Options{DryRun: true})
	must.OK(err)
	if out != "echo hi\ntouch made\n" {
		t.Errorf("dry-run output = %q", out)
	}
	if _, err := os.Stat("made"); err == nil {
		t.Errorf("dry run actually ran the touch command")
	}
}

func TestNothingToBeDone(t *testing.T) {
	testutil.InTempDir(t)
	checkOutput(t, ".PHONY: all\nall:\n", "kati: Nothing to be done for `all'.\n")
}

func TestPhonyWithEmptyDeps(t *testing.T) {
	testutil.InTempDir(t)
	// A phony target still walks its deps; with nothing to run anywhere it
	// reports zero commands.
	code := ".PHONY: ghost\nghost: helper\nhelper:\n"
	checkOutput(t, code, "kati: Nothing to be done for `ghost'.\n", "ghost")
}

func TestStaleness(t *testing.T) {
	testutil.InTempDir(t)
	old := time.Now().Add(-2 * time.Hour)
	testutil.Touch("dep.txt", old)
	testutil.Touch("out.txt", time.Now().Add(-1*time.Hour))
	// Output newer than input: nothing runs.
	checkOutput(t, "out.txt: dep.txt\n\t@echo rebuild\n",
		"kati: Nothing to be done for `out.txt'.\n")
	// Input newer than output: the recipe runs.
	testutil.Touch("dep.txt", time.Now())
	checkOutput(t, "out.txt: dep.txt\n\t@echo rebuild\n", "rebuild\n")
}

func TestMissingFileRebuild(t *testing.T) {
	testutil.InTempDir(t)
	checkOutput(t, "out.txt:\n\t@echo making\n", "making\n")
}

func TestNoRuleToMakeTarget(t *testing.T) {
	testutil.InTempDir(t)
	_, err := runMake(t, "all: missing.txt\n\t@echo done\n", Options{})
	if err == nil || !strings.Contains(err.Error(), "No rule to make target `missing.txt', needed by `all'") {
		t.Errorf("missing prerequisite error: %v", err)
	}
}

func TestOrderOnly(t *testing.T) {
	testutil.InTempDir(t)
	// The order-only prerequisite exists: it is not rebuilt and does not
	// make the target stale.
	testutil.Touch("out.txt", time.Now())
	testutil.Touch("dir.stamp", time.Now().Add(time.Hour))
	checkOutput(t, "out.txt: | dir.stamp\n\t@echo rebuild\n",
		"kati: Nothing to be done for `out.txt'.\n")
	// Missing order-only prerequisites are built first.
	checkOutput(t, "out2.txt: | stamp2\n\t@echo build out2\nstamp2:\n\t@echo build stamp\n",
		"build stamp\nbuild out2\n")
}

func TestPhonyAlwaysRuns(t *testing.T) {
	testutil.InTempDir(t)
	testutil.Touch("clean", time.Now())
	checkOutput(t, ".PHONY: clean\nclean:\n\t@echo cleaning\n", "cleaning\n", "clean")
}

func TestRestatSkipsDownstream(t *testing.T) {
	testutil.InTempDir(t)
	testutil.Touch("src", time.Now())
	testutil.Touch("gen", time.Now().Add(-2*time.Hour))
	testutil.Touch("out", time.Now().Add(-time.Hour))
	// gen is remade (src is newer) but its recipe leaves the file alone;
	// being restat, that does not dirty out.
	code := ".KATI_RESTAT: gen\nout: gen\n\t@echo rebuild out\ngen: src\n\t@:\n"
	checkOutput(t, code, "", "out")
}

func TestAutomaticVars(t *testing.T) {
	testutil.InTempDir(t)
	old := time.Now().Add(-2 * time.Hour)
	testutil.Touch("a.x", old)
	testutil.Touch("b.x", time.Now())
	testutil.Touch("out", time.Now().Add(-time.Hour))
	code := "out: a.x b.x a.x\n\t@echo '$@ $< $^ $+ $?'\n"
	checkOutput(t, code, "out a.x a.x b.x a.x b.x a.x b.x\n")
}

func TestAutomaticDirFileVars(t *testing.T) {
	testutil.InTempDir(t)
	must.CreateEmpty("src/a.c")
	code := "sub/out: src/a.c\n\t@echo '$(@D) $(@F) $(<D) $(<F)'\n"
	checkOutput(t, code, "sub out src a.c\n")
}

func TestStemVar(t *testing.T) {
	testutil.InTempDir(t)
	must.CreateEmpty("foo.c")
	checkOutput(t, "%.o: %.c\n\t@echo stem=$*\n", "stem=foo\n", "foo.o")
}

func TestTargetSpecificVarInRecipe(t *testing.T) {
	testutil.InTempDir(t)
	code := "all: FLAG := -O2\nall:\n\t@echo $(FLAG)\n"
	checkOutput(t, code, "-O2\n")
}

func TestMultilineRecipeFromDefine(t *testing.T) {
	testutil.InTempDir(t)
	code := "define two\n@echo one\n@echo two\nendef\nall:\n\t$(two)\n"
	checkOutput(t, code, "one\ntwo\n")
}

func TestDoubleColonRunsAll(t *testing.T) {
	testutil.InTempDir(t)
	code := "x::\n\t@echo first\nx::\n\t@echo second\n"
	checkOutput(t, code, "first\nsecond\n", "x")
}

func TestParallelJobs(t *testing.T) {
	testutil.InTempDir(t)
	code := "all: a b c d\na b c d:\n\t@echo $@\n"
	out, err := runMake(t, code, Options{NumJobs: 4})
	must.OK(err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	sort.Strings(lines)
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, lines); diff != "" {
		t.Errorf("parallel output: (-want +got):\n%s", diff)
	}
}

func TestSplitCommand(t *testing.T) {
	got := splitCommand("echo a\necho b\\\ncont\necho c")
	want := []string{"echo a", "echo b\\\ncont", "echo c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("splitCommand: (-want +got):\n%s", diff)
	}
}

func TestParsePrefixes(t *testing.T) {
	r := parsePrefixes("@-+ echo hi")
	if !r.noEcho || !r.ignoreError || !r.alwaysRun || r.cmd != "echo hi" {
		t.Errorf("parsePrefixes: %+v", r)
	}
	r = parsePrefixes("echo hi")
	if r.noEcho || r.ignoreError || r.cmd != "echo hi" {
		t.Errorf("parsePrefixes: %+v", r)
	}
}
