package build_test

import (
	"os"
	"strings"
	"testing"

	"src.kati.dev/pkg/build"
	"src.kati.dev/pkg/must"
	"src.kati.dev/pkg/prog"
	"src.kati.dev/pkg/testutil"
)

func run(t *testing.T, args ...string) (int, string) {
	t.Helper()
	r, w := must.OK2(os.Pipe())
	fds := [3]*os.File{os.Stdin, w, w}
	exit := prog.Run(fds, append([]string{"kati"}, args...),
		prog.Composite(build.Realpath{}, build.Program{}))
	w.Close()
	return exit, string(must.ReadAllAndClose(r))
}

func TestBuild(t *testing.T) {
	testutil.InTempDir(t)
	must.WriteFile("Makefile", "all:\n\t@echo hello\n")
	exit, out := run(t)
	if exit != 0 || out != "hello\n" {
		t.Errorf("exit=%d out=%q", exit, out)
	}
}

func TestFileFlag(t *testing.T) {
	testutil.InTempDir(t)
	must.WriteFile("build.mk", "all:\n\t@echo from build.mk\n")
	exit, out := run(t, "-f", "build.mk")
	if exit != 0 || out != "from build.mk\n" {
		t.Errorf("exit=%d out=%q", exit, out)
	}
}

func TestNoMakefile(t *testing.T) {
	testutil.InTempDir(t)
	exit, _ := run(t)
	if exit == 0 {
		t.Errorf("missing makefile did not fail")
	}
}

func TestCommandLineVar(t *testing.T) {
	testutil.InTempDir(t)
	must.WriteFile("Makefile", "WHO := nobody\nall:\n\t@echo $(WHO)\n")
	exit, out := run(t, "WHO=world")
	if exit != 0 || out != "world\n" {
		t.Errorf("exit=%d out=%q", exit, out)
	}
}

func TestTargetSelection(t *testing.T) {
	testutil.InTempDir(t)
	must.WriteFile("Makefile", "a:\n\t@echo a\nb:\n\t@echo b\n")
	exit, out := run(t, "b")
	if exit != 0 || out != "b\n" {
		t.Errorf("exit=%d out=%q", exit, out)
	}
}

func TestDryRunFlag(t *testing.T) {
	testutil.InTempDir(t)
	must.WriteFile("Makefile", "all:\n\ttouch out\n")
	exit, out := run(t, "-n")
	if exit != 0 || out != "touch out\n" {
		t.Errorf("exit=%d out=%q", exit, out)
	}
	if _, err := os.Stat("out"); err == nil {
		t.Errorf("dry run created the file")
	}
}

func TestFailingBuildExitsOne(t *testing.T) {
	testutil.InTempDir(t)
	must.WriteFile("Makefile", "all:\n\t@false\n")
	exit, _ := run(t)
	if exit != 1 {
		t.Errorf("exit=%d, want 1", exit)
	}
}

func TestSyntaxCheckOnly(t *testing.T) {
	testutil.InTempDir(t)
	must.WriteFile("Makefile", "ifeq (a,b)\nX := 1\n")
	exit, out := run(t, "--syntax_check_only")
	if exit != 1 || !strings.Contains(out, "endif") {
		t.Errorf("exit=%d out=%q", exit, out)
	}
	must.WriteFile("ok.mk", "A := 1\n")
	exit, _ = run(t, "--syntax_check_only", "-f", "ok.mk")
	if exit != 0 {
		t.Errorf("clean file failed syntax check: %d", exit)
	}
}

func TestParseOnly(t *testing.T) {
	testutil.InTempDir(t)
	must.WriteFile("Makefile", "all:\n\t@echo never\n")
	exit, out := run(t, "--parse_only")
	if exit != 0 || out != "" {
		t.Errorf("exit=%d out=%q", exit, out)
	}
}

func TestNinjaNotLinked(t *testing.T) {
	testutil.InTempDir(t)
	must.WriteFile("Makefile", "all:\n\t@echo x\n")
	exit, out := run(t, "--ninja")
	if exit != 1 || !strings.Contains(out, "generator") {
		t.Errorf("exit=%d out=%q", exit, out)
	}
}

func TestRealpathMode(t *testing.T) {
	dir := testutil.InTempDir(t)
	must.WriteFile("x.txt", "")
	exit, out := run(t, "--realpath", "x.txt")
	if exit != 0 || strings.TrimSpace(out) != dir+"/x.txt" {
		t.Errorf("exit=%d out=%q want %q", exit, out, dir+"/x.txt")
	}
}

func TestChdirFlag(t *testing.T) {
	dir := testutil.InTempDir(t)
	must.WriteFile("sub/Makefile", "all:\n\t@echo in sub\n")
	testutil.Chdir(t, dir)
	exit, out := run(t, "-C", "sub")
	must.Chdir(dir)
	if exit != 0 || out != "in sub\n" {
		t.Errorf("exit=%d out=%q", exit, out)
	}
}
