package pattern

import (
	"testing"

	"src.kati.dev/pkg/tt"
)

var Args = tt.Args

func match(pat, s string) bool         { return New(pat).Match(s) }
func stem(pat, s string) string        { return New(pat).Stem(s) }
func subst(pat, repl, s string) string { return New(pat).Subst(repl, s) }
func ref(pat, repl, s string) string   { return New(pat).SubstRef(repl, s) }

func TestMatch(t *testing.T) {
	tt.Test(t, tt.Fn("Match", match), tt.Table{
		Args("%.c", "foo.c").Rets(true),
		Args("%.c", "foo.h").Rets(false),
		Args("foo.%", "foo.c").Rets(true),
		Args("a%z", "abcz").Rets(true),
		Args("a%z", "az").Rets(true),
		Args("a%z", "ab").Rets(false),
		Args("exact", "exact").Rets(true),
		Args("exact", "other").Rets(false),
	})
}

func TestStem(t *testing.T) {
	tt.Test(t, tt.Fn("Stem", stem), tt.Table{
		Args("%.c", "dir/foo.c").Rets("dir/foo"),
		Args("a%z", "abcz").Rets("bc"),
		Args("exact", "exact").Rets(""),
		Args("%.c", "foo.h").Rets(""),
	})
}

func TestSubst(t *testing.T) {
	tt.Test(t, tt.Fn("Subst", subst), tt.Table{
		Args("%.c", "%.o", "foo.c").Rets("foo.o"),
		Args("%.c", "%.o", "foo.h").Rets("foo.h"),
		Args("%.c", "obj", "foo.c").Rets("obj"),
		Args("foo", "bar", "foo").Rets("bar"),
		Args("foo", "bar", "food").Rets("food"),
		// Identity: substituting a pattern with itself keeps matching words.
		Args("%.c", "%.c", "foo.c").Rets("foo.c"),
	})
}

func TestSubstRef(t *testing.T) {
	tt.Test(t, tt.Fn("SubstRef", ref), tt.Table{
		Args(".c", ".o", "foo.c").Rets("foo.o"),
		Args(".c", ".o", "foo.h").Rets("foo.h"),
		Args("%.c", "%.o", "foo.c").Rets("foo.o"),
		Args(".c", "", "foo.c").Rets("foo"),
	})
}

func TestExpand(t *testing.T) {
	tt.Test(t, tt.Fn("Expand", func(pat, stem string) string { return New(pat).Expand(stem) }), tt.Table{
		Args("%.o", "foo").Rets("foo.o"),
		Args("lib%.a", "z").Rets("libz.a"),
		Args("static", "x").Rets("static"),
	})
}
