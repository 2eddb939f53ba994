package strutil

import (
	"testing"

	"src.kati.dev/pkg/tt"
)

var (
	Args = tt.Args
	nada = []string(nil)
)

func TestSplitSpace(t *testing.T) {
	tt.Test(t, tt.Fn("SplitSpace", SplitSpace), tt.Table{
		Args("").Rets(nada),
		Args("  \t\n ").Rets(nada),
		Args("foo").Rets([]string{"foo"}),
		Args(" foo\tbar\nbaz\v\fqux\r").Rets([]string{"foo", "bar", "baz", "qux"}),
	})
}

func TestTrims(t *testing.T) {
	tt.Test(t, tt.Fn("TrimSpace", TrimSpace), tt.Table{
		Args(" \ta b\r\n").Rets("a b"),
		Args("").Rets(""),
	})
	tt.Test(t, tt.Fn("TrimLeftSpace", TrimLeftSpace), tt.Table{
		Args("  x ").Rets("x "),
	})
	tt.Test(t, tt.Fn("TrimRightSpace", TrimRightSpace), tt.Table{
		Args(" x  ").Rets(" x"),
	})
}

func TestJoinWords(t *testing.T) {
	tt.Test(t, tt.Fn("JoinWords", JoinWords), tt.Table{
		Args([]string{"a", "", "b"}).Rets("a b"),
		Args(nada).Rets(""),
	})
}

func TestIndexOutsideParen(t *testing.T) {
	tt.Test(t, tt.Fn("IndexOutsideParen", IndexOutsideParen), tt.Table{
		Args("a=b", "=").Rets(1),
		Args("$(a=b)=c", "=").Rets(6),
		Args("${a:=b}x", "=:").Rets(-1),
		Args(`a\=b=c`, "=").Rets(4),
		Args("abc", ":=;").Rets(-1),
		Args("a:b=c", ":=").Rets(1),
	})
}

func TestMatchingParen(t *testing.T) {
	tt.Test(t, tt.Fn("MatchingParen", MatchingParen), tt.Table{
		Args("(a(b)c)d").Rets(6),
		Args("{abc}").Rets(4),
		Args("(abc").Rets(-1),
		Args("abc").Rets(-1),
	})
}

func TestChopLineEnding(t *testing.T) {
	tt.Test(t, tt.Fn("ChopLineEnding", ChopLineEnding), tt.Table{
		Args("a\r\n").Rets("a"),
		Args("a\n").Rets("a"),
		Args("a").Rets("a"),
		Args("").Rets(""),
	})
}

func TestHasPathPrefix(t *testing.T) {
	tt.Test(t, tt.Fn("HasPathPrefix", HasPathPrefix), tt.Table{
		Args("vendor/foo/Android.mk", "vendor/foo").Rets(true),
		Args("vendor/foobar/Android.mk", "vendor/foo").Rets(false),
		Args("vendor/foo", "vendor/foo").Rets(true),
	})
}

func TestParseUint(t *testing.T) {
	tt.Test(t, tt.Fn("ParseUint", ParseUint), tt.Table{
		Args("12").Rets(12, true),
		Args("  7").Rets(7, true),
		Args("0").Rets(0, true),
		Args("+1").Rets(0, false),
		Args("3x").Rets(0, false),
		Args("").Rets(0, false),
	})
}
