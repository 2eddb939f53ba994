package tt

import (
	"fmt"
	"testing"
)

// testT implements the T interface and records Errorf calls.
type testT []string

func (t *testT) Helper() {}

func (t *testT) Errorf(format string, args ...interface{}) {
	*t = append(*t, fmt.Sprintf(format, args...))
}

func add(x, y int) int { return x + y }

func divmod(x, y int) (int, int) { return x / y, x % y }

func TestPass(t *testing.T) {
	var mockT testT
	Test(&mockT, Fn("add", add), Table{
		Args(1, 2).Rets(3),
		Args(0, 0).Rets(0),
	})
	Test(&mockT, Fn("divmod", divmod), Table{
		Args(7, 2).Rets(3, 1),
	})
	if len(mockT) != 0 {
		t.Errorf("unexpected failures: %v", mockT)
	}
}

func TestFail(t *testing.T) {
	var mockT testT
	Test(&mockT, Fn("add", add), Table{
		Args(1, 2).Rets(4),
	})
	if len(mockT) != 1 {
		t.Fatalf("got %d failures, want 1", len(mockT))
	}
	if mockT[0] != "add(1, 2) -> 3, want 4" {
		t.Errorf("got message %q", mockT[0])
	}
}

func TestMatcher(t *testing.T) {
	var mockT testT
	Test(&mockT, Fn("add", add), Table{
		Args(1, 2).Rets(Any),
	})
	if len(mockT) != 0 {
		t.Errorf("Any did not match: %v", mockT)
	}
}
