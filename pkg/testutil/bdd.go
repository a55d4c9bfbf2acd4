package testutil

import "testing"

// Scenario steps read as nested subtests, e.g.
//
//	Given(t, "a five member group", func(t *testing.T) {
//		When(t, "one member leaves", func(t *testing.T) {
//			Then(t, "two votes carry the proposal", ...)
//		})
//	})
//
// A step whose precondition failed stops its siblings from running.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Given", desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "When", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Then", desc, fn)
}

func And(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "And", desc, fn)
}

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	if t.Failed() {
		t.Skipf("%s %s: earlier step failed", keyword, desc)
	}
	t.Run(keyword+" "+desc, fn)
}
