package python

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/range0420/PySafeScan/internal/analysis/core"
)

// -- State Unit Tests --

func TestMarkSourceOverwrites(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.MarkSource("x", 1, core.TaintUserInput)
	s.MarkDerived("y", 2, core.TaintPropagated, []string{"x"})
	s.MarkDerived("x", 3, core.TaintPropagated, []string{"y"})

	if rec, _ := s.Lookup("x"); len(rec.Sources) != 1 {
		t.Fatalf("expected x to have accumulated one upstream, got %v", rec.Sources)
	}

	// A fresh source assignment resets the provenance entirely.
	s.MarkSource("x", 4, core.TaintUserInput)
	rec, ok := s.Lookup("x")
	if !ok {
		t.Fatal("x disappeared after MarkSource")
	}
	if len(rec.Sources) != 0 || rec.Line != 4 {
		t.Errorf("expected a reset record at line 4, got %+v", rec)
	}
}

func TestMarkDerivedSkipsSelfAndUnknown(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.MarkSource("a", 1, core.TaintUserInput)
	s.MarkDerived("b", 2, core.TaintPropagated, []string{"b", "ghost", "a", "a"})

	rec, _ := s.Lookup("b")
	if diff := cmp.Diff([]string{"a"}, rec.Sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
	if len(s.Edges()) != 1 {
		t.Errorf("expected exactly one edge, got %v", s.Edges())
	}
}

func TestMarkParameterDoesNotClobber(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.MarkSource("cmd", 1, core.TaintUserInput)
	s.MarkParameter("cmd", 5)

	rec, _ := s.Lookup("cmd")
	if rec.Kind != core.TaintUserInput || rec.Line != 1 {
		t.Errorf("parameter registration overwrote an existing record: %+v", rec)
	}
}

func TestTraceFollowsFirstUpstream(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.MarkSource("a", 1, core.TaintUserInput)
	s.MarkSource("b", 2, core.TaintUserInput)
	s.MarkDerived("c", 3, core.TaintPropagated, []string{"a", "b"})
	s.MarkDerived("d", 4, core.TaintPropagated, []string{"c"})

	if diff := cmp.Diff([]string{"a", "c", "d"}, s.Trace("d")); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestTraceTerminatesOnCycle(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.MarkSource("a", 1, core.TaintUserInput)
	s.MarkDerived("b", 2, core.TaintPropagated, []string{"a"})
	// Force a cycle directly in the records: a derived back from b.
	s.MarkDerived("a", 3, core.TaintPropagated, []string{"b"})

	path := s.Trace("b")
	if len(path) == 0 || len(path) > 3 {
		t.Errorf("cycle trace did not terminate sanely: %v", path)
	}
}

func TestTraceUnknownName(t *testing.T) {
	t.Parallel()

	if got := NewState().Trace("nope"); got != nil {
		t.Errorf("expected nil for an unknown name, got %v", got)
	}
}

func TestChains(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.MarkSource("a", 1, core.TaintUserInput)
	s.MarkDerived("b", 2, core.TaintPropagated, []string{"a"})
	s.MarkDerived("c", 3, core.TaintPropagated, []string{"b"})
	s.MarkSource("solo", 4, core.TaintUserInput)

	want := [][]string{{"a", "b", "c"}}
	if diff := cmp.Diff(want, s.Chains()); diff != "" {
		t.Errorf("chains mismatch (-want +got):\n%s", diff)
	}
}

func TestChainsBranching(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.MarkSource("a", 1, core.TaintUserInput)
	s.MarkDerived("b", 2, core.TaintPropagated, []string{"a"})
	s.MarkDerived("c", 3, core.TaintPropagated, []string{"a"})

	chains := s.Chains()
	if len(chains) != 2 {
		t.Fatalf("expected 2 chains from a branching root, got %v", chains)
	}
	if diff := cmp.Diff([][]string{{"a", "b"}, {"a", "c"}}, chains); diff != "" {
		t.Errorf("chains mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordsKeepFirstSeenOrder(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.MarkSource("z", 1, core.TaintUserInput)
	s.MarkSource("a", 2, core.TaintUserInput)
	s.MarkSource("m", 3, core.TaintUserInput)
	s.MarkSource("a", 4, core.TaintUserInput)

	var names []string
	for _, r := range s.Records() {
		names = append(names, r.Name)
	}
	if diff := cmp.Diff([]string{"z", "a", "m"}, names); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}
