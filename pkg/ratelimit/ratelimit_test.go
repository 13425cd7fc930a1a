package ratelimit

import (
	"testing"
	"time"
)

func TestThrottledWithinWindow(t *testing.T) {
	now := time.Now()
	l := NewTestLimiter(time.Second, func() time.Time { return now })

	if l.Throttled("what is go") {
		t.Error("first observation should not be throttled")
	}
	if !l.Throttled("what is go") {
		t.Error("repeat within window should be throttled")
	}

	now = now.Add(1100 * time.Millisecond)
	if l.Throttled("what is go") {
		t.Error("repeat after window should not be throttled")
	}
}

func TestThrottledNormalizesQuery(t *testing.T) {
	now := time.Now()
	l := NewTestLimiter(time.Second, func() time.Time { return now })

	if l.Throttled("  What Is Go  ") {
		t.Error("first observation should not be throttled")
	}
	if !l.Throttled("what is go") {
		t.Error("same query modulo case/whitespace should be throttled")
	}
}

func TestThrottledEmptyQuery(t *testing.T) {
	l := NewQueryLimiter(time.Second)
	if l.Throttled("") {
		t.Error("empty query should never be throttled")
	}
	if l.Throttled("   ") {
		t.Error("blank query should never be throttled")
	}
	if l.Len() != 0 {
		t.Errorf("blank queries should not be recorded, table size %d", l.Len())
	}
}

func TestPeekDoesNotRecord(t *testing.T) {
	now := time.Now()
	l := NewTestLimiter(time.Second, func() time.Time { return now })

	if l.Peek("what is go") {
		t.Error("unseen query should not peek as throttled")
	}
	if l.Len() != 0 {
		t.Errorf("Peek must not record an observation, table size %d", l.Len())
	}

	l.Throttled("what is go")
	if !l.Peek("what is go") {
		t.Error("recorded query should peek as throttled within the window")
	}

	now = now.Add(1100 * time.Millisecond)
	if l.Peek("what is go") {
		t.Error("peek after the window should be clear")
	}
}

func TestSweepEvictsOldEntries(t *testing.T) {
	now := time.Now()
	l := NewTestLimiter(time.Second, func() time.Time { return now })

	l.Throttled("first query")
	l.Throttled("second query")
	if l.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", l.Len())
	}

	now = now.Add(61 * time.Second)
	l.Throttled("third query")

	if l.Len() != 1 {
		t.Errorf("expected stale entries swept, table size %d", l.Len())
	}
}
