package observability

import (
	"testing"
	"time"
)

func TestStageWindowSnapshot(t *testing.T) {
	w := NewStageWindow(8)
	w.Observe(StageComplete, 500*time.Millisecond)
	w.Observe(StageComplete, 700*time.Millisecond)
	w.Observe(StageComplete, 900*time.Millisecond)
	w.ObserveIndicator("web_search_degraded")
	w.ObserveIndicator("web_search_degraded")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != StageComplete {
		t.Fatalf("Stage = %q, want %q", s.Stage, StageComplete)
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 4000 {
		t.Fatalf("TargetP95MS = %.2f, want 4000", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 {
		t.Fatalf("len(Indicators) = %d, want 1", len(snap.Indicators))
	}
	if snap.Indicators[0].Name != "web_search_degraded" {
		t.Fatalf("Indicators[0].Name = %q", snap.Indicators[0].Name)
	}
	if snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators[0].Count = %d, want 2", snap.Indicators[0].Count)
	}
}

func TestStageWindowWrapsAroundCapacity(t *testing.T) {
	w := NewStageWindow(4)
	for i := 0; i < 10; i++ {
		w.Observe(StageRetrieve, time.Duration(i)*time.Millisecond)
	}
	snap := w.Snapshot()
	if len(snap.Stages) != 1 || snap.Stages[0].Samples != 4 {
		t.Fatalf("samples = %+v, want rolling window of 4", snap.Stages)
	}
}
