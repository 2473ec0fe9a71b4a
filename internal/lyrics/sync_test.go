package lyrics

import "testing"

func TestSynchronizer(t *testing.T) {
	track := mustParse(t, "[00:01.00]a\n[00:02.00]b\n[00:03.00]c")
	s := NewSynchronizer(track, 0.1, 1)

	if w, changed := s.Update(0.5); changed || len(w) != 0 {
		t.Fatalf("before first line: window %d changed=%v", len(w), changed)
	}

	// 0.95 + 0.1 提前量 >= 1.0
	w, changed := s.Update(0.95)
	if !changed || len(w) != 2 || !w[0].IsCurrent || w[0].Text != "a" {
		t.Fatalf("lead offset not applied: %+v changed=%v", w, changed)
	}

	if _, changed := s.Update(0.97); changed {
		t.Error("same line should not report change")
	}

	w, changed = s.Update(2.5)
	if !changed || len(w) != 3 || w[1].Text != "b" || !w[1].IsCurrent {
		t.Errorf("unexpected window %+v", w)
	}
	if s.Cursor().Index != 1 {
		t.Errorf("cursor = %d, want 1", s.Cursor().Index)
	}

	if s.Finished(4, 5) {
		t.Error("should not be finished within grace period")
	}
	if !s.Finished(8.5, 5) {
		t.Error("should be finished after grace period")
	}
}

func TestSynchronizerEmptyTrackFinished(t *testing.T) {
	s := NewSynchronizer(Track{}, 0, 2)
	if !s.Finished(0, 5) {
		t.Error("empty track has nothing to show")
	}
}
