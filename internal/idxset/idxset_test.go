package idxset

import "testing"

func TestAddContains(t *testing.T) {
	s := NewSet(1, 3, 5)
	if !s.Contains(1) || !s.Contains(3) || !s.Contains(5) {
		t.Fatalf("expected 1,3,5 to be present")
	}
	if s.Contains(2) || s.Contains(4) {
		t.Fatalf("did not expect 2 or 4 to be present")
	}
}

func TestEmptySet(t *testing.T) {
	s := NewSet()
	if s.Contains(0) {
		t.Fatal("did not expect empty set to contain anything")
	}
}

func TestAddGrowsAcrossChunks(t *testing.T) {
	s := NewSet()
	s.Add(0, 63, 64, 200)
	for _, v := range []int{0, 63, 64, 200} {
		if !s.Contains(v) {
			t.Errorf("expected %d to be present", v)
		}
	}
	if s.Contains(1) || s.Contains(199) || s.Contains(201) {
		t.Error("unexpected membership")
	}
}
