package prng

import "testing"

func TestDeterministicSequence(t *testing.T) {
	a := New(42)
	b := New(42)

	for i := 0; i < 50; i++ {
		va, _ := a.NextInt(1000)
		vb, _ := b.NextInt(1000)
		if va != vb {
			t.Fatalf("iteration %d: got %d and %d from equal seeds", i, va, vb)
		}
	}
}

func TestJitterBounds(t *testing.T) {
	s := New(1)
	for i := 0; i < 200; i++ {
		v, err := s.Jitter(9, 15)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v < 9 || v > 15 {
			t.Fatalf("jitter out of bounds: %d", v)
		}
	}
}

func TestJitterInvalidBound(t *testing.T) {
	s := New(1)
	if _, err := s.Jitter(15, 9); err != ErrInvalidBound {
		t.Fatalf("expected ErrInvalidBound, got %v", err)
	}
}

func TestChanceEdges(t *testing.T) {
	s := New(7)
	if s.Chance(0) {
		t.Fatal("Chance(0) should never fire")
	}
	if !s.Chance(1) {
		t.Fatal("Chance(1) should always fire")
	}
}

func TestNextIntInvalidBound(t *testing.T) {
	s := New(1)
	if _, err := s.NextInt(0); err != ErrInvalidBound {
		t.Fatalf("expected ErrInvalidBound, got %v", err)
	}
}
