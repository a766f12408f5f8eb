package jel

import "testing"

func TestLCG48Deterministic(t *testing.T) {
	a := newLCG48(12345)
	b := newLCG48(12345)
	for i := 0; i < 10; i++ {
		va, vb := a.next(), b.next()
		if va != vb {
			t.Fatalf("draw %d: got %d and %d, want equal", i, va, vb)
		}
		if va < 0 {
			t.Fatalf("draw %d: got negative value %d", i, va)
		}
	}
}

func TestLCG48DifferentSeeds(t *testing.T) {
	a := newLCG48(1)
	b := newLCG48(2)
	if a.next() == b.next() {
		t.Fatalf("expected different seeds to diverge on the first draw")
	}
}

func TestPRNGCacheWraps(t *testing.T) {
	c := newPRNGCache(7, 4)
	var first []int32
	for i := 0; i < 4; i++ {
		first = append(first, c.next())
	}
	for i := 0; i < 4; i++ {
		if v := c.next(); v != first[i] {
			t.Errorf("wrap draw %d: got %d, want %d", i, v, first[i])
		}
	}
}

func TestPRNGCacheResetRewindsOnly(t *testing.T) {
	c := newPRNGCache(7, 3)
	c.next()
	c.next()
	c.reset()
	if c.k != 0 {
		t.Fatalf("reset: k = %d, want 0", c.k)
	}
	if c.calls != 2 {
		t.Fatalf("reset: calls = %d, want 2 (reset must not clear call count)", c.calls)
	}
}
