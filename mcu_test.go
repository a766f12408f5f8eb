package jel

import "testing"

func TestSelectMCUsUnseededStride(t *testing.T) {
	sel := selectMCUs(10, 50, nil)
	want := map[int]bool{0: true, 2: true, 4: true, 6: true, 8: true}
	for i := 0; i < 10; i++ {
		if sel.active[i] != want[i] {
			t.Errorf("active[%d] = %v, want %v", i, sel.active[i], want[i])
		}
	}
	for i, v := range sel.order {
		if v != i {
			t.Fatalf("unseeded order must be identity: order[%d] = %d", i, v)
		}
	}
}

func TestSelectMCUsUnseededZeroDensity(t *testing.T) {
	sel := selectMCUs(10, 0, nil)
	for i, v := range sel.active {
		if v {
			t.Fatalf("active[%d] = true, want every position cleared at density 0", i)
		}
	}
}

func TestSelectMCUsSeededPinsIndexZero(t *testing.T) {
	prng := newPRNGCache(42, 100)
	sel := selectMCUs(10, 100, prng)
	if sel.order[0] != 0 {
		t.Fatalf("order[0] = %d, want 0 (pinned)", sel.order[0])
	}
	if !sel.active[0] {
		t.Fatalf("active[0] = false, want true (pinned)")
	}
}

func TestSelectMCUsSeededOrderIsPermutation(t *testing.T) {
	prng := newPRNGCache(42, 100)
	sel := selectMCUs(10, 100, prng)
	seen := make([]bool, 10)
	for _, v := range sel.order {
		if v < 0 || v >= 10 || seen[v] {
			t.Fatalf("order %v is not a permutation of [0,10)", sel.order)
		}
		seen[v] = true
	}
}

func TestSelectMCUsSeededActiveCount(t *testing.T) {
	prng := newPRNGCache(42, 100)
	sel := selectMCUs(100, 30, prng)
	count := 0
	for _, v := range sel.active {
		if v {
			count++
		}
	}
	if count != 30 {
		t.Errorf("active count = %d, want 30", count)
	}
}

func TestMcuOrderDeterministicAcrossCalls(t *testing.T) {
	prngA := newPRNGCache(7, 50)
	prngB := newPRNGCache(7, 50)
	a := mcuOrder(10, prngA)
	b := mcuOrder(10, prngB)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("order[%d]: got %d and %d, want equal for identical seeds", i, a[i], b[i])
		}
	}
}
