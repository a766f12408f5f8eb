package jel

import "testing"

func TestCandidateFreqsDescendingAndBounded(t *testing.T) {
	var quant [64]uint16
	for i := range quant {
		quant[i] = 1 // every position supports 255 levels
	}
	freqs := candidateFreqs(quant, 4, 8)
	if len(freqs) != 4 {
		t.Fatalf("len = %d, want 4", len(freqs))
	}
	for i := 0; i < len(freqs)-1; i++ {
		if freqs[i] <= freqs[i+1] {
			t.Fatalf("freqs not descending: %v", freqs)
		}
	}
	if freqs[0] != 63 {
		t.Errorf("freqs[0] = %d, want 63", freqs[0])
	}
}

func TestCandidateFreqsSkipsLowCapacityPositions(t *testing.T) {
	var quant [64]uint16
	for i := range quant {
		quant[i] = 200 // floor(255/200) == 1 level, below most nLevels
	}
	quant[63] = 1
	freqs := candidateFreqs(quant, 4, 8)
	if len(freqs) != 1 || freqs[0] != 63 {
		t.Fatalf("freqs = %v, want [63]", freqs)
	}
}

func TestCandidateFreqsSkipsZeroQuant(t *testing.T) {
	var quant [64]uint16
	quant[63] = 0
	quant[62] = 1
	freqs := candidateFreqs(quant, 4, 8)
	if len(freqs) != 1 || freqs[0] != 62 {
		t.Fatalf("freqs = %v, want [62]", freqs)
	}
}

func TestFreqPoolShuffleIsPermutation(t *testing.T) {
	freqs := []int{63, 62, 61, 60}
	fp := newFreqPool(freqs)
	prng := newPRNGCache(99, 64)
	fp.shuffle(prng)

	seen := make(map[int]bool, len(freqs))
	for _, v := range fp.inUse {
		seen[v] = true
	}
	for _, v := range freqs {
		if !seen[v] {
			t.Fatalf("shuffled pool %v missing original member %d", fp.inUse, v)
		}
	}
}

func TestFreqPoolResetRestoresOriginalOrder(t *testing.T) {
	freqs := []int{63, 62, 61, 60}
	fp := newFreqPool(freqs)
	prng := newPRNGCache(99, 64)
	fp.shuffle(prng)
	fp.reset()
	for i, v := range freqs {
		if fp.inUse[i] != v {
			t.Fatalf("reset: inUse[%d] = %d, want %d", i, fp.inUse[i], v)
		}
	}
}
