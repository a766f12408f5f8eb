package jel

import (
	"bytes"
	"testing"
)

func roundTripChannel(t *testing.T, cfg *Config, p *fakeProvider, msg []byte) []byte {
	t.Helper()
	var prng *prngCache
	if cfg.Seed != 0 {
		prng = newPRNGCache(cfg.Seed, p.MaxMCUs())
	}
	if err := embedChannel(p, cfg, prng, msg); err != nil {
		t.Fatalf("embedChannel: %v", err)
	}

	var extractPrng *prngCache
	if cfg.Seed != 0 {
		extractPrng = newPRNGCache(cfg.Seed, p.MaxMCUs())
	}
	got, err := extractChannel(p, cfg, extractPrng)
	if err != nil {
		t.Fatalf("extractChannel: %v", err)
	}
	return got
}

func TestEmbedExtractRoundTripUnseeded(t *testing.T) {
	cfg := NewConfig(8)
	cfg.BitsPerFreq = 2
	cfg.NFreqs = 4
	cfg.MaxFreqs = 8
	cfg.McuDensity = 100

	p := newFakeProvider(4000, flatQuant(1))
	msg := []byte("the lazy fox sleeps under the stego moon")

	got := roundTripChannel(t, cfg, p, msg)
	if !bytes.Equal(got, msg) {
		t.Errorf("got %q, want %q", got, msg)
	}
}

func TestEmbedExtractRoundTripSeeded(t *testing.T) {
	cfg := NewConfig(8)
	cfg.BitsPerFreq = 2
	cfg.NFreqs = 4
	cfg.MaxFreqs = 8
	cfg.McuDensity = 100
	cfg.Seed = 777

	p := newFakeProvider(4000, flatQuant(1))
	msg := []byte("nine lazy shards carry this secret payload today")

	got := roundTripChannel(t, cfg, p, msg)
	if !bytes.Equal(got, msg) {
		t.Errorf("got %q, want %q", got, msg)
	}
}

func TestEmbedExtractRoundTripWithEcc(t *testing.T) {
	cfg := NewConfig(8)
	cfg.BitsPerFreq = 2
	cfg.NFreqs = 4
	cfg.MaxFreqs = 8
	cfg.McuDensity = 100
	cfg.Seed = 314
	cfg.SetEccMethod(EccRSCode)
	cfg.SetEccBlockLen(9)

	p := newFakeProvider(6000, flatQuant(1))
	msg := []byte("resilience matters when pixels get recompressed")

	got := roundTripChannel(t, cfg, p, msg)
	if !bytes.Equal(got, msg) {
		t.Errorf("got %q, want %q", got, msg)
	}
}

func TestEmbedOverflowsWhenPayloadExceedsCapacity(t *testing.T) {
	cfg := NewConfig(8)
	cfg.BitsPerFreq = 1
	cfg.NFreqs = 1
	cfg.MaxFreqs = 4
	cfg.McuDensity = 100

	p := newFakeProvider(10, flatQuant(1)) // far too small for the message below
	msg := bytes.Repeat([]byte("x"), 200)

	if err := embedChannel(p, cfg, nil, msg); err == nil {
		t.Fatalf("embedChannel: want overflow error, got nil")
	}
}

func TestEmbedExtractRoundTripDensityNeedsFourFreqsEvenWithNFreqsOne(t *testing.T) {
	cfg := NewConfig(8)
	cfg.BitsPerFreq = 1
	cfg.NFreqs = 1 // the default: far fewer than the 4 frequencies density needs
	cfg.MaxFreqs = 4
	cfg.McuDensity = 37

	p := newFakeProvider(4000, flatQuant(1))
	msg := []byte("density rides on its own four frequencies")

	got := roundTripChannel(t, cfg, p, msg)
	if !bytes.Equal(got, msg) {
		t.Errorf("got %q, want %q", got, msg)
	}

	// The first active block's first 4 candidate frequencies should carry
	// only the density's 2-bit slices -- small values balanced around zero,
	// never the raw 1..100 density value written into one coefficient.
	block, _ := p.Block(0)
	for _, j := range []int{63, 62, 61, 60} {
		if v := block[j]; v < -2 || v > 4 {
			t.Errorf("block[%d] = %d, want a small xform'd 2-bit value in [-2,4]", j, v)
		}
	}
}

func TestEmbedRejectsLowCapacityQuantTable(t *testing.T) {
	cfg := NewConfig(8)
	p := newFakeProvider(100, flatQuant(255)) // floor(255/255) == 1 level, below any nLevels >= 2
	if err := embedChannel(p, cfg, nil, []byte("x")); err == nil {
		t.Fatalf("embedChannel: want NotEnoughFrequencies error, got nil")
	}
}
