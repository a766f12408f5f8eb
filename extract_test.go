package jel

import "testing"

func TestExtractDetectsChecksumCorruption(t *testing.T) {
	cfg := NewConfig(8)
	cfg.BitsPerFreq = 2
	cfg.NFreqs = 4
	cfg.MaxFreqs = 8
	cfg.McuDensity = 100

	p := newFakeProvider(4000, flatQuant(1))
	if err := embedChannel(p, cfg, nil, []byte("a message worth protecting")); err != nil {
		t.Fatalf("embedChannel: %v", err)
	}

	// Corrupt the density-carrying coefficient of the very first block
	// (position 63, the top candidate frequency for a flat quant table),
	// which also participates in the header checksum.
	block, _ := p.Block(0)
	block[63] += 2

	if _, err := extractChannel(p, cfg, nil); err == nil {
		t.Fatalf("extractChannel: want an error after header corruption, got nil")
	}
}

func TestExtractOnEmptyImageFails(t *testing.T) {
	cfg := NewConfig(8)
	cfg.BitsPerFreq = 1
	cfg.NFreqs = 1
	cfg.MaxFreqs = 4
	cfg.McuDensity = 100

	p := newFakeProvider(4000, flatQuant(1)) // all-zero blocks: density decodes to 170, header checksum fails
	_, err := extractChannel(p, cfg, nil)
	if err == nil {
		t.Fatalf("extractChannel on an untouched image: want an error, got nil")
	}
}
