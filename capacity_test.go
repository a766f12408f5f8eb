package jel

import "testing"

// fakeProvider is a test double for coeffProvider backed by plain memory,
// standing in for a jpeg.Channel without requiring a real JPEG file.
type fakeProvider struct {
	quant  [64]uint16
	blocks [][64]int16
}

func newFakeProvider(n int, quant [64]uint16) *fakeProvider {
	return &fakeProvider{quant: quant, blocks: make([][64]int16, n)}
}

func (p *fakeProvider) QuantTable() [64]uint16 { return p.quant }
func (p *fakeProvider) MaxMCUs() int           { return len(p.blocks) }
func (p *fakeProvider) Block(i int) (*[64]int16, error) {
	if i < 0 || i >= len(p.blocks) {
		return nil, newError("Block", -1, ErrBadDims, nil)
	}
	return &p.blocks[i], nil
}

func flatQuant(v uint16) [64]uint16 {
	var q [64]uint16
	for i := range q {
		q[i] = v
	}
	return q
}

func TestImageCapacityScalesWithMcusAndBits(t *testing.T) {
	cfg := NewConfig(8)
	cfg.BitsPerFreq = 2
	cfg.NFreqs = 3
	p := newFakeProvider(100, flatQuant(1))
	if got, want := cfg.imageCapacity(p), 2*3*100; got != want {
		t.Errorf("imageCapacity = %d, want %d", got, want)
	}
}

func TestMessageCapacitySubtractsHeader(t *testing.T) {
	cfg := NewConfig(8)
	cfg.BitsPerFreq = 1
	cfg.NFreqs = 1
	p := newFakeProvider(1000, flatQuant(1)) // 1000 bits == 125 bytes
	want := 125 - headerSize
	if got := cfg.messageCapacity(p); got != want {
		t.Errorf("messageCapacity = %d, want %d", got, want)
	}
}

func TestPartitionRespectsProportionsAndTotal(t *testing.T) {
	caps := []int{10, 20, 30}
	shares := partition(24, caps)
	sum := 0
	for _, s := range shares {
		sum += s
	}
	if sum != 24 {
		t.Fatalf("sum(shares) = %d, want 24", sum)
	}
	for i, s := range shares {
		if s > caps[i] {
			t.Errorf("shares[%d] = %d, exceeds capacity %d", i, s, caps[i])
		}
	}
}

func TestPartitionZeroCapacity(t *testing.T) {
	shares := partition(0, []int{0, 0})
	for i, s := range shares {
		if s != 0 {
			t.Errorf("shares[%d] = %d, want 0", i, s)
		}
	}
}

func TestRawCapacityIgnoresEcc(t *testing.T) {
	cfg := NewConfig(8)
	cfg.BitsPerFreq = 1
	cfg.NFreqs = 1
	cfg.SetEccMethod(EccRSCode)
	p := newFakeProvider(1000, flatQuant(1))

	withEcc := cfg.messageCapacity(p)

	saved := cfg.EccMethod
	cfg.EccMethod = EccNone
	withoutEcc := cfg.messageCapacity(p)
	cfg.EccMethod = saved

	if withEcc >= withoutEcc {
		t.Errorf("ECC-enabled capacity (%d) should be smaller than raw capacity (%d)", withEcc, withoutEcc)
	}
}
