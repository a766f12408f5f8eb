package jel

import "testing"

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig(8)
	if cfg.NFreqs != 1 || cfg.MaxFreqs != 4 || cfg.BitsPerFreq != 1 {
		t.Errorf("frequency defaults = %d/%d/%d, want 1/4/1", cfg.NFreqs, cfg.MaxFreqs, cfg.BitsPerFreq)
	}
	if cfg.McuDensity != 100 {
		t.Errorf("McuDensity = %d, want 100", cfg.McuDensity)
	}
	if cfg.EccMethod != EccNone {
		t.Errorf("EccMethod = %v, want EccNone", cfg.EccMethod)
	}
	if len(cfg.Components) != 1 || cfg.Components[0] != Y {
		t.Errorf("Components = %v, want [Y]", cfg.Components)
	}
}

func TestSetComponentsDeduplicates(t *testing.T) {
	cfg := NewConfig(8)
	cfg.SetComponents(Y, U, Y, V, U)
	want := []Channel{Y, U, V}
	if len(cfg.Components) != len(want) {
		t.Fatalf("Components = %v, want %v", cfg.Components, want)
	}
	for i, ch := range want {
		if cfg.Components[i] != ch {
			t.Errorf("Components[%d] = %v, want %v", i, cfg.Components[i], ch)
		}
	}
}

func TestCodecSelection(t *testing.T) {
	cfg := NewConfig(8)
	if _, ok := cfg.codec().(noneCodec); !ok {
		t.Errorf("default codec() = %T, want noneCodec", cfg.codec())
	}
	cfg.SetEccMethod(EccRSCode)
	if _, ok := cfg.codec().(*rsCodec); !ok {
		t.Errorf("codec() after SetEccMethod(EccRSCode) = %T, want *rsCodec", cfg.codec())
	}
}
