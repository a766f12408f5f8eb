package jel

import (
	"bytes"
	"testing"
)

func TestNoneCodecPassesThrough(t *testing.T) {
	var c noneCodec
	data := []byte("hello stego")
	encoded, err := c.encode(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := c.decode(encoded, len(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Errorf("decoded = %q, want %q", decoded, data)
	}
}

func TestRSCodecRoundTrip(t *testing.T) {
	c := newRSCodec(9)
	data := []byte("the quick brown fox jumps over 9 lazy shards")
	encoded, err := c.encode(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := c.decode(encoded, len(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Errorf("decoded = %q, want %q", decoded, data)
	}
}

func TestRSCodecSurvivesShardCorruption(t *testing.T) {
	c := newRSCodec(9)
	data := []byte("resilient against a single corrupted shard of data")
	encoded, err := c.encode(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	total := c.dataShards + c.parityShards
	shardSize := len(encoded) / total
	for i := range encoded[:shardSize] {
		encoded[i] ^= 0xFF // corrupt the first shard entirely
	}

	decoded, err := c.decode(encoded, len(data))
	if err != nil {
		t.Fatalf("decode after corruption: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Errorf("decoded = %q, want %q", decoded, data)
	}
}

func TestRSCodecCapacityMatchesEncodeOutput(t *testing.T) {
	c := newRSCodec(9)
	// 8-byte length prefix + 10 data bytes == 18, an exact multiple of
	// dataShards (9), so Split needs no zero-padding and capacity's
	// shardSize*dataShards-8 lands exactly on the original length.
	data := make([]byte, 10)
	for i := range data {
		data[i] = byte(i)
	}
	encoded, err := c.encode(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := c.capacity(len(encoded)); got != len(data) {
		t.Errorf("capacity(%d) = %d, want %d", len(encoded), got, len(data))
	}
}
