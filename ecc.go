package jel

import (
    "encoding/binary"

    "github.com/klauspost/reedsolomon"
)

// EccMethod selects the outer code applied to the payload before it is
// bit-stuffed into coefficients.
type EccMethod int

const (
    EccNone EccMethod = iota
    EccRSCode
)

// eccCodec is the abstract ECC interface the core depends on; besides the
// pass-through noneCodec, RSCode below is the only concrete implementation,
// wired to klauspost/reedsolomon.
type eccCodec interface {
    encode( data []byte ) ( []byte, error )
    decode( data []byte, n int ) ( []byte, error )
    blockLength( n int ) int
    capacity( n int ) int
}

type noneCodec struct{}

func (noneCodec) encode( data []byte ) ( []byte, error ) { return data, nil }
func (noneCodec) decode( data []byte, n int ) ( []byte, error ) {
    if n < 0 || n > len(data) {
        n = len(data)
    }
    return data[:n], nil
}
func (noneCodec) blockLength( n int ) int { return n }
func (noneCodec) capacity( n int ) int    { return n }

// rsCodec follows the shard layout grounded in the retrieval pack's
// pixel-domain stego tool (addReedSolomon/removeReedSolomon): an 8-byte
// big-endian length prefix ahead of the plaintext, split into dataShards
// data shards plus parityShards parity shards.
type rsCodec struct {
    dataShards   int
    parityShards int
}

func newRSCodec( blockLength int ) *rsCodec {
    if blockLength < 2 {
        blockLength = 2
    }
    parity := blockLength / 3
    if parity < 1 {
        parity = 1
    }
    return &rsCodec{ dataShards: blockLength, parityShards: parity }
}

func (c *rsCodec) shardSet() ( enc reedsolomon.Encoder, err error ) {
    return reedsolomon.New( c.dataShards, c.parityShards )
}

func (c *rsCodec) encode( data []byte ) ( []byte, error ) {
    enc, err := c.shardSet()
    if err != nil {
        return nil, err
    }

    prefixed := make( []byte, 8+len(data) )
    binary.BigEndian.PutUint64( prefixed, uint64(len(data)) )
    copy( prefixed[8:], data )

    shards, err := enc.Split( prefixed )
    if err != nil {
        return nil, err
    }
    if err = enc.Encode( shards ); err != nil {
        return nil, err
    }

    out := make( []byte, 0, len(prefixed)+c.parityShards*len(shards[0]) )
    for _, s := range shards {
        out = append( out, s... )
    }
    return out, nil
}

func (c *rsCodec) decode( data []byte, n int ) ( []byte, error ) {
    enc, err := c.shardSet()
    if err != nil {
        return nil, err
    }
    total := c.dataShards + c.parityShards
    if len(data) % total != 0 {
        return nil, errEccShardSize
    }
    shardSize := len(data) / total
    shards := make( [][]byte, total )
    for i := range shards {
        shards[i] = data[i*shardSize : (i+1)*shardSize]
    }

    ok, _ := enc.Verify( shards )
    if !ok {
        // Reconstruct only rebuilds missing shards, so treat each shard in
        // turn as the missing one until the rebuilt set verifies.
        recovered := false
        for i := 0; i < total && !recovered; i++ {
            trial := make( [][]byte, total )
            copy( trial, shards )
            trial[i] = nil
            if enc.Reconstruct( trial ) == nil {
                if ok, _ = enc.Verify( trial ); ok {
                    shards, recovered = trial, true
                }
            }
        }
        if !recovered {
            return nil, errEccShardSize
        }
    }

    var joined []byte
    for _, s := range shards[:c.dataShards] {
        joined = append( joined, s... )
    }
    if len(joined) < 8 {
        return nil, errEccShardSize
    }
    plainLen := binary.BigEndian.Uint64( joined )
    if int(plainLen) > len(joined)-8 {
        return nil, errEccShardSize
    }
    out := joined[8 : 8+int(plainLen)]
    if n >= 0 && n < len(out) {
        out = out[:n]
    }
    return out, nil
}

func (c *rsCodec) blockLength( n int ) int {
    return n
}

// capacity returns the usable plaintext length for a buffer that, after
// encoding, occupies n bytes of channel capacity.
func (c *rsCodec) capacity( n int ) int {
    total := c.dataShards + c.parityShards
    shardSize := n / total
    plain := shardSize*c.dataShards - 8
    if plain < 0 {
        return 0
    }
    return plain
}

var errEccShardSize = newError( "ecc", -1, ErrEcc, nil )
