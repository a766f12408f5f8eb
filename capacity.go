package jel

// candidateFreqsFor computes the candidate frequency list for a channel's
// quant table and checks it is large enough to hold NFreqs positions, and
// at least 4 regardless of NFreqs: the density byte always needs 4 (§4.6.1).
func (cfg *Config) candidateFreqsFor( provider coeffProvider ) ( []int, error ) {
    quant := provider.QuantTable()
    freqs := candidateFreqs( quant, cfg.MaxFreqs, cfg.NLevels )
    if len(freqs) < 4 || len(freqs) < cfg.NFreqs {
        return nil, newError( "candidateFreqs", -1, ErrNotEnoughFrequencies, nil )
    }
    return freqs, nil
}

// imageCapacity returns bits_per_freq * n_freqs * max_mcus(channel).
func (cfg *Config) imageCapacity( provider coeffProvider ) int {
    return cfg.BitsPerFreq * cfg.NFreqs * provider.MaxMCUs()
}

// messageCapacity returns the usable payload bytes for one channel, after
// subtracting the 6-byte header (if framed) and any ECC overhead.
func (cfg *Config) messageCapacity( provider coeffProvider ) int {
    bits := cfg.imageCapacity( provider )
    bytes := bits / 8
    if cfg.EmbedHeader {
        bytes -= headerSize
    }
    if bytes < 0 {
        bytes = 0
    }
    if cfg.EccMethod != EccNone {
        bytes = cfg.codec().capacity( bytes )
    }
    return bytes
}

// Capacity returns the total usable payload bytes summed across every
// enabled channel of img.
func (cfg *Config) Capacity( img *Image ) ( int, error ) {
    total := 0
    for _, ch := range cfg.Components {
        provider, err := img.channel( ch )
        if err != nil {
            return 0, err
        }
        total += cfg.messageCapacity( provider )
    }
    return total, nil
}

// RawCapacity is Capacity with ECC temporarily disabled, per §6.
func (cfg *Config) RawCapacity( img *Image ) ( int, error ) {
    saved := cfg.EccMethod
    cfg.EccMethod = EccNone
    defer func() { cfg.EccMethod = saved }()
    return cfg.Capacity( img )
}

// partition splits a payload of length L across k enabled channels with
// capacities c_0..c_{k-1} (total C): n_i = floor(c_i*L/C), rounding slack
// to channel 0.
func partition( l int, caps []int ) []int {
    total := 0
    for _, c := range caps {
        total += c
    }
    out := make( []int, len(caps) )
    if total == 0 {
        return out
    }
    assigned := 0
    for i := 1; i < len(caps); i++ {
        out[i] = caps[i] * l / total
        assigned += out[i]
    }
    out[0] = l - assigned
    return out
}
