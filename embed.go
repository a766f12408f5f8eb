package jel

// Embed writes payload into img according to cfg, returning the total
// number of payload bytes actually embedded (== len(payload) on success).
// The first channel that cannot hold its share of the payload aborts the
// whole operation; no partial write is left in a channel beyond what
// embedChannel itself already wrote to coefficient memory (Design Notes
// §8.9: first negative code from any channel propagates to the caller).
func Embed( img *Image, cfg *Config, payload []byte ) ( int, error ) {
    if len(payload) == 0 {
        return 0, newError( "Embed", -1, ErrNoMessage, nil )
    }
    if len(cfg.Components) == 0 {
        return 0, newError( "Embed", -1, ErrBadDims, nil )
    }

    providers := make( []coeffProvider, len(cfg.Components) )
    caps := make( []int, len(cfg.Components) )
    totalMcus := 0
    for i, ch := range cfg.Components {
        p, err := img.channel( ch )
        if err != nil {
            return 0, err
        }
        providers[i] = p
        caps[i] = cfg.messageCapacity( p )
        totalMcus += p.MaxMCUs()
    }

    shares := partition( len(payload), caps )
    for i, n := range shares {
        if n > caps[i] {
            return 0, newError( "Embed", i, ErrMessageOverflow, nil )
        }
    }

    var prng *prngCache
    if cfg.Seed != 0 {
        prng = newPRNGCache( cfg.Seed, totalMcus )
    }

    written := 0
    off := 0
    for i, ch := range cfg.Components {
        n := shares[i]
        if n == 0 {
            continue
        }
        chunk := payload[off : off+n]
        off += n
        if err := embedChannel( providers[i], cfg, prng, chunk ); err != nil {
            return written, newError( "Embed", int(ch), err.(*Error).Code, err )
        }
        written += n
        logDebug( cfg.Logger, "embedded channel", "channel", ch.String(), "bytes", n )
    }
    return written, nil
}

// embedChannel embeds one channel's share of the payload, always framed
// with the 6-byte header (§4.6): cfg.EmbedHeader is not consulted here, and
// no header-less frame is ever written.
func embedChannel( provider coeffProvider, cfg *Config, prng *prngCache, chunk []byte ) error {
    freqs, err := cfg.candidateFreqsFor( provider )
    if err != nil {
        return err
    }

    encoded, err := cfg.codec().encode( chunk )
    if err != nil {
        return newError( "embedChannel", -1, ErrEcc, err )
    }

    density := cfg.McuDensity
    maxMcus := provider.MaxMCUs()
    if density == autoDensity {
        density = autoDensityFor( provider, cfg, len(encoded), cfg.NFreqs )
    }

    bs := newBitstream( len(encoded) )
    bs.density = uint8( density )
    bs.msgSize = uint32( len(encoded) )
    copy( bs.payload, encoded )
    bs.setChecksum()
    bs.reset()

    if prng != nil {
        prng.reset()
    }
    sel := selectMCUs( maxMcus, density, prng )
    fp := newFreqPool( freqs )

    // The density byte is always carried by the first active MCU, spread
    // across exactly 4 of its candidate frequencies at exactly 2 bits per
    // frequency (§4.6.1): that MCU contributes no other payload bits.
    firstBlockDone := false

    if prng != nil {
        prng.reset()
    }
    for _, blockIdx := range sel.order {
        if !sel.active[blockIdx] {
            continue
        }
        if bs.bit >= bs.nbits {
            break
        }
        block, err := provider.Block( blockIdx )
        if err != nil {
            return newError( "embedChannel", -1, ErrBadDims, err )
        }
        if prng != nil {
            fp.shuffle( prng )
        } else {
            fp.reset()
        }
        use := fp.inUse

        if !firstBlockDone {
            firstBlockDone = true
            writeDensityBlock( block, use, bs )
            continue
        }

        if cfg.ClearAc {
            for k := 1; k < 64; k++ {
                block[k] = 0
            }
        }

        // Only the first n_freqs of the shuffled candidate pool are used per
        // block visit; max_freqs just bounds the candidate pool itself.
        freqsThisBlock := use
        if len(freqsThisBlock) > cfg.NFreqs {
            freqsThisBlock = freqsThisBlock[:cfg.NFreqs]
        }
        for _, j := range freqsThisBlock {
            if bs.bit >= bs.nbits {
                break
            }
            embedAtFrequency( block, j, provider.QuantTable(), cfg, bs )
        }
    }

    if bs.bit < bs.nbits {
        return newError( "embedChannel", -1, ErrMessageOverflow, nil )
    }
    return nil
}

// writeDensityBlock spreads the density byte across exactly 4 of freqs at
// exactly 2 bits per frequency (§4.6.1), mirroring ijel_insert_density: each
// frequency's 2 bits are drawn through the bitstream's normal bit accessor,
// MSB first, and xform'd like any other small coefficient value.
func writeDensityBlock( block *[64]int16, freqs []int, bs *bitstream ) {
    for i := 0; i < 4; i++ {
        v := 0
        for k := 0; k < 2; k++ {
            bit := bs.getNextBit()
            if bit < 0 {
                bit = 0
            }
            v = (v << 1) | bit
        }
        block[ freqs[i] ] = int16( xform( v ) )
    }
}

// embedAtFrequency writes up to bitsPerFreq bits of bs into coefficient j
// of block, honoring the SetDc/Normalize debug properties (ClearAc is applied
// by embedChannel, once per block before any of its frequencies is written).
func embedAtFrequency( block *[64]int16, j int, quant [64]uint16, cfg *Config, bs *bitstream ) {
    if cfg.SetDc >= 0 {
        block[0] = int16( xform( cfg.SetDc ) )
    }

    levels := levelsAt( quant, j )
    scale := 1
    if cfg.Normalize {
        scale = normalizeScale( levels, cfg.BitsPerFreq )
    }

    v := 0
    for b := 0; b < cfg.BitsPerFreq; b++ {
        bit := bs.getNextBit()
        if bit < 0 {
            break
        }
        v |= bit << uint(b)
    }
    block[j] = int16( xform( v*scale ) )
}

// autoDensityFor computes the smallest density (1..100) whose image
// capacity at the current frequency/bits settings covers msgBytes, plus
// one percentage point of margin unless that would already saturate the
// channel (§4.6's "auto density" mode).
func autoDensityFor( provider coeffProvider, cfg *Config, msgBytes, nFreqs int ) int {
    needBits := ( msgBytes + headerSize ) * 8
    maxMcus := provider.MaxMCUs()
    perMcuBits := cfg.BitsPerFreq * nFreqs
    if perMcuBits == 0 || maxMcus == 0 {
        return 100
    }
    needMcus := ( needBits + perMcuBits - 1 ) / perMcuBits
    density := ( needMcus*100 + maxMcus - 1 ) / maxMcus
    if density < 1 {
        density = 1
    }
    if density < 100 {
        density++
    }
    if density > 100 {
        density = 100
    }
    return density
}
