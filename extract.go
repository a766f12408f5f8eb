package jel

// Extract recovers the payload embedded in img according to cfg, channel
// by channel, then compacts each channel's recovered bytes into one
// contiguous buffer in Components order (§4.8).
func Extract( img *Image, cfg *Config ) ( []byte, error ) {
    if len(cfg.Components) == 0 {
        return nil, newError( "Extract", -1, ErrBadDims, nil )
    }

    providers := make( []coeffProvider, len(cfg.Components) )
    totalMcus := 0
    for i, ch := range cfg.Components {
        p, err := img.channel( ch )
        if err != nil {
            return nil, err
        }
        providers[i] = p
        totalMcus += p.MaxMCUs()
    }

    var prng *prngCache
    if cfg.Seed != 0 {
        prng = newPRNGCache( cfg.Seed, totalMcus )
    }

    var out []byte
    for i, ch := range cfg.Components {
        chunk, err := extractChannel( providers[i], cfg, prng )
        if err != nil {
            if e, ok := err.( *Error ); ok && e.Code == ErrNoMessage {
                // an unused channel (no embedded payload) is not fatal to
                // the overall extraction: skip it and continue.
                logDebug( cfg.Logger, "no message in channel", "channel", ch.String() )
                continue
            }
            return out, newError( "Extract", int(ch), err.(*Error).Code, err )
        }
        out = append( out, chunk... )
        logDebug( cfg.Logger, "extracted channel", "channel", ch.String(), "bytes", len(chunk) )
    }
    return out, nil
}

// extractChannel recovers one channel's framed payload: the density byte is
// read first from the first block of the traversal (before the active mask
// is known), then the active mask is derived from it and msg_size, the
// checksum and the payload bits are read from the following active blocks,
// in the same traversal the embedder used (§4.7).
func extractChannel( provider coeffProvider, cfg *Config, prng *prngCache ) ( []byte, error ) {
    freqs, err := cfg.candidateFreqsFor( provider )
    if err != nil {
        return nil, err
    }

    maxMcus := provider.MaxMCUs()
    if prng != nil {
        prng.reset()
    }
    order := mcuOrder( maxMcus, prng )
    fp := newFreqPool( freqs )

    maxEncodedBytes := cfg.imageCapacity( provider )/8 - headerSize
    if maxEncodedBytes < 0 {
        return nil, newError( "extractChannel", -1, ErrNoMessage, nil )
    }
    bs := newBitstream( maxEncodedBytes )
    bs.nbits = ( headerSize + maxEncodedBytes ) * 8 // provisional, shrunk once msg_size is known

    density := 0
    firstBlockDone := false
    quant := provider.QuantTable()

    if prng != nil {
        prng.reset()
    }
    var active []bool
    for _, blockIdx := range order {
        if firstBlockDone && !active[blockIdx] {
            continue
        }
        if bs.gotLength() && bs.bit >= bs.nbits {
            break
        }
        block, err := provider.Block( blockIdx )
        if err != nil {
            return nil, newError( "extractChannel", -1, ErrBadDims, err )
        }
        if prng != nil {
            fp.shuffle( prng )
        } else {
            fp.reset()
        }

        use := fp.inUse

        if !firstBlockDone {
            firstBlockDone = true
            readDensityBlock( block, use, bs )
            density = int( bs.density )

            if prng == nil {
                active = unseededActiveMask( maxMcus, density )
            } else {
                active = activeMask( order, maxMcus, density )
            }
            continue
        }

        freqsThisBlock := use
        if len(freqsThisBlock) > cfg.NFreqs {
            freqsThisBlock = freqsThisBlock[:cfg.NFreqs]
        }
        for _, j := range freqsThisBlock {
            if bs.bit >= bs.nbits {
                break
            }
            extractAtFrequency( block, j, quant, cfg, bs )
            if bs.gotLength() && bs.bit == headerSize*8 {
                if !bs.validateChecksum() {
                    return nil, newError( "extractChannel", -1, ErrChecksum, nil )
                }
                if int(bs.msgSize) > maxEncodedBytes {
                    return nil, newError( "extractChannel", -1, ErrMessageOverflow, nil )
                }
                bs.nbits = ( headerSize + int(bs.msgSize) ) * 8
            }
        }
    }

    if !firstBlockDone || density <= 0 || density > 100 {
        return nil, newError( "extractChannel", -1, ErrNoMessage, nil )
    }
    if bs.bit < headerSize*8 {
        return nil, newError( "extractChannel", -1, ErrNoMessage, nil )
    }

    encoded := bs.payload[:bs.msgSize]
    decoded, err := cfg.codec().decode( encoded, -1 )
    if err != nil {
        return nil, newError( "extractChannel", -1, ErrEcc, err )
    }
    return decoded, nil
}

// readDensityBlock inverts writeDensityBlock: it reads exactly 4 of freqs,
// 2 bits each (MSB first) via invxform, and feeds those bits back through
// the bitstream's normal bit accessor so bs.density ends up holding the
// reassembled byte (§4.6.1, mirroring ijel_extract_density).
func readDensityBlock( block *[64]int16, freqs []int, bs *bitstream ) {
    for i := 0; i < 4; i++ {
        v := invxform( int(block[ freqs[i] ]) )
        for k := 1; k >= 0; k-- {
            bit := ( v >> uint(k) ) & 1
            bs.setNextBit( bit )
        }
    }
}

// extractAtFrequency reads up to bitsPerFreq bits from coefficient j of
// block into bs, inverting the Normalize scale applied at embed time.
func extractAtFrequency( block *[64]int16, j int, quant [64]uint16, cfg *Config, bs *bitstream ) {
    levels := levelsAt( quant, j )
    scale := 1
    if cfg.Normalize {
        scale = normalizeScale( levels, cfg.BitsPerFreq )
    }
    if scale == 0 {
        scale = 1
    }

    v := invxform( int(block[j]) ) / scale
    for b := 0; b < cfg.BitsPerFreq; b++ {
        if bs.bit >= bs.nbits {
            return
        }
        bit := ( v >> uint(b) ) & 1
        bs.setNextBit( bit )
    }
}
